// Package mipmap selects resolution levels from screen-space sampling
// density.
//
// Sizes is initialized once per frame from the source to NDC matrix and the
// viewport width. It estimates the source-space width of one screen pixel on
// the near (sn) and far (sf) clipping planes and, per level, the worst-case
// voxel footprint sl perpendicular to the view direction. BestLevel
// interpolates the pixel width at a point's depth and picks the level whose
// footprint is closest to it.
//
// The base level is BestLevel of the closest visible source point. That
// point is found by a small linear program over the frustum planes and the
// image bounds (gonum optimize/convex/lp). An infeasible program means the
// volume is outside the frustum; this is reported through Visible, not as
// an error.
//
// # Tie Break
//
// When a pixel width lies exactly half way between two level footprints the
// finer level wins.
package mipmap
