// Package geom provides the half-space and convex polytope primitives used
// for frustum culling, and small 4x4 matrix helpers over gonum.
//
// A Plane is (normal n, distance d); the signed distance of p is n·p - d and
// p lies on the inner side when that distance is >= 0. A Polytope is the
// intersection of the inner sides of its planes.
package geom
