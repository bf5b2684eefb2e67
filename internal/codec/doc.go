// Package codec encodes what paged sources persist in a blob store.
//
// Two kinds of payloads exist:
//
//   - Cell blobs: raw voxel bytes of one cell, compressed with LZ4 or ZSTD
//     behind an 8-byte header (see Compress).
//   - Manifests: small self-describing documents encoded with a Codec. The
//     codec name is stored next to the manifest so readers pick the right one.
//
// Codec selection is a breaking-change boundary: blobs written with one
// compression or codec can only be read back with the same one.
package codec
