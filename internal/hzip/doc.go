// Package hzip compresses mesh connectivity and per-node field values by
// walking them in mesh order.
//
// Only quad (rank 2, 4 nodes per cell) and hex (rank 3, 8 nodes per cell)
// meshes are supported. Cells are re-expressed in a canonical node order by
// a fixed permutation per topology; each canonical node is predicted from
// the same node of the previous cell and the zigzagged residuals are packed
// (varint or a fixed BITS width) before an entropy stage.
//
// Field values are visited in the order nodes first appear in the
// connectivity, so decoding a field needs the exact nodelist that was used
// to encode it. Structured grids have no stored nodelist; [GridNodelist]
// synthesizes one from the node dimensions.
//
// Streams start with a fixed header. Decoding opens the stream with the
// neutral permutation to read the header, then reopens it with the
// permutation of the topology the header names.
package hzip
