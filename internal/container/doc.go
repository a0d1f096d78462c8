// Package container is the hierarchical, typed, attribute-bearing store
// the driver persists objects into.
//
// A container file is a bbolt database with four buckets:
//
//	meta     format version and driver metadata (profile, info string)
//	objects  absolute path -> entity record
//	attrs    path "\x00" attribute name -> attribute record
//	chunks   dataset path -> filter mask + stored bytes
//
// Entities are groups, committed named types, datasets and soft links.
// Records are sealed with a 32-bit xxhash; descriptors inside them use
// the message package encodings.
//
// Every object opened through a [File] is a handle that must be closed
// exactly once. [File.OpenHandles] reports the number still open.
//
// Failures are pushed onto the file's [ErrorStack] as free-text
// diagnostics in addition to being returned, the way an HDF5 library
// reports through its error stack.
package container
