// Package filter implements the chunk filter pipeline used by the
// container.
//
// Filters are applied in order when a chunk is written and in reverse
// order when it is read. Each stored chunk carries a filter mask; bit i
// set means filter i was skipped when the chunk was written.
//
// # Registry
//
// Every open container owns a [Registry] mapping filter IDs to
// constructors. The standard filters are registered up front:
//
//   - DEFLATE (ID 1): zlib streams via [Deflate], level from client data.
//   - Shuffle (ID 2): byte shuffle via [Shuffle].
//   - Fletcher32 (ID 3): trailing checksum via [Fletcher32Filter].
//   - SZIP (ID 4): parameters only; [SZIP] reports [ErrUnavailable].
//
// Mesh-aware codecs are registered by the driver at runtime with
// [Registry.Register]. Filter callbacks take no caller context, so a
// constructor that needs more state must close over it.
//
// # Optional Filters
//
// A filter flagged optional in the pipeline message may fail on write. The
// pipeline then skips it for that chunk and records the skip in the
// filter mask, so the chunk is stored unfiltered and still reads back.
// A mandatory filter that fails fails the write.
//
// # Size Bound
//
// [Bounded] wraps a compressor so that output larger than
// len(input)/minRatio is rejected with [ErrCannotCompress].
package filter
