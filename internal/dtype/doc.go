// Package dtype is the type registry: it maps the six atomic kinds of the
// object model to in-memory Go slices and to on-disk datatypes.
//
// # Kinds and Memory Types
//
//	Kind   | Go slice  | default memory width
//	-------|-----------|---------------------
//	Char   | []byte    | 1
//	Short  | []int16   | 2
//	Int    | []int32   | 4
//	Long   | []int64   | 8
//	Float  | []float32 | 4
//	Double | []float64 | 8
//
// # Target Profiles
//
// The file layout of a kind depends on the [Profile] chosen when the file
// was created:
//
//	Profile      | order | char short int long float double
//	-------------|-------|--------------------------------
//	Local        | host  |  1    2    4    8    4     8
//	BigEndian32  | BE    |  1    2    4    4    4     8
//	BigEndian64  | BE    |  1    8    8    8    8     8
//	LittleEndian | LE    |  1    2    4    4    4     8
//
// # Inference
//
// [Registry.InferMemory] picks the smallest memory kind whose width is at
// least the stored width. When the [MemoryModel] has equal short and int
// widths, SHORT is never inferred and 2-byte integers come back as INT.
// Inference ignores force-single; [Registry.DefaultKind] applies it.
//
// # Conversion
//
// [Encode] and [Decode] move between Go slices and file bytes. Anything the
// stored layout cannot express directly (integer to float, narrowing) goes
// through [ConvertSlice], which converts element by element.
package dtype
