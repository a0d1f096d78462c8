package silo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-silo/internal/container"
	"github.com/robert-malhotra/go-silo/internal/dtype"
	"github.com/robert-malhotra/go-silo/internal/filter"
	"github.com/robert-malhotra/go-silo/internal/message"
)

func TestWriteReadVar(t *testing.T) {
	f := newFile(t)
	require.NoError(t, f.Write("grid", []float64{1, 2, 3, 4, 5, 6}, 2, 3))
	require.NoError(t, f.Write("flags", []byte("abc")))
	require.NoError(t, f.Write("shorts", []int16{-1, 2}))

	v, err := f.ReadVar("grid")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, v)

	info, err := f.VarInfo("grid")
	require.NoError(t, err)
	assert.Equal(t, "/grid", info.Name)
	assert.Equal(t, dtype.Double, info.Kind)
	assert.Equal(t, []int{2, 3}, info.Dims)
	assert.Equal(t, 48, info.Size)
	assert.Equal(t, 48, info.Stored)
	assert.False(t, info.Compressed)
	assert.Empty(t, info.Filters)

	v, err = f.ReadVar("flags")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), v)

	v, err = f.ReadVar("shorts")
	require.NoError(t, err)
	assert.Equal(t, []int16{-1, 2}, v)
}

func TestWriteErrors(t *testing.T) {
	f := newFile(t)
	assert.Equal(t, BadArgs, CodeOf(f.Write("x", nil)))
	assert.Equal(t, BadArgs, CodeOf(f.Write("x", []int32{1, 2, 3}, 2, 2)))
	assert.Equal(t, BadArgs, CodeOf(f.Write("x", []string{"a"})))
	assert.Equal(t, BadArgs, CodeOf(f.Write("/.silo/#999999", []int32{1})))

	_, err := f.ReadVar("missing")
	assert.Equal(t, NotFound, CodeOf(err))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestOverwrite(t *testing.T) {
	f := newFile(t)
	require.NoError(t, f.Write("x", []float64{1, 2, 3}))
	require.NoError(t, f.Write("x", []float32{4, 5, 6}))

	v, err := f.ReadVar("x")
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 5, 6}, v, "stored width is kept")

	err = f.Write("x", []float64{1, 2})
	assert.Equal(t, BadArgs, CodeOf(err))

	err = f.Write("x", []int32{1, 2, 3})
	assert.Equal(t, TypeMismatch, CodeOf(err))
	assert.True(t, errors.Is(err, ErrCallFailed), "type mismatch is a call failure")
	assert.Zero(t, f.c.OpenHandles())
}

func TestForceSingle(t *testing.T) {
	f := newFile(t, WithForceSingle(true))
	assert.True(t, f.ForceSingle())
	require.NoError(t, f.Write("d", []float64{0.5, 1e300}))

	v, err := f.ReadVar("d")
	require.NoError(t, err)
	assert.IsType(t, []float32{}, v)
	assert.Equal(t, float32(0.5), v.([]float32)[0])

	raw, err := f.ReadVarRaw("d")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1e300}, raw)

	info, err := f.VarInfo("d")
	require.NoError(t, err)
	assert.Equal(t, dtype.Double, info.Kind, "inference ignores force-single")

	f.SetForceSingle(false)
	v, err = f.ReadVar("d")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1e300}, v)
}

func TestShortInferredAsIntWhenWidthsMatch(t *testing.T) {
	model := dtype.DefaultMemoryModel
	model.Short = model.Int
	f := newFile(t, WithMemoryModel(model))
	require.NoError(t, f.Write("s", []int16{7, -7}))

	v, err := f.ReadVar("s")
	require.NoError(t, err)
	assert.Equal(t, []int32{7, -7}, v)
}

func TestReadVarAs(t *testing.T) {
	f := newFile(t)
	require.NoError(t, f.Write("d", []float64{1.9, -2.5, 300}))

	v, err := f.ReadVarAs("d", dtype.Int)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, -2, 300}, v)

	v, err = f.ReadVarAs("d", dtype.Float)
	require.NoError(t, err)
	assert.Equal(t, []float32{1.9, -2.5, 300}, v)

	_, err = f.ReadVarAs("d", dtype.Kind(99))
	assert.Equal(t, BadArgs, CodeOf(err))
}

func TestSlices(t *testing.T) {
	f := newFile(t)
	// 3 rows of 4, first dimension slowest.
	data := []int32{
		0, 1, 2, 3,
		10, 11, 12, 13,
		20, 21, 22, 23,
	}
	require.NoError(t, f.Write("m", data, 3, 4))

	v, err := f.ReadVarSlice("m", []int{1, 0}, []int{2, 4}, []int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []int32{10, 12, 20, 22}, v)

	v, err = f.ReadVarSlice("m", []int{0, 1}, []int{3, 3}, []int{2, 2})
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 3, 21, 23}, v, "ceil(length/stride) per dimension")

	require.NoError(t, f.WriteSlice("m", []int32{-1, -2}, []int{2, 1}, []int{1, 2}, nil, nil))
	v, err = f.ReadVarSlice("m", []int{2, 0}, []int{1, 4}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int32{20, -1, -2, 23}, v)

	_, err = f.ReadVarSlice("m", []int{2, 0}, []int{2, 4}, nil)
	assert.Equal(t, BadArgs, CodeOf(err))
	_, err = f.ReadVarSlice("m", []int{0}, []int{1}, nil)
	assert.Equal(t, BadArgs, CodeOf(err))
	err = f.WriteSlice("m", []int32{1}, []int{0, 0}, []int{1, 2}, nil, nil)
	assert.Equal(t, BadArgs, CodeOf(err))
}

func TestWriteSliceCreates(t *testing.T) {
	f := newFile(t)
	err := f.WriteSlice("new", []float32{1}, []int{0}, []int{1}, nil, nil)
	assert.Equal(t, BadArgs, CodeOf(err))

	require.NoError(t, f.WriteSlice("new", []float32{1, 2}, []int{1}, []int{4}, []int{2}, []int{6}))
	v, err := f.ReadVar("new")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0, 2, 0, 0}, v)
}

func TestChecksums(t *testing.T) {
	f := newFile(t, WithChecksums(true))
	require.NoError(t, f.Write("ok", []int32{1, 2, 3}))
	info, err := f.VarInfo("ok")
	require.NoError(t, err)
	assert.Equal(t, []string{"fletcher32"}, info.Filters)
	assert.False(t, info.Compressed)

	// Corrupt the payload after the checksum is computed.
	f.c.Filters.Register(message.FilterFletcher32, "fletcher32", func(message.FilterInfo) (filter.Filter, error) {
		return &corrupting{filter.NewFletcher32(nil)}, nil
	})
	require.NoError(t, f.Write("bad", []int32{1, 2, 3}))
	f.c.Filters.Register(message.FilterFletcher32, "fletcher32", func(info message.FilterInfo) (filter.Filter, error) {
		return filter.NewFletcher32(info.ClientData), nil
	})

	v, err := f.ReadVar("ok")
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3}, v)

	_, err = f.ReadVar("bad")
	assert.Equal(t, Checksum, CodeOf(err))
	assert.True(t, errors.Is(err, ErrChecksum))
	assert.NotEmpty(t, f.Diagnostics())

	// Without checksums the same data reads, corrupted.
	g := reopen(t, f, WithChecksums(false))
	v, err = g.ReadVar("bad")
	require.NoError(t, err)
	assert.Len(t, v, 3)
}

type corrupting struct {
	*filter.Fletcher32Filter
}

func (c *corrupting) Encode(in []byte) ([]byte, error) {
	out, err := c.Fletcher32Filter.Encode(in)
	if err == nil {
		out[0] ^= 0xFF
	}
	return out, err
}

func TestHandlesReleasedOnError(t *testing.T) {
	f := newFile(t)
	require.NoError(t, f.PutCurve("c", &Curve{X: []float64{1}, Y: []float64{2}}))

	_, err := f.GetQuadMesh("c")
	assert.Equal(t, TypeMismatch, CodeOf(err))
	_, err = f.GetUcdMesh("nope")
	assert.Equal(t, NotFound, CodeOf(err))
	_, err = f.ReadVarSlice("c", []int{0}, []int{1}, nil)
	assert.Error(t, err)
	assert.Zero(t, f.c.OpenHandles())
}

func TestContainerErrorsClassified(t *testing.T) {
	assert.Equal(t, NotFound, classify(container.ErrNotFound, nil))
	assert.Equal(t, BadArgs, classify(container.ErrReadOnly, nil))
	assert.Equal(t, Checksum, classify(filter.ErrChecksum, nil))
	assert.Equal(t, Compression, classify(filter.ErrCannotCompress, nil))
	assert.Equal(t, CallFailed, classify(errors.New("boom"), nil))

	var stack container.ErrorStack
	stack.Push("filter pipeline", "/x", errors.New("boom"))
	assert.Equal(t, Compression, classify(errors.New("boom"), &stack))
}

func TestFailedWriteKeepsCauseCode(t *testing.T) {
	f := newFile(t)
	require.NoError(t, f.Write("keep", []int32{1, 2}))

	err := f.dropUncompressed("/keep", errors.New("disk full"))
	assert.Equal(t, CallFailed, CodeOf(err))
	_, err = f.ObjectKind("keep")
	require.NoError(t, err, "an i/o failure leaves the dataset alone")

	err = f.dropUncompressed("/keep", fmt.Errorf("filter 1 encode: %w", filter.ErrCannotCompress))
	assert.Equal(t, Compression, CodeOf(err))
	_, err = f.ObjectKind("keep")
	assert.Equal(t, NotFound, CodeOf(err))
}
