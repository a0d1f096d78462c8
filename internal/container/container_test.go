package container

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-silo/internal/filter"
	"github.com/robert-malhotra/go-silo/internal/layout"
	"github.com/robert-malhotra/go-silo/internal/message"
)

func newFile(t *testing.T) (*File, string) {
	t.Helper()
	name := filepath.Join(t.TempDir(), "test.silo")
	f, err := Create(name, false)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f, name
}

func i32() *message.Datatype {
	return message.NewFixedPointDatatype(4, true, message.OrderLE)
}

func TestCreateRefusesExisting(t *testing.T) {
	f, name := newFile(t)
	require.NoError(t, f.Close())

	_, err := Create(name, false)
	assert.True(t, errors.Is(err, ErrExists), "got %v", err)

	f2, err := Create(name, true)
	require.NoError(t, err)
	require.NoError(t, f2.Close())
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGroupsAndListing(t *testing.T) {
	f, name := newFile(t)

	g, err := f.CreateGroup("/mesh")
	require.NoError(t, err)
	require.NoError(t, g.Close())

	_, err = f.CreateGroup("/missing/child")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	_, err = f.CreateGroup("/mesh")
	assert.True(t, errors.Is(err, ErrExists), "got %v", err)

	ds, err := f.CreateDataset("/mesh/x", i32(), message.NewDataspace([]uint64{2}), nil)
	require.NoError(t, err)
	require.NoError(t, ds.Close())
	require.NoError(t, f.CreateSoftLink("/alias", "/mesh/x"))

	root, err := f.OpenGroup("/")
	require.NoError(t, err)
	list, err := root.List()
	require.NoError(t, err)
	require.NoError(t, root.Close())

	require.Len(t, list, 2)
	assert.Equal(t, "alias", list[0].Name)
	assert.Equal(t, EntitySoftLink, list[0].Type)
	assert.Equal(t, "/mesh/x", list[0].Target)
	assert.Equal(t, "mesh", list[1].Name)
	assert.Equal(t, EntityGroup, list[1].Type)

	assert.Equal(t, 0, f.OpenHandles())
	require.NoError(t, f.Close())

	f2, err := Open(name)
	require.NoError(t, err)
	defer f2.Close()
	typ, full, err := f2.Stat("/alias")
	require.NoError(t, err)
	assert.Equal(t, EntityDataset, typ)
	assert.Equal(t, "/mesh/x", full)
}

func TestSoftLinkThroughGroup(t *testing.T) {
	f, _ := newFile(t)
	g, err := f.CreateGroup("/real")
	require.NoError(t, err)
	g.Close()
	require.NoError(t, f.CreateSoftLink("/dir", "real"))

	ds, err := f.CreateDataset("/dir/v", i32(), message.NewDataspace([]uint64{1}), nil)
	require.NoError(t, err)
	assert.Equal(t, "/real/v", ds.Path())
	ds.Close()

	assert.True(t, f.Exists("/dir/v"))
	assert.True(t, f.Exists("/real/v"))

	require.NoError(t, f.CreateSoftLink("/loop", "/loop"))
	_, _, err = f.Stat("/loop")
	assert.True(t, errors.Is(err, ErrLinkLoop), "got %v", err)
}

func TestAttributesReplaceWhole(t *testing.T) {
	f, _ := newFile(t)
	nt, err := f.CommitType("/obj", i32())
	require.NoError(t, err)
	defer nt.Close()

	scalar := message.NewScalarDataspace()
	require.NoError(t, nt.SetAttr("silo_type", i32(), scalar, []byte{1, 0, 0, 0}))
	require.NoError(t, nt.SetAttr("silo_type", i32(), scalar, []byte{2, 0, 0, 0}))
	assert.True(t, nt.HasAttr("silo_type"))

	a, err := nt.OpenAttr("silo_type")
	require.NoError(t, err)
	raw, err := a.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 0, 0, 0}, raw)
	require.NoError(t, a.Close())

	err = nt.SetAttr("bad", i32(), scalar, []byte{1})
	assert.True(t, errors.Is(err, ErrSize))

	_, err = nt.OpenAttr("absent")
	assert.True(t, errors.Is(err, ErrNotFound))

	names, err := nt.Attrs()
	require.NoError(t, err)
	assert.Equal(t, []string{"silo_type"}, names)
}

func TestHandleCounting(t *testing.T) {
	f, _ := newFile(t)
	ds, err := f.CreateDataset("/d", i32(), message.NewDataspace([]uint64{1}), nil)
	require.NoError(t, err)
	obj, err := f.OpenObject("/d")
	require.NoError(t, err)
	assert.Equal(t, 2, f.OpenHandles())

	require.NoError(t, ds.Close())
	assert.True(t, errors.Is(ds.Close(), ErrClosed))
	assert.Equal(t, 1, f.OpenHandles())
	require.NoError(t, obj.Close())
	assert.Equal(t, 0, f.OpenHandles())

	_, err = ds.Read(ReadOptions{})
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestDatasetFilteredRoundTrip(t *testing.T) {
	f, _ := newFile(t)
	fp := &message.FilterPipeline{Filters: []message.FilterInfo{
		{ID: message.FilterShuffle, ClientData: []uint32{4}},
		{ID: message.FilterDeflate, ClientData: []uint32{6}},
		{ID: message.FilterFletcher32},
	}}
	ds, err := f.CreateDataset("/z", i32(), message.NewDataspace([]uint64{256}), fp)
	require.NoError(t, err)
	defer ds.Close()

	data := make([]byte, 1024)
	for i := range data {
		data[i] = byte(i / 64)
	}
	require.NoError(t, ds.Write(data))

	n, err := ds.StorageSize()
	require.NoError(t, err)
	assert.Less(t, n, len(data))

	got, err := ds.Read(ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestDatasetSelection(t *testing.T) {
	f, _ := newFile(t)
	u8 := message.NewFixedPointDatatype(1, false, message.OrderLE)
	ds, err := f.CreateDataset("/g", u8, message.NewDataspace([]uint64{3, 4}), nil)
	require.NoError(t, err)
	defer ds.Close()

	sel := layout.Selection{Offset: []uint64{0, 1}, Length: []uint64{3, 3}, Stride: []uint64{2, 2}}
	require.NoError(t, ds.WriteSelection(sel, []byte{1, 2, 3, 4}, ReadOptions{}))

	all, err := ds.Read(ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 0, 2, 0, 0, 0, 0, 0, 3, 0, 4}, all)

	got, err := ds.ReadSelection(sel, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, got)
}

func TestOptionalFilterFailureStoresUnfiltered(t *testing.T) {
	f, _ := newFile(t)
	fp := &message.FilterPipeline{Filters: []message.FilterInfo{
		{ID: message.FilterSZIP, Flags: message.FilterFlagOptional},
	}}
	ds, err := f.CreateDataset("/s", i32(), message.NewDataspace([]uint64{2}), fp)
	require.NoError(t, err)
	defer ds.Close()

	data := []byte{1, 0, 0, 0, 2, 0, 0, 0}
	require.NoError(t, ds.Write(data))
	mask, err := ds.FilterMask()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), mask)

	got, err := ds.Read(ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestMandatoryFilterFailureReported(t *testing.T) {
	f, _ := newFile(t)
	fp := &message.FilterPipeline{Filters: []message.FilterInfo{{ID: message.FilterSZIP}}}
	ds, err := f.CreateDataset("/s", i32(), message.NewDataspace([]uint64{1}), fp)
	require.NoError(t, err)
	defer ds.Close()

	err = ds.Write([]byte{1, 0, 0, 0})
	assert.True(t, errors.Is(err, filter.ErrUnavailable), "got %v", err)
	assert.True(t, f.Errors().Contains("filter pipeline"))

	require.NoError(t, f.Delete("/s"))
	assert.False(t, f.Exists("/s"))
}

func TestChecksumMismatchOnStack(t *testing.T) {
	f, _ := newFile(t)
	f.Filters.Register(message.FilterFletcher32, "fletcher32", func(message.FilterInfo) (filter.Filter, error) {
		return &corrupting{filter.NewFletcher32(nil)}, nil
	})
	fp := &message.FilterPipeline{Filters: []message.FilterInfo{{ID: message.FilterFletcher32}}}
	ds, err := f.CreateDataset("/c", i32(), message.NewDataspace([]uint64{1}), fp)
	require.NoError(t, err)
	defer ds.Close()
	require.NoError(t, ds.Write([]byte{9, 9, 9, 9}))

	f.Errors().Clear()
	_, err = ds.Read(ReadOptions{})
	assert.True(t, errors.Is(err, filter.ErrChecksum), "got %v", err)
	assert.True(t, f.Errors().Contains("checksum"))

	got, err := ds.Read(ReadOptions{SkipChecksum: true})
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

// corrupting flips a payload byte after the checksum has been computed.
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

func TestMeta(t *testing.T) {
	f, name := newFile(t)
	require.NoError(t, f.SetMeta("profile", []byte("cray")))
	require.NoError(t, f.Close())

	f2, err := Open(name, WithReadOnly(true))
	require.NoError(t, err)
	defer f2.Close()
	v, err := f2.Meta("profile")
	require.NoError(t, err)
	assert.Equal(t, "cray", string(v))

	err = f2.SetMeta("x", nil)
	assert.True(t, errors.Is(err, ErrReadOnly))
}
