package silo

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/robert-malhotra/go-silo/internal/container"
	"github.com/robert-malhotra/go-silo/internal/dtype"
	"github.com/robert-malhotra/go-silo/internal/layout"
	"github.com/robert-malhotra/go-silo/internal/message"
)

func product(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

func toU64(dims []int) []uint64 {
	out := make([]uint64, len(dims))
	for i, d := range dims {
		out[i] = uint64(d)
	}
	return out
}

func toInts(dims []uint64) []int {
	out := make([]int, len(dims))
	for i, d := range dims {
		out[i] = int(d)
	}
	return out
}

func sameDims(a []uint64, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != uint64(b[i]) {
			return false
		}
	}
	return true
}

// putComponent writes one component array and returns the absolute name
// it was stored under. An empty name mints a generated one. Nil data with
// zero extents writes nothing and returns "".
func (f *File) putComponent(s *scope, data any, dims []int, name, alias string, role zipRole, order *meshOrder) (string, error) {
	kind, n, err := dtype.KindOf(data)
	if err != nil {
		return "", err
	}
	if len(dims) == 0 {
		dims = []int{n}
	}
	if n == 0 {
		if product(dims) == 0 {
			return "", nil
		}
		return "", badArgs("no data for %v elements", dims)
	}
	if product(dims) != n {
		return "", badArgs("%d values for extents %v", n, dims)
	}

	ft, err := f.reg.File(kind, f.profile)
	if err != nil {
		return "", err
	}
	raw, err := dtype.Encode(data, ft)
	if err != nil {
		return "", err
	}

	p := ResolvePath(f.cwd, name)
	if name == "" {
		if p, err = f.mintName(s); err != nil {
			return "", err
		}
	}

	fp, ctx := f.pipelineFor(ft, kind, dims, role, order)
	if ctx == nil {
		ctx = &zipContext{kind: kind, dims: dims, role: role, order: order}
	}
	f.zip.begin(ctx)
	defer f.zip.end()

	var (
		ds      *container.Dataset
		created bool
	)
	if f.c.Exists(p) {
		if ds, err = s.openDataset(p); err != nil {
			return "", err
		}
		if !sameDims(ds.Dataspace().Dimensions, dims) {
			return "", badArgs("%s has extents %v, not %v", p, ds.Dataspace().Dimensions, dims)
		}
		if ds.Datatype().Class != ft.Class {
			return "", &Error{Code: TypeMismatch, Context: p,
				Err: errors.Errorf("%s holds %s data, not %s", p, ds.Datatype(), kind)}
		}
		if ft = ds.Datatype(); ft.Size != uint32(len(raw)/n) {
			if raw, err = dtype.Encode(data, ft); err != nil {
				return "", err
			}
		}
	} else {
		if ds, err = s.createDataset(p, ft, message.NewDataspace(toU64(dims)), fp); err != nil {
			return "", err
		}
		created = true
	}

	if err := ds.Write(raw); err != nil {
		if created && ctx.comp.Method != MethodNone && ctx.comp.ErrMode == Fail {
			return "", f.dropUncompressed(p, err)
		}
		return "", err
	}
	if ctx.comp.Method != MethodNone && ctx.comp.ErrMode == Fallback {
		if mask, err := ds.FilterMask(); err == nil && mask&compressorMask(ds.Pipeline()) != 0 {
			f.log.WithFields(logrus.Fields{
				"dataset": p,
				"method":  ctx.comp.Method.String(),
			}).Warn("compression failed, stored uncompressed")
		}
	}

	if alias != "" && f.friendly {
		if err := f.link(ResolvePath(f.cwd, alias), p); err != nil {
			return "", err
		}
	}
	return p, nil
}

// link points alias at target unless alias names a real entity.
func (f *File) link(alias, target string) error {
	if alias == target || reserved(alias) {
		return nil
	}
	if f.c.Exists(alias) {
		if _, err := f.c.Readlink(alias); err != nil {
			f.log.WithField("alias", alias).Debug("alias names an entity, not linked")
			f.c.Errors().Clear()
			return nil
		}
	}
	return f.c.CreateSoftLink(alias, target)
}

// readOptions returns the container read options of this session.
func (f *File) readOptions() container.ReadOptions {
	return container.ReadOptions{SkipChecksum: !f.checksums}
}

// getComponent reads a whole component array. Unless raw is set,
// force-single turns double data into float.
func (f *File) getComponent(s *scope, name string, raw bool, order *meshOrder) (any, []int, error) {
	p := ResolvePath(f.cwd, name)
	ds, err := s.openDataset(p)
	if err != nil {
		return nil, nil, err
	}
	dims := toInts(ds.Dataspace().Dimensions)

	f.zip.begin(&zipContext{dims: dims, order: order})
	data, err := ds.Read(f.readOptions())
	f.zip.end()
	if err != nil {
		return nil, nil, err
	}
	v, err := f.decode(ds.Datatype(), data, raw)
	return v, dims, err
}

func (f *File) decode(ft *message.Datatype, data []byte, raw bool) (any, error) {
	k, err := f.reg.InferMemory(ft)
	if err != nil {
		return nil, err
	}
	if !raw {
		k = f.reg.DefaultKind(k)
	}
	return dtype.Decode(ft, data, k)
}

// dropUncompressed removes a dataset whose first write failed to compress
// under ERRMODE=FAIL. Other write failures keep their own code.
func (f *File) dropUncompressed(p string, err error) error {
	if classify(err, f.c.Errors()) != Compression {
		return err
	}
	if derr := f.c.Delete(p); derr != nil {
		f.log.WithError(derr).WithField("dataset", p).Warn("could not remove dataset after failed compression")
	}
	return &Error{Code: Compression, Context: p, Err: err}
}

// hasFilter reports whether the dataset at p was created with filter id.
func (f *File) hasFilter(s *scope, p string, id uint16) (bool, error) {
	ds, err := s.openDataset(p)
	if err != nil {
		return false, err
	}
	fp := ds.Pipeline()
	return fp != nil && fp.HasFilter(id), nil
}

// Write stores a simple variable. Without dims the data is one
// dimensional. Writing an existing variable overwrites it in place.
func (f *File) Write(name string, data any, dims ...int) error {
	p := ResolvePath(f.cwd, name)
	return f.protect("write", p, func(s *scope) error {
		if reserved(p) {
			return badArgs("%s is reserved", p)
		}
		if data == nil {
			return badArgs("no data")
		}
		_, err := f.putComponent(s, data, dims, p, "", roleGeneric, nil)
		return err
	})
}

// ReadVar reads a whole variable, honoring force-single.
func (f *File) ReadVar(name string) (any, error) {
	return f.readVar("read var", name, false)
}

// ReadVarRaw reads a whole variable in its stored precision.
func (f *File) ReadVarRaw(name string) (any, error) {
	return f.readVar("read var raw", name, true)
}

func (f *File) readVar(op, name string, raw bool) (any, error) {
	p := ResolvePath(f.cwd, name)
	var out any
	err := f.protect(op, p, func(s *scope) error {
		ds, err := s.openDataset(p)
		if err != nil {
			return err
		}
		v, _, err := f.getComponent(s, p, raw, gridOrder(toInts(ds.Dataspace().Dimensions)))
		out = v
		return err
	})
	return out, err
}

// ReadVarAs reads a whole variable converted to kind.
func (f *File) ReadVarAs(name string, kind dtype.Kind) (any, error) {
	if !kind.Valid() {
		return nil, &Error{Code: BadArgs, Op: "read var as", Context: name,
			Err: errors.Wrapf(dtype.ErrBadKind, "%s", kind)}
	}
	v, err := f.ReadVarRaw(name)
	if err != nil {
		return nil, err
	}
	out, err := dtype.ConvertSlice(v, kind)
	if err != nil {
		return nil, &Error{Code: BadArgs, Op: "read var as", Context: name, Err: err}
	}
	return out, nil
}

// VarInfo describes a stored variable.
type VarInfo struct {
	Name string
	Kind dtype.Kind
	Dims []int
	// Size is the uncompressed size in bytes and Stored the number of
	// bytes on disk. Compressed is false when no compression filter ran
	// on the stored data.
	Size       int
	Stored     int
	Filters    []string
	Compressed bool
}

// VarInfo returns the type, extents and storage of a variable.
func (f *File) VarInfo(name string) (*VarInfo, error) {
	p := ResolvePath(f.cwd, name)
	var out *VarInfo
	err := f.protect("var info", p, func(s *scope) error {
		ds, err := s.openDataset(p)
		if err != nil {
			return err
		}
		k, err := f.reg.InferMemory(ds.Datatype())
		if err != nil {
			return err
		}
		info := &VarInfo{
			Name: ds.Path(),
			Kind: k,
			Dims: toInts(ds.Dataspace().Dimensions),
			Size: int(ds.NumElements()) * int(ds.Datatype().Size),
		}
		if info.Stored, err = ds.StorageSize(); err != nil {
			return err
		}
		mask, err := ds.FilterMask()
		if err != nil {
			return err
		}
		if fp := ds.Pipeline(); fp != nil {
			for i, fi := range fp.Filters {
				info.Filters = append(info.Filters, f.c.Filters.Name(fi.ID))
				if compressing(fi.ID) && mask&(1<<uint(i)) == 0 {
					info.Compressed = true
				}
			}
		}
		out = info
		return nil
	})
	return out, err
}

func selection(offset, length, stride []int) layout.Selection {
	sel := layout.Selection{Offset: toU64(offset), Length: toU64(length)}
	if stride != nil {
		sel.Stride = toU64(stride)
	}
	return sel
}

// ReadVarSlice reads a strided hyperslab of a variable. Each dimension
// yields ceil(length/stride) elements; a nil stride means 1.
func (f *File) ReadVarSlice(name string, offset, length, stride []int) (any, error) {
	p := ResolvePath(f.cwd, name)
	var out any
	err := f.protect("read var slice", p, func(s *scope) error {
		ds, err := s.openDataset(p)
		if err != nil {
			return err
		}
		sel := selection(offset, length, stride)
		if err := sel.Validate(ds.Dataspace().Dimensions); err != nil {
			return err
		}
		dims := toInts(ds.Dataspace().Dimensions)
		f.zip.begin(&zipContext{dims: dims, order: gridOrder(dims)})
		data, err := ds.ReadSelection(sel, f.readOptions())
		f.zip.end()
		if err != nil {
			return err
		}
		out, err = f.decode(ds.Datatype(), data, false)
		return err
	})
	return out, err
}

// WriteSlice writes data into a strided hyperslab of a variable. A
// variable that does not exist yet is created with extents dims and
// zero fill.
func (f *File) WriteSlice(name string, data any, offset, length, stride, dims []int) error {
	p := ResolvePath(f.cwd, name)
	return f.protect("write slice", p, func(s *scope) error {
		if reserved(p) {
			return badArgs("%s is reserved", p)
		}
		kind, n, err := dtype.KindOf(data)
		if err != nil {
			return err
		}
		sel := selection(offset, length, stride)
		if uint64(n) != sel.NumElements() {
			return badArgs("%d values for a selection of %d", n, sel.NumElements())
		}

		if !f.c.Exists(p) {
			if len(dims) == 0 {
				return badArgs("%s does not exist and no extents were given", p)
			}
			zero, err := dtype.MakeSlice(kind, product(dims))
			if err != nil {
				return err
			}
			if _, err := f.putComponent(s, zero, dims, p, "", roleGeneric, gridOrder(dims)); err != nil {
				return err
			}
		}

		ds, err := s.openDataset(p)
		if err != nil {
			return err
		}
		if err := sel.Validate(ds.Dataspace().Dimensions); err != nil {
			return err
		}
		raw, err := dtype.Encode(data, ds.Datatype())
		if err != nil {
			return err
		}
		dsDims := toInts(ds.Dataspace().Dimensions)
		f.zip.begin(&zipContext{dims: dsDims, order: gridOrder(dsDims)})
		defer f.zip.end()
		return ds.WriteSelection(sel, raw, f.readOptions())
	})
}
