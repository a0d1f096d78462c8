package container

import (
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/robert-malhotra/go-silo/internal/filter"
	"github.com/robert-malhotra/go-silo/internal/layout"
	"github.com/robert-malhotra/go-silo/internal/message"
)

// Dataset is an open dataset. Its data is stored as a single chunk that
// passes through the filter pipeline when one is attached.
type Dataset struct {
	Object
	dt       *message.Datatype
	space    *message.Dataspace
	pipeline *message.FilterPipeline
}

// ReadOptions control a dataset read.
type ReadOptions struct {
	// SkipChecksum strips checksums without verifying them.
	SkipChecksum bool
}

func (d *Dataset) Datatype() *message.Datatype {
	return d.dt
}

func (d *Dataset) Dataspace() *message.Dataspace {
	return d.space
}

func (d *Dataset) Pipeline() *message.FilterPipeline {
	return d.pipeline
}

func (d *Dataset) NumElements() uint64 {
	return d.space.NumElements()
}

func (d *Dataset) StorageSize() (int, error) {
	n, _, err := d.stored()
	return n, err
}

func (d *Dataset) FilterMask() (uint32, error) {
	_, m, err := d.stored()
	return m, err
}

// CreateDataset creates a dataset sized to space. The pipeline is applied
// to every write; pass nil for unfiltered storage.
func (f *File) CreateDataset(p string, dt *message.Datatype, space *message.Dataspace, pipeline *message.FilterPipeline) (*Dataset, error) {
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	if pipeline != nil && len(pipeline.Filters) == 0 {
		pipeline = nil
	}
	if pipeline != nil {
		for _, info := range pipeline.Filters {
			if !info.IsOptional() && !f.Filters.Registered(info.ID) {
				err := errors.Wrapf(filter.ErrUnknown, "filter %d is not registered", info.ID)
				f.stack.Push("create dataset", p, err)
				return nil, err
			}
		}
	}
	var full string
	err = f.update("create dataset", p, func(tx *bolt.Tx) error {
		if full, err = requireParent(tx, p); err != nil {
			return err
		}
		return putRecord(tx, full, &record{Type: EntityDataset, Datatype: dt, Space: space, Pipeline: pipeline})
	})
	if err != nil {
		return nil, err
	}
	return f.newDataset(full, &record{Datatype: dt, Space: space, Pipeline: pipeline})
}

// OpenDataset opens a dataset, following soft links.
func (f *File) OpenDataset(p string) (*Dataset, error) {
	full, rec, err := f.lookup("open dataset", p)
	if err != nil {
		return nil, err
	}
	if rec.Type != EntityDataset {
		err := errors.Wrapf(ErrNotDataset, "%s is a %s", full, rec.Type)
		f.stack.Push("open dataset", p, err)
		return nil, err
	}
	return f.newDataset(full, rec)
}

func (f *File) newDataset(full string, rec *record) (*Dataset, error) {
	h, err := f.acquire()
	if err != nil {
		return nil, err
	}
	return &Dataset{
		Object:   Object{handle: h, path: full, typ: EntityDataset},
		dt:       rec.Datatype,
		space:    rec.Space,
		pipeline: rec.Pipeline,
	}, nil
}

// Write replaces the whole dataset contents.
func (d *Dataset) Write(data []byte) error {
	if err := d.check(); err != nil {
		return err
	}
	if err := checkSize(d.dt, d.space, len(data)); err != nil {
		d.f.stack.Push("write dataset", d.path, err)
		return err
	}
	stored, mask := data, uint32(0)
	if d.pipeline != nil {
		p, err := d.f.Filters.NewPipeline(d.pipeline)
		if err != nil {
			d.f.stack.Push("filter pipeline", d.path, err)
			return errors.Wrapf(err, "write %s", d.path)
		}
		if stored, mask, err = p.Encode(data); err != nil {
			d.f.stack.Push("filter pipeline", d.path, err)
			return errors.Wrapf(err, "write %s", d.path)
		}
	}
	chunk := encodeChunk(mask, stored)
	return d.f.update("write dataset", d.path, func(tx *bolt.Tx) error {
		return tx.Bucket(bucketChunks).Put([]byte(d.path), chunk)
	})
}

// Read returns the whole dataset in its stored datatype. A dataset that
// was created but never written reads as zeros.
func (d *Dataset) Read(opts ReadOptions) ([]byte, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	var (
		raw   []byte
		mask  uint32
		found bool
	)
	err := d.f.view("read dataset", d.path, func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketChunks).Get([]byte(d.path))
		if v == nil {
			return nil
		}
		found = true
		var err error
		mask, raw, err = decodeChunk(v)
		return err
	})
	if err != nil {
		return nil, err
	}
	size := d.space.NumElements() * uint64(d.dt.Size)
	if !found {
		return make([]byte, size), nil
	}
	if d.pipeline != nil {
		p, err := d.f.Filters.NewPipeline(d.pipeline)
		if err != nil {
			d.f.stack.Push("filter pipeline", d.path, err)
			return nil, errors.Wrapf(err, "read %s", d.path)
		}
		if opts.SkipChecksum {
			p.SkipChecksum()
		}
		if raw, err = p.Decode(raw, mask); err != nil {
			d.f.stack.Push("filter pipeline", d.path, err)
			return nil, errors.Wrapf(err, "read %s", d.path)
		}
	}
	if uint64(len(raw)) != size {
		err := errors.Wrapf(ErrCorrupt, "%s holds %d bytes, want %d", d.path, len(raw), size)
		d.f.stack.Push("read dataset", d.path, err)
		return nil, err
	}
	return raw, nil
}

// ReadSelection returns the selected elements, packed.
func (d *Dataset) ReadSelection(sel layout.Selection, opts ReadOptions) ([]byte, error) {
	all, err := d.Read(opts)
	if err != nil {
		return nil, err
	}
	out, err := layout.Gather(all, d.space.Dimensions, sel, uint64(d.dt.Size))
	if err != nil {
		d.f.stack.Push("read selection", d.path, err)
		return nil, err
	}
	return out, nil
}

// WriteSelection writes packed data into the selected elements, keeping
// the rest of the dataset.
func (d *Dataset) WriteSelection(sel layout.Selection, data []byte, opts ReadOptions) error {
	all, err := d.Read(opts)
	if err != nil {
		return err
	}
	if err := layout.Scatter(all, d.space.Dimensions, sel, uint64(d.dt.Size), data); err != nil {
		d.f.stack.Push("write selection", d.path, err)
		return err
	}
	return d.Write(all)
}

func (d *Dataset) stored() (int, uint32, error) {
	var (
		n    int
		mask uint32
	)
	err := d.f.view("storage size", d.path, func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketChunks).Get([]byte(d.path))
		if len(v) >= 4 {
			n = len(v) - 4
			mask = uint32(v[0]) | uint32(v[1])<<8 | uint32(v[2])<<16 | uint32(v[3])<<24
		}
		return nil
	})
	return n, mask, err
}
