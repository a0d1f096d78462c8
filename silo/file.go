package silo

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/robert-malhotra/go-silo/internal/container"
	"github.com/robert-malhotra/go-silo/internal/dtype"
	"github.com/robert-malhotra/go-silo/internal/message"
	"github.com/robert-malhotra/go-silo/internal/nlcache"
)

// Version is recorded in every file this package creates.
const Version = "go-silo 1"

const (
	reservedDir = "/.silo"
	counterAttr = "next_id"

	metaProfile = "profile"
	metaInfo    = "info"
	metaVersion = "version"
	metaUUID    = "uuid"
)

// ReadMask selects the parts of objects readers load. Parts left out of
// the mask come back empty.
type ReadMask uint64

const (
	MaskCoords ReadMask = 1 << iota
	MaskZonelist
	MaskFacelist
	MaskValues
	MaskMixed
	MaskMaterial

	MaskAll ReadMask = ^ReadMask(0)
)

// File is an open session on one file. A File is not safe for concurrent
// use.
type File struct {
	c       *container.File
	path    string
	id      string
	uuid    string
	reg     *dtype.Registry
	profile dtype.Profile
	info    string
	version string
	cwd     string
	log     logrus.FieldLogger
	cache   *nlcache.Cache

	zip  zipSlot
	comp *CompressionSettings

	checksums bool
	friendly  bool
	readMask  ReadMask

	nameMu sync.Mutex
	closed bool
}

func newSession(c *container.File, o *options) *File {
	f := &File{
		c:         c,
		path:      c.Path(),
		id:        uuid.NewString(),
		reg:       dtype.NewRegistry(o.model),
		profile:   o.profile,
		cwd:       "/",
		cache:     o.cache,
		checksums: o.checksums,
		friendly:  o.friendly,
		readMask:  MaskAll,
	}
	f.reg.SetForceSingle(o.forceSingle)
	f.log = o.logger.WithFields(logrus.Fields{"session": f.id})
	f.registerCodecs()
	return f
}

// Create creates a new file. An existing file is an error unless
// WithClobber is given.
func Create(filename string, opts ...Option) (*File, error) {
	o := buildOptions(opts)
	c, err := container.Create(filename, o.clobber)
	if err != nil {
		code := classify(err, nil)
		if errors.Is(err, container.ErrExists) {
			code = CallFailed
		}
		return nil, &Error{Code: code, Op: "create", Context: filename, Err: err}
	}
	f := newSession(c, o)
	f.info = o.info
	f.version = Version
	f.uuid = uuid.NewString()

	err = f.protect("create", filename, func(s *scope) error {
		for key, val := range map[string]string{
			metaProfile: f.profile.String(),
			metaInfo:    f.info,
			metaVersion: f.version,
			metaUUID:    f.uuid,
		} {
			if err := c.SetMeta(key, []byte(val)); err != nil {
				return err
			}
		}
		g, err := s.createGroup(reservedDir)
		if err != nil {
			return err
		}
		return f.writeCounter(&g.Object, 0)
	})
	if err == nil {
		err = f.SetCompression(o.compression)
	}
	if err != nil {
		c.Close()
		return nil, err
	}
	f.log.WithFields(logrus.Fields{"file": filename, "profile": f.profile}).Debug("created")
	return f, nil
}

// Open opens an existing file. The profile recorded at creation is used.
func Open(filename string, opts ...Option) (*File, error) {
	o := buildOptions(opts)
	c, err := container.Open(filename, container.WithReadOnly(o.readOnly))
	if err != nil {
		return nil, &Error{Code: classify(err, nil), Op: "open", Context: filename, Err: err}
	}
	f := newSession(c, o)
	err = f.protect("open", filename, func(s *scope) error {
		raw, err := c.Meta(metaProfile)
		if err != nil {
			return err
		}
		if f.profile, err = dtype.ParseProfile(string(raw)); err != nil {
			return &Error{Code: CallFailed, Err: errors.Wrap(err, "recorded profile")}
		}
		info, _ := c.Meta(metaInfo)
		version, _ := c.Meta(metaVersion)
		id, _ := c.Meta(metaUUID)
		f.info, f.version, f.uuid = string(info), string(version), string(id)
		if !c.Exists(reservedDir) {
			return newError(CallFailed, "%s is not a silo file: no %s", filename, reservedDir)
		}
		return nil
	})
	if err == nil {
		err = f.SetCompression(o.compression)
	}
	if err != nil {
		c.Close()
		return nil, err
	}
	return f, nil
}

// Close evicts the file's cached nodelists and closes it.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.cache.EvictFile(f.id)
	f.closed = true
	if err := f.c.Close(); err != nil {
		return &Error{Code: CallFailed, Op: "close", Context: f.path, Err: err}
	}
	return nil
}

// Path returns the file name.
func (f *File) Path() string { return f.path }

// Profile returns the on-disk numeric layout of the file.
func (f *File) Profile() dtype.Profile { return f.profile }

// UUID returns the identifier recorded when the file was created.
func (f *File) UUID() string { return f.uuid }

// Info returns the descriptive string given at creation.
func (f *File) Info() string { return f.info }

// Version returns the library version that created the file.
func (f *File) Version() string { return f.version }

// Size returns the size of the file in bytes.
func (f *File) Size() int64 { return f.c.Size() }

// Diagnostics returns the container error stack of the most recent call.
func (f *File) Diagnostics() []container.Diagnostic {
	return f.c.Errors().Entries()
}

// SetReadMask sets the read mask and returns the previous one.
func (f *File) SetReadMask(m ReadMask) ReadMask {
	old := f.readMask
	f.readMask = m
	return old
}

// ReadMask returns the current read mask.
func (f *File) ReadMask() ReadMask { return f.readMask }

func (f *File) wants(m ReadMask) bool { return f.readMask&m != 0 }

// SetForceSingle makes default readers return double data as float.
func (f *File) SetForceSingle(on bool) {
	f.reg.SetForceSingle(on)
}

// ForceSingle reports whether force-single is on.
func (f *File) ForceSingle() bool { return f.reg.ForceSingle() }

// FreeResources evicts the cached nodelist of mesh, or every nodelist of
// the file when mesh is empty.
func (f *File) FreeResources(mesh string) {
	if mesh == "" {
		f.cache.EvictFile(f.id)
		return
	}
	f.cache.EvictMesh(f.id, ResolvePath(f.cwd, mesh))
}

// MkDir creates a directory.
func (f *File) MkDir(name string) error {
	p := ResolvePath(f.cwd, name)
	return f.protect("mkdir", p, func(s *scope) error {
		if reserved(p) {
			return badArgs("%s is reserved", p)
		}
		_, err := s.createGroup(p)
		return err
	})
}

// SetDir changes the current directory.
func (f *File) SetDir(name string) error {
	p := ResolvePath(f.cwd, name)
	return f.protect("setdir", p, func(s *scope) error {
		g, err := s.openGroup(p)
		if err != nil {
			return err
		}
		f.cwd = g.Path()
		return nil
	})
}

// GetDir returns the current directory.
func (f *File) GetDir() string { return f.cwd }

// Entry is one item of a directory listing.
type Entry struct {
	Name string
	Path string
	Kind ObjectKind
	// Target is set for aliases.
	Target string
}

// List returns the entries of a directory, the current one when dir is
// empty. The reserved directory of generated names is not listed.
func (f *File) List(dir string) ([]Entry, error) {
	p := ResolvePath(f.cwd, dir)
	var out []Entry
	err := f.protect("list", p, func(s *scope) error {
		g, err := s.openGroup(p)
		if err != nil {
			return err
		}
		infos, err := g.List()
		if err != nil {
			return err
		}
		for _, info := range infos {
			if reserved(info.Path) {
				continue
			}
			e := Entry{Name: info.Name, Path: info.Path, Target: info.Target}
			if e.Kind, err = f.kindOf(s, info.Path); err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// kindOf classifies the entity at p, following aliases.
func (f *File) kindOf(s *scope, p string) (ObjectKind, error) {
	o, err := s.openObject(p)
	if err != nil {
		if errors.Is(err, container.ErrNotFound) {
			return KindInvalid, nil
		}
		return KindInvalid, err
	}
	switch o.Type() {
	case container.EntityGroup:
		return KindDir, nil
	case container.EntityDataset:
		return KindVariable, nil
	case container.EntityNamedType:
		return f.readTag(s, o)
	}
	return KindInvalid, nil
}

func (f *File) writeCounter(o *container.Object, v int64) error {
	ft, err := f.reg.File(dtype.Long, f.profile)
	if err != nil {
		return err
	}
	raw, err := dtype.Encode([]int64{v}, ft)
	if err != nil {
		return err
	}
	return o.SetAttr(counterAttr, ft, message.NewScalarDataspace(), raw)
}

// mintName reserves the next generated dataset name.
func (f *File) mintName(s *scope) (string, error) {
	f.nameMu.Lock()
	defer f.nameMu.Unlock()

	dir, attr, err := ParseAttrPath(JoinAttrPath(reservedDir, counterAttr))
	if err != nil {
		return "", err
	}
	g, err := s.openGroup(dir)
	if err != nil {
		return "", err
	}
	a, err := s.openAttr(&g.Object, attr)
	if err != nil {
		return "", err
	}
	v, err := f.readInts(a.Datatype(), a)
	if err != nil {
		return "", err
	}
	next := v[0]
	if err := f.writeCounter(&g.Object, next+1); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/#%06d", reservedDir, next), nil
}

type byteReader interface {
	Read() ([]byte, error)
}

// readInts reads an integer attribute of any stored width.
func (f *File) readInts(ft *message.Datatype, a byteReader) ([]int64, error) {
	raw, err := a.Read()
	if err != nil {
		return nil, err
	}
	k, err := f.reg.InferMemory(ft)
	if err != nil {
		return nil, err
	}
	v, err := dtype.Decode(ft, raw, k)
	if err != nil {
		return nil, err
	}
	out, err := dtype.AsInt64s(v)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, newError(Internal, "empty integer attribute")
	}
	return out, nil
}
