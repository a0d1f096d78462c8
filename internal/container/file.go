package container

import (
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/robert-malhotra/go-silo/internal/filter"
)

// Format is the value of the "format" meta key.
const Format = "go-silo container v1"

var (
	ErrNotFound   = errors.New("object not found")
	ErrExists     = errors.New("object already exists")
	ErrClosed     = errors.New("file or handle closed")
	ErrNotGroup   = errors.New("not a group")
	ErrNotDataset = errors.New("not a dataset")
	ErrNotType    = errors.New("not a named type")
	ErrReadOnly   = errors.New("file opened read-only")
	ErrCorrupt    = errors.New("corrupt container")
	ErrBadPath    = errors.New("invalid path")
	ErrLinkLoop   = errors.New("too many levels of soft links")
)

var (
	bucketMeta    = []byte("meta")
	bucketObjects = []byte("objects")
	bucketAttrs   = []byte("attrs")
	bucketChunks  = []byte("chunks")
)

const maxLinkDepth = 16

// File is an open container.
type File struct {
	db       *bolt.DB
	path     string
	readOnly bool

	// Filters resolves filter pipelines for this file's datasets.
	Filters *filter.Registry

	stack ErrorStack

	mu      sync.Mutex
	handles int
	closed  bool
}

// Option configures how a container is opened.
type Option func(*options)

type options struct {
	readOnly bool
	timeout  time.Duration
	noSync   bool
}

// WithReadOnly opens the file without write access.
func WithReadOnly(ro bool) Option {
	return func(o *options) { o.readOnly = ro }
}

// WithTimeout bounds the wait for the file lock.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithNoSync skips fsync on commit.
func WithNoSync(on bool) Option {
	return func(o *options) { o.noSync = on }
}

func buildOptions(opts []Option) options {
	o := options{timeout: time.Second}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Create creates a new container. An existing file is replaced when
// truncate is set and rejected with ErrExists otherwise.
func Create(filename string, truncate bool, opts ...Option) (*File, error) {
	if _, err := os.Stat(filename); err == nil {
		if !truncate {
			return nil, errors.Wrapf(ErrExists, "create %s", filename)
		}
		if err := os.Remove(filename); err != nil {
			return nil, errors.Wrapf(err, "removing %s", filename)
		}
	}
	o := buildOptions(opts)
	o.readOnly = false
	f, err := open(filename, o)
	if err != nil {
		return nil, err
	}
	err = f.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketObjects, bucketAttrs, bucketChunks} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		if err := tx.Bucket(bucketMeta).Put([]byte("format"), []byte(Format)); err != nil {
			return err
		}
		return putRecord(tx, "/", &record{Type: EntityGroup})
	})
	if err != nil {
		f.db.Close()
		return nil, errors.Wrapf(err, "initializing %s", filename)
	}
	return f, nil
}

// Open opens an existing container.
func Open(filename string, opts ...Option) (*File, error) {
	if _, err := os.Stat(filename); err != nil {
		return nil, errors.Wrapf(ErrNotFound, "open %s", filename)
	}
	f, err := open(filename, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	var format []byte
	err = f.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if b == nil || tx.Bucket(bucketObjects) == nil {
			return errors.Wrap(ErrCorrupt, "missing buckets")
		}
		format = b.Get([]byte("format"))
		return nil
	})
	if err == nil && string(format) != Format {
		err = errors.Wrapf(ErrCorrupt, "unknown format %q", format)
	}
	if err != nil {
		f.db.Close()
		return nil, errors.Wrapf(err, "open %s", filename)
	}
	return f, nil
}

func open(filename string, o options) (*File, error) {
	db, err := bolt.Open(filename, 0600, &bolt.Options{
		Timeout:  o.timeout,
		ReadOnly: o.readOnly,
		NoSync:   o.noSync,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", filename)
	}
	return &File{
		db:       db,
		path:     filename,
		readOnly: o.readOnly,
		Filters:  filter.NewRegistry(),
	}, nil
}

// Path returns the file name.
func (f *File) Path() string { return f.path }

// ReadOnly reports whether the file was opened read-only.
func (f *File) ReadOnly() bool { return f.readOnly }

// Errors returns the file's diagnostic stack.
func (f *File) Errors() *ErrorStack { return &f.stack }

// OpenHandles returns the number of objects opened and not yet closed.
func (f *File) OpenHandles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles
}

// Close closes the file. Handles still open are invalidated.
func (f *File) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()
	return f.db.Close()
}

// SetMeta stores a driver metadata value.
func (f *File) SetMeta(key string, value []byte) error {
	return f.update("set meta", key, func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put([]byte(key), value)
	})
}

// Meta returns a driver metadata value, or nil if unset.
func (f *File) Meta(key string) ([]byte, error) {
	var out []byte
	err := f.view("get meta", key, func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get([]byte(key)); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

// Size returns the size of the underlying file in bytes.
func (f *File) Size() int64 {
	var n int64
	_ = f.db.View(func(tx *bolt.Tx) error {
		n = tx.Size()
		return nil
	})
	return n
}

func (f *File) acquire() (*handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	f.handles++
	return &handle{f: f}, nil
}

// handle is embedded in every open object.
type handle struct {
	f      *File
	mu     sync.Mutex
	closed bool
}

// Close releases the handle. Closing twice returns ErrClosed and does not
// release again.
func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.closed = true
	h.f.mu.Lock()
	h.f.handles--
	h.f.mu.Unlock()
	return nil
}

func (h *handle) check() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	return nil
}

func (f *File) update(op, p string, fn func(tx *bolt.Tx) error) error {
	if f.readOnly {
		err := errors.Wrapf(ErrReadOnly, "%s %s", op, p)
		f.stack.Push(op, p, err)
		return err
	}
	if err := f.db.Update(fn); err != nil {
		f.stack.Push(op, p, err)
		return errors.Wrapf(err, "%s %s", op, p)
	}
	return nil
}

func (f *File) view(op, p string, fn func(tx *bolt.Tx) error) error {
	if err := f.db.View(fn); err != nil {
		f.stack.Push(op, p, err)
		return errors.Wrapf(err, "%s %s", op, p)
	}
	return nil
}

// cleanPath validates an absolute path and normalizes it.
func cleanPath(p string) (string, error) {
	if !strings.HasPrefix(p, "/") || strings.ContainsRune(p, 0) {
		return "", errors.Wrapf(ErrBadPath, "%q", p)
	}
	return path.Clean(p), nil
}

func getRecord(tx *bolt.Tx, p string) (*record, error) {
	v := tx.Bucket(bucketObjects).Get([]byte(p))
	if v == nil {
		return nil, errors.Wrapf(ErrNotFound, "%s", p)
	}
	return decodeRecord(v)
}

func putRecord(tx *bolt.Tx, p string, rec *record) error {
	raw, err := rec.encode()
	if err != nil {
		return err
	}
	return tx.Bucket(bucketObjects).Put([]byte(p), raw)
}

// resolve follows soft links component by component and returns the
// target path and its record.
func resolve(tx *bolt.Tx, p string) (string, *record, error) {
	for depth := 0; depth <= maxLinkDepth; depth++ {
		cur := "/"
		parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
		redirected := false
		for i, part := range parts {
			if part == "" {
				continue
			}
			cur = path.Join(cur, part)
			rec, err := getRecord(tx, cur)
			if err != nil {
				return "", nil, err
			}
			if rec.Type == EntitySoftLink {
				target := rec.Target
				if !strings.HasPrefix(target, "/") {
					target = path.Join(path.Dir(cur), target)
				}
				p = path.Join(append([]string{target}, parts[i+1:]...)...)
				redirected = true
				break
			}
			if i < len(parts)-1 && rec.Type != EntityGroup {
				return "", nil, errors.Wrapf(ErrNotGroup, "%s", cur)
			}
		}
		if !redirected {
			rec, err := getRecord(tx, cur)
			if err != nil {
				return "", nil, err
			}
			return cur, rec, nil
		}
	}
	return "", nil, errors.Wrapf(ErrLinkLoop, "%s", p)
}

// requireParent checks that the parent of p resolves to a group and
// returns the resolved path for p.
func requireParent(tx *bolt.Tx, p string) (string, error) {
	if p == "/" {
		return "", errors.Wrap(ErrExists, "/")
	}
	parent, rec, err := resolve(tx, path.Dir(p))
	if err != nil {
		return "", err
	}
	if rec.Type != EntityGroup {
		return "", errors.Wrapf(ErrNotGroup, "%s", parent)
	}
	full := path.Join(parent, path.Base(p))
	if tx.Bucket(bucketObjects).Get([]byte(full)) != nil {
		return "", errors.Wrapf(ErrExists, "%s", full)
	}
	return full, nil
}
