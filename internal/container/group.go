package container

import (
	"bytes"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// Object is the common part of every open entity.
type Object struct {
	*handle
	path string
	typ  EntityType
}

// Path returns the resolved absolute path of the object.
func (o *Object) Path() string { return o.path }

// Type returns the entity type.
func (o *Object) Type() EntityType { return o.typ }

// Group is an open group.
type Group struct {
	Object
}

// Info describes one entry of a group listing.
type Info struct {
	Name   string
	Path   string
	Type   EntityType
	Target string // soft links only
}

// CreateGroup creates a group. The parent must exist.
func (f *File) CreateGroup(p string) (*Group, error) {
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	var full string
	err = f.update("create group", p, func(tx *bolt.Tx) error {
		if full, err = requireParent(tx, p); err != nil {
			return err
		}
		return putRecord(tx, full, &record{Type: EntityGroup})
	})
	if err != nil {
		return nil, err
	}
	return f.newGroup(full)
}

// OpenGroup opens a group, following soft links.
func (f *File) OpenGroup(p string) (*Group, error) {
	full, rec, err := f.lookup("open group", p)
	if err != nil {
		return nil, err
	}
	if rec.Type != EntityGroup {
		err := errors.Wrapf(ErrNotGroup, "%s", full)
		f.stack.Push("open group", p, err)
		return nil, err
	}
	return f.newGroup(full)
}

func (f *File) newGroup(full string) (*Group, error) {
	h, err := f.acquire()
	if err != nil {
		return nil, err
	}
	return &Group{Object{handle: h, path: full, typ: EntityGroup}}, nil
}

func (f *File) lookup(op, p string) (string, *record, error) {
	p, err := cleanPath(p)
	if err != nil {
		f.stack.Push(op, p, err)
		return "", nil, err
	}
	var (
		full string
		rec  *record
	)
	err = f.view(op, p, func(tx *bolt.Tx) error {
		full, rec, err = resolve(tx, p)
		return err
	})
	return full, rec, err
}

// Stat resolves p and returns its entity type and resolved path.
func (f *File) Stat(p string) (EntityType, string, error) {
	full, rec, err := f.lookup("stat", p)
	if err != nil {
		return 0, "", err
	}
	return rec.Type, full, nil
}

// Exists reports whether p resolves to an entity. It does not touch the
// error stack.
func (f *File) Exists(p string) bool {
	p, err := cleanPath(p)
	if err != nil {
		return false
	}
	return f.db.View(func(tx *bolt.Tx) error {
		_, _, err := resolve(tx, p)
		return err
	}) == nil
}

// CreateSoftLink makes p a symbolic alias of target. The target need not
// exist yet.
func (f *File) CreateSoftLink(p, target string) error {
	p, err := cleanPath(p)
	if err != nil {
		return err
	}
	return f.update("create link", p, func(tx *bolt.Tx) error {
		full, err := requireParent(tx, p)
		if err != nil {
			return err
		}
		return putRecord(tx, full, &record{Type: EntitySoftLink, Target: target})
	})
}

// Readlink returns the target of the soft link p without following it.
func (f *File) Readlink(p string) (string, error) {
	p, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	var target string
	err = f.view("read link", p, func(tx *bolt.Tx) error {
		rec, err := getRecord(tx, p)
		if err != nil {
			return err
		}
		if rec.Type != EntitySoftLink {
			return errors.Errorf("%s is a %s, not a link", p, rec.Type)
		}
		target = rec.Target
		return nil
	})
	return target, err
}

// List returns the direct children of the group, sorted by name. Soft
// links are reported as links, not followed.
func (g *Group) List() ([]Info, error) {
	if err := g.check(); err != nil {
		return nil, err
	}
	prefix := g.path + "/"
	if g.path == "/" {
		prefix = "/"
	}
	var out []Info
	err := g.f.view("list", g.path, func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketObjects).Cursor()
		for k, v := c.Seek([]byte(prefix)); k != nil && bytes.HasPrefix(k, []byte(prefix)); k, v = c.Next() {
			rest := string(k[len(prefix):])
			if rest == "" || strings.Contains(rest, "/") {
				continue
			}
			rec, err := decodeRecord(v)
			if err != nil {
				return errors.Wrapf(err, "%s", k)
			}
			out = append(out, Info{Name: rest, Path: string(k), Type: rec.Type, Target: rec.Target})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

// Delete removes the entity at p (not following a final soft link), its
// attributes, its stored data, and everything below it.
func (f *File) Delete(p string) error {
	p, err := cleanPath(p)
	if err != nil {
		return err
	}
	if p == "/" {
		return errors.Wrap(ErrBadPath, "cannot delete root")
	}
	return f.update("delete", p, func(tx *bolt.Tx) error {
		parent, _, err := resolve(tx, path.Dir(p))
		if err != nil {
			return err
		}
		full := path.Join(parent, path.Base(p))
		if tx.Bucket(bucketObjects).Get([]byte(full)) == nil {
			return errors.Wrapf(ErrNotFound, "%s", full)
		}
		for _, name := range [][]byte{bucketObjects, bucketChunks} {
			if err := deletePrefix(tx.Bucket(name), full, full+"/"); err != nil {
				return err
			}
		}
		return deletePrefix(tx.Bucket(bucketAttrs), "", full+"\x00", full+"/")
	})
}

func deletePrefix(b *bolt.Bucket, exact string, prefixes ...string) error {
	var keys [][]byte
	if exact != "" && b.Get([]byte(exact)) != nil {
		keys = append(keys, []byte(exact))
	}
	c := b.Cursor()
	for _, prefix := range prefixes {
		for k, _ := c.Seek([]byte(prefix)); k != nil && bytes.HasPrefix(k, []byte(prefix)); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
