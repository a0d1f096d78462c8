package container

import (
	"bytes"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/robert-malhotra/go-silo/internal/message"
)

// ErrSize is returned when a data buffer does not match its type and space.
var ErrSize = errors.New("data size does not match datatype and dataspace")

// NamedType is an open committed datatype.
type NamedType struct {
	Object
	dt *message.Datatype
}

// Datatype returns the committed datatype.
func (t *NamedType) Datatype() *message.Datatype {
	return t.dt
}

// CommitType stores dt as a named type at p.
func (f *File) CommitType(p string, dt *message.Datatype) (*NamedType, error) {
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	var full string
	err = f.update("commit type", p, func(tx *bolt.Tx) error {
		if full, err = requireParent(tx, p); err != nil {
			return err
		}
		return putRecord(tx, full, &record{Type: EntityNamedType, Datatype: dt})
	})
	if err != nil {
		return nil, err
	}
	h, err := f.acquire()
	if err != nil {
		return nil, err
	}
	return &NamedType{Object: Object{handle: h, path: full, typ: EntityNamedType}, dt: dt}, nil
}

// OpenType opens a committed datatype.
func (f *File) OpenType(p string) (*NamedType, error) {
	full, rec, err := f.lookup("open type", p)
	if err != nil {
		return nil, err
	}
	if rec.Type != EntityNamedType {
		err := errors.Wrapf(ErrNotType, "%s is a %s", full, rec.Type)
		f.stack.Push("open type", p, err)
		return nil, err
	}
	h, err := f.acquire()
	if err != nil {
		return nil, err
	}
	return &NamedType{Object: Object{handle: h, path: full, typ: EntityNamedType}, dt: rec.Datatype}, nil
}

// OpenObject opens any entity, following soft links.
func (f *File) OpenObject(p string) (*Object, error) {
	full, rec, err := f.lookup("open object", p)
	if err != nil {
		return nil, err
	}
	h, err := f.acquire()
	if err != nil {
		return nil, err
	}
	return &Object{handle: h, path: full, typ: rec.Type}, nil
}

// Attribute is an open attribute.
type Attribute struct {
	*handle
	name string
	rec  *attrRecord
}

func (a *Attribute) Name() string {
	return a.name
}

func (a *Attribute) Datatype() *message.Datatype {
	return a.rec.Datatype
}

func (a *Attribute) Dataspace() *message.Dataspace {
	return a.rec.Space
}

// Read returns the attribute value in its stored layout.
func (a *Attribute) Read() ([]byte, error) {
	if err := a.check(); err != nil {
		return nil, err
	}
	return append([]byte(nil), a.rec.Data...), nil
}

func attrKey(obj, name string) []byte {
	return []byte(obj + "\x00" + name)
}

func checkSize(dt *message.Datatype, space *message.Dataspace, n int) error {
	want := space.NumElements() * uint64(dt.Size)
	if uint64(n) != want {
		return errors.Wrapf(ErrSize, "%d bytes, want %d", n, want)
	}
	return nil
}

// SetAttr creates or overwrites an attribute. The value always replaces
// the previous one whole.
func (o *Object) SetAttr(name string, dt *message.Datatype, space *message.Dataspace, data []byte) error {
	if err := o.check(); err != nil {
		return err
	}
	if err := checkSize(dt, space, len(data)); err != nil {
		o.f.stack.Push("write attribute", o.path+"@"+name, err)
		return err
	}
	raw, err := (&attrRecord{Datatype: dt, Space: space, Data: data}).encode()
	if err != nil {
		return err
	}
	return o.f.update("write attribute", o.path+"@"+name, func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAttrs).Put(attrKey(o.path, name), raw)
	})
}

// OpenAttr opens an attribute of the object.
func (o *Object) OpenAttr(name string) (*Attribute, error) {
	if err := o.check(); err != nil {
		return nil, err
	}
	var rec *attrRecord
	err := o.f.view("open attribute", o.path+"@"+name, func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketAttrs).Get(attrKey(o.path, name))
		if v == nil {
			return errors.Wrapf(ErrNotFound, "attribute %s of %s", name, o.path)
		}
		var err error
		rec, err = decodeAttr(v)
		return err
	})
	if err != nil {
		return nil, err
	}
	h, err := o.f.acquire()
	if err != nil {
		return nil, err
	}
	return &Attribute{handle: h, name: name, rec: rec}, nil
}

// HasAttr reports whether the object carries the attribute.
func (o *Object) HasAttr(name string) bool {
	found := false
	_ = o.f.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketAttrs).Get(attrKey(o.path, name)) != nil
		return nil
	})
	return found
}

// Attrs lists the object's attribute names in key order.
func (o *Object) Attrs() ([]string, error) {
	if err := o.check(); err != nil {
		return nil, err
	}
	var names []string
	prefix := []byte(o.path + "\x00")
	err := o.f.view("list attributes", o.path, func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAttrs).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			names = append(names, string(k[len(prefix):]))
		}
		return nil
	})
	return names, err
}

// DeleteAttr removes an attribute.
func (o *Object) DeleteAttr(name string) error {
	if err := o.check(); err != nil {
		return err
	}
	return o.f.update("delete attribute", o.path+"@"+name, func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAttrs).Delete(attrKey(o.path, name))
	})
}
