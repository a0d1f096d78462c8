package silo

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/robert-malhotra/go-silo/internal/container"
	"github.com/robert-malhotra/go-silo/internal/dtype"
	"github.com/robert-malhotra/go-silo/internal/message"
	"github.com/robert-malhotra/go-silo/internal/schema"
)

// ObjectKind is the tag stored with every object. The values are
// persisted and must not change.
type ObjectKind int32

const (
	KindInvalid   ObjectKind = 0
	KindQuadRect  ObjectKind = 130
	KindQuadCurv  ObjectKind = 131
	KindQuadMesh  ObjectKind = 500
	KindQuadVar   ObjectKind = 501
	KindUcdMesh   ObjectKind = 510
	KindUcdVar    ObjectKind = 511
	KindMaterial  ObjectKind = 530
	KindFacelist  ObjectKind = 550
	KindZonelist  ObjectKind = 560
	KindCurve     ObjectKind = 590
	KindPointMesh ObjectKind = 610
	KindDir       ObjectKind = 613
	KindVariable  ObjectKind = 620
)

var kindNames = map[ObjectKind]string{
	KindInvalid:   "invalid",
	KindQuadRect:  "quadrect",
	KindQuadCurv:  "quadcurv",
	KindQuadMesh:  "quadmesh",
	KindQuadVar:   "quadvar",
	KindUcdMesh:   "ucdmesh",
	KindUcdVar:    "ucdvar",
	KindMaterial:  "material",
	KindFacelist:  "facelist",
	KindZonelist:  "zonelist",
	KindCurve:     "curve",
	KindPointMesh: "pointmesh",
	KindDir:       "directory",
	KindVariable:  "variable",
}

func (k ObjectKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int32(k))
}

const (
	tagAttr  = "silo_type"
	blobAttr = "silo"
)

// putHeader creates the object placeholder if needed and replaces its tag
// and header blob.
func (f *File) putHeader(s *scope, name string, kind ObjectKind, sch *schema.Schema) error {
	compiled, err := sch.Build(f.reg, f.profile)
	if err != nil {
		return &Error{Code: BadArgs, Context: name, Err: err}
	}
	p := ResolvePath(f.cwd, name)
	if reserved(p) {
		return badArgs("%s is reserved", p)
	}

	var obj *container.Object
	if f.c.Exists(p) {
		if obj, err = s.openObject(p); err != nil {
			return err
		}
		if obj.Type() != container.EntityNamedType {
			return newError(CallFailed, "%s exists and is a %s", p, obj.Type())
		}
	} else {
		t, err := s.commitType(p, compiled.File)
		if err != nil {
			return err
		}
		obj = &t.Object
	}

	ft, err := f.reg.File(dtype.Int, f.profile)
	if err != nil {
		return err
	}
	tag, err := dtype.Encode([]int32{int32(kind)}, ft)
	if err != nil {
		return err
	}
	if err := obj.SetAttr(tagAttr, ft, message.NewScalarDataspace(), tag); err != nil {
		return err
	}
	return obj.SetAttr(blobAttr, compiled.File, message.NewScalarDataspace(), compiled.Blob)
}

// readTag returns the object tag of an open entity.
func (f *File) readTag(s *scope, o *container.Object) (ObjectKind, error) {
	a, err := s.openAttr(o, tagAttr)
	if err != nil {
		if errors.Is(err, container.ErrNotFound) {
			return KindInvalid, nil
		}
		return KindInvalid, err
	}
	v, err := f.readInts(a.Datatype(), a)
	if err != nil {
		return KindInvalid, err
	}
	return ObjectKind(v[0]), nil
}

// getHeader reads the header of name. With no want, any kind is
// accepted.
func (f *File) getHeader(s *scope, name string, want ...ObjectKind) (*schema.Record, ObjectKind, error) {
	p := ResolvePath(f.cwd, name)
	o, err := s.openObject(p)
	if err != nil {
		return nil, KindInvalid, err
	}
	if o.Type() != container.EntityNamedType {
		return nil, KindInvalid, &Error{Code: TypeMismatch, Context: p,
			Err: errors.Errorf("%s is a %s, not an object", p, o.Type())}
	}
	kind, err := f.readTag(s, o)
	if err != nil {
		return nil, KindInvalid, err
	}
	if len(want) > 0 {
		ok := false
		for _, w := range want {
			ok = ok || w == kind
		}
		if !ok {
			return nil, kind, &Error{Code: TypeMismatch, Context: p,
				Err: errors.Errorf("%s is a %s, want %s", p, kind, want[0])}
		}
	}

	a, err := s.openAttr(o, blobAttr)
	if err != nil {
		return nil, kind, err
	}
	blob, err := a.Read()
	if err != nil {
		return nil, kind, err
	}
	mem, err := schema.MemoryFor(f.reg, a.Datatype())
	if err != nil {
		return nil, kind, err
	}
	rec, err := schema.Decode(f.reg, a.Datatype(), blob, mem)
	if err != nil {
		return nil, kind, err
	}
	return rec, kind, nil
}

// ObjectKind returns the kind of the named object, KindDir for
// directories and KindVariable for plain datasets.
func (f *File) ObjectKind(name string) (ObjectKind, error) {
	p := ResolvePath(f.cwd, name)
	var kind ObjectKind
	err := f.protect("object kind", p, func(s *scope) error {
		if !f.c.Exists(p) {
			return newError(NotFound, "%s", p)
		}
		var err error
		kind, err = f.kindOf(s, p)
		return err
	})
	return kind, err
}

// ComponentType is the type of one member of a generic object.
type ComponentType int

const (
	ComponentInvalid ComponentType = iota
	ComponentInt
	ComponentFloat
	ComponentDouble
	ComponentString
	// ComponentVariable members name a dataset holding the data.
	ComponentVariable
)

func (t ComponentType) String() string {
	switch t {
	case ComponentInt:
		return "int"
	case ComponentFloat:
		return "float"
	case ComponentDouble:
		return "double"
	case ComponentString:
		return "string"
	case ComponentVariable:
		return "variable"
	}
	return "invalid"
}

// Object is the generic view of any stored object.
type Object struct {
	Name       string
	Kind       ObjectKind
	Components []string

	rec   *schema.Record
	types map[string]ComponentType
}

// Value returns the raw header value of a component: int64, float64,
// string, []int64 or []float64.
func (o *Object) Value(comp string) any {
	return o.rec.Value(comp)
}

// Type returns the type of a component.
func (o *Object) Type(comp string) ComponentType {
	return o.types[comp]
}

// GetObject reads any object generically.
func (f *File) GetObject(name string) (*Object, error) {
	p := ResolvePath(f.cwd, name)
	var out *Object
	err := f.protect("get object", p, func(s *scope) error {
		var err error
		out, err = f.getObject(s, p)
		return err
	})
	return out, err
}

func (f *File) getObject(s *scope, p string) (*Object, error) {
	rec, kind, err := f.getHeader(s, p)
	if err != nil {
		return nil, err
	}
	o, err := s.openObject(p)
	if err != nil {
		return nil, err
	}
	a, err := s.openAttr(o, blobAttr)
	if err != nil {
		return nil, err
	}
	out := &Object{Name: p, Kind: kind, Components: rec.Names(), rec: rec, types: map[string]ComponentType{}}
	for _, m := range a.Datatype().Members {
		out.types[m.Name] = f.componentType(m.Type, rec.String(m.Name))
	}
	return out, nil
}

func (f *File) componentType(dt *message.Datatype, val string) ComponentType {
	switch dt.Class {
	case message.ClassString:
		if val != "" && f.c.Exists(ResolvePath(f.cwd, val)) {
			if t, _, err := f.c.Stat(ResolvePath(f.cwd, val)); err == nil && t == container.EntityDataset {
				return ComponentVariable
			}
		}
		return ComponentString
	case message.ClassArray:
		return f.componentType(dt.BaseType, "")
	case message.ClassFloatPoint:
		if dt.Size <= 4 {
			return ComponentFloat
		}
		return ComponentDouble
	case message.ClassFixedPoint:
		return ComponentInt
	}
	return ComponentInvalid
}

// ComponentType returns the type of one component of an object.
func (f *File) ComponentType(name, comp string) (ComponentType, error) {
	o, err := f.GetObject(name)
	if err != nil {
		return ComponentInvalid, err
	}
	t, ok := o.types[comp]
	if !ok {
		return ComponentInvalid, &Error{Code: NotFound, Op: "component type", Context: name,
			Err: errors.Errorf("no component %q", comp)}
	}
	return t, nil
}

// Component returns the value of one component. Variable components are
// read from their dataset.
func (f *File) Component(name, comp string) (any, error) {
	p := ResolvePath(f.cwd, name)
	var out any
	err := f.protect("get component", p, func(s *scope) error {
		o, err := f.getObject(s, p)
		if err != nil {
			return err
		}
		switch o.types[comp] {
		case ComponentInvalid:
			return newError(NotFound, "no component %q in %s", comp, p)
		case ComponentVariable:
			dp := o.rec.String(comp)
			order, err := f.componentOrder(s, o, dp)
			if err != nil {
				return err
			}
			v, _, err := f.getComponent(s, dp, false, order)
			out = v
			return err
		}
		out = o.rec.Value(comp)
		return nil
	})
	return out, err
}

// componentOrder finds the mesh order a field compressed component of o was
// written in. Unstructured data takes it from the mesh connectivity,
// structured data from the dataset extents.
func (f *File) componentOrder(s *scope, o *Object, dp string) (*meshOrder, error) {
	field, err := f.hasFilter(s, dp, message.FilterField)
	if err != nil || !field {
		return nil, err
	}
	switch o.Kind {
	case KindUcdVar:
		return f.meshOrderFor(s, o.rec.String("meshid"))
	case KindUcdMesh:
		return f.zonelistOrder(s, o.rec.String("zonelist"), o.Name)
	}
	ds, err := s.openDataset(dp)
	if err != nil {
		return nil, err
	}
	return gridOrder(toInts(ds.Dataspace().Dimensions)), nil
}
