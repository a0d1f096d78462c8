package silo

import (
	"strings"

	"github.com/robert-malhotra/go-silo/internal/dtype"
	"github.com/robert-malhotra/go-silo/internal/schema"
)

// Material assigns a material to every zone of a mesh. Zones holding
// several materials have a negative MatList entry -(i+1) pointing at the
// head of a chain in the mix arrays.
type Material struct {
	Mesh     string
	MatNos   []int32
	MatNames []string
	MatList  []int32
	Dims     []int
	Origin   int

	MixVF   any
	MixNext []int32
	MixMat  []int32
	MixZone []int32
}

func (m *Material) check() (int, error) {
	if len(m.MatNos) == 0 {
		return 0, badArgs("material has no material numbers")
	}
	if m.MatNames != nil && len(m.MatNames) != len(m.MatNos) {
		return 0, badArgs("%d material names for %d materials", len(m.MatNames), len(m.MatNos))
	}
	if len(m.Dims) == 0 || len(m.Dims) > maxDims {
		return 0, badArgs("material dims %v", m.Dims)
	}
	if product(m.Dims) != len(m.MatList) {
		return 0, badArgs("matlist has %d entries, dims %v want %d", len(m.MatList), m.Dims, product(m.Dims))
	}
	kind, mixlen, err := dataKind([]any{m.MixVF})
	if err != nil {
		return 0, err
	}
	if mixlen > 0 && !kind.IsFloat() {
		return 0, badArgs("mix_vf must be float data, got %s", kind)
	}
	for _, a := range [][]int32{m.MixNext, m.MixMat, m.MixZone} {
		if a != nil && len(a) != mixlen {
			return 0, badArgs("mix arrays have %d entries, mix_vf has %d", len(a), mixlen)
		}
	}
	return mixlen, nil
}

// PutMaterial writes a material.
func (f *File) PutMaterial(name string, m *Material) error {
	p := ResolvePath(f.cwd, name)
	return f.protect("put material", p, func(s *scope) error {
		mixlen, err := m.check()
		if err != nil {
			return err
		}
		arrays := []any{m.MatList, m.MatNos, m.MixNext, m.MixMat, m.MixZone}
		names := make([]string, len(arrays))
		for i, suffix := range []string{"_matlist", "_matnos", "_mix_next", "_mix_mat", "_mix_zone"} {
			if names[i], err = f.putComponent(s, arrays[i], nil, "", p+suffix, roleGeneric, nil); err != nil {
				return err
			}
		}
		vf, err := f.putComponent(s, m.MixVF, nil, "", p+"_mix_vf", roleGeneric, nil)
		if err != nil {
			return err
		}
		var matnames string
		if m.MatNames != nil {
			joined := []byte(strings.Join(m.MatNames, ";"))
			if matnames, err = f.putComponent(s, joined, nil, "", p+"_matnames", roleNone, nil); err != nil {
				return err
			}
		}
		datatype := dtype.NoType
		if mixlen > 0 {
			datatype, _, _ = dtype.KindOf(m.MixVF)
		}
		sch := schema.New("material").
			String("meshid", ResolvePath(f.cwd, m.Mesh)).Always().
			Int("ndims", len(m.Dims)).Always().
			Int("nmat", len(m.MatNos)).Always().
			IntTriple("dims", triple(m.Dims)).
			Int("origin", m.Origin).
			Int("mixlen", mixlen).
			Int("datatype", int(datatype)).
			String("matlist", names[0]).
			String("matnos", names[1]).
			String("mix_next", names[2]).
			String("mix_mat", names[3]).
			String("mix_zone", names[4]).
			String("mix_vf", vf).
			String("matnames", matnames)
		return f.putHeader(s, p, KindMaterial, sch)
	})
}

// GetMaterial reads a material. The zone list is read under MaskMaterial
// and the mix arrays under MaskMixed.
func (f *File) GetMaterial(name string) (*Material, error) {
	p := ResolvePath(f.cwd, name)
	var out *Material
	err := f.protect("get material", p, func(s *scope) error {
		rec, _, err := f.getHeader(s, p, KindMaterial)
		if err != nil {
			return err
		}
		ndims := rec.Int("ndims")
		if ndims < 1 || ndims > maxDims {
			return newError(Internal, "%s has %d dims", p, ndims)
		}
		dims := rec.IntTriple("dims")
		m := &Material{
			Mesh:   rec.String("meshid"),
			Dims:   append([]int(nil), dims[:ndims]...),
			Origin: rec.Int("origin"),
		}
		if m.MatNos, err = f.getInts(s, rec, "matnos"); err != nil {
			return err
		}
		names, err := f.getArray(s, rec, "matnames", nil)
		if err != nil {
			return err
		}
		if b, ok := names.([]byte); ok {
			m.MatNames = strings.Split(string(b), ";")
		}
		if f.wants(MaskMaterial) {
			if m.MatList, err = f.getInts(s, rec, "matlist"); err != nil {
				return err
			}
		}
		if f.wants(MaskMixed) && rec.Int("mixlen") > 0 {
			if m.MixVF, err = f.getArray(s, rec, "mix_vf", nil); err != nil {
				return err
			}
			if m.MixNext, err = f.getInts(s, rec, "mix_next"); err != nil {
				return err
			}
			if m.MixMat, err = f.getInts(s, rec, "mix_mat"); err != nil {
				return err
			}
			if m.MixZone, err = f.getInts(s, rec, "mix_zone"); err != nil {
				return err
			}
		}
		out = m
		return nil
	})
	return out, err
}
