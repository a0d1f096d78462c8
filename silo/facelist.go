package silo

import (
	"sort"
)

// faceTables lists the faces of each zone shape as positions in the zone's
// node list, ordered so the face normal points out of the zone.
var faceTables = map[ZoneShape][][]int{
	ZoneTriangle: {{0, 1}, {1, 2}, {2, 0}},
	ZoneQuad:     {{0, 1}, {1, 2}, {2, 3}, {3, 0}},
	ZoneTet:      {{0, 2, 1}, {0, 1, 3}, {1, 2, 3}, {0, 3, 2}},
	ZonePyramid:  {{0, 3, 2, 1}, {0, 1, 4}, {1, 2, 4}, {2, 3, 4}, {3, 0, 4}},
	ZonePrism:    {{0, 3, 2, 1}, {0, 1, 5, 4}, {3, 4, 5, 2}, {0, 4, 3}, {1, 2, 5}},
	ZoneHex:      {{0, 3, 2, 1}, {4, 5, 6, 7}, {0, 1, 5, 4}, {1, 2, 6, 5}, {2, 3, 7, 6}, {3, 0, 4, 7}},
}

// shapeOf returns the shape of a group, inferring it from the node count
// when the zonelist does not name one.
func shapeOf(ndims int, sh ShapeGroup) (ZoneShape, error) {
	want := map[ZoneShape]int{ZoneTriangle: 3, ZoneQuad: 4, ZoneTet: 4, ZonePyramid: 5, ZonePrism: 6, ZoneHex: 8}
	t := sh.Type
	if t == 0 {
		switch {
		case ndims == 2 && sh.Size == 3:
			t = ZoneTriangle
		case ndims == 2 && sh.Size == 4:
			t = ZoneQuad
		case ndims == 3 && sh.Size == 4:
			t = ZoneTet
		case ndims == 3 && sh.Size == 5:
			t = ZonePyramid
		case ndims == 3 && sh.Size == 6:
			t = ZonePrism
		case ndims == 3 && sh.Size == 8:
			t = ZoneHex
		}
	}
	n, ok := want[t]
	if !ok {
		return 0, badArgs("no external faces for %d node zones of shape %d in %dD", sh.Size, sh.Type, ndims)
	}
	if n != sh.Size {
		return 0, badArgs("shape %d zones have %d nodes, not %d", t, n, sh.Size)
	}
	return t, nil
}

type faceKey [4]int32

func keyOf(nodes []int32) faceKey {
	k := faceKey{-1, -1, -1, -1}
	copy(k[:], nodes)
	sort.Slice(k[:len(nodes)], func(i, j int) bool { return k[i] < k[j] })
	return k
}

type face struct {
	nodes []int32
	zone  int32
	count int
}

// CalcExternalFacelist finds the faces of z that belong to exactly one
// zone. In 2D the faces are zone edges. Ghost zones named by LoOffset and
// HiOffset are skipped. Faces are grouped by node count in the order the
// sizes first appear, and ZoneNo holds the 0-based index of the owning zone.
func CalcExternalFacelist(z *Zonelist) (*Facelist, error) {
	if err := z.check(); err != nil {
		return nil, err
	}
	if z.NDims != 2 && z.NDims != 3 {
		return nil, badArgs("external faces need a 2D or 3D zonelist, not %dD", z.NDims)
	}
	var (
		faces []*face
		seen  = map[faceKey]*face{}
		off   int
		zone  int
	)
	last := z.NZones - z.HiOffset
	for _, sh := range z.Shapes {
		t, err := shapeOf(z.NDims, sh)
		if err != nil {
			return nil, err
		}
		for c := 0; c < sh.Count; c, zone, off = c+1, zone+1, off+sh.Size {
			if zone < z.LoOffset || zone >= last {
				continue
			}
			cell := z.Nodes[off : off+sh.Size]
			for _, tbl := range faceTables[t] {
				nodes := make([]int32, len(tbl))
				for i, p := range tbl {
					nodes[i] = cell[p]
				}
				k := keyOf(nodes)
				if fc, ok := seen[k]; ok {
					fc.count++
					continue
				}
				fc := &face{nodes: nodes, zone: int32(zone), count: 1}
				seen[k] = fc
				faces = append(faces, fc)
			}
		}
	}

	fl := &Facelist{NDims: z.NDims, Origin: z.Origin}
	group := map[int]int{}
	var sizes []int
	for _, fc := range faces {
		if fc.count != 1 {
			continue
		}
		if _, ok := group[len(fc.nodes)]; !ok {
			group[len(fc.nodes)] = len(sizes)
			sizes = append(sizes, len(fc.nodes))
		}
	}
	fl.ShapeSize = sizes
	fl.ShapeCnt = make([]int, len(sizes))
	for _, size := range sizes {
		for _, fc := range faces {
			if fc.count != 1 || len(fc.nodes) != size {
				continue
			}
			fl.Nodes = append(fl.Nodes, fc.nodes...)
			fl.ZoneNo = append(fl.ZoneNo, fc.zone)
			fl.ShapeCnt[group[size]]++
			fl.NFaces++
		}
	}
	return fl, nil
}
