package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/robert-malhotra/go-silo/internal/dtype"
	"github.com/robert-malhotra/go-silo/internal/message"
)

func nineScalars(set []bool) *Schema {
	s := New("test")
	for i := 0; i < 9; i++ {
		v := 0
		if set[i] {
			v = i + 1
		}
		s.Int("m"+string(rune('a'+i)), v)
	}
	return s
}

func TestFileLayoutOmitsAbsentMembers(t *testing.T) {
	reg := dtype.NewRegistry(dtype.DefaultMemoryModel)
	c, err := New("quad").
		Int("ndims", 2).
		Int("coordtype", 0).
		Double("time", 1.5).
		String("label", "").
		String("name", "mesh").
		Build(reg, dtype.BigEndian32)
	if err != nil {
		t.Fatal(err)
	}

	if len(c.Memory.Members) != 5 {
		t.Fatalf("memory layout has %d members, want 5", len(c.Memory.Members))
	}

	want := []struct {
		name string
		off  uint32
	}{
		{"ndims", 0},
		{"time", 4},
		{"name", 12},
	}
	if len(c.File.Members) != len(want) {
		t.Fatalf("file layout = %s, want %d members", c.File, len(want))
	}
	for i, w := range want {
		m := c.File.Members[i]
		if m.Name != w.name || m.ByteOffset != w.off {
			t.Errorf("file member %d = %s@%d, want %s@%d", i, m.Name, m.ByteOffset, w.name, w.off)
		}
	}
	if c.File.Size != 17 || len(c.Blob) != 17 {
		t.Errorf("file size %d blob %d, want 17", c.File.Size, len(c.Blob))
	}
}

func TestMemoryLayoutAlignment(t *testing.T) {
	reg := dtype.NewRegistry(dtype.DefaultMemoryModel)
	c, err := New("align").Int("a", 1).Double("b", 2).Int("c", 3).Build(reg, dtype.Local)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Memory.Member("b").ByteOffset; got != 8 {
		t.Errorf("b offset = %d, want 8", got)
	}
	if c.Memory.Size != 24 {
		t.Errorf("memory size = %d, want 24", c.Memory.Size)
	}
	if got := c.File.Member("b").ByteOffset; got != 4 {
		t.Errorf("packed b offset = %d, want 4", got)
	}
}

func TestRoundTripAcrossProfiles(t *testing.T) {
	reg := dtype.NewRegistry(dtype.DefaultMemoryModel)
	for _, p := range []dtype.Profile{dtype.Local, dtype.BigEndian32, dtype.BigEndian64, dtype.LittleEndian} {
		s := New("mesh").
			Int("ndims", 3).
			Long("nnodes", 1<<40).
			Float("dtime", 0.25).
			Double("time", 12.5).
			String("units0", "cm").
			Triple("min_extents", [3]float64{-1, 0, 2.5}).
			IntTriple("min_index", [3]int{0, 1, 0}).
			ReplicatedInt("dims", []int{4, 5, 6}, 3).
			ReplicatedString("coord", []string{"/x", "/y"}, 3)
		c, err := s.Build(reg, p)
		if err != nil {
			t.Fatalf("%s: Build: %v", p, err)
		}
		rec, err := Decode(reg, c.File, c.Blob, c.Memory)
		if err != nil {
			t.Fatalf("%s: Decode: %v", p, err)
		}

		if rec.Int("ndims") != 3 {
			t.Errorf("%s: ndims = %d", p, rec.Int("ndims"))
		}
		if p != dtype.BigEndian32 && p != dtype.LittleEndian && rec.Long("nnodes") != 1<<40 {
			t.Errorf("%s: nnodes = %d", p, rec.Long("nnodes"))
		}
		if rec.Float("dtime") != 0.25 || rec.Double("time") != 12.5 {
			t.Errorf("%s: dtime %v time %v", p, rec.Float("dtime"), rec.Double("time"))
		}
		if rec.String("units0") != "cm" {
			t.Errorf("%s: units0 = %q", p, rec.String("units0"))
		}
		if rec.Triple("min_extents") != [3]float64{-1, 0, 2.5} {
			t.Errorf("%s: min_extents = %v", p, rec.Triple("min_extents"))
		}
		if rec.IntTriple("min_index") != [3]int{0, 1, 0} {
			t.Errorf("%s: min_index = %v", p, rec.IntTriple("min_index"))
		}
		dims := rec.ReplicatedInt("dims", 3)
		if dims[0] != 4 || dims[1] != 5 || dims[2] != 6 {
			t.Errorf("%s: dims = %v", p, dims)
		}
		coords := rec.ReplicatedString("coord", 3)
		if coords[0] != "/x" || coords[1] != "/y" || coords[2] != "" {
			t.Errorf("%s: coords = %q", p, coords)
		}
		if rec.Has("coord2") {
			t.Errorf("%s: empty coord2 was written", p)
		}
	}
}

func TestReplicatedNaming(t *testing.T) {
	reg := dtype.NewRegistry(dtype.DefaultMemoryModel)
	c, err := New("r").ReplicatedInt("dims", []int{7, 8}, 3).Build(reg, dtype.Local)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"dims0", "dims1", "dims2"} {
		if c.Memory.Member(name) == nil {
			t.Errorf("memory layout lacks %s", name)
		}
	}
	if c.File.Member("dims2") != nil {
		t.Error("zero dims2 emitted to file layout")
	}

	_, err = New("r").ReplicatedInt("dims", []int{1, 2, 3, 4}, 3).Build(reg, dtype.Local)
	if !errors.Is(err, ErrTooMany) {
		t.Errorf("Build with 4 of 3 values: %v, want ErrTooMany", err)
	}
}

func TestAlwaysForcesPresence(t *testing.T) {
	reg := dtype.NewRegistry(dtype.DefaultMemoryModel)
	c, err := New("a").Int("origin", 0).Always().Int("other", 0).Build(reg, dtype.Local)
	if err != nil {
		t.Fatal(err)
	}
	if c.File.Member("origin") == nil {
		t.Error("origin not emitted")
	}
	if c.File.Member("other") != nil {
		t.Error("other emitted")
	}
}

func TestOmittedMembersReadAsZero(t *testing.T) {
	reg := dtype.NewRegistry(dtype.DefaultMemoryModel)
	set := []bool{true, true, false, true, true, false, true, true, false}
	partial, err := nineScalars(set).Build(reg, dtype.Local)
	if err != nil {
		t.Fatal(err)
	}
	all := []bool{true, true, true, true, true, true, true, true, true}
	full, err := nineScalars(all).Build(reg, dtype.Local)
	if err != nil {
		t.Fatal(err)
	}
	if len(partial.Blob) >= len(full.Blob) {
		t.Errorf("partial blob %d bytes, full %d", len(partial.Blob), len(full.Blob))
	}

	// Decode the partial file blob with the full memory layout.
	rec, err := Decode(reg, partial.File, partial.Blob, full.Memory)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 9; i++ {
		name := "m" + string(rune('a'+i))
		want := 0
		if set[i] {
			want = i + 1
		}
		if got := rec.Int(name); got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
		if rec.Has(name) != set[i] {
			t.Errorf("Has(%s) = %v", name, rec.Has(name))
		}
	}
}

func TestFileSizeMonotone(t *testing.T) {
	reg := dtype.NewRegistry(dtype.DefaultMemoryModel)
	set := make([]bool, 9)
	prev := -1
	for k := 0; k <= 9; k++ {
		if k > 0 {
			set[k-1] = true
		}
		c, err := nineScalars(set).Build(reg, dtype.BigEndian64)
		if err != nil {
			t.Fatal(err)
		}
		if len(c.Blob) <= prev {
			t.Fatalf("blob with %d members = %d bytes, not larger than %d", k, len(c.Blob), prev)
		}
		prev = len(c.Blob)
	}
}

func TestStringTooLong(t *testing.T) {
	reg := dtype.NewRegistry(dtype.DefaultMemoryModel)
	_, err := New("s").String("label", strings.Repeat("x", StringSize)).Build(reg, dtype.Local)
	if !errors.Is(err, ErrStringTooLong) {
		t.Errorf("Build: %v, want ErrStringTooLong", err)
	}
}

func TestMemoryForFileLayout(t *testing.T) {
	reg := dtype.NewRegistry(dtype.DefaultMemoryModel)
	c, err := New("x").Int("nzones", 9).Double("time", 2).String("meshid", "/m").Build(reg, dtype.BigEndian64)
	if err != nil {
		t.Fatal(err)
	}
	mem, err := MemoryFor(reg, c.File)
	if err != nil {
		t.Fatal(err)
	}
	if m := mem.Member("nzones"); m == nil || m.Type.Size != 8 {
		t.Fatalf("nzones memory member = %+v, want 8-byte long", m)
	}
	rec, err := Decode(reg, c.File, c.Blob, mem)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Int("nzones") != 9 || rec.Double("time") != 2 || rec.String("meshid") != "/m" {
		t.Errorf("decoded %v", rec.Names())
	}

	if _, err := MemoryFor(reg, message.NewFloatDatatype(8, message.OrderLE)); !errors.Is(err, ErrNotCompound) {
		t.Errorf("MemoryFor(f64) = %v, want ErrNotCompound", err)
	}
}
