package dtype

import (
	"errors"
	"math"
	"testing"

	"github.com/robert-malhotra/go-silo/internal/message"
)

func TestFileLayoutPerProfile(t *testing.T) {
	reg := NewRegistry(DefaultMemoryModel)

	tests := []struct {
		kind    Kind
		profile Profile
		size    uint32
		order   message.ByteOrder
	}{
		{Long, BigEndian32, 4, message.OrderBE},
		{Long, LittleEndian, 4, message.OrderLE},
		{Short, BigEndian64, 8, message.OrderBE},
		{Float, BigEndian64, 8, message.OrderBE},
		{Char, BigEndian64, 1, message.OrderBE},
		{Double, BigEndian32, 8, message.OrderBE},
	}
	for _, tt := range tests {
		ft, err := reg.File(tt.kind, tt.profile)
		if err != nil {
			t.Fatalf("File(%s, %s): %v", tt.kind, tt.profile, err)
		}
		if ft.Size != tt.size || ft.ByteOrder != tt.order {
			t.Errorf("File(%s, %s) = %s, want size %d order %d", tt.kind, tt.profile, ft, tt.size, tt.order)
		}
	}

	ft, err := reg.File(Long, Local)
	if err != nil {
		t.Fatalf("File(long, local): %v", err)
	}
	if ft.Size != 8 {
		t.Errorf("local long size = %d, want 8", ft.Size)
	}
}

func TestUnsupportedKind(t *testing.T) {
	reg := NewRegistry(DefaultMemoryModel)
	if _, err := reg.Memory(Kind(99)); !errors.Is(err, ErrBadKind) {
		t.Errorf("Memory(99) error = %v, want ErrBadKind", err)
	}
	if _, err := reg.File(NoType, BigEndian32); !errors.Is(err, ErrBadKind) {
		t.Errorf("File(notype) error = %v, want ErrBadKind", err)
	}
	if _, _, err := KindOf([]string{"x"}); !errors.Is(err, ErrBadKind) {
		t.Errorf("KindOf([]string) error = %v, want ErrBadKind", err)
	}
}

func TestInferMemorySmallestFit(t *testing.T) {
	reg := NewRegistry(DefaultMemoryModel)

	tests := []struct {
		ft   *message.Datatype
		want Kind
	}{
		{message.NewFixedPointDatatype(1, true, message.OrderBE), Char},
		{message.NewFixedPointDatatype(2, true, message.OrderBE), Short},
		{message.NewFixedPointDatatype(4, true, message.OrderLE), Int},
		{message.NewFixedPointDatatype(8, true, message.OrderBE), Long},
		{message.NewFloatDatatype(4, message.OrderBE), Float},
		{message.NewFloatDatatype(8, message.OrderLE), Double},
	}
	for _, tt := range tests {
		got, err := reg.InferMemory(tt.ft)
		if err != nil {
			t.Fatalf("InferMemory(%s): %v", tt.ft, err)
		}
		if got != tt.want {
			t.Errorf("InferMemory(%s) = %s, want %s", tt.ft, got, tt.want)
		}
	}

	if _, err := reg.InferMemory(message.NewStringDatatype(8, message.PadNullTerm)); !errors.Is(err, ErrBadKind) {
		t.Errorf("InferMemory(string) error = %v, want ErrBadKind", err)
	}
}

func TestInferMemoryShortEqualsInt(t *testing.T) {
	model := DefaultMemoryModel
	model.Short = 4
	reg := NewRegistry(model)

	got, err := reg.InferMemory(message.NewFixedPointDatatype(2, true, message.OrderBE))
	if err != nil {
		t.Fatal(err)
	}
	if got != Int {
		t.Errorf("2-byte integer inferred as %s, want int", got)
	}
}

func TestInferMemoryIgnoresForceSingle(t *testing.T) {
	reg := NewRegistry(DefaultMemoryModel)
	reg.SetForceSingle(true)

	got, err := reg.InferMemory(message.NewFloatDatatype(8, message.OrderBE))
	if err != nil {
		t.Fatal(err)
	}
	if got != Double {
		t.Errorf("InferMemory with force-single = %s, want double", got)
	}
	if reg.DefaultKind(got) != Float {
		t.Errorf("DefaultKind(double) = %s, want float", reg.DefaultKind(got))
	}
	if reg.DefaultKind(Int) != Int {
		t.Errorf("DefaultKind(int) changed")
	}

	reg.SetForceSingle(false)
	if reg.DefaultKind(Double) != Double {
		t.Errorf("DefaultKind(double) with force-single off = %s", reg.DefaultKind(Double))
	}
}

func TestEncodeDecodeAcrossProfiles(t *testing.T) {
	reg := NewRegistry(DefaultMemoryModel)
	ints := []int32{0, 1, -1, 70000, math.MinInt32}
	doubles := []float64{0, 1.5, -2.25, math.Pi}

	for _, p := range []Profile{Local, BigEndian32, BigEndian64, LittleEndian} {
		ft, err := reg.File(Int, p)
		if err != nil {
			t.Fatal(err)
		}
		raw, err := Encode(ints, ft)
		if err != nil {
			t.Fatalf("%s: Encode: %v", p, err)
		}
		if len(raw) != len(ints)*int(ft.Size) {
			t.Fatalf("%s: encoded %d bytes, want %d", p, len(raw), len(ints)*int(ft.Size))
		}
		got, err := Decode(ft, raw, Int)
		if err != nil {
			t.Fatalf("%s: Decode: %v", p, err)
		}
		for i, v := range got.([]int32) {
			if v != ints[i] {
				t.Errorf("%s: int[%d] = %d, want %d", p, i, v, ints[i])
			}
		}

		ft, err = reg.File(Double, p)
		if err != nil {
			t.Fatal(err)
		}
		raw, err = Encode(doubles, ft)
		if err != nil {
			t.Fatalf("%s: Encode doubles: %v", p, err)
		}
		gotD, err := Decode(ft, raw, Double)
		if err != nil {
			t.Fatalf("%s: Decode doubles: %v", p, err)
		}
		for i, v := range gotD.([]float64) {
			if v != doubles[i] {
				t.Errorf("%s: double[%d] = %v, want %v", p, i, v, doubles[i])
			}
		}
	}
}

func TestBigEndianLayout(t *testing.T) {
	ft := message.NewFixedPointDatatype(4, true, message.OrderBE)
	raw, err := Encode([]int32{0x01020304}, ft)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 2, 3, 4}
	for i := range want {
		if raw[i] != want[i] {
			t.Fatalf("encoded % x, want % x", raw, want)
		}
	}
}

func TestConvertSlice(t *testing.T) {
	got, err := ConvertSlice([]int32{1, 2, 3}, Double)
	if err != nil {
		t.Fatal(err)
	}
	d := got.([]float64)
	if len(d) != 3 || d[2] != 3 {
		t.Errorf("ConvertSlice int->double = %v", d)
	}

	same := []float32{1}
	got, err = ConvertSlice(same, Float)
	if err != nil {
		t.Fatal(err)
	}
	if &got.([]float32)[0] != &same[0] {
		t.Errorf("ConvertSlice to the same kind copied the slice")
	}

	f := Downcast([]float64{0.1, 1e10})
	if f[0] != float32(0.1) || f[1] != float32(1e10) {
		t.Errorf("Downcast = %v", f)
	}

	if _, err := ConvertSlice([]uint64{1}, Int); !errors.Is(err, ErrBadKind) {
		t.Errorf("ConvertSlice([]uint64) error = %v, want ErrBadKind", err)
	}
}

func TestDecodeRejectsPartialElement(t *testing.T) {
	ft := message.NewFloatDatatype(8, message.OrderLE)
	if _, err := Decode(ft, make([]byte, 12), Double); !errors.Is(err, ErrBadKind) {
		t.Errorf("Decode(12 bytes of f64) error = %v, want ErrBadKind", err)
	}
}

func TestParseProfile(t *testing.T) {
	for name, want := range map[string]Profile{
		"local": Local, "cray": BigEndian64, "SUN": BigEndian32, "littleendian": LittleEndian,
	} {
		got, err := ParseProfile(name)
		if err != nil || got != want {
			t.Errorf("ParseProfile(%q) = %s, %v; want %s", name, got, err, want)
		}
	}
	if _, err := ParseProfile("vax"); err == nil {
		t.Error("ParseProfile(vax) succeeded")
	}
}
