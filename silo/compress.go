package silo

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/robert-malhotra/go-silo/internal/dtype"
	"github.com/robert-malhotra/go-silo/internal/filter"
	"github.com/robert-malhotra/go-silo/internal/hzip"
	"github.com/robert-malhotra/go-silo/internal/message"
)

// Method is a compression method.
type Method int

const (
	MethodNone Method = iota
	MethodGZIP
	MethodSZIP
	// MethodConnectivity compresses zonelists with the connectivity codec
	// and mesh fields with the mesh-order field codec.
	MethodConnectivity
	// MethodField compresses floating-point arrays of up to three
	// dimensions without using mesh topology.
	MethodField
)

var methodNames = map[Method]string{
	MethodNone:         "NONE",
	MethodGZIP:         "GZIP",
	MethodSZIP:         "SZIP",
	MethodConnectivity: "CONNECTIVITY",
	MethodField:        "FIELD",
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// ErrMode decides what happens when an array cannot be compressed.
type ErrMode int

const (
	// Fallback stores the array uncompressed.
	Fallback ErrMode = iota
	// Fail fails the write.
	Fail
)

func (m ErrMode) String() string {
	if m == Fail {
		return "FAIL"
	}
	return "FALLBACK"
}

// DefaultMinRatio is the compression ratio an array must reach unless
// MINRATIO says otherwise.
const DefaultMinRatio = 2.0

// CompressionSettings holds parsed compression settings.
type CompressionSettings struct {
	Method   Method
	ErrMode  ErrMode
	MinRatio float64

	// GZIP
	Level   int
	Shuffle bool
	// SZIP
	Block int
	Mask  uint32
	// CONNECTIVITY
	Codec hzip.Codec
	Bits  int
	// CONNECTIVITY fields and FIELD
	Loss int
}

// ParseCompression parses whitespace separated KEY=VALUE pairs. An empty
// string yields nil, meaning no compression.
func ParseCompression(spec string) (*CompressionSettings, error) {
	fields := strings.Fields(spec)
	if len(fields) == 0 {
		return nil, nil
	}
	c := &CompressionSettings{
		MinRatio: DefaultMinRatio,
		Level:    6,
		Block:    32,
		Mask:     filter.SZIPMaskNN,
		Codec:    hzip.CodecDeflate,
	}
	seen := map[string]string{}
	for _, field := range fields {
		key, val, ok := strings.Cut(field, "=")
		if !ok || key == "" || val == "" {
			return nil, badArgs("malformed compression setting %q", field)
		}
		key = strings.ToUpper(key)
		if _, dup := seen[key]; dup {
			return nil, badArgs("compression setting %s given twice", key)
		}
		seen[key] = val
	}

	method, ok := seen["METHOD"]
	if !ok {
		return nil, badArgs("compression settings %q name no METHOD", spec)
	}
	c.Method = MethodNone
	for m, name := range methodNames {
		if m != MethodNone && strings.EqualFold(method, name) {
			c.Method = m
		}
	}
	if c.Method == MethodNone {
		return nil, badArgs("unknown compression method %q", method)
	}

	allowed := map[string][]Method{
		"METHOD":   nil,
		"ERRMODE":  nil,
		"MINRATIO": nil,
		"LEVEL":    {MethodGZIP},
		"SHUFFLE":  {MethodGZIP},
		"BLOCK":    {MethodSZIP},
		"MASK":     {MethodSZIP},
		"CODEC":    {MethodConnectivity},
		"BITS":     {MethodConnectivity},
		"LOSS":     {MethodConnectivity, MethodField},
	}
	for key, val := range seen {
		methods, known := allowed[key]
		if !known {
			return nil, badArgs("unknown compression setting %s", key)
		}
		if methods != nil && !hasMethod(methods, c.Method) {
			return nil, badArgs("%s does not apply to METHOD=%s", key, c.Method)
		}
		if err := c.set(key, val); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func hasMethod(ms []Method, m Method) bool {
	for _, x := range ms {
		if x == m {
			return true
		}
	}
	return false
}

func (c *CompressionSettings) set(key, val string) error {
	atoi := func(lo, hi int) (int, error) {
		n, err := strconv.Atoi(val)
		if err != nil || n < lo || n > hi {
			return 0, badArgs("%s=%s: want an integer in [%d,%d]", key, val, lo, hi)
		}
		return n, nil
	}
	var err error
	switch key {
	case "ERRMODE":
		switch strings.ToUpper(val) {
		case "FALLBACK":
			c.ErrMode = Fallback
		case "FAIL":
			c.ErrMode = Fail
		default:
			return badArgs("ERRMODE=%s: want FALLBACK or FAIL", val)
		}
	case "MINRATIO":
		r, perr := strconv.ParseFloat(val, 64)
		if perr != nil || !(r > 1) {
			return badArgs("MINRATIO=%s: want a number greater than 1", val)
		}
		c.MinRatio = r
	case "LEVEL":
		c.Level, err = atoi(1, 9)
	case "SHUFFLE":
		switch strings.ToUpper(val) {
		case "ON", "YES", "1":
			c.Shuffle = true
		case "OFF", "NO", "0":
			c.Shuffle = false
		default:
			return badArgs("SHUFFLE=%s: want ON or OFF", val)
		}
	case "BLOCK":
		c.Block, err = atoi(2, 32)
		if err == nil && c.Block%2 != 0 {
			err = badArgs("BLOCK=%s: want an even number", val)
		}
	case "MASK":
		switch strings.ToUpper(val) {
		case "NN":
			c.Mask = filter.SZIPMaskNN
		case "EC":
			c.Mask = filter.SZIPMaskEC
		default:
			return badArgs("MASK=%s: want NN or EC", val)
		}
	case "CODEC":
		codec, perr := hzip.ParseCodec(val)
		if perr != nil {
			return badArgs("CODEC=%s: %v", val, perr)
		}
		c.Codec = codec
	case "BITS":
		c.Bits, err = atoi(0, 32)
		if err == nil && c.Bits != 0 && c.Bits != 8 && c.Bits != 16 && c.Bits != 32 {
			err = badArgs("BITS=%s: want 0, 8, 16 or 32", val)
		}
	case "LOSS":
		c.Loss, err = atoi(0, hzip.MaxLoss)
	}
	return err
}

// String renders the settings in the form ParseCompression accepts.
func (c *CompressionSettings) String() string {
	if c == nil {
		return ""
	}
	parts := []string{"METHOD=" + c.Method.String(), "ERRMODE=" + c.ErrMode.String(),
		"MINRATIO=" + strconv.FormatFloat(c.MinRatio, 'g', -1, 64)}
	switch c.Method {
	case MethodGZIP:
		parts = append(parts, fmt.Sprintf("LEVEL=%d", c.Level))
		if c.Shuffle {
			parts = append(parts, "SHUFFLE=ON")
		}
	case MethodSZIP:
		mask := "NN"
		if c.Mask == filter.SZIPMaskEC {
			mask = "EC"
		}
		parts = append(parts, fmt.Sprintf("BLOCK=%d", c.Block), "MASK="+mask)
	case MethodConnectivity:
		parts = append(parts, "CODEC="+c.Codec.String(), fmt.Sprintf("BITS=%d", c.Bits), fmt.Sprintf("LOSS=%d", c.Loss))
	case MethodField:
		parts = append(parts, fmt.Sprintf("LOSS=%d", c.Loss))
	}
	return strings.Join(parts, " ")
}

// SetCompression sets the compression applied to datasets created from
// now on. An empty string turns compression off.
func (f *File) SetCompression(spec string) error {
	c, err := ParseCompression(spec)
	if err != nil {
		e := err.(*Error)
		e.Op = "set compression"
		return e
	}
	f.comp = c
	if c != nil {
		f.log.WithField("compression", c.String()).Debug("compression set")
	}
	return nil
}

// Compression returns the current settings, nil when compression is off.
func (f *File) Compression() *CompressionSettings {
	if f.comp == nil {
		return nil
	}
	c := *f.comp
	return &c
}

// zipRole tells the framework what an array holds.
type zipRole int

const (
	roleNone zipRole = iota
	roleGeneric
	roleConnectivity
	roleField
)

// meshOrder is the connectivity a field array is walked in.
type meshOrder struct {
	nodes  []int32
	rank   int
	origin int
}

// gridOrder synthesizes the mesh order of a structured array.
func gridOrder(dims []int) *meshOrder {
	if len(dims) != 2 && len(dims) != 3 {
		return nil
	}
	nodes, err := hzip.GridNodelist(dims)
	if err != nil {
		return nil
	}
	return &meshOrder{nodes: nodes, rank: len(dims)}
}

// zipContext carries what the codecs need beyond their client data.
type zipContext struct {
	comp  CompressionSettings
	kind  dtype.Kind
	dims  []int
	role  zipRole
	order *meshOrder
}

type zipState int

const (
	zipIdle zipState = iota
	zipParameterized
	zipInFlight
)

// zipSlot holds the context of the one filtered create, write or read in
// progress. The mutex is held from begin to end.
type zipSlot struct {
	mu    sync.Mutex
	state zipState
	ctx   *zipContext
}

func (z *zipSlot) begin(ctx *zipContext) {
	z.mu.Lock()
	z.ctx = ctx
	z.state = zipParameterized
}

func (z *zipSlot) end() {
	z.ctx = nil
	z.state = zipIdle
	z.mu.Unlock()
}

// take is called by filter constructors while the container runs the
// pipeline.
func (z *zipSlot) take() *zipContext {
	if z.ctx != nil {
		z.state = zipInFlight
	}
	return z.ctx
}

// keepBits maps a loss level to the bits a float codec keeps.
func keepBits(size uint32, loss int) int {
	if loss <= 0 {
		return 0
	}
	if size == 4 {
		return [...]int{32, 24, 20, 16}[loss]
	}
	return [...]int{64, 48, 40, 32}[loss]
}

func typeData(ft *message.Datatype) []uint32 {
	return []uint32{uint32(ft.Class), ft.Size, uint32(ft.ByteOrder)}
}

func typeFromData(cd []uint32) (*message.Datatype, error) {
	if len(cd) < 3 {
		return nil, fmt.Errorf("%w: %d client data values", hzip.ErrCorrupt, len(cd))
	}
	order := message.ByteOrder(cd[2])
	switch message.DatatypeClass(cd[0]) {
	case message.ClassFloatPoint:
		return message.NewFloatDatatype(cd[1], order), nil
	case message.ClassFixedPoint:
		return message.NewFixedPointDatatype(cd[1], true, order), nil
	}
	return nil, fmt.Errorf("%w: class %d", hzip.ErrCorrupt, cd[0])
}

// pipelineFor returns the filter pipeline for a new dataset and, when a
// codec is attached, the context its constructor reads.
func (f *File) pipelineFor(ft *message.Datatype, kind dtype.Kind, dims []int, role zipRole, order *meshOrder) (*message.FilterPipeline, *zipContext) {
	var (
		fp  message.FilterPipeline
		ctx *zipContext
	)
	if c := f.comp; c != nil && role != roleNone {
		if info, ok := c.filterFor(ft, kind, dims, role, order); ok {
			if c.ErrMode == Fallback {
				info.Flags |= message.FilterFlagOptional
			}
			if c.Method == MethodGZIP && c.Shuffle && ft.Size > 1 {
				fp.Filters = append(fp.Filters, message.FilterInfo{ID: message.FilterShuffle, Name: "shuffle", ClientData: []uint32{ft.Size}})
			}
			fp.Filters = append(fp.Filters, info)
			ctx = &zipContext{comp: *c, kind: kind, dims: dims, role: role, order: order}
		}
	}
	if f.checksums {
		fp.Filters = append(fp.Filters, message.FilterInfo{ID: message.FilterFletcher32, Name: "fletcher32"})
	}
	if len(fp.Filters) == 0 {
		return nil, nil
	}
	return &fp, ctx
}

// compressing reports whether filter id reduces data. Shuffle and the
// checksum filters only rearrange or guard it.
func compressing(id uint16) bool {
	return id != message.FilterShuffle && id != message.FilterFletcher32
}

// compressorMask returns the filter mask bits of the compressing filters of
// fp.
func compressorMask(fp *message.FilterPipeline) uint32 {
	var m uint32
	if fp == nil {
		return 0
	}
	for i, fi := range fp.Filters {
		if compressing(fi.ID) {
			m |= 1 << uint(i)
		}
	}
	return m
}

func (c *CompressionSettings) filterFor(ft *message.Datatype, kind dtype.Kind, dims []int, role zipRole, order *meshOrder) (message.FilterInfo, bool) {
	switch c.Method {
	case MethodGZIP:
		return message.FilterInfo{ID: message.FilterDeflate, Name: "deflate", ClientData: []uint32{uint32(c.Level)}}, true
	case MethodSZIP:
		return message.FilterInfo{ID: message.FilterSZIP, Name: "szip", ClientData: []uint32{c.Mask, uint32(c.Block)}}, true
	case MethodConnectivity:
		switch {
		case role == roleConnectivity && !kind.IsFloat() && order != nil:
			cd := append(typeData(ft), uint32(order.rank), uint32(c.Codec), uint32(c.Bits))
			return message.FilterInfo{ID: message.FilterConnectivity, Name: "hzip-mesh", ClientData: cd}, true
		case role == roleField && kind.IsFloat() && order != nil:
			cd := append(typeData(ft), uint32(order.rank), uint32(c.Codec), uint32(c.Bits), uint32(c.Loss))
			return message.FilterInfo{ID: message.FilterField, Name: "hzip-field", ClientData: cd}, true
		}
	case MethodField:
		if kind.IsFloat() && len(dims) >= 1 && len(dims) <= 3 {
			cd := append(typeData(ft), uint32(keepBits(ft.Size, c.Loss)))
			return message.FilterInfo{ID: message.FilterFloat, Name: "fpzip", ClientData: cd}, true
		}
	}
	return message.FilterInfo{}, false
}
