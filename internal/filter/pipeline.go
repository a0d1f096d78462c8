package filter

import (
	"fmt"

	"github.com/robert-malhotra/go-silo/internal/message"
)

// Pipeline applies the filters of one dataset.
type Pipeline struct {
	infos   []message.FilterInfo
	filters []Filter
}

// NewPipeline creates a filter pipeline from a FilterPipeline message.
func (r *Registry) NewPipeline(fp *message.FilterPipeline) (*Pipeline, error) {
	if fp == nil || len(fp.Filters) == 0 {
		return &Pipeline{}, nil
	}

	p := &Pipeline{
		infos:   fp.Filters,
		filters: make([]Filter, len(fp.Filters)),
	}
	for i, info := range fp.Filters {
		f, err := r.New(info)
		if err != nil {
			return nil, fmt.Errorf("creating %s: %w", r.Name(info.ID), err)
		}
		p.filters[i] = f
	}
	return p, nil
}

// Encode applies the filters in order. A failing optional filter is
// skipped and its bit set in the returned filter mask; a failing
// mandatory filter fails the chunk.
func (p *Pipeline) Encode(input []byte) ([]byte, uint32, error) {
	data := input
	var mask uint32
	for i, f := range p.filters {
		if f == nil {
			mask |= 1 << uint(i)
			continue
		}
		out, err := f.Encode(data)
		if err != nil {
			if p.infos[i].IsOptional() {
				mask |= 1 << uint(i)
				continue
			}
			return nil, 0, fmt.Errorf("filter %d encode: %w", f.ID(), err)
		}
		data = out
	}
	return data, mask, nil
}

// Decode applies the filter pipeline to encoded data.
// The filterMask specifies which filters to skip (bit i = skip filter i).
// Filters are applied in reverse order (last filter first).
func (p *Pipeline) Decode(input []byte, filterMask uint32) ([]byte, error) {
	data := input
	for i := len(p.filters) - 1; i >= 0; i-- {
		if filterMask&(1<<uint(i)) != 0 || p.filters[i] == nil {
			continue
		}
		var err error
		data, err = p.filters[i].Decode(data)
		if err != nil {
			return nil, fmt.Errorf("filter %d decode: %w", p.filters[i].ID(), err)
		}
	}
	return data, nil
}

// SkipChecksum turns off verification in every checksum filter of the
// pipeline. The checksum bytes are still stripped.
func (p *Pipeline) SkipChecksum() {
	for _, f := range p.filters {
		if c, ok := f.(interface{ SetVerify(bool) }); ok {
			c.SetVerify(false)
		}
	}
}

// Empty returns true if the pipeline has no filters.
func (p *Pipeline) Empty() bool {
	return len(p.filters) == 0
}

// Len returns the number of filters in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.filters)
}
