package message

import (
	"fmt"

	"github.com/robert-malhotra/go-silo/internal/binary"
)

// Filter IDs. IDs below 256 are reserved for the standard filters; the
// mesh-aware codecs use IDs from the registered third-party range.
const (
	FilterDeflate      uint16 = 1 // DEFLATE (gzip)
	FilterShuffle      uint16 = 2 // Byte shuffle
	FilterFletcher32   uint16 = 3 // Fletcher32 checksum
	FilterSZIP         uint16 = 4 // SZIP compression
	FilterConnectivity uint16 = 32013
	FilterField        uint16 = 32014
	FilterFloat        uint16 = 32015
)

// FilterFlagOptional marks a filter whose failure stores the chunk
// unfiltered instead of failing the write.
const FilterFlagOptional uint16 = 0x0001

// FilterInfo describes a single filter in the pipeline.
type FilterInfo struct {
	ID         uint16
	Flags      uint16
	Name       string
	ClientData []uint32
}

// IsOptional returns true if this filter is optional.
func (f *FilterInfo) IsOptional() bool {
	return f.Flags&FilterFlagOptional != 0
}

// FilterPipeline represents a filter pipeline message.
type FilterPipeline struct {
	Filters []FilterInfo
}

func (m *FilterPipeline) Type() Type { return TypeFilterPipeline }

// HasFilter returns true if the pipeline contains the given filter ID.
func (m *FilterPipeline) HasFilter(id uint16) bool {
	for _, f := range m.Filters {
		if f.ID == id {
			return true
		}
	}
	return false
}

// HasCompression returns true if the pipeline has any compression filter.
func (m *FilterPipeline) HasCompression() bool {
	for _, f := range m.Filters {
		switch f.ID {
		case FilterDeflate, FilterSZIP, FilterConnectivity, FilterField, FilterFloat:
			return true
		}
	}
	return false
}

// Serialize writes version 2 of the filter pipeline message. Filter names
// are only stored for IDs >= 256, as in the HDF5 layout.
func (m *FilterPipeline) Serialize(w *binary.Writer) error {
	if err := w.WriteUint8(2); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(len(m.Filters))); err != nil {
		return err
	}
	for _, f := range m.Filters {
		if err := w.WriteUint16(f.ID); err != nil {
			return err
		}
		if f.ID >= 256 {
			if err := w.WriteUint16(uint16(len(f.Name) + 1)); err != nil {
				return err
			}
		}
		if err := w.WriteUint16(f.Flags); err != nil {
			return err
		}
		if err := w.WriteUint16(uint16(len(f.ClientData))); err != nil {
			return err
		}
		if f.ID >= 256 {
			if err := w.WriteString(f.Name); err != nil {
				return err
			}
		}
		for _, cd := range f.ClientData {
			if err := w.WriteUint32(cd); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadFilterPipeline parses a filter pipeline message.
func ReadFilterPipeline(r *binary.Reader) (*FilterPipeline, error) {
	head, err := r.ReadBytes(2)
	if err != nil {
		return nil, fmt.Errorf("filter pipeline header: %w", err)
	}
	if head[0] != 2 {
		return nil, fmt.Errorf("unsupported filter pipeline version %d", head[0])
	}
	fp := &FilterPipeline{Filters: make([]FilterInfo, head[1])}
	for i := range fp.Filters {
		f := &fp.Filters[i]
		if f.ID, err = r.ReadUint16(); err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		if f.ID >= 256 {
			if _, err = r.ReadUint16(); err != nil {
				return nil, fmt.Errorf("filter %d name length: %w", i, err)
			}
		}
		if f.Flags, err = r.ReadUint16(); err != nil {
			return nil, fmt.Errorf("filter %d flags: %w", i, err)
		}
		ncd, err := r.ReadUint16()
		if err != nil {
			return nil, fmt.Errorf("filter %d client data count: %w", i, err)
		}
		if f.ID >= 256 {
			if f.Name, err = r.ReadString(); err != nil {
				return nil, fmt.Errorf("filter %d name: %w", i, err)
			}
		}
		f.ClientData = make([]uint32, ncd)
		for j := range f.ClientData {
			if f.ClientData[j], err = r.ReadUint32(); err != nil {
				return nil, fmt.Errorf("filter %d client data %d: %w", i, j, err)
			}
		}
	}
	return fp, nil
}
