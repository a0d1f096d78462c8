package filter

import (
	"errors"
	"fmt"
	"sync"

	"github.com/robert-malhotra/go-silo/internal/message"
)

var (
	// ErrChecksum is returned when a stored checksum does not match.
	ErrChecksum = errors.New("checksum mismatch")

	// ErrCannotCompress is returned by an encoder whose output does not
	// fit the size bound it was given.
	ErrCannotCompress = errors.New("data cannot be compressed within bound")

	// ErrUnavailable is returned when a filter is known but cannot run.
	ErrUnavailable = errors.New("filter not available")

	// ErrUnknown is returned for filter IDs with no registered constructor.
	ErrUnknown = errors.New("unknown filter")
)

// Filter is a chunk transform. Encode runs on write, Decode on read. The
// callbacks receive no caller context; filters that need more than their
// client data must capture it when they are constructed.
type Filter interface {
	ID() uint16
	Encode(input []byte) ([]byte, error)
	Decode(input []byte) ([]byte, error)
}

// Constructor builds a filter from its pipeline entry.
type Constructor func(info message.FilterInfo) (Filter, error)

// Registry maps filter IDs to constructors. Each open container owns one,
// so codecs registered by one session never leak into another.
type Registry struct {
	mu    sync.RWMutex
	ctors map[uint16]Constructor
	names map[uint16]string
}

// NewRegistry returns a registry with the standard filters registered.
func NewRegistry() *Registry {
	r := &Registry{
		ctors: make(map[uint16]Constructor),
		names: make(map[uint16]string),
	}
	r.Register(message.FilterDeflate, "deflate", func(info message.FilterInfo) (Filter, error) {
		return NewDeflate(info.ClientData), nil
	})
	r.Register(message.FilterShuffle, "shuffle", func(info message.FilterInfo) (Filter, error) {
		return NewShuffle(info.ClientData), nil
	})
	r.Register(message.FilterFletcher32, "fletcher32", func(info message.FilterInfo) (Filter, error) {
		return NewFletcher32(info.ClientData), nil
	})
	r.Register(message.FilterSZIP, "szip", func(info message.FilterInfo) (Filter, error) {
		return NewSZIP(info.ClientData), nil
	})
	return r
}

// Register installs or replaces the constructor for id.
func (r *Registry) Register(id uint16, name string, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[id] = c
	r.names[id] = name
}

// Unregister removes the constructor for id.
func (r *Registry) Unregister(id uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ctors, id)
}

// Registered reports whether id has a constructor.
func (r *Registry) Registered(id uint16) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ctors[id]
	return ok
}

// Name returns the registered name for id.
func (r *Registry) Name(id uint16) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n, ok := r.names[id]; ok {
		return n
	}
	return fmt.Sprintf("filter %d", id)
}

// New creates a filter from a pipeline entry. An optional filter with no
// constructor yields (nil, nil) and is skipped by the pipeline.
func (r *Registry) New(info message.FilterInfo) (Filter, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[info.ID]
	r.mu.RUnlock()
	if !ok {
		if info.IsOptional() {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: ID %d", ErrUnknown, info.ID)
	}
	return ctor(info)
}
