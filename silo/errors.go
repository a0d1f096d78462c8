package silo

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/robert-malhotra/go-silo/internal/container"
	"github.com/robert-malhotra/go-silo/internal/dtype"
	"github.com/robert-malhotra/go-silo/internal/filter"
	"github.com/robert-malhotra/go-silo/internal/fpzip"
	"github.com/robert-malhotra/go-silo/internal/hzip"
	"github.com/robert-malhotra/go-silo/internal/layout"
	"github.com/robert-malhotra/go-silo/internal/schema"
)

// Code classifies a failed operation.
type Code int

const (
	OK Code = iota
	NotFound
	BadArgs
	CallFailed
	NoMemory
	Internal
	Checksum
	Compression
	// TypeMismatch is reported when an object is read as the wrong kind.
	// It belongs to the CallFailed class.
	TypeMismatch
)

var codeNames = map[Code]string{
	OK:           "ok",
	NotFound:     "not found",
	BadArgs:      "bad arguments",
	CallFailed:   "call failed",
	NoMemory:     "out of memory",
	Internal:     "internal error",
	Checksum:     "checksum mismatch",
	Compression:  "compression failed",
	TypeMismatch: "object type mismatch",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Class returns the code callers branch on.
func (c Code) Class() Code {
	if c == TypeMismatch {
		return CallFailed
	}
	return c
}

// Error is returned by every public operation.
type Error struct {
	Code    Code
	Op      string
	Context string
	Err     error
}

// Sentinels for errors.Is. Matching is by code class.
var (
	ErrNotFound     = &Error{Code: NotFound}
	ErrBadArgs      = &Error{Code: BadArgs}
	ErrCallFailed   = &Error{Code: CallFailed}
	ErrNoMemory     = &Error{Code: NoMemory}
	ErrInternal     = &Error{Code: Internal}
	ErrChecksum     = &Error{Code: Checksum}
	ErrCompression  = &Error{Code: Compression}
	ErrTypeMismatch = &Error{Code: TypeMismatch}
)

func (e *Error) Error() string {
	msg := "silo"
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Context != "" {
		msg += " " + e.Context
	}
	msg += ": " + e.Code.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by code. ErrCallFailed also matches TypeMismatch.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Err != nil {
		return false
	}
	return t.Code == e.Code || t.Code == e.Code.Class()
}

// CodeOf returns the code of err: OK for nil, CallFailed for errors that
// did not come from this package.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CallFailed
}

func newError(code Code, format string, args ...any) error {
	return &Error{Code: code, Err: errors.Errorf(format, args...)}
}

func badArgs(format string, args ...any) error {
	return newError(BadArgs, format, args...)
}

// classify maps a failure to a code. Errors the container reported are
// also matched against its diagnostic stack, whose text identifies
// checksum and filter failures.
func classify(err error, stack *container.ErrorStack) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	switch {
	case errors.Is(err, container.ErrNotFound):
		return NotFound
	case errors.Is(err, container.ErrBadPath),
		errors.Is(err, container.ErrSize),
		errors.Is(err, container.ErrReadOnly),
		errors.Is(err, dtype.ErrBadKind),
		errors.Is(err, schema.ErrStringTooLong),
		errors.Is(err, schema.ErrTooMany),
		errors.Is(err, layout.ErrRank),
		errors.Is(err, layout.ErrBounds),
		errors.Is(err, layout.ErrZeroSlice),
		errors.Is(err, layout.ErrSize):
		return BadArgs
	case errors.Is(err, filter.ErrChecksum):
		return Checksum
	case errors.Is(err, filter.ErrCannotCompress),
		errors.Is(err, filter.ErrUnavailable),
		errors.Is(err, hzip.ErrNoFit),
		errors.Is(err, hzip.ErrTopology),
		errors.Is(err, hzip.ErrMismatch),
		errors.Is(err, hzip.ErrCorrupt),
		errors.Is(err, fpzip.ErrNoFit),
		errors.Is(err, fpzip.ErrCorrupt):
		return Compression
	}
	if stack != nil {
		switch {
		case stack.Contains("checksum"):
			return Checksum
		case stack.Contains("filter pipeline"), stack.Contains("compress"):
			return Compression
		}
	}
	return CallFailed
}
