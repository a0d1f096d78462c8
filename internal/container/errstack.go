package container

import (
	"fmt"
	"strings"
	"sync"
)

// Diagnostic is one error stack entry.
type Diagnostic struct {
	Op   string
	Path string
	Msg  string
}

func (d Diagnostic) String() string {
	if d.Path == "" {
		return fmt.Sprintf("%s: %s", d.Op, d.Msg)
	}
	return fmt.Sprintf("%s %s: %s", d.Op, d.Path, d.Msg)
}

// ErrorStack collects diagnostics for one file.
type ErrorStack struct {
	mu      sync.Mutex
	entries []Diagnostic
}

// Push adds a diagnostic.
func (s *ErrorStack) Push(op, path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, Diagnostic{Op: op, Path: path, Msg: err.Error()})
}

// Entries returns a copy of the stack, oldest first.
func (s *ErrorStack) Entries() []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Diagnostic(nil), s.entries...)
}

// Clear empties the stack.
func (s *ErrorStack) Clear() {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
}

// Contains reports whether any entry mentions substr, ignoring case.
func (s *ErrorStack) Contains(substr string) bool {
	substr = strings.ToLower(substr)
	for _, d := range s.Entries() {
		if strings.Contains(strings.ToLower(d.String()), substr) {
			return true
		}
	}
	return false
}

func (s *ErrorStack) String() string {
	var b strings.Builder
	for i, d := range s.Entries() {
		fmt.Fprintf(&b, "#%03d: %s\n", i, d)
	}
	return b.String()
}
