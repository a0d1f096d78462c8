package silo

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/robert-malhotra/go-silo/internal/container"
	"github.com/robert-malhotra/go-silo/internal/message"
)

// scope owns the container handles opened during one public call.
type scope struct {
	f       *File
	op      string
	closers []io.Closer
}

func (s *scope) track(c io.Closer) {
	s.closers = append(s.closers, c)
}

// release closes every tracked handle once, newest first.
func (s *scope) release() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

func (s *scope) openObject(p string) (*container.Object, error) {
	o, err := s.f.c.OpenObject(p)
	if err != nil {
		return nil, err
	}
	s.track(o)
	return o, nil
}

func (s *scope) commitType(p string, dt *message.Datatype) (*container.NamedType, error) {
	t, err := s.f.c.CommitType(p, dt)
	if err != nil {
		return nil, err
	}
	s.track(t)
	return t, nil
}

func (s *scope) openGroup(p string) (*container.Group, error) {
	g, err := s.f.c.OpenGroup(p)
	if err != nil {
		return nil, err
	}
	s.track(g)
	return g, nil
}

func (s *scope) createGroup(p string) (*container.Group, error) {
	g, err := s.f.c.CreateGroup(p)
	if err != nil {
		return nil, err
	}
	s.track(g)
	return g, nil
}

func (s *scope) openDataset(p string) (*container.Dataset, error) {
	d, err := s.f.c.OpenDataset(p)
	if err != nil {
		return nil, err
	}
	s.track(d)
	return d, nil
}

func (s *scope) createDataset(p string, dt *message.Datatype, space *message.Dataspace, fp *message.FilterPipeline) (*container.Dataset, error) {
	d, err := s.f.c.CreateDataset(p, dt, space, fp)
	if err != nil {
		return nil, err
	}
	s.track(d)
	return d, nil
}

func (s *scope) openAttr(o *container.Object, name string) (*container.Attribute, error) {
	a, err := o.OpenAttr(name)
	if err != nil {
		return nil, err
	}
	s.track(a)
	return a, nil
}

// protect runs fn with a fresh scope, releases everything fn opened and
// turns a failure into one *Error.
func (f *File) protect(op, context string, fn func(s *scope) error) error {
	if f.closed {
		return &Error{Code: CallFailed, Op: op, Context: context, Err: container.ErrClosed}
	}
	f.c.Errors().Clear()

	s := &scope{f: f, op: op}
	err := fn(s)
	if rerr := s.release(); err == nil && rerr != nil {
		err = &Error{Code: Internal, Err: errors.Wrap(rerr, "releasing handles")}
	}
	if err == nil {
		return nil
	}

	e := &Error{Code: classify(err, f.c.Errors()), Op: op, Context: context, Err: err}
	var inner *Error
	if errors.As(err, &inner) {
		e.Err = inner.Err
		if e.Context == "" {
			e.Context = inner.Context
		}
	}
	f.log.WithFields(logrus.Fields{
		"op":   op,
		"code": e.Code.String(),
		"file": f.path,
	}).WithError(e.Err).Debug("operation failed")
	if len(f.c.Errors().Entries()) > 0 {
		f.log.WithField("diagnostics", f.c.Errors().String()).Trace("container error stack")
	}
	return e
}
