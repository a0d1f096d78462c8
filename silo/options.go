package silo

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/robert-malhotra/go-silo/internal/dtype"
	"github.com/robert-malhotra/go-silo/internal/nlcache"
)

// Option configures Create and Open.
type Option func(*options)

type options struct {
	profile     dtype.Profile
	clobber     bool
	readOnly    bool
	info        string
	checksums   bool
	friendly    bool
	compression string
	forceSingle bool
	logger      logrus.FieldLogger
	cache       *nlcache.Cache
	model       dtype.MemoryModel
}

func defaultOptions() *options {
	return &options{
		profile: dtype.Local,
		model:   dtype.DefaultMemoryModel,
	}
}

func buildOptions(opts []Option) *options {
	o := defaultOptions()
	for _, fn := range opts {
		fn(o)
	}
	if o.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.logger = l
	}
	if o.cache == nil {
		o.cache = nlcache.New(nlcache.DefaultCapacity)
	}
	return o
}

// WithProfile selects the on-disk numeric layout. It applies to Create
// only; Open uses the profile recorded in the file.
func WithProfile(p dtype.Profile) Option {
	return func(o *options) {
		o.profile = p
	}
}

// WithClobber lets Create replace an existing file.
func WithClobber(on bool) Option {
	return func(o *options) {
		o.clobber = on
	}
}

// WithReadOnly opens the file without write access.
func WithReadOnly(on bool) Option {
	return func(o *options) {
		o.readOnly = on
	}
}

// WithInfo stores a descriptive string in a new file.
func WithInfo(info string) Option {
	return func(o *options) {
		o.info = info
	}
}

// WithChecksums attaches a fletcher32 filter to new datasets and verifies
// checksums on read.
func WithChecksums(on bool) Option {
	return func(o *options) {
		o.checksums = on
	}
}

// WithFriendlyNames links a readable alias to each generated dataset name.
func WithFriendlyNames(on bool) Option {
	return func(o *options) {
		o.friendly = on
	}
}

// WithCompression sets the compression string, as for SetCompression.
func WithCompression(spec string) Option {
	return func(o *options) {
		o.compression = spec
	}
}

// WithForceSingle makes default readers return double data as float.
func WithForceSingle(on bool) Option {
	return func(o *options) {
		o.forceSingle = on
	}
}

// WithLogger sets the session logger. By default nothing is logged.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithNodelistCache shares a nodelist cache between sessions.
func WithNodelistCache(c *nlcache.Cache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithMemoryModel overrides the widths used to infer memory kinds.
func WithMemoryModel(m dtype.MemoryModel) Option {
	return func(o *options) {
		o.model = m
	}
}
