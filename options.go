package pgsql

import (
	"go.uber.org/zap"
)

// DefaultLOBBufferLength is the chunk size used to read LOB sources.
const DefaultLOBBufferLength = 8192

// ObjectFactory builds the value returned by FetchObject from an
// associative row.
type ObjectFactory func(row map[string]any) (any, error)

// Options is the session-wide configuration read by statements and result
// cursors. The zero value is not useful; start from DefaultOptions.
type Options struct {
	FetchMode          FetchMode   `mapstructure:"fetchmode"`
	Portability        Portability `mapstructure:"portability"`
	FieldCase          Case        `mapstructure:"field_case"`
	LOBBufferLength    int         `mapstructure:"lob_buffer_length"`
	LOBAllowURLInclude bool        `mapstructure:"lob_allow_url_include"`
	// LOBStrictOpen makes a LOB source that cannot be opened fail the
	// execution instead of binding empty content.
	LOBStrictOpen   bool `mapstructure:"lob_strict_open"`
	DisableQuery    bool `mapstructure:"disable_query"`
	ResultBuffering bool `mapstructure:"result_buffering"`
	// EmulatePrepare substitutes quoted values client side instead of
	// issuing PREPARE on the server.
	EmulatePrepare bool `mapstructure:"emulate_prepared"`

	ObjectFactory ObjectFactory `mapstructure:"-"`
	Logger        *zap.Logger   `mapstructure:"-"`
}

// DefaultOptions returns the defaults: ordered fetches, all portability
// flags, lower-case field names, buffered results.
func DefaultOptions() Options {
	return Options{
		FetchMode:       FetchOrdered,
		Portability:     PortabilityAll,
		FieldCase:       CaseLower,
		LOBBufferLength: DefaultLOBBufferLength,
		ResultBuffering: true,
		ObjectFactory:   newObject,
		Logger:          zap.NewNop(),
	}
}

func (o *Options) fetchMode(mode FetchMode) FetchMode {
	if mode == FetchDefault {
		mode = o.FetchMode
	}
	if mode == FetchDefault {
		mode = FetchOrdered
	}
	return mode
}

func (o *Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o *Options) lobBufferLength() int {
	if o.LOBBufferLength <= 0 {
		return DefaultLOBBufferLength
	}
	return o.LOBBufferLength
}

// Option configures Options
type Option func(*Options)

// WithEmulatePrepare makes Conn.PrepareStatement skip server-side PREPARE
func WithEmulatePrepare(emulate bool) Option {
	return func(o *Options) {
		o.EmulatePrepare = emulate
	}
}

// WithFetchMode sets the default fetch mode
func WithFetchMode(mode FetchMode) Option {
	return func(o *Options) {
		o.FetchMode = mode
	}
}

// WithPortability sets the portability flags
func WithPortability(p Portability) Option {
	return func(o *Options) {
		o.Portability = p
	}
}

// WithFieldCase sets the case used by PortabilityFixCase
func WithFieldCase(c Case) Option {
	return func(o *Options) {
		o.FieldCase = c
	}
}

// WithLOBBufferLength sets the LOB read chunk size
func WithLOBBufferLength(n int) Option {
	return func(o *Options) {
		o.LOBBufferLength = n
	}
}

// WithLOBAllowURLInclude treats every bound value as a potential LOB locator
func WithLOBAllowURLInclude(allow bool) Option {
	return func(o *Options) {
		o.LOBAllowURLInclude = allow
	}
}

// WithLOBStrictOpen fails executions whose LOB source cannot be opened
func WithLOBStrictOpen(strict bool) Option {
	return func(o *Options) {
		o.LOBStrictOpen = strict
	}
}

// WithDisableQuery turns every execution into a no-op
func WithDisableQuery(disable bool) Option {
	return func(o *Options) {
		o.DisableQuery = disable
	}
}

// WithResultBuffering selects buffered (seekable) or streaming cursors
func WithResultBuffering(buffered bool) Option {
	return func(o *Options) {
		o.ResultBuffering = buffered
	}
}

// WithObjectFactory sets the constructor used by FetchObject
func WithObjectFactory(f ObjectFactory) Option {
	return func(o *Options) {
		o.ObjectFactory = f
	}
}

// WithLogger sets the logger receiving debug events
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithOptions replaces all decodable fields with opts, keeping the logger
// and object factory already set when opts leaves them nil.
func WithOptions(opts Options) Option {
	return func(o *Options) {
		factory, logger := o.ObjectFactory, o.Logger
		*o = opts
		if o.ObjectFactory == nil {
			o.ObjectFactory = factory
		}
		if o.Logger == nil {
			o.Logger = logger
		}
	}
}

// NewOptions returns DefaultOptions with opts applied.
func NewOptions(opts ...Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
