package substrate

// config.go defines the public Config object and the functional options
// used to tune a Region beyond its required sizing parameters. Mirrors the
// teacher's defaultConfig/applyOptions shape: sensible defaults, options
// that only capture pointers to external objects (logger, registry,
// codec), validation before derived fields are computed.

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/shmsubstrate/core/internal/shmregion"
	"github.com/shmsubstrate/core/internal/valuestore"
)

// Option configures a Config produced by defaultConfig before Init runs.
type Option func(*Config)

// Config bundles every knob Init needs. Unset unexported fields are
// filled in by finalize() once every option has run.
type Config struct {
	GlobalBytes uint64
	HeapBytes   uint64
	DepLog2     uint
	HashLog2    uint

	BackingDir    string
	MinAvailBytes uint64

	registry *prometheus.Registry
	logger   *zap.Logger
	codec    valuestore.Codec
}

// defaultConfig returns a Config with the sizes the caller supplies, no
// metrics registry and a no-op logger. The codec is left nil here;
// finalize substitutes the raw []byte/string passthrough codec.
func defaultConfig(globalBytes, heapBytes uint64, depLog2, hashLog2 uint) Config {
	return Config{
		GlobalBytes: globalBytes,
		HeapBytes:   heapBytes,
		DepLog2:     depLog2,
		HashLog2:    hashLog2,
		logger:      zap.NewNop(),
	}
}

// NewConfig builds a validated Config ready to pass to Init. Sizes are
// required positionally; every other knob is an Option (spec.md §7
// "Configuration", following the teacher's defaultConfig/applyOptions
// split).
func NewConfig(globalBytes, heapBytes uint64, depLog2, hashLog2 uint, opts ...Option) (Config, error) {
	cfg := defaultConfig(globalBytes, heapBytes, depLog2, hashLog2)
	if err := applyOptions(&cfg, opts); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WithMetrics enables Prometheus metrics collection for the region.
// Passing nil disables metrics (the default).
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *Config) { c.registry = reg }
}

// WithLogger plugs an external zap.Logger. The region never logs on the
// hot path; only slow/rare events (creation, attach, collect, stuck
// writers) are emitted.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCodec overrides the default raw passthrough codec used to encode
// values that are not already []byte or string.
func WithCodec(codec valuestore.Codec) Option {
	return func(c *Config) {
		if codec != nil {
			c.codec = codec
		}
	}
}

// WithBackingDir selects a directory-backed shared memory object instead
// of the default memfd-backed anonymous mapping (spec.md §4.1 "backing
// object fallback").
func WithBackingDir(dir string, minAvailBytes uint64) Option {
	return func(c *Config) {
		c.BackingDir = dir
		c.MinAvailBytes = minAvailBytes
	}
}

func applyOptions(cfg *Config, opts []Option) error {
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg.finalize()
}

// finalize fills unset optional knobs and validates required sizes. Called
// both by applyOptions and by Init, so a Config built without going
// through NewConfig still behaves.
func (c *Config) finalize() error {
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.codec == nil {
		c.codec = passthroughCodec{}
	}
	if c.GlobalBytes == 0 {
		return errInvalidGlobalBytes
	}
	if c.HeapBytes == 0 {
		return errInvalidHeapBytes
	}
	if c.DepLog2 == 0 || c.HashLog2 == 0 {
		return errInvalidTableSize
	}
	return nil
}

func (c Config) sizes() shmregion.Sizes {
	return shmregion.Sizes{
		GlobalBytes: c.GlobalBytes,
		HeapBytes:   c.HeapBytes,
		DepLog2:     c.DepLog2,
		HashLog2:    c.HashLog2,
	}
}

var (
	errInvalidGlobalBytes = errors.New("substrate: global_bytes must be > 0")
	errInvalidHeapBytes   = errors.New("substrate: heap_bytes must be > 0")
	errInvalidTableSize   = errors.New("substrate: dep_log2 and hash_log2 must be > 0")
)

// passthroughCodec is the default Codec. valuestore.Store stores raw
// []byte/string values without consulting a codec; for any other value
// both methods are called and return errUnsupportedValue.
type passthroughCodec struct{}

func (passthroughCodec) Serialize(v any) ([]byte, error) {
	return nil, errUnsupportedValue
}

func (passthroughCodec) Deserialize(data []byte, out any) error {
	return errUnsupportedValue
}

var errUnsupportedValue = errors.New("substrate: value is not []byte/string and no codec was configured (use WithCodec)")
