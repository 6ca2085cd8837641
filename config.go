package calcgraph

import (
	"io"
	"log"
	"runtime"
)

// DateSystem names a serial-date epoch. The engine stores it on Config;
// no code in this package reads it, and date literals hold raw serials.
type DateSystem uint8

const (
	DateSystem1900 DateSystem = iota
	DateSystem1904
)

// WarmupConfig holds warmup settings. The engine stores them on Config
// only: no warmup pass runs, and the warmup fields of EvalMetrics are never
// incremented by the engine.
type WarmupConfig struct {
	Enabled           bool
	CandidateFraction float64
}

// Config is the engine's functional-options configuration, covering every
// knob in spec §6's table: concurrency, range/stripe indexing, value-read
// mode, overlay memory, determinism, and logging.
type Config struct {
	EnableParallel  bool
	MaxThreads      int
	RangeExpansionLimit int
	StripeHeight        int32
	StripeWidth         int32
	EnableBlockStripes  bool

	ArrowCanonicalValues  bool
	MaxOverlayMemoryBytes int64

	DeterministicMode bool
	DateSystem        DateSystem

	MaskCacheEntries int
	FlatCacheBytes   int64

	Warmup WarmupConfig

	Logger *log.Logger
}

// Option configures a Config.
type Option func(*Config)

// DefaultConfig mirrors spec §6's defaults. Logging is disabled (the
// logger writes to io.Discard) unless WithLogger supplies one, matching
// the teacher's pattern of an always-present but normally-silent logger.
func DefaultConfig() *Config {
	gc := DefaultGraphConfig()
	return &Config{
		EnableParallel:        true,
		MaxThreads:            runtime.GOMAXPROCS(0),
		RangeExpansionLimit:   gc.RangeExpansionLimit,
		StripeHeight:          gc.StripeHeight,
		StripeWidth:           gc.StripeWidth,
		EnableBlockStripes:    gc.EnableBlockStripes,
		ArrowCanonicalValues:  false,
		MaxOverlayMemoryBytes: 0,
		DeterministicMode:     false,
		DateSystem:            DateSystem1900,
		MaskCacheEntries:      256,
		FlatCacheBytes:        64 << 20,
		Logger:                log.New(io.Discard, "calcgraph: ", log.LstdFlags),
	}
}

// NewConfig builds a Config from DefaultConfig with opts applied in order.
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithParallel toggles parallel layer planning.
func WithParallel(enabled bool) Option { return func(c *Config) { c.EnableParallel = enabled } }

// WithMaxThreads caps the worker pool size used to plan a layer.
func WithMaxThreads(n int) Option { return func(c *Config) { c.MaxThreads = n } }

// WithRangeExpansionLimit sets the cell-count threshold below which a
// bounded range is expanded into direct per-cell edges.
func WithRangeExpansionLimit(n int) Option {
	return func(c *Config) { c.RangeExpansionLimit = n }
}

// WithStripeSize sets the block dimensions used when EnableBlockStripes is set.
func WithStripeSize(height, width int32) Option {
	return func(c *Config) { c.StripeHeight, c.StripeWidth = height, width }
}

// WithBlockStripes toggles splitting large stripe-indexed ranges into
// stripe_height/stripe_width blocks instead of one coarse band.
func WithBlockStripes(enabled bool) Option {
	return func(c *Config) { c.EnableBlockStripes = enabled }
}

// WithArrowCanonicalValues switches reads to Arrow-truth mode: the graph
// value cache is never read, and overlay-budget exhaustion panics instead
// of silently falling back.
func WithArrowCanonicalValues(enabled bool) Option {
	return func(c *Config) { c.ArrowCanonicalValues = enabled }
}

// WithMaxOverlayMemoryBytes caps the columnar store's computed overlay.
func WithMaxOverlayMemoryBytes(n int64) Option {
	return func(c *Config) { c.MaxOverlayMemoryBytes = n }
}

// WithDeterministicMode sets Config.DeterministicMode. Nothing in the engine
// reads the flag: no timestamp is injected, and the demo function registry
// has no time functions.
func WithDeterministicMode(enabled bool) Option {
	return func(c *Config) { c.DeterministicMode = enabled }
}

// WithDateSystem records the 1900 or 1904 serial-date epoch on Config;
// nothing in the engine reads it.
func WithDateSystem(ds DateSystem) Option { return func(c *Config) { c.DateSystem = ds } }

// WithMaskCacheEntries sets the row-visibility mask LRU's capacity.
func WithMaskCacheEntries(n int) Option { return func(c *Config) { c.MaskCacheEntries = n } }

// WithFlatCacheBytes sets the pass-scoped flat-range cache's memory budget.
func WithFlatCacheBytes(n int64) Option { return func(c *Config) { c.FlatCacheBytes = n } }

// WithWarmup records the warmup flag and candidate-selection fraction on
// Config; no warmup pass reads them.
func WithWarmup(enabled bool, candidateFraction float64) Option {
	return func(c *Config) { c.Warmup = WarmupConfig{Enabled: enabled, CandidateFraction: candidateFraction} }
}

// WithLogger installs a logger; nil is rejected in favor of the silent default.
func WithLogger(l *log.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}
