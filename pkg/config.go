package densehash

// config.go defines the internal configuration object and the set of
// functional options that can be passed to New[K,V].  A generic Option is used
// so that callbacks retain full type‑safety with respect to the concrete value
// type V and key type K chosen by the user.
//
// Design notes
// ------------
// • All fields are initialised with sensible defaults in defaultConfig().
// • Options never allocate unless strictly necessary – they just capture
//   pointers to external objects (registry, logger …).
// • We hide the struct from public API: users can only influence behaviour via
//   Option[K,V].  This guarantees forward compatibility.
//
// © 2025 densehash authors. MIT License.

import (
	"github.com/abhivetukuri/Unordered-Dense-Map/internal/hashing"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option is the functional option passed to New.
type Option[K comparable, V any] func(*config[K, V])

// config bundles every knob that influences table behaviour.  All fields are
// immutable once the Map is constructed.
type config[K comparable, V any] struct {
	initialCapacity int
	maxLoad         float64
	provider        hashing.Provider[K]

	// optional knobs
	registry *prometheus.Registry
	logger   *zap.Logger

	consistencyCheck bool
}

/*
   ---------------- Default configuration ----------------
*/

func defaultConfig[K comparable, V any]() *config[K, V] {
	return &config[K, V]{
		initialCapacity: InitialCapacity,
		maxLoad:         MaxLoadFactor,
		provider:        hashing.NewDefault[K](),
		logger:          zap.NewNop(),
		registry:        nil, // user must opt-in to metrics
	}
}

/*
   ---------------- Functional options exposed to users ----------------
*/

// WithInitialCapacity starts the table with at least n slots (rounded up to a
// power of two) so the caller can avoid early resizes when the final size is
// roughly known up front. Unlike Reserve, n counts slots, not entries.
func WithInitialCapacity[K comparable, V any](n int) Option[K, V] {
	return func(c *config[K, V]) {
		if n > 0 {
			c.initialCapacity = n
		}
	}
}

// WithMaxLoadFactor overrides MaxLoadFactor (§6.3). The value must lie in the
// open interval (0, 1); New reports ErrInvalidOption otherwise.
func WithMaxLoadFactor[K comparable, V any](lf float64) Option[K, V] {
	return func(c *config[K, V]) {
		c.maxLoad = lf
	}
}

// WithHasher plugs a user-supplied Hash/Fingerprint Provider in place of the
// default maphash-based one (§6.1). Useful for deterministic tests that need
// reproducible bucket placement, or for a specialised hash over a known key
// distribution.
func WithHasher[K comparable, V any](p hashing.Provider[K]) Option[K, V] {
	return func(c *config[K, V]) {
		if p != nil {
			c.provider = p
		}
	}
}

// WithMetrics enables Prometheus metrics collection for the table instance.
// Passing nil disables metrics (default).
func WithMetrics[K comparable, V any](reg *prometheus.Registry) Option[K, V] {
	return func(c *config[K, V]) {
		c.registry = reg
	}
}

// WithLogger plugs an external zap.Logger.  The table never logs on the hot
// path; only resize events and consistency-check findings are emitted.
func WithLogger[K comparable, V any](l *zap.Logger) Option[K, V] {
	return func(c *config[K, V]) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithConsistencyCheck turns on the optional debug hook named in §7
// (ProviderInconsistency): on every compaction the table recomputes the moved
// entry's hash and logs a Warn if it no longer maps to the bucket that
// referenced it. Intended for test builds — it roughly doubles erase cost.
func WithConsistencyCheck[K comparable, V any](enabled bool) Option[K, V] {
	return func(c *config[K, V]) {
		c.consistencyCheck = enabled
	}
}

/*
   ---------------- Helper: apply options & validate ----------------
*/

// applyOptions copies user‑supplied options into cfg and validates invariants.
func applyOptions[K comparable, V any](cfg *config[K, V], opts []Option[K, V]) error {
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.maxLoad <= 0 || cfg.maxLoad >= 1 {
		return ErrInvalidOption
	}
	if cfg.initialCapacity < 1 {
		cfg.initialCapacity = InitialCapacity
	}
	return nil
}
