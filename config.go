// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package tailbuffer // import "go.opentelemetry.io/contrib/samplers/tailbuffer"

import (
	"time"

	"go.uber.org/zap"
)

// EvictionPolicy selects what happens to the least-recently-updated trace
// when the buffered-record ceiling is exceeded. Whether eviction should err
// on the side of keeping (more data) or dropping (cheaper) is workload
// dependent, so it is a policy rather than a fixed behavior.
type EvictionPolicy int8

const (
	// EvictBackgroundRate applies the background rate to the evicted trace,
	// as if its root span had just ended. This is the default.
	EvictBackgroundRate EvictionPolicy = iota
	// EvictKeep always flushes the evicted trace.
	EvictKeep
	// EvictDrop always discards the evicted trace.
	EvictDrop
)

// CustomRule is an optional tail-sampling callback. It receives the trace's
// rolling summary and returns a probability in [0,1] used as the tail sample
// rate for that trace; the engine converts it to a boolean with the same
// deterministic per-trace-id selection used everywhere else, so a given
// trace id always resolves the same way. It is consulted only when the
// level and duration thresholds did not fire.
type CustomRule func(Summary) float64

// Config holds the immutable sampling configuration. It is read once at
// construction and never mutated afterwards. Start from DefaultConfig and
// override fields; a zero Config keeps nothing.
type Config struct {
	// HeadRate is the probability that a trace is included by the head
	// sampling decision made at trace start. When no tail criteria are
	// configured, a head-rejected trace is dropped before any allocation
	// and all its descendants follow deterministically.
	HeadRate float64

	// BackgroundRate is the probability that a buffered trace which never
	// met any tail criterion is kept anyway when its root span ends.
	// Clamped down to TailSampleRate when larger.
	BackgroundRate float64

	// TailSampleRate is the probability applied to traces whose level or
	// duration threshold fired: it allows keeping only a fraction of
	// qualifying traces. 1 keeps every qualifying trace.
	TailSampleRate float64

	// LevelThreshold keeps a trace once any record at or above this
	// severity is observed. Zero disables the rule. A record carrying an
	// exception marker counts as LevelError.
	LevelThreshold Level

	// DurationThreshold keeps a trace once its observed extent (latest
	// observed timestamp minus earliest start) reaches this value, even if
	// the root span is still open. Zero disables the rule.
	DurationThreshold time.Duration

	// CustomRule is evaluated when neither threshold fired. Nil disables it.
	CustomRule CustomRule

	// RateLimit caps tail-kept traces per second; a qualifying trace over
	// the limit falls back to the background path. Zero means no limit.
	RateLimit float64

	// MaxBufferedRecords bounds the total number of records buffered across
	// all undecided traces. When exceeded, least-recently-updated traces
	// are force-decided per EvictionPolicy. Zero means unbounded.
	MaxBufferedRecords int

	// EvictionPolicy is applied to traces evicted under memory pressure.
	EvictionPolicy EvictionPolicy

	// DecisionWindow is how long a decided trace id is remembered so that
	// late-arriving records replay the prior decision instead of starting a
	// fresh buffer. After the window expires the same id is treated as a
	// new trace.
	DecisionWindow time.Duration

	// DecisionCacheSize bounds each of the kept/discarded id caches.
	// Zero disables decision caching entirely.
	DecisionCacheSize int

	// ExportQueueSize is the capacity of the queue between the engine and
	// the exporter worker. A full queue drops the batch with a diagnostic,
	// it never blocks the caller.
	ExportQueueSize int

	// ShutdownFlushTimeout bounds how long Shutdown spends flushing
	// undecided buffers before dropping the remainder.
	ShutdownFlushTimeout time.Duration
}

// DefaultConfig returns a configuration that keeps every trace: head rate 1
// and no tail criteria. Callers override the fields they need.
func DefaultConfig() Config {
	return Config{
		HeadRate:             1,
		TailSampleRate:       1,
		MaxBufferedRecords:   50_000,
		DecisionWindow:       30 * time.Second,
		DecisionCacheSize:    10_000,
		ExportQueueSize:      64,
		ShutdownFlushTimeout: 5 * time.Second,
	}
}

// tailEnabled reports whether any tail criterion is configured, which is
// what forces traces through the buffering path.
func (c Config) tailEnabled() bool {
	return c.LevelThreshold != LevelUnset || c.DurationThreshold > 0 || c.CustomRule != nil
}

// normalize clamps out-of-range values, logging a warning for each. Invalid
// configuration is never fatal: observability code must not be able to take
// down the application it observes.
func (c *Config) normalize(logger *zap.Logger) {
	c.HeadRate = clampRate(logger, "HeadRate", c.HeadRate)
	c.BackgroundRate = clampRate(logger, "BackgroundRate", c.BackgroundRate)
	c.TailSampleRate = clampRate(logger, "TailSampleRate", c.TailSampleRate)
	if c.BackgroundRate > c.TailSampleRate {
		logger.Warn("BackgroundRate exceeds TailSampleRate, clamping",
			zap.Float64("background_rate", c.BackgroundRate),
			zap.Float64("tail_sample_rate", c.TailSampleRate))
		c.BackgroundRate = c.TailSampleRate
	}
	if c.RateLimit < 0 {
		logger.Warn("negative RateLimit treated as unlimited", zap.Float64("rate_limit", c.RateLimit))
		c.RateLimit = 0
	}
	if c.MaxBufferedRecords < 0 {
		c.MaxBufferedRecords = 0
	}
	if c.DecisionCacheSize < 0 {
		c.DecisionCacheSize = 0
	}
	if c.DecisionWindow <= 0 {
		c.DecisionCacheSize = 0
	}
	if c.ExportQueueSize <= 0 {
		c.ExportQueueSize = 1
	}
	if c.ShutdownFlushTimeout <= 0 {
		c.ShutdownFlushTimeout = 5 * time.Second
	}
}

func clampRate(logger *zap.Logger, name string, v float64) float64 {
	switch {
	case v < 0:
		logger.Warn("sampling rate below 0, clamping", zap.String("field", name), zap.Float64("value", v))
		return 0
	case v > 1:
		logger.Warn("sampling rate above 1, clamping", zap.String("field", name), zap.Float64("value", v))
		return 1
	default:
		return v
	}
}
