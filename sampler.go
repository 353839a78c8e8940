// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package tailbuffer // import "go.opentelemetry.io/contrib/samplers/tailbuffer"

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"go.opentelemetry.io/contrib/samplers/tailbuffer/internal/decisioncache"
	"go.opentelemetry.io/contrib/samplers/tailbuffer/internal/telemetry"
	"go.opentelemetry.io/contrib/samplers/tailbuffer/internal/tracelimiter"
)

// Sampler is the trace buffering and sampling decision engine. Span and log
// events enter through the On* methods; kept traces leave through the
// Exporter on a dedicated worker goroutine. All methods are safe for
// concurrent use and none of them block on downstream I/O.
//
// With no tail criteria configured the engine is a pass-through head
// sampler: records of head-accepted traces are forwarded as they arrive and
// nothing is ever buffered. Configuring a level threshold, a duration
// threshold or a custom rule switches every trace onto the buffering path,
// where records accumulate until a rule fires or the root span ends.
type Sampler struct {
	cfg    Config
	logger *zap.Logger
	clock  func() time.Time

	rule   ruleEvaluator
	custom CustomRule

	// idToTrace maps TraceID to *traceBuffer for every undecided trace.
	idToTrace sync.Map
	limiter   *tracelimiter.Limiter

	sampledIDs    decisioncache.Cache
	nonSampledIDs decisioncache.Cache

	// keptLimiter throttles rule-fired keeps; over the limit a qualifying
	// trace is demoted to the background path.
	keptLimiter *rate.Limiter

	queue *exportQueue

	meterProvider metric.MeterProvider
	metrics       *telemetry.Builder
	metricsCtx    context.Context

	stopped atomic.Bool

	tracesSampled    atomic.Int64
	tracesNotSampled atomic.Int64
	tracesEvicted    atomic.Int64
	headRejected     atomic.Int64
	lateRecords      atomic.Int64
	queueFullDrops   atomic.Int64
	tracesOnMap      atomic.Int64
	bufferedRecords  atomic.Int64
}

// New creates a Sampler delivering kept traces to exporter. The configuration
// is normalized rather than rejected: out-of-range rates are clamped with a
// warning so a bad value can never take the instrumented application down.
func New(cfg Config, exporter Exporter, opts ...Option) (*Sampler, error) {
	if exporter == nil {
		return nil, errors.New("tailbuffer: exporter must not be nil")
	}
	s := &Sampler{
		cfg:        cfg,
		logger:     zap.NewNop(),
		clock:      time.Now,
		metricsCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg.normalize(s.logger)
	s.rule = buildRule(s.cfg)
	s.custom = s.cfg.CustomRule

	if s.cfg.DecisionCacheSize > 0 {
		s.sampledIDs = decisioncache.NewLRU(s.cfg.DecisionCacheSize, s.cfg.DecisionWindow)
		s.nonSampledIDs = decisioncache.NewLRU(s.cfg.DecisionCacheSize, s.cfg.DecisionWindow)
	} else {
		s.sampledIDs = decisioncache.NewNop()
		s.nonSampledIDs = decisioncache.NewNop()
	}
	if s.cfg.MaxBufferedRecords > 0 && s.cfg.tailEnabled() {
		s.limiter = tracelimiter.New(s.cfg.MaxBufferedRecords)
	}
	if s.cfg.RateLimit > 0 {
		s.keptLimiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), int(math.Ceil(s.cfg.RateLimit)))
	}
	if s.meterProvider == nil {
		s.meterProvider = noop.NewMeterProvider()
	}
	mb, err := telemetry.NewBuilder(s.meterProvider.Meter(telemetry.ScopeName))
	if err != nil {
		return nil, fmt.Errorf("tailbuffer: creating instruments: %w", err)
	}
	s.metrics = mb
	s.queue = newExportQueue(exporter, s.cfg.ExportQueueSize)

	s.logger.Debug("sampler started",
		zap.Float64("head_rate", s.cfg.HeadRate),
		zap.Float64("background_rate", s.cfg.BackgroundRate),
		zap.Bool("tail_enabled", s.cfg.tailEnabled()))
	return s, nil
}

// OnSpanStart records that a span began. An empty parentSpanID marks the
// root span of the trace.
func (s *Sampler) OnSpanStart(traceID TraceID, spanID, parentSpanID SpanID, start time.Time, level Level) {
	s.process(traceID, SpanRecord{
		SpanID:       spanID,
		ParentSpanID: parentSpanID,
		Kind:         KindSpanStart,
		Start:        start,
		Level:        level,
	})
}

// OnSpanEnd records that a span finished. The parent id is recovered from
// the buffered start record, so callers do not need to carry it.
func (s *Sampler) OnSpanEnd(traceID TraceID, spanID SpanID, end time.Time, level Level, hadException bool) {
	s.process(traceID, SpanRecord{
		SpanID:       spanID,
		Kind:         KindSpanEnd,
		End:          end,
		Level:        level,
		HadException: hadException,
	})
}

// OnLogRecord records a log line emitted within the trace. spanID may be
// empty when the log is not attached to a span.
func (s *Sampler) OnLogRecord(traceID TraceID, spanID SpanID, ts time.Time, level Level) {
	s.process(traceID, SpanRecord{
		SpanID: spanID,
		Kind:   KindLog,
		Start:  ts,
		End:    ts,
		Level:  level,
	})
}

// process routes one record: replay a cached decision, pass it through the
// head decision, or append it to the trace's buffer and re-evaluate.
func (s *Sampler) process(id TraceID, r SpanRecord) {
	if s.stopped.Load() || id.IsEmpty() {
		return
	}

	if s.sampledIDs.Get(id) {
		s.forward(id, r)
		return
	}
	if s.nonSampledIDs.Get(id) {
		s.lateRecords.Add(1)
		s.metrics.LateRecords.Add(s.metricsCtx, 1)
		return
	}

	if !s.cfg.tailEnabled() {
		// Pure head sampling: the decision is a deterministic function of the
		// trace id, so it needs no buffer and no cache, and every descendant
		// event of the same trace resolves identically.
		if sampledByRate(id, s.cfg.HeadRate) {
			s.forward(id, r)
		} else {
			s.headRejected.Add(1)
			s.metrics.RecordsDropped.Add(s.metricsCtx, 1)
		}
		return
	}

	v, ok := s.idToTrace.Load(id)
	if !ok {
		nb := newTraceBuffer(id, s.clock())
		if v, ok = s.idToTrace.LoadOrStore(id, nb); !ok {
			s.tracesOnMap.Add(1)
			s.metrics.TracesOnTable.Add(s.metricsCtx, 1)
		}
	}
	b := v.(*traceBuffer)

	b.mu.Lock()
	if b.decision != Pending {
		// Lost a race with the deciding goroutine; replay its outcome.
		dec := b.decision
		b.mu.Unlock()
		if dec == Sampled {
			s.forward(id, r)
		} else {
			s.lateRecords.Add(1)
			s.metrics.LateRecords.Add(s.metricsCtx, 1)
		}
		return
	}

	b.appendLocked(r)
	s.bufferedRecords.Add(1)
	s.metrics.BufferedRecords.Add(s.metricsCtx, 1)
	sum := b.summary

	keep := false
	if s.rule != nil && s.rule.Evaluate(sum) == Sampled {
		keep = sampledByRate(id, s.cfg.TailSampleRate)
	} else if s.custom != nil {
		if p := clamp01(s.custom(sum)); p > 0 {
			keep = sampledByRate(id, p)
		}
	}
	if keep && s.keptLimiter != nil && !s.keptLimiter.Allow() {
		// Over the kept-traces budget; this trace falls back to the
		// background path instead of being kept by the rule.
		keep = false
	}

	if keep {
		b.decision = Sampled
		b.decisionTime = s.clock()
		records := b.drainLocked()
		b.mu.Unlock()
		s.finalize(id, records, telemetry.AttrReasonRule)
		return
	}

	if sum.RootEnded {
		// The trace completed without meeting any criterion: roll the
		// background rate, once, deterministically.
		dec := NotSampled
		var records []SpanRecord
		n := len(b.records)
		if sampledByRate(id, s.cfg.BackgroundRate) {
			dec = Sampled
			records = b.drainLocked()
		} else {
			b.discardLocked()
		}
		b.decision = dec
		b.decisionTime = s.clock()
		b.mu.Unlock()
		if dec == Sampled {
			s.finalize(id, records, telemetry.AttrReasonBackground)
		} else {
			s.finalizeDiscard(id, n, telemetry.AttrReasonBackground)
		}
		return
	}
	b.mu.Unlock()

	if s.limiter != nil {
		for _, victim := range s.limiter.Touch([16]byte(id), 1) {
			s.evict(TraceID(victim))
		}
	}
}

// evict force-decides a trace named by the limiter as an eviction victim.
func (s *Sampler) evict(id TraceID) {
	v, ok := s.idToTrace.Load(id)
	if !ok {
		return
	}
	b := v.(*traceBuffer)
	b.mu.Lock()
	if b.decision != Pending {
		b.mu.Unlock()
		return
	}
	keep := false
	switch s.cfg.EvictionPolicy {
	case EvictKeep:
		keep = true
	case EvictDrop:
		keep = false
	default:
		keep = sampledByRate(id, s.cfg.BackgroundRate)
	}
	n := len(b.records)
	var records []SpanRecord
	if keep {
		b.decision = Sampled
		records = b.drainLocked()
	} else {
		b.decision = NotSampled
		b.discardLocked()
	}
	b.decisionTime = s.clock()
	dec := b.decision
	b.mu.Unlock()

	s.tracesEvicted.Add(1)
	s.metrics.TracesEvicted.Add(s.metricsCtx, 1)
	s.logger.Debug("trace evicted under memory pressure",
		zap.Stringer("trace_id", id),
		zap.Stringer("decision", dec),
		zap.Int("records", n))
	if dec == Sampled {
		s.finalize(id, records, telemetry.AttrReasonEviction)
	} else {
		s.finalizeDiscard(id, n, telemetry.AttrReasonEviction)
	}
}

// finalize completes a keep decision: remember it, remove the trace from the
// table and hand its records to the export worker.
func (s *Sampler) finalize(id TraceID, records []SpanRecord, reason metric.MeasurementOption) {
	// The cache entry must exist before the buffer leaves the table so no
	// concurrent event can slip between the two lookups and start a fresh
	// buffer for a decided id.
	s.sampledIDs.Put(id)
	s.release(id, len(records))

	s.tracesSampled.Add(1)
	s.metrics.TracesDecided.Add(s.metricsCtx, 1, telemetry.AttrDecisionSampled, reason)
	if !s.queue.enqueue(exportBatch{id: id, records: records}) {
		s.queueFullDrops.Add(1)
		s.metrics.QueueFullDrops.Add(s.metricsCtx, 1)
		s.logger.Warn("export queue full, dropping released trace",
			zap.Stringer("trace_id", id),
			zap.Int("records", len(records)))
	}
}

// finalizeDiscard completes a drop decision for a trace that buffered n
// records.
func (s *Sampler) finalizeDiscard(id TraceID, n int, reason metric.MeasurementOption) {
	s.nonSampledIDs.Put(id)
	s.release(id, n)

	s.tracesNotSampled.Add(1)
	s.metrics.TracesDecided.Add(s.metricsCtx, 1, telemetry.AttrDecisionNotSampled, reason)
	if !s.queue.enqueue(exportBatch{id: id, drop: true}) {
		s.queueFullDrops.Add(1)
		s.metrics.QueueFullDrops.Add(s.metricsCtx, 1)
	}
}

// release removes a decided trace from the table and settles the buffering
// accounting. Eviction victims were already removed from the limiter, but
// Remove is repeated anyway: a concurrent append may have re-registered the
// trace between the limiter's removal and the decision.
func (s *Sampler) release(id TraceID, n int) {
	if _, ok := s.idToTrace.LoadAndDelete(id); ok {
		s.tracesOnMap.Add(-1)
		s.metrics.TracesOnTable.Add(s.metricsCtx, -1)
	}
	if s.limiter != nil {
		s.limiter.Remove([16]byte(id))
	}
	s.bufferedRecords.Add(-int64(n))
	s.metrics.BufferedRecords.Add(s.metricsCtx, -int64(n))
}

// forward sends a single record of an already-kept trace straight to the
// export worker.
func (s *Sampler) forward(id TraceID, r SpanRecord) {
	if !s.queue.enqueue(exportBatch{id: id, records: []SpanRecord{r}}) {
		s.queueFullDrops.Add(1)
		s.metrics.QueueFullDrops.Add(s.metricsCtx, 1)
	}
}

// Shutdown stops the engine. Every still-undecided trace is flushed as
// kept (dropping buffered evidence silently would defeat the point of
// buffering it), bounded by ShutdownFlushTimeout; then the export queue is
// drained. Events arriving after Shutdown are discarded. Safe to call more
// than once.
func (s *Sampler) Shutdown(ctx context.Context) error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownFlushTimeout)
	defer cancel()

	var abandoned int
	s.idToTrace.Range(func(k, v any) bool {
		id := k.(TraceID)
		b := v.(*traceBuffer)
		b.mu.Lock()
		if b.decision != Pending {
			b.mu.Unlock()
			return true
		}
		b.decision = Sampled
		b.decisionTime = s.clock()
		records := b.drainLocked()
		b.mu.Unlock()

		s.sampledIDs.Put(id)
		s.release(id, len(records))
		s.tracesSampled.Add(1)
		s.metrics.TracesDecided.Add(s.metricsCtx, 1, telemetry.AttrDecisionSampled, telemetry.AttrReasonShutdown)
		if !s.queue.send(ctx, exportBatch{id: id, records: records}) {
			abandoned++
		}
		return true
	})
	if abandoned > 0 {
		s.logger.Warn("shutdown flush timed out, traces abandoned", zap.Int("traces", abandoned))
	}
	if err := s.queue.close(ctx); err != nil {
		s.logger.Warn("export queue did not drain before shutdown deadline", zap.Error(err))
	}
	return nil
}

// Stats is a point-in-time snapshot of the engine's counters, for tests and
// debugging endpoints.
type Stats struct {
	// TracesSampled counts traces released to the exporter, whatever the
	// reason (rule, background rate, eviction, shutdown).
	TracesSampled int64
	// TracesNotSampled counts traces discarded.
	TracesNotSampled int64
	// TracesEvicted counts traces force-decided under memory pressure.
	TracesEvicted int64
	// HeadRejectedRecords counts records dropped by the pass-through head
	// decision.
	HeadRejectedRecords int64
	// LateRecords counts records arriving for an id already decided as
	// not sampled.
	LateRecords int64
	// QueueFullDrops counts export batches lost to a full queue.
	QueueFullDrops int64
	// BufferingTraces is the number of traces currently undecided.
	BufferingTraces int64
	// BufferedRecords is the number of records currently buffered.
	BufferedRecords int64
}

// Stats returns a snapshot of the engine's counters.
func (s *Sampler) Stats() Stats {
	return Stats{
		TracesSampled:       s.tracesSampled.Load(),
		TracesNotSampled:    s.tracesNotSampled.Load(),
		TracesEvicted:       s.tracesEvicted.Load(),
		HeadRejectedRecords: s.headRejected.Load(),
		LateRecords:         s.lateRecords.Load(),
		QueueFullDrops:      s.queueFullDrops.Load(),
		BufferingTraces:     s.tracesOnMap.Load(),
		BufferedRecords:     s.bufferedRecords.Load(),
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
