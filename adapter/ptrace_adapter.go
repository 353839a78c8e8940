// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package adapter converts the engine's released record batches into pdata
// traces, so kept traces can feed anything that speaks OTLP.
package adapter // import "go.opentelemetry.io/contrib/samplers/tailbuffer/adapter"

import (
	"context"

	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/ptrace"
	"go.uber.org/zap"

	"go.opentelemetry.io/contrib/samplers/tailbuffer"
)

// Consumer receives the converted traces of one kept trace. It has the shape
// of a collector traces consumer, so an OTLP exporter's ConsumeTraces slots
// in directly.
type Consumer func(ctx context.Context, td ptrace.Traces) error

// TracesExporter adapts record batches to ptrace.Traces and hands them to a
// Consumer. Drop notifications are discarded. It implements
// tailbuffer.Exporter.
type TracesExporter struct {
	consume Consumer
	logger  *zap.Logger
}

var _ tailbuffer.Exporter = (*TracesExporter)(nil)

// NewTracesExporter wraps consume. A nil logger falls back to a no-op.
func NewTracesExporter(consume Consumer, logger *zap.Logger) *TracesExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TracesExporter{consume: consume, logger: logger}
}

// Flush converts and forwards the records of a kept trace. Consumer errors
// are logged, not retried; retry policy belongs to the consumer.
func (e *TracesExporter) Flush(traceID tailbuffer.TraceID, records []tailbuffer.SpanRecord) {
	td := Convert(traceID, records)
	if td.SpanCount() == 0 {
		return
	}
	if err := e.consume(context.Background(), td); err != nil {
		e.logger.Warn("consumer rejected released trace",
			zap.Stringer("trace_id", traceID),
			zap.Int("spans", td.SpanCount()),
			zap.Error(err))
	}
}

// Drop is a no-op; discarded traces carry no payload to convert.
func (e *TracesExporter) Drop(tailbuffer.TraceID) {}

// Convert builds ptrace.Traces from one trace's records. Start and end
// records of the same span collapse into a single span with both timestamps;
// log records become span events on their parent span when it is present in
// the batch, otherwise standalone zero-duration spans.
func Convert(traceID tailbuffer.TraceID, records []tailbuffer.SpanRecord) ptrace.Traces {
	td := ptrace.NewTraces()
	if len(records) == 0 {
		return td
	}
	ss := td.ResourceSpans().AppendEmpty().ScopeSpans().AppendEmpty()
	ss.Scope().SetName("go.opentelemetry.io/contrib/samplers/tailbuffer")

	spans := make(map[tailbuffer.SpanID]ptrace.Span, len(records))
	for _, r := range records {
		switch r.Kind {
		case tailbuffer.KindSpanStart:
			span, ok := spans[r.SpanID]
			if !ok {
				span = ss.Spans().AppendEmpty()
				spans[r.SpanID] = span
				span.SetTraceID(pcommon.TraceID(traceID))
				span.SetSpanID(pcommon.SpanID(r.SpanID))
				span.SetParentSpanID(pcommon.SpanID(r.ParentSpanID))
			}
			span.SetStartTimestamp(pcommon.NewTimestampFromTime(r.Start))
			applyLevel(span, r)
		case tailbuffer.KindSpanEnd:
			span, ok := spans[r.SpanID]
			if !ok {
				// End without a buffered start: the start was emitted before
				// this trace began buffering. Emit the span with what we have.
				span = ss.Spans().AppendEmpty()
				spans[r.SpanID] = span
				span.SetTraceID(pcommon.TraceID(traceID))
				span.SetSpanID(pcommon.SpanID(r.SpanID))
				span.SetParentSpanID(pcommon.SpanID(r.ParentSpanID))
			}
			span.SetEndTimestamp(pcommon.NewTimestampFromTime(r.End))
			applyLevel(span, r)
		case tailbuffer.KindLog:
			if parent, ok := spans[r.SpanID]; ok && !r.SpanID.IsEmpty() {
				ev := parent.Events().AppendEmpty()
				ev.SetName("log")
				ev.SetTimestamp(pcommon.NewTimestampFromTime(r.Start))
				ev.Attributes().PutStr("level", r.Level.String())
				if r.Level >= tailbuffer.LevelError {
					setError(parent)
				}
				continue
			}
			span := ss.Spans().AppendEmpty()
			span.SetTraceID(pcommon.TraceID(traceID))
			span.SetParentSpanID(pcommon.SpanID(r.SpanID))
			span.SetName("log")
			span.SetStartTimestamp(pcommon.NewTimestampFromTime(r.Start))
			span.SetEndTimestamp(pcommon.NewTimestampFromTime(r.End))
			applyLevel(span, r)
		}
	}
	return td
}

func applyLevel(span ptrace.Span, r tailbuffer.SpanRecord) {
	if r.Level != tailbuffer.LevelUnset {
		span.Attributes().PutStr("level", r.Level.String())
	}
	if r.HadException || r.Level >= tailbuffer.LevelError {
		setError(span)
	}
}

func setError(span ptrace.Span) {
	span.Status().SetCode(ptrace.StatusCodeError)
}
