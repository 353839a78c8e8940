// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry holds the engine's self-observation instruments.
package telemetry // import "go.opentelemetry.io/contrib/samplers/tailbuffer/internal/telemetry"

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ScopeName is the instrumentation scope reported for engine metrics.
const ScopeName = "go.opentelemetry.io/contrib/samplers/tailbuffer"

// Measurement options shared by the decision counters.
var (
	AttrDecisionSampled    = metric.WithAttributes(attribute.String("decision", "sampled"))
	AttrDecisionNotSampled = metric.WithAttributes(attribute.String("decision", "not_sampled"))
	AttrReasonRule         = metric.WithAttributes(attribute.String("reason", "rule"))
	AttrReasonBackground   = metric.WithAttributes(attribute.String("reason", "background"))
	AttrReasonEviction     = metric.WithAttributes(attribute.String("reason", "eviction"))
	AttrReasonShutdown     = metric.WithAttributes(attribute.String("reason", "shutdown"))
)

// Builder creates the engine's counters from a meter.
type Builder struct {
	TracesDecided   metric.Int64Counter
	TracesEvicted   metric.Int64Counter
	RecordsDropped  metric.Int64Counter
	LateRecords     metric.Int64Counter
	QueueFullDrops  metric.Int64Counter
	TracesOnTable   metric.Int64UpDownCounter
	BufferedRecords metric.Int64UpDownCounter
}

// NewBuilder creates every instrument on the given meter. Instrument
// creation failures are joined; callers treat them as construction errors.
func NewBuilder(meter metric.Meter) (*Builder, error) {
	b := &Builder{}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	var err error
	b.TracesDecided, err = meter.Int64Counter("tailbuffer.traces.decided",
		metric.WithDescription("Traces that reached a terminal sampling decision"))
	add(err)
	b.TracesEvicted, err = meter.Int64Counter("tailbuffer.traces.evicted",
		metric.WithDescription("Traces force-decided early under memory pressure"))
	add(err)
	b.RecordsDropped, err = meter.Int64Counter("tailbuffer.records.dropped",
		metric.WithDescription("Records dropped before buffering by the head decision"))
	add(err)
	b.LateRecords, err = meter.Int64Counter("tailbuffer.records.late",
		metric.WithDescription("Records arriving for an already-decided trace id"))
	add(err)
	b.QueueFullDrops, err = meter.Int64Counter("tailbuffer.export_queue.dropped",
		metric.WithDescription("Release batches dropped because the export queue was full"))
	add(err)
	b.TracesOnTable, err = meter.Int64UpDownCounter("tailbuffer.traces.buffering",
		metric.WithDescription("Traces currently held undecided"))
	add(err)
	b.BufferedRecords, err = meter.Int64UpDownCounter("tailbuffer.records.buffering",
		metric.WithDescription("Records currently buffered across all undecided traces"))
	add(err)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return b, nil
}
