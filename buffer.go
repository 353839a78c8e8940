// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package tailbuffer // import "go.opentelemetry.io/contrib/samplers/tailbuffer"

import (
	"sync"
	"time"
)

// traceBuffer accumulates the records of one undecided trace together with
// the rolling summary the decision rules evaluate. All mutation happens
// under mu; the engine locks one buffer at a time, so unrelated traces never
// contend.
type traceBuffer struct {
	mu sync.Mutex

	arrival time.Time
	records []SpanRecord
	// spanIndex maps a span id to the index of its start record, used to
	// recover the parent id (and thus root-ness) when the end arrives.
	spanIndex map[SpanID]int
	summary   Summary
	// decision is Pending while buffering and terminal afterwards. A
	// goroutine that loaded this buffer before it was removed from the
	// table observes the terminal value and replays it.
	decision     Decision
	decisionTime time.Time
}

// bufferStartSize is the initial record capacity; most traces hold a handful
// of spans and this avoids the first few growth copies.
const bufferStartSize = 8

func newTraceBuffer(id TraceID, arrival time.Time) *traceBuffer {
	return &traceBuffer{
		arrival:   arrival,
		records:   make([]SpanRecord, 0, bufferStartSize),
		spanIndex: make(map[SpanID]int, bufferStartSize),
		summary:   Summary{TraceID: id},
		decision:  Pending,
	}
}

// appendLocked adds a record and folds it into the summary. Summary fields
// only ever grow: max level, latest observed, counts. The caller holds mu.
func (b *traceBuffer) appendLocked(r SpanRecord) {
	switch r.Kind {
	case KindSpanStart:
		if _, dup := b.spanIndex[r.SpanID]; !dup {
			b.spanIndex[r.SpanID] = len(b.records)
			b.summary.SpanCount++
		}
		if r.ParentSpanID.IsEmpty() {
			b.summary.RootSeen = true
		}
	case KindSpanEnd:
		// The end event does not carry the parent id; recover it from the
		// start record if we saw one. An end without a known start (late or
		// foreign span) cannot be identified as the root.
		if idx, ok := b.spanIndex[r.SpanID]; ok {
			r.ParentSpanID = b.records[idx].ParentSpanID
			if r.ParentSpanID.IsEmpty() {
				b.summary.RootEnded = true
			}
		}
	}

	if r.Level > b.summary.MaxLevel {
		b.summary.MaxLevel = r.Level
	}
	if r.HadException {
		b.summary.HadException = true
		if b.summary.MaxLevel < LevelError {
			b.summary.MaxLevel = LevelError
		}
	}
	if !r.Start.IsZero() && (b.summary.EarliestStart.IsZero() || r.Start.Before(b.summary.EarliestStart)) {
		b.summary.EarliestStart = r.Start
	}
	if at := r.observedAt(); at.After(b.summary.LatestObserved) {
		b.summary.LatestObserved = at
	}

	b.records = append(b.records, r)
	b.summary.RecordCount = len(b.records)
}

// drainLocked consumes and returns the buffered records in insertion order,
// ending the buffer's accumulating life. The caller holds mu and must not
// append afterwards.
func (b *traceBuffer) drainLocked() []SpanRecord {
	records := b.records
	b.records = nil
	b.spanIndex = nil
	return records
}

// discardLocked frees the buffered records without returning them.
func (b *traceBuffer) discardLocked() {
	b.records = nil
	b.spanIndex = nil
}
