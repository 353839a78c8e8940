// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package tailbuffer // import "go.opentelemetry.io/contrib/samplers/tailbuffer"

import (
	"context"
	"sync"
)

// Exporter is the downstream collaborator receiving the engine's only
// outputs. Implementations own batching, retries and serialization; the
// engine owns nothing past these two calls.
//
// Both methods are invoked from the engine's export worker goroutine, never
// from the instrumented application's call path.
type Exporter interface {
	// Flush delivers the records of a kept trace in insertion order. It is
	// called once per kept trace with everything buffered up to the
	// decision; records arriving after the decision are delivered in
	// later single-record calls.
	Flush(traceID TraceID, records []SpanRecord)
	// Drop notifies that a trace was discarded. Diagnostic only, no
	// payload.
	Drop(traceID TraceID)
}

type exportBatch struct {
	id      TraceID
	records []SpanRecord
	drop    bool
}

// exportQueue decouples sampling decisions from delivery: the engine hands
// drained batches to a buffered channel and a single worker goroutine calls
// the exporter, so the hot path never waits on downstream I/O.
type exportQueue struct {
	ch        chan exportBatch
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newExportQueue(exporter Exporter, size int) *exportQueue {
	q := &exportQueue{
		ch: make(chan exportBatch, size),
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for b := range q.ch {
			if b.drop {
				exporter.Drop(b.id)
			} else {
				exporter.Flush(b.id, b.records)
			}
		}
	}()
	return q
}

// enqueue hands a batch to the worker without ever blocking. Returns false
// when the queue is full; the caller accounts for the loss.
func (q *exportQueue) enqueue(b exportBatch) bool {
	select {
	case q.ch <- b:
		return true
	default:
		return false
	}
}

// send blocks until the batch is accepted or the context expires. Used only
// during shutdown, where a bounded wait is preferable to losing buffers.
func (q *exportQueue) send(ctx context.Context, b exportBatch) bool {
	select {
	case q.ch <- b:
		return true
	case <-ctx.Done():
		return false
	}
}

// close stops accepting batches and waits for the worker to drain, bounded
// by the context.
func (q *exportQueue) close(ctx context.Context) error {
	q.closeOnce.Do(func() { close(q.ch) })
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
