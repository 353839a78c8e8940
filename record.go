// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package tailbuffer // import "go.opentelemetry.io/contrib/samplers/tailbuffer"

import (
	"encoding/binary"
	"encoding/hex"
	"time"
)

// TraceID identifies a trace. It is the buffer key and the sole input to the
// deterministic rate selection.
type TraceID [16]byte

var emptyTraceID TraceID

// IsEmpty reports whether the id is all zeros.
func (t TraceID) IsEmpty() bool {
	return t == emptyTraceID
}

// String returns the hex encoding of the id.
func (t TraceID) String() string {
	return hex.EncodeToString(t[:])
}

// lower64 returns the low 8 bytes of the id, the portion carrying the
// random bits in W3C-style trace ids.
func (t TraceID) lower64() uint64 {
	return binary.BigEndian.Uint64(t[8:])
}

// SpanID identifies a span within a trace.
type SpanID [8]byte

var emptySpanID SpanID

// IsEmpty reports whether the id is all zeros.
func (s SpanID) IsEmpty() bool {
	return s == emptySpanID
}

// String returns the hex encoding of the id.
func (s SpanID) String() string {
	return hex.EncodeToString(s[:])
}

// Level is a severity, using the OpenTelemetry log data model severity
// numbers so thresholds compare across spans and log records uniformly.
type Level int8

const (
	LevelUnset Level = 0
	LevelTrace Level = 1
	LevelDebug Level = 5
	LevelInfo  Level = 9
	LevelWarn  Level = 13
	LevelError Level = 17
	LevelFatal Level = 21
)

// String returns the lowercase name of the level bucket.
func (l Level) String() string {
	switch {
	case l <= LevelUnset:
		return "unset"
	case l < LevelDebug:
		return "trace"
	case l < LevelInfo:
		return "debug"
	case l < LevelWarn:
		return "info"
	case l < LevelError:
		return "warn"
	case l < LevelFatal:
		return "error"
	default:
		return "fatal"
	}
}

// RecordKind distinguishes the three record shapes held in a trace buffer.
type RecordKind int8

const (
	// KindSpanStart is the snapshot taken when a span starts; End is zero.
	KindSpanStart RecordKind = iota
	// KindSpanEnd is the snapshot taken when a span finishes.
	KindSpanEnd
	// KindLog is a standalone log record; Start and End both carry the
	// observation timestamp.
	KindLog
)

// SpanRecord is an immutable snapshot of a span or log record at the moment
// it was observed. Records are owned by the buffer holding them until they
// are released to the exporter or discarded.
type SpanRecord struct {
	SpanID       SpanID
	ParentSpanID SpanID
	Kind         RecordKind
	Start        time.Time
	End          time.Time
	Level        Level
	HadException bool
}

// observedAt returns the latest timestamp the record carries.
func (r SpanRecord) observedAt() time.Time {
	if !r.End.IsZero() {
		return r.End
	}
	return r.Start
}

// Summary is the read-only rolling view of a trace buffer that decision
// rules evaluate against. All fields are monotone under appends.
type Summary struct {
	TraceID TraceID
	// MaxLevel is the highest severity observed on any record. An exception
	// marker counts as at least LevelError.
	MaxLevel Level
	// EarliestStart is the smallest start timestamp observed.
	EarliestStart time.Time
	// LatestObserved is the largest timestamp observed on any record,
	// including ends of still-buffered children.
	LatestObserved time.Time
	RootSeen       bool
	RootEnded      bool
	HadException   bool
	// SpanCount is the number of distinct spans started.
	SpanCount int
	// RecordCount is the number of buffered records.
	RecordCount int
}

// Duration is the observed extent of the trace so far. It is measured as
// LatestObserved minus EarliestStart rather than root end minus root start,
// so a long-running trace qualifies before its root completes.
func (s Summary) Duration() time.Duration {
	if s.EarliestStart.IsZero() || s.LatestObserved.IsZero() {
		return 0
	}
	return s.LatestObserved.Sub(s.EarliestStart)
}
