// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package tailbuffer implements in-process trace buffering with combined
// head and tail sampling for telemetry clients.
//
// A head rate decides cheaply at trace start; tail criteria (severity
// threshold, duration threshold, custom rule) hold a trace's records in
// memory until one fires or the root span ends, at which point a background
// rate gives unremarkable traces a final chance. All rate decisions are
// deterministic functions of the trace id, so every participant in a
// distributed trace resolves identically and rates compose by subset rather
// than by multiplication.
//
// Kept traces are handed to an Exporter on a dedicated worker goroutine;
// the event path never blocks on downstream I/O and total buffered memory
// is bounded by a record ceiling with least-recently-updated eviction.
package tailbuffer // import "go.opentelemetry.io/contrib/samplers/tailbuffer"
