// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package tailbuffer // import "go.opentelemetry.io/contrib/samplers/tailbuffer"

import (
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Option configures a Sampler beyond its Config.
type Option func(*Sampler)

// WithLogger sets the logger for configuration warnings and decision debug
// output. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Sampler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the engine's time source. Only timestamps internal to
// the engine (buffer arrival, decision time) use the clock; rule evaluation
// uses the timestamps carried by the records themselves.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithMeterProvider sets the provider used for the engine's diagnostic
// counters. The default is a no-op provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Sampler) {
		if mp != nil {
			s.meterProvider = mp
		}
	}
}
