// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package tailbuffer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityRule(t *testing.T) {
	r := newSeverityRule(LevelWarn)
	assert.Equal(t, Pending, r.Evaluate(Summary{MaxLevel: LevelInfo}))
	assert.Equal(t, Sampled, r.Evaluate(Summary{MaxLevel: LevelWarn}))
	assert.Equal(t, Sampled, r.Evaluate(Summary{MaxLevel: LevelFatal}))
}

func TestLatencyRule(t *testing.T) {
	t0 := time.Unix(1000, 0)
	r := newLatencyRule(5 * time.Second)
	assert.Equal(t, Pending, r.Evaluate(Summary{EarliestStart: t0, LatestObserved: t0.Add(4 * time.Second)}))
	assert.Equal(t, Sampled, r.Evaluate(Summary{EarliestStart: t0, LatestObserved: t0.Add(5 * time.Second)}))
	// No timestamps observed yet, nothing to measure.
	assert.Equal(t, Pending, r.Evaluate(Summary{}))
}

func TestOrRuleEitherSuffices(t *testing.T) {
	t0 := time.Unix(1000, 0)
	r := newOrRule(newSeverityRule(LevelError), newLatencyRule(5*time.Second))

	assert.Equal(t, Pending, r.Evaluate(Summary{MaxLevel: LevelInfo}))
	assert.Equal(t, Sampled, r.Evaluate(Summary{MaxLevel: LevelError}))
	assert.Equal(t, Sampled, r.Evaluate(Summary{
		MaxLevel:       LevelInfo,
		EarliestStart:  t0,
		LatestObserved: t0.Add(6 * time.Second),
	}))
}

func TestBuildRule(t *testing.T) {
	assert.Nil(t, buildRule(Config{}))

	r := buildRule(Config{LevelThreshold: LevelError})
	require.NotNil(t, r)
	assert.IsType(t, severityRule{}, r)

	r = buildRule(Config{DurationThreshold: time.Second})
	require.NotNil(t, r)
	assert.IsType(t, latencyRule{}, r)

	r = buildRule(Config{LevelThreshold: LevelError, DurationThreshold: time.Second})
	require.NotNil(t, r)
	assert.IsType(t, orRule{}, r)
}
