// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package tailbuffer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestNormalizeClampsRates(t *testing.T) {
	logger := zaptest.NewLogger(t)
	c := Config{
		HeadRate:       1.7,
		BackgroundRate: -0.2,
		TailSampleRate: 2,
	}
	c.normalize(logger)
	assert.Equal(t, 1.0, c.HeadRate)
	assert.Equal(t, 0.0, c.BackgroundRate)
	assert.Equal(t, 1.0, c.TailSampleRate)
}

// A background rate above the tail rate would keep boring traces more often
// than interesting ones; it is clamped down.
func TestNormalizeBackgroundBoundedByTail(t *testing.T) {
	c := Config{HeadRate: 1, BackgroundRate: 0.8, TailSampleRate: 0.5}
	c.normalize(zaptest.NewLogger(t))
	assert.Equal(t, 0.5, c.BackgroundRate)
}

func TestNormalizeDisablesCacheWithoutWindow(t *testing.T) {
	c := DefaultConfig()
	c.DecisionWindow = 0
	c.normalize(zaptest.NewLogger(t))
	assert.Zero(t, c.DecisionCacheSize)
}

func TestNormalizeDefaultsQueueAndTimeout(t *testing.T) {
	c := Config{ShutdownFlushTimeout: -time.Second, ExportQueueSize: -1, RateLimit: -3}
	c.normalize(zaptest.NewLogger(t))
	assert.Equal(t, 1, c.ExportQueueSize)
	assert.Equal(t, 5*time.Second, c.ShutdownFlushTimeout)
	assert.Zero(t, c.RateLimit)
}

func TestTailEnabled(t *testing.T) {
	assert.False(t, Config{}.tailEnabled())
	assert.True(t, Config{LevelThreshold: LevelError}.tailEnabled())
	assert.True(t, Config{DurationThreshold: time.Second}.tailEnabled())
	assert.True(t, Config{CustomRule: func(Summary) float64 { return 1 }}.tailEnabled())
}
