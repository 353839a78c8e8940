// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package tailbuffer // import "go.opentelemetry.io/contrib/samplers/tailbuffer"

import "time"

// Decision is the sampling outcome for a trace.
type Decision int8

const (
	// Pending means no terminal decision has been reached yet; the trace
	// keeps buffering.
	Pending Decision = iota
	// Sampled means the trace is kept and its records are released.
	Sampled
	// NotSampled means the trace is discarded.
	NotSampled
)

func (d Decision) String() string {
	switch d {
	case Sampled:
		return "sampled"
	case NotSampled:
		return "not_sampled"
	default:
		return "pending"
	}
}

// ruleEvaluator answers whether a buffer's summary meets a tail-sampling
// criterion right now. Evaluators are stateless and never return errors;
// they either fire (Sampled) or leave the trace Pending. Only the engine
// itself produces NotSampled, via the background-rate roll.
type ruleEvaluator interface {
	Evaluate(s Summary) Decision
}

// severityRule fires once any record at or above the threshold severity has
// been observed. Exception markers were already promoted to LevelError by
// the summary, so they trip a warn-or-lower threshold too.
type severityRule struct {
	min Level
}

func newSeverityRule(min Level) ruleEvaluator {
	return severityRule{min: min}
}

func (r severityRule) Evaluate(s Summary) Decision {
	if s.MaxLevel >= r.min {
		return Sampled
	}
	return Pending
}

// latencyRule fires once the observed extent of the trace reaches the
// threshold. The extent is latest-observed minus earliest-start, so a child
// finishing late trips the rule while the root span is still open.
type latencyRule struct {
	threshold time.Duration
}

func newLatencyRule(threshold time.Duration) ruleEvaluator {
	return latencyRule{threshold: threshold}
}

func (r latencyRule) Evaluate(s Summary) Decision {
	if s.Duration() >= r.threshold {
		return Sampled
	}
	return Pending
}

// orRule combines evaluators so that any one firing is sufficient.
type orRule struct {
	rules []ruleEvaluator
}

func newOrRule(rules ...ruleEvaluator) ruleEvaluator {
	return orRule{rules: rules}
}

func (r orRule) Evaluate(s Summary) Decision {
	for _, sub := range r.rules {
		if sub.Evaluate(s) == Sampled {
			return Sampled
		}
	}
	return Pending
}

// buildRule assembles the configured threshold evaluators. Returns nil when
// neither threshold is set; the custom rule is handled separately by the
// engine because it produces a probability, not a decision.
func buildRule(c Config) ruleEvaluator {
	var rules []ruleEvaluator
	if c.LevelThreshold != LevelUnset {
		rules = append(rules, newSeverityRule(c.LevelThreshold))
	}
	if c.DurationThreshold > 0 {
		rules = append(rules, newLatencyRule(c.DurationThreshold))
	}
	switch len(rules) {
	case 0:
		return nil
	case 1:
		return rules[0]
	default:
		return newOrRule(rules...)
	}
}
