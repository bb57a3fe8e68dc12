// Package service implements the biomarker analytics pipeline: normalization,
// status classification, pattern detection, correlation and trend analysis,
// risk scoring, and insight composition. Every function here is pure with
// respect to a single evaluation; the only shared input is the read-only
// reference snapshot.
package service

import (
	"math"

	"github.com/biomarker-insight-server/internal/domain"
)

// ClassifierPolicy centralizes the classification constants so the critical
// tier is applied by exactly one rule instead of redundant per-module
// thresholds.
type ClassifierPolicy struct {
	// BorderlineBand is the fraction of the range width at each end treated
	// as borderline. 0.10 marks the bottom and top 10% of the range.
	BorderlineBand float64
	// SevereDeviationRatio is the beyond-boundary ratio above which an
	// out-of-range deviation is graded SeverityHigh instead of SeverityLow.
	SevereDeviationRatio float64
	// CriticalPercent is the percent-from-range above which an out-of-range
	// status escalates to the critical tier.
	CriticalPercent float64
}

// DefaultClassifierPolicy returns the shipped classification constants.
func DefaultClassifierPolicy() ClassifierPolicy {
	return ClassifierPolicy{
		BorderlineBand:       0.10,
		SevereDeviationRatio: 0.5,
		CriticalPercent:      20,
	}
}

// Classification is the classifier's verdict for one value against one range.
type Classification struct {
	Status           domain.Status
	Severity         domain.Severity
	PercentFromRange float64
}

// Classifier computes ordinal status and deviation magnitude for a value
// against a reference range.
type Classifier struct {
	policy ClassifierPolicy
}

// NewClassifier creates a Classifier with the given policy.
func NewClassifier(policy ClassifierPolicy) *Classifier {
	return &Classifier{policy: policy}
}

// Classify classifies value against [min, max]. A nil bound means the range
// is unresolvable and yields StatusUnknown. A value exactly at either bound
// is in-range: the interval is closed on both ends.
func (c *Classifier) Classify(value float64, min, max *float64) Classification {
	if min == nil || max == nil {
		return Classification{Status: domain.StatusUnknown, Severity: domain.SeverityNone}
	}

	lo, hi := *min, *max

	if value < lo {
		percent := boundaryPercent(lo, value, lo)
		status := domain.StatusBelowRange
		if percent > c.policy.CriticalPercent {
			status = domain.StatusCriticalLow
		}
		return Classification{
			Status:           status,
			Severity:         c.deviationSeverity(lo-value, lo),
			PercentFromRange: percent,
		}
	}

	if value > hi {
		percent := boundaryPercent(hi, value, hi)
		status := domain.StatusAboveRange
		if percent > c.policy.CriticalPercent {
			status = domain.StatusCriticalHigh
		}
		return Classification{
			Status:           status,
			Severity:         c.deviationSeverity(value-hi, hi),
			PercentFromRange: percent,
		}
	}

	// In range. A degenerate range (min == max) with a matching value is
	// simply normal.
	if hi == lo {
		return Classification{Status: domain.StatusNormal, Severity: domain.SeverityNone}
	}

	position := (value - lo) / (hi - lo)
	switch {
	case position < c.policy.BorderlineBand:
		return Classification{Status: domain.StatusBorderlineLow, Severity: domain.SeverityMinimal}
	case position > 1-c.policy.BorderlineBand:
		return Classification{Status: domain.StatusBorderlineHigh, Severity: domain.SeverityMinimal}
	default:
		return Classification{Status: domain.StatusNormal, Severity: domain.SeverityNone}
	}
}

// boundaryPercent is the rounded percentage the value sits beyond the
// boundary, guarded to never go negative and to tolerate a zero boundary.
func boundaryPercent(boundary, value, denom float64) float64 {
	if denom == 0 {
		return 0
	}
	percent := math.Round(math.Abs(value-boundary) / math.Abs(denom) * 100)
	if percent < 0 {
		return 0
	}
	return percent
}

// deviationSeverity grades an out-of-range deviation by its ratio to the
// crossed boundary.
func (c *Classifier) deviationSeverity(deviation, boundary float64) domain.Severity {
	if boundary == 0 {
		return domain.SeverityLow
	}
	if deviation/math.Abs(boundary) > c.policy.SevereDeviationRatio {
		return domain.SeverityHigh
	}
	return domain.SeverityLow
}
