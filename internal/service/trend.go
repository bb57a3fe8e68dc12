package service

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/biomarker-insight-server/internal/domain"
)

// minTrendSamples is the minimum series length for a trend fit.
const minTrendSamples = 2

// TrendEngine fits a per-biomarker linear trend across historical samples.
type TrendEngine struct {
	logger *logrus.Logger
	// slopeThreshold is the |slope| (unit per day) above which a trend is
	// flagged significant. The threshold is unit-insensitive and therefore
	// only meaningful relative to the biomarker's own typical scale; raw
	// slopes must not be compared across biomarkers with different units.
	slopeThreshold float64
}

// NewTrendEngine creates a trend engine with the given significance
// threshold; a non-positive threshold falls back to the default 0.1.
func NewTrendEngine(logger *logrus.Logger, slopeThreshold float64) *TrendEngine {
	if slopeThreshold <= 0 {
		slopeThreshold = 0.1
	}
	return &TrendEngine{logger: logger, slopeThreshold: slopeThreshold}
}

// Trend fits value against days-since-first-sample by ordinary least squares.
// Returns nil for fewer than two points. A constant series is defined as
// slope 0 with rSquared 1.
func (e *TrendEngine) Trend(code string, series domain.Series) *domain.TrendResult {
	if len(series) < minTrendSamples {
		return nil
	}

	sorted := make(domain.Series, len(series))
	copy(sorted, series)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	// Days since first sample keeps x values small; fitting against raw
	// epoch timestamps loses precision in the normal-equation sums.
	first := sorted[0].Date
	xs := make([]float64, len(sorted))
	ys := make([]float64, len(sorted))
	for i, s := range sorted {
		xs[i] = s.Date.Sub(first).Hours() / 24
		ys[i] = s.Value
	}

	slope, intercept, rSquared := fitLine(xs, ys)

	firstVal, lastVal := ys[0], ys[len(ys)-1]
	percentChange := 0.0
	if firstVal != 0 {
		percentChange = (lastVal - firstVal) / math.Abs(firstVal) * 100
	}

	direction := domain.TrendStable
	switch {
	case slope > 0:
		direction = domain.TrendIncreasing
	case slope < 0:
		direction = domain.TrendDecreasing
	}

	result := &domain.TrendResult{
		Code:          code,
		Slope:         slope,
		Intercept:     intercept,
		RSquared:      rSquared,
		PercentChange: percentChange,
		Direction:     direction,
		Significant:   math.Abs(slope) >= e.slopeThreshold,
		SampleCount:   len(sorted),
		TimeSpanDays:  xs[len(xs)-1],
	}

	e.logger.WithFields(logrus.Fields{
		"code":        code,
		"samples":     result.SampleCount,
		"slope":       result.Slope,
		"direction":   result.Direction,
		"significant": result.Significant,
	}).Debug("Fitted biomarker trend")

	return result
}

// TrendAll fits every series with enough samples, in stable code order.
func (e *TrendEngine) TrendAll(series domain.SeriesByCode) []domain.TrendResult {
	codes := make([]string, 0, len(series))
	for code := range series {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	results := make([]domain.TrendResult, 0, len(codes))
	for _, code := range codes {
		if r := e.Trend(code, series[code]); r != nil {
			results = append(results, *r)
		}
	}
	return results
}

// fitLine computes the closed-form ordinary least squares fit from sums of
// x, y, xy, and x². A degenerate x spread (all samples on one day) or a
// constant series yields slope 0; a constant series has rSquared 1 by
// definition.
func fitLine(xs, ys []float64) (slope, intercept, rSquared float64) {
	n := float64(len(xs))

	var sumX, sumY, sumXY, sumXX float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
	}

	denom := n*sumXX - sumX*sumX
	if denom != 0 {
		slope = (n*sumXY - sumX*sumY) / denom
	}
	intercept = (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssRes, ssTot float64
	for i := range xs {
		predicted := slope*xs[i] + intercept
		ssRes += (ys[i] - predicted) * (ys[i] - predicted)
		ssTot += (ys[i] - meanY) * (ys[i] - meanY)
	}

	if ssTot == 0 {
		return 0, meanY, 1
	}
	return slope, intercept, 1 - ssRes/ssTot
}
