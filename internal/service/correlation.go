package service

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/biomarker-insight-server/internal/domain"
)

// minPairedSamples is the minimum exact-date overlap required before a pair
// is correlated at all.
const minPairedSamples = 3

// CorrelationEngine computes pairwise Pearson correlation between biomarkers
// across a user's historical samples.
type CorrelationEngine struct {
	logger *logrus.Logger
}

// NewCorrelationEngine creates a new correlation engine.
func NewCorrelationEngine(logger *logrus.Logger) *CorrelationEngine {
	return &CorrelationEngine{logger: logger}
}

// Correlate computes one edge per unordered pair of codes with at least
// minPairedSamples exact calendar-date matches. Pairs with fewer matches are
// skipped, not errors. All computed edges are returned; significance
// filtering is the consumer's policy.
func (e *CorrelationEngine) Correlate(series domain.SeriesByCode) []domain.CorrelationEdge {
	codes := make([]string, 0, len(series))
	for code, s := range series {
		if len(s) > 0 {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)

	edges := make([]domain.CorrelationEdge, 0)
	skipped := 0

	for i := 0; i < len(codes); i++ {
		for j := i + 1; j < len(codes); j++ {
			xs, ys := pairByDate(series[codes[i]], series[codes[j]])
			if len(xs) < minPairedSamples {
				skipped++
				continue
			}
			r := pearson(xs, ys)
			edges = append(edges, domain.CorrelationEdge{
				CodeA:             codes[i],
				CodeB:             codes[j],
				Coefficient:       r,
				PairedSampleCount: len(xs),
				Relationship:      relationshipLabel(r),
			})
		}
	}

	e.logger.WithFields(logrus.Fields{
		"series":        len(codes),
		"edges":         len(edges),
		"skipped_pairs": skipped,
	}).Debug("Completed correlation analysis")

	return edges
}

// pairByDate builds the paired sample set by exact calendar-date match. Dates
// are compared in UTC so the same instant carried in different zones still
// pairs. No tolerance window is applied: measurements one day apart are never
// paired. This is a known limitation of the pairing policy.
func pairByDate(a, b domain.Series) (xs, ys []float64) {
	byDay := make(map[string]float64, len(b))
	for _, s := range b {
		byDay[s.Date.UTC().Format("2006-01-02")] = s.Value
	}
	for _, s := range a {
		if v, ok := byDay[s.Date.UTC().Format("2006-01-02")]; ok {
			xs = append(xs, s.Value)
			ys = append(ys, v)
		}
	}
	return xs, ys
}

// pearson computes the correlation coefficient via sums of centered products.
// A zero-variance side yields 0, never NaN, so downstream filtering stays
// well-defined.
func pearson(xs, ys []float64) float64 {
	n := float64(len(xs))
	if n == 0 {
		return 0
	}

	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range xs {
		dx, dy := xs[i]-meanX, ys[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}

// relationshipLabel maps |r| onto a strength band with a sign qualifier.
func relationshipLabel(r float64) string {
	abs := math.Abs(r)

	var strength string
	switch {
	case abs >= 0.8:
		strength = "strong"
	case abs >= 0.5:
		strength = "moderate"
	case abs >= 0.3:
		strength = "weak"
	default:
		return "none"
	}

	if r < 0 {
		return strength + " negative"
	}
	return strength + " positive"
}
