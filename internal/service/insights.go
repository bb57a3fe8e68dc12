package service

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/biomarker-insight-server/internal/domain"
)

// InsightComposer merges correlation, trend, and pattern outputs into ranked,
// deduplicated structured insights. It applies the significance policies and
// contains no new analytics.
type InsightComposer struct {
	logger *logrus.Logger
	// significantR is the |r| at or above which a correlation edge (with
	// enough paired samples) is surfaced as an insight. The engine itself
	// returns all edges; this filter is consumer policy.
	significantR float64
}

// NewInsightComposer creates a composer; a non-positive threshold falls back
// to the default 0.5.
func NewInsightComposer(logger *logrus.Logger, significantR float64) *InsightComposer {
	if significantR <= 0 {
		significantR = 0.5
	}
	return &InsightComposer{logger: logger, significantR: significantR}
}

// Compose ranks the merged findings by priority, dropping duplicates that
// cover the same biomarkers with the same analytic origin.
func (c *InsightComposer) Compose(correlations []domain.CorrelationEdge, trends []domain.TrendResult, patterns []domain.Pattern) []domain.Insight {
	insights := make([]domain.Insight, 0)

	for _, p := range patterns {
		detail := p.Description
		if p.Note != "" {
			detail += " (" + p.Note + ")"
		}
		insights = append(insights, domain.Insight{
			Kind:           domain.InsightPattern,
			Title:          strings.ReplaceAll(p.Name, "_", " "),
			Detail:         detail,
			BiomarkerCodes: p.BiomarkerCodes,
			Confidence:     p.Confidence,
			Priority:       float64(p.Confidence.Rank()) / 3,
		})
	}

	for _, t := range trends {
		if !t.Significant {
			continue
		}
		insights = append(insights, domain.Insight{
			Kind:  domain.InsightTrend,
			Title: fmt.Sprintf("%s %s", t.Code, t.Direction),
			Detail: fmt.Sprintf("%s changed %.1f%% over %.0f days (slope %.3f/day, r²=%.2f)",
				t.Code, t.PercentChange, t.TimeSpanDays, t.Slope, t.RSquared),
			BiomarkerCodes: []string{t.Code},
			Confidence:     trendConfidence(t),
			Priority:       t.RSquared,
		})
	}

	for _, e := range correlations {
		if math.Abs(e.Coefficient) < c.significantR || e.PairedSampleCount < minPairedSamples {
			continue
		}
		insights = append(insights, domain.Insight{
			Kind:  domain.InsightCorrelation,
			Title: fmt.Sprintf("%s and %s move together", e.CodeA, e.CodeB),
			Detail: fmt.Sprintf("%s relationship between %s and %s (r=%.2f over %d paired samples)",
				e.Relationship, e.CodeA, e.CodeB, e.Coefficient, e.PairedSampleCount),
			BiomarkerCodes: []string{e.CodeA, e.CodeB},
			Confidence:     correlationConfidence(e),
			Priority:       math.Abs(e.Coefficient),
		})
	}

	insights = dedupe(insights)
	sort.SliceStable(insights, func(i, j int) bool {
		return insights[i].Priority > insights[j].Priority
	})

	c.logger.WithFields(logrus.Fields{
		"patterns":     len(patterns),
		"trends":       len(trends),
		"correlations": len(correlations),
		"insights":     len(insights),
	}).Debug("Composed insights")

	return insights
}

// dedupe keeps the first insight per (kind, biomarker set) key; earlier
// entries of the same key outrank later ones by construction order.
func dedupe(insights []domain.Insight) []domain.Insight {
	seen := make(map[string]bool, len(insights))
	out := insights[:0]
	for _, in := range insights {
		codes := append([]string(nil), in.BiomarkerCodes...)
		sort.Strings(codes)
		key := string(in.Kind) + "|" + strings.Join(codes, ",")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, in)
	}
	return out
}

func trendConfidence(t domain.TrendResult) domain.Confidence {
	switch {
	case t.RSquared >= 0.8 && t.SampleCount >= 4:
		return domain.ConfidenceHigh
	case t.RSquared >= 0.5:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

func correlationConfidence(e domain.CorrelationEdge) domain.Confidence {
	abs := math.Abs(e.Coefficient)
	switch {
	case abs >= 0.8 && e.PairedSampleCount >= 5:
		return domain.ConfidenceHigh
	case abs >= 0.5:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}
