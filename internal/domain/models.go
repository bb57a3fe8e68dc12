package domain

import "time"

// Pattern is a named, rule-derived combination of biomarker abnormalities
// suggestive of a broader physiological state. Patterns are recomputed from a
// snapshot on every evaluation and have no independent lifecycle.
type Pattern struct {
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Confidence     Confidence `json:"confidence"`
	BiomarkerCodes []string   `json:"biomarker_codes"`
	Note           string     `json:"note,omitempty"`
}

// Sample is one dated observation of a biomarker value.
type Sample struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series is a user's historical values for one biomarker, keyed by canonical
// code in SeriesByCode. Callers are responsible for bounding series length.
type Series []Sample

// SeriesByCode groups a user's history by canonical biomarker code. The
// analytics core consumes this already-materialized form; reconstruction
// from storage is the repository's job.
type SeriesByCode map[string]Series

// CorrelationEdge is the pairwise statistical association between two
// biomarkers across a user's history. The pair is unordered; one edge is
// produced per unordered pair.
type CorrelationEdge struct {
	CodeA             string  `json:"code_a"`
	CodeB             string  `json:"code_b"`
	Coefficient       float64 `json:"coefficient"`
	PairedSampleCount int     `json:"paired_sample_count"`
	Relationship      string  `json:"relationship"`
}

// TrendResult is the ordinary-least-squares fit of one biomarker's values
// against days since the first sample.
type TrendResult struct {
	Code          string         `json:"code"`
	Slope         float64        `json:"slope"`
	Intercept     float64        `json:"intercept"`
	RSquared      float64        `json:"r_squared"`
	PercentChange float64        `json:"percent_change"`
	Direction     TrendDirection `json:"direction"`
	Significant   bool           `json:"significant"`
	SampleCount   int            `json:"sample_count"`
	TimeSpanDays  float64        `json:"time_span_days"`
}

// RiskFactor is one contribution to a category risk score, kept
// human-inspectable for downstream formatting.
type RiskFactor struct {
	Description  string  `json:"description"`
	Contribution float64 `json:"contribution"`
}

// RiskAssessment is the composite risk score for one category.
type RiskAssessment struct {
	Category    RiskCategory `json:"category"`
	Score       float64      `json:"score"`
	Level       RiskLevel    `json:"level"`
	Factors     []string     `json:"factors"`
	Limitations []string     `json:"limitations"`
}

// InsightKind tags the analytic origin of a composed insight.
type InsightKind string

const (
	InsightCorrelation InsightKind = "correlation"
	InsightTrend       InsightKind = "trend"
	InsightPattern     InsightKind = "pattern"
)

// Insight is a ranked, deduplicated structured finding merged from the
// correlation, trend, and pattern outputs.
type Insight struct {
	Kind           InsightKind `json:"kind"`
	Title          string      `json:"title"`
	Detail         string      `json:"detail"`
	BiomarkerCodes []string    `json:"biomarker_codes"`
	Confidence     Confidence  `json:"confidence"`
	Priority       float64     `json:"priority"`
}

// ReportEvaluation is the full output of evaluating one report snapshot:
// the normalized biomarkers plus everything derived from them.
type ReportEvaluation struct {
	EvaluationID string                `json:"evaluation_id"`
	Biomarkers   []NormalizedBiomarker `json:"biomarkers"`
	Patterns     []Pattern             `json:"patterns"`
	Risks        []RiskAssessment      `json:"risks"`
	Warnings     []Warning             `json:"warnings,omitempty"`
	EvaluatedAt  time.Time             `json:"evaluated_at"`
}

// HistoryAnalysis is the full output of analyzing a user's historical series.
type HistoryAnalysis struct {
	Correlations []CorrelationEdge `json:"correlations"`
	Trends       []TrendResult     `json:"trends"`
	Insights     []Insight         `json:"insights"`
	SeriesCount  int               `json:"series_count"`
}

// Observation is one persisted normalized value, the storage-facing shape of
// a NormalizedBiomarker used by the history repository.
type Observation struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	Code        string    `json:"code"`
	Value       float64   `json:"value"`
	Unit        string    `json:"unit"`
	Status      Status    `json:"status"`
	CollectedAt time.Time `json:"collected_at"`
	CreatedAt   time.Time `json:"created_at"`
}
