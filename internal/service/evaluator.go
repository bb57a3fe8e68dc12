package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/biomarker-insight-server/internal/domain"
	"github.com/biomarker-insight-server/internal/reference"
)

// Evaluator orchestrates the full pipeline over one report snapshot and over
// a user's history. Each evaluation runs against the reference snapshot
// current at its start; a concurrent reload never affects it mid-flight.
type Evaluator struct {
	logger     *logrus.Logger
	reference  *reference.Store
	normalizer *Normalizer
	patterns   *PatternDetector
	risk       *RiskScorer
	corr       *CorrelationEngine
	trend      *TrendEngine
	composer   *InsightComposer

	resolver domain.NameResolver
	history  domain.HistoryRepository
	cache    domain.EvaluationCache
	cacheTTL time.Duration
}

// EvaluatorOption configures optional collaborators.
type EvaluatorOption func(*Evaluator)

// WithResolver installs a fallback name resolver consulted for names the
// standardization table misses.
func WithResolver(r domain.NameResolver) EvaluatorOption {
	return func(e *Evaluator) { e.resolver = r }
}

// WithHistory installs the repository used to persist observations and to
// reconstruct per-code series for history analysis.
func WithHistory(h domain.HistoryRepository) EvaluatorOption {
	return func(e *Evaluator) { e.history = h }
}

// WithCache installs an evaluation result cache.
func WithCache(c domain.EvaluationCache, ttl time.Duration) EvaluatorOption {
	return func(e *Evaluator) {
		e.cache = c
		e.cacheTTL = ttl
	}
}

// NewEvaluator wires the pipeline components together.
func NewEvaluator(
	logger *logrus.Logger,
	ref *reference.Store,
	normalizer *Normalizer,
	patterns *PatternDetector,
	risk *RiskScorer,
	corr *CorrelationEngine,
	trend *TrendEngine,
	composer *InsightComposer,
	opts ...EvaluatorOption,
) *Evaluator {
	e := &Evaluator{
		logger:     logger,
		reference:  ref,
		normalizer: normalizer,
		patterns:   patterns,
		risk:       risk,
		corr:       corr,
		trend:      trend,
		composer:   composer,
		cacheTTL:   24 * time.Hour,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluateReport normalizes a report's measurements, detects patterns, and
// scores every risk category. When userID is non-empty and a history
// repository is configured, resolved observations are persisted for later
// time-series analysis.
func (e *Evaluator) EvaluateReport(ctx context.Context, userID string, measurements []domain.RawMeasurement, profile *domain.Profile) (*domain.ReportEvaluation, error) {
	started := time.Now()
	if len(measurements) == 0 {
		return nil, fmt.Errorf("evaluate report: %w", domain.ErrNoMeasurements)
	}

	key := evaluationKey(userID, measurements, profile)
	if e.cache != nil {
		if cached, ok, err := e.cache.Get(ctx, key); err != nil {
			e.logger.WithError(err).Warn("Evaluation cache get failed, computing")
		} else if ok {
			e.logger.WithField("key", key).Debug("Evaluation cache hit")
			return cached, nil
		}
	}

	snap := e.reference.Current()
	if snap == nil {
		return nil, fmt.Errorf("evaluate report: %w", domain.ErrReferenceUnavailable)
	}

	biomarkers := make([]domain.NormalizedBiomarker, 0, len(measurements))
	warnings := make([]domain.Warning, 0)

	for _, m := range measurements {
		normalized, w, err := e.normalizer.Normalize(snap, m, profile)
		if err != nil {
			return nil, err
		}

		if !normalized.Resolved() && e.resolver != nil {
			if code, ok, rerr := e.resolver.Resolve(ctx, m.Name); rerr != nil {
				e.logger.WithError(rerr).WithField("name", m.Name).Warn("Fallback name resolution failed")
			} else if ok {
				if resolved, rw, nerr := e.normalizer.NormalizeAs(snap, m, profile, code); nerr == nil && resolved.Resolved() {
					normalized, w = resolved, rw
				} else {
					e.logger.WithFields(logrus.Fields{
						"name": m.Name,
						"code": code,
					}).WithError(nerr).Debug("Fallback-resolved code did not normalize, keeping unresolved")
				}
			}
		}

		biomarkers = append(biomarkers, normalized)
		warnings = append(warnings, w...)
	}

	patterns := e.patterns.Detect(biomarkers)
	risks, err := e.risk.ScoreAll(snap, biomarkers, profile)
	if err != nil {
		return nil, fmt.Errorf("evaluate report: %w", err)
	}

	result := &domain.ReportEvaluation{
		EvaluationID: uuid.NewString(),
		Biomarkers:   biomarkers,
		Patterns:     patterns,
		Risks:        risks,
		Warnings:     warnings,
		EvaluatedAt:  time.Now().UTC(),
	}

	if e.history != nil && userID != "" {
		if err := e.history.SaveObservations(ctx, userID, biomarkers); err != nil {
			e.logger.WithError(err).WithField("user_id", userID).Warn("Failed to persist observations")
		}
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, result, e.cacheTTL); err != nil {
			e.logger.WithError(err).Warn("Evaluation cache set failed")
		}
	}

	e.logger.WithFields(logrus.Fields{
		"evaluation_id":   result.EvaluationID,
		"biomarkers":      len(biomarkers),
		"patterns":        len(patterns),
		"risk_categories": len(risks),
		"warnings":        len(warnings),
		"processing_time": time.Since(started),
	}).Info("Report evaluation completed")

	return result, nil
}

// AnalyzeHistory loads a user's per-code series and runs the time-series
// engines plus the insight composer over them.
func (e *Evaluator) AnalyzeHistory(ctx context.Context, userID string) (*domain.HistoryAnalysis, error) {
	if e.history == nil {
		return nil, fmt.Errorf("analyze history: no history repository configured")
	}

	series, err := e.history.LoadSeries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("analyze history for user %s: %w", userID, err)
	}

	return e.AnalyzeSeries(series), nil
}

// AnalyzeSeries runs correlation, trend, and insight composition over an
// already-materialized series map. Patterns need a same-day snapshot, not a
// history, so they are not recomputed here.
func (e *Evaluator) AnalyzeSeries(series domain.SeriesByCode) *domain.HistoryAnalysis {
	correlations := e.corr.Correlate(series)
	trends := e.trend.TrendAll(series)
	insights := e.composer.Compose(correlations, trends, nil)

	return &domain.HistoryAnalysis{
		Correlations: correlations,
		Trends:       trends,
		Insights:     insights,
		SeriesCount:  len(series),
	}
}

// evaluationKey derives a deterministic cache key from the inputs. JSON
// marshaling of the measurement slice is stable because field order is fixed
// and slice order is the caller's. The user ID is part of the key: a cached
// result carries user-independent analytics only, but the persistence side
// effect must run once per user, so identical reports from different users
// may not share an entry.
func evaluationKey(userID string, measurements []domain.RawMeasurement, profile *domain.Profile) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	_ = enc.Encode(userID)
	_ = enc.Encode(measurements)
	if profile != nil {
		_ = enc.Encode(profile)
	}
	return hex.EncodeToString(h.Sum(nil))
}
