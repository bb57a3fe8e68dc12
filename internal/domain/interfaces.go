package domain

import (
	"context"
	"time"
)

// HistoryRepository persists normalized observations and reconstructs the
// per-code series the time-series engines consume.
type HistoryRepository interface {
	SaveObservations(ctx context.Context, userID string, biomarkers []NormalizedBiomarker) error
	LoadSeries(ctx context.Context, userID string) (SeriesByCode, error)
	LoadCodeHistory(ctx context.Context, userID, code string, limit int) (Series, error)
	Close() error
}

// EvaluationCache caches computed report evaluations keyed by a deterministic
// hash of the inputs. A miss returns (nil, false, nil): caching is an
// optimization, never a source of truth.
type EvaluationCache interface {
	Get(ctx context.Context, key string) (*ReportEvaluation, bool, error)
	Set(ctx context.Context, key string, eval *ReportEvaluation, ttl time.Duration) error
}

// NameResolver resolves a non-canonical biomarker name to a canonical code.
// The local standardization table is the primary implementation; a remote
// dictionary client may serve as a fallback for names the table misses.
type NameResolver interface {
	Resolve(ctx context.Context, name string) (code string, ok bool, err error)
}
