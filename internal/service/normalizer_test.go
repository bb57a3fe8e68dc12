package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biomarker-insight-server/internal/domain"
	"github.com/biomarker-insight-server/internal/reference"
)

func testNormalizer() *Normalizer {
	return NewNormalizer(testLogger(), NewClassifier(DefaultClassifierPolicy()))
}

func TestNormalizer_ResolvesSynonymAndClassifies(t *testing.T) {
	n := testNormalizer()
	snap := testSnapshot(t)

	raw := domain.RawMeasurement{
		Name:        "Fasting Glucose",
		Value:       95,
		Unit:        "mg/dL",
		CollectedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	b, warnings, err := n.Normalize(snap, raw, nil)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, reference.CodeGlucose, b.Code)
	assert.Equal(t, "Glucose", b.CanonicalName)
	assert.Equal(t, "metabolic", b.Category)
	assert.Equal(t, domain.StatusNormal, b.Status)
	require.NotNil(t, b.ReferenceMin)
	assert.Equal(t, 70.0, *b.ReferenceMin)
	assert.Equal(t, 99.0, *b.ReferenceMax)
}

func TestNormalizer_ConvertsUnits(t *testing.T) {
	n := testNormalizer()
	snap := testSnapshot(t)

	raw := domain.RawMeasurement{Name: "glucose", Value: 5.0, Unit: "mmol/L"}

	b, warnings, err := n.Normalize(snap, raw, nil)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.InDelta(t, 90.09, b.Value, 0.01)
	assert.Equal(t, "mg/dL", b.Unit)
	assert.Equal(t, domain.StatusNormal, b.Status)
}

func TestNormalizer_ConvertsCallerRangeWithValue(t *testing.T) {
	n := testNormalizer()
	snap := testSnapshot(t)

	// Caller supplies range in the same unit as the value; both get converted.
	raw := domain.RawMeasurement{
		Name:         "glucose",
		Value:        6.0,
		Unit:         "mmol/L",
		ReferenceMin: fp(3.9),
		ReferenceMax: fp(5.5),
	}

	b, _, err := n.Normalize(snap, raw, nil)
	require.NoError(t, err)
	assert.InDelta(t, 108.1, b.Value, 0.1)
	require.NotNil(t, b.ReferenceMin)
	assert.InDelta(t, 70.3, *b.ReferenceMin, 0.1)
	assert.InDelta(t, 99.1, *b.ReferenceMax, 0.1)
	assert.Equal(t, domain.StatusAboveRange, b.Status)
}

func TestNormalizer_UnknownUnitPassesThrough(t *testing.T) {
	n := testNormalizer()
	snap := testSnapshot(t)

	raw := domain.RawMeasurement{Name: "glucose", Value: 95, Unit: "furlongs"}

	b, warnings, err := n.Normalize(snap, raw, nil)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, domain.WarnUnresolvedUnit, warnings[0].Code)
	assert.Equal(t, 95.0, b.Value)
	assert.Equal(t, "furlongs", b.Unit)
}

func TestNormalizer_UnresolvedNamePreservesInput(t *testing.T) {
	n := testNormalizer()
	snap := testSnapshot(t)

	raw := domain.RawMeasurement{Name: "quantum flux marker", Value: 42, Unit: "units"}

	b, warnings, err := n.Normalize(snap, raw, nil)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, domain.WarnUnresolvedBiomarker, warnings[0].Code)
	assert.Empty(t, b.Code)
	assert.Equal(t, "quantum flux marker", b.CanonicalName)
	assert.Equal(t, 42.0, b.Value)
	assert.Equal(t, domain.StatusUnknown, b.Status)
}

func TestNormalizer_DemographicRangeOverride(t *testing.T) {
	n := testNormalizer()
	snap := testSnapshot(t)

	raw := domain.RawMeasurement{Name: "hemoglobin", Value: 13.0, Unit: "g/dL"}

	// 13.0 is normal against the default range but below the male range.
	unspecified, _, err := n.Normalize(snap, raw, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNormal, unspecified.Status)

	male, _, err := n.Normalize(snap, raw, &domain.Profile{Sex: domain.SexMale})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBelowRange, male.Status)

	female, _, err := n.Normalize(snap, raw, &domain.Profile{Sex: domain.SexFemale})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNormal, female.Status)
}

func TestNormalizer_InvalidCallerRangeRejected(t *testing.T) {
	n := testNormalizer()
	snap := testSnapshot(t)

	raw := domain.RawMeasurement{
		Name:         "glucose",
		Value:        95,
		Unit:         "mg/dL",
		ReferenceMin: fp(100),
		ReferenceMax: fp(70),
	}

	_, _, err := n.Normalize(snap, raw, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}

func TestNormalizer_EmptyNameRejected(t *testing.T) {
	n := testNormalizer()
	snap := testSnapshot(t)

	_, _, err := n.Normalize(snap, domain.RawMeasurement{Name: "   ", Value: 1}, nil)
	require.Error(t, err)

	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "name", validationErr.Field)
}

func TestNormalizer_NormalizeAsWithResolverCode(t *testing.T) {
	n := testNormalizer()
	snap := testSnapshot(t)

	raw := domain.RawMeasurement{Name: "serum glukose (lab 12)", Value: 120, Unit: "mg/dL"}

	b, warnings, err := n.NormalizeAs(snap, raw, nil, reference.CodeGlucose)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, reference.CodeGlucose, b.Code)
	assert.Equal(t, domain.StatusCriticalHigh, b.Status)
}

func TestNormalizer_NormalizeAsUnknownCode(t *testing.T) {
	n := testNormalizer()
	snap := testSnapshot(t)

	raw := domain.RawMeasurement{Name: "mystery", Value: 1, Unit: "u"}

	b, warnings, err := n.NormalizeAs(snap, raw, nil, "not_a_code")
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, domain.WarnUnresolvedBiomarker, warnings[0].Code)
	assert.Equal(t, domain.StatusUnknown, b.Status)
}
