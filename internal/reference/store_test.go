package reference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biomarker-insight-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(testLogger(), "")
	require.NoError(t, err)
	return store
}

func TestSnapshot_ResolveName(t *testing.T) {
	snap := testStore(t).Current()

	tests := []struct {
		name     string
		input    string
		wantCode string
		wantOK   bool
	}{
		{"exact synonym", "hemoglobin", CodeHemoglobin, true},
		{"abbreviation", "hgb", CodeHemoglobin, true},
		{"case and whitespace folded", "  HbA1c  ", CodeHbA1c, true},
		{"british spelling", "haemoglobin", CodeHemoglobin, true},
		{"substring fallback", "fasting glucose (serum)", CodeGlucose, true},
		{"longest synonym wins", "ldl cholesterol", CodeLDL, true},
		{"unknown name", "quantum flux marker", "", false},
		{"empty name", "   ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := snap.ResolveName(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestSnapshot_Convert(t *testing.T) {
	snap := testStore(t).Current()

	t.Run("forward factor", func(t *testing.T) {
		v, unit, ok := snap.Convert(CodeGlucose, "mmol/L", 5.0)
		require.True(t, ok)
		assert.InDelta(t, 90.09, v, 0.01)
		assert.Equal(t, "mg/dL", unit)
	})

	t.Run("canonical unit is identity", func(t *testing.T) {
		v, unit, ok := snap.Convert(CodeGlucose, "mg/dL", 95)
		require.True(t, ok)
		assert.Equal(t, 95.0, v)
		assert.Equal(t, "mg/dL", unit)
	})

	t.Run("empty unit assumed canonical", func(t *testing.T) {
		v, _, ok := snap.Convert(CodeGlucose, "", 95)
		require.True(t, ok)
		assert.Equal(t, 95.0, v)
	})

	t.Run("crp factor into canonical unit", func(t *testing.T) {
		v, unit, ok := snap.Convert(CodeCRP, "mg/dL", 1)
		require.True(t, ok)
		assert.Equal(t, "mg/L", unit)
		assert.InDelta(t, 10.0, v, 1e-9)
	})

	t.Run("no conversion path", func(t *testing.T) {
		v, unit, ok := snap.Convert(CodeGlucose, "furlongs", 95)
		assert.False(t, ok)
		assert.Equal(t, 95.0, v)
		assert.Equal(t, "furlongs", unit)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, _, ok := snap.Convert("not_a_code", "mg/dL", 1)
		assert.False(t, ok)
	})
}

func TestSnapshot_RangeFor(t *testing.T) {
	snap := testStore(t).Current()

	t.Run("default range without profile", func(t *testing.T) {
		r, ok := snap.RangeFor(CodeHemoglobin, nil)
		require.True(t, ok)
		assert.Equal(t, Range{12.0, 17.5}, r)
	})

	t.Run("sex override", func(t *testing.T) {
		r, ok := snap.RangeFor(CodeHemoglobin, &domain.Profile{Sex: domain.SexMale})
		require.True(t, ok)
		assert.Equal(t, Range{13.5, 17.5}, r)

		r, ok = snap.RangeFor(CodeHemoglobin, &domain.Profile{Sex: domain.SexFemale})
		require.True(t, ok)
		assert.Equal(t, Range{12.0, 15.5}, r)
	})

	t.Run("age override", func(t *testing.T) {
		r, ok := snap.RangeFor(CodeEGFR, &domain.Profile{Age: 75})
		require.True(t, ok)
		assert.Equal(t, Range{45.0, 120.0}, r)

		r, ok = snap.RangeFor(CodeEGFR, &domain.Profile{Age: 40})
		require.True(t, ok)
		assert.Equal(t, Range{60.0, 120.0}, r)
	})

	t.Run("profile without matching attribute falls back", func(t *testing.T) {
		r, ok := snap.RangeFor(CodeGlucose, &domain.Profile{Sex: domain.SexMale, Age: 80})
		require.True(t, ok)
		assert.Equal(t, Range{70.0, 99.0}, r)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, ok := snap.RangeFor("not_a_code", nil)
		assert.False(t, ok)
	})
}

func TestStore_ReloadSwapsSnapshot(t *testing.T) {
	store := testStore(t)

	before := store.Current()
	require.NoError(t, store.Reload())
	after := store.Current()

	assert.NotSame(t, before, after)

	// The old snapshot stays fully usable after the swap.
	code, ok := before.ResolveName("glucose")
	assert.True(t, ok)
	assert.Equal(t, CodeGlucose, code)
}

func TestStore_OverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overrides.json")

	content := `{
		"definitions": [
			{"code": "homocysteine", "name": "Homocysteine", "category": "cardiac", "unit": "umol/L", "synonyms": ["homocysteine", "hcy"]}
		],
		"conversions": [
			{"code": "homocysteine", "from": "umol/L", "to": "mg/L", "factor": 0.135}
		],
		"ranges": {
			"homocysteine": {"min": 5, "max": 15},
			"glucose": {"min": 65, "max": 105}
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	store, err := NewStore(testLogger(), path)
	require.NoError(t, err)
	snap := store.Current()

	code, ok := snap.ResolveName("hcy")
	require.True(t, ok)
	assert.Equal(t, "homocysteine", code)

	r, ok := snap.RangeFor("homocysteine", nil)
	require.True(t, ok)
	assert.Equal(t, Range{5, 15}, r)

	// Built-in range replaced by the override.
	r, ok = snap.RangeFor(CodeGlucose, nil)
	require.True(t, ok)
	assert.Equal(t, Range{65, 105}, r)

	// Only umol/L to mg/L is tabled; the reverse uses the inverse factor.
	v, unit, ok := snap.Convert("homocysteine", "mg/L", 1.35)
	require.True(t, ok)
	assert.Equal(t, "umol/L", unit)
	assert.InDelta(t, 10.0, v, 1e-9)
}

func TestStore_OverrideFileMissing(t *testing.T) {
	_, err := NewStore(testLogger(), "/nonexistent/overrides.json")
	assert.Error(t, err)
}

func TestSnapshot_RiskModels(t *testing.T) {
	snap := testStore(t).Current()

	cats := snap.RiskCategories()
	assert.Equal(t, []domain.RiskCategory{domain.RiskCardiovascular, domain.RiskMetabolic, domain.RiskNutritional}, cats)

	model, ok := snap.RiskModel(domain.RiskCardiovascular)
	require.True(t, ok)
	assert.NotEmpty(t, model.Rules)
	assert.NotEmpty(t, model.ProfileRules)

	_, ok = snap.RiskModel(domain.RiskCategory("oncology"))
	assert.False(t, ok)
}

func TestTrigger_Fires(t *testing.T) {
	assert.True(t, TriggerAbove.Fires(domain.StatusAboveRange))
	assert.True(t, TriggerAbove.Fires(domain.StatusCriticalHigh))
	assert.False(t, TriggerAbove.Fires(domain.StatusBorderlineHigh))
	assert.True(t, TriggerBelow.Fires(domain.StatusCriticalLow))
	assert.False(t, TriggerBelow.Fires(domain.StatusAboveRange))
	assert.True(t, TriggerAbnormal.Fires(domain.StatusBelowRange))
	assert.False(t, TriggerAbnormal.Fires(domain.StatusNormal))
	assert.False(t, Trigger("sideways").Fires(domain.StatusAboveRange))
}

func TestThresholds_Level(t *testing.T) {
	th := Thresholds{Moderate: 0.3, High: 0.7, VeryHigh: 0.8}

	assert.Equal(t, domain.RiskLow, th.Level(0.1))
	assert.Equal(t, domain.RiskModerate, th.Level(0.3))
	assert.Equal(t, domain.RiskHigh, th.Level(0.7))
	assert.Equal(t, domain.RiskVeryHigh, th.Level(0.85))
}
