package domain

import (
	"fmt"
	"strings"
	"time"
)

// RawMeasurement is a single name/value/unit triple extracted from a lab
// report by the ingestion layer. It is immutable input to the pipeline.
type RawMeasurement struct {
	Name         string    `json:"name" validate:"required"`
	Value        float64   `json:"value"`
	Unit         string    `json:"unit"`
	ReferenceMin *float64  `json:"reference_min,omitempty"`
	ReferenceMax *float64  `json:"reference_max,omitempty"`
	CollectedAt  time.Time `json:"collected_at"`
}

// Validate ensures the measurement meets the input contract. A caller-supplied
// range with min above max is rejected outright rather than silently
// reordered, since reordering would mask a caller bug.
func (m *RawMeasurement) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("measurement validation: %w",
			NewValidationError("name", "biomarker name is required", m.Name))
	}
	if m.ReferenceMin != nil && m.ReferenceMax != nil && *m.ReferenceMin > *m.ReferenceMax {
		return fmt.Errorf("measurement validation for %q: %w", m.Name, ErrInvalidRange)
	}
	return nil
}

// NormalizedBiomarker is the canonical form of a measurement after name
// resolution, unit conversion, range resolution, and status classification.
// One is produced per RawMeasurement per evaluation and never persisted by
// the analytics core itself.
type NormalizedBiomarker struct {
	Code             string    `json:"code,omitempty"`
	CanonicalName    string    `json:"canonical_name"`
	Category         string    `json:"category,omitempty"`
	Value            float64   `json:"value"`
	Unit             string    `json:"unit"`
	ReferenceMin     *float64  `json:"reference_min,omitempty"`
	ReferenceMax     *float64  `json:"reference_max,omitempty"`
	Status           Status    `json:"status"`
	Severity         Severity  `json:"severity"`
	PercentFromRange float64   `json:"percent_from_range"`
	CollectedAt      time.Time `json:"collected_at"`
}

// Resolved reports whether name resolution produced a canonical code.
func (b *NormalizedBiomarker) Resolved() bool { return b.Code != "" }

// Profile carries optional demographic and lifestyle attributes used for
// reference-range adjustment and risk scoring. The zero value means no
// attribute is known; scorers treat absent attributes as limitations, not
// errors.
type Profile struct {
	Age           int     `json:"age,omitempty"`
	Sex           Sex     `json:"sex,omitempty"`
	Smoker        *bool   `json:"smoker,omitempty"`
	FamilyHistory *bool   `json:"family_history,omitempty"`
	BMI           float64 `json:"bmi,omitempty"`
	ActivityLevel string  `json:"activity_level,omitempty"`
}

// HasAge reports whether an age was supplied.
func (p *Profile) HasAge() bool { return p != nil && p.Age > 0 }

// HasSex reports whether a biological sex was supplied.
func (p *Profile) HasSex() bool { return p != nil && p.Sex != SexUnspecified }

// HasBMI reports whether a BMI was supplied.
func (p *Profile) HasBMI() bool { return p != nil && p.BMI > 0 }
