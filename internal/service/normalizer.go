package service

import (
	"github.com/sirupsen/logrus"

	"github.com/biomarker-insight-server/internal/domain"
	"github.com/biomarker-insight-server/internal/reference"
)

// Normalizer maps raw lab measurements to canonical biomarkers: name
// resolution against the standardization table, unit conversion, reference
// range resolution with demographic overrides, and status classification.
type Normalizer struct {
	logger     *logrus.Logger
	classifier *Classifier
}

// NewNormalizer creates a Normalizer that classifies with the given policy.
func NewNormalizer(logger *logrus.Logger, classifier *Classifier) *Normalizer {
	return &Normalizer{logger: logger, classifier: classifier}
}

// Normalize converts one raw measurement into its canonical form. Anomalies
// that are not contract violations (unknown name, unknown unit, missing
// range) are absorbed into the result and reported as warnings; the only
// error is an invalid caller-supplied range.
func (n *Normalizer) Normalize(snap *reference.Snapshot, raw domain.RawMeasurement, profile *domain.Profile) (domain.NormalizedBiomarker, []domain.Warning, error) {
	if err := raw.Validate(); err != nil {
		return domain.NormalizedBiomarker{}, nil, err
	}

	code, ok := snap.ResolveName(raw.Name)
	if !ok {
		n.logger.WithField("name", raw.Name).Debug("Biomarker name not in standardization table")
		return n.unresolved(raw), []domain.Warning{
			domain.NewWarning(domain.WarnUnresolvedBiomarker, raw.Name,
				"no canonical mapping for %q; value preserved unclassified", raw.Name),
		}, nil
	}

	return n.NormalizeAs(snap, raw, profile, code)
}

// NormalizeAs normalizes a measurement whose canonical code is already known,
// used when an external resolver supplied the mapping the local table missed.
func (n *Normalizer) NormalizeAs(snap *reference.Snapshot, raw domain.RawMeasurement, profile *domain.Profile, code string) (domain.NormalizedBiomarker, []domain.Warning, error) {
	if err := raw.Validate(); err != nil {
		return domain.NormalizedBiomarker{}, nil, err
	}

	def, ok := snap.Def(code)
	if !ok {
		return n.unresolved(raw), []domain.Warning{
			domain.NewWarning(domain.WarnUnresolvedBiomarker, raw.Name,
				"resolver returned unknown code %q for %q", code, raw.Name),
		}, nil
	}

	var warnings []domain.Warning

	value, unit, converted := snap.Convert(code, raw.Unit, raw.Value)
	if !converted {
		warnings = append(warnings, domain.NewWarning(domain.WarnUnresolvedUnit, raw.Name,
			"no conversion path from %q to %q for %s; value passed through unconverted",
			raw.Unit, def.Unit, code))
		n.logger.WithFields(logrus.Fields{
			"code":      code,
			"from_unit": raw.Unit,
			"to_unit":   def.Unit,
		}).Warn("Unit conversion path missing")
	}

	min, max := n.resolveRange(snap, raw, profile, code, converted)
	if min == nil || max == nil {
		warnings = append(warnings, domain.NewWarning(domain.WarnNoReferenceRange, raw.Name,
			"no reference range resolvable for %s", code))
	}

	cls := n.classifier.Classify(value, min, max)

	return domain.NormalizedBiomarker{
		Code:             code,
		CanonicalName:    def.Name,
		Category:         def.Category,
		Value:            value,
		Unit:             unit,
		ReferenceMin:     min,
		ReferenceMax:     max,
		Status:           cls.Status,
		Severity:         cls.Severity,
		PercentFromRange: cls.PercentFromRange,
		CollectedAt:      raw.CollectedAt,
	}, warnings, nil
}

// resolveRange prefers a caller-supplied range; otherwise the default-range
// table with demographic overrides. Caller-supplied bounds are taken to be in
// the supplied unit, so they are only trusted when the value needed no
// conversion or none was possible anyway.
func (n *Normalizer) resolveRange(snap *reference.Snapshot, raw domain.RawMeasurement, profile *domain.Profile, code string, converted bool) (*float64, *float64) {
	if raw.ReferenceMin != nil && raw.ReferenceMax != nil {
		lo, hi := *raw.ReferenceMin, *raw.ReferenceMax
		if converted {
			lo, _, _ = snap.Convert(code, raw.Unit, lo)
			hi, _, _ = snap.Convert(code, raw.Unit, hi)
		}
		return &lo, &hi
	}
	if r, ok := snap.RangeFor(code, profile); ok {
		lo, hi := r.Min, r.Max
		return &lo, &hi
	}
	return nil, nil
}

// unresolved preserves the original name, value, and unit so nothing is
// silently dropped.
func (n *Normalizer) unresolved(raw domain.RawMeasurement) domain.NormalizedBiomarker {
	return domain.NormalizedBiomarker{
		CanonicalName:    raw.Name,
		Value:            raw.Value,
		Unit:             raw.Unit,
		ReferenceMin:     raw.ReferenceMin,
		ReferenceMax:     raw.ReferenceMax,
		Status:           domain.StatusUnknown,
		Severity:         domain.SeverityNone,
		PercentFromRange: 0,
		CollectedAt:      raw.CollectedAt,
	}
}
