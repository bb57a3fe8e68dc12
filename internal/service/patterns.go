package service

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/biomarker-insight-server/internal/domain"
	"github.com/biomarker-insight-server/internal/reference"
)

// PatternDetector scans a normalized biomarker snapshot for known
// multi-biomarker clinical patterns. Rules are independent predicate+builder
// pairs evaluated over a code-keyed lookup map; all rules run on every
// detection and multiple patterns may fire. The order of returned patterns
// reflects rule registration order, not clinical priority.
type PatternDetector struct {
	logger *logrus.Logger
	rules  []patternRule
}

type patternRule struct {
	name     string
	evaluate func(byCode map[string]domain.NormalizedBiomarker) *domain.Pattern
}

// NewPatternDetector creates a detector with the built-in clinical rules.
func NewPatternDetector(logger *logrus.Logger) *PatternDetector {
	d := &PatternDetector{logger: logger}
	d.registerRule("anemia", evaluateAnemia)
	d.registerRule("metabolic_risk", evaluateMetabolicRisk)
	d.registerRule("thyroid_dysregulation", evaluateThyroid)
	d.registerRule("renal_impairment", evaluateRenal)
	return d
}

func (d *PatternDetector) registerRule(name string, evaluate func(map[string]domain.NormalizedBiomarker) *domain.Pattern) {
	d.rules = append(d.rules, patternRule{name: name, evaluate: evaluate})
}

// Detect evaluates every rule against the snapshot and returns the patterns
// that fired. It is a pure function of its input.
func (d *PatternDetector) Detect(biomarkers []domain.NormalizedBiomarker) []domain.Pattern {
	byCode := make(map[string]domain.NormalizedBiomarker, len(biomarkers))
	for _, b := range biomarkers {
		if b.Resolved() {
			byCode[b.Code] = b
		}
	}

	patterns := make([]domain.Pattern, 0)
	for _, rule := range d.rules {
		if p := rule.evaluate(byCode); p != nil {
			patterns = append(patterns, *p)
		}
	}

	d.logger.WithFields(logrus.Fields{
		"biomarkers": len(biomarkers),
		"rules":      len(d.rules),
		"patterns":   len(patterns),
	}).Debug("Completed pattern detection")

	return patterns
}

// evaluateAnemia fires when hemoglobin is below range. Hematocrit corroborates
// to high confidence; MCV direction appends a morphology qualifier.
func evaluateAnemia(byCode map[string]domain.NormalizedBiomarker) *domain.Pattern {
	hgb, ok := byCode[reference.CodeHemoglobin]
	if !ok || !hgb.Status.IsBelow() {
		return nil
	}

	p := &domain.Pattern{
		Name:           "anemia",
		Description:    "Hemoglobin below reference range, consistent with anemia",
		Confidence:     domain.ConfidenceMedium,
		BiomarkerCodes: []string{reference.CodeHemoglobin},
	}

	if hct, ok := byCode[reference.CodeHematocrit]; ok && hct.Status.IsBelow() {
		p.Confidence = domain.ConfidenceHigh
		p.BiomarkerCodes = append(p.BiomarkerCodes, reference.CodeHematocrit)
		p.Description += "; corroborated by low hematocrit"
	}

	if mcv, ok := byCode[reference.CodeMCV]; ok {
		switch {
		case mcv.Status.IsBelow():
			p.Note = "microcytic, suggests iron deficiency"
			p.BiomarkerCodes = append(p.BiomarkerCodes, reference.CodeMCV)
		case mcv.Status.IsAbove():
			p.Note = "macrocytic, suggests B12/folate deficiency"
			p.BiomarkerCodes = append(p.BiomarkerCodes, reference.CodeMCV)
		}
	}

	return p
}

// evaluateMetabolicRisk counts the classic metabolic-syndrome deviations and
// fires at two or more.
func evaluateMetabolicRisk(byCode map[string]domain.NormalizedBiomarker) *domain.Pattern {
	var codes []string

	if b, ok := byCode[reference.CodeGlucose]; ok && b.Status.IsAbove() {
		codes = append(codes, reference.CodeGlucose)
	}
	if b, ok := byCode[reference.CodeTriglycerides]; ok && b.Status.IsAbove() {
		codes = append(codes, reference.CodeTriglycerides)
	}
	if b, ok := byCode[reference.CodeHDL]; ok && b.Status.IsBelow() {
		codes = append(codes, reference.CodeHDL)
	}
	if b, ok := byCode[reference.CodeLDL]; ok && b.Status.IsAbove() {
		codes = append(codes, reference.CodeLDL)
	}

	if len(codes) < 2 {
		return nil
	}

	confidence := domain.ConfidenceMedium
	if len(codes) >= 3 {
		confidence = domain.ConfidenceHigh
	}

	return &domain.Pattern{
		Name:           "metabolic_risk",
		Description:    fmt.Sprintf("%d of 4 metabolic risk markers abnormal (%s)", len(codes), strings.Join(codes, ", ")),
		Confidence:     confidence,
		BiomarkerCodes: codes,
	}
}

// evaluateThyroid fires when TSH is outside its range; the Free T4 direction
// distinguishes primary hypo- from hyperthyroid presentations.
func evaluateThyroid(byCode map[string]domain.NormalizedBiomarker) *domain.Pattern {
	tsh, ok := byCode[reference.CodeTSH]
	if !ok || !tsh.Status.IsOutOfRange() {
		return nil
	}

	ft4, hasFT4 := byCode[reference.CodeFreeT4]

	switch {
	case hasFT4 && tsh.Status.IsAbove() && ft4.Status.IsBelow():
		return &domain.Pattern{
			Name:           "thyroid_dysregulation",
			Description:    "Elevated TSH with low Free T4, consistent with primary hypothyroidism",
			Confidence:     domain.ConfidenceHigh,
			BiomarkerCodes: []string{reference.CodeTSH, reference.CodeFreeT4},
		}
	case hasFT4 && tsh.Status.IsBelow() && ft4.Status.IsAbove():
		return &domain.Pattern{
			Name:           "thyroid_dysregulation",
			Description:    "Suppressed TSH with elevated Free T4, consistent with hyperthyroidism",
			Confidence:     domain.ConfidenceHigh,
			BiomarkerCodes: []string{reference.CodeTSH, reference.CodeFreeT4},
		}
	default:
		return &domain.Pattern{
			Name:           "thyroid_dysregulation",
			Description:    "TSH outside reference range; thyroid axis warrants follow-up",
			Confidence:     domain.ConfidenceMedium,
			BiomarkerCodes: []string{reference.CodeTSH},
		}
	}
}

// evaluateRenal fires when creatinine is above range; BUN and eGFR each
// corroborate to high confidence.
func evaluateRenal(byCode map[string]domain.NormalizedBiomarker) *domain.Pattern {
	cr, ok := byCode[reference.CodeCreatinine]
	if !ok || !cr.Status.IsAbove() {
		return nil
	}

	p := &domain.Pattern{
		Name:           "renal_impairment",
		Description:    "Creatinine above reference range, suggesting reduced renal clearance",
		Confidence:     domain.ConfidenceMedium,
		BiomarkerCodes: []string{reference.CodeCreatinine},
	}

	if bun, ok := byCode[reference.CodeBUN]; ok && bun.Status.IsAbove() {
		p.Confidence = domain.ConfidenceHigh
		p.BiomarkerCodes = append(p.BiomarkerCodes, reference.CodeBUN)
		p.Description += "; corroborated by elevated BUN"
	}
	if egfr, ok := byCode[reference.CodeEGFR]; ok && egfr.Status.IsBelow() {
		p.Confidence = domain.ConfidenceHigh
		p.BiomarkerCodes = append(p.BiomarkerCodes, reference.CodeEGFR)
		p.Description += "; corroborated by reduced eGFR"
	}

	return p
}
