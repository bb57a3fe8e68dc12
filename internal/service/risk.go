package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/biomarker-insight-server/internal/domain"
	"github.com/biomarker-insight-server/internal/reference"
)

// RiskScorer combines classified biomarkers and optional profile attributes
// into per-category risk scores using the snapshot's weighted rule models.
type RiskScorer struct {
	logger *logrus.Logger
}

// NewRiskScorer creates a new risk scorer.
func NewRiskScorer(logger *logrus.Logger) *RiskScorer {
	return &RiskScorer{logger: logger}
}

// Score computes the assessment for one category. Missing biomarkers reduce
// confidence but never block scoring: each unavailable input is named in the
// limitations list. Contributions are additive and the final score is clamped
// to [0, 1].
func (s *RiskScorer) Score(snap *reference.Snapshot, category domain.RiskCategory, biomarkers []domain.NormalizedBiomarker, profile *domain.Profile) (*domain.RiskAssessment, error) {
	model, ok := snap.RiskModel(category)
	if !ok {
		return nil, fmt.Errorf("score risk %q: %w", category, domain.ErrUnknownRiskCategory)
	}

	byCode := make(map[string]domain.NormalizedBiomarker, len(biomarkers))
	for _, b := range biomarkers {
		if b.Resolved() {
			byCode[b.Code] = b
		}
	}

	var (
		factors     []domain.RiskFactor
		limitations []string
		score       float64
	)

	for _, rule := range model.Rules {
		b, present := byCode[rule.Code]
		if !present {
			limitations = append(limitations, fmt.Sprintf("%s not measured", rule.Code))
			continue
		}
		if !rule.Trigger.Fires(b.Status) {
			continue
		}
		contribution := rule.Weight
		// A severe deviation weighs half again as much as the base rule.
		if b.Severity == domain.SeverityHigh {
			contribution *= 1.5
		}
		score += contribution
		factors = append(factors, domain.RiskFactor{
			Description:  rule.Description,
			Contribution: contribution,
		})
	}

	for _, rule := range model.ProfileRules {
		contribution, applies, known := evaluateProfileRule(rule, profile)
		if !known {
			limitations = append(limitations, fmt.Sprintf("%s unknown", strings.ReplaceAll(rule.Attribute, "_", " ")))
			continue
		}
		if !applies {
			continue
		}
		score += contribution
		factors = append(factors, domain.RiskFactor{
			Description:  rule.Description,
			Contribution: contribution,
		})
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}

	// Contribution order, largest first, keeps the factor list inspectable.
	sort.SliceStable(factors, func(i, j int) bool {
		return factors[i].Contribution > factors[j].Contribution
	})
	names := make([]string, len(factors))
	for i, f := range factors {
		names[i] = f.Description
	}

	assessment := &domain.RiskAssessment{
		Category:    category,
		Score:       score,
		Level:       model.Thresholds.Level(score),
		Factors:     names,
		Limitations: limitations,
	}

	s.logger.WithFields(logrus.Fields{
		"category":    category,
		"score":       score,
		"level":       assessment.Level,
		"factors":     len(names),
		"limitations": len(limitations),
	}).Debug("Scored risk category")

	return assessment, nil
}

// ScoreAll scores every configured category in stable order.
func (s *RiskScorer) ScoreAll(snap *reference.Snapshot, biomarkers []domain.NormalizedBiomarker, profile *domain.Profile) ([]domain.RiskAssessment, error) {
	categories := snap.RiskCategories()
	assessments := make([]domain.RiskAssessment, 0, len(categories))
	for _, c := range categories {
		a, err := s.Score(snap, c, biomarkers, profile)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, *a)
	}
	return assessments, nil
}

// evaluateProfileRule returns the rule's contribution, whether it applies,
// and whether the attribute was known at all.
func evaluateProfileRule(rule reference.ProfileRule, profile *domain.Profile) (contribution float64, applies, known bool) {
	switch rule.Attribute {
	case reference.AttrAgeOver:
		if !profile.HasAge() {
			return 0, false, false
		}
		return rule.Weight, float64(profile.Age) > rule.Param, true
	case reference.AttrSmoker:
		if profile == nil || profile.Smoker == nil {
			return 0, false, false
		}
		return rule.Weight, *profile.Smoker, true
	case reference.AttrFamilyHistory:
		if profile == nil || profile.FamilyHistory == nil {
			return 0, false, false
		}
		return rule.Weight, *profile.FamilyHistory, true
	case reference.AttrBMIOver:
		if !profile.HasBMI() {
			return 0, false, false
		}
		return rule.Weight, profile.BMI > rule.Param, true
	case reference.AttrSedentary:
		if profile == nil || profile.ActivityLevel == "" {
			return 0, false, false
		}
		return rule.Weight, strings.EqualFold(profile.ActivityLevel, "sedentary"), true
	default:
		return 0, false, false
	}
}
