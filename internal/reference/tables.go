// Package reference holds the process-wide read-only tables the analytics
// pipeline depends on: the biomarker standardization map, unit conversion
// factors, default reference ranges with demographic overrides, and the risk
// weight models. Tables are published as immutable snapshots; updates happen
// only by whole-snapshot swap.
package reference

import "github.com/biomarker-insight-server/internal/domain"

// BiomarkerDef describes one canonical biomarker: its code, display name,
// clinical category, canonical unit, and the lab-report synonyms that map
// to it.
type BiomarkerDef struct {
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Unit     string   `json:"unit"`
	Synonyms []string `json:"synonyms"`
}

// Range is a reference interval in the biomarker's canonical unit.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// RangeOverride adjusts a default range for a demographic slice. A zero
// MaxAge means no upper bound; SexUnspecified matches any sex.
type RangeOverride struct {
	Sex    domain.Sex `json:"sex,omitempty"`
	MinAge int        `json:"min_age,omitempty"`
	MaxAge int        `json:"max_age,omitempty"`
	Range  Range      `json:"range"`
}

// Conversion is a unit conversion factor for one biomarker: multiplying a
// value in From by Factor yields the value in To.
type Conversion struct {
	Code   string  `json:"code"`
	From   string  `json:"from"`
	To     string  `json:"to"`
	Factor float64 `json:"factor"`
}

// RiskRule maps one biomarker deviation to an additive risk contribution.
// Trigger selects which statuses fire the rule.
type RiskRule struct {
	Code        string  `json:"code"`
	Trigger     Trigger `json:"trigger"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

// Trigger names the deviation direction a risk rule responds to.
type Trigger string

const (
	TriggerAbove    Trigger = "above"
	TriggerBelow    Trigger = "below"
	TriggerAbnormal Trigger = "abnormal"
)

// Fires reports whether a biomarker status satisfies the trigger.
func (t Trigger) Fires(s domain.Status) bool {
	switch t {
	case TriggerAbove:
		return s.IsAbove()
	case TriggerBelow:
		return s.IsBelow()
	case TriggerAbnormal:
		return s.IsOutOfRange()
	default:
		return false
	}
}

// ProfileRule maps a demographic or lifestyle attribute to an additive risk
// contribution. Param carries the attribute threshold where one applies
// (age cutoff, BMI cutoff).
type ProfileRule struct {
	Attribute   string  `json:"attribute"`
	Param       float64 `json:"param,omitempty"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

// Profile rule attributes understood by the risk scorer.
const (
	AttrAgeOver       = "age_over"
	AttrSmoker        = "smoker"
	AttrFamilyHistory = "family_history"
	AttrBMIOver       = "bmi_over"
	AttrSedentary     = "sedentary"
)

// Thresholds are the score cutoffs for risk-level tiering, kept per category
// so quartile-based variants stay configurable rather than duplicated inline.
type Thresholds struct {
	Moderate float64 `json:"moderate"`
	High     float64 `json:"high"`
	VeryHigh float64 `json:"very_high"`
}

// Level maps a clamped score onto a tier.
func (t Thresholds) Level(score float64) domain.RiskLevel {
	switch {
	case t.VeryHigh > 0 && score >= t.VeryHigh:
		return domain.RiskVeryHigh
	case score >= t.High:
		return domain.RiskHigh
	case score >= t.Moderate:
		return domain.RiskModerate
	default:
		return domain.RiskLow
	}
}

// RiskModel is the weighted rule set for one risk category.
type RiskModel struct {
	Category     domain.RiskCategory `json:"category"`
	Rules        []RiskRule          `json:"rules"`
	ProfileRules []ProfileRule       `json:"profile_rules"`
	Thresholds   Thresholds          `json:"thresholds"`
}

// Canonical biomarker codes referenced across the pipeline.
const (
	CodeHemoglobin       = "hemoglobin"
	CodeHematocrit       = "hematocrit"
	CodeMCV              = "mcv"
	CodeRBC              = "rbc"
	CodeWBC              = "wbc"
	CodePlatelets        = "platelets"
	CodeGlucose          = "glucose"
	CodeHbA1c            = "hba1c"
	CodeTotalCholesterol = "total_cholesterol"
	CodeLDL              = "ldl_cholesterol"
	CodeHDL              = "hdl_cholesterol"
	CodeTriglycerides    = "triglycerides"
	CodeTSH              = "tsh"
	CodeFreeT4           = "free_t4"
	CodeFreeT3           = "free_t3"
	CodeCreatinine       = "creatinine"
	CodeBUN              = "bun"
	CodeEGFR             = "egfr"
	CodeVitaminD         = "vitamin_d"
	CodeVitaminB12       = "vitamin_b12"
	CodeFolate           = "folate"
	CodeFerritin         = "ferritin"
	CodeIron             = "iron"
	CodeCRP              = "crp"
	CodeALT              = "alt"
	CodeAST              = "ast"
)

// builtinDefs is the shipped standardization table. Synonym keys are matched
// lower-cased and trimmed; substring fallback iterates longest key first so
// matching stays reproducible.
func builtinDefs() []BiomarkerDef {
	return []BiomarkerDef{
		{CodeHemoglobin, "Hemoglobin", "hematology", "g/dL", []string{"hemoglobin", "haemoglobin", "hgb", "hb"}},
		{CodeHematocrit, "Hematocrit", "hematology", "%", []string{"hematocrit", "haematocrit", "hct", "pcv"}},
		{CodeMCV, "Mean Corpuscular Volume", "hematology", "fL", []string{"mcv", "mean corpuscular volume"}},
		{CodeRBC, "Red Blood Cell Count", "hematology", "M/uL", []string{"rbc", "red blood cell", "red blood cells", "erythrocytes"}},
		{CodeWBC, "White Blood Cell Count", "hematology", "K/uL", []string{"wbc", "white blood cell", "white blood cells", "leukocytes"}},
		{CodePlatelets, "Platelet Count", "hematology", "K/uL", []string{"platelets", "platelet count", "plt", "thrombocytes"}},
		{CodeGlucose, "Glucose", "metabolic", "mg/dL", []string{"glucose", "fasting glucose", "blood sugar", "glu"}},
		{CodeHbA1c, "Hemoglobin A1c", "metabolic", "%", []string{"hba1c", "a1c", "glycated hemoglobin", "glycohemoglobin"}},
		{CodeTotalCholesterol, "Total Cholesterol", "lipids", "mg/dL", []string{"total cholesterol", "cholesterol total", "cholesterol"}},
		{CodeLDL, "LDL Cholesterol", "lipids", "mg/dL", []string{"ldl", "ldl cholesterol", "ldl-c", "low density lipoprotein"}},
		{CodeHDL, "HDL Cholesterol", "lipids", "mg/dL", []string{"hdl", "hdl cholesterol", "hdl-c", "high density lipoprotein"}},
		{CodeTriglycerides, "Triglycerides", "lipids", "mg/dL", []string{"triglycerides", "triglyceride", "trig", "tg"}},
		{CodeTSH, "Thyroid Stimulating Hormone", "thyroid", "mIU/L", []string{"tsh", "thyroid stimulating hormone", "thyrotropin"}},
		{CodeFreeT4, "Free T4", "thyroid", "ng/dL", []string{"free t4", "ft4", "free thyroxine", "t4 free"}},
		{CodeFreeT3, "Free T3", "thyroid", "pg/mL", []string{"free t3", "ft3", "free triiodothyronine", "t3 free"}},
		{CodeCreatinine, "Creatinine", "renal", "mg/dL", []string{"creatinine", "creat", "cr"}},
		{CodeBUN, "Blood Urea Nitrogen", "renal", "mg/dL", []string{"bun", "blood urea nitrogen", "urea nitrogen", "urea"}},
		{CodeEGFR, "Estimated GFR", "renal", "mL/min/1.73m2", []string{"egfr", "gfr", "estimated gfr", "glomerular filtration rate"}},
		{CodeVitaminD, "Vitamin D (25-OH)", "nutritional", "ng/mL", []string{"vitamin d", "25-oh vitamin d", "25-hydroxyvitamin d", "vit d"}},
		{CodeVitaminB12, "Vitamin B12", "nutritional", "pg/mL", []string{"vitamin b12", "b12", "cobalamin", "vit b12"}},
		{CodeFolate, "Folate", "nutritional", "ng/mL", []string{"folate", "folic acid", "vitamin b9"}},
		{CodeFerritin, "Ferritin", "nutritional", "ng/mL", []string{"ferritin"}},
		{CodeIron, "Serum Iron", "nutritional", "ug/dL", []string{"iron", "serum iron", "fe"}},
		{CodeCRP, "C-Reactive Protein", "inflammation", "mg/L", []string{"crp", "c-reactive protein", "c reactive protein", "hs-crp"}},
		{CodeALT, "Alanine Aminotransferase", "liver", "U/L", []string{"alt", "alanine aminotransferase", "sgpt"}},
		{CodeAST, "Aspartate Aminotransferase", "liver", "U/L", []string{"ast", "aspartate aminotransferase", "sgot"}},
	}
}

// builtinConversions lists factors into each code's canonical unit. The
// lookup is bidirectional: a missing forward factor falls back to the
// inverse of the opposite direction.
func builtinConversions() []Conversion {
	return []Conversion{
		{CodeHemoglobin, "g/L", "g/dL", 0.1},
		{CodeHemoglobin, "mmol/L", "g/dL", 1.61},
		{CodeGlucose, "mmol/L", "mg/dL", 18.0182},
		{CodeTotalCholesterol, "mmol/L", "mg/dL", 38.67},
		{CodeLDL, "mmol/L", "mg/dL", 38.67},
		{CodeHDL, "mmol/L", "mg/dL", 38.67},
		{CodeTriglycerides, "mmol/L", "mg/dL", 88.57},
		{CodeCreatinine, "umol/L", "mg/dL", 0.0113},
		{CodeBUN, "mmol/L", "mg/dL", 2.8},
		{CodeVitaminD, "nmol/L", "ng/mL", 0.4},
		{CodeVitaminB12, "pmol/L", "pg/mL", 1.355},
		{CodeFreeT4, "pmol/L", "ng/dL", 0.0777},
		{CodeFerritin, "ug/L", "ng/mL", 1.0},
		{CodeCRP, "mg/dL", "mg/L", 10.0},
	}
}

// builtinRanges are the shipped default reference intervals, in canonical
// units. These are configuration data, not clinical guarantees.
func builtinRanges() map[string]Range {
	return map[string]Range{
		CodeHemoglobin:       {12.0, 17.5},
		CodeHematocrit:       {36.0, 50.0},
		CodeMCV:              {80.0, 100.0},
		CodeRBC:              {4.0, 5.9},
		CodeWBC:              {4.0, 11.0},
		CodePlatelets:        {150.0, 400.0},
		CodeGlucose:          {70.0, 99.0},
		CodeHbA1c:            {4.0, 5.6},
		CodeTotalCholesterol: {125.0, 200.0},
		CodeLDL:              {50.0, 100.0},
		CodeHDL:              {40.0, 90.0},
		CodeTriglycerides:    {35.0, 150.0},
		CodeTSH:              {0.4, 4.5},
		CodeFreeT4:           {0.8, 1.8},
		CodeFreeT3:           {2.3, 4.2},
		CodeCreatinine:       {0.6, 1.3},
		CodeBUN:              {7.0, 20.0},
		CodeEGFR:             {60.0, 120.0},
		CodeVitaminD:         {30.0, 100.0},
		CodeVitaminB12:       {200.0, 900.0},
		CodeFolate:           {2.7, 17.0},
		CodeFerritin:         {20.0, 250.0},
		CodeIron:             {60.0, 170.0},
		CodeCRP:              {0.0, 3.0},
		CodeALT:              {7.0, 56.0},
		CodeAST:              {10.0, 40.0},
	}
}

// builtinOverrides carry the demographic range adjustments for the small set
// of codes where sex or age materially shifts the interval.
func builtinOverrides() map[string][]RangeOverride {
	return map[string][]RangeOverride{
		CodeHemoglobin: {
			{Sex: domain.SexFemale, Range: Range{12.0, 15.5}},
			{Sex: domain.SexMale, Range: Range{13.5, 17.5}},
		},
		CodeHematocrit: {
			{Sex: domain.SexFemale, Range: Range{36.0, 44.0}},
			{Sex: domain.SexMale, Range: Range{40.0, 50.0}},
		},
		CodeCreatinine: {
			{Sex: domain.SexFemale, Range: Range{0.5, 1.1}},
			{Sex: domain.SexMale, Range: Range{0.7, 1.3}},
		},
		CodeFerritin: {
			{Sex: domain.SexFemale, Range: Range{20.0, 200.0}},
			{Sex: domain.SexMale, Range: Range{30.0, 300.0}},
		},
		CodeEGFR: {
			{MinAge: 70, Range: Range{45.0, 120.0}},
		},
	}
}

// builtinRiskModels are the shipped weighted rule sets per risk category.
func builtinRiskModels() map[domain.RiskCategory]RiskModel {
	return map[domain.RiskCategory]RiskModel{
		domain.RiskCardiovascular: {
			Category: domain.RiskCardiovascular,
			Rules: []RiskRule{
				{CodeLDL, TriggerAbove, 0.25, "elevated LDL cholesterol"},
				{CodeHDL, TriggerBelow, 0.20, "low HDL cholesterol"},
				{CodeTriglycerides, TriggerAbove, 0.15, "elevated triglycerides"},
				{CodeTotalCholesterol, TriggerAbove, 0.10, "elevated total cholesterol"},
				{CodeCRP, TriggerAbove, 0.10, "elevated C-reactive protein"},
			},
			ProfileRules: []ProfileRule{
				{Attribute: AttrSmoker, Weight: 0.15, Description: "current smoker"},
				{Attribute: AttrAgeOver, Param: 55, Weight: 0.10, Description: "age over 55"},
				{Attribute: AttrFamilyHistory, Weight: 0.10, Description: "family history of cardiovascular disease"},
				{Attribute: AttrBMIOver, Param: 30, Weight: 0.10, Description: "BMI in obese range"},
			},
			Thresholds: Thresholds{Moderate: 0.3, High: 0.7, VeryHigh: 0.8},
		},
		domain.RiskMetabolic: {
			Category: domain.RiskMetabolic,
			Rules: []RiskRule{
				{CodeGlucose, TriggerAbove, 0.30, "elevated fasting glucose"},
				{CodeHbA1c, TriggerAbove, 0.30, "elevated HbA1c"},
				{CodeTriglycerides, TriggerAbove, 0.15, "elevated triglycerides"},
				{CodeHDL, TriggerBelow, 0.10, "low HDL cholesterol"},
			},
			ProfileRules: []ProfileRule{
				{Attribute: AttrBMIOver, Param: 30, Weight: 0.15, Description: "BMI in obese range"},
				{Attribute: AttrFamilyHistory, Weight: 0.10, Description: "family history of diabetes"},
				{Attribute: AttrSedentary, Weight: 0.05, Description: "sedentary activity level"},
				{Attribute: AttrAgeOver, Param: 45, Weight: 0.05, Description: "age over 45"},
			},
			Thresholds: Thresholds{Moderate: 0.25, High: 0.5, VeryHigh: 0.75},
		},
		domain.RiskNutritional: {
			Category: domain.RiskNutritional,
			Rules: []RiskRule{
				{CodeVitaminD, TriggerBelow, 0.25, "vitamin D deficiency"},
				{CodeVitaminB12, TriggerBelow, 0.25, "vitamin B12 deficiency"},
				{CodeFolate, TriggerBelow, 0.15, "folate deficiency"},
				{CodeFerritin, TriggerBelow, 0.20, "low ferritin (depleted iron stores)"},
				{CodeIron, TriggerBelow, 0.15, "low serum iron"},
			},
			ProfileRules: []ProfileRule{
				{Attribute: AttrAgeOver, Param: 65, Weight: 0.10, Description: "age over 65"},
			},
			Thresholds: Thresholds{Moderate: 0.3, High: 0.7, VeryHigh: 0.8},
		},
	}
}
