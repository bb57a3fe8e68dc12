package reference

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/biomarker-insight-server/internal/domain"
)

// Snapshot is an immutable, fully-built view of the reference tables. All
// lookups on a Snapshot are read-only and safe for concurrent use; a Store
// republishes a whole new Snapshot on reload rather than mutating one in
// place, so evaluations never observe a half-updated table.
type Snapshot struct {
	loadedAt    time.Time
	defs        map[string]BiomarkerDef
	synonyms    map[string]string
	synonymKeys []string
	conversions map[string]float64
	ranges      map[string]Range
	overrides   map[string][]RangeOverride
	riskModels  map[domain.RiskCategory]RiskModel
}

// Overrides is the shape of an optional JSON file merged over the built-in
// tables on load.
type Overrides struct {
	Definitions []BiomarkerDef             `json:"definitions,omitempty"`
	Conversions []Conversion               `json:"conversions,omitempty"`
	Ranges      map[string]Range           `json:"ranges,omitempty"`
	RangeRules  map[string][]RangeOverride `json:"range_overrides,omitempty"`
}

func conversionKey(code, from, to string) string {
	return code + "|" + strings.ToLower(from) + "|" + strings.ToLower(to)
}

func buildSnapshot(defs []BiomarkerDef, conversions []Conversion, ranges map[string]Range, overrides map[string][]RangeOverride, riskModels map[domain.RiskCategory]RiskModel) *Snapshot {
	s := &Snapshot{
		loadedAt:    time.Now().UTC(),
		defs:        make(map[string]BiomarkerDef, len(defs)),
		synonyms:    make(map[string]string),
		conversions: make(map[string]float64, len(conversions)),
		ranges:      ranges,
		overrides:   overrides,
		riskModels:  riskModels,
	}

	for _, d := range defs {
		s.defs[d.Code] = d
		for _, syn := range d.Synonyms {
			s.synonyms[strings.ToLower(strings.TrimSpace(syn))] = d.Code
		}
	}

	// Longest key first keeps substring fallback matching deterministic;
	// equal lengths break ties lexicographically.
	s.synonymKeys = make([]string, 0, len(s.synonyms))
	for k := range s.synonyms {
		s.synonymKeys = append(s.synonymKeys, k)
	}
	sort.Slice(s.synonymKeys, func(i, j int) bool {
		a, b := s.synonymKeys[i], s.synonymKeys[j]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a < b
	})

	for _, c := range conversions {
		s.conversions[conversionKey(c.Code, c.From, c.To)] = c.Factor
	}

	return s
}

// LoadedAt reports when this snapshot was built.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Def returns the definition for a canonical code.
func (s *Snapshot) Def(code string) (BiomarkerDef, bool) {
	d, ok := s.defs[code]
	return d, ok
}

// ResolveName maps a lab-report biomarker name to a canonical code. Exact
// synonym lookup wins; otherwise substring containment against synonym keys
// is tried longest key first. Substring matching is a best-effort heuristic,
// not a guarantee of correct disambiguation.
func (s *Snapshot) ResolveName(name string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return "", false
	}
	if code, ok := s.synonyms[key]; ok {
		return code, true
	}
	for _, syn := range s.synonymKeys {
		if strings.Contains(key, syn) || strings.Contains(syn, key) {
			return s.synonyms[syn], true
		}
	}
	return "", false
}

// Convert converts a value from the supplied unit into the code's canonical
// unit. The factor table is bidirectional: a missing forward factor falls
// back to the inverse of the opposite direction. Returns ok=false when no
// path exists, in which case the value is returned unchanged.
func (s *Snapshot) Convert(code, unit string, value float64) (float64, string, bool) {
	def, ok := s.defs[code]
	if !ok {
		return value, unit, false
	}
	from := strings.ToLower(strings.TrimSpace(unit))
	canonical := strings.ToLower(def.Unit)
	if from == "" || from == canonical {
		return value, def.Unit, true
	}
	if f, ok := s.conversions[conversionKey(code, from, canonical)]; ok {
		return value * f, def.Unit, true
	}
	if f, ok := s.conversions[conversionKey(code, canonical, from)]; ok && f != 0 {
		return value / f, def.Unit, true
	}
	return value, unit, false
}

// RangeFor resolves the reference range for a code, preferring the first
// demographic override that matches the profile, then the default range.
func (s *Snapshot) RangeFor(code string, profile *domain.Profile) (Range, bool) {
	for _, ov := range s.overrides[code] {
		if ov.matches(profile) {
			return ov.Range, true
		}
	}
	r, ok := s.ranges[code]
	return r, ok
}

func (ov RangeOverride) matches(profile *domain.Profile) bool {
	if profile == nil {
		return false
	}
	if ov.Sex != domain.SexUnspecified {
		if !profile.HasSex() || profile.Sex != ov.Sex {
			return false
		}
	}
	if ov.MinAge > 0 && (!profile.HasAge() || profile.Age < ov.MinAge) {
		return false
	}
	if ov.MaxAge > 0 && (!profile.HasAge() || profile.Age > ov.MaxAge) {
		return false
	}
	return true
}

// RiskModel returns the weighted rule set for a category.
func (s *Snapshot) RiskModel(category domain.RiskCategory) (RiskModel, bool) {
	m, ok := s.riskModels[category]
	return m, ok
}

// RiskCategories lists the categories with a configured model, in stable
// order.
func (s *Snapshot) RiskCategories() []domain.RiskCategory {
	cats := make([]domain.RiskCategory, 0, len(s.riskModels))
	for c := range s.riskModels {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}

// Store publishes the current reference Snapshot and supports reload by
// atomic swap.
type Store struct {
	logger       *logrus.Logger
	overridePath string
	current      atomic.Pointer[Snapshot]
}

// NewStore builds a Store from the built-in tables, merged with the optional
// override file when overridePath is non-empty.
func NewStore(logger *logrus.Logger, overridePath string) (*Store, error) {
	st := &Store{logger: logger, overridePath: overridePath}
	if err := st.Reload(); err != nil {
		return nil, fmt.Errorf("failed to load reference tables: %w", err)
	}
	return st, nil
}

// Current returns the active snapshot. The returned snapshot stays valid and
// internally consistent even if a reload swaps in a newer one.
func (st *Store) Current() *Snapshot {
	return st.current.Load()
}

// Reload rebuilds the snapshot from built-ins plus the override file and
// publishes it atomically. In-flight evaluations keep the snapshot they
// started with.
func (st *Store) Reload() error {
	defs := builtinDefs()
	conversions := builtinConversions()
	ranges := builtinRanges()
	rangeOverrides := builtinOverrides()

	if st.overridePath != "" {
		ov, err := readOverrides(st.overridePath)
		if err != nil {
			return err
		}
		defs = append(defs, ov.Definitions...)
		conversions = append(conversions, ov.Conversions...)
		for code, r := range ov.Ranges {
			ranges[code] = r
		}
		for code, rules := range ov.RangeRules {
			rangeOverrides[code] = rules
		}
	}

	snap := buildSnapshot(defs, conversions, ranges, rangeOverrides, builtinRiskModels())
	st.current.Store(snap)

	st.logger.WithFields(logrus.Fields{
		"biomarkers":  len(snap.defs),
		"synonyms":    len(snap.synonyms),
		"conversions": len(snap.conversions),
		"ranges":      len(snap.ranges),
		"loaded_at":   snap.loadedAt,
	}).Info("Reference tables loaded")

	return nil
}

func readOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read override file: %w", err)
	}
	var ov Overrides
	if err := json.Unmarshal(data, &ov); err != nil {
		return nil, fmt.Errorf("failed to parse override file: %w", err)
	}
	return &ov, nil
}
