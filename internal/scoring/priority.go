// Package scoring computes the derived ranking fields attached to curated
// vehicles: the priority score and the mileage rating. Pure functions and
// injected configuration only.
package scoring

import "strings"

// DefaultScore is assigned to any model with no table entry
const DefaultScore = 5

// Score bounds
const (
	MinScore = 0
	MaxScore = 100
)

// Table maps lowercased "make model" keys to priority scores. It is static
// configuration injected at construction, not a computed formula, so it can
// be replaced wholesale without touching scorer logic.
type Table map[string]int

// Strategy scores a make/model pair. The lookup-table scorer is the only
// implementation today; a weighted multi-factor scorer can satisfy the same
// interface later without changing callers.
type Strategy interface {
	Score(make, model string) int
}

// Scorer is the lookup-table Strategy
type Scorer struct {
	table        Table
	defaultScore int
}

// NewScorer creates a lookup-table scorer over the given table.
// A nil table scores everything at the default.
func NewScorer(table Table) *Scorer {
	normalized := make(Table, len(table))
	for key, score := range table {
		normalized[normalizeKey(key)] = clampScore(score)
	}
	return &Scorer{table: normalized, defaultScore: DefaultScore}
}

// Score returns the table score for the make/model, or the default for
// unmapped models. Always within [MinScore, MaxScore].
func (s *Scorer) Score(make, model string) int {
	if score, ok := s.table[normalizeKey(make+" "+model)]; ok {
		return score
	}
	return s.defaultScore
}

func normalizeKey(key string) string {
	return strings.Join(strings.Fields(strings.ToLower(key)), " ")
}

func clampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// DefaultTable is the shipped model-priority mapping: reliability-tier
// compact SUVs and sedans in the 6-10 band.
func DefaultTable() Table {
	return Table{
		"toyota rav4":       10,
		"honda cr-v":        10,
		"mazda cx-5":        9,
		"toyota highlander": 9,
		"subaru forester":   8,
		"subaru outback":    8,
		"toyota camry":      8,
		"honda civic":       8,
		"honda accord":      8,
		"hyundai tucson":    7,
		"kia sportage":      7,
		"toyota corolla":    7,
		"nissan rogue":      6,
		"ford escape":       6,
	}
}
