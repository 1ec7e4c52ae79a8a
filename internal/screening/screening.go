// Package screening implements the hard-reject rules applied to raw
// listings before anything is scored or stored. Pure functions, no I/O.
package screening

import (
	"fmt"

	"vehicle-curation-portal/internal/models"
)

// RejectReason identifies which rule dropped a listing
type RejectReason string

const (
	ReasonNone        RejectReason = ""
	ReasonMissingData RejectReason = "missing_data"
	ReasonPrice       RejectReason = "price_out_of_range"
	ReasonYear        RejectReason = "year_below_minimum"
	ReasonMileage     RejectReason = "mileage_over_ceiling"
	ReasonTitle       RejectReason = "title_not_clean"
	ReasonAccidents   RejectReason = "accident_history"
	ReasonOwners      RejectReason = "too_many_owners"
	ReasonUsageFlags  RejectReason = "usage_flags"
)

// Policy holds the non-negotiable reject thresholds. Injected so tests and
// deployments can supply alternates without global state.
type Policy struct {
	MinPrice              int    `yaml:"min_price" json:"min_price"`
	MaxPrice              int    `yaml:"max_price" json:"max_price"`
	MinYear               int    `yaml:"min_year" json:"min_year"`
	MileageCeilingPerYear int    `yaml:"mileage_ceiling_per_year" json:"mileage_ceiling_per_year"`
	RequiredTitleStatus   string `yaml:"required_title_status" json:"required_title_status"`
	MaxAccidents          int    `yaml:"max_accidents" json:"max_accidents"`
	MaxOwners             int    `yaml:"max_owners" json:"max_owners"`
	ExcludeRental         bool   `yaml:"exclude_rental" json:"exclude_rental"`
	ExcludeFleet          bool   `yaml:"exclude_fleet" json:"exclude_fleet"`
	ExcludeLien           bool   `yaml:"exclude_lien" json:"exclude_lien"`
	ExcludeFloodDamage    bool   `yaml:"exclude_flood_damage" json:"exclude_flood_damage"`
}

// DefaultPolicy returns the production reject thresholds
func DefaultPolicy() Policy {
	return Policy{
		MinPrice:              3000,
		MaxPrice:              25000,
		MinYear:               2012,
		MileageCeilingPerYear: 20000,
		RequiredTitleStatus:   models.TitleStatusClean,
		MaxAccidents:          0,
		MaxOwners:             2,
		ExcludeRental:         true,
		ExcludeFleet:          true,
		ExcludeLien:           true,
		ExcludeFloodDamage:    true,
	}
}

// Verdict is the result of evaluating one listing
type Verdict struct {
	Accepted bool         `json:"accepted"`
	Reason   RejectReason `json:"reason,omitempty"`
	Detail   string       `json:"detail,omitempty"`
}

func reject(reason RejectReason, format string, args ...interface{}) Verdict {
	return Verdict{Accepted: false, Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Engine applies the hard-filter policy. CurrentYear is fixed at
// construction so a single run evaluates every listing against the same
// year and tests are deterministic.
type Engine struct {
	policy      Policy
	currentYear int
}

// NewEngine creates an engine for the given policy and evaluation year
func NewEngine(policy Policy, currentYear int) *Engine {
	return &Engine{policy: policy, currentYear: currentYear}
}

// Policy returns the injected policy (read-only use)
func (e *Engine) Policy() Policy {
	return e.policy
}

// Evaluate applies the reject rules in fixed order. The first failing rule
// determines the reported reason, so diagnostics are reproducible. A listing
// missing any required field is rejected with missing_data rather than
// evaluated against zero values.
func (e *Engine) Evaluate(l *models.RawListing) Verdict {
	if field := missingField(l); field != "" {
		return reject(ReasonMissingData, "required field %q not supplied", field)
	}

	// Rule 1: price within [min, max] inclusive
	if *l.Price < e.policy.MinPrice || *l.Price > e.policy.MaxPrice {
		return reject(ReasonPrice, "price %d outside [%d, %d]", *l.Price, e.policy.MinPrice, e.policy.MaxPrice)
	}

	// Rule 2: model year floor
	if *l.Year < e.policy.MinYear {
		return reject(ReasonYear, "year %d below minimum %d", *l.Year, e.policy.MinYear)
	}

	// Rule 3: mileage ceiling = age * per-year ceiling. Age 0 yields a
	// ceiling of 0, which rejects brand-new vehicles with any mileage.
	// That is the literal policy, kept on purpose (see DESIGN.md).
	age := models.AgeInYears(*l.Year, e.currentYear)
	ceiling := age * e.policy.MileageCeilingPerYear
	if *l.Mileage > ceiling {
		return reject(ReasonMileage, "mileage %d over ceiling %d (age %d)", *l.Mileage, ceiling, age)
	}

	// Rule 4: title status
	if *l.TitleStatus != e.policy.RequiredTitleStatus {
		return reject(ReasonTitle, "title status %q, required %q", *l.TitleStatus, e.policy.RequiredTitleStatus)
	}

	// Rule 5: accidents
	if *l.AccidentCount > e.policy.MaxAccidents {
		return reject(ReasonAccidents, "%d accidents reported", *l.AccidentCount)
	}

	// Rule 6: owners
	if *l.OwnerCount > e.policy.MaxOwners {
		return reject(ReasonOwners, "%d owners, maximum %d", *l.OwnerCount, e.policy.MaxOwners)
	}

	// Rule 7: usage flags
	if e.policy.ExcludeRental && l.IsRental != nil && *l.IsRental {
		return reject(ReasonUsageFlags, "former rental vehicle")
	}
	if e.policy.ExcludeFleet && l.IsFleet != nil && *l.IsFleet {
		return reject(ReasonUsageFlags, "former fleet vehicle")
	}
	if e.policy.ExcludeLien && l.HasLien != nil && *l.HasLien {
		return reject(ReasonUsageFlags, "lien on title")
	}
	if e.policy.ExcludeFloodDamage && l.FloodDamage != nil && *l.FloodDamage {
		return reject(ReasonUsageFlags, "flood damage reported")
	}

	return Verdict{Accepted: true}
}

// EvaluateHistory re-applies rules 4-7 against a history provider's report
// instead of the listing's self-reported fields.
func (e *Engine) EvaluateHistory(report HistoryFields) Verdict {
	if report.TitleStatus != e.policy.RequiredTitleStatus {
		return reject(ReasonTitle, "history title status %q, required %q", report.TitleStatus, e.policy.RequiredTitleStatus)
	}
	if report.AccidentCount > e.policy.MaxAccidents {
		return reject(ReasonAccidents, "history reports %d accidents", report.AccidentCount)
	}
	if report.OwnerCount > e.policy.MaxOwners {
		return reject(ReasonOwners, "history reports %d owners, maximum %d", report.OwnerCount, e.policy.MaxOwners)
	}
	if e.policy.ExcludeRental && report.IsRental {
		return reject(ReasonUsageFlags, "history reports rental use")
	}
	if e.policy.ExcludeFleet && report.IsFleet {
		return reject(ReasonUsageFlags, "history reports fleet use")
	}
	if e.policy.ExcludeLien && report.HasLien {
		return reject(ReasonUsageFlags, "history reports a lien")
	}
	if e.policy.ExcludeFloodDamage && report.FloodDamage {
		return reject(ReasonUsageFlags, "history reports flood damage")
	}
	return Verdict{Accepted: true}
}

// HistoryFields is the subset of a VIN history report the hard filter
// re-checks. Kept local so screening has no dependency on the adapter.
type HistoryFields struct {
	TitleStatus   string
	AccidentCount int
	OwnerCount    int
	IsRental      bool
	IsFleet       bool
	HasLien       bool
	FloodDamage   bool
}

// missingField returns the name of the first required field the provider
// did not supply, or "" when the listing is complete enough to evaluate.
func missingField(l *models.RawListing) string {
	switch {
	case l.VIN == "":
		return "vin"
	case l.Price == nil:
		return "price"
	case l.Year == nil:
		return "year"
	case l.Mileage == nil:
		return "mileage"
	case l.TitleStatus == nil:
		return "title_status"
	case l.AccidentCount == nil:
		return "accident_count"
	case l.OwnerCount == nil:
		return "owner_count"
	}
	return ""
}
