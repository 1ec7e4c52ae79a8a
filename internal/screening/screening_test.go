package screening

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-curation-portal/internal/models"
)

const testYear = 2026

func intp(v int) *int { return &v }

func strp(v string) *string { return &v }

func boolp(v bool) *bool { return &v }

// completeListing returns a listing that passes every default rule.
func completeListing() *models.RawListing {
	return &models.RawListing{
		VIN:           "1HGBH41JXMN109186",
		Make:          "Honda",
		Model:         "CR-V",
		Year:          intp(2020),
		Price:         intp(18000),
		Mileage:       intp(60000),
		TitleStatus:   strp(models.TitleStatusClean),
		AccidentCount: intp(0),
		OwnerCount:    intp(1),
		IsRental:      boolp(false),
		IsFleet:       boolp(false),
		HasLien:       boolp(false),
		FloodDamage:   boolp(false),
	}
}

func TestEvaluateAcceptsCompleteListing(t *testing.T) {
	e := NewEngine(DefaultPolicy(), testYear)
	v := e.Evaluate(completeListing())
	require.True(t, v.Accepted, "detail: %s", v.Detail)
	assert.Equal(t, ReasonNone, v.Reason)
}

func TestEvaluateRejectReasons(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.RawListing)
		reason RejectReason
	}{
		{"price below minimum", func(l *models.RawListing) { l.Price = intp(2000) }, ReasonPrice},
		{"price above maximum", func(l *models.RawListing) { l.Price = intp(26000) }, ReasonPrice},
		{"year below floor", func(l *models.RawListing) { l.Year = intp(2010) }, ReasonYear},
		{"mileage over ceiling", func(l *models.RawListing) { l.Mileage = intp(130000) }, ReasonMileage},
		{"salvage title", func(l *models.RawListing) { l.TitleStatus = strp(models.TitleStatusOther) }, ReasonTitle},
		{"single accident", func(l *models.RawListing) { l.AccidentCount = intp(1) }, ReasonAccidents},
		{"three owners", func(l *models.RawListing) { l.OwnerCount = intp(3) }, ReasonOwners},
		{"rental", func(l *models.RawListing) { l.IsRental = boolp(true) }, ReasonUsageFlags},
		{"fleet", func(l *models.RawListing) { l.IsFleet = boolp(true) }, ReasonUsageFlags},
		{"lien", func(l *models.RawListing) { l.HasLien = boolp(true) }, ReasonUsageFlags},
		{"flood damage", func(l *models.RawListing) { l.FloodDamage = boolp(true) }, ReasonUsageFlags},
	}

	e := NewEngine(DefaultPolicy(), testYear)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := completeListing()
			tc.mutate(l)
			v := e.Evaluate(l)
			require.False(t, v.Accepted)
			assert.Equal(t, tc.reason, v.Reason)
			assert.NotEmpty(t, v.Detail)
		})
	}
}

func TestEvaluateAnyAccidentRejects(t *testing.T) {
	// Accidents reject regardless of how good every other field looks.
	e := NewEngine(DefaultPolicy(), testYear)
	for _, accidents := range []int{1, 2, 5} {
		l := completeListing()
		l.AccidentCount = intp(accidents)
		l.Price = intp(10000)
		l.Mileage = intp(15000)
		v := e.Evaluate(l)
		require.False(t, v.Accepted, "accidents=%d", accidents)
		assert.Equal(t, ReasonAccidents, v.Reason)
	}
}

func TestEvaluateMileageBoundaryInclusive(t *testing.T) {
	e := NewEngine(DefaultPolicy(), testYear)

	// Age 6 -> ceiling 120,000. Exactly at the boundary is accepted.
	l := completeListing()
	l.Year = intp(2020)
	l.Mileage = intp(120000)
	assert.True(t, e.Evaluate(l).Accepted)

	// One mile over rejects.
	l.Mileage = intp(120001)
	v := e.Evaluate(l)
	require.False(t, v.Accepted)
	assert.Equal(t, ReasonMileage, v.Reason)
}

func TestEvaluateBrandNewVehicleAlwaysRejects(t *testing.T) {
	// Age 0 yields ceiling 0: a same-year vehicle with any mileage fails
	// rule 3. Intentional policy consequence.
	policy := DefaultPolicy()
	policy.MinYear = 2012
	e := NewEngine(policy, testYear)

	l := completeListing()
	l.Year = intp(testYear)
	l.Mileage = intp(1)
	v := e.Evaluate(l)
	require.False(t, v.Accepted)
	assert.Equal(t, ReasonMileage, v.Reason)

	// Zero miles still squeaks through the <= ceiling check.
	l.Mileage = intp(0)
	assert.True(t, e.Evaluate(l).Accepted)
}

func TestEvaluateMissingDataRejectsFirst(t *testing.T) {
	e := NewEngine(DefaultPolicy(), testYear)
	cases := []struct {
		name   string
		mutate func(*models.RawListing)
	}{
		{"no vin", func(l *models.RawListing) { l.VIN = "" }},
		{"no price", func(l *models.RawListing) { l.Price = nil }},
		{"no year", func(l *models.RawListing) { l.Year = nil }},
		{"no mileage", func(l *models.RawListing) { l.Mileage = nil }},
		{"no title status", func(l *models.RawListing) { l.TitleStatus = nil }},
		{"no accident count", func(l *models.RawListing) { l.AccidentCount = nil }},
		{"no owner count", func(l *models.RawListing) { l.OwnerCount = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := completeListing()
			tc.mutate(l)
			v := e.Evaluate(l)
			require.False(t, v.Accepted)
			assert.Equal(t, ReasonMissingData, v.Reason)
		})
	}
}

func TestEvaluateMissingUsageFlagsAreNotFatal(t *testing.T) {
	// Usage flags are optional; a provider that omits them gets the safe
	// "not flagged" default rather than a missing_data reject.
	e := NewEngine(DefaultPolicy(), testYear)
	l := completeListing()
	l.IsRental, l.IsFleet, l.HasLien, l.FloodDamage = nil, nil, nil, nil
	assert.True(t, e.Evaluate(l).Accepted)
}

func TestEvaluateRuleOrderIsFixed(t *testing.T) {
	// A listing failing both price and accidents reports price: rule 1
	// runs before rule 5.
	e := NewEngine(DefaultPolicy(), testYear)
	l := completeListing()
	l.Price = intp(100)
	l.AccidentCount = intp(3)
	v := e.Evaluate(l)
	require.False(t, v.Accepted)
	assert.Equal(t, ReasonPrice, v.Reason)
}

func TestEvaluateHistoryMirrorsRules(t *testing.T) {
	e := NewEngine(DefaultPolicy(), testYear)

	clean := HistoryFields{TitleStatus: models.TitleStatusClean, AccidentCount: 0, OwnerCount: 1}
	assert.True(t, e.EvaluateHistory(clean).Accepted)

	cases := []struct {
		name   string
		report HistoryFields
		reason RejectReason
	}{
		{"branded title", HistoryFields{TitleStatus: "salvage", OwnerCount: 1}, ReasonTitle},
		{"accident on record", HistoryFields{TitleStatus: models.TitleStatusClean, AccidentCount: 2, OwnerCount: 1}, ReasonAccidents},
		{"owner churn", HistoryFields{TitleStatus: models.TitleStatusClean, OwnerCount: 4}, ReasonOwners},
		{"rental history", HistoryFields{TitleStatus: models.TitleStatusClean, OwnerCount: 1, IsRental: true}, ReasonUsageFlags},
		{"flood history", HistoryFields{TitleStatus: models.TitleStatusClean, OwnerCount: 1, FloodDamage: true}, ReasonUsageFlags},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := e.EvaluateHistory(tc.report)
			require.False(t, v.Accepted)
			assert.Equal(t, tc.reason, v.Reason)
		})
	}
}

func TestEvaluateWithAlternatePolicy(t *testing.T) {
	// Policies are injected, not global: a lenient policy accepts what the
	// default rejects.
	policy := DefaultPolicy()
	policy.MaxPrice = 50000
	policy.MaxOwners = 5
	e := NewEngine(policy, testYear)

	l := completeListing()
	l.Price = intp(45000)
	l.OwnerCount = intp(4)
	assert.True(t, e.Evaluate(l).Accepted)
}
