package query

import (
	"strconv"
	"strings"

	"vehicle-curation-portal/internal/models"
)

// Filter returns the subset of records matching ALL specified predicates.
// A query with no criteria returns the input unchanged.
func Filter(records []models.Vehicle, q Query) []models.Vehicle {
	result := make([]models.Vehicle, 0, len(records))
	for _, v := range records {
		if matches(&v, q) {
			result = append(result, v)
		}
	}
	return result
}

func matches(v *models.Vehicle, q Query) bool {
	if len(q.Makes) > 0 && !containsFold(q.Makes, v.Make) {
		return false
	}
	if len(q.Models) > 0 && !containsFold(q.Models, v.Model) {
		return false
	}
	if q.PriceMin != nil && v.Price < *q.PriceMin {
		return false
	}
	if q.PriceMax != nil && v.Price > *q.PriceMax {
		return false
	}
	if q.MileageMax != nil && v.Mileage > *q.MileageMax {
		return false
	}
	if q.YearMin != nil && v.Year < *q.YearMin {
		return false
	}
	if q.YearMax != nil && v.Year > *q.YearMax {
		return false
	}
	if len(q.Tiers) > 0 && !tierSelected(q.Tiers, v.QualityTier()) {
		return false
	}
	if q.SearchText != "" && !matchesText(v, q.SearchText) {
		return false
	}
	return true
}

// matchesText is a case-insensitive substring OR-match against VIN, make,
// model, and the stringified year.
func matchesText(v *models.Vehicle, text string) bool {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return true
	}
	for _, field := range []string{v.VIN, v.Make, v.Model, strconv.Itoa(v.Year)} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}

func tierSelected(tiers []models.QualityTier, tier models.QualityTier) bool {
	for _, t := range tiers {
		if t == tier {
			return true
		}
	}
	return false
}
