package query

import (
	"fmt"
	"sort"

	"vehicle-curation-portal/internal/models"
)

// Sort field names accepted by the Sort service
const (
	SortByPrice          = "price"
	SortByMileage        = "mileage"
	SortByYear           = "year"
	SortByMileagePerYear = "mileage_per_year"
	SortByPriorityScore  = "priority_score"
	SortByFirstSeenAt    = "first_seen_at"
	SortByQualityTier    = "quality_tier"
)

// Sort returns a new ordering of the records by the given field. The sort
// is stable: equal keys keep their relative input order. An unrecognized
// field is an error, never a silent fallback ordering.
func Sort(records []models.Vehicle, field string, desc bool) ([]models.Vehicle, error) {
	less, err := lessFunc(field, desc)
	if err != nil {
		return nil, err
	}

	sorted := make([]models.Vehicle, len(records))
	copy(sorted, records)

	sort.SliceStable(sorted, func(i, j int) bool {
		return less(&sorted[i], &sorted[j])
	})

	return sorted, nil
}

func lessFunc(field string, desc bool) (func(a, b *models.Vehicle) bool, error) {
	var less func(a, b *models.Vehicle) bool
	switch field {
	case SortByPrice:
		less = func(a, b *models.Vehicle) bool { return a.Price < b.Price }
	case SortByMileage:
		less = func(a, b *models.Vehicle) bool { return a.Mileage < b.Mileage }
	case SortByYear:
		less = func(a, b *models.Vehicle) bool { return a.Year < b.Year }
	case SortByMileagePerYear:
		less = func(a, b *models.Vehicle) bool { return a.MileagePerYear < b.MileagePerYear }
	case SortByPriorityScore:
		less = func(a, b *models.Vehicle) bool { return a.PriorityScore < b.PriorityScore }
	case SortByFirstSeenAt:
		less = func(a, b *models.Vehicle) bool { return a.FirstSeenAt.Before(b.FirstSeenAt) }
	case SortByQualityTier:
		// Tier rank is the primary key and follows the requested direction.
		// Priority score is a fixed descending secondary key: the best
		// candidates lead inside a tier no matter which way the tiers run.
		return func(a, b *models.Vehicle) bool {
			ra, rb := models.TierRank(a.QualityTier()), models.TierRank(b.QualityTier())
			if ra != rb {
				if desc {
					return ra > rb
				}
				return ra < rb
			}
			return a.PriorityScore > b.PriorityScore
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSortField, field)
	}

	if desc {
		asc := less
		less = func(a, b *models.Vehicle) bool { return asc(b, a) }
	}
	return less, nil
}
