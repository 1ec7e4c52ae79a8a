package scoring

import "vehicle-curation-portal/internal/models"

// Mileage classification thresholds
const (
	// ExcellentMileageFlat: below this, a vehicle is excellent no matter
	// its age. Checked before the age-relative thresholds.
	ExcellentMileageFlat = 100000
	// GoodMileagePerYear is the age-relative "good" ceiling
	GoodMileagePerYear = 15000
)

// ClassifyMileage derives the age-normalized mileage rating.
// Precedence: the flat excellent threshold wins over the age-relative
// thresholds, so a low-mileage vehicle is excellent even when its
// age-adjusted threshold would only call it good. Vehicles with
// non-positive age cannot be rated relative to age.
func ClassifyMileage(mileage, modelYear, currentYear int) models.MileageRating {
	if mileage < ExcellentMileageFlat {
		return models.MileageExcellent
	}

	age := currentYear - modelYear
	if age <= 0 {
		return models.MileageUnrated
	}

	if mileage <= age*GoodMileagePerYear {
		return models.MileageGood
	}

	// Above the good threshold. Anything that survived the hard filter's
	// 20k/year ceiling lands here.
	return models.MileageAcceptable
}
