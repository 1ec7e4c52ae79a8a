package models

import "strings"

// RawListing is the provider-supplied shape of a listing before curation.
// Fields the hard filter depends on are pointers: a nil value means the
// provider did not supply the field, and screening rejects it explicitly
// instead of treating a zero value as real data.
type RawListing struct {
	VIN      string `json:"vin"`
	Make     string `json:"make"`
	Model    string `json:"model"`
	Year     *int   `json:"year,omitempty"`
	BodyType string `json:"body_type,omitempty"`

	Price         *int    `json:"price,omitempty"`
	Mileage       *int    `json:"mileage,omitempty"`
	TitleStatus   *string `json:"title_status,omitempty"`
	AccidentCount *int    `json:"accident_count,omitempty"`
	OwnerCount    *int    `json:"owner_count,omitempty"`
	IsRental      *bool   `json:"is_rental,omitempty"`
	IsFleet       *bool   `json:"is_fleet,omitempty"`
	HasLien       *bool   `json:"has_lien,omitempty"`
	FloodDamage   *bool   `json:"flood_damage,omitempty"`

	StateOfOrigin string `json:"state_of_origin,omitempty"`
	Location      string `json:"location,omitempty"`
	DistanceMiles *int   `json:"distance_miles,omitempty"`

	Source          string `json:"source,omitempty"`
	SourceURL       string `json:"source_url,omitempty"`
	SourceListingID string `json:"source_listing_id,omitempty"`
}

// boolValue treats a missing flag as false. Screening only requires the
// numeric/enum fields; usage flags default to the safe "not flagged" state.
func boolValue(b *bool) bool {
	return b != nil && *b
}

// ToVehicle converts a listing that already passed the hard filter into a
// curated Vehicle. Derived fields (score, rating, rust flags) are attached
// later by the pipeline.
func (l *RawListing) ToVehicle(currentYear int) Vehicle {
	age := AgeInYears(*l.Year, currentYear)
	return Vehicle{
		VIN:             strings.ToUpper(strings.TrimSpace(l.VIN)),
		Make:            l.Make,
		Model:           l.Model,
		Year:            *l.Year,
		BodyType:        l.BodyType,
		Price:           *l.Price,
		Mileage:         *l.Mileage,
		TitleStatus:     *l.TitleStatus,
		AccidentCount:   *l.AccidentCount,
		OwnerCount:      *l.OwnerCount,
		IsRental:        boolValue(l.IsRental),
		IsFleet:         boolValue(l.IsFleet),
		HasLien:         boolValue(l.HasLien),
		FloodDamage:     boolValue(l.FloodDamage),
		StateOfOrigin:   strings.ToUpper(l.StateOfOrigin),
		Location:        l.Location,
		DistanceMiles:   l.DistanceMiles,
		AgeYears:        age,
		MileagePerYear:  MileagePerYear(*l.Mileage, age),
		RustBelt:        IsRustBeltState(l.StateOfOrigin),
		RustConcern:     IsRustBeltState(l.StateOfOrigin) && age >= RustConcernAgeYears,
		Source:          l.Source,
		SourceURL:       l.SourceURL,
		SourceListingID: l.SourceListingID,
	}
}
