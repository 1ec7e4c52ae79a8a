package models

import (
	"strings"
	"time"
)

type Vehicle struct {
	// 基本情報
	VIN      string `gorm:"type:varchar(17);primaryKey" json:"vin"`
	Make     string `gorm:"type:varchar(50);not null;index" json:"make"`
	Model    string `gorm:"type:varchar(100);not null" json:"model"`
	Year     int    `gorm:"type:int;not null;index" json:"year"`
	BodyType string `gorm:"type:varchar(50)" json:"body_type,omitempty"`

	// フィルタ用属性
	Price         int    `gorm:"type:int;not null;index" json:"price"`
	Mileage       int    `gorm:"type:int;not null;index" json:"mileage"`
	TitleStatus   string `gorm:"type:varchar(20);not null" json:"title_status"`
	AccidentCount int    `gorm:"type:int;not null;default:0" json:"accident_count"`
	OwnerCount    int    `gorm:"type:int;not null;default:1" json:"owner_count"`
	IsRental      bool   `gorm:"not null;default:false" json:"is_rental"`
	IsFleet       bool   `gorm:"not null;default:false" json:"is_fleet"`
	HasLien       bool   `gorm:"not null;default:false" json:"has_lien"`
	FloodDamage   bool   `gorm:"not null;default:false" json:"flood_damage"`

	// 所在地
	StateOfOrigin string `gorm:"type:varchar(2)" json:"state_of_origin,omitempty"`
	Location      string `gorm:"type:varchar(100)" json:"location,omitempty"`
	DistanceMiles *int   `gorm:"type:int" json:"distance_miles,omitempty"`

	// 派生フィールド（パイプラインで計算）
	AgeYears       int           `gorm:"type:int;not null" json:"age_years"`
	MileagePerYear int           `gorm:"type:int;not null" json:"mileage_per_year"`
	MileageRating  MileageRating `gorm:"type:varchar(20);not null;default:'unrated'" json:"mileage_rating"`
	PriorityScore  int           `gorm:"type:int;not null;index" json:"priority_score"`
	RustBelt       bool          `gorm:"not null;default:false" json:"rust_belt"`
	RustConcern    bool          `gorm:"not null;default:false" json:"rust_concern"`

	// 出典
	Source          string `gorm:"type:varchar(50);index:idx_source_listing" json:"source,omitempty"`
	SourceURL       string `gorm:"type:text" json:"source_url,omitempty"`
	SourceListingID string `gorm:"type:varchar(255);index:idx_source_listing" json:"source_listing_id,omitempty"`

	// 外部APIの生データ（opaque blobs）
	DecodePayload  string `gorm:"type:text" json:"decode_payload,omitempty"`
	HistoryPayload string `gorm:"type:text" json:"history_payload,omitempty"`

	// ユーザーレビュー
	Reviewed   bool   `gorm:"not null;default:false" json:"reviewed"`
	UserRating *int   `gorm:"type:int" json:"user_rating,omitempty"`
	Notes      string `gorm:"type:text" json:"notes,omitempty"`

	// タイムスタンプ
	FirstSeenAt   time.Time `gorm:"type:datetime;not null" json:"first_seen_at"`
	LastSeenAt    time.Time `gorm:"type:datetime;not null;index" json:"last_seen_at"`
	LastUpdatedAt time.Time `gorm:"type:datetime;not null;autoUpdateTime" json:"last_updated_at"`
	CreatedAt     time.Time `gorm:"type:datetime;not null;autoCreateTime;index:idx_created_at,sort:desc" json:"created_at"`
}

// TableName はテーブル名を明示的に指定
func (Vehicle) TableName() string {
	return "vehicles"
}

// TitleStatus values
const (
	TitleStatusClean = "clean"
	TitleStatusOther = "other"
)

// MileageRating is the age-normalized mileage classification
type MileageRating string

const (
	MileageExcellent  MileageRating = "excellent"
	MileageGood       MileageRating = "good"
	MileageAcceptable MileageRating = "acceptable"
	MileageUnrated    MileageRating = "unrated"
)

// QualityTier bands the priority score for dashboard display
type QualityTier string

const (
	TierTopPick QualityTier = "top_pick"
	TierGoodBuy QualityTier = "good_buy"
	TierCaution QualityTier = "caution"
)

// Tier score boundaries: lower bound inclusive, upper bound exclusive
const (
	TopPickMinScore = 80
	GoodBuyMinScore = 65
)

// TierForScore maps a priority score to its quality tier
func TierForScore(score int) QualityTier {
	switch {
	case score >= TopPickMinScore:
		return TierTopPick
	case score >= GoodBuyMinScore:
		return TierGoodBuy
	default:
		return TierCaution
	}
}

// TierRank returns the sort rank of a tier (lower = better)
func TierRank(tier QualityTier) int {
	switch tier {
	case TierTopPick:
		return 0
	case TierGoodBuy:
		return 1
	default:
		return 2
	}
}

// QualityTier returns the vehicle's tier derived from its priority score
func (v *Vehicle) QualityTier() QualityTier {
	return TierForScore(v.PriorityScore)
}

// AgeInYears computes vehicle age from model year, clamped to 0 for
// same-year or future-dated listings
func AgeInYears(modelYear, currentYear int) int {
	age := currentYear - modelYear
	if age < 0 {
		return 0
	}
	return age
}

// MileagePerYear computes annualized mileage. Divisor is clamped to 1 so
// same-year vehicles don't divide by zero. Rounded to nearest integer.
func MileagePerYear(mileage, ageYears int) int {
	divisor := ageYears
	if divisor < 1 {
		divisor = 1
	}
	return (mileage + divisor/2) / divisor
}

// rustBeltStates are states where road salt makes undercarriage rust a
// realistic concern on older vehicles
var rustBeltStates = map[string]bool{
	"OH": true, "MI": true, "IN": true, "IL": true, "WI": true,
	"MN": true, "PA": true, "NY": true, "WV": true, "IA": true,
}

// IsRustBeltState reports whether a two-letter state code is in the rust belt
func IsRustBeltState(state string) bool {
	return rustBeltStates[strings.ToUpper(state)]
}

// RustConcernAgeYears is the age at which rust-belt origin becomes a concern
const RustConcernAgeYears = 6

// ContentEquals compares the listing-derived fields of two vehicles.
// Timestamps, review state, and derived fields are excluded so a re-fetch
// of an unchanged listing is detected as a duplicate rather than an update.
func (v *Vehicle) ContentEquals(other *Vehicle) bool {
	if other == nil {
		return false
	}
	return v.VIN == other.VIN &&
		v.Make == other.Make &&
		v.Model == other.Model &&
		v.Year == other.Year &&
		v.BodyType == other.BodyType &&
		v.Price == other.Price &&
		v.Mileage == other.Mileage &&
		v.TitleStatus == other.TitleStatus &&
		v.AccidentCount == other.AccidentCount &&
		v.OwnerCount == other.OwnerCount &&
		v.IsRental == other.IsRental &&
		v.IsFleet == other.IsFleet &&
		v.HasLien == other.HasLien &&
		v.FloodDamage == other.FloodDamage &&
		v.StateOfOrigin == other.StateOfOrigin &&
		v.Location == other.Location &&
		intPtrEqual(v.DistanceMiles, other.DistanceMiles) &&
		v.Source == other.Source &&
		v.SourceURL == other.SourceURL &&
		v.SourceListingID == other.SourceListingID
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
