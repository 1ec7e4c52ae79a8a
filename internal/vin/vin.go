// Package vin wraps the external VIN decode and vehicle history services
// behind small interfaces the pipeline consumes. The HTTP client in this
// package is rate limited so a large run cannot hammer the upstream APIs.
package vin

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrInvalidVIN means the VIN failed the syntax check and was never
	// sent upstream.
	ErrInvalidVIN = errors.New("invalid vin")
	// ErrNotFound means the upstream service has no record for the VIN.
	ErrNotFound = errors.New("vin not found")
)

// Decoder resolves a VIN to the vehicle attributes encoded in it.
type Decoder interface {
	Decode(ctx context.Context, vin string) (*DecodeResult, error)
}

// HistoryProvider returns the title and usage history for a VIN.
type HistoryProvider interface {
	History(ctx context.Context, vin string) (*HistoryReport, error)
}

// DecodeResult is the decoded identity of a vehicle. Raw preserves the
// upstream response body for storage alongside the record.
type DecodeResult struct {
	VIN       string          `json:"vin"`
	Make      string          `json:"make"`
	Model     string          `json:"model"`
	ModelYear int             `json:"model_year"`
	BodyType  string          `json:"body_type,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

// HistoryReport is the title and ownership history for a VIN. Raw preserves
// the upstream response body.
type HistoryReport struct {
	VIN           string          `json:"vin"`
	TitleStatus   string          `json:"title_status"`
	AccidentCount int             `json:"accident_count"`
	OwnerCount    int             `json:"owner_count"`
	IsRental      bool            `json:"is_rental"`
	IsFleet       bool            `json:"is_fleet"`
	HasLien       bool            `json:"has_lien"`
	FloodDamage   bool            `json:"flood_damage"`
	Raw           json.RawMessage `json:"-"`
}

// Normalize uppercases and trims a VIN for comparison and storage.
func Normalize(vin string) string {
	return strings.ToUpper(strings.TrimSpace(vin))
}

// Valid reports whether a VIN passes the syntax check: exactly 17
// characters, digits and uppercase letters only, with I, O and Q excluded
// per the standard alphabet. Input is normalized first.
func Valid(vin string) bool {
	v := Normalize(vin)
	if len(v) != 17 {
		return false
	}
	for _, c := range v {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'A' && c <= 'Z':
			if c == 'I' || c == 'O' || c == 'Q' {
				return false
			}
		default:
			return false
		}
	}
	return true
}
