package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"vehicle-curation-portal/internal/models"
)

// FileSource reads raw listings from a JSON file: either a bare array or
// an object with a "listings" key. Used for exported feeds and as the
// fixture source in development.
type FileSource struct {
	path string
	name string
}

// NewFileSource creates a source reading from the given path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path, name: "file"}
}

func (s *FileSource) Name() string {
	return s.name
}

type fileFeed struct {
	Listings []models.RawListing `json:"listings"`
}

// Fetch parses the feed file and applies the criteria locally.
func (s *FileSource) Fetch(ctx context.Context, criteria Criteria) ([]models.RawListing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	var listings []models.RawListing
	if err := json.Unmarshal(data, &listings); err != nil {
		var feed fileFeed
		if err2 := json.Unmarshal(data, &feed); err2 != nil {
			return nil, fmt.Errorf("parse feed %s: %w", s.path, err)
		}
		listings = feed.Listings
	}

	matched := make([]models.RawListing, 0, len(listings))
	for i := range listings {
		l := listings[i]
		if l.Source == "" {
			l.Source = s.name
		}
		if !criteriaMatch(&l, criteria) {
			continue
		}
		matched = append(matched, l)
		if criteria.MaxResults > 0 && len(matched) >= criteria.MaxResults {
			break
		}
	}

	log.Printf("FileSource: %d of %d listings from %s match criteria", len(matched), len(listings), s.path)
	return matched, nil
}

// criteriaMatch applies the criteria a remote source would have applied
// server side. Listings missing a constrained field are passed through so
// screening can reject them with an explicit missing_data reason.
func criteriaMatch(l *models.RawListing, c Criteria) bool {
	if len(c.Makes) > 0 {
		found := false
		for _, m := range c.Makes {
			if strings.EqualFold(m, l.Make) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if l.Price != nil {
		if c.PriceMin > 0 && *l.Price < c.PriceMin {
			return false
		}
		if c.PriceMax > 0 && *l.Price > c.PriceMax {
			return false
		}
	}
	if c.YearMin > 0 && l.Year != nil && *l.Year < c.YearMin {
		return false
	}
	return true
}
