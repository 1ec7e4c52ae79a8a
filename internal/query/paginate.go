package query

import "vehicle-curation-portal/internal/models"

// Paginate slices one 1-indexed page out of the collection. A page beyond
// the end returns an empty slice with metadata still reflecting the true
// totals. Non-positive page or page size is a validation error.
func Paginate(records []models.Vehicle, page, pageSize int) (*Result, error) {
	if page <= 0 {
		return nil, ErrInvalidPage
	}
	if pageSize <= 0 {
		return nil, ErrInvalidPageSize
	}

	total := len(records)
	totalPages := (total + pageSize - 1) / pageSize

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	items := make([]models.Vehicle, end-start)
	copy(items, records[start:end])

	return &Result{
		Items:      items,
		TotalItems: total,
		TotalPages: totalPages,
		Page:       page,
		PageSize:   pageSize,
		HasNext:    page*pageSize < total,
		HasPrev:    page > 1 && total > 0,
	}, nil
}
