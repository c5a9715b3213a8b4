package engine

import (
	"slices"

	"salesdash/internal/models"
)

// Query returns the records matching q, ordered by calendar month.
// Nil filter fields match everything; a MinSales of 0 is a real threshold
// that keeps zero-sales rows.
func Query(records []models.SalesRecord, q models.SalesQuery) []models.SalesRecord {
	out := make([]models.SalesRecord, 0, len(records))
	for _, r := range records {
		if matches(r, q) {
			out = append(out, r)
		}
	}
	SortByMonth(out)
	return out
}

func matches(r models.SalesRecord, q models.SalesQuery) bool {
	if r.Year != q.Year {
		return false
	}
	if q.Region != nil && r.Region != *q.Region {
		return false
	}
	if q.Category != nil && r.ProductCategory != *q.Category {
		return false
	}
	if q.MinSales != nil && r.Sales < *q.MinSales {
		return false
	}
	return true
}

// SortByMonth orders records by calendar month index, keeping the relative
// order of records within the same month.
func SortByMonth(records []models.SalesRecord) {
	slices.SortStableFunc(records, func(a, b models.SalesRecord) int {
		return int(a.Month) - int(b.Month)
	})
}
