package engine

import (
	"fmt"
	"slices"

	"salesdash/internal/models"
)

// BaseRow is one canonical monthly row of the mock table before regional expansion.
type BaseRow struct {
	Month     models.Month
	Sales     int64
	Orders    int64
	Revenue   int64
	Profit    int64
	Customers int64
}

// Catalog holds the fixed enumerations and the base table the generator expands.
type Catalog struct {
	Regions    []models.Region
	Categories []models.Category
	Base       map[int][]BaseRow
}

var (
	DefaultRegions    = []models.Region{"North", "South", "East", "West"}
	DefaultCategories = []models.Category{"Electronics", "Clothing", "Home & Garden", "Sports"}
)

func DefaultCatalog() *Catalog {
	return &Catalog{
		Regions:    slices.Clone(DefaultRegions),
		Categories: slices.Clone(DefaultCategories),
		Base:       defaultBaseTable(),
	}
}

func defaultBaseTable() map[int][]BaseRow {
	return map[int][]BaseRow{
		2022: {
			{1, 1200, 240, 120000, 40000, 180},
			{2, 1500, 280, 150000, 50000, 220},
			{3, 1800, 320, 180000, 60000, 250},
			{4, 2000, 350, 200000, 70000, 280},
			{5, 2200, 380, 220000, 75000, 310},
			{6, 2500, 400, 250000, 85000, 350},
			{7, 2800, 420, 280000, 90000, 380},
			{8, 3000, 450, 300000, 100000, 400},
			{9, 2800, 420, 280000, 95000, 380},
			{10, 3200, 480, 320000, 110000, 420},
			{11, 3500, 500, 350000, 120000, 450},
			{12, 4000, 600, 400000, 140000, 500},
		},
		2023: {
			{1, 1500, 300, 150000, 50000, 220},
			{2, 1800, 330, 180000, 60000, 250},
			{3, 2100, 360, 210000, 70000, 280},
			{4, 2300, 390, 230000, 75000, 310},
			{5, 2500, 420, 250000, 80000, 340},
			{6, 2800, 450, 280000, 90000, 380},
			{7, 3100, 480, 310000, 100000, 410},
			{8, 3300, 510, 330000, 110000, 440},
			{9, 3500, 540, 350000, 115000, 470},
			{10, 3800, 570, 380000, 125000, 500},
			{11, 4200, 630, 420000, 140000, 550},
			{12, 5000, 750, 500000, 170000, 650},
		},
		2024: {
			{1, 2000, 400, 200000, 70000, 300},
			{2, 2300, 430, 230000, 80000, 330},
			{3, 2600, 460, 260000, 90000, 360},
			{4, 2900, 490, 290000, 100000, 390},
			{5, 3200, 520, 320000, 110000, 420},
			{6, 3500, 550, 350000, 120000, 450},
		},
	}
}

// Years returns the supported years in ascending order.
func (c *Catalog) Years() []int {
	years := make([]int, 0, len(c.Base))
	for y := range c.Base {
		years = append(years, y)
	}
	slices.Sort(years)
	return years
}

func (c *Catalog) Supports(year int) bool {
	_, ok := c.Base[year]
	return ok
}

func (c *Catalog) BaseRows(year int) ([]BaseRow, error) {
	rows, ok := c.Base[year]
	if !ok {
		return nil, &UnsupportedYearError{Year: year, Supported: c.Years()}
	}
	return rows, nil
}

// Validate checks the catalog can be expanded into a full cross-product.
func (c *Catalog) Validate() error {
	if len(c.Regions) == 0 {
		return fmt.Errorf("catalog: no regions")
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("catalog: no categories")
	}
	if len(c.Base) == 0 {
		return fmt.Errorf("catalog: empty base table")
	}
	if dup := firstDuplicate(c.Regions); dup != "" {
		return fmt.Errorf("catalog: duplicate region %q", dup)
	}
	if dup := firstDuplicate(c.Categories); dup != "" {
		return fmt.Errorf("catalog: duplicate category %q", dup)
	}
	for year, rows := range c.Base {
		if len(rows) == 0 {
			return fmt.Errorf("catalog: year %d has no base rows", year)
		}
		seen := make(map[models.Month]bool, len(rows))
		for _, r := range rows {
			if !r.Month.Valid() {
				return fmt.Errorf("catalog: year %d has invalid month %d", year, int(r.Month))
			}
			if seen[r.Month] {
				return fmt.Errorf("catalog: year %d repeats month %s", year, r.Month)
			}
			seen[r.Month] = true
			if r.Sales < 0 || r.Orders < 0 || r.Revenue < 0 || r.Profit < 0 || r.Customers < 0 {
				return fmt.Errorf("catalog: year %d month %s has a negative measure", year, r.Month)
			}
		}
	}
	return nil
}

func firstDuplicate[T comparable](items []T) T {
	var zero T
	seen := make(map[T]bool, len(items))
	for _, it := range items {
		if seen[it] {
			return it
		}
		seen[it] = true
	}
	return zero
}
