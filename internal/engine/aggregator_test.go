package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesdash/internal/models"
)

func TestAggregate(t *testing.T) {
	// 1. Setup Mock Data (ColumnStore)
	// Scenario:
	// Row 0: North, Electronics, Rev 100, Jan
	// Row 1: North, Clothing,    Rev 200, Feb
	// Row 2: South, Electronics, Rev 50,  Jan
	store := &ColumnStore{
		Sales:     []int64{10, 20, 5},
		Revenues:  []int64{100, 200, 50},
		Profits:   []int64{30, 60, 15},
		Orders:    []int64{2, 4, 1},
		Customers: []int64{1, 3, 1},
		Months:    []int8{1, 2, 1},

		RegionIDs:   []int32{0, 0, 1}, // 0=North, 1=South
		CategoryIDs: []int32{0, 1, 0}, // 0=Electronics, 1=Clothing

		RegionDict:   []string{"North", "South"},
		CategoryDict: []string{"Electronics", "Clothing"},
	}

	// 2. Run Aggregation
	data := store.Aggregate()

	// 3. Assertions

	// A. Regions: North 300 ranks above South 50
	require.Len(t, data.TopRegions, 2)
	top := data.TopRegions[0]
	assert.Equal(t, "North", top.Name)
	assert.Equal(t, int64(300), top.Revenue)
	assert.Equal(t, int64(30), top.Sales)
	assert.Equal(t, 2, top.Records)

	// B. Categories: Clothing 200 vs Electronics 150
	require.Len(t, data.TopCategories, 2)
	assert.Equal(t, "Clothing", data.TopCategories[0].Name)
	assert.Equal(t, int64(150), data.TopCategories[1].Revenue)

	// C. Months in calendar order
	require.Len(t, data.MonthlySales, 2)
	jan := data.MonthlySales[0]
	assert.Equal(t, models.Month(1), jan.Month)
	assert.Equal(t, int64(15), jan.Sales)
	assert.Equal(t, int64(150), jan.Revenue)
	assert.Equal(t, int64(45), jan.Profit)
	assert.Equal(t, int64(3), jan.Orders)
	assert.Equal(t, int64(2), jan.Customers)
	assert.Equal(t, models.Month(2), data.MonthlySales[1].Month)

	// D. Matrix: only populated cells, ranked by revenue
	assert.Equal(t, []models.MatrixCell{
		{Region: "North", Category: "Clothing", Revenue: 200, Sales: 20, Records: 1},
		{Region: "North", Category: "Electronics", Revenue: 100, Sales: 10, Records: 1},
		{Region: "South", Category: "Electronics", Revenue: 50, Sales: 5, Records: 1},
	}, data.Matrix)
}

func TestAggregateMatchesSequentialRollup(t *testing.T) {
	gen := NewGenerator(DefaultCatalog(), FixedJitter(1.05))
	records, err := gen.Generate(2023)
	require.NoError(t, err)

	store := NewColumnStore(records)
	require.Equal(t, len(records), store.Len())
	assert.Equal(t, []string{"North", "South", "East", "West"}, store.RegionDict)

	data := store.Aggregate()
	assert.Equal(t, MonthlySeries(records), data.MonthlySales)

	var total int64
	for _, r := range data.TopRegions {
		total += r.Revenue
		assert.Equal(t, 12*4, r.Records)
	}
	s, ok := Summarize(records, 2023)
	require.True(t, ok)
	assert.Equal(t, s.TotalRevenue, total)
}

func TestAggregateEmpty(t *testing.T) {
	data := NewColumnStore(nil).Aggregate()
	assert.Empty(t, data.MonthlySales)
	assert.Empty(t, data.TopRegions)
	assert.Empty(t, data.TopCategories)
	assert.NotNil(t, data.Matrix)
	assert.Empty(t, data.Matrix)
}

func TestBuildDashboard(t *testing.T) {
	gen := NewGenerator(DefaultCatalog(), FixedJitter(1))
	cur, err := gen.Generate(2023)
	require.NoError(t, err)
	prev, err := gen.Generate(2022)
	require.NoError(t, err)

	d := BuildDashboard(2023, cur, prev)
	assert.Equal(t, 2023, d.Year)
	require.Len(t, d.MonthlySales, 12)
	assert.Len(t, d.TopRegions, 4)
	assert.Len(t, d.TopCategories, 4)
	require.Len(t, d.Matrix, 16)
	for _, cell := range d.Matrix {
		assert.Equal(t, 12, cell.Records)
	}
	assert.GreaterOrEqual(t, d.Matrix[0].Revenue, d.Matrix[15].Revenue)
	assert.Equal(t, KPIs(MonthlySeries(cur), MonthlySeries(prev)), d.KPI)

	noPrev := BuildDashboard(2023, cur, nil)
	assert.Zero(t, noPrev.KPI.SalesGrowth)
	assert.Equal(t, d.KPI.TotalSales, noPrev.KPI.TotalSales)
}
