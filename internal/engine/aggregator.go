package engine

import (
	"runtime"
	"sort"
	"sync"

	"salesdash/internal/models"
)

type aggStats struct {
	Rev     int64
	Sales   int64
	Records int
}

// Breakdown is the per-dimension and per-month rollup of a ColumnStore.
type Breakdown struct {
	MonthlySales  []models.MonthlyItem
	TopRegions    []models.TopItem
	TopCategories []models.TopItem

	// region x category cells with data, ranked by revenue
	Matrix []models.MatrixCell
}

// Aggregate folds the store in parallel chunks and merges the partial arrays.
// Regions and categories are ranked by revenue, months come out in calendar order.
func (cs *ColumnStore) Aggregate() *Breakdown {
	numRegs := len(cs.RegionDict)
	numCats := len(cs.CategoryDict)
	n := cs.Len()

	numWorkers := runtime.NumCPU()
	if numWorkers > n {
		numWorkers = max(n, 1)
	}
	chunkSize := n / numWorkers
	matrixSize := numRegs * numCats

	type partialAgg struct {
		regions    []aggStats
		categories []aggStats
		months     [13]models.MonthlyItem
		seen       [13]bool

		// Flattened [Region][Category] -> [Region * numCats + Category]
		matrix []aggStats
	}

	results := make(chan *partialAgg, numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if i == numWorkers-1 {
			end = n
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()

			p := &partialAgg{
				regions:    make([]aggStats, numRegs),
				categories: make([]aggStats, numCats),
				matrix:     make([]aggStats, matrixSize),
			}

			for j := s; j < e; j++ {
				rev := cs.Revenues[j]
				sales := cs.Sales[j]

				// A. Regions
				r := &p.regions[cs.RegionIDs[j]]
				r.Rev += rev
				r.Sales += sales
				r.Records++

				// B. Categories
				c := &p.categories[cs.CategoryIDs[j]]
				c.Rev += rev
				c.Sales += sales
				c.Records++

				// C. Region x category cell
				cell := &p.matrix[int(cs.RegionIDs[j])*numCats+int(cs.CategoryIDs[j])]
				cell.Rev += rev
				cell.Sales += sales
				cell.Records++

				// D. Month
				m := cs.Months[j]
				if m < 1 || m > 12 {
					continue
				}
				mi := &p.months[m]
				mi.Month = models.Month(m)
				mi.Sales += sales
				mi.Revenue += rev
				mi.Profit += cs.Profits[j]
				mi.Orders += cs.Orders[j]
				mi.Customers += cs.Customers[j]
				p.seen[m] = true
			}
			results <- p
		}(start, end)
	}

	go func() { wg.Wait(); close(results) }()

	// Merge Phase (Reducer)
	finalRegs := make([]aggStats, numRegs)
	finalCats := make([]aggStats, numCats)
	finalMatrix := make([]aggStats, matrixSize)
	var finalMonths [13]models.MonthlyItem
	var finalSeen [13]bool

	for p := range results {
		mergeStats(finalRegs, p.regions)
		mergeStats(finalCats, p.categories)
		mergeStats(finalMatrix, p.matrix)
		for m := 1; m <= 12; m++ {
			if !p.seen[m] {
				continue
			}
			fm := &finalMonths[m]
			fm.Month = models.Month(m)
			fm.Sales += p.months[m].Sales
			fm.Revenue += p.months[m].Revenue
			fm.Profit += p.months[m].Profit
			fm.Orders += p.months[m].Orders
			fm.Customers += p.months[m].Customers
			finalSeen[m] = true
		}
	}

	out := &Breakdown{
		MonthlySales:  make([]models.MonthlyItem, 0, 12),
		TopRegions:    rank(finalRegs, cs.RegionDict),
		TopCategories: rank(finalCats, cs.CategoryDict),
		Matrix:        make([]models.MatrixCell, 0),
	}
	for m := 1; m <= 12; m++ {
		if finalSeen[m] {
			out.MonthlySales = append(out.MonthlySales, finalMonths[m])
		}
	}

	// Unpack the matrix: index -> region, category
	for i, st := range finalMatrix {
		if st.Records == 0 {
			continue
		}
		out.Matrix = append(out.Matrix, models.MatrixCell{
			Region:   models.Region(cs.RegionDict[i/numCats]),
			Category: models.Category(cs.CategoryDict[i%numCats]),
			Revenue:  st.Rev,
			Sales:    st.Sales,
			Records:  st.Records,
		})
	}
	sort.SliceStable(out.Matrix, func(i, j int) bool { return out.Matrix[i].Revenue > out.Matrix[j].Revenue })
	return out
}

func mergeStats(dst, src []aggStats) {
	for i := range src {
		dst[i].Rev += src[i].Rev
		dst[i].Sales += src[i].Sales
		dst[i].Records += src[i].Records
	}
}

func rank(stats []aggStats, dict []string) []models.TopItem {
	items := make([]models.TopItem, 0, len(stats))
	for i, s := range stats {
		if s.Records == 0 {
			continue
		}
		items = append(items, models.TopItem{Name: dict[i], Revenue: s.Rev, Sales: s.Sales, Records: s.Records})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Revenue > items[j].Revenue })
	return items
}

// BuildDashboard assembles the dashboard view of a year. previous feeds the KPI
// growth figures and may be nil.
func BuildDashboard(year int, records, previous []models.SalesRecord) *models.DashboardData {
	cur := Query(records, models.SalesQuery{Year: year})
	b := NewColumnStore(cur).Aggregate()

	var prevSeries []models.MonthlyItem
	if len(previous) > 0 {
		prevSeries = MonthlySeries(Query(previous, models.SalesQuery{Year: year - 1}))
	}

	return &models.DashboardData{
		Year:          year,
		MonthlySales:  b.MonthlySales,
		TopRegions:    b.TopRegions,
		TopCategories: b.TopCategories,
		Matrix:        b.Matrix,
		KPI:           KPIs(b.MonthlySales, prevSeries),
	}
}
