package engine

import (
	"math"

	"salesdash/internal/models"
)

// Summarize totals every record of year. The bool is false when no record
// carries that year, so callers can tell "no data" apart from all zeros.
func Summarize(records []models.SalesRecord, year int) (models.YearlySummary, bool) {
	var s models.YearlySummary
	found := false
	for _, r := range records {
		if r.Year != year {
			continue
		}
		found = true
		s.TotalSales += r.Sales
		s.TotalRevenue += r.Revenue
		s.TotalProfit += r.Profit
		s.TotalOrders += r.Orders
		s.TotalCustomers += r.Customers
	}
	if !found {
		return models.YearlySummary{}, false
	}
	s.AverageOrderValue = float64(s.TotalRevenue) / float64(max(s.TotalOrders, 1))
	return s, true
}

// GrowthRate is the percentage change from previous to current; 0 when previous is 0.
func GrowthRate(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

// SummaryGrowth applies GrowthRate to every measure of two summaries.
func SummaryGrowth(current, previous models.YearlySummary) models.Growth {
	return models.Growth{
		Sales:             GrowthRate(float64(current.TotalSales), float64(previous.TotalSales)),
		Revenue:           GrowthRate(float64(current.TotalRevenue), float64(previous.TotalRevenue)),
		Profit:            GrowthRate(float64(current.TotalProfit), float64(previous.TotalProfit)),
		Orders:            GrowthRate(float64(current.TotalOrders), float64(previous.TotalOrders)),
		Customers:         GrowthRate(float64(current.TotalCustomers), float64(previous.TotalCustomers)),
		AverageOrderValue: GrowthRate(current.AverageOrderValue, previous.AverageOrderValue),
	}
}

// MonthlySeries sums the measures of records per calendar month, in calendar order.
func MonthlySeries(records []models.SalesRecord) []models.MonthlyItem {
	var buckets [13]models.MonthlyItem
	var present [13]bool
	for _, r := range records {
		if !r.Month.Valid() {
			continue
		}
		b := &buckets[r.Month]
		b.Month = r.Month
		b.Sales += r.Sales
		b.Orders += r.Orders
		b.Revenue += r.Revenue
		b.Profit += r.Profit
		b.Customers += r.Customers
		present[r.Month] = true
	}
	out := make([]models.MonthlyItem, 0, 12)
	for m := 1; m <= 12; m++ {
		if present[m] {
			out = append(out, buckets[m])
		}
	}
	return out
}

const (
	// assumed average ticket behind the transaction estimate
	averageTransactionValue = 150
	// transaction count is taken to grow at this share of sales growth
	transactionGrowthShare = 0.8
)

// KPIs derives the dashboard cards from a monthly series. previous may be empty,
// in which case every year-over-year growth figure is 0.
func KPIs(current, previous []models.MonthlyItem) models.KPISummary {
	var k models.KPISummary
	if len(current) == 0 {
		return k
	}
	for i, m := range current {
		k.TotalSales += m.Sales
		k.TotalRevenue += m.Revenue
		if i == 0 || m.Sales > k.BestMonth.Sales {
			k.BestMonth = m
		}
		if i == 0 || m.Revenue > k.TopRevenueMonth.Revenue {
			k.TopRevenueMonth = m
		}
	}
	months := float64(len(current))
	k.AverageMonthlySales = float64(k.TotalSales) / months
	k.AverageMonthlyRevenue = float64(k.TotalRevenue) / months
	k.BestMonthVsAverage = GrowthRate(float64(k.BestMonth.Sales), k.AverageMonthlySales)
	if n := len(current); n > 1 {
		k.MonthOverMonthGrowth = GrowthRate(float64(current[n-1].Revenue), float64(current[n-2].Revenue))
	}
	k.Transactions = int64(math.Round(float64(k.TotalSales) / averageTransactionValue))

	if len(previous) > 0 {
		var prevTotal int64
		for _, m := range previous {
			prevTotal += m.Sales
		}
		prevAvg := float64(prevTotal) / float64(len(previous))
		k.SalesGrowth = GrowthRate(float64(k.TotalSales), float64(prevTotal))
		k.AverageGrowth = GrowthRate(k.AverageMonthlySales, prevAvg)
		k.TransactionGrowth = k.SalesGrowth * transactionGrowthShare
	}
	return k
}

// Compare summarizes year and year-1 and computes the growth of each measure.
// A missing side leaves its summary nil and every growth figure at 0.
func Compare(year int, current, previous []models.SalesRecord) models.YearComparison {
	c := models.YearComparison{Year: year, PreviousYear: year - 1}
	if s, ok := Summarize(current, year); ok {
		c.Current = &s
	}
	if s, ok := Summarize(previous, year-1); ok {
		c.Previous = &s
	}
	if c.Current != nil && c.Previous != nil {
		c.Growth = SummaryGrowth(*c.Current, *c.Previous)
	}
	return c
}
