package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Region string

type Category string

// Month is a calendar month index, 1 (January) through 12 (December).
type Month int

var monthLabels = [...]string{"", "Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

func (m Month) Valid() bool { return m >= 1 && m <= 12 }

func (m Month) String() string {
	if !m.Valid() {
		return fmt.Sprintf("Month(%d)", int(m))
	}
	return monthLabels[m]
}

// MarshalText encodes the short label. The zero Month encodes as "".
func (m Month) MarshalText() ([]byte, error) {
	if m == 0 {
		return []byte{}, nil
	}
	if !m.Valid() {
		return nil, fmt.Errorf("invalid month %d", int(m))
	}
	return []byte(monthLabels[m]), nil
}

func (m *Month) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*m = 0
		return nil
	}
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMonth accepts a short label ("Mar"), a full name ("March") or an index ("3").
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	for i := 1; i <= 12; i++ {
		if strings.EqualFold(s, monthLabels[i]) || strings.EqualFold(s, time.Month(i).String()) {
			return Month(i), nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && Month(n).Valid() {
		return Month(n), nil
	}
	return 0, fmt.Errorf("invalid month %q", s)
}

type SalesRecord struct {
	Year            int      `json:"year"`
	Month           Month    `json:"month"`
	Region          Region   `json:"region"`
	ProductCategory Category `json:"product_category"`
	Sales           int64    `json:"sales"`
	Orders          int64    `json:"orders"`
	Revenue         int64    `json:"revenue"`
	Profit          int64    `json:"profit"`
	Customers       int64    `json:"customers"`
}

// SalesQuery selects records. Nil pointers match everything on that dimension.
type SalesQuery struct {
	Year     int
	Region   *Region
	Category *Category
	MinSales *int64
}

type YearlySummary struct {
	TotalSales        int64   `json:"total_sales"`
	TotalRevenue      int64   `json:"total_revenue"`
	TotalProfit       int64   `json:"total_profit"`
	TotalOrders       int64   `json:"total_orders"`
	TotalCustomers    int64   `json:"total_customers"`
	AverageOrderValue float64 `json:"average_order_value"`
}

type MonthlyItem struct {
	Month     Month `json:"month"`
	Sales     int64 `json:"sales"`
	Orders    int64 `json:"orders"`
	Revenue   int64 `json:"revenue"`
	Profit    int64 `json:"profit"`
	Customers int64 `json:"customers"`
}

type TopItem struct {
	Name    string `json:"name"`
	Revenue int64  `json:"revenue"`
	Sales   int64  `json:"sales"`
	Records int    `json:"records"`
}

type KPISummary struct {
	TotalSales          int64       `json:"total_sales"`
	AverageMonthlySales float64     `json:"average_monthly_sales"`
	BestMonth           MonthlyItem `json:"best_month"`
	SalesGrowth         float64     `json:"sales_growth"`
	AverageGrowth       float64     `json:"average_growth"`
	BestMonthVsAverage  float64     `json:"best_month_vs_average"`

	TotalRevenue          int64       `json:"total_revenue"`
	AverageMonthlyRevenue float64     `json:"average_monthly_revenue"`
	TopRevenueMonth       MonthlyItem `json:"top_revenue_month"`

	// last month of the series against the one before it
	MonthOverMonthGrowth float64 `json:"month_over_month_growth"`

	// Transactions is an estimate: sales over an assumed average ticket.
	Transactions      int64   `json:"transactions"`
	TransactionGrowth float64 `json:"transaction_growth"`
}

// MatrixCell is one region x category pair of the revenue table.
type MatrixCell struct {
	Region   Region   `json:"region"`
	Category Category `json:"category"`
	Revenue  int64    `json:"revenue"`
	Sales    int64    `json:"sales"`
	Records  int      `json:"records"`
}

type DashboardData struct {
	Year          int           `json:"year"`
	MonthlySales  []MonthlyItem `json:"monthly_sales"`
	TopRegions    []TopItem     `json:"top_regions"`
	TopCategories []TopItem     `json:"top_categories"`
	Matrix        []MatrixCell  `json:"region_category"`
	KPI           KPISummary    `json:"kpi"`
}

// Growth holds period-over-period percentages per measure.
type Growth struct {
	Sales             float64 `json:"sales"`
	Revenue           float64 `json:"revenue"`
	Profit            float64 `json:"profit"`
	Orders            float64 `json:"orders"`
	Customers         float64 `json:"customers"`
	AverageOrderValue float64 `json:"average_order_value"`
}

type YearComparison struct {
	Year         int            `json:"year"`
	PreviousYear int            `json:"previous_year"`
	Current      *YearlySummary `json:"current"`
	Previous     *YearlySummary `json:"previous"`
	Growth       Growth         `json:"growth"`
}
