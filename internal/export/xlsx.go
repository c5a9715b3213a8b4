// Package export renders a year of sales data as an Excel workbook.
package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"salesdash/internal/engine"
	"salesdash/internal/models"
)

const (
	SheetRecords = "Records"
	SheetMonthly = "Monthly"
	SheetSummary = "Summary"
)

var recordHeader = []any{"Year", "Month", "Region", "Category", "Sales", "Orders", "Revenue", "Profit", "Customers"}

// Filename is the download name for year's workbook.
func Filename(year int) string { return fmt.Sprintf("sales_%d.xlsx", year) }

// Workbook writes three sheets: the raw records of year in calendar order, the
// monthly rollup, and the yearly summary with its formatted figures.
func Workbook(year int, records []models.SalesRecord) (*bytes.Buffer, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	rows := engine.Query(records, models.SalesQuery{Year: year})

	// Rename default sheet
	if err := xl.SetSheetName(xl.GetSheetName(0), SheetRecords); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeRecords(xl, rows); err != nil {
		return nil, err
	}

	if _, err := xl.NewSheet(SheetMonthly); err != nil {
		return nil, fmt.Errorf("create sheet %s: %w", SheetMonthly, err)
	}
	if err := writeMonthly(xl, engine.MonthlySeries(rows)); err != nil {
		return nil, err
	}

	if _, err := xl.NewSheet(SheetSummary); err != nil {
		return nil, fmt.Errorf("create sheet %s: %w", SheetSummary, err)
	}
	if err := writeSummary(xl, year, rows); err != nil {
		return nil, err
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}

func writeRecords(xl *excelize.File, rows []models.SalesRecord) error {
	header := recordHeader
	if err := xl.SetSheetRow(SheetRecords, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{r.Year, r.Month.String(), string(r.Region), string(r.ProductCategory),
			r.Sales, r.Orders, r.Revenue, r.Profit, r.Customers}
		if err := xl.SetSheetRow(SheetRecords, cell, &row); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	return nil
}

func writeMonthly(xl *excelize.File, series []models.MonthlyItem) error {
	header := []any{"Month", "Sales", "Orders", "Revenue", "Profit", "Customers"}
	if err := xl.SetSheetRow(SheetMonthly, "A1", &header); err != nil {
		return err
	}
	for i, m := range series {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{m.Month.String(), m.Sales, m.Orders, m.Revenue, m.Profit, m.Customers}
		if err := xl.SetSheetRow(SheetMonthly, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func writeSummary(xl *excelize.File, year int, rows []models.SalesRecord) error {
	s, ok := engine.Summarize(rows, year)
	lines := [][]any{{"Year", year}}
	if !ok {
		lines = append(lines, []any{"Status", "no data"})
	} else {
		lines = append(lines,
			[]any{"Total sales", s.TotalSales},
			[]any{"Total orders", s.TotalOrders},
			[]any{"Total revenue", s.TotalRevenue, engine.FormatCurrency(float64(s.TotalRevenue))},
			[]any{"Total profit", s.TotalProfit, engine.FormatCurrency(float64(s.TotalProfit))},
			[]any{"Total customers", s.TotalCustomers},
			[]any{"Average order value", s.AverageOrderValue, engine.FormatCurrency(s.AverageOrderValue)},
		)
	}
	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := xl.SetSheetRow(SheetSummary, cell, &line); err != nil {
			return err
		}
	}
	return nil
}
