package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"salesdash/internal/models"
)

func TestWorkbook(t *testing.T) {
	records := []models.SalesRecord{
		{Year: 2023, Month: 2, Region: "North", ProductCategory: "Sports", Sales: 20, Orders: 4, Revenue: 2000, Profit: 500, Customers: 3},
		{Year: 2023, Month: 1, Region: "South", ProductCategory: "Clothing", Sales: 10, Orders: 2, Revenue: 1234, Profit: 300, Customers: 2},
		{Year: 2022, Month: 1, Region: "South", ProductCategory: "Clothing", Sales: 99},
	}

	buf, err := Workbook(2023, records)
	require.NoError(t, err)

	xl, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer xl.Close()

	assert.Equal(t, []string{SheetRecords, SheetMonthly, SheetSummary}, xl.GetSheetList())

	rows, err := xl.GetRows(SheetRecords)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Year", rows[0][0])
	assert.Equal(t, []string{"2023", "Jan", "South", "Clothing", "10", "2", "1234", "300", "2"}, rows[1])
	assert.Equal(t, "Feb", rows[2][1])

	monthly, err := xl.GetRows(SheetMonthly)
	require.NoError(t, err)
	assert.Len(t, monthly, 3)

	revenue, err := xl.GetCellValue(SheetSummary, "C4")
	require.NoError(t, err)
	assert.Equal(t, "$3,234", revenue)
}

func TestWorkbookNoData(t *testing.T) {
	buf, err := Workbook(2030, nil)
	require.NoError(t, err)

	xl, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer xl.Close()

	status, err := xl.GetCellValue(SheetSummary, "B2")
	require.NoError(t, err)
	assert.Equal(t, "no data", status)
	assert.Equal(t, "sales_2030.xlsx", Filename(2030))
}
