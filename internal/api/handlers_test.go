package api

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"salesdash/internal/config"
	"salesdash/internal/engine"
	"salesdash/internal/models"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{AllowedOrigins: []string{"*"}}
}

type fixture struct {
	session *engine.Session
	handler http.Handler
}

func newFixture(t *testing.T, jitter engine.Jitter, cfg config.ServerConfig) *fixture {
	t.Helper()
	logger := quietLogger()
	session := engine.NewSession(engine.NewGenerator(engine.DefaultCatalog(), jitter), 2023,
		engine.WithFetchDelay(0), engine.WithLogger(logger))

	e := NewEcho(cfg, logger)
	NewHandler(session, nil, logger).RegisterRoutes(e)
	return &fixture{session: session, handler: e}
}

func newLoadedFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, engine.FixedJitter(1), testServerConfig())
	require.NoError(t, f.session.Fetch(context.Background(), 2023))
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndCatalog(t *testing.T) {
	f := newLoadedFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/catalog", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cat := decode[catalogResponse](t, rec)
	assert.Equal(t, []int{2022, 2023, 2024}, cat.Years)
	assert.Len(t, cat.Regions, 4)
	assert.Equal(t, engine.ChartKinds, cat.ChartKinds)
}

func TestGetSales(t *testing.T) {
	f := newLoadedFixture(t)

	type page struct {
		Data   []models.SalesRecord `json:"data"`
		Total  int                  `json:"total"`
		Limit  int                  `json:"limit"`
		Offset int                  `json:"offset"`
	}

	rec := f.do(t, http.MethodGet, "/api/sales", "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[page](t, rec)
	assert.Equal(t, 192, all.Total)
	assert.Len(t, all.Data, 192)
	assert.Equal(t, models.Month(1), all.Data[0].Month)
	assert.Equal(t, models.Month(12), all.Data[191].Month)

	rec = f.do(t, http.MethodGet, "/api/sales?region=North&category=Sports&limit=5&offset=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[page](t, rec)
	assert.Equal(t, 12, p.Total)
	assert.Len(t, p.Data, 2)

	rec = f.do(t, http.MethodGet, "/api/sales?minSales=0", "")
	assert.Equal(t, 192, decode[page](t, rec).Total)

	rec = f.do(t, http.MethodGet, "/api/sales?year=2022", "")
	assert.Equal(t, 0, decode[page](t, rec).Total)

	rec = f.do(t, http.MethodGet, "/api/sales?minSales=lots", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", decode[APIError](t, rec).Code)
}

func TestGetSummary(t *testing.T) {
	f := newLoadedFixture(t)

	rec := f.do(t, http.MethodGet, "/api/summary?year=2023", "")
	require.Equal(t, http.StatusOK, rec.Code)
	s := decode[summaryResponse](t, rec)
	assert.True(t, s.HasData)
	require.NotNil(t, s.Summary)
	assert.Positive(t, s.Summary.TotalRevenue)
	assert.True(t, strings.HasPrefix(s.Formatted["total_revenue"], "$"))

	rec = f.do(t, http.MethodGet, "/api/summary?year=2030", "")
	require.Equal(t, http.StatusOK, rec.Code)
	s = decode[summaryResponse](t, rec)
	assert.False(t, s.HasData)
	assert.Nil(t, s.Summary)
}

func TestFetch(t *testing.T) {
	f := newLoadedFixture(t)

	rec := f.do(t, http.MethodPost, "/api/fetch", `{"year":1999}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	apiErr := decode[APIError](t, rec)
	assert.Equal(t, "UNSUPPORTED_YEAR", apiErr.Code)
	assert.Equal(t, 2023, f.session.Year())

	rec = f.do(t, http.MethodPost, "/api/fetch", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", decode[APIError](t, rec).Code)

	rec = f.do(t, http.MethodPost, "/api/fetch", `{"year":"soon"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/fetch", `{"year":2022}`)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[engine.Snapshot](t, rec)
	assert.Equal(t, 2022, snap.Year)
	assert.Equal(t, 192, snap.RecordCount)
}

func TestRefresh(t *testing.T) {
	f := newLoadedFixture(t)
	before := f.session.Snapshot().GenerationID

	rec := f.do(t, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[engine.Snapshot](t, rec)
	assert.Equal(t, 2023, snap.Year)
	assert.NotEqual(t, before, snap.GenerationID)
}

func TestRefreshGenerationFailure(t *testing.T) {
	f := newFixture(t, engine.FixedJitter(-1), testServerConfig())

	rec := f.do(t, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	apiErr := decode[APIError](t, rec)
	assert.Equal(t, "GENERATION_FAILED", apiErr.Code)
	assert.True(t, apiErr.Retryable)

	rec = f.do(t, http.MethodGet, "/api/state", "")
	snap := decode[engine.Snapshot](t, rec)
	assert.True(t, snap.Retryable)
	assert.NotEmpty(t, snap.Error)
}

func TestChartType(t *testing.T) {
	f := newLoadedFixture(t)

	type chartType struct {
		Type  engine.ChartKind   `json:"type"`
		Kinds []engine.ChartKind `json:"kinds"`
	}

	rec := f.do(t, http.MethodGet, "/api/chart-type", "")
	assert.Equal(t, engine.ChartLine, decode[chartType](t, rec).Type)

	rec = f.do(t, http.MethodPut, "/api/chart-type", `{"type":"bar"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, engine.ChartBar, decode[chartType](t, rec).Type)

	rec = f.do(t, http.MethodPut, "/api/chart-type", `{"type":"donut"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, engine.ChartBar, f.session.ChartKind())

	rec = f.do(t, http.MethodGet, "/api/chart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	bar := decode[engine.BarChart](t, rec)
	assert.Equal(t, engine.ChartBar, bar.Type)
	assert.Len(t, bar.Bars, 12)
}

func TestGetChart(t *testing.T) {
	f := newLoadedFixture(t)

	rec := f.do(t, http.MethodGet, "/api/chart?type=pie&region=West", "")
	require.Equal(t, http.StatusOK, rec.Code)
	pie := decode[engine.PieChart](t, rec)
	assert.Equal(t, engine.ChartPie, pie.Type)
	require.Len(t, pie.Slices, 12)
	var pct float64
	for _, s := range pie.Slices {
		pct += s.Percent
	}
	assert.InDelta(t, 100.0, pct, 1e-6)

	rec = f.do(t, http.MethodGet, "/api/chart?type=radar", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_CHART_KIND", decode[APIError](t, rec).Code)
}

func TestGetDashboard(t *testing.T) {
	f := newLoadedFixture(t)

	rec := f.do(t, http.MethodGet, "/api/dashboard?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[models.DashboardData](t, rec)
	assert.Equal(t, 2023, first.Year)
	assert.Len(t, first.MonthlySales, 12)
	assert.Len(t, first.TopRegions, 2)
	assert.Len(t, first.TopCategories, 2)
	assert.NotZero(t, first.KPI.SalesGrowth)
	assert.NotZero(t, first.KPI.TotalRevenue)
	assert.Positive(t, first.KPI.Transactions)
	assert.Len(t, first.Matrix, 16)
	assert.Contains(t, rec.Body.String(), `"region_category"`)

	rec = f.do(t, http.MethodGet, "/api/dashboard?limit=2", "")
	second := decode[models.DashboardData](t, rec)
	assert.Equal(t, first.KPI, second.KPI)
}

func TestGetComparison(t *testing.T) {
	f := newLoadedFixture(t)

	rec := f.do(t, http.MethodGet, "/api/compare", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cmp := decode[models.YearComparison](t, rec)
	require.NotNil(t, cmp.Current)
	require.NotNil(t, cmp.Previous)
	assert.Equal(t, 2022, cmp.PreviousYear)

	rec = f.do(t, http.MethodGet, "/api/compare?year=2022", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cmp = decode[models.YearComparison](t, rec)
	assert.NotNil(t, cmp.Current)
	assert.Nil(t, cmp.Previous)
	assert.Equal(t, models.Growth{}, cmp.Growth)

	rec = f.do(t, http.MethodGet, "/api/compare?year=1999", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNSUPPORTED_YEAR", decode[APIError](t, rec).Code)
}

func TestExport(t *testing.T) {
	f := newLoadedFixture(t)

	rec := f.do(t, http.MethodGet, "/api/export.xlsx?region=East", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "sales_2023.xlsx")

	xl, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer xl.Close()
	rows, err := xl.GetRows("Records")
	require.NoError(t, err)
	assert.Len(t, rows, 1+48)
}

func TestRateLimit(t *testing.T) {
	cfg := testServerConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1}
	f := newFixture(t, engine.FixedJitter(1), cfg)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/state", "").Code)
	rec := f.do(t, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", decode[APIError](t, rec).Code)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "").Code)
}

func TestUnknownRoute(t *testing.T) {
	f := newLoadedFixture(t)

	rec := f.do(t, http.MethodGet, "/api/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode[APIError](t, rec).Code)
}
