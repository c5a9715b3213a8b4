package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/singleflight"

	"salesdash/internal/engine"
	"salesdash/internal/export"
	"salesdash/internal/models"
	"salesdash/internal/realtime"
)

const refreshTimeout = 30 * time.Second

type Handler struct {
	session *engine.Session
	hub     *realtime.Hub
	logger  *slog.Logger

	refresh singleflight.Group

	// previous-year records backing KPI growth, regenerated once per session generation
	prevMu    sync.Mutex
	prevKey   string
	prevData  []models.SalesRecord
	prevGroup singleflight.Group
}

// NewHandler wires the API to a session. hub may be nil, in which case /ws is not served.
func NewHandler(session *engine.Session, hub *realtime.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		session: session,
		hub:     hub,
		logger:  logger.With(slog.String("component", "api")),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	if h.hub != nil {
		e.GET("/ws", h.ServeWS)
	}

	api := e.Group("/api")
	api.GET("/catalog", h.GetCatalog)
	api.GET("/state", h.GetState)
	api.POST("/refresh", h.Refresh)
	api.POST("/fetch", h.Fetch)
	api.GET("/sales", h.GetSales)
	api.GET("/summary", h.GetSummary)
	api.GET("/dashboard", h.GetDashboard)
	api.GET("/compare", h.GetComparison)
	api.GET("/chart", h.GetChart)
	api.GET("/chart-type", h.GetChartType)
	api.PUT("/chart-type", h.SetChartType)
	api.GET("/export.xlsx", h.Export)
}

// --- PARAMS ---

func getPaginationParams(c echo.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// yearParam reads ?year=, defaulting to the session's current year.
func (h *Handler) yearParam(c echo.Context) (int, error) {
	raw := c.QueryParam("year")
	if raw == "" {
		return h.session.Year(), nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("INVALID_PARAMETER", fmt.Sprintf("invalid year %q", raw))
	}
	return year, nil
}

// queryParams builds a SalesQuery. An absent or empty parameter leaves its
// filter unset; minSales=0 is a real threshold.
func (h *Handler) queryParams(c echo.Context) (models.SalesQuery, error) {
	year, err := h.yearParam(c)
	if err != nil {
		return models.SalesQuery{}, err
	}
	q := models.SalesQuery{Year: year}
	if v := c.QueryParam("region"); v != "" {
		r := models.Region(v)
		q.Region = &r
	}
	if v := c.QueryParam("category"); v != "" {
		cat := models.Category(v)
		q.Category = &cat
	}
	if v := c.QueryParam("minSales"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return models.SalesQuery{}, badRequest("INVALID_PARAMETER", fmt.Sprintf("invalid minSales %q", v))
		}
		q.MinSales = &n
	}
	return q, nil
}

// --- HANDLERS ---

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ServeWS(c echo.Context) error {
	// the upgrader has already answered on failure
	if err := h.hub.ServeWS(c.Response(), c.Request(), h.session.Snapshot()); err != nil {
		h.logger.Debug("WebSocket upgrade failed", slog.String("error", err.Error()))
	}
	return nil
}

type catalogResponse struct {
	Years      []int              `json:"years"`
	Regions    []models.Region    `json:"regions"`
	Categories []models.Category  `json:"categories"`
	ChartKinds []engine.ChartKind `json:"chart_kinds"`
}

func (h *Handler) GetCatalog(c echo.Context) error {
	cat := h.session.Generator().Catalog()
	return c.JSON(http.StatusOK, catalogResponse{
		Years:      cat.Years(),
		Regions:    cat.Regions,
		Categories: cat.Categories,
		ChartKinds: engine.ChartKinds,
	})
}

func (h *Handler) GetState(c echo.Context) error {
	return c.JSON(http.StatusOK, h.session.Snapshot())
}

// Refresh regenerates the current year. Concurrent refreshes share one fetch.
func (h *Handler) Refresh(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), refreshTimeout)
	defer cancel()

	_, err, shared := h.refresh.Do("refresh", func() (any, error) {
		return nil, h.session.Refresh(ctx)
	})
	if err != nil {
		return err
	}
	h.logger.Debug("Refresh served", slog.Bool("shared", shared))
	return c.JSON(http.StatusOK, h.session.Snapshot())
}

type fetchRequest struct {
	Year int `json:"year" validate:"required,min=1900,max=9999"`
}

func (h *Handler) Fetch(c echo.Context) error {
	var req fetchRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.session.Fetch(c.Request().Context(), req.Year); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.session.Snapshot())
}

func (h *Handler) GetSales(c echo.Context) error {
	q, err := h.queryParams(c)
	if err != nil {
		return err
	}
	data := h.session.Query(q)
	total := len(data)
	limit, offset := getPaginationParams(c, total)

	page := []models.SalesRecord{}
	if offset < total {
		end := min(offset+limit, total)
		page = data[offset:end]
	}
	return c.JSON(http.StatusOK, map[string]any{
		"data":   page,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

type summaryResponse struct {
	Year      int                   `json:"year"`
	HasData   bool                  `json:"hasData"`
	Summary   *models.YearlySummary `json:"summary,omitempty"`
	Formatted map[string]string     `json:"formatted,omitempty"`
}

func (h *Handler) GetSummary(c echo.Context) error {
	year, err := h.yearParam(c)
	if err != nil {
		return err
	}
	resp := summaryResponse{Year: year}
	if s, ok := h.session.Summary(year); ok {
		resp.HasData = true
		resp.Summary = &s
		resp.Formatted = map[string]string{
			"total_revenue":       engine.FormatCurrency(float64(s.TotalRevenue)),
			"total_profit":        engine.FormatCurrency(float64(s.TotalProfit)),
			"average_order_value": engine.FormatCurrency(s.AverageOrderValue),
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// previousYear returns records for the year before the session's year. They are
// generated once per session generation so KPI growth stays stable between calls.
func (h *Handler) previousYear(snap engine.Snapshot) ([]models.SalesRecord, error) {
	gen := h.session.Generator()
	if snap.GenerationID == "" || !gen.Catalog().Supports(snap.Year-1) {
		return nil, nil
	}

	key := fmt.Sprintf("%s/%d", snap.GenerationID, snap.Year)
	h.prevMu.Lock()
	if h.prevKey == key {
		data := h.prevData
		h.prevMu.Unlock()
		return data, nil
	}
	h.prevMu.Unlock()

	v, err, _ := h.prevGroup.Do(key, func() (any, error) {
		data, err := gen.Generate(snap.Year - 1)
		if err != nil {
			return nil, err
		}
		h.prevMu.Lock()
		h.prevKey, h.prevData = key, data
		h.prevMu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.SalesRecord), nil
}

func (h *Handler) GetDashboard(c echo.Context) error {
	snap := h.session.Snapshot()
	year, err := h.yearParam(c)
	if err != nil {
		return err
	}

	var previous []models.SalesRecord
	if year == snap.Year {
		if previous, err = h.previousYear(snap); err != nil {
			return err
		}
	}
	data := engine.BuildDashboard(year, snap.Records, previous)

	limit, _ := getPaginationParams(c, 0)
	if limit > 0 {
		data.TopRegions = data.TopRegions[:min(limit, len(data.TopRegions))]
		data.TopCategories = data.TopCategories[:min(limit, len(data.TopCategories))]
	}
	return c.JSON(http.StatusOK, data)
}

// GetComparison compares a year with the one before. For the session's year the
// session's records are used; any other year is generated fresh.
func (h *Handler) GetComparison(c echo.Context) error {
	snap := h.session.Snapshot()
	year, err := h.yearParam(c)
	if err != nil {
		return err
	}

	var current, previous []models.SalesRecord
	if year == snap.Year && snap.GenerationID != "" {
		current = snap.Records
		if previous, err = h.previousYear(snap); err != nil {
			return err
		}
	} else {
		if current, previous, err = h.session.Generator().GeneratePair(c.Request().Context(), year); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusOK, engine.Compare(year, current, previous))
}

func (h *Handler) GetChart(c echo.Context) error {
	kind := h.session.ChartKind()
	if v := c.QueryParam("type"); v != "" {
		k, err := engine.ParseChartKind(v)
		if err != nil {
			return err
		}
		kind = k
	}
	q, err := h.queryParams(c)
	if err != nil {
		return err
	}
	chart, err := engine.BuildChart(kind, fmt.Sprintf("Monthly sales %d", q.Year), h.session.Query(q))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, chart)
}

type chartTypeRequest struct {
	Type string `json:"type" validate:"required,oneof=line bar pie"`
}

func (h *Handler) GetChartType(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"type":  h.session.ChartKind(),
		"kinds": engine.ChartKinds,
	})
}

func (h *Handler) SetChartType(c echo.Context) error {
	var req chartTypeRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	kind, err := engine.ParseChartKind(req.Type)
	if err != nil {
		return err
	}
	if err := h.session.SetChartKind(kind); err != nil {
		return err
	}
	return h.GetChartType(c)
}

func (h *Handler) Export(c echo.Context) error {
	q, err := h.queryParams(c)
	if err != nil {
		return err
	}
	buf, err := export.Workbook(q.Year, h.session.Query(q))
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", export.Filename(q.Year)))
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
