package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"salesdash/internal/engine"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
	Details    any    `json:"details,omitempty"`
}

func (e *APIError) Error() string { return e.Message }

// FieldError is one failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// toAPIError maps any handler error onto the wire error shape.
func toAPIError(err error) *APIError {
	var (
		apiErr  *APIError
		httpErr *echo.HTTPError
		verrs   validator.ValidationErrors
		uy      *engine.UnsupportedYearError
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &verrs):
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
		}
		return &APIError{StatusCode: http.StatusBadRequest, Code: "VALIDATION_FAILED", Message: "Request validation failed", Details: fields}
	case errors.As(err, &uy):
		return &APIError{
			StatusCode: http.StatusBadRequest,
			Code:       "UNSUPPORTED_YEAR",
			Message:    uy.Error(),
			Details:    map[string]any{"year": uy.Year, "supported": uy.Supported},
		}
	case errors.Is(err, engine.ErrGeneration):
		return &APIError{StatusCode: http.StatusBadGateway, Code: "GENERATION_FAILED", Message: err.Error(), Retryable: true}
	case errors.Is(err, engine.ErrSuperseded):
		return &APIError{StatusCode: http.StatusConflict, Code: "FETCH_SUPERSEDED", Message: err.Error(), Retryable: true}
	case errors.Is(err, engine.ErrInvalidChartKind):
		return &APIError{StatusCode: http.StatusBadRequest, Code: "INVALID_CHART_KIND", Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return &APIError{StatusCode: http.StatusGatewayTimeout, Code: "TIMEOUT", Message: "Request timed out", Retryable: true}
	case errors.Is(err, context.Canceled):
		return &APIError{StatusCode: http.StatusServiceUnavailable, Code: "CANCELLED", Message: "Request cancelled", Retryable: true}
	case errors.As(err, &httpErr):
		msg := http.StatusText(httpErr.Code)
		if m, ok := httpErr.Message.(string); ok && m != "" {
			msg = m
		}
		return &APIError{
			StatusCode: httpErr.Code,
			Code:       strings.ToUpper(strings.ReplaceAll(http.StatusText(httpErr.Code), " ", "_")),
			Message:    msg,
			Retryable:  httpErr.Code == http.StatusTooManyRequests,
		}
	default:
		return &APIError{StatusCode: http.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: "Internal server error"}
	}
}

func badRequest(code, message string) *APIError {
	return &APIError{StatusCode: http.StatusBadRequest, Code: code, Message: message}
}

// ErrorHandler writes every error as an APIError body and logs server-side failures.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		apiErr := toAPIError(err)

		attrs := []any{
			slog.String("method", c.Request().Method),
			slog.String("path", c.Request().URL.Path),
			slog.Int("status", apiErr.StatusCode),
			slog.String("code", apiErr.Code),
			slog.String("error", err.Error()),
		}
		if apiErr.StatusCode >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request().Context(), "Request failed", attrs...)
		} else {
			logger.DebugContext(c.Request().Context(), "Request rejected", attrs...)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(apiErr.StatusCode)
		} else {
			err = c.JSON(apiErr.StatusCode, apiErr)
		}
		if err != nil {
			logger.Error("Failed to write error response", slog.String("error", err.Error()))
		}
	}
}
