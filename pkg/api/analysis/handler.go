// Package analysis exposes the scoring engine over HTTP.
package analysis

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/phuslu/log"

	"github.com/adityaloshali/stonky/pkg/core/engine"
	"github.com/adityaloshali/stonky/pkg/models"
)

// Handler serves the analysis endpoints. All computation and caching lives in
// the engine; the handler only translates HTTP to engine calls and errors to
// status codes.
type Handler struct {
	engine *engine.Engine
}

// New creates a handler backed by the given engine.
func New(eng *engine.Engine) *Handler {
	return &Handler{engine: eng}
}

// Register wires the handler's routes onto an echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
	api := e.Group("/api")
	api.GET("/analysis/:symbol", h.Analyze)
	api.GET("/analysis/:symbol/status", h.Status)
}

// errorResponse is the JSON body for every non-2xx outcome.
type errorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	Symbol string `json:"symbol,omitempty"`
}

// Health returns process liveness.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Analyze handles GET /api/analysis/:symbol. It blocks until the analysis
// reaches a terminal state, serving the cached result when it is still fresh.
// Query params:
//   - refresh: if "true", bypass the freshness window and recompute
func (h *Handler) Analyze(c echo.Context) error {
	symbol := c.Param("symbol")
	forceRefresh := c.QueryParam("refresh") == "true"

	res, err := h.engine.Analyze(c.Request().Context(), symbol, forceRefresh)
	if err != nil {
		return writeError(c, symbol, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Status handles GET /api/analysis/:symbol/status, the non-blocking poll
// endpoint: an in-flight job, the cached result, or the last failure.
func (h *Handler) Status(c echo.Context) error {
	symbol := c.Param("symbol")

	view, ok := h.engine.GetJobStatus(c.Request().Context(), symbol)
	if !ok {
		return c.JSON(http.StatusNotFound, errorResponse{
			Error:  "no analysis known for symbol",
			Kind:   string(models.KindNotFound),
			Symbol: symbol,
		})
	}
	return c.JSON(http.StatusOK, view)
}

// writeError maps the analysis error taxonomy onto HTTP status codes.
func writeError(c echo.Context, symbol string, err error) error {
	status := http.StatusInternalServerError
	kind := ""

	var ae *models.AnalysisError
	if errors.As(err, &ae) {
		kind = string(ae.Kind)
		switch ae.Kind {
		case models.KindNotFound:
			status = http.StatusNotFound
		case models.KindInsufficientData, models.KindMalformedData:
			status = http.StatusUnprocessableEntity
		case models.KindSourceUnavailable:
			status = http.StatusBadGateway
		case models.KindTimeout:
			status = http.StatusGatewayTimeout
		case models.KindConfiguration:
			status = http.StatusInternalServerError
		}
	}

	if status >= http.StatusInternalServerError {
		log.Error().Str("symbol", symbol).Err(err).Msg("analysis request failed")
	}
	return c.JSON(status, errorResponse{Error: err.Error(), Kind: kind, Symbol: symbol})
}
