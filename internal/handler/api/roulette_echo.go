package api

import (
	"net/http"

	models "SpinPull/internal/domain/models"
	"SpinPull/internal/service/ratelimit"
	"SpinPull/internal/usecase"
	xhttp "SpinPull/pkg/http"
	applogger "SpinPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RouletteEchoHandler serves spin ingestion and the read-only roulette views.
type RouletteEchoHandler struct {
	logger *applogger.Logger
	orch   *usecase.Orchestrator
	query  *usecase.QueryService
	rl     *ratelimit.Limiter
	secret string
}

func NewRouletteEchoHandler(logger *applogger.Logger, orch *usecase.Orchestrator, query *usecase.QueryService, rl *ratelimit.Limiter, secret string) *RouletteEchoHandler {
	return &RouletteEchoHandler{logger: logger, orch: orch, query: query, rl: rl, secret: secret}
}

func (h *RouletteEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.GET("/database/status", h.DatabaseStatus)

	r := g.Group("/roulette")
	r.POST("/numbers", h.AddNumber, rateLimited(h.rl, "numbers", h.logger), requireSignature(h.secret, h.logger))
	r.GET("/numbers", h.Numbers)
	r.GET("/history", h.History)
	r.GET("/latest", h.Latest)
	r.GET("/stats", h.Stats)
	r.GET("/analytics", h.Analytics)
	r.GET("/features", h.Features)
}

func (h *RouletteEchoHandler) Health(c echo.Context) error {
	if err := h.query.Ping(c.Request().Context()); err != nil {
		h.logger.Warn("health check failed", applogger.Error(err))
		return xhttp.ErrorResponse(c, http.StatusServiceUnavailable, "ERR_UNAVAILABLE", "state store unavailable")
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *RouletteEchoHandler) AddNumber(c echo.Context) error {
	req := &models.AddNumberRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	out, err := h.orch.ProcessSpin(c.Request().Context(), *req.Number, req.Timestamp)
	if err != nil {
		return respondError(c, h.logger, "add_number", err)
	}
	return xhttp.SuccessResponse(c, out)
}

func (h *RouletteEchoHandler) Numbers(c echo.Context) error {
	req := &models.ListRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, total, err := h.query.Numbers(c.Request().Context(), 0, req.Limit)
	if err != nil {
		return respondError(c, h.logger, "numbers", err)
	}
	return xhttp.ListResponse(c, rows, total, req.Limit, 0)
}

func (h *RouletteEchoHandler) History(c echo.Context) error {
	req := &models.ListRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, total, err := h.query.Numbers(c.Request().Context(), req.Offset, req.Limit)
	if err != nil {
		return respondError(c, h.logger, "history", err)
	}
	return xhttp.ListResponse(c, rows, total, req.Limit, req.Offset)
}

func (h *RouletteEchoHandler) Latest(c echo.Context) error {
	spin, err := h.query.Latest(c.Request().Context())
	if err != nil {
		return respondError(c, h.logger, "latest", err)
	}
	return xhttp.SuccessResponse(c, spin)
}

func (h *RouletteEchoHandler) Stats(c echo.Context) error {
	stats, err := h.query.Stats(c.Request().Context())
	if err != nil {
		return respondError(c, h.logger, "stats", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	return xhttp.SuccessResponse(c, stats)
}

func (h *RouletteEchoHandler) Analytics(c echo.Context) error {
	report, err := h.query.Analytics(c.Request().Context())
	if err != nil {
		return respondError(c, h.logger, "analytics", err)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *RouletteEchoHandler) Features(c echo.Context) error {
	req := &models.ListRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.query.Features(c.Request().Context(), req.Limit)
	if err != nil {
		return respondError(c, h.logger, "features", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)), req.Limit, 0)
}

// DatabaseStatus reports 200 with the key counts when the store answers,
// 503 with the same payload otherwise.
func (h *RouletteEchoHandler) DatabaseStatus(c echo.Context) error {
	st := h.query.Status(c.Request().Context())
	if !st.Reachable {
		return c.JSON(http.StatusServiceUnavailable, xhttp.APIResponse{
			Error: st.Error,
			Code:  "ERR_UNAVAILABLE",
			Data:  st,
		})
	}
	return xhttp.SuccessResponse(c, st)
}
