package api

import (
	models "SpinPull/internal/domain/models"
	"SpinPull/internal/usecase"
	xhttp "SpinPull/pkg/http"
	applogger "SpinPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AIEchoHandler serves prediction, verification and prediction statistics.
type AIEchoHandler struct {
	logger *applogger.Logger
	orch   *usecase.Orchestrator
	query  *usecase.QueryService
}

func NewAIEchoHandler(logger *applogger.Logger, orch *usecase.Orchestrator, query *usecase.QueryService) *AIEchoHandler {
	return &AIEchoHandler{logger: logger, orch: orch, query: query}
}

func (h *AIEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/ai")
	g.POST("/predict", h.Predict)
	g.POST("/check-result", h.CheckResult)
	g.GET("/pending-predictions", h.Pending)
	g.GET("/predictions/:id", h.Prediction)
	g.GET("/results/:id", h.Result)
	g.GET("/stats", h.Stats)
}

// PredictResponse wraps the new prediction; Prediction is null when the
// predictor abstained for lack of history.
type PredictResponse struct {
	Prediction *models.Prediction `json:"prediction"`
	Abstained  bool               `json:"abstained"`
}

func (h *AIEchoHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	p, err := h.orch.Predict(c.Request().Context(), models.PredictionMode(req.Type))
	if err != nil {
		return respondError(c, h.logger, "predict", err)
	}
	return xhttp.SuccessResponse(c, PredictResponse{Prediction: p, Abstained: p == nil})
}

func (h *AIEchoHandler) CheckResult(c echo.Context) error {
	req := &models.CheckResultRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.orch.CheckResult(c.Request().Context(), req.PredictionID, *req.Number)
	if err != nil {
		return respondError(c, h.logger, "check_result", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AIEchoHandler) Pending(c echo.Context) error {
	rows, err := h.query.Pending(c.Request().Context())
	if err != nil {
		return respondError(c, h.logger, "pending", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)), 0, 0)
}

func (h *AIEchoHandler) Prediction(c echo.Context) error {
	p, err := h.query.Prediction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, "prediction", err)
	}
	return xhttp.SuccessResponse(c, p)
}

func (h *AIEchoHandler) Result(c echo.Context) error {
	res, err := h.query.Result(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, "result", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AIEchoHandler) Stats(c echo.Context) error {
	stats, err := h.query.AIStats(c.Request().Context())
	if err != nil {
		return respondError(c, h.logger, "ai_stats", err)
	}
	return xhttp.SuccessResponse(c, stats)
}
