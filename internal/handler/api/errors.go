package api

import (
	"errors"
	"net/http"

	models "SpinPull/internal/domain/models"
	xhttp "SpinPull/pkg/http"
	applogger "SpinPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

// toAppError maps domain errors onto HTTP application errors. Internal
// failures keep a generic message so store details never reach clients.
func toAppError(err error) *xhttp.AppError {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		return xhttp.BadRequestError(ve.Reason).WithField(ve.Field).WithError(err)
	case errors.Is(err, models.ErrValidation):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrAlreadyVerified):
		return xhttp.ConflictError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrStoreUnavailable), errors.Is(err, models.ErrDeadlineExceeded):
		return xhttp.ServiceUnavailableError("state store unavailable").WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}

// respondError logs err at a level matching its class and writes the
// mapped envelope.
func respondError(c echo.Context, l *applogger.Logger, op string, err error) error {
	appErr := toAppError(err)
	if l != nil {
		fields := []applogger.Field{applogger.String("op", op), applogger.Error(err)}
		if appErr.Status >= http.StatusInternalServerError {
			l.Error("request failed", fields...)
		} else {
			l.Debug("request rejected", fields...)
		}
	}
	return xhttp.AppErrorResponse(c, appErr)
}
