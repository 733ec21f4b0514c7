package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// DataResponse writes a successful envelope with the given status.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, APIResponse{Success: true, Data: data})
}

// ListResponse writes paginated list response.
func ListResponse(c echo.Context, rows interface{}, total int64, limit, offset int) error {
	return DataResponse(c, http.StatusOK, &ListDataResponse{
		Rows:   rows,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// SuccessResponse writes success response.
func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

// CreatedResponse writes created response.
func CreatedResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusCreated, data)
}

// ErrorResponse writes a failed envelope.
func ErrorResponse(c echo.Context, statusCode int, code, message string) error {
	return c.JSON(statusCode, APIResponse{Success: false, Error: message, Code: code})
}

// BadRequestResponse writes a 400 with validation details from ReadAndValidateRequest.
func BadRequestResponse(c echo.Context, details interface{}) error {
	resp := APIResponse{Code: "ERR_BAD_REQUEST", Error: http.StatusText(http.StatusBadRequest)}
	if errs, ok := details.([]ValidationError); ok && len(errs) > 0 {
		resp.Details = errs
		resp.Error = errs[0].Message
		resp.Field = errs[0].Field
	}
	return c.JSON(http.StatusBadRequest, resp)
}

// UnauthorizedResponse writes unauthorized error.
func UnauthorizedResponse(c echo.Context, message string) error {
	return ErrorResponse(c, http.StatusUnauthorized, "ERR_UNAUTHORIZED", message)
}

// TooManyRequestsResponse writes a 429.
func TooManyRequestsResponse(c echo.Context, message string) error {
	return ErrorResponse(c, http.StatusTooManyRequests, "ERR_RATE_LIMITED", message)
}

// InternalServerErrorResponse writes internal server error.
func InternalServerErrorResponse(c echo.Context) error {
	return ErrorResponse(c, http.StatusInternalServerError, "ERR_INTERNAL", "Something went wrong")
}

// AppErrorResponse writes application error response.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return c.JSON(appErr.Status, APIResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
			Field: appErr.Field,
		})
	}
	return InternalServerErrorResponse(c)
}
