package http

// APIResponse is the envelope every endpoint writes. Error is the
// human-readable message; Code, Field and Details classify it.
type APIResponse struct {
	Success bool              `json:"success" example:"true"`
	Error   string            `json:"error,omitempty" example:"number is required"`
	Code    string            `json:"code,omitempty" example:"ERR_BAD_REQUEST"`
	Field   string            `json:"field,omitempty" example:"number"`
	Details []ValidationError `json:"details,omitempty"`
	Data    interface{}       `json:"data,omitempty"`
}

// ValidationError represents validation error detail.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"number"`
	Message string                 `json:"message,omitempty" example:"number is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ListDataResponse represents paginated list response.
type ListDataResponse struct {
	Rows   interface{} `json:"rows"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit,omitempty"`
	Offset int         `json:"offset,omitempty"`
}
