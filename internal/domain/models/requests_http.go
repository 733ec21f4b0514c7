package models

// Requests for roulette and prediction HTTP endpoints. Defined in domain for consistency and reuse.

// AddNumberRequest carries a scraped spin. Number is a pointer so that 0 passes "required".
type AddNumberRequest struct {
	Number    *int   `json:"number" validate:"required,min=0,max=36"`
	Timestamp *int64 `json:"timestamp" validate:"omitnil,gte=0"`
}

type PredictRequest struct {
	Type string `json:"type" default:"groups" validate:"oneof=groups individual sector color"`
}

type CheckResultRequest struct {
	PredictionID string `json:"prediction_id" validate:"required"`
	Number       *int   `json:"number" validate:"required,min=0,max=36"`
}

type ListRequest struct {
	Limit  int `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=500"`
	Offset int `query:"offset" json:"offset" validate:"gte=0"`
}
