package models

// Requests for forecast HTTP endpoints. Defined in domain for consistency and reuse.

type ForecastRequest struct {
	DaysAhead int  `query:"days_ahead" json:"days_ahead" default:"30" validate:"gte=1,lte=365"`
	Retrain   bool `query:"retrain" json:"retrain"`
}

type PipelineRunRequest struct {
	PipelineName string `json:"pipeline_name" default:"__default__" validate:"oneof=__default__ data_ingestion data_processing model_training inference"`
	Async        bool   `json:"async"`
}

type CurrentPriceRequest struct {
	Symbol string `query:"symbol" json:"symbol" default:"BTCUSDT" validate:"required,max=20"`
}

type RunHistoryRequest struct {
	Limit int `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=500"`
}
