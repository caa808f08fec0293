package models

// Requests for analytics HTTP endpoints. Defined in domain for consistency and reuse.

type DatasetRequest struct {
	Ticker string `query:"ticker" json:"ticker" default:"^GSPC" validate:"required,ticker"`
	Period string `query:"period" json:"period" default:"2y" validate:"oneof=6mo 1y 2y 5y 10y max"`
	Limit  int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=5000"`
}

type OverlayRequest struct {
	Ticker string `query:"ticker" json:"ticker" default:"^GSPC" validate:"required,ticker"`
	Period string `query:"period" json:"period" default:"2y" validate:"oneof=6mo 1y 2y 5y 10y max"`
}

type ScoreRequest struct {
	Ticker string `query:"ticker" json:"ticker" default:"^GSPC" validate:"required,ticker"`
	Period string `query:"period" json:"period" default:"5y" validate:"oneof=1y 2y 5y 10y max"`
}

type LiveRequest struct {
	Symbols string `query:"symbols" json:"symbols" default:"^GSPC,^IXIC,^VIX" validate:"required,max=256"`
}

type HistoryRequest struct {
	Ticker string `query:"ticker" json:"ticker" default:"^GSPC" validate:"required,ticker"`
	Limit  int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=5000"`
	// Since is an RFC3339 time, a calendar date or unix seconds.
	Since string `query:"since" json:"since"`
}

type StreamRequest struct {
	Ticker   string `query:"ticker" json:"ticker" default:"^GSPC" validate:"required,ticker"`
	Period   string `query:"period" json:"period" default:"2y" validate:"oneof=6mo 1y 2y 5y 10y max"`
	Interval int    `query:"interval" json:"interval" default:"60" validate:"gte=5,lte=3600"`
}
