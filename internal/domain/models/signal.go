package models

import "time"

// Candle represents an OHLCV record for one bar of the price series.
type Candle struct {
	Bucket time.Time `json:"date"`
	Symbol string    `json:"symbol,omitempty"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Observation is one dated value of a macro series.
type Observation struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// MacroSeriesSummary is the latest known value of a macro series.
type MacroSeriesSummary struct {
	Value any    `json:"value"`
	Date  string `json:"date"`
}

// LiveQuote is an intraday quote for a symbol.
type LiveQuote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Change    float64   `json:"change"`
	PctChange float64   `json:"pct_change"`
	Timestamp time.Time `json:"timestamp"`
}

// MarketRecord is the persisted subset of an enriched dataset row.
type MarketRecord struct {
	Ticker string    `db:"ticker"`
	Date   time.Time `db:"date"`
	Open   *float64  `db:"open"`
	High   *float64  `db:"high"`
	Low    *float64  `db:"low"`
	Close  *float64  `db:"close"`
	Volume *int64    `db:"volume"`
	SMA200 *float64  `db:"sma_200"`
	RSI14  *float64  `db:"rsi_14"`
	ATR14  *float64  `db:"atr_14"`
	ATRZ   *float64  `db:"atr_z"`
	Regime *string   `db:"regime"`
}
