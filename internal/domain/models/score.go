package models

// ScoreStatus tells a computed score apart from a neutral fallback.
type ScoreStatus string

const (
	ScoreComputed        ScoreStatus = "computed"
	ScoreNeutralFallback ScoreStatus = "neutral_fallback"
)

// ScoreResult is the output of the walk-forward scorer. Historical scores are
// aligned with the input index and a latest score holds a single value. On
// fallback every value is 0 and Err holds the cause.
type ScoreResult struct {
	Scores []float64
	Status ScoreStatus
	Err    error
	// Splits is the number of walk-forward splits evaluated.
	Splits int
	// Accuracy is the mean out-of-sample class accuracy across splits.
	Accuracy float64
}

// Fallback reports whether the scores are the neutral fallback.
func (r ScoreResult) Fallback() bool { return r.Status == ScoreNeutralFallback }

// NeutralScores builds a fallback result of length n.
func NeutralScores(n int, err error) ScoreResult {
	return ScoreResult{Scores: make([]float64, n), Status: ScoreNeutralFallback, Err: err}
}

// LatestScore is the score of the most recent feature row.
type LatestScore struct {
	Ticker string      `json:"ticker"`
	Date   string      `json:"date,omitempty"`
	Score  float64     `json:"score"`
	Status ScoreStatus `json:"status"`
	Error  string      `json:"error,omitempty"`
}
