package repository

// Period is the lookback range of a price history request.
type Period string

const (
	Period6mo Period = "6mo"
	Period1y  Period = "1y"
	Period2y  Period = "2y"
	Period5y  Period = "5y"
	Period10y Period = "10y"
	PeriodMax Period = "max"
)

// IsValidPeriod returns true if p is a supported period.
func IsValidPeriod(p Period) bool {
	switch p {
	case Period6mo, Period1y, Period2y, Period5y, Period10y, PeriodMax:
		return true
	default:
		return false
	}
}

// DefaultPeriod returns the default period.
func DefaultPeriod() Period { return Period2y }

// NormalizePeriod converts raw string to a valid period (or default).
func NormalizePeriod(s string) Period {
	if s == "" {
		return DefaultPeriod()
	}
	p := Period(s)
	if IsValidPeriod(p) {
		return p
	}
	return DefaultPeriod()
}

// RangeParam maps a period to the upstream range parameter; "max" is capped at 10y.
func (p Period) RangeParam() string {
	if p == PeriodMax {
		return string(Period10y)
	}
	return string(p)
}
