package models

import (
	"math"
	"sort"
	"time"
)

// RecordsFromFrame extracts the persisted columns of frame. Undefined values
// become nil.
func RecordsFromFrame(ticker string, f *Frame) []MarketRecord {
	regimes, _ := f.Labels(ColRegime)
	out := make([]MarketRecord, f.Len())
	for i, ts := range f.Index() {
		rec := MarketRecord{
			Ticker: ticker,
			Date:   ts,
			Open:   f.optional(ColOpen, i),
			High:   f.optional(ColHigh, i),
			Low:    f.optional(ColLow, i),
			Close:  f.optional(ColClose, i),
			SMA200: f.optional(ColSMA200, i),
			RSI14:  f.optional(ColRSI14, i),
			ATR14:  f.optional(ColATR14, i),
			ATRZ:   f.optional(ColATRZ, i),
		}
		if v := f.optional(ColVolume, i); v != nil {
			vol := int64(math.Round(*v))
			rec.Volume = &vol
		}
		if regimes != nil && regimes[i] != "" {
			r := regimes[i]
			rec.Regime = &r
		}
		out[i] = rec
	}
	return out
}

// FrameFromRecords rebuilds a frame from stored rows. Rows are ordered by
// date and duplicate dates keep the last row.
func FrameFromRecords(records []MarketRecord) (*Frame, error) {
	rows := append([]MarketRecord(nil), records...)
	sort.SliceStable(rows, func(a, b int) bool { return rows[a].Date.Before(rows[b].Date) })
	dedup := rows[:0]
	for _, r := range rows {
		if n := len(dedup); n > 0 && dedup[n-1].Date.Equal(r.Date) {
			dedup[n-1] = r
			continue
		}
		dedup = append(dedup, r)
	}

	idx := make([]time.Time, len(dedup))
	for i, r := range dedup {
		idx[i] = r.Date
	}
	f, err := NewFrame(idx)
	if err != nil {
		return nil, err
	}
	num := map[string]func(MarketRecord) *float64{
		ColOpen:   func(r MarketRecord) *float64 { return r.Open },
		ColHigh:   func(r MarketRecord) *float64 { return r.High },
		ColLow:    func(r MarketRecord) *float64 { return r.Low },
		ColClose:  func(r MarketRecord) *float64 { return r.Close },
		ColSMA200: func(r MarketRecord) *float64 { return r.SMA200 },
		ColRSI14:  func(r MarketRecord) *float64 { return r.RSI14 },
		ColATR14:  func(r MarketRecord) *float64 { return r.ATR14 },
		ColATRZ:   func(r MarketRecord) *float64 { return r.ATRZ },
	}
	for _, name := range []string{ColOpen, ColHigh, ColLow, ColClose, ColVolume, ColSMA200, ColRSI14, ColATR14, ColATRZ} {
		vals := NaNs(len(dedup))
		for i, r := range dedup {
			if name == ColVolume {
				if r.Volume != nil {
					vals[i] = float64(*r.Volume)
				}
				continue
			}
			if p := num[name](r); p != nil {
				vals[i] = *p
			}
		}
		f.MustSet(name, vals)
	}
	labels := make([]string, len(dedup))
	for i, r := range dedup {
		if r.Regime != nil {
			labels[i] = *r.Regime
		}
	}
	if err := f.SetLabels(ColRegime, labels); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Frame) optional(name string, i int) *float64 {
	v, ok := f.Value(name, i)
	if !ok || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
