package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrUnorderedIndex is returned when timestamps are not strictly increasing.
	ErrUnorderedIndex = errors.New("index must be strictly increasing")
	// ErrMissingInput is returned when a required column is absent.
	ErrMissingInput = errors.New("required column missing")
	// ErrInsufficientHistory is returned when rolling windows never fill.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrLengthMismatch is returned when a column does not match the index length.
	ErrLengthMismatch = errors.New("column length does not match index")
)

// Frame is an in-memory time series table keyed by a strictly increasing
// timestamp index. Numeric columns use NaN for undefined values.
type Frame struct {
	index  []time.Time
	cols   map[string][]float64
	labels map[string][]string
	order  []string
}

// NewFrame creates an empty frame over the given index.
func NewFrame(index []time.Time) (*Frame, error) {
	for i := 1; i < len(index); i++ {
		if !index[i].After(index[i-1]) {
			return nil, fmt.Errorf("row %d (%s): %w", i, index[i].Format(time.RFC3339), ErrUnorderedIndex)
		}
	}
	idx := make([]time.Time, len(index))
	copy(idx, index)
	return &Frame{
		index:  idx,
		cols:   make(map[string][]float64),
		labels: make(map[string][]string),
	}, nil
}

// FrameFromCandles builds a frame with Open/High/Low/Close/Volume columns.
func FrameFromCandles(candles []Candle) (*Frame, error) {
	idx := make([]time.Time, len(candles))
	open := make([]float64, len(candles))
	high := make([]float64, len(candles))
	low := make([]float64, len(candles))
	cls := make([]float64, len(candles))
	vol := make([]float64, len(candles))
	for i, c := range candles {
		idx[i] = c.Bucket
		open[i], high[i], low[i], cls[i], vol[i] = c.Open, c.High, c.Low, c.Close, c.Volume
	}
	f, err := NewFrame(idx)
	if err != nil {
		return nil, err
	}
	f.cols[ColOpen], f.cols[ColHigh], f.cols[ColLow], f.cols[ColClose], f.cols[ColVolume] = open, high, low, cls, vol
	f.order = append(f.order, ColOpen, ColHigh, ColLow, ColClose, ColVolume)
	return f, nil
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.index) }

// Index returns the timestamp index. Callers must not modify it.
func (f *Frame) Index() []time.Time { return f.index }

// Names returns numeric and label column names in insertion order.
func (f *Frame) Names() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Has reports whether a numeric column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Column returns a numeric column. Callers must not modify it.
func (f *Frame) Column(name string) ([]float64, bool) {
	c, ok := f.cols[name]
	return c, ok
}

// ColumnOr returns the named column or a constant column of def when absent.
func (f *Frame) ColumnOr(name string, def float64) []float64 {
	if c, ok := f.cols[name]; ok {
		return c
	}
	return Constant(f.Len(), def)
}

// Value returns the value at row i; ok is false when the column is absent,
// the row is out of range or the value is undefined.
func (f *Frame) Value(name string, i int) (float64, bool) {
	c, ok := f.cols[name]
	if !ok || i < 0 || i >= len(c) || math.IsNaN(c[i]) {
		return 0, false
	}
	return c[i], true
}

// ValueOr returns the value at row i or def.
func (f *Frame) ValueOr(name string, i int, def float64) float64 {
	if v, ok := f.Value(name, i); ok {
		return v
	}
	return def
}

// Set stores a copy of vals under name, overwriting any previous column.
func (f *Frame) Set(name string, vals []float64) error {
	if len(vals) != f.Len() {
		return fmt.Errorf("set %s (%d != %d): %w", name, len(vals), f.Len(), ErrLengthMismatch)
	}
	c := make([]float64, len(vals))
	copy(c, vals)
	if _, exists := f.cols[name]; !exists {
		if _, isLabel := f.labels[name]; !isLabel {
			f.order = append(f.order, name)
		}
	}
	f.cols[name] = c
	return nil
}

// MustSet is Set for callers that built vals from Len().
func (f *Frame) MustSet(name string, vals []float64) {
	if err := f.Set(name, vals); err != nil {
		panic(err)
	}
}

// SetLabels stores a string column.
func (f *Frame) SetLabels(name string, vals []string) error {
	if len(vals) != f.Len() {
		return fmt.Errorf("set labels %s (%d != %d): %w", name, len(vals), f.Len(), ErrLengthMismatch)
	}
	c := make([]string, len(vals))
	copy(c, vals)
	if _, exists := f.labels[name]; !exists {
		if _, isNum := f.cols[name]; !isNum {
			f.order = append(f.order, name)
		}
	}
	f.labels[name] = c
	return nil
}

// Labels returns a string column.
func (f *Frame) Labels(name string) ([]string, bool) {
	c, ok := f.labels[name]
	return c, ok
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := &Frame{
		index:  make([]time.Time, len(f.index)),
		cols:   make(map[string][]float64, len(f.cols)),
		labels: make(map[string][]string, len(f.labels)),
		order:  make([]string, len(f.order)),
	}
	copy(out.index, f.index)
	copy(out.order, f.order)
	for k, v := range f.cols {
		c := make([]float64, len(v))
		copy(c, v)
		out.cols[k] = c
	}
	for k, v := range f.labels {
		c := make([]string, len(v))
		copy(c, v)
		out.labels[k] = c
	}
	return out
}

// Tail returns a copy holding the last n rows.
func (f *Frame) Tail(n int) *Frame {
	if n <= 0 || n >= f.Len() {
		return f.Clone()
	}
	start := f.Len() - n
	out := &Frame{
		index:  append([]time.Time(nil), f.index[start:]...),
		cols:   make(map[string][]float64, len(f.cols)),
		labels: make(map[string][]string, len(f.labels)),
		order:  append([]string(nil), f.order...),
	}
	for k, v := range f.cols {
		out.cols[k] = append([]float64(nil), v[start:]...)
	}
	for k, v := range f.labels {
		out.labels[k] = append([]string(nil), v[start:]...)
	}
	return out
}

// Select returns a copy holding only the given rows, in the given order.
// rows must be strictly increasing positions.
func (f *Frame) Select(rows []int) *Frame {
	out := &Frame{
		index:  make([]time.Time, len(rows)),
		cols:   make(map[string][]float64, len(f.cols)),
		labels: make(map[string][]string, len(f.labels)),
		order:  append([]string(nil), f.order...),
	}
	for j, i := range rows {
		out.index[j] = f.index[i]
	}
	for k, v := range f.cols {
		c := make([]float64, len(rows))
		for j, i := range rows {
			c[j] = v[i]
		}
		out.cols[k] = c
	}
	for k, v := range f.labels {
		c := make([]string, len(rows))
		for j, i := range rows {
			c[j] = v[i]
		}
		out.labels[k] = c
	}
	return out
}

// Row returns row i as a map. Undefined numeric values are returned as nil.
func (f *Frame) Row(i int) map[string]any {
	row := make(map[string]any, len(f.order)+1)
	row["Date"] = f.index[i]
	for _, name := range f.order {
		if c, ok := f.cols[name]; ok {
			if math.IsNaN(c[i]) || math.IsInf(c[i], 0) {
				row[name] = nil
			} else {
				row[name] = c[i]
			}
			continue
		}
		if l, ok := f.labels[name]; ok {
			row[name] = l[i]
		}
	}
	return row
}

// Constant returns a slice of n copies of v.
func Constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// NaNs returns a slice of n undefined values.
func NaNs(n int) []float64 { return Constant(n, math.NaN()) }
