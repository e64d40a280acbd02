// Package timeseries provides the date-indexed series and frame types used
// throughout the simulation core. Values are float64 with NaN marking missing
// observations; dates are strictly increasing.
package timeseries

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Series is an ordered sequence of (date, value) pairs with strictly
// increasing dates. A NaN value represents a missing observation.
type Series struct {
	dates  []time.Time
	values []float64
}

// New creates a series from parallel date/value slices. Dates must be
// strictly increasing.
func New(dates []time.Time, values []float64) (*Series, error) {
	if len(dates) != len(values) {
		return nil, fmt.Errorf("series length mismatch: %d dates vs %d values", len(dates), len(values))
	}
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return nil, fmt.Errorf("series dates not strictly increasing at index %d (%s)", i, dates[i].Format("2006-01-02"))
		}
	}
	return &Series{
		dates:  append([]time.Time(nil), dates...),
		values: append([]float64(nil), values...),
	}, nil
}

// Empty returns a zero-length series.
func Empty() *Series {
	return &Series{}
}

// Constant returns a series holding the same value on every given date.
func Constant(dates []time.Time, value float64) *Series {
	values := make([]float64, len(dates))
	for i := range values {
		values[i] = value
	}
	s, _ := New(dates, values)
	return s
}

// Len returns the number of observations, missing or not.
func (s *Series) Len() int {
	return len(s.values)
}

// Date returns the date at index i.
func (s *Series) Date(i int) time.Time {
	return s.dates[i]
}

// At returns the value at index i.
func (s *Series) At(i int) float64 {
	return s.values[i]
}

// Dates returns a copy of the date index.
func (s *Series) Dates() []time.Time {
	return append([]time.Time(nil), s.dates...)
}

// Values returns a copy of the value slice.
func (s *Series) Values() []float64 {
	return append([]float64(nil), s.values...)
}

// Value returns the value at exactly the given date.
func (s *Series) Value(date time.Time) (float64, bool) {
	i := s.searchDate(date)
	if i < len(s.dates) && s.dates[i].Equal(date) {
		return s.values[i], true
	}
	return math.NaN(), false
}

// AsOf returns the most recent value at or before the given date. This is the
// only permitted form of fill: it never looks forward.
func (s *Series) AsOf(date time.Time) (float64, bool) {
	i := s.searchDate(date)
	if i < len(s.dates) && s.dates[i].Equal(date) {
		return s.values[i], true
	}
	if i == 0 {
		return math.NaN(), false
	}
	return s.values[i-1], true
}

// searchDate returns the insertion index for date.
func (s *Series) searchDate(date time.Time) int {
	return sort.Search(len(s.dates), func(i int) bool {
		return !s.dates[i].Before(date)
	})
}

// Slice returns the sub-series within [start, end] inclusive.
func (s *Series) Slice(start, end time.Time) *Series {
	lo := s.searchDate(start)
	hi := sort.Search(len(s.dates), func(i int) bool {
		return s.dates[i].After(end)
	})
	if lo >= hi {
		return Empty()
	}
	out, _ := New(s.dates[lo:hi], s.values[lo:hi])
	return out
}

// CountValid returns the number of non-missing observations.
func (s *Series) CountValid() int {
	n := 0
	for _, v := range s.values {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// ValidValues returns the non-missing observations in order.
func (s *Series) ValidValues() []float64 {
	out := make([]float64, 0, len(s.values))
	for _, v := range s.values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// sameIndex reports whether two series share an identical date index.
func (s *Series) sameIndex(other *Series) bool {
	if len(s.dates) != len(other.dates) {
		return false
	}
	for i := range s.dates {
		if !s.dates[i].Equal(other.dates[i]) {
			return false
		}
	}
	return true
}

// Sub returns s - other. Both series must share the same date index.
func (s *Series) Sub(other *Series) (*Series, error) {
	if !s.sameIndex(other) {
		return nil, fmt.Errorf("series index mismatch: %d vs %d observations", s.Len(), other.Len())
	}
	values := make([]float64, len(s.values))
	for i := range values {
		values[i] = s.values[i] - other.values[i]
	}
	return &Series{dates: append([]time.Time(nil), s.dates...), values: values}, nil
}

// MulScalar returns the series scaled by x. Missing values stay missing.
func (s *Series) MulScalar(x float64) *Series {
	values := make([]float64, len(s.values))
	for i, v := range s.values {
		values[i] = v * x
	}
	return &Series{dates: append([]time.Time(nil), s.dates...), values: values}
}

// Shift returns the series moved forward by k observations. The first k
// values become missing.
func (s *Series) Shift(k int) *Series {
	values := make([]float64, len(s.values))
	for i := range values {
		if i < k {
			values[i] = math.NaN()
		} else {
			values[i] = s.values[i-k]
		}
	}
	return &Series{dates: append([]time.Time(nil), s.dates...), values: values}
}

// PctChange returns the fractional change over k observations:
// v[i]/v[i-k] - 1. Undefined where either value is missing or the base is 0.
func (s *Series) PctChange(k int) *Series {
	values := make([]float64, len(s.values))
	for i := range values {
		if i < k {
			values[i] = math.NaN()
			continue
		}
		base := s.values[i-k]
		cur := s.values[i]
		if math.IsNaN(base) || math.IsNaN(cur) || base == 0 {
			values[i] = math.NaN()
			continue
		}
		values[i] = cur/base - 1
	}
	return &Series{dates: append([]time.Time(nil), s.dates...), values: values}
}

// Clip bounds every value to [lo, hi].
func (s *Series) Clip(lo, hi float64) *Series {
	values := make([]float64, len(s.values))
	for i, v := range s.values {
		switch {
		case math.IsNaN(v):
			values[i] = v
		case v < lo:
			values[i] = lo
		case v > hi:
			values[i] = hi
		default:
			values[i] = v
		}
	}
	return &Series{dates: append([]time.Time(nil), s.dates...), values: values}
}

// FillNA replaces missing values with x.
func (s *Series) FillNA(x float64) *Series {
	values := make([]float64, len(s.values))
	for i, v := range s.values {
		if math.IsNaN(v) {
			values[i] = x
		} else {
			values[i] = v
		}
	}
	return &Series{dates: append([]time.Time(nil), s.dates...), values: values}
}

// ForwardFill carries the last valid observation forward over gaps. Leading
// missing values remain missing.
func (s *Series) ForwardFill() *Series {
	values := make([]float64, len(s.values))
	last := math.NaN()
	for i, v := range s.values {
		if !math.IsNaN(v) {
			last = v
		}
		values[i] = last
	}
	return &Series{dates: append([]time.Time(nil), s.dates...), values: values}
}

// DropNA removes missing observations from the series.
func (s *Series) DropNA() *Series {
	dates := make([]time.Time, 0, len(s.dates))
	values := make([]float64, 0, len(s.values))
	for i, v := range s.values {
		if !math.IsNaN(v) {
			dates = append(dates, s.dates[i])
			values = append(values, v)
		}
	}
	return &Series{dates: dates, values: values}
}

// Mean returns the mean of the non-missing observations.
func (s *Series) Mean() float64 {
	valid := s.ValidValues()
	if len(valid) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range valid {
		sum += v
	}
	return sum / float64(len(valid))
}

// Std returns the sample standard deviation of the non-missing observations.
func (s *Series) Std() float64 {
	valid := s.ValidValues()
	if len(valid) < 2 {
		return 0
	}
	mean := s.Mean()
	sumSq := 0.0
	for _, v := range valid {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(valid)-1))
}

// Skew returns the adjusted Fisher-Pearson sample skewness of the non-missing
// observations, or 0 when fewer than three observations or zero variance make
// it undefined.
func (s *Series) Skew() float64 {
	valid := s.ValidValues()
	n := float64(len(valid))
	if n < 3 {
		return 0
	}
	mean := 0.0
	for _, v := range valid {
		mean += v
	}
	mean /= n
	var m2, m3 float64
	for _, v := range valid {
		d := v - mean
		m2 += d * d
		m3 += d * d * d
	}
	m2 /= n
	m3 /= n
	if m2 == 0 {
		return 0
	}
	g1 := m3 / math.Pow(m2, 1.5)
	return g1 * math.Sqrt(n*(n-1)) / (n - 2)
}
