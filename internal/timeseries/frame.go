package timeseries

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Frame is a set of named columns sharing one date index. Column order is
// preserved from insertion.
type Frame struct {
	dates []time.Time
	order []string
	cols  map[string][]float64
}

// NewFrame creates an empty frame over the given date index.
func NewFrame(dates []time.Time) (*Frame, error) {
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return nil, fmt.Errorf("frame dates not strictly increasing at index %d (%s)", i, dates[i].Format("2006-01-02"))
		}
	}
	return &Frame{
		dates: append([]time.Time(nil), dates...),
		cols:  make(map[string][]float64),
	}, nil
}

// Merge assembles a frame from independently indexed series, outer-joining
// their date indices. Dates absent from a series yield missing values in its
// column.
func Merge(names []string, series []*Series) (*Frame, error) {
	if len(names) != len(series) {
		return nil, fmt.Errorf("merge length mismatch: %d names vs %d series", len(names), len(series))
	}
	seen := make(map[time.Time]struct{})
	var dates []time.Time
	for _, s := range series {
		for _, d := range s.dates {
			if _, ok := seen[d]; !ok {
				seen[d] = struct{}{}
				dates = append(dates, d)
			}
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	frame, err := NewFrame(dates)
	if err != nil {
		return nil, err
	}
	for i, name := range names {
		values := make([]float64, len(dates))
		for j, d := range dates {
			if v, ok := series[i].Value(d); ok {
				values[j] = v
			} else {
				values[j] = math.NaN()
			}
		}
		if err := frame.AddColumn(name, values); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

// AddColumn attaches a column aligned to the frame's date index.
func (f *Frame) AddColumn(name string, values []float64) error {
	if len(values) != len(f.dates) {
		return fmt.Errorf("column %q length %d does not match frame length %d", name, len(values), len(f.dates))
	}
	if _, exists := f.cols[name]; exists {
		return fmt.Errorf("column %q already present", name)
	}
	f.order = append(f.order, name)
	f.cols[name] = append([]float64(nil), values...)
	return nil
}

// AddSeries attaches a series as a column. The series index must equal the
// frame index.
func (f *Frame) AddSeries(name string, s *Series) error {
	if len(s.dates) != len(f.dates) {
		return fmt.Errorf("series %q length %d does not match frame length %d", name, s.Len(), len(f.dates))
	}
	for i := range f.dates {
		if !f.dates[i].Equal(s.dates[i]) {
			return fmt.Errorf("series %q index diverges from frame at %s", name, f.dates[i].Format("2006-01-02"))
		}
	}
	return f.AddColumn(name, s.values)
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.dates)
}

// Dates returns a copy of the date index.
func (f *Frame) Dates() []time.Time {
	return append([]time.Time(nil), f.dates...)
}

// Columns returns the column names in insertion order.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.order...)
}

// HasColumn reports whether the named column exists.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Column returns the named column as a series over the frame's index.
func (f *Frame) Column(name string) (*Series, bool) {
	values, ok := f.cols[name]
	if !ok {
		return nil, false
	}
	s, _ := New(f.dates, values)
	return s, true
}

// searchDate returns the insertion index for date.
func (f *Frame) searchDate(date time.Time) int {
	return sort.Search(len(f.dates), func(i int) bool {
		return !f.dates[i].Before(date)
	})
}

// Row returns the column values at exactly the given date.
func (f *Frame) Row(date time.Time) (map[string]float64, bool) {
	i := f.searchDate(date)
	if i >= len(f.dates) || !f.dates[i].Equal(date) {
		return nil, false
	}
	return f.rowAt(i), true
}

// RowAsOf returns the column values at the most recent date at or before the
// given date. It never looks forward.
func (f *Frame) RowAsOf(date time.Time) (map[string]float64, bool) {
	i := f.searchDate(date)
	if i < len(f.dates) && f.dates[i].Equal(date) {
		return f.rowAt(i), true
	}
	if i == 0 {
		return nil, false
	}
	return f.rowAt(i - 1), true
}

func (f *Frame) rowAt(i int) map[string]float64 {
	row := make(map[string]float64, len(f.order))
	for _, name := range f.order {
		row[name] = f.cols[name][i]
	}
	return row
}

// Intersect returns the dates present in both frames, in order.
func (f *Frame) Intersect(other *Frame) []time.Time {
	var common []time.Time
	for _, d := range f.dates {
		if _, ok := other.Row(d); ok {
			common = append(common, d)
		}
	}
	return common
}

// Select returns a new frame restricted to the given dates. Every date must
// exist in the frame.
func (f *Frame) Select(dates []time.Time) (*Frame, error) {
	out, err := NewFrame(dates)
	if err != nil {
		return nil, err
	}
	indices := make([]int, len(dates))
	for i, d := range dates {
		j := f.searchDate(d)
		if j >= len(f.dates) || !f.dates[j].Equal(d) {
			return nil, fmt.Errorf("date %s not present in frame", d.Format("2006-01-02"))
		}
		indices[i] = j
	}
	for _, name := range f.order {
		values := make([]float64, len(dates))
		for i, j := range indices {
			values[i] = f.cols[name][j]
		}
		if err := out.AddColumn(name, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}
