package timeseries

import (
	"math"
	"time"
)

// RollingMean computes the mean over a trailing window of observations. A
// value is produced once at least minPeriods non-missing observations are in
// the window, otherwise the output is missing.
func (s *Series) RollingMean(window, minPeriods int) *Series {
	if minPeriods < 1 {
		minPeriods = 1
	}
	values := make([]float64, len(s.values))
	for i := range values {
		sum, count := 0.0, 0
		for j := max(0, i-window+1); j <= i; j++ {
			if !math.IsNaN(s.values[j]) {
				sum += s.values[j]
				count++
			}
		}
		if count < minPeriods {
			values[i] = math.NaN()
		} else {
			values[i] = sum / float64(count)
		}
	}
	return &Series{dates: append([]time.Time(nil), s.dates...), values: values}
}

// RollingStd computes the sample standard deviation over a trailing window.
// At least two observations are required regardless of minPeriods.
func (s *Series) RollingStd(window, minPeriods int) *Series {
	if minPeriods < 2 {
		minPeriods = 2
	}
	values := make([]float64, len(s.values))
	for i := range values {
		sum, count := 0.0, 0
		for j := max(0, i-window+1); j <= i; j++ {
			if !math.IsNaN(s.values[j]) {
				sum += s.values[j]
				count++
			}
		}
		if count < minPeriods {
			values[i] = math.NaN()
			continue
		}
		mean := sum / float64(count)
		sumSq := 0.0
		for j := max(0, i-window+1); j <= i; j++ {
			if !math.IsNaN(s.values[j]) {
				d := s.values[j] - mean
				sumSq += d * d
			}
		}
		values[i] = math.Sqrt(sumSq / float64(count-1))
	}
	return &Series{dates: append([]time.Time(nil), s.dates...), values: values}
}

// RollingRankPct computes the percentile rank of the current observation
// within its trailing window, in (0, 1]. Ties receive their average rank. The
// window must be fully populated with non-missing observations, otherwise the
// output is missing.
func (s *Series) RollingRankPct(window int) *Series {
	values := make([]float64, len(s.values))
	for i := range values {
		cur := s.values[i]
		if math.IsNaN(cur) || i < window-1 {
			values[i] = math.NaN()
			continue
		}
		count, less, equal := 0, 0, 0
		complete := true
		for j := i - window + 1; j <= i; j++ {
			v := s.values[j]
			if math.IsNaN(v) {
				complete = false
				break
			}
			count++
			if v < cur {
				less++
			} else if v == cur {
				equal++
			}
		}
		if !complete || count < window {
			values[i] = math.NaN()
			continue
		}
		rank := float64(less) + (float64(equal)+1)/2
		values[i] = rank / float64(count)
	}
	return &Series{dates: append([]time.Time(nil), s.dates...), values: values}
}
