package timeseries

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRollingMeanMinPeriods(t *testing.T) {
	s := mustSeries(t, []float64{1, 2, 3, 4})
	out := s.RollingMean(3, 2)

	assert.True(t, math.IsNaN(out.At(0)))
	assert.InDelta(t, 1.5, out.At(1), 1e-12)
	assert.InDelta(t, 2.0, out.At(2), 1e-12)
	assert.InDelta(t, 3.0, out.At(3), 1e-12)
}

func TestRollingMeanSkipsMissing(t *testing.T) {
	s := mustSeries(t, []float64{1, math.NaN(), 3, 5})
	out := s.RollingMean(3, 2)

	// The missing observation neither contributes nor counts toward
	// minPeriods.
	assert.True(t, math.IsNaN(out.At(1)))
	assert.InDelta(t, 2.0, out.At(2), 1e-12)
	assert.InDelta(t, 4.0, out.At(3), 1e-12)
}

func TestRollingStd(t *testing.T) {
	s := mustSeries(t, []float64{1, 2, 3, 4})
	out := s.RollingStd(3, 2)

	assert.True(t, math.IsNaN(out.At(0)))
	assert.InDelta(t, math.Sqrt(0.5), out.At(1), 1e-12)
	assert.InDelta(t, 1.0, out.At(2), 1e-12)
}

func TestRollingStdConstantWindowIsZero(t *testing.T) {
	s := mustSeries(t, []float64{5, 5, 5, 5})
	out := s.RollingStd(3, 2)
	assert.Equal(t, 0.0, out.At(3))
}

func TestRollingRankPct(t *testing.T) {
	s := mustSeries(t, []float64{1, 3, 2, 4})
	out := s.RollingRankPct(3)

	assert.True(t, math.IsNaN(out.At(0)))
	assert.True(t, math.IsNaN(out.At(1)))
	// Window [1,3,2]: 2 ranks above one of three values.
	assert.InDelta(t, 2.0/3.0, out.At(2), 1e-12)
	// Window [3,2,4]: 4 is the maximum.
	assert.InDelta(t, 1.0, out.At(3), 1e-12)
}

func TestRollingRankPctTiesAverage(t *testing.T) {
	s := mustSeries(t, []float64{2, 2, 2})
	out := s.RollingRankPct(3)
	// Three-way tie: average rank 2 of 3.
	assert.InDelta(t, 2.0/3.0, out.At(2), 1e-12)
}

func TestRollingRankPctRequiresFullWindow(t *testing.T) {
	s := mustSeries(t, []float64{1, math.NaN(), 2, 3})
	out := s.RollingRankPct(3)
	assert.True(t, math.IsNaN(out.At(2)))
	assert.True(t, math.IsNaN(out.At(3)))
}
