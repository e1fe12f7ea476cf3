package assumption

import (
	"errors"
	"math"
	"testing"
	"time"

	"dcf_valuation/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesOf(values ...float64) models.LineItemSeries {
	out := make(models.LineItemSeries, len(values))
	start := time.Date(2019, 12, 31, 0, 0, 0, 0, time.UTC)
	for i, v := range values {
		out[i] = models.Point{Period: start.AddDate(i, 0, 0), Value: v}
	}
	return out
}

func TestEstimateGrowthRate_ConstantGrowth(t *testing.T) {
	s := seriesOf(100, 110, 121, 133.1)

	bands := []Band{DefaultBand, {Low: 0, High: 100}, {Low: 10, High: 90}, {Low: 50, High: 50}, {Low: 10, High: 10}}
	for _, b := range bands {
		got, err := EstimateGrowthRate(s, b)
		require.NoError(t, err, "band %v", b)
		assert.InDelta(t, 0.10, got, 1e-9, "band %v", b)
	}
}

func TestEstimateGrowthRate_TrimsOutlier(t *testing.T) {
	// Changes: +10%, +10%, -50% (write-off), +120% (recovery), +10%
	s := seriesOf(100, 110, 121, 60.5, 133.1, 146.41)

	got, err := EstimateGrowthRate(s, DefaultBand)
	require.NoError(t, err)
	assert.InDelta(t, 0.10, got, 1e-9)
}

func TestEstimateGrowthRate_InsufficientData(t *testing.T) {
	for _, s := range []models.LineItemSeries{nil, seriesOf(), seriesOf(100)} {
		_, err := EstimateGrowthRate(s, DefaultBand)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInsufficientData), "got %v", err)
	}
}

func TestEstimateGrowthRate_TwoPointsHasNoDataInRange(t *testing.T) {
	_, err := EstimateGrowthRate(seriesOf(100, 110), DefaultBand)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoDataInRange)
}

func TestEstimateGrowthRate_ZeroBaseSkipped(t *testing.T) {
	// 0 -> 50 is undefined; leaves a single change, which cannot fill a band
	_, err := EstimateGrowthRate(seriesOf(0, 50, 55), DefaultBand)
	assert.ErrorIs(t, err, ErrNoDataInRange)
}

func TestEstimateGrowthRate_InvalidBand(t *testing.T) {
	s := seriesOf(100, 110, 121)
	for _, b := range []Band{{Low: -1, High: 75}, {Low: 25, High: 101}, {Low: 80, High: 20}} {
		_, err := EstimateGrowthRate(s, b)
		assert.ErrorIs(t, err, ErrInvalidBand)
	}
}

func TestPercentile_LinearInterpolation(t *testing.T) {
	values := []float64{4, 1, 3, 2}

	assert.Equal(t, 1.0, Percentile(values, 0))
	assert.Equal(t, 4.0, Percentile(values, 100))
	assert.InDelta(t, 1.75, Percentile(values, 25), 1e-12)
	assert.InDelta(t, 2.5, Percentile(values, 50), 1e-12)
	assert.InDelta(t, 3.25, Percentile(values, 75), 1e-12)
	assert.Equal(t, []float64{4, 1, 3, 2}, values, "input must not be reordered")
	assert.True(t, math.IsNaN(Percentile(nil, 50)))
}

func TestYearOverYear(t *testing.T) {
	got := YearOverYear([]float64{100, 150, 75})
	require.Len(t, got, 2)
	assert.InDelta(t, 0.5, got[0], 1e-12)
	assert.InDelta(t, -0.5, got[1], 1e-12)
	assert.Nil(t, YearOverYear([]float64{1}))
}
