// Package assumption derives forecasting assumptions from reported history.
// The main assumption is a representative year-over-year growth rate with
// one-off swings trimmed away by a percentile band.
package assumption

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"dcf_valuation/pkg/models"
)

var (
	// ErrInsufficientData is returned when fewer than two defined points exist
	ErrInsufficientData = errors.New("insufficient data to estimate growth")
	// ErrNoDataInRange is returned when the percentile band keeps no observation
	ErrNoDataInRange = errors.New("no growth rates within percentile band")
	// ErrInvalidBand is returned for percentile bounds outside 0..100 or inverted
	ErrInvalidBand = errors.New("invalid percentile band")
)

// Band is an inclusive percentile interval, e.g. {25, 75}
type Band struct {
	Low  float64
	High float64
}

// DefaultBand keeps the interquartile range
var DefaultBand = Band{Low: 25, High: 75}

func (b Band) validate() error {
	if b.Low < 0 || b.High > 100 || b.Low > b.High || math.IsNaN(b.Low) || math.IsNaN(b.High) {
		return fmt.Errorf("%w: [%g, %g]", ErrInvalidBand, b.Low, b.High)
	}
	return nil
}

// EstimateGrowthRate returns the trimmed mean of year-over-year changes.
//
// The series must be ascending and hold at least two defined points. A
// single observed change cannot populate a band, so two-point series fail
// with ErrNoDataInRange rather than echoing that lone change back.
func EstimateGrowthRate(series models.LineItemSeries, band Band) (float64, error) {
	if err := band.validate(); err != nil {
		return 0, err
	}
	if len(series) < 2 {
		return 0, fmt.Errorf("%w: have %d points, need 2", ErrInsufficientData, len(series))
	}

	changes := YearOverYear(series.Values())
	if len(changes) < 2 {
		return 0, fmt.Errorf("%w: %d growth observation(s) cannot fill band [%g, %g]",
			ErrNoDataInRange, len(changes), band.Low, band.High)
	}

	lower := Percentile(changes, band.Low)
	upper := Percentile(changes, band.High)

	// Bounds get a few ulps of slack so a constant-growth series with
	// rounding noise is never split by an interpolated percentile.
	lower -= boundSlack(lower)
	upper += boundSlack(upper)

	kept := make([]float64, 0, len(changes))
	for _, c := range changes {
		if c >= lower && c <= upper {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return 0, fmt.Errorf("%w: band [%g, %g] -> [%g, %g]", ErrNoDataInRange, band.Low, band.High, lower, upper)
	}

	return Mean(kept), nil
}

func boundSlack(v float64) float64 {
	return 1e-12 * math.Max(1, math.Abs(v))
}

// YearOverYear computes fractional change between consecutive values.
// Changes off a zero base are not finite and are skipped.
func YearOverYear(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev == 0 {
			continue
		}
		change := values[i]/prev - 1
		if math.IsNaN(change) || math.IsInf(change, 0) {
			continue
		}
		out = append(out, change)
	}
	return out
}

// Percentile returns the p-th percentile (0..100) using linear interpolation
// between closest ranks. The input is not modified.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Mean is the arithmetic mean, NaN for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
