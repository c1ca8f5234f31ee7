package market

import (
	"github.com/cinar/indicator/v2/momentum"
	"github.com/shopspring/decimal"
)

const rsiPeriod = 14

// localRSI computes the RSI from the historical series when the
// indicator provider chain fails. Bars come newest first; the indicator
// consumes closings oldest first.
func localRSI(bars []Bar, period int) (float64, bool) {
	if len(bars) < period+1 {
		return 0, false
	}

	closings := make(chan float64, len(bars))
	for i := len(bars) - 1; i >= 0; i-- {
		closings <- bars[i].Close.InexactFloat64()
	}
	close(closings)

	rsi := momentum.NewRsiWithPeriod[float64](period)
	var values []float64
	for v := range rsi.Compute(closings) {
		values = append(values, v)
	}
	if len(values) == 0 {
		return 0, false
	}
	return values[len(values)-1], true
}

// priceChangePercent computes the close-to-close change over days bars
// as a percentage. Zero when the series is too short or the past close
// is 0.
func priceChangePercent(bars []Bar, days int) float64 {
	if len(bars) < 2 {
		return 0
	}

	current := bars[0].Close
	pastIdx := days
	if pastIdx > len(bars)-1 {
		pastIdx = len(bars) - 1
	}
	past := bars[pastIdx].Close

	if past.IsZero() {
		return 0
	}
	change, _ := current.Sub(past).Div(past).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	return change
}

// volumeTrendOf compares the 5-day mean volume with the prior 5-day mean.
// A shift beyond 20% in either direction tags the trend.
func volumeTrendOf(bars []Bar) VolumeTrend {
	if len(bars) < 10 {
		return VolumeNeutral
	}

	var recent, older int64
	for _, b := range bars[:5] {
		recent += b.Volume
	}
	for _, b := range bars[5:10] {
		older += b.Volume
	}

	if older == 0 {
		return VolumeNeutral
	}

	change := float64(recent-older) / float64(older)
	switch {
	case change > 0.2:
		return VolumeIncreasing
	case change < -0.2:
		return VolumeDecreasing
	default:
		return VolumeNeutral
	}
}
