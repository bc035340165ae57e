package market

import (
	"math"
	"slices"
	"time"

	"github.com/dnldd/emachart/shared"
)

// Resample groups the provided observations into calendar aligned buckets of the provided
// timeframe and reduces each occupied bucket to a candlestick. Observations are stably
// sorted by timestamp first, the provided slice is left untouched. Observations with a
// non-finite price are treated as missing. Buckets without observations are omitted.
func Resample(observations []shared.Observation, timeframe shared.TimeframeSpec) []shared.Candlestick {
	candles := make([]shared.Candlestick, 0)
	if len(observations) == 0 {
		return candles
	}

	sorted := slices.DeleteFunc(slices.Clone(observations), func(obs shared.Observation) bool {
		return !finite(obs.Open) || !finite(obs.High) || !finite(obs.Low) || !finite(obs.Close)
	})
	slices.SortStableFunc(sorted, func(a, b shared.Observation) int {
		return a.Date.Compare(b.Date)
	})

	var current *shared.Candlestick
	var currentStart time.Time
	for idx := range sorted {
		obs := &sorted[idx]
		start := timeframe.BucketStart(obs.Date)

		if current == nil || !start.Equal(currentStart) {
			candles = append(candles, shared.Candlestick{
				Open:      obs.Open,
				High:      obs.High,
				Low:       obs.Low,
				Close:     obs.Close,
				Volume:    obs.Volume,
				Date:      start,
				Timeframe: timeframe,
			})
			current = &candles[len(candles)-1]
			currentStart = start
			continue
		}

		current.High = max(current.High, obs.High)
		current.Low = min(current.Low, obs.Low)
		current.Close = obs.Close
		current.Volume += obs.Volume
	}

	return candles
}

// finite returns whether the provided value is neither NaN nor infinite.
func finite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
