package market

import (
	"fmt"

	"github.com/dnldd/emachart/indicator"
	"github.com/dnldd/emachart/shared"
)

// Series represents resampled candlesticks with their aligned exponential moving average.
type Series struct {
	Timeframe shared.TimeframeSpec
	Window    int
	Candles   []shared.Candlestick
	EMA       []indicator.EMA
}

// NewSeries resamples the provided observations and computes the exponential moving
// average of the resulting closes. The window is validated before any resampling.
func NewSeries(observations []shared.Observation, timeframe shared.TimeframeSpec, window int) (*Series, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: ema length should be a positive integer, got %d",
			shared.ErrInvalidParameter, window)
	}

	candles := Resample(observations, timeframe)
	ema, err := indicator.SeriesEMA(candles, window)
	if err != nil {
		return nil, fmt.Errorf("computing ema: %w", err)
	}

	return &Series{
		Timeframe: timeframe,
		Window:    window,
		Candles:   candles,
		EMA:       ema,
	}, nil
}

// Len returns the number of candlesticks in the series.
func (s *Series) Len() int {
	return len(s.Candles)
}

// EMAValues returns the exponential moving average values of the series.
func (s *Series) EMAValues() []float64 {
	values := make([]float64, len(s.EMA))
	for idx := range s.EMA {
		values[idx] = s.EMA[idx].Value
	}

	return values
}
