package indicator

import (
	"fmt"
	"time"

	"github.com/dnldd/emachart/shared"
	"go.uber.org/atomic"
)

// EMA represents a unit EMA entry for a resampled bar.
type EMA struct {
	Value float64
	Date  time.Time
}

// EMAGenerator represents the Exponential Moving Average indicator. It uses the
// non-adjusted recurrence, seeded with the first close.
type EMAGenerator struct {
	Window   int
	Alpha    float64
	Count    atomic.Int64
	Previous atomic.Float64
}

// NewEMAGenerator initializes an EMA indicator for the provided window length.
func NewEMAGenerator(window int) (*EMAGenerator, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: ema length should be a positive integer, got %d",
			shared.ErrInvalidParameter, window)
	}

	return &EMAGenerator{
		Window: window,
		Alpha:  2 / float64(window+1),
	}, nil
}

// Next advances the indicator with the provided value and returns the new average.
func (e *EMAGenerator) Next(value float64) float64 {
	if e.Count.Inc() == 1 {
		e.Previous.Store(value)
		return value
	}

	// The explicit conversions keep the compiler from fusing the multiply-adds.
	next := float64(e.Alpha*value) + float64((1-e.Alpha)*e.Previous.Load())
	e.Previous.Store(next)

	return next
}

// ComputeEMA returns the exponential moving average of the provided closes, one value per
// close. The first value equals the first close.
func ComputeEMA(closes []float64, window int) ([]float64, error) {
	generator, err := NewEMAGenerator(window)
	if err != nil {
		return nil, err
	}

	values := make([]float64, len(closes))
	for idx := range closes {
		values[idx] = generator.Next(closes[idx])
	}

	return values, nil
}

// SeriesEMA returns the exponential moving average of the provided candlesticks' closes,
// dated by the candlesticks' bucket starts.
func SeriesEMA(candles []shared.Candlestick, window int) ([]EMA, error) {
	values, err := ComputeEMA(shared.Closes(candles), window)
	if err != nil {
		return nil, err
	}

	series := make([]EMA, len(candles))
	for idx := range candles {
		series[idx] = EMA{
			Value: values[idx],
			Date:  candles[idx].Date,
		}
	}

	return series, nil
}
