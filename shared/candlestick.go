package shared

import (
	"time"
)

// Sentiment represents the candlestick sentiment.
type Sentiment int

const (
	Neutral Sentiment = iota
	Bullish
	Bearish
)

// String stringifies the provided sentiment.
func (s Sentiment) String() string {
	switch s {
	case Neutral:
		return "neutral"
	case Bullish:
		return "bullish"
	case Bearish:
		return "bearish"
	default:
		return "unknown"
	}
}

// Observation represents a single timestamped price row. Rows carrying a single price have
// identical open, high, low and close values.
type Observation struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// NewPriceObservation creates an observation from a single price.
func NewPriceObservation(date time.Time, price float64) Observation {
	return Observation{
		Date:  date,
		Open:  price,
		High:  price,
		Low:   price,
		Close: price,
	}
}

// Candlestick represents a resampled OHLC bar. Date is the start of the bucket.
type Candlestick struct {
	Open   float64
	Low    float64
	High   float64
	Close  float64
	Volume float64
	Date   time.Time

	// Metadata.
	Timeframe TimeframeSpec
}

// FetchSentiment returns the provided candlestick's sentiment.
func (c *Candlestick) FetchSentiment() Sentiment {
	sentiment := c.Close - c.Open
	switch {
	case sentiment < 0:
		return Bearish
	case sentiment > 0:
		return Bullish
	default:
		return Neutral
	}
}

// Closes extracts the close prices of the provided candlesticks.
func Closes(candles []Candlestick) []float64 {
	closes := make([]float64, len(candles))
	for idx := range candles {
		closes[idx] = candles[idx].Close
	}

	return closes
}
