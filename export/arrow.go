package export

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/dnldd/emachart/market"
	"github.com/dnldd/emachart/shared"
)

// arrowSchema is the columnar layout of arrow exports.
var arrowSchema = arrow.NewSchema([]arrow.Field{
	{Name: shared.TimestampColumn, Type: arrow.FixedWidthTypes.Timestamp_ms},
	{Name: "open", Type: arrow.PrimitiveTypes.Float64},
	{Name: "high", Type: arrow.PrimitiveTypes.Float64},
	{Name: "low", Type: arrow.PrimitiveTypes.Float64},
	{Name: "close", Type: arrow.PrimitiveTypes.Float64},
	{Name: "volume", Type: arrow.PrimitiveTypes.Float64},
	{Name: "EMA", Type: arrow.PrimitiveTypes.Float64},
}, nil)

// WriteArrow writes the candlesticks and their ema as an arrow ipc stream.
func WriteArrow(w io.Writer, series *market.Series) error {
	pool := memory.NewGoAllocator()

	builder := array.NewRecordBuilder(pool, arrowSchema)
	defer builder.Release()

	n := series.Len()
	timestamps := make([]arrow.Timestamp, n)
	opens := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	volumes := make([]float64, n)

	for idx := range series.Candles {
		candle := &series.Candles[idx]
		timestamps[idx] = arrow.Timestamp(candle.Date.UnixMilli())
		opens[idx] = candle.Open
		highs[idx] = candle.High
		lows[idx] = candle.Low
		closes[idx] = candle.Close
		volumes[idx] = candle.Volume
	}

	builder.Field(0).(*array.TimestampBuilder).AppendValues(timestamps, nil)
	builder.Field(1).(*array.Float64Builder).AppendValues(opens, nil)
	builder.Field(2).(*array.Float64Builder).AppendValues(highs, nil)
	builder.Field(3).(*array.Float64Builder).AppendValues(lows, nil)
	builder.Field(4).(*array.Float64Builder).AppendValues(closes, nil)
	builder.Field(5).(*array.Float64Builder).AppendValues(volumes, nil)
	builder.Field(6).(*array.Float64Builder).AppendValues(series.EMAValues(), nil)

	record := builder.NewRecord()
	defer record.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(arrowSchema), ipc.WithAllocator(pool))
	err := writer.Write(record)
	if err != nil {
		writer.Close()
		return fmt.Errorf("writing arrow record: %w", err)
	}

	err = writer.Close()
	if err != nil {
		return fmt.Errorf("closing arrow writer: %w", err)
	}

	return nil
}
