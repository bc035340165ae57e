package chart

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dnldd/emachart/market"
	"github.com/dnldd/emachart/shared"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
)

// exampleSeries returns a small daily series.
func exampleSeries(t *testing.T) *market.Series {
	t.Helper()

	timeframe, err := shared.ParseTimeframe("1d")
	assert.NoError(t, err)

	start := time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)
	series, err := market.NewSeries([]shared.Observation{
		{Date: start, Open: 1, High: 1.5, Low: 0.5, Close: 1.2},
		{Date: start.AddDate(0, 0, 1), Open: 2, High: 2.5, Low: 1.5, Close: 2.2},
		{Date: start.AddDate(0, 0, 2), Open: 3.5, High: 3.5, Low: 2.5, Close: 3.2},
	}, timeframe, 5)
	assert.NoError(t, err)

	return series
}

func TestRendererConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RendererConfig
		wantErr bool
	}{
		{"valid", RendererConfig{Width: 800, Height: 600}, false},
		{"valid html output", RendererConfig{Width: 800, Height: 600, OutputPath: "chart.HTML"}, false},
		{"zero width", RendererConfig{Width: 0, Height: 600}, true},
		{"negative height", RendererConfig{Width: 800, Height: -1}, true},
		{"png output", RendererConfig{Width: 800, Height: 600, OutputPath: "chart.png"}, true},
	}

	for _, test := range tests {
		err := test.cfg.Validate()
		if test.wantErr && !errors.Is(err, shared.ErrInvalidParameter) {
			t.Errorf("%s: expected invalid parameter error, got %v", test.name, err)
		}
		if !test.wantErr && err != nil {
			t.Errorf("%s: unexpected error %v", test.name, err)
		}
	}
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer

	// Ensure the chart contains both series at the requested size.
	err := WriteHTML(&buf, exampleSeries(t), 800, 600)
	assert.NoError(t, err)

	html := buf.String()
	assert.True(t, strings.Contains(html, Title))
	assert.True(t, strings.Contains(html, "800px"))
	assert.True(t, strings.Contains(html, "600px"))
	assert.True(t, strings.Contains(html, "Candles"))
	assert.True(t, strings.Contains(html, "EMA"))
	assert.True(t, strings.Contains(html, "2 bullish, 1 bearish"))
}

func TestRender(t *testing.T) {
	output := filepath.Join(t.TempDir(), "test_output.html")

	var opened []string
	renderer, err := NewRenderer(&RendererConfig{
		Width:      800,
		Height:     600,
		OutputPath: output,
		Open: func(path string) error {
			opened = append(opened, path)
			return nil
		},
		Logger: &log.Logger,
	})
	assert.NoError(t, err)

	// Ensure the chart is written without being shown.
	err = renderer.Render(exampleSeries(t))
	assert.NoError(t, err)
	info, err := os.Stat(output)
	assert.NoError(t, err)
	assert.GreaterThan(t, info.Size(), int64(0))
	assert.Equal(t, len(opened), 0)

	// Ensure shown charts without an output path are written to a temporary file.
	renderer, err = NewRenderer(&RendererConfig{
		Width:  800,
		Height: 600,
		Show:   true,
		Open: func(path string) error {
			opened = append(opened, path)
			return errors.New("no display")
		},
		Logger: &log.Logger,
	})
	assert.NoError(t, err)

	err = renderer.Render(exampleSeries(t))
	assert.NoError(t, err)
	assert.Equal(t, len(opened), 1)
	defer os.Remove(opened[0])
	_, err = os.Stat(opened[0])
	assert.NoError(t, err)

	// Ensure disabled charts are not rendered.
	renderer, err = NewRenderer(&RendererConfig{Width: 800, Height: 600})
	assert.NoError(t, err)
	err = renderer.Render(exampleSeries(t))
	assert.NoError(t, err)
}
