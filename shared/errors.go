package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrDataSource is returned when the input data is missing, unreadable or malformed.
	ErrDataSource = errors.New("data source error")
	// ErrInvalidTimeframe is returned when a timeframe token is malformed or unrecognized.
	ErrInvalidTimeframe = errors.New("invalid timeframe")
	// ErrInvalidParameter is returned when a run parameter is out of range.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrMissingPath is returned when an export mode requires a destination path and none
	// was provided. It satisfies errors.Is(err, ErrInvalidParameter).
	ErrMissingPath = fmt.Errorf("%w: missing destination path", ErrInvalidParameter)
)
