package shared

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// DateLayout is the format layout for parsing dates.
	DateLayout = "2006-01-02 15:04:05"
)

// Unit represents the base unit of a timeframe.
type Unit int

const (
	Second Unit = iota
	Minute
	Hour
	Day
	Week
	Month
)

// unitCode pairs a timeframe unit with its token code.
type unitCode struct {
	code string
	unit Unit
}

// unitCodes lists the recognized unit codes, longest first so "mo" is never read as "m".
var unitCodes = []unitCode{
	{"mo", Month},
	{"w", Week},
	{"d", Day},
	{"h", Hour},
	{"m", Minute},
	{"s", Second},
}

// timeframePattern matches an optional numeric multiplier followed by unit letters.
var timeframePattern = regexp.MustCompile(`^([0-9]*)([a-zA-Z]+)$`)

// weekAnchor is the first monday after the unix epoch, weekly buckets start on mondays.
var weekAnchor = time.Date(1970, time.January, 5, 0, 0, 0, 0, time.UTC)

// String stringifies the provided unit as its token code.
func (u Unit) String() string {
	for idx := range unitCodes {
		if unitCodes[idx].unit == u {
			return unitCodes[idx].code
		}
	}

	return "unknown"
}

// duration returns the fixed width of a single unit. Months have no fixed width.
func (u Unit) duration() time.Duration {
	switch u {
	case Second:
		return time.Second
	case Minute:
		return time.Minute
	case Hour:
		return time.Hour
	case Day:
		return time.Hour * 24
	case Week:
		return time.Hour * 24 * 7
	default:
		return 0
	}
}

// TimeframeSpec represents a parsed resampling interval.
type TimeframeSpec struct {
	Multiplier int
	Unit       Unit
}

// UnitCodes returns the recognized unit codes, longest first.
func UnitCodes() []string {
	codes := make([]string, 0, len(unitCodes))
	for idx := range unitCodes {
		codes = append(codes, unitCodes[idx].code)
	}

	return codes
}

// ParseTimeframe parses a timeframe token of the form <digits><unit>, for example "1h",
// "15m" or "1mo". Unit codes are lower case: mo, w, d, h, m, s. The multiplier defaults to
// one when the digits are omitted, so "h" is equivalent to "1h".
func ParseTimeframe(token string) (TimeframeSpec, error) {
	matches := timeframePattern.FindStringSubmatch(token)
	if matches == nil {
		return TimeframeSpec{}, fmt.Errorf("%w: '%s' does not match <digits><unit>, choose from: %s "+
			"(with prefix number), example: '1h'", ErrInvalidTimeframe, token, strings.Join(UnitCodes(), ", "))
	}

	digits, letters := matches[1], matches[2]

	multiplier := 1
	if digits != "" {
		n, err := strconv.Atoi(digits)
		if err != nil {
			return TimeframeSpec{}, fmt.Errorf("%w: parsing multiplier of '%s': %v", ErrInvalidTimeframe, token, err)
		}
		if n < 1 {
			return TimeframeSpec{}, fmt.Errorf("%w: multiplier of '%s' must be at least 1", ErrInvalidTimeframe, token)
		}
		multiplier = n
	}

	for idx := range unitCodes {
		if letters != unitCodes[idx].code {
			continue
		}

		unit := unitCodes[idx].unit
		if width := unit.duration(); width > 0 && int64(multiplier) > math.MaxInt64/int64(width) {
			return TimeframeSpec{}, fmt.Errorf("%w: '%s' exceeds the maximum bucket width", ErrInvalidTimeframe, token)
		}

		return TimeframeSpec{Multiplier: multiplier, Unit: unit}, nil
	}

	return TimeframeSpec{}, fmt.Errorf("%w: unknown unit '%s' in '%s', choose from: %s",
		ErrInvalidTimeframe, letters, token, strings.Join(UnitCodes(), ", "))
}

// String returns the normalized timeframe token.
func (t TimeframeSpec) String() string {
	return strconv.Itoa(t.Multiplier) + t.Unit.String()
}

// Duration returns the fixed width of the timeframe. It is zero for month based timeframes,
// those are bucketed by calendar month.
func (t TimeframeSpec) Duration() time.Duration {
	return time.Duration(t.Multiplier) * t.Unit.duration()
}

// floorDiv divides rounding towards negative infinity.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}

	return q
}

// BucketStart returns the start of the bucket the provided time falls in. Buckets are aligned
// to the unix epoch in UTC so boundaries do not depend on where a series starts.
func (t TimeframeSpec) BucketStart(ts time.Time) time.Time {
	ts = ts.UTC()

	switch t.Unit {
	case Month:
		idx := int64(ts.Year())*12 + int64(ts.Month()-1)
		idx = floorDiv(idx, int64(t.Multiplier)) * int64(t.Multiplier)
		year := floorDiv(idx, 12)
		month := idx - year*12
		return time.Date(int(year), time.Month(month+1), 1, 0, 0, 0, 0, time.UTC)

	case Week:
		width := int64(t.Duration())
		offset := ts.Sub(weekAnchor).Nanoseconds()
		return weekAnchor.Add(time.Duration(floorDiv(offset, width) * width))

	default:
		width := int64(t.Duration())
		nanos := ts.UnixNano()
		return time.Unix(0, floorDiv(nanos, width)*width).UTC()
	}
}
