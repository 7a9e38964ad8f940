package format

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// InvalidDate is the sentinel rendered for inputs that do not parse.
const InvalidDate = "Invalid Date"

// DisplayLayout is the en-US long form: full month name, numeric day,
// four digit year, two digit hour and minute.
const DisplayLayout = "January 2, 2006 at 03:04 PM"

// layouts accepted by Parse, tried in order. Layouts without a zone are
// read in the formatter's location.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"20060102T150405Z",
	"20060102_150405",
	"20060102",
	"2006-01-02_15-04-05",
	time.RFC1123Z,
	time.RFC1123,
	"January 2, 2006 15:04",
	"January 2, 2006",
	"2006-01",
	"2006",
}

// DateFormatter renders date-like values in a fixed location.
type DateFormatter struct {
	loc *time.Location
}

// NewDateFormatter returns a formatter rendering in loc (UTC when nil).
func NewDateFormatter(loc *time.Location) *DateFormatter {
	if loc == nil {
		loc = time.UTC
	}
	return &DateFormatter{loc: loc}
}

// Location returns the location dates are rendered in.
func (f *DateFormatter) Location() *time.Location {
	return f.loc
}

// Parse turns a string, time.Time or epoch-milliseconds number into a time.
func (f *DateFormatter) Parse(input any) (time.Time, error) {
	switch v := input.(type) {
	case time.Time:
		if v.IsZero() {
			return time.Time{}, errors.Wrap(ErrInvalidDate, "zero time")
		}
		return v, nil
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, errors.Wrap(ErrInvalidDate, "nil or zero time")
		}
		return *v, nil
	case int:
		return time.UnixMilli(int64(v)), nil
	case int32:
		return time.UnixMilli(int64(v)), nil
	case int64:
		return time.UnixMilli(v), nil
	case uint32:
		return time.UnixMilli(int64(v)), nil
	case float64:
		return time.UnixMilli(int64(v)), nil
	case string:
		return f.parseString(v)
	case nil:
		return time.Time{}, errors.Wrap(ErrInvalidDate, "nil input")
	}
	return time.Time{}, errors.Wrapf(ErrInvalidDate, "unsupported type %T", input)
}

func (f *DateFormatter) parseString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.Wrap(ErrInvalidDate, "empty string")
	}

	// Up to eight digits is a date ("2024", "20240315"), longer runs are
	// epoch milliseconds.
	if len(s) > 8 {
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms), nil
		}
	}

	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, f.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Wrapf(ErrInvalidDate, "unrecognised date %q", s)
}

// Format renders input with DisplayLayout, or InvalidDate when it does not
// parse.
func (f *DateFormatter) Format(input any) string {
	s, err := f.FormatStrict(input)
	if err != nil {
		return InvalidDate
	}
	return s
}

// FormatStrict is Format that reports unparseable input as ErrInvalidDate.
func (f *DateFormatter) FormatStrict(input any) (string, error) {
	t, err := f.Parse(input)
	if err != nil {
		return "", err
	}
	return t.In(f.loc).Format(DisplayLayout), nil
}

var defaultDates = NewDateFormatter(time.UTC)

// FormatDate renders input in UTC. See DateFormatter.Format.
func FormatDate(input any) string {
	return defaultDates.Format(input)
}

// FormatDateStrict renders input in UTC. See DateFormatter.FormatStrict.
func FormatDateStrict(input any) (string, error) {
	return defaultDates.FormatStrict(input)
}

// ParseDate parses input with the UTC formatter.
func ParseDate(input any) (time.Time, error) {
	return defaultDates.Parse(input)
}
