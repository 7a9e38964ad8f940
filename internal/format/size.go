package format

import (
	"strconv"

	"github.com/cockroachdb/errors"
)

// UnknownSize is rendered by MustFormatFileSize when the count is invalid.
const UnknownSize = "Unknown size"

const unit = 1024

// sizeUnits is the unit table. Counts at or above 1024^4 are clamped to the
// last entry rather than indexing past it.
var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders a byte count in the largest unit that keeps the
// value at or above one, with two decimals ("1.50 KB").
func FormatFileSize(bytes int64) (string, error) {
	if bytes < 0 {
		return "", errors.Wrapf(ErrInvalidByteCount, "negative byte count %d", bytes)
	}
	if bytes == 0 {
		return "0 Bytes", nil
	}

	// floor(log1024(bytes)), computed on integers so exact powers of 1024
	// never land one unit short.
	exp := 0
	for n := bytes; n >= unit && exp < len(sizeUnits)-1; n /= unit {
		exp++
	}

	div := int64(1)
	for i := 0; i < exp; i++ {
		div *= unit
	}

	value := float64(bytes) / float64(div)
	return strconv.FormatFloat(value, 'f', 2, 64) + " " + sizeUnits[exp], nil
}

// MustFormatFileSize is FormatFileSize for templates and display fields:
// invalid counts render as UnknownSize.
func MustFormatFileSize(bytes int64) string {
	s, err := FormatFileSize(bytes)
	if err != nil {
		return UnknownSize
	}
	return s
}
