// Package format holds the display helpers shared by the API and the HTML
// pages: toast notifications, date rendering and byte-size rendering.
package format

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidDate is returned in strict mode when an input cannot be
	// turned into a calendar value.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidByteCount is returned for negative byte counts.
	ErrInvalidByteCount = errors.New("invalid byte count")
)
