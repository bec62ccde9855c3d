package epg

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedTimestamp is returned when a guide timestamp cannot be read.
var ErrMalformedTimestamp = errors.New("malformed guide timestamp")

const timestampLayout = "20060102150405"

// ParseTimestamp reads an XMLTV start/stop value. Only the leading
// YYYYMMDDHHMMSS digits are used and the result is always UTC: a trailing
// offset such as " +0200" is ignored, so "20240101180000 +0200" and
// "20240101180000" name the same instant.
func ParseTimestamp(s string) (time.Time, error) {
	if len(s) < len(timestampLayout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
	}
	t, err := time.ParseInLocation(timestampLayout, s[:len(timestampLayout)], time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrMalformedTimestamp, s, err)
	}
	return t, nil
}
