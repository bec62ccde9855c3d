package fetcher

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch matches every transport-level failure returned by Client.Fetch.
	ErrFetch = errors.New("fetch failed")
	// ErrTimeout matches fetch failures caused by the request timeout.
	ErrTimeout = errors.New("fetch timed out")
	// ErrUnexpectedStatus matches fetch failures caused by a non-200 response.
	ErrUnexpectedStatus = errors.New("unexpected status code")
	// ErrEmptyPlaylist is returned when a playlist yields no channels.
	ErrEmptyPlaylist = errors.New("playlist is empty or unparsable")
)

// FetchError describes a failed document fetch.
type FetchError struct {
	URL        string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("fetch %s: timed out: %v", e.URL, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

// Unwrap exposes ErrFetch, ErrTimeout or ErrUnexpectedStatus as applicable,
// and the underlying cause.
func (e *FetchError) Unwrap() []error {
	errs := []error{ErrFetch}
	if e.Timeout {
		errs = append(errs, ErrTimeout)
	}
	if e.StatusCode != 0 {
		errs = append(errs, ErrUnexpectedStatus)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
