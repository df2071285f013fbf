package feed

import (
	"fmt"
)

// NetworkError is a transport failure or a non-2xx response from the origin.
// StatusCode is 0 for transport failures.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP error: %d fetching %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ParseError reports a malformed syndication payload.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse feed: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
