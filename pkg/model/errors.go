package model

import "fmt"

// TransportError is a network failure or a non-2xx response on any
// WMS request.
type TransportError struct {
	URL    string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("get %s: %v", e.URL, e.Err)
	}

	return fmt.Sprintf("get %s: status %d", e.URL, e.Status)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// LoadError is an image that came back on a successful response but
// could not be decoded.
type LoadError struct {
	URL string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
