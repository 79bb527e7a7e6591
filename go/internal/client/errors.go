package client

import "fmt"

// MutationError is a submitted action the server rejected. It is surfaced
// verbatim as dialog text and never retried automatically; the user must
// re-trigger the action.
type MutationError struct {
	Message string
}

func (e *MutationError) Error() string {
	return e.Message
}

// GeolocationError is a failed position acquisition (denied, unavailable or
// timed out). Surfaced as dialog text; the gated action is not resubmitted.
type GeolocationError struct {
	Err error
}

func (e *GeolocationError) Error() string {
	return fmt.Sprintf("geolocation failed: %v", e.Err)
}

func (e *GeolocationError) Unwrap() error {
	return e.Err
}
