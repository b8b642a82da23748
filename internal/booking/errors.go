package booking

import (
	"errors"
	"strings"
)

var (
	ErrNotFound        = errors.New("booking not found")
	ErrSpotNotFound    = errors.New("parking spot not found")
	ErrForbidden       = errors.New("you don't have permission to access this booking")
	ErrConflict        = errors.New("the spot is already booked for an overlapping time")
	ErrSpotUnavailable = errors.New("parking spot is not available")
	ErrNotActive       = errors.New("booking is not active")
	ErrSpotBusy        = errors.New("spot is being booked by another request, try again")
)

// ValidationError aggregates field-level failures so callers can
// report them all at once.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

func (e *ValidationError) add(msg string) {
	e.Fields = append(e.Fields, msg)
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
