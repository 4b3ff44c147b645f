package relay

import "errors"

var (
	// ErrNotFound is returned when a pin, button or group lookup has no match.
	ErrNotFound = errors.New("not found")
	// ErrAmbiguous is returned by strict lookups that match more than one pin.
	ErrAmbiguous = errors.New("ambiguous name")
	// ErrParse marks malformed or incomplete configuration sources.
	ErrParse = errors.New("parse error")
	// ErrBusy is returned when the controller lock cannot be acquired in time.
	ErrBusy = errors.New("controller busy")
	// ErrGuardViolation is returned by the strict guard policy when an activation is refused.
	ErrGuardViolation = errors.New("guard violation")
)
