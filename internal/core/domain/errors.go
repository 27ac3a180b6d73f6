package domain

import "errors"

// User-facing failures of the search flow. Each maps to exactly one notice.
var (
	ErrEmptyInput      = errors.New("empty place query")
	ErrMissingEndpoint = errors.New("origin and destination are both required")
	ErrPlaceNotFound   = errors.New("place not found")
	ErrRouteResolution = errors.New("route endpoints could not be resolved")
	ErrMapNotReady     = errors.New("map is not ready")
)

// Causes wrapped by ErrPlaceNotFound and ErrRouteResolution.
var (
	ErrNoMatch             = errors.New("geocoder returned no match")
	ErrGeocoderUnavailable = errors.New("geocoder unavailable")
)

var (
	// ErrSuperseded is returned when a newer search on the same session was
	// issued while this one was geocoding. The stale result is discarded.
	ErrSuperseded = errors.New("search superseded by a newer request")

	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)
