package domain

import (
	"fmt"
	"math"
)

// Coordinate represents a geographic coordinate (WGS 84).
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate reports ErrInvalidCoordinate when the point is off the globe.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return fmt.Errorf("%w: not a number", ErrInvalidCoordinate)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %.6f out of range [-90, 90]", ErrInvalidCoordinate, c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %.6f out of range [-180, 180]", ErrInvalidCoordinate, c.Lon)
	}
	return nil
}

// Place is a geocoded coordinate with the address line the geocoder returned.
type Place struct {
	Location Coordinate `json:"location"`
	Label    string     `json:"label"`
}

// RouteEndpoints is a committed origin/destination pair.
type RouteEndpoints struct {
	Origin      Place `json:"origin"`
	Destination Place `json:"destination"`
	// DistanceMeters is the great-circle length of the drawn line.
	DistanceMeters float64 `json:"distance_meters"`
}
