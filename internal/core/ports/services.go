package ports

import (
	"context"

	"github.com/samirrijal/placemap/internal/core/domain"
)

// Geocoder resolves free text to places.
type Geocoder interface {
	// Resolve returns at most maxResults matches, best first. No match is an
	// empty slice, not an error; transport and upstream failures wrap
	// domain.ErrGeocoderUnavailable.
	Resolve(ctx context.Context, text string, maxResults int) ([]domain.Place, error)
}

// MapDisplay is the imperative surface of a rendered map.
type MapDisplay interface {
	ClearMarkers()
	AddMarker(at domain.Coordinate, label string)
	AddLine(from, to domain.Coordinate, color string, width float64)
	MoveCamera(target domain.Coordinate, zoom float64)
	SetStyle(style domain.MapStyle)
	SetMyLocationEnabled(enabled bool)
	OnMyLocationButtonClicked(callback func())
}

// LocationGateway supplies the device position and the location permission.
type LocationGateway interface {
	HasLocationPermission() bool
	// RequestLocationPermission asks the device; the answer arrives later
	// through the session's permission-result handler.
	RequestLocationPermission()
	LastKnownLocation() (domain.Coordinate, bool)
}

// Notifier shows a transient message to the user.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// EventPublisher publishes session events to a message broker.
type EventPublisher interface {
	PublishSessionEvent(ctx context.Context, event *domain.SessionEvent) error
}

// EventSubscriber delivers raw session events for one session.
type EventSubscriber interface {
	SubscribeSession(sessionID string, handler func(data []byte)) (unsubscribe func(), err error)
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// RenderedDisplay is a MapDisplay whose rendered state clients can observe.
type RenderedDisplay interface {
	MapDisplay
	Snapshot() domain.Scene
	// ClickMyLocationButton fires the registered my-location callback.
	// It reports false when my-location is disabled or no callback is set.
	ClickMyLocationButton() bool
}

// DeviceLocation is a LocationGateway fed by the client device.
type DeviceLocation interface {
	LocationGateway
	SetPermission(granted bool)
	UpdateLocation(at domain.Coordinate) error
}
