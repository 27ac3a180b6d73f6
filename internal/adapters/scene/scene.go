package scene

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/placemap/internal/core/domain"
	"github.com/samirrijal/placemap/internal/core/ports"
)

// Display implements ports.RenderedDisplay. It keeps the rendered state of
// one session's map and publishes every mutation so clients can mirror it.
type Display struct {
	sessionID string
	publisher ports.EventPublisher

	mu         sync.Mutex
	markers    []domain.Marker
	lines      []domain.Polyline
	camera     *domain.Camera
	style      domain.MapStyle
	myLocation bool
	onMyLoc    func()
}

// New creates an empty Normal-style display. publisher may be nil.
func New(sessionID string, publisher ports.EventPublisher) *Display {
	return &Display{sessionID: sessionID, publisher: publisher}
}

func (d *Display) ClearMarkers() {
	d.mu.Lock()
	d.markers = nil
	d.mu.Unlock()
	d.publish(domain.EventMarkersCleared, nil)
}

func (d *Display) AddMarker(at domain.Coordinate, label string) {
	m := domain.Marker{Position: at, Title: label}
	d.mu.Lock()
	d.markers = append(d.markers, m)
	d.mu.Unlock()
	d.publish(domain.EventMarkerAdded, m)
}

func (d *Display) AddLine(from, to domain.Coordinate, color string, width float64) {
	l := domain.Polyline{Points: []domain.Coordinate{from, to}, Color: color, Width: width}
	d.mu.Lock()
	d.lines = append(d.lines, l)
	d.mu.Unlock()
	d.publish(domain.EventLineAdded, l)
}

func (d *Display) MoveCamera(target domain.Coordinate, zoom float64) {
	cam := domain.Camera{Target: target, Zoom: zoom}
	d.mu.Lock()
	d.camera = &cam
	d.mu.Unlock()
	d.publish(domain.EventCameraMoved, cam)
}

func (d *Display) SetStyle(style domain.MapStyle) {
	d.mu.Lock()
	d.style = style
	d.mu.Unlock()
	d.publish(domain.EventStyleChanged, style)
}

func (d *Display) SetMyLocationEnabled(enabled bool) {
	d.mu.Lock()
	changed := d.myLocation != enabled
	d.myLocation = enabled
	d.mu.Unlock()
	if changed {
		d.publish(domain.EventMyLocationToggled, enabled)
	}
}

func (d *Display) OnMyLocationButtonClicked(callback func()) {
	d.mu.Lock()
	d.onMyLoc = callback
	d.mu.Unlock()
}

// ClickMyLocationButton implements ports.RenderedDisplay. The callback runs
// without the display lock held since it mutates the display itself.
func (d *Display) ClickMyLocationButton() bool {
	d.mu.Lock()
	cb := d.onMyLoc
	enabled := d.myLocation
	d.mu.Unlock()

	if !enabled || cb == nil {
		return false
	}
	cb()
	return true
}

// Snapshot returns a deep copy of the rendered state.
func (d *Display) Snapshot() domain.Scene {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := domain.Scene{
		Markers:           append([]domain.Marker{}, d.markers...),
		Lines:             make([]domain.Polyline, len(d.lines)),
		Style:             d.style,
		MyLocationEnabled: d.myLocation,
	}
	for i, l := range d.lines {
		l.Points = append([]domain.Coordinate(nil), l.Points...)
		s.Lines[i] = l
	}
	if d.camera != nil {
		cam := *d.camera
		s.Camera = &cam
	}
	return s
}

func (d *Display) publish(typ string, payload any) {
	if d.publisher == nil {
		return
	}
	event := &domain.SessionEvent{SessionID: d.sessionID, Type: typ, Payload: payload, At: time.Now()}
	if err := d.publisher.PublishSessionEvent(context.Background(), event); err != nil {
		slog.Warn("publish scene event failed", "session_id", d.sessionID, "type", typ, "error", err)
	}
}
