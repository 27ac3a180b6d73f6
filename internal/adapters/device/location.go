package device

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/placemap/internal/core/domain"
	"github.com/samirrijal/placemap/internal/core/ports"
)

// Location implements ports.DeviceLocation from what the client reports.
// Permission requests are forwarded to the client as session events.
type Location struct {
	sessionID string
	publisher ports.EventPublisher

	mu      sync.RWMutex
	granted bool
	last    *domain.Coordinate
}

// NewLocation creates a gateway with no permission and no known position.
func NewLocation(sessionID string, publisher ports.EventPublisher) *Location {
	return &Location{sessionID: sessionID, publisher: publisher}
}

func (l *Location) HasLocationPermission() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.granted
}

func (l *Location) RequestLocationPermission() {
	if l.publisher == nil {
		return
	}
	event := &domain.SessionEvent{SessionID: l.sessionID, Type: domain.EventPermissionRequested, At: time.Now()}
	if err := l.publisher.PublishSessionEvent(context.Background(), event); err != nil {
		slog.Warn("publish permission request failed", "session_id", l.sessionID, "error", err)
	}
}

// LastKnownLocation returns nothing until permission is granted and the
// client has reported a position.
func (l *Location) LastKnownLocation() (domain.Coordinate, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.granted || l.last == nil {
		return domain.Coordinate{}, false
	}
	return *l.last, true
}

func (l *Location) SetPermission(granted bool) {
	l.mu.Lock()
	l.granted = granted
	l.mu.Unlock()
}

func (l *Location) UpdateLocation(at domain.Coordinate) error {
	if err := at.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	l.last = &at
	l.mu.Unlock()
	return nil
}
