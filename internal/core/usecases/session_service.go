package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/placemap/internal/core/domain"
	"github.com/samirrijal/placemap/internal/core/ports"
	"github.com/samirrijal/placemap/internal/pkg/metrics"
)

// ErrSessionLimit is returned when the service already holds MaxSessions.
var ErrSessionLimit = errors.New("session limit reached")

// DisplayFactory builds the map display of a session once its map is ready.
type DisplayFactory func(sessionID string) ports.RenderedDisplay

// LocationFactory builds the device location gateway of a session.
type LocationFactory func(sessionID string) ports.DeviceLocation

// SessionOptions configures a SessionService.
type SessionOptions struct {
	IdleTTL     time.Duration
	MaxSessions int
	// Now overrides the clock used for idle tracking.
	Now func() time.Time
}

// Session is one map client: a controller plus the adapters it drives.
type Session struct {
	ID         string
	controller *SearchController
	location   ports.DeviceLocation
	notices    *sessionNotifier

	mu        sync.Mutex
	display   ports.RenderedDisplay
	createdAt time.Time
	lastSeen  time.Time
}

// SessionService creates, looks up and expires map sessions.
type SessionService struct {
	geocoder  ports.Geocoder
	publisher ports.EventPublisher
	displays  DisplayFactory
	locations LocationFactory
	opts      SessionOptions
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionService creates a new SessionService. publisher may be nil.
func NewSessionService(geocoder ports.Geocoder, publisher ports.EventPublisher, displays DisplayFactory, locations LocationFactory, opts SessionOptions) *SessionService {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 30 * time.Minute
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 10000
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &SessionService{
		geocoder:  geocoder,
		publisher: publisher,
		displays:  displays,
		locations: locations,
		opts:      opts,
		now:       now,
		sessions:  make(map[string]*Session),
	}
}

// Create starts a new session. Its controller stays inert until MapReady.
func (s *SessionService) Create(ctx context.Context) (domain.SessionSnapshot, error) {
	s.mu.Lock()
	if len(s.sessions) >= s.opts.MaxSessions {
		s.mu.Unlock()
		return domain.SessionSnapshot{}, ErrSessionLimit
	}

	id := uuid.NewString()
	now := s.now()
	notices := &sessionNotifier{sessionID: id, publisher: s.publisher, now: s.now}
	location := s.locations(id)
	log := slog.Default().With("session_id", id)

	sess := &Session{
		ID:         id,
		controller: NewSearchController(s.geocoder, location, notices, log),
		location:   location,
		notices:    notices,
		createdAt:  now,
		lastSeen:   now,
	}
	s.sessions[id] = sess
	count := len(s.sessions)
	s.mu.Unlock()

	metrics.ActiveSessions.Set(float64(count))
	log.Info("session created")
	return s.snapshot(sess), nil
}

// Get returns the snapshot of a session.
func (s *SessionService) Get(ctx context.Context, id string) (domain.SessionSnapshot, error) {
	sess, err := s.touch(id)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return s.snapshot(sess), nil
}

// Close removes a session and tells its clients.
func (s *SessionService) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	count := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return domain.ErrSessionNotFound
	}
	metrics.ActiveSessions.Set(float64(count))
	s.publish(ctx, id, domain.EventSessionClosed, nil)
	return nil
}

// MapReady creates the session's display and hands it to the controller.
func (s *SessionService) MapReady(ctx context.Context, id string) (domain.SessionSnapshot, error) {
	sess, err := s.touch(id)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}

	display := s.displays(id)
	sess.mu.Lock()
	sess.display = display
	sess.mu.Unlock()

	sess.controller.OnMapReady(display)
	return s.snapshot(sess), nil
}

// SearchPlace runs a single-place search on a session.
func (s *SessionService) SearchPlace(ctx context.Context, id, query string) (domain.SessionSnapshot, error) {
	sess, err := s.touch(id)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}

	_, switched, err := sess.controller.submitPlace(ctx, query)
	metrics.SearchesTotal.WithLabelValues("place", outcome(err)).Inc()
	if err != nil {
		return s.snapshot(sess), err
	}

	if switched {
		s.publish(ctx, id, domain.EventModeChanged, domain.ModeRouteEndpoints)
	}
	return s.snapshot(sess), nil
}

// SearchRoute runs an origin/destination search on a session.
func (s *SessionService) SearchRoute(ctx context.Context, id, origin, destination string) (domain.SessionSnapshot, error) {
	sess, err := s.touch(id)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}

	_, err = sess.controller.SubmitRouteQuery(ctx, origin, destination)
	metrics.SearchesTotal.WithLabelValues("route", outcome(err)).Inc()
	return s.snapshot(sess), err
}

// CycleStyle advances the session's map style.
func (s *SessionService) CycleStyle(ctx context.Context, id string) (domain.SessionSnapshot, error) {
	sess, err := s.touch(id)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	sess.controller.CycleMapStyle()
	return s.snapshot(sess), nil
}

// PermissionResult records the device's permission answer.
func (s *SessionService) PermissionResult(ctx context.Context, id string, granted bool) (domain.SessionSnapshot, error) {
	sess, err := s.touch(id)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	sess.location.SetPermission(granted)
	sess.controller.OnPermissionResult(ctx, granted)
	return s.snapshot(sess), nil
}

// UpdateLocation records the device's last known position.
func (s *SessionService) UpdateLocation(ctx context.Context, id string, at domain.Coordinate) error {
	sess, err := s.touch(id)
	if err != nil {
		return err
	}
	return sess.location.UpdateLocation(at)
}

// MyLocationClicked forwards a my-location button tap to the display.
// It reports whether a handler ran.
func (s *SessionService) MyLocationClicked(ctx context.Context, id string) (domain.SessionSnapshot, bool, error) {
	sess, err := s.touch(id)
	if err != nil {
		return domain.SessionSnapshot{}, false, err
	}

	sess.mu.Lock()
	display := sess.display
	sess.mu.Unlock()
	if display == nil {
		return s.snapshot(sess), false, nil
	}

	handled := display.ClickMyLocationButton()
	return s.snapshot(sess), handled, nil
}

// Count returns the number of live sessions.
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Run evicts idle sessions every interval until ctx is done.
func (s *SessionService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.EvictIdle(ctx); n > 0 {
				slog.Info("evicted idle sessions", "count", n)
			}
		}
	}
}

// EvictIdle closes sessions not seen within IdleTTL and returns how many.
func (s *SessionService) EvictIdle(ctx context.Context) int {
	cutoff := s.now().Add(-s.opts.IdleTTL)

	var expired []string
	s.mu.RLock()
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.lastSeen.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	n := 0
	for _, id := range expired {
		if err := s.Close(ctx, id); err == nil {
			n++
		}
	}
	return n
}

func (s *SessionService) touch(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	sess.mu.Lock()
	sess.lastSeen = s.now()
	sess.mu.Unlock()
	return sess, nil
}

func (s *SessionService) snapshot(sess *Session) domain.SessionSnapshot {
	st := sess.controller.State()

	sess.mu.Lock()
	display := sess.display
	snap := domain.SessionSnapshot{
		ID:         sess.ID,
		Ready:      st.Ready,
		Mode:       st.Mode,
		Style:      st.Style,
		Visibility: domain.VisibilityFor(st.Mode),
		Place:      st.Place,
		Route:      st.Route,
		CreatedAt:  sess.createdAt,
		LastSeenAt: sess.lastSeen,
	}
	sess.mu.Unlock()

	if display != nil {
		scene := display.Snapshot()
		snap.Scene = &scene
	}
	snap.LastNotice = sess.notices.last()
	return snap
}

func (s *SessionService) publish(ctx context.Context, id, typ string, payload any) {
	if s.publisher == nil {
		return
	}
	event := &domain.SessionEvent{SessionID: id, Type: typ, Payload: payload, At: s.now()}
	if err := s.publisher.PublishSessionEvent(ctx, event); err != nil {
		slog.Warn("publish session event failed", "session_id", id, "type", typ, "error", err)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrEmptyInput), errors.Is(err, domain.ErrMissingEndpoint):
		return "invalid"
	case errors.Is(err, domain.ErrSuperseded):
		return "superseded"
	case errors.Is(err, domain.ErrMapNotReady):
		return "not_ready"
	case errors.Is(err, domain.ErrGeocoderUnavailable):
		return "unavailable"
	default:
		return "not_found"
	}
}

// sessionNotifier keeps the most recent notice of a session and forwards
// every notice to the session's clients.
type sessionNotifier struct {
	sessionID string
	publisher ports.EventPublisher
	now       func() time.Time

	mu     sync.Mutex
	latest *domain.Notice
}

func (n *sessionNotifier) Notify(ctx context.Context, message string) {
	notice := domain.Notice{Message: message, At: n.now()}

	n.mu.Lock()
	n.latest = &notice
	n.mu.Unlock()

	metrics.NoticesTotal.Inc()
	slog.Debug("notice", "session_id", n.sessionID, "message", message)

	if n.publisher == nil {
		return
	}
	event := &domain.SessionEvent{SessionID: n.sessionID, Type: domain.EventNotice, Payload: notice, At: notice.At}
	if err := n.publisher.PublishSessionEvent(ctx, event); err != nil {
		slog.Warn("publish notice failed", "session_id", n.sessionID, "error", err)
	}
}

func (n *sessionNotifier) last() *domain.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.latest == nil {
		return nil
	}
	notice := *n.latest
	return &notice
}
