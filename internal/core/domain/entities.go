package domain

import "time"

// Zoom levels used when recentering the camera.
const (
	ZoomStreet  float64 = 15
	ZoomCity    float64 = 10
	ZoomDefault float64 = 12
)

// Route overlay appearance.
const (
	RouteLineColor = "#0000FF"
	RouteLineWidth = 10.0
)

// DefaultLocation is where a freshly readied map is centered.
var DefaultLocation = Place{
	Location: Coordinate{Lat: -34, Lon: 151},
	Label:    "Marker in Sydney",
}

// SearchMode selects which search inputs the client shows.
type SearchMode int

const (
	ModeSingleLocation SearchMode = iota
	ModeRouteEndpoints
)

func (m SearchMode) String() string {
	switch m {
	case ModeRouteEndpoints:
		return "route_endpoints"
	default:
		return "single_location"
	}
}

// MarshalText lets SearchMode render as its name in JSON.
func (m SearchMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// MapStyle is the rendering style of the map.
type MapStyle int

const (
	StyleNormal MapStyle = iota
	StyleSatellite
	StyleTerrain
	StyleHybrid

	mapStyleCount = 4
)

// Next returns the cyclic successor: Normal → Satellite → Terrain → Hybrid → Normal.
func (s MapStyle) Next() MapStyle {
	return (s + 1) % mapStyleCount
}

func (s MapStyle) String() string {
	switch s {
	case StyleSatellite:
		return "satellite"
	case StyleTerrain:
		return "terrain"
	case StyleHybrid:
		return "hybrid"
	default:
		return "normal"
	}
}

func (s MapStyle) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Visibility describes which search inputs are shown for a mode.
type Visibility struct {
	SearchField      bool `json:"search_field"`
	SearchButton     bool `json:"search_button"`
	OriginField      bool `json:"origin_field"`
	DestinationField bool `json:"destination_field"`
	RouteButton      bool `json:"route_button"`
	StyleButton      bool `json:"style_button"`
}

// VisibilityFor returns the input layout for mode.
func VisibilityFor(mode SearchMode) Visibility {
	single := mode == ModeSingleLocation
	return Visibility{
		SearchField:      single,
		SearchButton:     single,
		OriginField:      !single,
		DestinationField: !single,
		RouteButton:      !single,
		StyleButton:      true,
	}
}

// Marker is a labeled point annotation on the map.
type Marker struct {
	Position Coordinate `json:"position"`
	Title    string     `json:"title"`
}

// Polyline is a rendered line through an ordered list of coordinates.
type Polyline struct {
	Points []Coordinate `json:"points"`
	Color  string       `json:"color"`
	Width  float64      `json:"width"`
}

// Camera is the map viewport.
type Camera struct {
	Target Coordinate `json:"target"`
	Zoom   float64    `json:"zoom"`
}

// Scene is the rendered state of one map display.
type Scene struct {
	Markers           []Marker   `json:"markers"`
	Lines             []Polyline `json:"lines"`
	Camera            *Camera    `json:"camera,omitempty"`
	Style             MapStyle   `json:"style"`
	MyLocationEnabled bool       `json:"my_location_enabled"`
}

// Notice is a transient user-facing message.
type Notice struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// SessionSnapshot is the externally visible state of a session.
type SessionSnapshot struct {
	ID         string          `json:"id"`
	Ready      bool            `json:"ready"`
	Mode       SearchMode      `json:"mode"`
	Style      MapStyle        `json:"style"`
	Visibility Visibility      `json:"visibility"`
	Place      *Place          `json:"place,omitempty"`
	Route      *RouteEndpoints `json:"route,omitempty"`
	Scene      *Scene          `json:"scene,omitempty"`
	LastNotice *Notice         `json:"last_notice,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	LastSeenAt time.Time       `json:"-"`
}

// SessionEvent is published to map clients when their session changes.
type SessionEvent struct {
	SessionID string    `json:"session_id"`
	Type      string    `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	At        time.Time `json:"at"`
}

// Session event types.
const (
	EventMarkersCleared      = "markers_cleared"
	EventMarkerAdded         = "marker_added"
	EventLineAdded           = "line_added"
	EventCameraMoved         = "camera_moved"
	EventStyleChanged        = "style_changed"
	EventMyLocationToggled   = "my_location_toggled"
	EventPermissionRequested = "permission_requested"
	EventNotice              = "notice"
	EventModeChanged         = "mode_changed"
	EventSessionClosed       = "session_closed"
)
