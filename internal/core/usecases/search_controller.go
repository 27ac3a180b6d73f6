package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/samirrijal/placemap/internal/core/domain"
	"github.com/samirrijal/placemap/internal/core/ports"
	"github.com/samirrijal/placemap/internal/pkg/geospatial"
)

// User-facing notice texts.
const (
	msgEmptyInput        = "Please enter a place to search"
	msgPlaceNotFound     = "Place not found"
	msgPlaceLookupFailed = "Error while searching for the location"
	msgMissingEndpoint   = "Please enter an origin and a destination"
	msgRouteNoMatch      = "No coordinates found for one of the places"
	msgRouteLookupFailed = "Error while searching for the route: "
	msgMapNotReady       = "The map is still loading, try again in a moment"
	msgPermissionDenied  = "Location permission denied"
)

// displayState is either notReady or ready. The MapDisplay handle is only
// reachable through ready, so no code path can touch a display that has not
// been delivered by OnMapReady.
type displayState interface {
	isDisplayState()
}

type notReady struct{}

type ready struct {
	display ports.MapDisplay
}

func (notReady) isDisplayState() {}
func (ready) isDisplayState()    {}

// SearchController owns the search mode, the map style and the last
// committed search results of one map session. It is inert until
// OnMapReady delivers a display.
//
// All display mutation happens under mu. Geocoding runs without the lock;
// a search commits only if no newer search was issued meanwhile.
type SearchController struct {
	geocoder ports.Geocoder
	location ports.LocationGateway
	notifier ports.Notifier
	log      *slog.Logger

	mu      sync.Mutex
	display displayState
	mode    domain.SearchMode
	style   domain.MapStyle
	place   *domain.Place
	route   *domain.RouteEndpoints
	latest  uint64

	// What the display currently shows beyond the default marker, so a
	// rebound display can be redrawn.
	placeDrawn bool
	routeDrawn bool
	routeFrom  string
	routeTo    string
}

// NewSearchController creates a controller in SingleLocation mode with the
// Normal style and no display.
func NewSearchController(geocoder ports.Geocoder, location ports.LocationGateway, notifier ports.Notifier, log *slog.Logger) *SearchController {
	if log == nil {
		log = slog.Default()
	}
	return &SearchController{
		geocoder: geocoder,
		location: location,
		notifier: notifier,
		log:      log,
		display:  notReady{},
		mode:     domain.ModeSingleLocation,
		style:    domain.StyleNormal,
	}
}

// OnMapReady binds the display and performs the initial map setup: the
// default marker and camera, the current style, and my-location wiring.
// A repeated call rebinds to the new display and redraws what the previous
// one showed: the committed place in place of the default marker, then the
// committed route if it was drawn after that place.
func (c *SearchController) OnMapReady(display ports.MapDisplay) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.display = ready{display: display}

	if c.placeDrawn && c.place != nil {
		drawPlace(display, *c.place)
	} else {
		display.AddMarker(domain.DefaultLocation.Location, domain.DefaultLocation.Label)
		display.MoveCamera(domain.DefaultLocation.Location, domain.ZoomDefault)
	}
	if c.routeDrawn && c.route != nil {
		drawRoute(display, *c.route, c.routeFrom, c.routeTo)
	}
	if c.style != domain.StyleNormal {
		display.SetStyle(c.style)
	}
	c.enableMyLocationLocked(display)
}

// OnPermissionResult handles the device's answer to a location permission
// request.
func (c *SearchController) OnPermissionResult(ctx context.Context, granted bool) {
	if !granted {
		c.notify(ctx, msgPermissionDenied)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.display.(ready); ok {
		c.enableMyLocationLocked(r.display)
	}
}

func (c *SearchController) enableMyLocationLocked(display ports.MapDisplay) {
	if c.location == nil {
		return
	}
	if !c.location.HasLocationPermission() {
		c.location.RequestLocationPermission()
		return
	}
	display.SetMyLocationEnabled(true)
	display.OnMyLocationButtonClicked(c.centerOnMyLocation)
}

// centerOnMyLocation runs when the user taps the my-location button.
func (c *SearchController) centerOnMyLocation() {
	loc, ok := c.location.LastKnownLocation()
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.display.(ready); ok {
		r.display.MoveCamera(loc, domain.ZoomStreet)
	}
}

// SubmitPlaceQuery geocodes text and, on a match, replaces all markers with
// a single marker at the result and zooms to street level. The first success
// switches the session to RouteEndpoints mode.
func (c *SearchController) SubmitPlaceQuery(ctx context.Context, text string) (domain.Place, error) {
	place, _, err := c.submitPlace(ctx, text)
	return place, err
}

// submitPlace is SubmitPlaceQuery that also reports whether this call moved
// the session into RouteEndpoints mode.
func (c *SearchController) submitPlace(ctx context.Context, text string) (domain.Place, bool, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return domain.Place{}, false, c.fail(ctx, domain.ErrEmptyInput, msgEmptyInput)
	}

	ticket, err := c.issueTicket(ctx)
	if err != nil {
		return domain.Place{}, false, err
	}

	place, lookupErr := c.resolveOne(ctx, query)

	c.mu.Lock()
	if ticket != c.latest {
		c.mu.Unlock()
		c.log.Debug("discarding superseded place search", "query", query)
		return domain.Place{}, false, domain.ErrSuperseded
	}
	if lookupErr != nil {
		c.mu.Unlock()
		msg := msgPlaceNotFound
		if errors.Is(lookupErr, domain.ErrGeocoderUnavailable) {
			msg = msgPlaceLookupFailed
			c.log.Warn("place lookup failed", "query", query, "error", lookupErr)
		}
		return domain.Place{}, false, c.fail(ctx, fmt.Errorf("%w: %w", domain.ErrPlaceNotFound, lookupErr), msg)
	}

	display := c.display.(ready).display
	display.ClearMarkers()
	drawPlace(display, place)

	switched := c.mode != domain.ModeRouteEndpoints
	c.place = &place
	c.mode = domain.ModeRouteEndpoints
	c.placeDrawn, c.routeDrawn = true, false
	c.mu.Unlock()

	return place, switched, nil
}

// SubmitRouteQuery geocodes both endpoints and, only if both resolve, adds
// an origin and a destination marker, a straight line between them, and
// centers the camera on the origin at city zoom. Existing markers are kept.
func (c *SearchController) SubmitRouteQuery(ctx context.Context, originText, destinationText string) (domain.RouteEndpoints, error) {
	origin := strings.TrimSpace(originText)
	destination := strings.TrimSpace(destinationText)
	if origin == "" || destination == "" {
		return domain.RouteEndpoints{}, c.fail(ctx, domain.ErrMissingEndpoint, msgMissingEndpoint)
	}

	ticket, err := c.issueTicket(ctx)
	if err != nil {
		return domain.RouteEndpoints{}, err
	}

	var route domain.RouteEndpoints
	from, lookupErr := c.resolveOne(ctx, origin)
	if lookupErr == nil {
		var to domain.Place
		to, lookupErr = c.resolveOne(ctx, destination)
		route = domain.RouteEndpoints{
			Origin:      from,
			Destination: to,
			DistanceMeters: geospatial.Haversine(
				from.Location.Lat, from.Location.Lon,
				to.Location.Lat, to.Location.Lon,
			),
		}
	}

	c.mu.Lock()
	if ticket != c.latest {
		c.mu.Unlock()
		c.log.Debug("discarding superseded route search", "origin", origin, "destination", destination)
		return domain.RouteEndpoints{}, domain.ErrSuperseded
	}
	if lookupErr != nil {
		c.mu.Unlock()
		msg := msgRouteNoMatch
		if errors.Is(lookupErr, domain.ErrGeocoderUnavailable) {
			msg = msgRouteLookupFailed + lookupErr.Error()
			c.log.Warn("route lookup failed", "origin", origin, "destination", destination, "error", lookupErr)
		}
		return domain.RouteEndpoints{}, c.fail(ctx, fmt.Errorf("%w: %w", domain.ErrRouteResolution, lookupErr), msg)
	}

	drawRoute(c.display.(ready).display, route, origin, destination)

	c.route = &route
	c.routeDrawn, c.routeFrom, c.routeTo = true, origin, destination
	c.mu.Unlock()

	return route, nil
}

func drawPlace(display ports.MapDisplay, place domain.Place) {
	display.AddMarker(place.Location, place.Label)
	display.MoveCamera(place.Location, domain.ZoomStreet)
}

func drawRoute(display ports.MapDisplay, route domain.RouteEndpoints, origin, destination string) {
	display.AddMarker(route.Origin.Location, "Origin: "+origin)
	display.AddMarker(route.Destination.Location, "Destination: "+destination)
	display.AddLine(route.Origin.Location, route.Destination.Location, domain.RouteLineColor, domain.RouteLineWidth)
	display.MoveCamera(route.Origin.Location, domain.ZoomCity)
}

// CycleMapStyle advances to the next style and applies it. Before the map
// is ready it does nothing and returns the current style.
func (c *SearchController) CycleMapStyle() domain.MapStyle {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.display.(ready)
	if !ok {
		return c.style
	}
	c.style = c.style.Next()
	r.display.SetStyle(c.style)
	return c.style
}

// State returns the controller-owned session state.
func (c *SearchController) State() ControllerState {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := ControllerState{Mode: c.mode, Style: c.style}
	_, st.Ready = c.display.(ready)
	if c.place != nil {
		p := *c.place
		st.Place = &p
	}
	if c.route != nil {
		r := *c.route
		st.Route = &r
	}
	return st
}

// ControllerState is a copy of a controller's state.
type ControllerState struct {
	Ready bool
	Mode  domain.SearchMode
	Style domain.MapStyle
	Place *domain.Place
	Route *domain.RouteEndpoints
}

// issueTicket checks the display is ready and registers a new latest search.
func (c *SearchController) issueTicket(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	if _, ok := c.display.(ready); !ok {
		c.mu.Unlock()
		return 0, c.fail(ctx, domain.ErrMapNotReady, msgMapNotReady)
	}
	c.latest++
	ticket := c.latest
	c.mu.Unlock()
	return ticket, nil
}

// resolveOne returns the best valid match for query. A result outside the
// coordinate range counts as no match.
func (c *SearchController) resolveOne(ctx context.Context, query string) (domain.Place, error) {
	places, err := c.geocoder.Resolve(ctx, query, 1)
	if err != nil {
		if !errors.Is(err, domain.ErrGeocoderUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrGeocoderUnavailable, err)
		}
		return domain.Place{}, err
	}
	for _, p := range places {
		if p.Location.Validate() == nil {
			return p, nil
		}
	}
	return domain.Place{}, domain.ErrNoMatch
}

func (c *SearchController) fail(ctx context.Context, err error, message string) error {
	c.notify(ctx, message)
	return err
}

func (c *SearchController) notify(ctx context.Context, message string) {
	if c.notifier != nil {
		c.notifier.Notify(ctx, message)
	}
}
