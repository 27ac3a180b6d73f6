package http

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/placemap/internal/core/domain"
)

const maxQueryLength = 200

type searchRequest struct {
	Query string `json:"query"`
}

type routeRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

type permissionRequest struct {
	Granted *bool `json:"granted"`
}

type locationRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// CreateSessionHandler starts a new map session.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, err := deps.Sessions.Create(c.UserContext())
		if err != nil {
			return searchError(c, err, nil)
		}
		LoggerFromCtx(c.UserContext()).Info("map session opened", "session_id", snap.ID)
		c.Location("/v1/sessions/" + snap.ID)
		return c.Status(fiber.StatusCreated).JSON(snap)
	}
}

// GetSessionHandler returns the current state of a session.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, err := deps.Sessions.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return searchError(c, err, nil)
		}
		return c.JSON(snap)
	}
}

// CloseSessionHandler ends a session.
func CloseSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.Close(c.UserContext(), c.Params("id")); err != nil {
			return searchError(c, err, nil)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// MapReadyHandler delivers the client's map-ready event.
func MapReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, err := deps.Sessions.MapReady(c.UserContext(), c.Params("id"))
		if err != nil {
			return searchError(c, err, nil)
		}
		return c.JSON(snap)
	}
}

// SearchPlaceHandler runs a single-place search.
func SearchPlaceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req searchRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if len(req.Query) > maxQueryLength {
			return errBadRequest(c, "query too long (max 200 characters)")
		}

		snap, err := deps.Sessions.SearchPlace(c.UserContext(), c.Params("id"), req.Query)
		if err != nil {
			return searchError(c, err, &snap)
		}
		return c.JSON(snap)
	}
}

// SearchRouteHandler runs an origin/destination search.
func SearchRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req routeRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if len(req.Origin) > maxQueryLength || len(req.Destination) > maxQueryLength {
			return errBadRequest(c, "query too long (max 200 characters)")
		}

		snap, err := deps.Sessions.SearchRoute(c.UserContext(), c.Params("id"), req.Origin, req.Destination)
		if err != nil {
			return searchError(c, err, &snap)
		}
		return c.JSON(snap)
	}
}

// CycleStyleHandler advances the map style.
func CycleStyleHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, err := deps.Sessions.CycleStyle(c.UserContext(), c.Params("id"))
		if err != nil {
			return searchError(c, err, nil)
		}
		return c.JSON(snap)
	}
}

// PermissionHandler delivers the device's location permission answer.
func PermissionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req permissionRequest
		if err := c.BodyParser(&req); err != nil || req.Granted == nil {
			return errBadRequest(c, "granted is required")
		}

		snap, err := deps.Sessions.PermissionResult(c.UserContext(), c.Params("id"), *req.Granted)
		if err != nil {
			return searchError(c, err, nil)
		}
		return c.JSON(snap)
	}
}

// UpdateLocationHandler records the device's last known position.
func UpdateLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req locationRequest
		if err := c.BodyParser(&req); err != nil || req.Lat == nil || req.Lon == nil {
			return errBadRequest(c, "lat and lon are required")
		}

		at := domain.Coordinate{Lat: *req.Lat, Lon: *req.Lon}
		if err := deps.Sessions.UpdateLocation(c.UserContext(), c.Params("id"), at); err != nil {
			return searchError(c, err, nil)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// MyLocationHandler forwards a tap on the my-location button.
func MyLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, handled, err := deps.Sessions.MyLocationClicked(c.UserContext(), c.Params("id"))
		if err != nil {
			return searchError(c, err, nil)
		}
		return c.JSON(fiber.Map{
			"handled": handled,
			"session": snap,
		})
	}
}

// GeocodeHandler resolves a free-text query without touching any session.
func GeocodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := strings.TrimSpace(c.Query("q"))
		if query == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		if len(query) > maxQueryLength {
			return errBadRequest(c, "query too long (max 200 characters)")
		}
		limit := c.QueryInt("limit", 1)
		if limit <= 0 || limit > 10 {
			limit = 1
		}

		places, err := deps.Geocoder.Resolve(c.UserContext(), query, limit)
		if err != nil {
			if errors.Is(err, domain.ErrGeocoderUnavailable) {
				LoggerFromCtx(c.UserContext()).Warn("geocode upstream failed", "error", err)
				return errBadGateway(c, "geocoding service unavailable")
			}
			return errInternal(c, err.Error())
		}
		if places == nil {
			places = []domain.Place{}
		}

		return c.JSON(places)
	}
}
