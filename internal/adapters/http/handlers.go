package http

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/taxiportal/internal/core/domain"
)

// ListLocationsHandler returns every predefined pickup/destination place.
func ListLocationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		locs, err := deps.Locations.ListPredefined(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		if locs == nil {
			locs = []domain.PredefinedLocation{}
		}
		return c.JSON(fiber.Map{"locations": locs})
	}
}

// SearchLocationsHandler searches predefined places by name or address.
// With lat/lon the results are ordered by distance.
func SearchLocationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := strings.TrimSpace(c.Query("q"))
		if query == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		if len(query) > 200 {
			return errBadRequest(c, "query too long (max 200 characters)")
		}

		var near *domain.GeoPoint
		if c.Query("lat") != "" || c.Query("lon") != "" {
			p := domain.GeoPoint{Lat: c.QueryFloat("lat", 0), Lon: c.QueryFloat("lon", 0)}
			if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
				return errBadRequest(c, "lat/lon out of range")
			}
			near = &p
		}

		locs, err := deps.Locations.SearchPredefined(c.UserContext(), query, near, c.QueryInt("limit", 20))
		if err != nil {
			return errFromDomain(c, err)
		}
		if locs == nil {
			locs = []domain.PredefinedLocation{}
		}
		return c.JSON(fiber.Map{"locations": locs})
	}
}

// ServiceAreaHandler exposes the pickup area so clients can bias geocoding.
func ServiceAreaHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !deps.Fence.Enabled() {
			return c.JSON(fiber.Map{"enabled": false})
		}
		return c.JSON(fiber.Map{
			"enabled": true,
			"polygon": deps.Fence.Polygon().Vertices,
			"bounds":  deps.Fence.Bounds(),
		})
	}
}

// ListReservationsHandler returns a page of the caller's history.
func ListReservationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter := domain.ParseReservationFilter(c.Query("filter"))
		list, err := deps.Reservations.List(c.UserContext(), session(c).UserID, filter,
			c.QueryInt("page", 1), c.QueryInt("limit", 10))
		if err != nil {
			return errFromDomain(c, err)
		}
		SetPageLinks(c, list.Pagination, "filter="+string(filter))
		return c.JSON(list)
	}
}

// ReservationStatsHandler returns the dashboard counters.
func ReservationStatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := deps.Reservations.Stats(c.UserContext(), session(c).UserID)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(stats)
	}
}

// GetReservationHandler returns one reservation by its booking ID.
func GetReservationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "booking id is required")
		}
		v, err := deps.Reservations.Get(c.UserContext(), session(c).UserID, id)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(v)
	}
}

// CancelReservationHandler cancels a future reservation.
func CancelReservationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "booking id is required")
		}
		v, err := deps.Reservations.Cancel(c.UserContext(), session(c).UserID, id)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "reservation": v})
	}
}

// ReceiptHandler returns a plain-text receipt as a download.
func ReceiptHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "booking id is required")
		}
		text, err := deps.Reservations.Receipt(c.UserContext(), session(c).UserID, id)
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="reserva-%s.txt"`, id))
		return c.SendString(text)
	}
}

// ListActivitiesHandler returns the caller's recent activity feed.
func ListActivitiesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 15)
		offset := c.QueryInt("offset", 0)
		if offset < 0 {
			return errBadRequest(c, "offset must not be negative")
		}
		acts, err := deps.Activities.List(c.UserContext(), session(c).UserID, limit, offset)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{"activities": acts, "limit": limit, "offset": offset})
	}
}
