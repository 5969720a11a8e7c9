package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/taxiportal/internal/adapters/postgres"
	"github.com/samirrijal/taxiportal/internal/adapters/valkey"
	"github.com/samirrijal/taxiportal/internal/core/geofence"
	"github.com/samirrijal/taxiportal/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Auth         *usecases.AuthService
	Locations    *usecases.LocationService
	Wizards      *usecases.WizardService
	Reservations *usecases.ReservationService
	Activities   *usecases.ActivityService
	Fence        *geofence.Fence

	// LoginRateLimit is the number of auth attempts allowed per IP per minute.
	LoginRateLimit int

	NATS  *nats.Conn
	DB    *postgres.DB
	Cache *valkey.Cache
}
