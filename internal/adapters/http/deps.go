package http

import (
	"time"

	"github.com/nats-io/nats.go"
	"github.com/samirrijal/placemap/internal/adapters/valkey"
	"github.com/samirrijal/placemap/internal/core/ports"
	"github.com/samirrijal/placemap/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Sessions       *usecases.SessionService
	Geocoder       ports.Geocoder
	Events         ports.EventSubscriber
	NATS           *nats.Conn
	Cache          *valkey.Cache
	RequestTimeout time.Duration
}
