package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/campusaid/aidmap/internal/core/usecases"
)

// Pinger is a backing service the readiness probe can reach.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Requests *usecases.RequestService
	Map      *usecases.MapService
	NATS     *nats.Conn
	DB       Pinger
	Cache    Pinger
	Version  string
}
