package service

import (
	"context"
	"time"

	"github.com/dzekuza/pav4-sub004/internal/domain"
)

// Forwarder relays a normalized event to the downstream tracking endpoint.
type Forwarder interface {
	Forward(ctx context.Context, event *domain.TrackingEvent, headers map[string]string) error
}

// Archiver keeps raw webhook payloads in object storage.
type Archiver interface {
	Archive(ctx context.Context, id string, receivedAt time.Time, payload []byte) error
}

// Publisher streams stored journey events to a message broker.
type Publisher interface {
	Publish(ctx context.Context, event *domain.JourneyEvent) error
}

// Deduplicator reports whether a webhook delivery id is new.
type Deduplicator interface {
	FirstSeen(ctx context.Context, id string) (bool, error)
}
