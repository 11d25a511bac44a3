package redis

import (
	"context"
	"fmt"
	"time"
)

// Deduplicator remembers webhook delivery ids for a limited time.
type Deduplicator struct {
	client Client
	ttl    time.Duration
	prefix string
}

// NewDeduplicator creates a deduplicator whose keys look like "{prefix}:{id}"
func NewDeduplicator(client Client, prefix string, ttl time.Duration) *Deduplicator {
	return &Deduplicator{client: client, ttl: ttl, prefix: prefix}
}

// FirstSeen records id and reports whether this is its first delivery.
// An empty id is always treated as first seen.
func (d *Deduplicator) FirstSeen(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return true, nil
	}

	ok, err := d.client.SetNX(ctx, d.prefix+":"+id, "1", d.ttl).Result()
	if err != nil {
		return true, fmt.Errorf("redis setnx error: %w", err)
	}
	return ok, nil
}
