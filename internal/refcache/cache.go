package refcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// store is the narrow redis surface the cache needs.
type store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	ReferenceKey(gatewayOrderID string) string
}

// Entry is the checkout snapshot mirrored under the gateway order id for the
// approval window. The Order row is authoritative; a missing entry is never
// an error, only a slower path.
type Entry struct {
	OrderID     uuid.UUID   `json:"order_id"`
	Email       string      `json:"email"`
	BuyerUserID *uuid.UUID  `json:"buyer_user_id,omitempty"`
	AmountCents int         `json:"amount_cents"`
	PhotoIDs    []uuid.UUID `json:"photo_ids"`
	LibrarySlug string      `json:"library_slug"`
}

// Cache mirrors pending checkouts in redis with a bounded TTL.
type Cache struct {
	store store
	ttl   time.Duration
}

// New builds a reference cache. ttl bounds how long a pending checkout stays
// mirrored.
func New(store store, ttl time.Duration) (*Cache, error) {
	if store == nil {
		return nil, fmt.Errorf("refcache store required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{store: store, ttl: ttl}, nil
}

// Put mirrors the snapshot under the gateway order id.
func (c *Cache) Put(ctx context.Context, gatewayOrderID string, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding reference entry: %w", err)
	}
	return c.store.Set(ctx, c.store.ReferenceKey(gatewayOrderID), payload, c.ttl)
}

// Get returns the mirrored snapshot. ok is false on a miss; only transport
// failures surface as errors.
func (c *Cache) Get(ctx context.Context, gatewayOrderID string) (*Entry, bool, error) {
	raw, err := c.store.Get(ctx, c.store.ReferenceKey(gatewayOrderID))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading reference entry: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		// A corrupt mirror is treated as a miss; the Order row still has
		// everything.
		return nil, false, nil
	}
	return &entry, true, nil
}

// Del drops the mirror once the order reaches a terminal state.
func (c *Cache) Del(ctx context.Context, gatewayOrderID string) error {
	return c.store.Del(ctx, c.store.ReferenceKey(gatewayOrderID))
}
