package cache

import (
	"context"
	"time"
)

// Layered keeps a short-lived in-process copy in front of a shared cache.
// Writes go to the shared cache first.
type Layered struct {
	l1    *TTLCache
	l2    BytesCache
	l1TTL time.Duration
}

// NewLayered fronts l2 with memory entries that live at most l1TTL.
func NewLayered(l2 BytesCache, l1TTL time.Duration) *Layered {
	return &Layered{l1: NewTTLCache(), l2: l2, l1TTL: l1TTL}
}

func (c *Layered) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	if b, ok, _ := c.l1.GetBytes(ctx, key); ok {
		return b, true, nil
	}
	b, ok, err := c.l2.GetBytes(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = c.l1.SetBytes(ctx, key, b, c.l1TTL)
	return b, true, nil
}

func (c *Layered) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l2.SetBytes(ctx, key, value, ttl); err != nil {
		return err
	}
	l1 := c.l1TTL
	if ttl > 0 && ttl < l1 {
		l1 = ttl
	}
	return c.l1.SetBytes(ctx, key, value, l1)
}

// Close closes the shared cache when it holds a connection.
func (c *Layered) Close() error {
	if cl, ok := c.l2.(interface{ Close() error }); ok {
		return cl.Close()
	}
	return nil
}

var _ BytesCache = (*Layered)(nil)
