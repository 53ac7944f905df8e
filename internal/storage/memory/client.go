package memory

import (
	"context"
	"sync"
	"time"

	"github.com/locshare/internal/storage"
)

type item struct {
	val []byte
	exp time.Time
}

// Client — потокобезопасное in-memory-хранилище с TTL.
// Вытеснение ленивое: истёкший ключ ведёт себя как отсутствующий при Get
// и перезаписывается при Set. Используется в -dev и тестах.
type Client struct {
	mu    sync.RWMutex
	items map[string]item
	// now подменяется в тестах для проверки истечения без sleep.
	now func() time.Time
}

func New() *Client {
	return &Client{items: make(map[string]item), now: time.Now}
}

// SetClock подменяет источник времени (для тестов).
func (c *Client) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *Client) Close() error { return nil }

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	if !ok || c.now().After(v.exp) {
		return nil, storage.ErrNotFound
	}
	out := make([]byte, len(v.val))
	copy(out, v.val)
	return out, nil
}

func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	val := make([]byte, len(value))
	copy(val, value)
	c.items[key] = item{val: val, exp: c.now().Add(ttl)}
	return nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}
