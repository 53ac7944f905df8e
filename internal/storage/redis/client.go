package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/locshare/internal/storage"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	cli    *redis.Client
	prefix string
}

// New подключается к Redis по URL и проверяет соединение.
// prefix добавляется ко всем ключам, чтобы несколько инстансов могли делить одну БД.
func New(ctx context.Context, url, prefix string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli, prefix: prefix}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

func (c *Client) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + k
}

// Get возвращает значение ключа; отсутствие или истёкший TTL — storage.ErrNotFound.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.cli.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

// Set записывает значение с TTL. TTL всегда положителен: записи без срока
// жизни в этом сервисе не бывает (проверяется на уровне repository).
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.cli.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.cli.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
