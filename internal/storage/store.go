// Package storage определяет контракт key-value-хранилища с TTL,
// в котором живёт всё состояние сервиса: сессии, шары и PIN-индексы групп.
// Реализации: redis.Client, memory.Client (для -dev и тестов без Redis).
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound возвращается Get, если ключа нет или его TTL истёк.
// Истечение ключа — штатная ситуация (так завершаются сессии), не сбой.
var ErrNotFound = errors.New("key not found")

// Store — key-value-хранилище с TTL на каждый ключ.
// Get по истёкшему ключу обязан вести себя как отсутствие ключа.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
