package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/locshare/internal/linkid"
	"github.com/locshare/internal/logger"
	"github.com/locshare/internal/model"
	"github.com/locshare/internal/storage"
)

// SessionRepository хранит сессии в key-value-хранилище под ключом
// PrefixSession + id с TTL до момента окончания.
type SessionRepository struct {
	store storage.Store
}

func NewSessionRepository(store storage.Store) *SessionRepository {
	return &SessionRepository{store: store}
}

// New выделяет свободный ID (с проверкой коллизий) и возвращает пустую,
// ещё не сохранённую сессию.
func (r *SessionRepository) New(ctx context.Context) (*model.Session, error) {
	defer logger.DeferLogDuration("session.New", time.Now())()
	for i := 0; i < maxIDAttempts; i++ {
		id, err := linkid.NewSessionID()
		if err != nil {
			return nil, fmt.Errorf("sessionRepo.New: %w", err)
		}
		_, err = r.store.Get(ctx, PrefixSession+id)
		if errors.Is(err, storage.ErrNotFound) {
			return model.NewSession(id), nil
		}
		if err != nil {
			return nil, fmt.Errorf("sessionRepo.New: %w", err)
		}
	}
	return nil, fmt.Errorf("sessionRepo.New: %w", ErrIDSpaceExhausted)
}

// Get загружает сессию по ID. Отсутствие, истёкший TTL и повреждённая
// запись — ErrNotFound: load() тотальна, мусор в хранилище не роняет запрос.
func (r *SessionRepository) Get(ctx context.Context, id string) (*model.Session, error) {
	defer logger.DeferLogDuration("session.Get", time.Now())()
	data, err := r.store.Get(ctx, PrefixSession+id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sessionRepo.Get: %w", err)
	}
	s := &model.Session{}
	if err := json.Unmarshal(data, s); err != nil {
		logger.Errorf("session %s: повреждённая запись, трактуется как отсутствующая: %v", id, err)
		return nil, ErrNotFound
	}
	s.ID = id
	return s, nil
}

// Save персистит сессию с TTL = expire − now. Сессию без интервала или без
// срока окончания сохранить нельзя; уже истёкшая вместо записи удаляется
// (ленивая уборка).
func (r *SessionRepository) Save(ctx context.Context, s *model.Session) error {
	defer logger.DeferLogDuration("session.Save", time.Now())()
	if s.Interval <= 0 {
		return ErrIntervalUnset
	}
	if s.Expire == 0 {
		return ErrIndefinite
	}
	now := time.Now()
	if s.HasExpired(now) {
		return r.Delete(ctx, s.ID)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("sessionRepo.Save: %w", err)
	}
	ttl := time.Duration(s.Expire-now.Unix()) * time.Second
	if err := r.store.Set(ctx, PrefixSession+s.ID, data, ttl); err != nil {
		return fmt.Errorf("sessionRepo.Save: %w", err)
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("session.Delete", time.Now())()
	if err := r.store.Delete(ctx, PrefixSession+id); err != nil {
		return fmt.Errorf("sessionRepo.Delete: %w", err)
	}
	return nil
}
