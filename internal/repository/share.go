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

// ShareRepository хранит шары под ключом PrefixShare + id. Групповые шары
// дополнительно держат индекс PrefixGroupPIN + pin → id с тем же TTL,
// переписываемый при каждом сохранении.
type ShareRepository struct {
	store     storage.Store
	linkStyle string
}

func NewShareRepository(store storage.Store, linkStyle string) *ShareRepository {
	return &ShareRepository{store: store, linkStyle: linkStyle}
}

// NewLinkID выделяет свободный ID ссылки настроенного стиля.
func (r *ShareRepository) NewLinkID(ctx context.Context) (string, error) {
	defer logger.DeferLogDuration("share.NewLinkID", time.Now())()
	for i := 0; i < maxIDAttempts; i++ {
		id, err := linkid.NewLinkID(r.linkStyle)
		if err != nil {
			return "", fmt.Errorf("shareRepo.NewLinkID: %w", err)
		}
		free, err := r.isFree(ctx, PrefixShare+id)
		if err != nil {
			return "", fmt.Errorf("shareRepo.NewLinkID: %w", err)
		}
		if free {
			return id, nil
		}
	}
	return "", fmt.Errorf("shareRepo.NewLinkID: %w", ErrIDSpaceExhausted)
}

// NewPIN выделяет свободный групповой PIN.
func (r *ShareRepository) NewPIN(ctx context.Context) (string, error) {
	defer logger.DeferLogDuration("share.NewPIN", time.Now())()
	for i := 0; i < maxIDAttempts; i++ {
		pin, err := linkid.NewGroupPIN()
		if err != nil {
			return "", fmt.Errorf("shareRepo.NewPIN: %w", err)
		}
		free, err := r.isFree(ctx, PrefixGroupPIN+pin)
		if err != nil {
			return "", fmt.Errorf("shareRepo.NewPIN: %w", err)
		}
		if free {
			return pin, nil
		}
	}
	return "", fmt.Errorf("shareRepo.NewPIN: %w", ErrIDSpaceExhausted)
}

// IsLinkFree проверяет, свободен ли ID (для кастомных ссылок).
func (r *ShareRepository) IsLinkFree(ctx context.Context, id string) (bool, error) {
	free, err := r.isFree(ctx, PrefixShare+id)
	if err != nil {
		return false, fmt.Errorf("shareRepo.IsLinkFree: %w", err)
	}
	return free, nil
}

func (r *ShareRepository) isFree(ctx context.Context, key string) (bool, error) {
	_, err := r.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// Get загружает шару по ID и диспетчеризует по тегу варианта.
// Отсутствие, истёкший TTL и повреждённая запись — ErrNotFound.
func (r *ShareRepository) Get(ctx context.Context, id string) (model.Share, error) {
	defer logger.DeferLogDuration("share.Get", time.Now())()
	data, err := r.store.Get(ctx, PrefixShare+id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("shareRepo.Get: %w", err)
	}
	share, err := model.DecodeShare(id, data)
	if err != nil {
		logger.Errorf("share %s: повреждённая запись, трактуется как отсутствующая: %v", id, err)
		return nil, ErrNotFound
	}
	return share, nil
}

// GetByPIN резолвит PIN → ID и делегирует Get. Устаревший индекс,
// указывающий на уже истёкшую шару, тоже даёт ErrNotFound.
func (r *ShareRepository) GetByPIN(ctx context.Context, pin string) (model.Share, error) {
	defer logger.DeferLogDuration("share.GetByPIN", time.Now())()
	data, err := r.store.Get(ctx, PrefixGroupPIN+pin)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("shareRepo.GetByPIN: %w", err)
	}
	return r.Get(ctx, string(data))
}

// Save персистит шару с TTL = expire − now; групповая шара дополнительно
// переписывает PIN-индекс с тем же TTL. Шара без срока жизни — ошибка
// контракта; уже истёкшая вместо записи удаляется.
func (r *ShareRepository) Save(ctx context.Context, s model.Share) error {
	defer logger.DeferLogDuration("share.Save", time.Now())()
	if s.Expiration() == 0 {
		return ErrIndefinite
	}
	now := time.Now()
	if s.HasExpired(now) {
		return r.Delete(ctx, s)
	}
	data, err := model.EncodeShare(s)
	if err != nil {
		return fmt.Errorf("shareRepo.Save: %w", err)
	}
	ttl := time.Duration(s.Expiration()-now.Unix()) * time.Second
	if err := r.store.Set(ctx, PrefixShare+s.ShareID(), data, ttl); err != nil {
		return fmt.Errorf("shareRepo.Save: %w", err)
	}
	// PIN-индекс пишется после основной записи и не атомарно с ней; окно
	// между двумя записями принято осознанно — осиротевший PIN резолвится
	// в ErrNotFound при следующем чтении.
	if g, ok := s.(*model.GroupShare); ok {
		if err := r.store.Set(ctx, PrefixGroupPIN+g.PIN, []byte(g.ID), ttl); err != nil {
			return fmt.Errorf("shareRepo.Save pin: %w", err)
		}
	}
	return nil
}

// Delete удаляет запись шары, а для групповой — и её PIN-индекс.
func (r *ShareRepository) Delete(ctx context.Context, s model.Share) error {
	defer logger.DeferLogDuration("share.Delete", time.Now())()
	if err := r.store.Delete(ctx, PrefixShare+s.ShareID()); err != nil {
		return fmt.Errorf("shareRepo.Delete: %w", err)
	}
	if g, ok := s.(*model.GroupShare); ok {
		if err := r.store.Delete(ctx, PrefixGroupPIN+g.PIN); err != nil {
			return fmt.Errorf("shareRepo.Delete pin: %w", err)
		}
	}
	return nil
}
