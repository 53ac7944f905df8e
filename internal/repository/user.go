package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/locshare/internal/logger"
	"github.com/locshare/internal/model"
)

// UserRepository — учётные записи в Postgres (auth method "database").
// Единственное, что нужно ретранслятору от пользователей — проверка пароля
// при создании сессии; никакой другой персистентности за пределами TTL
// key-value-хранилища у сервиса нет.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByUsername возвращает только не отключённые учётные записи.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	defer logger.DeferLogDuration("user.GetByUsername", time.Now())()
	u := &model.User{}
	row := r.pool.QueryRow(ctx,
		`SELECT username, password_hash, created_at, disabled_at
		 FROM users WHERE username = $1 AND disabled_at IS NULL`, username)
	if err := row.Scan(&u.Username, &u.PasswordHash, &u.CreatedAt, &u.DisabledAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("userRepo.GetByUsername: %w", err)
	}
	return u, nil
}

// Create добавляет учётную запись (используется CLI-установкой и тестами).
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	defer logger.DeferLogDuration("user.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (username, password_hash, created_at, disabled_at)
		 VALUES ($1, $2, $3, NULL)`,
		u.Username, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("userRepo.Create: %w", err)
	}
	return nil
}
