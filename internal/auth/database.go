package auth

import (
	"context"
	"errors"

	"github.com/locshare/internal/repository"
)

// DatabaseAuthenticator проверяет логин/пароль по таблице users в Postgres.
type DatabaseAuthenticator struct {
	users *repository.UserRepository
}

func NewDatabaseAuthenticator(users *repository.UserRepository) *DatabaseAuthenticator {
	return &DatabaseAuthenticator{users: users}
}

func (a *DatabaseAuthenticator) Verify(ctx context.Context, creds Credentials) (bool, error) {
	if creds.Username == "" {
		return false, nil
	}
	u, err := a.users.GetByUsername(ctx, creds.Username)
	if errors.Is(err, repository.ErrNotFound) {
		// Неизвестный логин отвечает так же, как неверный пароль,
		// чтобы не допускать перечисления пользователей.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return verifyHash(u.PasswordHash, creds.Password), nil
}
