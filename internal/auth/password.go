package auth

import "context"

// PasswordAuthenticator — один общий пароль на инстанс (bcrypt-хеш в конфиге).
type PasswordAuthenticator struct {
	hash string
}

func NewPasswordAuthenticator(hash string) *PasswordAuthenticator {
	return &PasswordAuthenticator{hash: hash}
}

func (a *PasswordAuthenticator) Verify(ctx context.Context, creds Credentials) (bool, error) {
	return verifyHash(a.hash, creds.Password), nil
}
