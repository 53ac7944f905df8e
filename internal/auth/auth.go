// Package auth проверяет право клиента создавать сессии. Ядро не зависит от
// способа проверки: общий пароль, файл htpasswd или таблица пользователей.
package auth

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Credentials — что прислал клиент. Username пуст при методе общего пароля.
type Credentials struct {
	Username string
	Password string
}

// Authenticator проверяет учётные данные. false без ошибки — неверный пароль;
// ошибка — сбой самой проверки (недоступен файл или БД).
type Authenticator interface {
	Verify(ctx context.Context, creds Credentials) (bool, error)
}

// RequiresUsername сообщает, нужен ли методу логин (всем, кроме общего пароля).
func RequiresUsername(a Authenticator) bool {
	_, shared := a.(*PasswordAuthenticator)
	return !shared
}

// verifyHash сравнивает пароль с bcrypt-хешем. Хеши из PHP-установок имеют
// префикс $2y$, который x/crypto/bcrypt не принимает; он эквивалентен $2a$.
func verifyHash(hash, password string) bool {
	if strings.HasPrefix(hash, "$2y$") {
		hash = "$2a$" + hash[4:]
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
