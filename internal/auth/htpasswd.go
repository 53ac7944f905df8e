package auth

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// HtpasswdAuthenticator проверяет пару логин/пароль по файлу формата
// htpasswd (строки "логин:bcrypt-хеш"). Файл читается на каждую проверку:
// создание сессии — редкая операция, зато правки файла подхватываются сразу.
type HtpasswdAuthenticator struct {
	path string
}

func NewHtpasswdAuthenticator(path string) *HtpasswdAuthenticator {
	return &HtpasswdAuthenticator{path: path}
}

func (a *HtpasswdAuthenticator) Verify(ctx context.Context, creds Credentials) (bool, error) {
	if creds.Username == "" {
		return false, nil
	}
	f, err := os.Open(a.path)
	if err != nil {
		return false, fmt.Errorf("htpasswd: %w", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		user, hash, ok := strings.Cut(line, ":")
		if !ok || user != creds.Username {
			continue
		}
		return verifyHash(hash, creds.Password), nil
	}
	if err := sc.Err(); err != nil {
		return false, fmt.Errorf("htpasswd: %w", err)
	}
	return false, nil
}
