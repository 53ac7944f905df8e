// Package linkid генерирует публичные идентификаторы: ID ссылок просмотра,
// групповые PIN и bearer-токены сессий. Проверку на коллизии со
// существующими ключами делает вызывающий код (repository), здесь только
// кандидаты.
package linkid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// Стили ссылок. Человеко-набираемые алфавиты исключают визуально похожие
// символы: upper — без '0' и 'O', mixed — дополнительно без 'l' и 'I'.
const (
	Style44Upper = "4+4-upper"
	Style44Lower = "4+4-lower"
	Style44Mixed = "4+4-mixed"
	StyleUUID    = "uuid"
	Style16Hex   = "16-hex"
	Style16Upper = "16-upper"
	Style16Lower = "16-lower"
	Style16Mixed = "16-mixed"
	Style32Hex   = "32-hex"
	Style32Upper = "32-upper"
	Style32Lower = "32-lower"
	Style32Mixed = "32-mixed"
)

const (
	alphaUpper = "123456789ABCDEFGHIJKLMNPQRSTUVWXYZ"
	alphaLower = "0123456789abcdefghijklmnopqrstuvwxyz"
	alphaMixed = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
)

const (
	sessionIDBytes = 32
	groupPINMin    = 100000
	groupPINMax    = 999999
)

// NewSessionID возвращает неугадываемый токен сессии (hex от 32 случайных байт).
func NewSessionID() (string, error) {
	buf := make([]byte, sessionIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NewGroupPIN возвращает шестизначный PIN в [100000, 999999].
func NewGroupPIN() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(groupPINMax-groupPINMin+1))
	if err != nil {
		return "", fmt.Errorf("group pin: %w", err)
	}
	return fmt.Sprintf("%d", groupPINMin+n.Int64()), nil
}

// NewLinkID возвращает кандидата ID ссылки заданного стиля.
// Неизвестный стиль трактуется как стиль по умолчанию (4+4-upper).
func NewLinkID(style string) (string, error) {
	switch style {
	case StyleUUID:
		u, err := uuid.NewRandom()
		if err != nil {
			return "", fmt.Errorf("link id: %w", err)
		}
		return u.String(), nil
	case Style16Hex:
		return randomHex(8)
	case Style32Hex:
		return randomHex(16)
	case Style16Upper:
		return randomString(alphaUpper, 16)
	case Style16Lower:
		return randomString(alphaLower, 16)
	case Style16Mixed:
		return randomString(alphaMixed, 16)
	case Style32Upper:
		return randomString(alphaUpper, 32)
	case Style32Lower:
		return randomString(alphaLower, 32)
	case Style32Mixed:
		return randomString(alphaMixed, 32)
	case Style44Lower:
		return dashed(alphaLower)
	case Style44Mixed:
		return dashed(alphaMixed)
	case Style44Upper:
		return dashed(alphaUpper)
	default:
		return dashed(alphaUpper)
	}
}

func randomHex(nBytes int) (string, error) {
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("link id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func randomString(alphabet string, length int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("link id: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

// dashed — 8 символов в форме XXXX-XXXX.
func dashed(alphabet string) (string, error) {
	s, err := randomString(alphabet, 8)
	if err != nil {
		return "", err
	}
	return s[:4] + "-" + s[4:], nil
}
