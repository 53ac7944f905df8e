package service

import "errors"

// Ошибки валидации и поиска. Handler-ы переводят их в строки протокола
// (см. internal/handler); сами сообщения здесь нейтральные, чтобы сервис
// не зависел от формата провода.
var (
	// Поисковые промахи: запись отсутствует или её TTL истёк.
	ErrSessionExpired  = errors.New("session expired")
	ErrShareNotFound   = errors.New("share not found")
	ErrGroupPinInvalid = errors.New("group pin invalid")
	ErrInvalidSession  = errors.New("invalid session")

	// Отказы усыновления, по одному на каждое предусловие.
	ErrGroupNotAdoptable  = errors.New("group shares cannot be adopted")
	ErrAdoptionNotAllowed = errors.New("share does not allow adoption")
	ErrE2EAdoption        = errors.New("encrypted shares cannot be adopted")

	// Валидация параметров сессии.
	ErrDurationInvalid  = errors.New("duration invalid")
	ErrShareTooLong     = errors.New("share period too long")
	ErrIntervalTooLong  = errors.New("interval too long")
	ErrIntervalTooShort = errors.New("interval too short")
	ErrLocationInvalid  = errors.New("location invalid")
)
