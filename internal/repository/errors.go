package repository

import "errors"

var (
	// ErrNotFound — записи нет или её TTL истёк. Штатный сигнал окончания
	// сессии или шары, не сбой.
	ErrNotFound = errors.New("not found")

	// ErrIntervalUnset и ErrIndefinite — нарушения контракта сохранения:
	// запись без интервала или без срока жизни не персистится никогда.
	// Из корректных последовательностей handler-ов недостижимы.
	ErrIntervalUnset = errors.New("session interval is undefined")
	ErrIndefinite    = errors.New("record cannot be indefinite")

	// ErrIDSpaceExhausted — защитный предел цикла генерации ID исчерпан.
	// При настроенных размерах пространства ID практически недостижимо.
	ErrIDSpaceExhausted = errors.New("id space exhausted")
)

// Префиксы ключей в хранилище. Совместимы с записями существующих установок.
const (
	PrefixSession  = "-session-"
	PrefixShare    = "-locdata-"
	PrefixGroupPIN = "-groupid-"
)

// maxIDAttempts ограничивает цикл "сгенерировать — проверить занятость",
// чтобы насыщенное пространство ключей не превращалось в вечный цикл.
const maxIDAttempts = 1000
