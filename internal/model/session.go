package model

import "time"

// Session — состояние одного отчитывающегося устройства. ID — это bearer-токен:
// кто знает ID, тот и постит точки. Запись живёт в хранилище под ключом
// сессии с TTL до Expire; поле Interval обязательно перед первым сохранением
// (0 означает "не задано").
type Session struct {
	ID        string   `json:"-"`
	Expire    int64    `json:"expire"`   // unix-время окончания
	Interval  float64  `json:"interval"` // минимум секунд между отчётами; 0 = не задано
	Targets   []string `json:"targets"`  // ID шар, в которые сессия постит
	Points    []Point  `json:"points"`   // от старых к новым, не больше max_cached_points
	Encrypted bool     `json:"encrypted"`
	Salt      string   `json:"salt,omitempty"` // соль для вывода ключа на клиентах (E2E)
}

// NewSession возвращает пустую сессию с уже присвоенным ID (ещё не сохранена).
func NewSession(id string) *Session {
	return &Session{ID: id, Targets: []string{}, Points: []Point{}}
}

// HasExpired сообщает, наступило ли время окончания сессии.
func (s *Session) HasExpired(now time.Time) bool {
	return s.Expire <= now.Unix()
}

// SetEncryption включает или выключает E2E-режим вместе с солью.
func (s *Session) SetEncryption(enabled bool, salt string) {
	s.Encrypted = enabled
	s.Salt = salt
}

// AddTarget добавляет шару в список целей; повторное добавление — no-op.
func (s *Session) AddTarget(shareID string) {
	for _, t := range s.Targets {
		if t == shareID {
			return
		}
	}
	s.Targets = append(s.Targets, shareID)
}

// RemoveTarget удаляет шару из списка целей, сохраняя порядок остальных.
func (s *Session) RemoveTarget(shareID string) {
	out := s.Targets[:0]
	for _, t := range s.Targets {
		if t != shareID {
			out = append(out, t)
		}
	}
	s.Targets = out
}

// AddPoint добавляет точку в конец; при превышении max точек старые
// вытесняются с начала (FIFO).
func (s *Session) AddPoint(p Point, max int) {
	s.Points = append(s.Points, p)
	if max > 0 && len(s.Points) > max {
		s.Points = s.Points[len(s.Points)-max:]
	}
}
