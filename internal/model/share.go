package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ShareType — тег варианта в сохранённой записи шары.
// Значения совпадают с протоколом мобильных клиентов.
type ShareType int

const (
	ShareTypeSolo  ShareType = 0
	ShareTypeGroup ShareType = 1
)

// Share — просматриваемая единица агрегации точек. Закрытый двухвариантный
// тип: SoloShare (один хост, может быть усыновлена группой) и GroupShare
// (несколько хостов, PIN для присоединения). Диспетчеризация по тегу
// происходит один раз при декодировании записи (DecodeShare), дальше код
// работает через type switch.
type Share interface {
	ShareID() string
	Type() ShareType
	Expiration() int64
	SetExpiration(expire int64)
	HasExpired(now time.Time) bool
	// Adoptable сообщает, может ли группа поглотить эту шару.
	// Для групповых шар всегда false.
	Adoptable() bool
}

// SoloShare — шара одного устройства.
type SoloShare struct {
	ID       string
	Expire   int64
	Host     string // ID сессии-хоста
	CanAdopt bool
}

func NewSoloShare(id string) *SoloShare { return &SoloShare{ID: id} }

func (s *SoloShare) ShareID() string               { return s.ID }
func (s *SoloShare) Type() ShareType               { return ShareTypeSolo }
func (s *SoloShare) Expiration() int64             { return s.Expire }
func (s *SoloShare) SetExpiration(expire int64)    { s.Expire = expire }
func (s *SoloShare) HasExpired(now time.Time) bool { return s.Expire <= now.Unix() }
func (s *SoloShare) Adoptable() bool               { return s.CanAdopt }

// GroupShare — шара с несколькими хостами и шестизначным PIN
// для присоединения новых участников.
type GroupShare struct {
	ID     string
	Expire int64
	Hosts  map[string]string // ник → ID сессии
	PIN    string
}

func NewGroupShare(id, pin string) *GroupShare {
	return &GroupShare{ID: id, PIN: pin, Hosts: map[string]string{}}
}

func (g *GroupShare) ShareID() string               { return g.ID }
func (g *GroupShare) Type() ShareType               { return ShareTypeGroup }
func (g *GroupShare) Expiration() int64             { return g.Expire }
func (g *GroupShare) SetExpiration(expire int64)    { g.Expire = expire }
func (g *GroupShare) HasExpired(now time.Time) bool { return g.Expire <= now.Unix() }
func (g *GroupShare) Adoptable() bool               { return false }

// AddHost добавляет (или перезаписывает) участника с данным ником.
func (g *GroupShare) AddHost(nick, sessionID string) {
	if g.Hosts == nil {
		g.Hosts = map[string]string{}
	}
	g.Hosts[nick] = sessionID
}

// RemoveHost удаляет все ники, указывающие на данную сессию. Сессия должна
// встречаться не больше одного раза, но удаление исчерпывающее.
func (g *GroupShare) RemoveHost(sessionID string) {
	for nick, sid := range g.Hosts {
		if sid == sessionID {
			delete(g.Hosts, nick)
		}
	}
}

// shareRecord — плоская форма записи шары в хранилище; набор полей
// совместим с записями существующих установок.
type shareRecord struct {
	Type      ShareType         `json:"type"`
	Expire    int64             `json:"expire"`
	Host      string            `json:"host,omitempty"`
	Adoptable *bool             `json:"adoptable,omitempty"`
	Hosts     map[string]string `json:"hosts,omitempty"`
	GroupPin  string            `json:"groupPin,omitempty"`
}

// EncodeShare сериализует шару в форму хранилища.
func EncodeShare(s Share) ([]byte, error) {
	switch sh := s.(type) {
	case *SoloShare:
		adoptable := sh.CanAdopt
		return json.Marshal(shareRecord{
			Type:      ShareTypeSolo,
			Expire:    sh.Expire,
			Host:      sh.Host,
			Adoptable: &adoptable,
		})
	case *GroupShare:
		return json.Marshal(shareRecord{
			Type:     ShareTypeGroup,
			Expire:   sh.Expire,
			Hosts:    sh.Hosts,
			GroupPin: sh.PIN,
		})
	default:
		return nil, fmt.Errorf("encode share: unknown variant %T", s)
	}
}

// DecodeShare разбирает запись хранилища и возвращает конкретный вариант
// по тегу type. Неизвестный тег — ошибка (запись повреждена или от более
// новой версии).
func DecodeShare(id string, data []byte) (Share, error) {
	var rec shareRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode share %s: %w", id, err)
	}
	switch rec.Type {
	case ShareTypeSolo:
		adoptable := rec.Adoptable != nil && *rec.Adoptable
		return &SoloShare{ID: id, Expire: rec.Expire, Host: rec.Host, CanAdopt: adoptable}, nil
	case ShareTypeGroup:
		hosts := rec.Hosts
		if hosts == nil {
			hosts = map[string]string{}
		}
		return &GroupShare{ID: id, Expire: rec.Expire, Hosts: hosts, PIN: rec.GroupPin}, nil
	default:
		return nil, fmt.Errorf("decode share %s: unknown type tag %d", id, rec.Type)
	}
}
