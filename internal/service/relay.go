package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/locshare/internal/config"
	"github.com/locshare/internal/logger"
	"github.com/locshare/internal/model"
	"github.com/locshare/internal/repository"
)

// LiveNotifier получает свежий fetch-payload шары после каждого поста точки.
// Если nil — живых зрителей нет, уведомления не строятся.
type LiveNotifier interface {
	Publish(shareID string, payload []byte)
}

// RelayService — оркестрация ретранслятора: создание сессий и шар,
// приём точек, каскадное завершение, усыновление, выдача агрегатов зрителям.
// Состояние процесса отсутствует: всё живёт в key-value-хранилище,
// гонка load-mutate-save принимается (последняя запись побеждает).
type RelayService struct {
	cfg      *config.Config
	sessions *repository.SessionRepository
	shares   *repository.ShareRepository
	live     LiveNotifier
	// now подменяется в тестах для проверки истечения без sleep.
	now func() time.Time
}

func NewRelayService(
	cfg *config.Config,
	sessions *repository.SessionRepository,
	shares *repository.ShareRepository,
	live LiveNotifier,
) *RelayService {
	return &RelayService{cfg: cfg, sessions: sessions, shares: shares, live: live, now: time.Now}
}

// SetClock подменяет источник времени (для тестов).
func (s *RelayService) SetClock(now func() time.Time) {
	s.now = now
}

// ViewLink возвращает публичную ссылку просмотра шары: настроенный базовый
// URL плюс ID. Чистая функция без побочных эффектов.
func (s *RelayService) ViewLink(shareID string) string {
	return s.cfg.PublicURL + "?" + shareID
}

// CreateSessionInput — параметры новой сессии.
type CreateSessionInput struct {
	Duration int     // секунд жизни
	Interval float64 // секунд между отчётами
	E2E      bool
	Salt     string
}

// CreateSession валидирует границы, выделяет ID и сохраняет новую сессию.
func (s *RelayService) CreateSession(ctx context.Context, in CreateSessionInput) (*model.Session, error) {
	if in.Duration <= 0 {
		return nil, ErrDurationInvalid
	}
	if in.Duration > s.cfg.MaxDuration {
		return nil, ErrShareTooLong
	}
	if in.Interval > float64(s.cfg.MaxDuration) {
		return nil, ErrIntervalTooLong
	}
	if in.Interval < s.cfg.MinInterval {
		return nil, ErrIntervalTooShort
	}
	sess, err := s.sessions.New(ctx)
	if err != nil {
		return nil, err
	}
	sess.Expire = s.now().Unix() + int64(in.Duration)
	sess.Interval = in.Interval
	sess.SetEncryption(in.E2E, in.Salt)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// GetSession загружает сессию вызывающего; промах — ErrSessionExpired.
func (s *RelayService) GetSession(ctx context.Context, sid string) (*model.Session, error) {
	sess, err := s.sessions.Get(ctx, sid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// CreateSolo создаёт одиночную шару для сессии и прописывает её в целях
// сессии. requestedID — необязательная кастомная ссылка (best-effort: при
// отказе политики используется сгенерированный ID, как и раньше).
func (s *RelayService) CreateSolo(ctx context.Context, sess *model.Session, adoptable bool, requestedID, username string) (*model.SoloShare, error) {
	id, err := s.resolveLinkID(ctx, requestedID, username)
	if err != nil {
		return nil, err
	}
	share := model.NewSoloShare(id)
	share.CanAdopt = adoptable
	share.Host = sess.ID
	share.Expire = sess.Expire
	if err := s.shares.Save(ctx, share); err != nil {
		return nil, err
	}
	sess.AddTarget(share.ID)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return share, nil
}

// resolveLinkID применяет политику кастомных ссылок и падает обратно на
// генерацию: кастомная ссылка принимается, только если запросы разрешены,
// ID свободен и резервирование (если настроено) допускает пользователя.
func (s *RelayService) resolveLinkID(ctx context.Context, requestedID, username string) (string, error) {
	if requestedID != "" && s.cfg.AllowLinkReq {
		if reserved, ok := s.cfg.ReservedLinks[requestedID]; ok {
			if !containsString(reserved, username) {
				requestedID = ""
			}
		} else if s.cfg.ReserveWhitelist {
			requestedID = ""
		}
		if requestedID != "" {
			free, err := s.shares.IsLinkFree(ctx, requestedID)
			if err != nil {
				return "", err
			}
			if free {
				return requestedID, nil
			}
		}
	}
	return s.shares.NewLinkID(ctx)
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// CreateGroup создаёт групповую шару с первым участником.
func (s *RelayService) CreateGroup(ctx context.Context, sess *model.Session, nick string) (*model.GroupShare, error) {
	id, err := s.shares.NewLinkID(ctx)
	if err != nil {
		return nil, err
	}
	pin, err := s.shares.NewPIN(ctx)
	if err != nil {
		return nil, err
	}
	share := model.NewGroupShare(id, pin)
	share.AddHost(nick, sess.ID)
	share.Expire = sess.Expire
	if err := s.shares.Save(ctx, share); err != nil {
		return nil, err
	}
	sess.AddTarget(share.ID)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return share, nil
}

// JoinGroup добавляет сессию в существующую группу по PIN.
func (s *RelayService) JoinGroup(ctx context.Context, sess *model.Session, pin, nick string) (*model.GroupShare, error) {
	share, err := s.shares.GetByPIN(ctx, pin)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrGroupPinInvalid
	}
	if err != nil {
		return nil, err
	}
	group, ok := share.(*model.GroupShare)
	if !ok {
		return nil, ErrGroupPinInvalid
	}
	group.AddHost(nick, sess.ID)
	expire, err := s.autoExpiration(ctx, group)
	if err != nil {
		return nil, err
	}
	group.Expire = expire
	if err := s.shares.Save(ctx, group); err != nil {
		return nil, err
	}
	sess.AddTarget(group.ID)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return group, nil
}

// Adopt поглощает одиночную шару в группу: группа получает нового хоста,
// а сессия-хост — группу как дополнительную цель. Сама одиночная шара
// остаётся нетронутой. Предусловия проверяются по порядку, каждое со своей
// причиной отказа.
func (s *RelayService) Adopt(ctx context.Context, callerSID, shareID, pin, nick string) error {
	if _, err := s.GetSession(ctx, callerSID); err != nil {
		return err
	}
	share, err := s.shares.Get(ctx, shareID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrShareNotFound
	}
	if err != nil {
		return err
	}
	solo, ok := share.(*model.SoloShare)
	if !ok {
		return ErrGroupNotAdoptable
	}
	if !solo.CanAdopt {
		return ErrAdoptionNotAllowed
	}
	host, err := s.sessions.Get(ctx, solo.Host)
	if errors.Is(err, repository.ErrNotFound) {
		// Шара без живого хоста мертва, усыновлять нечего.
		return ErrShareNotFound
	}
	if err != nil {
		return err
	}
	if host.Encrypted {
		// Сервер не может перешифровать поток под другую соль без участия
		// клиента, поэтому E2E-шары в группу не складываются.
		return ErrE2EAdoption
	}
	target, err := s.shares.GetByPIN(ctx, pin)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrGroupPinInvalid
	}
	if err != nil {
		return err
	}
	group, ok := target.(*model.GroupShare)
	if !ok {
		return ErrGroupPinInvalid
	}
	group.AddHost(nick, host.ID)
	expire, err := s.autoExpiration(ctx, group)
	if err != nil {
		return err
	}
	group.Expire = expire
	if err := s.shares.Save(ctx, group); err != nil {
		return err
	}
	host.AddTarget(group.ID)
	return s.sessions.Save(ctx, host)
}

// PostResult — ответ на пост точки.
type PostResult struct {
	Targets []string // ID шар, в которые сессия постит
	Expired bool     // сессия закончилась этим постом
}

// PostLocation добавляет точку к уже загруженной сессии (с FIFO-вытеснением
// до лимита) и сохраняет её. Для нешифрованных сессий координаты проверяются
// на границы; шифрованные блобы принимаются как есть. После сохранения живым
// зрителям целевых шар рассылается свежий payload.
func (s *RelayService) PostLocation(ctx context.Context, sess *model.Session, p model.Point) (*PostResult, error) {
	if !sess.Encrypted && !model.ValidCoordinates(p.Lat, p.Lon) {
		return nil, ErrLocationInvalid
	}
	sess.AddPoint(p, s.cfg.MaxCachedPoints)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	s.notifyTargets(ctx, sess.Targets)
	return &PostResult{Targets: sess.Targets, Expired: sess.HasExpired(s.now())}, nil
}

// notifyTargets строит и публикует fetch-payload каждой целевой шары.
// Ошибки только логируются: доставка зрителям — best-effort поверх
// обычного поллинга fetch.
func (s *RelayService) notifyTargets(ctx context.Context, targets []string) {
	if s.live == nil {
		return
	}
	for _, id := range targets {
		res, err := s.Fetch(ctx, id)
		if err != nil {
			continue
		}
		payload, err := json.Marshal(res)
		if err != nil {
			logger.Errorf("live payload share=%s: %v", id, err)
			continue
		}
		s.live.Publish(id, payload)
	}
}

// StopSession завершает сессию и каскадно прибирает её цели: одиночные шары
// удаляются, из групповых сессия выбывает с последующей чисткой группы.
// Отсутствующая сессия — no-op: остановка идемпотентна.
func (s *RelayService) StopSession(ctx context.Context, sid string) error {
	sess, err := s.sessions.Get(ctx, sid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, sid); err != nil {
		return err
	}
	for _, targetID := range sess.Targets {
		share, err := s.shares.Get(ctx, targetID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		switch sh := share.(type) {
		case *model.SoloShare:
			if err := s.shares.Delete(ctx, sh); err != nil {
				return err
			}
		case *model.GroupShare:
			sh.RemoveHost(sid)
			if err := s.Clean(ctx, sh); err != nil {
				return err
			}
		}
	}
	return nil
}

// Clean выбрасывает из группы хостов с несуществующими или истёкшими
// сессиями. Опустевшая группа удаляется вместе с PIN-индексом, иначе срок
// жизни пересчитывается по оставшимся хостам и группа сохраняется.
func (s *RelayService) Clean(ctx context.Context, group *model.GroupShare) error {
	now := s.now()
	for nick, sid := range group.Hosts {
		sess, err := s.sessions.Get(ctx, sid)
		if errors.Is(err, repository.ErrNotFound) {
			delete(group.Hosts, nick)
			continue
		}
		if err != nil {
			return err
		}
		if sess.HasExpired(now) {
			delete(group.Hosts, nick)
		}
	}
	if len(group.Hosts) == 0 {
		return s.shares.Delete(ctx, group)
	}
	expire, err := s.autoExpiration(ctx, group)
	if err != nil {
		return err
	}
	group.Expire = expire
	return s.shares.Save(ctx, group)
}

// autoExpiration — максимум сроков жизни по существующим сессиям-хостам,
// 0 если живых хостов нет.
func (s *RelayService) autoExpiration(ctx context.Context, group *model.GroupShare) (int64, error) {
	var max int64
	for _, sid := range group.Hosts {
		sess, err := s.sessions.Get(ctx, sid)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if sess.Expire > max {
			max = sess.Expire
		}
	}
	return max, nil
}

// autoInterval — минимальный интервал по существующим сессиям-хостам;
// ok=false, если живых хостов нет.
func (s *RelayService) autoInterval(ctx context.Context, group *model.GroupShare) (float64, bool, error) {
	var min float64
	found := false
	for _, sid := range group.Hosts {
		sess, err := s.sessions.Get(ctx, sid)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, false, err
		}
		if !found || sess.Interval < min {
			min = sess.Interval
			found = true
		}
	}
	return min, found, nil
}

// FetchResult — агрегат для зрителей. Для одиночной шары Points — плоский
// список точек (плюс соль при E2E), для групповой — отображение
// ник → список точек по живым хостам.
type FetchResult struct {
	Type      model.ShareType `json:"type"`
	Expire    int64           `json:"expire"`
	Interval  float64         `json:"interval"`
	Encrypted *bool           `json:"encrypted,omitempty"`
	Salt      *string         `json:"salt,omitempty"`
	Points    any             `json:"points"`
}

// Fetch собирает данные шары для зрителя. Промах по ID, истёкшая запись или
// одиночная шара без живого хоста — ErrInvalidSession.
func (s *RelayService) Fetch(ctx context.Context, shareID string) (*FetchResult, error) {
	share, err := s.shares.Get(ctx, shareID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}
	switch sh := share.(type) {
	case *model.SoloShare:
		host, err := s.sessions.Get(ctx, sh.Host)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		if err != nil {
			return nil, err
		}
		res := &FetchResult{
			Type:      model.ShareTypeSolo,
			Expire:    sh.Expire,
			Interval:  host.Interval,
			Encrypted: &host.Encrypted,
			Points:    host.Points,
		}
		if host.Encrypted {
			res.Salt = &host.Salt
		}
		return res, nil
	case *model.GroupShare:
		interval, _, err := s.autoInterval(ctx, sh)
		if err != nil {
			return nil, err
		}
		points := map[string][]model.Point{}
		for nick, sid := range sh.Hosts {
			sess, err := s.sessions.Get(ctx, sid)
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			points[nick] = sess.Points
		}
		return &FetchResult{
			Type:     model.ShareTypeGroup,
			Expire:   sh.Expire,
			Interval: interval,
			Points:   points,
		}, nil
	default:
		return nil, fmt.Errorf("fetch %s: unknown share variant %T", shareID, share)
	}
}
