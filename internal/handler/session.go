package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/locshare/internal/auth"
	"github.com/locshare/internal/config"
	"github.com/locshare/internal/model"
	"github.com/locshare/internal/service"
	"github.com/locshare/internal/ws"
)

// Handler обслуживает совместимый с мобильными клиентами HTTP API.
// authn == nil означает открытый инстанс без проверки пароля,
// hub == nil — инстанс без живых зрителей (только поллинг fetch).
type Handler struct {
	cfg   *config.Config
	svc   *service.RelayService
	authn auth.Authenticator
	hub   *ws.Hub
}

func New(cfg *config.Config, svc *service.RelayService, authn auth.Authenticator, hub *ws.Hub) *Handler {
	return &Handler{cfg: cfg, svc: svc, authn: authn, hub: hub}
}

// Create начинает новую сессию шаринга: ?mod=0 — одиночная ссылка,
// ?mod=1 — новая группа, ?mod=2 — вход в группу по PIN.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeLines(w, "Missing data!")
		return
	}
	if !requireForm(w, r, "dur", "int") {
		return
	}
	if !h.authenticate(w, r) {
		return
	}

	// Ошибки разбора дают нулевые значения и отсекаются валидацией границ.
	dur, _ := strconv.Atoi(r.PostForm.Get("dur"))
	interval, _ := strconv.ParseFloat(r.PostForm.Get("int"), 64)

	in := service.CreateSessionInput{Duration: dur, Interval: interval}
	if r.PostForm.Get("e2e") == "1" {
		if !requireForm(w, r, "sal") {
			return
		}
		in.E2E = true
		in.Salt = r.PostForm.Get("sal")
	}

	sess, err := h.svc.CreateSession(r.Context(), in)
	if err != nil {
		writeServiceError(w, "create session", err)
		return
	}

	switch r.PostForm.Get("mod") {
	case "", "0":
		adoptable := r.PostForm.Get("ado") == "1"
		share, err := h.svc.CreateSolo(r.Context(), sess, adoptable, r.PostForm.Get("lid"), r.PostForm.Get("usr"))
		if err != nil {
			writeServiceError(w, "create solo", err)
			return
		}
		writeLines(w, "OK", sess.ID, h.svc.ViewLink(share.ID), share.ID)
	case "1":
		if !requireForm(w, r, "nic") {
			return
		}
		group, err := h.svc.CreateGroup(r.Context(), sess, r.PostForm.Get("nic"))
		if err != nil {
			writeServiceError(w, "create group", err)
			return
		}
		writeLines(w, "OK", sess.ID, h.svc.ViewLink(group.ID), group.PIN, group.ID)
	case "2":
		if !requireForm(w, r, "nic", "pin") {
			return
		}
		group, err := h.svc.JoinGroup(r.Context(), sess, r.PostForm.Get("pin"), r.PostForm.Get("nic"))
		if err != nil {
			writeServiceError(w, "join group", err)
			return
		}
		writeLines(w, "OK", sess.ID, h.svc.ViewLink(group.ID), group.ID)
	default:
		writeLines(w, "Unsupported share mode!")
	}
}

// authenticate проверяет учётные данные формы (pwd, при необходимости usr).
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) bool {
	if h.authn == nil {
		return true
	}
	creds := auth.Credentials{
		Username: r.PostForm.Get("usr"),
		Password: r.PostForm.Get("pwd"),
	}
	if auth.RequiresUsername(h.authn) && creds.Username == "" {
		writeLines(w, "Missing data!")
		return false
	}
	ok, err := h.authn.Verify(r.Context(), creds)
	if err != nil {
		writeServiceError(w, "authenticate", err)
		return false
	}
	if !ok {
		writeLines(w, "Incorrect password!")
		return false
	}
	return true
}

// Post принимает очередную точку от хоста сессии.
func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeLines(w, "Missing data!")
		return
	}
	if !requireForm(w, r, "sid", "lat", "lon", "time") {
		return
	}

	sess, err := h.svc.GetSession(r.Context(), r.PostForm.Get("sid"))
	if err != nil {
		writeServiceError(w, "post location", err)
		return
	}

	var p model.Point
	if sess.Encrypted {
		// Шифрованная сессия: поля формы — base64-блобы, собираются в том же
		// порядке, что и открытый кортеж.
		if !requireForm(w, r, "iv") {
			return
		}
		p.IV = r.PostForm.Get("iv")
		p.Cipher = []string{
			r.PostForm.Get("lat"),
			r.PostForm.Get("lon"),
			r.PostForm.Get("time"),
		}
		for _, f := range []string{"prv", "acc", "spd", "alt"} {
			if r.PostForm.Has(f) {
				p.Cipher = append(p.Cipher, r.PostForm.Get(f))
			}
		}
	} else {
		p.Lat, _ = strconv.ParseFloat(r.PostForm.Get("lat"), 64)
		p.Lon, _ = strconv.ParseFloat(r.PostForm.Get("lon"), 64)
		p.Time, _ = strconv.ParseFloat(r.PostForm.Get("time"), 64)
		if r.PostForm.Has("prv") {
			v := r.PostForm.Get("prv")
			p.Provider = &v
		}
		for f, dst := range map[string]**float64{"acc": &p.Accuracy, "spd": &p.Speed, "alt": &p.Altitude} {
			if r.PostForm.Has(f) {
				v, _ := strconv.ParseFloat(r.PostForm.Get(f), 64)
				*dst = &v
			}
		}
	}

	res, err := h.svc.PostLocation(r.Context(), sess, p)
	if err != nil {
		writeServiceError(w, "post location", err)
		return
	}
	if res.Expired {
		writeLines(w, "Session expired!")
		return
	}
	writeLines(w, "OK", h.cfg.PublicURL+"?%s", strings.Join(res.Targets, ","))
}

// Stop завершает сессию. Идемпотентно: неизвестный sid тоже "OK".
func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeLines(w, "Missing data!")
		return
	}
	if !requireForm(w, r, "sid") {
		return
	}
	if err := h.svc.StopSession(r.Context(), r.PostForm.Get("sid")); err != nil {
		writeServiceError(w, "stop session", err)
		return
	}
	writeLines(w, "OK")
}
