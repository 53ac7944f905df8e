package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/locshare/internal/auth"
	"github.com/locshare/internal/config"
	"github.com/locshare/internal/linkid"
	"github.com/locshare/internal/repository"
	"github.com/locshare/internal/service"
	"github.com/locshare/internal/storage/memory"
)

func testConfig() *config.Config {
	return &config.Config{
		PublicURL:       "https://maps.example.com/",
		MaxDuration:     86400,
		MinInterval:     1,
		MaxCachedPoints: 3,
		LinkStyle:       linkid.Style44Upper,
		AllowLinkReq:    true,
	}
}

// newTestHandler поднимает полный стек над in-memory-хранилищем.
// authn == nil — открытый инстанс.
func newTestHandler(t *testing.T, authn auth.Authenticator) (*Handler, *service.RelayService) {
	t.Helper()
	cfg := testConfig()
	store := memory.New()
	svc := service.NewRelayService(
		cfg,
		repository.NewSessionRepository(store),
		repository.NewShareRepository(store, cfg.LinkStyle),
		nil,
	)
	return New(cfg, svc, authn, nil), svc
}

func postForm(h http.HandlerFunc, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

// lines разбирает newline-терминированный ответ протокола.
func lines(rec *httptest.ResponseRecorder) []string {
	body := rec.Body.String()
	return strings.Split(strings.TrimSuffix(body, "\n"), "\n")
}

func createSolo(t *testing.T, h *Handler, extra url.Values) (sid, shareID string) {
	t.Helper()
	form := url.Values{"dur": {"600"}, "int": {"5"}}
	for k, v := range extra {
		form[k] = v
	}
	rec := postForm(h.Create, form)
	got := lines(rec)
	require.Equal(t, "OK", got[0], "create reply: %q", rec.Body.String())
	require.Len(t, got, 4)
	return got[1], got[3]
}

func TestCreateSoloWireFormat(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	rec := postForm(h.Create, url.Values{"dur": {"600"}, "int": {"5"}})
	require.Equal(t, http.StatusOK, rec.Code)
	got := lines(rec)
	require.Len(t, got, 4)
	assert.Equal(t, "OK", got[0])
	assert.Len(t, got[1], 64) // sid
	assert.Equal(t, "https://maps.example.com/?"+got[3], got[2])
	assert.True(t, strings.HasSuffix(rec.Body.String(), "\n"))
}

func TestCreateMissingData(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	rec := postForm(h.Create, url.Values{"int": {"5"}})
	assert.Equal(t, "Missing data!\n", rec.Body.String())

	rec = postForm(h.Create, url.Values{"dur": {"600"}})
	assert.Equal(t, "Missing data!\n", rec.Body.String())
}

func TestCreateValidationMessages(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	rec := postForm(h.Create, url.Values{"dur": {"0"}, "int": {"5"}})
	assert.Equal(t, "Invalid duration!\n", rec.Body.String())

	rec = postForm(h.Create, url.Values{"dur": {"999999"}, "int": {"5"}})
	assert.Equal(t, "Share period is too long!\n", rec.Body.String())

	rec = postForm(h.Create, url.Values{"dur": {"600"}, "int": {"0.1"}})
	assert.Equal(t, "Ping interval is too short!\n", rec.Body.String())

	// Нечисловой dur трактуется как ноль.
	rec = postForm(h.Create, url.Values{"dur": {"abc"}, "int": {"5"}})
	assert.Equal(t, "Invalid duration!\n", rec.Body.String())
}

func TestCreatePasswordAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	h, _ := newTestHandler(t, auth.NewPasswordAuthenticator(string(hash)))

	rec := postForm(h.Create, url.Values{"dur": {"600"}, "int": {"5"}, "pwd": {"wrong"}})
	assert.Equal(t, "Incorrect password!\n", rec.Body.String())

	rec = postForm(h.Create, url.Values{"dur": {"600"}, "int": {"5"}, "pwd": {"secret"}})
	assert.Equal(t, "OK", lines(rec)[0])
}

func TestCreateGroupWireFormat(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	rec := postForm(h.Create, url.Values{"dur": {"600"}, "int": {"5"}, "mod": {"1"}, "nic": {"alice"}})
	got := lines(rec)
	require.Len(t, got, 5)
	assert.Equal(t, "OK", got[0])
	assert.Len(t, got[3], 6) // PIN
	assert.Equal(t, "https://maps.example.com/?"+got[4], got[2])

	// Вход в группу по PIN.
	rec = postForm(h.Create, url.Values{"dur": {"600"}, "int": {"5"}, "mod": {"2"}, "nic": {"bob"}, "pin": {got[3]}})
	joined := lines(rec)
	require.Len(t, joined, 4)
	assert.Equal(t, "OK", joined[0])
	assert.Equal(t, got[4], joined[3]) // та же шара

	rec = postForm(h.Create, url.Values{"dur": {"600"}, "int": {"5"}, "mod": {"2"}, "nic": {"eve"}, "pin": {"000000"}})
	assert.Equal(t, "Invalid group PIN!\n", rec.Body.String())
}

func TestCreateUnsupportedMode(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	rec := postForm(h.Create, url.Values{"dur": {"600"}, "int": {"5"}, "mod": {"9"}})
	assert.Equal(t, "Unsupported share mode!\n", rec.Body.String())
}

func TestPostWireFormat(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	sid, shareID := createSolo(t, h, nil)

	rec := postForm(h.Post, url.Values{
		"sid": {sid}, "lat": {"59.33"}, "lon": {"18.07"}, "time": {"1700000000"},
		"prv": {"gps"}, "acc": {"10"},
	})
	got := lines(rec)
	require.Len(t, got, 3)
	assert.Equal(t, "OK", got[0])
	// Вторая строка — шаблон ссылки с literal %s, подставляет клиент.
	assert.Equal(t, "https://maps.example.com/?%s", got[1])
	assert.Equal(t, shareID, got[2])
}

func TestPostUnknownSession(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	rec := postForm(h.Post, url.Values{
		"sid": {"deadbeef"}, "lat": {"1"}, "lon": {"2"}, "time": {"3"},
	})
	assert.Equal(t, "Session expired!\n", rec.Body.String())
}

func TestPostInvalidLocation(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	sid, _ := createSolo(t, h, nil)

	rec := postForm(h.Post, url.Values{
		"sid": {sid}, "lat": {"91"}, "lon": {"0"}, "time": {"1"},
	})
	assert.Equal(t, "Invalid location!\n", rec.Body.String())
}

func TestPostEncryptedRequiresIV(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	sid, _ := createSolo(t, h, url.Values{"e2e": {"1"}, "sal": {"c2FsdA=="}})

	rec := postForm(h.Post, url.Values{
		"sid": {sid}, "lat": {"bGF0"}, "lon": {"bG9u"}, "time": {"dA=="},
	})
	assert.Equal(t, "Missing data!\n", rec.Body.String())

	rec = postForm(h.Post, url.Values{
		"sid": {sid}, "lat": {"bGF0"}, "lon": {"bG9u"}, "time": {"dA=="}, "iv": {"aXY="},
	})
	assert.Equal(t, "OK", lines(rec)[0])
}

func TestFetchWireFormat(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	sid, shareID := createSolo(t, h, nil)

	postForm(h.Post, url.Values{
		"sid": {sid}, "lat": {"59.33"}, "lon": {"18.07"}, "time": {"1700000000"},
	})

	req := httptest.NewRequest(http.MethodGet, "/?id="+url.QueryEscape(shareID), nil)
	rec := httptest.NewRecorder()
	h.Fetch(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var body struct {
		Type      int         `json:"type"`
		Expire    int64       `json:"expire"`
		Interval  float64     `json:"interval"`
		Encrypted *bool       `json:"encrypted"`
		Points    [][]float64 `json:"points"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 0, body.Type)
	assert.Equal(t, 5.0, body.Interval)
	require.NotNil(t, body.Encrypted)
	assert.False(t, *body.Encrypted)
	require.Len(t, body.Points, 1)
	assert.Equal(t, 59.33, body.Points[0][0])
	assert.Equal(t, 18.07, body.Points[0][1])
}

func TestFetchErrors(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.Fetch(rec, req)
	assert.Equal(t, "Missing data!\n", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/?id=ZZZZ-0000", nil)
	rec = httptest.NewRecorder()
	h.Fetch(rec, req)
	assert.Equal(t, "Invalid session!\n", rec.Body.String())
}

func TestStopIdempotent(t *testing.T) {
	h, svc := newTestHandler(t, nil)
	sid, shareID := createSolo(t, h, nil)

	rec := postForm(h.Stop, url.Values{"sid": {sid}})
	assert.Equal(t, "OK\n", rec.Body.String())

	_, err := svc.Fetch(context.Background(), shareID)
	assert.Error(t, err)

	// Неизвестный sid тоже отвечает OK.
	rec = postForm(h.Stop, url.Values{"sid": {"deadbeef"}})
	assert.Equal(t, "OK\n", rec.Body.String())
}

func TestAdoptWireFormat(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	// Групповая шара вызывающего.
	rec := postForm(h.Create, url.Values{"dur": {"600"}, "int": {"5"}, "mod": {"1"}, "nic": {"caller"}})
	got := lines(rec)
	require.Equal(t, "OK", got[0])
	callerSID, pin, groupID := got[1], got[3], got[4]

	// Усыновляемая одиночная шара.
	_, adoptableID := createSolo(t, h, url.Values{"ado": {"1"}})

	rec = postForm(h.Adopt, url.Values{
		"sid": {callerSID}, "nic": {"walker"}, "aid": {adoptableID}, "pin": {pin},
	})
	assert.Equal(t, "OK\n", rec.Body.String())

	// Группу усыновить нельзя.
	rec = postForm(h.Adopt, url.Values{
		"sid": {callerSID}, "nic": {"walker"}, "aid": {groupID}, "pin": {pin},
	})
	assert.Equal(t, "Group shares cannot be adopted!\n", rec.Body.String())

	// Одиночная без разрешения на усыновление.
	_, lockedID := createSolo(t, h, nil)
	rec = postForm(h.Adopt, url.Values{
		"sid": {callerSID}, "nic": {"walker"}, "aid": {lockedID}, "pin": {pin},
	})
	assert.Equal(t, "This share does not allow adoption!\n", rec.Body.String())
}

func TestNewLinkWireFormat(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	sid, firstID := createSolo(t, h, nil)

	rec := postForm(h.NewLink, url.Values{"sid": {sid}, "ado": {"0"}, "lid": {"extra-walk"}})
	got := lines(rec)
	require.Len(t, got, 3)
	assert.Equal(t, "OK", got[0])
	assert.Equal(t, "extra-walk", got[2])
	assert.Equal(t, "https://maps.example.com/?extra-walk", got[1])
	assert.NotEqual(t, firstID, got[2])

	rec = postForm(h.NewLink, url.Values{"sid": {"deadbeef"}, "ado": {"0"}})
	assert.Equal(t, "Session expired!\n", rec.Body.String())
}
