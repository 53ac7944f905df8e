package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/locshare/internal/logger"
	"github.com/locshare/internal/ws"
)

// Зрительские страницы открываются с произвольных origin-ов, сама шара и
// так доступна любому, кто знает ссылку.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Live апгрейдит зрителя до WebSocket: сразу после подключения приходит
// текущий снимок шары, дальше — обновления по мере поступления точек.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		http.NotFound(w, r)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		writeLines(w, "Missing data!")
		return
	}
	res, err := h.svc.Fetch(r.Context(), id)
	if err != nil {
		writeServiceError(w, "live viewer", err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту при отказе.
		logger.Errorf("ws upgrade share=%s: %v", id, err)
		return
	}

	client := ws.NewClient(h.hub, conn, id)
	h.hub.Register(client)
	ctx, cancel := context.WithCancel(context.Background())
	client.Start(ctx, cancel)

	if snapshot, err := json.Marshal(res); err == nil {
		client.Send(snapshot)
	}
}
