package handler

import (
	"net/http"
)

// Fetch отдаёт зрителю агрегат шары в JSON. Промах по ID и истёкшие
// записи неотличимы — обе дают "Invalid session!".
func (h *Handler) Fetch(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeLines(w, "Missing data!")
		return
	}
	res, err := h.svc.Fetch(r.Context(), id)
	if err != nil {
		writeServiceError(w, "fetch share", err)
		return
	}
	writeJSON(w, res)
}

// Adopt поглощает чужую одиночную шару в групповую по её PIN.
func (h *Handler) Adopt(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeLines(w, "Missing data!")
		return
	}
	if !requireForm(w, r, "sid", "nic", "aid", "pin") {
		return
	}
	err := h.svc.Adopt(
		r.Context(),
		r.PostForm.Get("sid"),
		r.PostForm.Get("aid"),
		r.PostForm.Get("pin"),
		r.PostForm.Get("nic"),
	)
	if err != nil {
		writeServiceError(w, "adopt share", err)
		return
	}
	writeLines(w, "OK")
}

// NewLink выпускает дополнительную одиночную ссылку для живой сессии.
func (h *Handler) NewLink(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeLines(w, "Missing data!")
		return
	}
	if !requireForm(w, r, "sid", "ado") {
		return
	}
	sess, err := h.svc.GetSession(r.Context(), r.PostForm.Get("sid"))
	if err != nil {
		writeServiceError(w, "new link", err)
		return
	}
	adoptable := r.PostForm.Get("ado") == "1"
	share, err := h.svc.CreateSolo(r.Context(), sess, adoptable, r.PostForm.Get("lid"), "")
	if err != nil {
		writeServiceError(w, "new link", err)
		return
	}
	writeLines(w, "OK", h.svc.ViewLink(share.ID), share.ID)
}
