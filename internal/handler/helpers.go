package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/locshare/internal/logger"
	"github.com/locshare/internal/service"
)

// writeLines пишет newline-терминированный текстовый ответ протокола:
// первая строка "OK" либо единственная строка с сообщением об ошибке.
func writeLines(w http.ResponseWriter, lines ...string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(strings.Join(lines, "\n") + "\n")); err != nil {
		logger.Errorf("writeLines: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("writeJSON encode: %v", err)
	}
}

// requireForm проверяет наличие всех обязательных полей формы.
// Отсутствие любого — единственная строка "Missing data!".
func requireForm(w http.ResponseWriter, r *http.Request, fields ...string) bool {
	for _, f := range fields {
		if !r.PostForm.Has(f) {
			writeLines(w, "Missing data!")
			return false
		}
	}
	return true
}

// wireMessage переводит ошибки сервиса в строки протокола; пустая строка —
// ошибка не пользовательская (сбой хранилища и т.п.).
func wireMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrSessionExpired):
		return "Session expired!"
	case errors.Is(err, service.ErrShareNotFound):
		return "Share not found!"
	case errors.Is(err, service.ErrGroupNotAdoptable):
		return "Group shares cannot be adopted!"
	case errors.Is(err, service.ErrAdoptionNotAllowed):
		return "This share does not allow adoption!"
	case errors.Is(err, service.ErrE2EAdoption):
		return "End-to-end encrypted shares cannot be adopted!"
	case errors.Is(err, service.ErrGroupPinInvalid):
		return "Invalid group PIN!"
	case errors.Is(err, service.ErrDurationInvalid):
		return "Invalid duration!"
	case errors.Is(err, service.ErrShareTooLong):
		return "Share period is too long!"
	case errors.Is(err, service.ErrIntervalTooLong):
		return "Ping interval is too long!"
	case errors.Is(err, service.ErrIntervalTooShort):
		return "Ping interval is too short!"
	case errors.Is(err, service.ErrLocationInvalid):
		return "Invalid location!"
	case errors.Is(err, service.ErrInvalidSession):
		return "Invalid session!"
	}
	return ""
}

// writeServiceError отвечает строкой протокола, а для непользовательских
// ошибок (недоступное хранилище) — обобщённым 500 без деталей.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	if msg := wireMessage(err); msg != "" {
		writeLines(w, msg)
		return
	}
	logger.Errorf("%s: %v", op, err)
	w.WriteHeader(http.StatusInternalServerError)
	writeLines(w, "Internal server error!")
}
