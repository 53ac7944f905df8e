package middleware

import "net/http"

// backendVersion сообщается клиентам: по ней мобильное приложение
// определяет поддерживаемые возможности бэкенда.
const (
	versionHeader  = "X-Hauk-Version"
	backendVersion = "1.6.2"
)

// Version добавляет заголовок с версией протокола ко всем ответам API.
func Version(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(versionHeader, backendVersion)
		next.ServeHTTP(w, r)
	})
}
