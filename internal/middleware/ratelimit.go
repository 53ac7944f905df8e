package middleware

import (
	"net/http"
	"sync"
	"time"
)

// Лимит по IP щедрый: хост с интервалом в 1 секунду постит 60 точек в
// минуту, плюс зрители за тем же NAT.
const (
	rateLimitWindow = time.Minute
	rateLimitMaxIP  = 600
)

type rateLimiter struct {
	mu     sync.Mutex
	times  map[string][]time.Time
	max    int
	window time.Duration
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	return &rateLimiter{times: make(map[string][]time.Time), max: max, window: window}
}

func (r *rateLimiter) allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	cutoff := now.Add(-r.window)
	slice := r.times[key]
	i := 0
	for _, t := range slice {
		if t.After(cutoff) {
			slice[i] = t
			i++
		}
	}
	slice = slice[:i]
	if len(slice) >= r.max {
		return false
	}
	r.times[key] = append(slice, now)
	return true
}

var apiRateByIP = newRateLimiter(rateLimitMaxIP, rateLimitWindow)

// RateLimitAPI ограничивает запросы к /api/* по IP. 429 при превышении.
func RateLimitAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if x := r.Header.Get("X-Real-Ip"); x != "" {
			ip = x
		} else if x := r.Header.Get("X-Forwarded-For"); x != "" {
			ip = x
		}
		if !apiRateByIP.allow(ip) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
