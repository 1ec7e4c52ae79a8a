// Package ratelimit throttles inbound API requests per client with
// sliding windows over the last minute and hour.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Limiter tracks request timestamps per client key.
type Limiter struct {
	perMinute int
	perHour   int
	enabled   bool

	mu      sync.Mutex
	clients map[string]*clientWindows
	now     func() time.Time
}

type clientWindows struct {
	minute []time.Time
	hour   []time.Time
}

// NewLimiter creates a limiter. perHour of 0 disables the hourly cap.
func NewLimiter(perMinute, perHour int, enabled bool) *Limiter {
	return &Limiter{
		perMinute: perMinute,
		perHour:   perHour,
		enabled:   enabled,
		clients:   make(map[string]*clientWindows),
		now:       time.Now,
	}
}

// Allow records and permits the request unless the client has exhausted a
// window.
func (l *Limiter) Allow(key string) bool {
	if !l.enabled {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.clients[key]
	if w == nil {
		w = &clientWindows{}
		l.clients[key] = w
	}

	w.minute = pruneBefore(w.minute, now.Add(-time.Minute))
	w.hour = pruneBefore(w.hour, now.Add(-time.Hour))

	if len(w.minute) >= l.perMinute {
		return false
	}
	if l.perHour > 0 && len(w.hour) >= l.perHour {
		return false
	}

	w.minute = append(w.minute, now)
	w.hour = append(w.hour, now)
	return true
}

func pruneBefore(times []time.Time, cutoff time.Time) []time.Time {
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// Stats contains current usage for one client key.
type Stats struct {
	Enabled            bool `json:"enabled"`
	RequestsLastMinute int  `json:"requests_last_minute"`
	RequestsLastHour   int  `json:"requests_last_hour"`
	LimitPerMinute     int  `json:"limit_per_minute"`
	LimitPerHour       int  `json:"limit_per_hour"`
	RemainingMinute    int  `json:"remaining_this_minute"`
	RemainingHour      int  `json:"remaining_this_hour"`
}

// StatsFor returns current usage for a client key.
func (l *Limiter) StatsFor(key string) Stats {
	if !l.enabled {
		return Stats{Enabled: false}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	stats := Stats{
		Enabled:        true,
		LimitPerMinute: l.perMinute,
		LimitPerHour:   l.perHour,
	}

	if w := l.clients[key]; w != nil {
		w.minute = pruneBefore(w.minute, now.Add(-time.Minute))
		w.hour = pruneBefore(w.hour, now.Add(-time.Hour))
		stats.RequestsLastMinute = len(w.minute)
		stats.RequestsLastHour = len(w.hour)
	}

	stats.RemainingMinute = maxInt(0, l.perMinute-stats.RequestsLastMinute)
	stats.RemainingHour = maxInt(0, l.perHour-stats.RequestsLastHour)
	return stats
}

// Reset clears all tracked requests (useful for testing)
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clients = make(map[string]*clientWindows)
}

// Middleware rejects over-limit requests with 429. Clients are keyed by
// remote IP.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
