package provider

import (
	"log"
	"sync"
	"time"
)

// Breaker halts requests to a listing host that has started blocking us.
// Two consecutive block-shaped responses trip it immediately; otherwise a
// sustained failure rate over a request window trips it. After the cooldown
// the next call is allowed through as a probe.
type Breaker struct {
	windowSize    int
	rateThreshold float64
	cooldown      time.Duration

	mu           sync.Mutex
	open         bool
	failures     int
	requests     int
	consecutive  int
	lastTripTime time.Time
}

// NewBreaker creates a breaker that trips when failures reach the given
// rate across windowSize requests, and stays open for the cooldown.
func NewBreaker(windowSize int, rateThreshold float64, cooldown time.Duration) *Breaker {
	return &Breaker{
		windowSize:    windowSize,
		rateThreshold: rateThreshold,
		cooldown:      cooldown,
	}
}

// Allow reports whether a request may proceed. An open breaker past its
// cooldown resets and lets the request through.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}
	if time.Since(b.lastTripTime) > b.cooldown {
		log.Printf("Provider: breaker half-open after %v cooldown", b.cooldown)
		b.open = false
		b.failures = 0
		b.requests = 0
		b.consecutive = 0
		return true
	}
	return false
}

// Success records a served request.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests++
	b.consecutive = 0
}

// Failure records a failed request. Status codes typical of a WAF block
// (403, 429, 500) trip the breaker after two in a row.
func (b *Breaker) Failure(statusCode int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.requests++
	b.consecutive++
	b.lastTripTime = time.Now()

	if b.consecutive >= 2 && (statusCode == 403 || statusCode == 429 || statusCode == 500) {
		b.open = true
		log.Printf("Provider: breaker open after %d consecutive %d responses, pausing %v", b.consecutive, statusCode, b.cooldown)
		return
	}

	if b.requests >= b.windowSize {
		rate := float64(b.failures) / float64(b.requests)
		if rate >= b.rateThreshold {
			b.open = true
			log.Printf("Provider: breaker open at %.0f%% failure rate (%d/%d), pausing %v", rate*100, b.failures, b.requests, b.cooldown)
		}
	}
}

// Status returns the breaker state for diagnostics endpoints.
func (b *Breaker) Status() (open bool, failures, requests int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open, b.failures, b.requests
}
