// Package ratelimit provides fixed-window rate limiting for the webhook endpoint.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Config configures rate limiting
type Config struct {
	// MaxRequests is the max requests per client key per window
	MaxRequests int
	// Window is the fixed counting window
	Window time.Duration
	// CleanupInterval is how often to sweep stale windows
	CleanupInterval time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxRequests:     100,
		Window:          time.Minute,
		CleanupInterval: time.Minute,
	}
}

// Limiter tracks request counts per client key in fixed windows.
// The window state is process-wide; callers inject one Limiter and
// share it across requests.
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	clients map[string]*windowState
	stop    chan struct{}
	once    sync.Once
}

type windowState struct {
	windowStart time.Time
	count       int
}

// New creates a new rate limiter and starts its sweep goroutine.
func New(cfg Config) *Limiter {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = DefaultConfig().MaxRequests
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = cfg.Window
	}
	l := &Limiter{
		cfg:     cfg,
		clients: make(map[string]*windowState),
		stop:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

// sweep removes stale windows periodically to bound memory.
func (l *Limiter) sweep() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			cutoff := time.Now().Add(-2 * l.cfg.Window)
			for key, state := range l.clients {
				if state.windowStart.Before(cutoff) {
					delete(l.clients, key)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}

// Stop stops the sweep goroutine
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

// Allow checks if a request from the given client key should be allowed.
// A new window starts when the previous one has elapsed; within a window
// at most MaxRequests are admitted.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	state, exists := l.clients[key]

	if !exists || now.Sub(state.windowStart) >= l.cfg.Window {
		l.clients[key] = &windowState{windowStart: now, count: 1}
		return true
	}

	if state.count >= l.cfg.MaxRequests {
		return false
	}

	state.count++
	return true
}

// Middleware returns a Gin middleware that rate limits by client IP.
// It runs before signature verification so abusive traffic is shed cheaply.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			retryAfter := int(l.cfg.Window.Seconds())
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limit_exceeded",
				"message":     "Too many requests. Please slow down.",
				"retry_after": retryAfter,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
