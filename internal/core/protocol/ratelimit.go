package protocol

import (
	"sync"
	"time"

	"github.com/zeusync/cellsync/internal/core/models"
)

// RateLimiter is a per-connection fixed window counter applied by the
// transports before a frame reaches the world.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[models.ConnectionID]*clientWindow
}

type clientWindow struct {
	start time.Time
	count int
}

// NewRateLimiter allows limit frames per window. limit <= 0 disables it.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		clients: make(map[models.ConnectionID]*clientWindow),
	}
}

// Allow records one frame for conn and reports whether it is within budget.
func (l *RateLimiter) Allow(conn models.ConnectionID) bool {
	if l == nil || l.limit <= 0 {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.clients[conn]
	if !ok {
		w = &clientWindow{start: now}
		l.clients[conn] = w
	}
	if now.Sub(w.start) >= l.window {
		w.start = now
		w.count = 0
	}
	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

// Forget drops the window of a closed connection.
func (l *RateLimiter) Forget(conn models.ConnectionID) {
	if l == nil {
		return
	}
	l.mu.Lock()
	delete(l.clients, conn)
	l.mu.Unlock()
}
