package util

import (
	"sync"
	"time"
)

// ErrorLimiter throttles repeated failure logging per error kind. Allow
// returns true at most once per interval for a given kind.
type ErrorLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[string]time.Time
	now      func() time.Time
}

func NewErrorLimiter(interval time.Duration) *ErrorLimiter {
	return &ErrorLimiter{
		interval: interval,
		last:     make(map[string]time.Time),
		now:      time.Now,
	}
}

func (l *ErrorLimiter) Allow(kind string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if last, ok := l.last[kind]; ok && now.Sub(last) < l.interval {
		return false
	}
	l.last[kind] = now
	return true
}
