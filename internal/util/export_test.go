package util

import "time"

// SetClock overrides the limiter's time source in tests.
func SetClock(l *ErrorLimiter, now func() time.Time) {
	l.now = now
}
