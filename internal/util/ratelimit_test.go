package util_test

import (
	"testing"
	"time"

	"github.com/glizzus/voicebridge/internal/util"
)

func TestErrorLimiterAllowsOncePerInterval(t *testing.T) {
	now := time.Unix(0, 0)
	l := util.NewErrorLimiter(30 * time.Second)
	util.SetClock(l, func() time.Time { return now })

	if !l.Allow("sink-send") {
		t.Fatal("first Allow() = false, want true")
	}
	now = now.Add(29 * time.Second)
	if l.Allow("sink-send") {
		t.Error("Allow() within interval = true, want false")
	}
	now = now.Add(2 * time.Second)
	if !l.Allow("sink-send") {
		t.Error("Allow() after interval = false, want true")
	}
}

func TestErrorLimiterTracksKindsIndependently(t *testing.T) {
	now := time.Unix(0, 0)
	l := util.NewErrorLimiter(30 * time.Second)
	util.SetClock(l, func() time.Time { return now })

	if !l.Allow("sink-send") {
		t.Fatal("first Allow(sink-send) = false, want true")
	}
	if !l.Allow("rename") {
		t.Error("first Allow(rename) = false, want true (kinds are independent)")
	}
	if l.Allow("sink-send") {
		t.Error("repeated Allow(sink-send) = true, want false")
	}
}
