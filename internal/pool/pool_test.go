package pool_test

import (
	"errors"
	"testing"

	"github.com/glizzus/voicebridge/internal/pool"
)

func newPool(n int) *pool.BotPool {
	credentials := make([]pool.Credential, n)
	for i := range credentials {
		credentials[i] = pool.Credential{Token: "token", UserID: uint64(i)}
	}
	return pool.New(credentials)
}

func TestAcquireHandsOutEachCredentialOnce(t *testing.T) {
	p := newPool(3)
	seen := make(map[uint64]bool)
	for i := 0; i < 3; i++ {
		cred, _, err := p.Acquire()
		if err != nil {
			t.Fatalf("Acquire() %d returned error: %v", i, err)
		}
		if seen[cred.UserID] {
			t.Fatalf("credential %d handed out twice", cred.UserID)
		}
		seen[cred.UserID] = true
	}

	if _, _, err := p.Acquire(); !errors.Is(err, pool.ErrExhausted) {
		t.Errorf("Acquire() on empty pool = %v, want ErrExhausted", err)
	}
}

func TestReleaseMakesCredentialAvailableAgain(t *testing.T) {
	p := newPool(1)
	first, handle, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire() returned error: %v", err)
	}
	p.Release(handle)

	second, _, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire() after release returned error: %v", err)
	}
	if second.UserID != first.UserID {
		t.Errorf("re-acquired credential %d, want %d", second.UserID, first.UserID)
	}
}

func TestReleaseOutOfRangeIsNoop(t *testing.T) {
	p := newPool(1)
	p.Release(pool.Handle(-1))
	p.Release(pool.Handle(7))
	if free := p.Free(); free != 1 {
		t.Errorf("Free() = %d, want 1", free)
	}
}

func TestFreeAndSize(t *testing.T) {
	p := newPool(2)
	if p.Size() != 2 || p.Free() != 2 {
		t.Fatalf("fresh pool Size/Free = %d/%d, want 2/2", p.Size(), p.Free())
	}
	_, handle, _ := p.Acquire()
	if p.Free() != 1 {
		t.Errorf("Free() = %d after acquire, want 1", p.Free())
	}
	p.Release(handle)
	if p.Free() != 2 {
		t.Errorf("Free() = %d after release, want 2", p.Free())
	}
}
