// Package pool hands out bot credentials to bridge sessions. Pools are
// small (tens of credentials at most), so lookup is a linear scan.
package pool

import (
	"fmt"
	"sync"
)

// Credential is one bot identity: its token plus the channel category the
// bot provisions voice channels under. Exactly one active session holds a
// given credential at any time.
type Credential struct {
	Token    string
	Category string
	UserID   uint64
}

// Handle is an opaque reference to an acquired credential. Sessions keep
// the handle rather than a pool back-reference, and release through the
// registry when they wind down.
type Handle int

// ErrExhausted is returned when every credential is already assigned.
var ErrExhausted = fmt.Errorf("no free bot credentials")

// BotPool tracks which credentials are assigned.
type BotPool struct {
	mu          sync.Mutex
	credentials []Credential
	assigned    []bool
}

// New builds a pool over the given credentials.
func New(credentials []Credential) *BotPool {
	return &BotPool{
		credentials: credentials,
		assigned:    make([]bool, len(credentials)),
	}
}

// Acquire returns the first free credential, or ErrExhausted.
func (p *BotPool) Acquire() (Credential, Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, taken := range p.assigned {
		if !taken {
			p.assigned[i] = true
			return p.credentials[i], Handle(i), nil
		}
	}
	return Credential{}, 0, ErrExhausted
}

// Release returns a credential to the pool. Releasing an unassigned or
// out-of-range handle is a no-op.
func (p *BotPool) Release(h Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int(h) < 0 || int(h) >= len(p.assigned) {
		return
	}
	p.assigned[h] = false
}

// Free reports how many credentials are unassigned.
func (p *BotPool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	free := 0
	for _, taken := range p.assigned {
		if !taken {
			free++
		}
	}
	return free
}

// Size reports the total credential count.
func (p *BotPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.credentials)
}
