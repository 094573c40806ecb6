// Package jitter provides the per-speaker Opus playout buffer. Packets
// arrive tagged with a monotonic sequence number and come back out as one
// 20 ms decision per downlink tick: a real frame, a concealment request, or
// silence.
package jitter

import "sync"

// Result of a Pop call.
type Result int

const (
	// Silence means nothing is playable this tick; the buffer is filling.
	Silence Result = iota
	// Frame means a real Opus frame is returned.
	Frame
	// Conceal asks the downstream decoder for packet-loss concealment in
	// place of one missing frame.
	Conceal
)

const (
	// DefaultCapacity bounds the reorder window, in frames.
	DefaultCapacity = 32
	// DefaultDepth is the target playout depth (3 frames, 60 ms).
	DefaultDepth = 3

	minDepth = 2
	maxDepth = 8

	// maxConsecutiveConceal is how many gap ticks are concealed before the
	// buffer skips ahead to the next available frame.
	maxConsecutiveConceal = 2

	// adaptWindow is the Pop count between depth adaptations.
	adaptWindow = 200

	underrunThreshold = 5
	overrunThreshold  = 2
)

type entry struct {
	seq  uint64
	opus []byte
}

// Buffer is a bounded, depth-adaptive playout buffer for one speaker.
// Push and Pop are safe to call from different goroutines.
type Buffer struct {
	mu       sync.Mutex
	window   []entry
	capacity int
	depth    int

	started    bool
	lastPlayed uint64
	gapTicks   int

	pops      int
	underruns int
	overruns  int
}

// New returns a buffer with the default capacity and target depth.
func New() *Buffer {
	return &Buffer{capacity: DefaultCapacity, depth: DefaultDepth}
}

// Depth reports the current target playout depth, for tests and stats.
func (b *Buffer) Depth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.depth
}

// Push inserts a packet into the reorder window. It never blocks. Corrupt
// payloads, stale packets, and packets that do not fit are dropped silently.
func (b *Buffer) Push(seq uint64, opus []byte) {
	if len(opus) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		b.started = true
		b.lastPlayed = seq - 1
	}

	// Signed difference handles wraparound.
	if int64(seq-(b.lastPlayed+1)) < 0 {
		return
	}
	if len(b.window) >= b.capacity {
		b.overruns++
		return
	}

	// Insert sorted by sequence; duplicates are dropped.
	i := 0
	for ; i < len(b.window); i++ {
		diff := int64(b.window[i].seq - seq)
		if diff == 0 {
			return
		}
		if diff > 0 {
			break
		}
	}
	b.window = append(b.window, entry{})
	copy(b.window[i+1:], b.window[i:])
	b.window[i] = entry{seq: seq, opus: opus}
}

// Pop is called exactly once per 20 ms downlink tick and returns the
// playout decision for that tick. The returned payload is non-nil only for
// Frame results.
func (b *Buffer) Pop() (Result, []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pops++
	defer b.maybeAdapt()

	if !b.started || len(b.window) == 0 {
		if b.started {
			b.underruns++
		}
		return Silence, nil
	}

	next := b.lastPlayed + 1
	head := b.window[0]

	if head.seq == next {
		b.window = b.window[1:]
		b.lastPlayed = next
		b.gapTicks = 0
		return Frame, head.opus
	}

	// Head is ahead of the playout point. Conceal short gaps while we have
	// enough depth; skip ahead once the gap drags on.
	if len(b.window) >= b.depth {
		if b.gapTicks < maxConsecutiveConceal {
			b.gapTicks++
			b.lastPlayed = next
			return Conceal, nil
		}
		b.window = b.window[1:]
		b.lastPlayed = head.seq
		b.gapTicks = 0
		return Frame, head.opus
	}

	b.underruns++
	return Silence, nil
}

// maybeAdapt retunes the target depth every adaptWindow pops: persistent
// underruns deepen the buffer, clean overruns shrink it. Clamped to
// [minDepth, maxDepth].
func (b *Buffer) maybeAdapt() {
	if b.pops < adaptWindow {
		return
	}
	switch {
	case b.underruns >= underrunThreshold && b.depth < maxDepth:
		b.depth++
	case b.overruns >= overrunThreshold && b.underruns == 0 && b.depth > minDepth:
		b.depth--
	}
	b.pops = 0
	b.underruns = 0
	b.overruns = 0
}
