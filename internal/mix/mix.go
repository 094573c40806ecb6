// Package mix combines per-player microphone frames into the single Opus
// stream a session sends to its remote voice channel. The downlink needs no
// mixing at all: remote speakers map onto distinct per-user sinks in the
// host, so the bridge session routes those frames directly.
package mix

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"layeh.com/gopus"
)

const (
	// SampleRate and Channels are fixed by the remote voice transport:
	// 48 kHz stereo, 20 ms frames.
	SampleRate = 48000
	Channels   = 2

	// FrameSamples is samples per channel in one 20 ms frame.
	FrameSamples = 960

	frameTotal   = FrameSamples * Channels
	maxOpusBytes = 4000

	// decoderIdleReset is how long a player can be silent before their
	// decoder state is discarded, so concealment state from the previous
	// utterance does not bleed into the next one.
	decoderIdleReset = time.Second
)

type decoderState struct {
	dec      *gopus.Decoder
	lastUsed time.Time
}

// Mixer decodes per-player Opus frames, sums them with saturation, and
// re-encodes one outgoing frame. Encoder state is per-session; callers must
// Reset on session restart. Not safe for concurrent use; the uplink task is
// the only caller.
type Mixer struct {
	enc      *gopus.Encoder
	decoders map[uuid.UUID]*decoderState
}

func NewMixer() (*Mixer, error) {
	enc, err := gopus.NewEncoder(SampleRate, Channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}
	return &Mixer{
		enc:      enc,
		decoders: make(map[uuid.UUID]*decoderState),
	}, nil
}

// Mix decodes every player frame available this tick, sums the PCM with
// 16-bit saturation, and returns one encoded 20 ms frame. Decode order does
// not matter. Returns nil with no error when there is nothing to send.
// Frames that fail to decode are skipped.
func (m *Mixer) Mix(frames map[uuid.UUID][]byte, now time.Time) ([]byte, error) {
	if len(frames) == 0 {
		m.expireIdle(now)
		return nil, nil
	}

	var sum [frameTotal]int32
	mixed := false
	for player, opus := range frames {
		if len(opus) == 0 {
			continue
		}
		pcm, err := m.decode(player, opus, now)
		if err != nil {
			continue
		}
		for i, s := range pcm {
			sum[i] += int32(s)
		}
		mixed = true
	}
	m.expireIdle(now)
	if !mixed {
		return nil, nil
	}

	out := make([]int16, frameTotal)
	for i, s := range sum {
		out[i] = saturate(s)
	}
	encoded, err := m.enc.Encode(out, FrameSamples, maxOpusBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode mixed frame: %w", err)
	}
	return encoded, nil
}

func (m *Mixer) decode(player uuid.UUID, opus []byte, now time.Time) ([]int16, error) {
	state, ok := m.decoders[player]
	if !ok {
		dec, err := gopus.NewDecoder(SampleRate, Channels)
		if err != nil {
			return nil, fmt.Errorf("failed to create opus decoder: %w", err)
		}
		state = &decoderState{dec: dec}
		m.decoders[player] = state
	}
	state.lastUsed = now
	pcm, err := state.dec.Decode(opus, FrameSamples, false)
	if err != nil {
		return nil, err
	}
	if len(pcm) != frameTotal {
		return nil, fmt.Errorf("decoded %d samples, want %d", len(pcm), frameTotal)
	}
	return pcm, nil
}

// expireIdle drops decoders that have been silent past the reset window.
func (m *Mixer) expireIdle(now time.Time) {
	for player, state := range m.decoders {
		if now.Sub(state.lastUsed) > decoderIdleReset {
			delete(m.decoders, player)
		}
	}
}

// RemovePlayer discards decoder state for a player leaving the group.
func (m *Mixer) RemovePlayer(player uuid.UUID) {
	delete(m.decoders, player)
}

// Reset discards all codec state. Called on session restart so the encoder
// does not carry prediction state across connections.
func (m *Mixer) Reset() error {
	enc, err := gopus.NewEncoder(SampleRate, Channels, gopus.Audio)
	if err != nil {
		return fmt.Errorf("failed to recreate opus encoder: %w", err)
	}
	m.enc = enc
	m.decoders = make(map[uuid.UUID]*decoderState)
	return nil
}

func saturate(s int32) int16 {
	if s > 32767 {
		return 32767
	}
	if s < -32768 {
		return -32768
	}
	return int16(s)
}
