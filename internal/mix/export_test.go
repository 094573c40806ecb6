package mix

var Saturate = saturate

const (
	FrameTotal       = frameTotal
	MaxOpusBytes     = maxOpusBytes
	DecoderIdleReset = decoderIdleReset
)

// DecoderCount reports live per-player decoder states, for tests.
func (m *Mixer) DecoderCount() int { return len(m.decoders) }
