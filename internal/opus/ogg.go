package opus

import (
	"errors"
	"io"

	"github.com/jonas747/ogg"
)

// OggFrameReader extracts raw Opus frames from an Ogg Opus container.
// The two leading metadata packets (OpusHead, OpusTags) are skipped.
type OggFrameReader struct {
	decoder *ogg.PacketDecoder
	skip    int
}

// NewOggFrameReader returns a reader that yields the Opus packets of the
// Ogg stream read from r.
func NewOggFrameReader(r io.Reader) *OggFrameReader {
	return &OggFrameReader{
		decoder: ogg.NewPacketDecoder(ogg.NewDecoder(r)),
		skip:    2,
	}
}

// ReadFrame returns the next Opus frame. Returns io.EOF at end of stream.
func (o *OggFrameReader) ReadFrame() ([]byte, error) {
	for {
		packet, _, err := o.decoder.Decode()
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, io.EOF
			}
			return nil, err
		}
		if o.skip > 0 {
			o.skip--
			continue
		}
		return packet, nil
	}
}
