package opus_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/glizzus/voicebridge/internal/opus"
)

func TestFrameWriterReaderRoundTrip(t *testing.T) {
	frames := [][]byte{
		{0x01},
		bytes.Repeat([]byte{0xab}, 160),
		{},
		bytes.Repeat([]byte{0xcd}, 1275),
	}

	var buf bytes.Buffer
	w := opus.NewFrameWriter(&buf)
	for i, frame := range frames {
		if err := w.WriteFrame(frame); err != nil {
			t.Fatalf("WriteFrame(%d) returned error: %v", i, err)
		}
	}

	r := opus.NewFrameReader(&buf)
	var got [][]byte
	for {
		frame, err := r.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReadFrame() returned error: %v", err)
		}
		got = append(got, frame)
	}

	if len(got) != len(frames) {
		t.Fatalf("read %d frames, want %d", len(got), len(frames))
	}
	for i := range frames {
		want := frames[i]
		if len(want) == 0 {
			if len(got[i]) != 0 {
				t.Errorf("frame %d = %d bytes, want empty", i, len(got[i]))
			}
			continue
		}
		if diff := cmp.Diff(want, got[i]); diff != "" {
			t.Errorf("frame %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestFrameReaderTruncatedPayload(t *testing.T) {
	// Length prefix promises 10 bytes but only 3 follow.
	raw := []byte{0x0a, 0x00, 0x01, 0x02, 0x03}
	r := opus.NewFrameReader(bytes.NewReader(raw))
	if _, err := r.ReadFrame(); err == nil {
		t.Error("ReadFrame() on truncated payload = nil, want error")
	}
}

func TestFrameReaderEmptyInput(t *testing.T) {
	r := opus.NewFrameReader(bytes.NewReader(nil))
	if _, err := r.ReadFrame(); !errors.Is(err, io.EOF) {
		t.Errorf("ReadFrame() on empty input = %v, want io.EOF", err)
	}
}
