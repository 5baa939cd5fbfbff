package axiom

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/monadgroup/axiom-sub000/internal/analysis"
)

func TestRenderSineOscillator(t *testing.T) {
	r := newRuntime(t)
	patch(t, r, "out:audio = sinOsc(440)", numOut)

	samples, err := RenderSamples(r, 0, 1)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(samples) != 2*44100 {
		t.Fatalf("rendered %d samples", len(samples))
	}

	left := analysis.Channel(samples, 0)
	if got := analysis.PeakFrequency(left, 44100); math.Abs(got-440) > 1 {
		t.Fatalf("peak frequency = %v, want 440", got)
	}
	if got := analysis.RMS(left); math.Abs(got-math.Sqrt2/2) > 0.01 {
		t.Fatalf("rms = %v", got)
	}
	right := analysis.Channel(samples, 1)
	for i := range left {
		if left[i] != right[i] {
			t.Fatalf("channels differ at frame %d", i)
		}
	}
}

func TestRenderContinuesState(t *testing.T) {
	r := newRuntime(t)
	patch(t, r, "out:audio = accum(1)", numOut)

	a, err := RenderFrames(r, 0, 3)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	b, err := RenderFrames(r, 0, 2)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if a[4] != 3 || b[0] != 4 || b[2] != 5 {
		t.Fatalf("accum = %v then %v", a, b)
	}
}

func TestRenderErrors(t *testing.T) {
	r := newRuntime(t)
	if _, err := RenderFrames(r, 0, 10); err == nil {
		t.Fatalf("rendered without an image")
	}
	patch(t, r, "out:audio = 1", numOut)
	if _, err := RenderFrames(r, 3, 10); err == nil {
		t.Fatalf("rendered a missing portal")
	}
	if _, err := RenderFrames(r, 0, -1); err == nil {
		t.Fatalf("negative frame count accepted")
	}
}

func TestWriteWAV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWAV(&buf, []float32{0.5, -0.5, 1, 0}, 48000); err != nil {
		t.Fatalf("write: %v", err)
	}
	wav := buf.Bytes()
	if len(wav) != 44+16 {
		t.Fatalf("len = %d", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:16]) != "WAVEfmt " || string(wav[36:40]) != "data" {
		t.Fatalf("bad chunk ids: %q", wav[:40])
	}
	le := binary.LittleEndian
	for _, tc := range []struct {
		off  int
		want uint32
	}{
		{4, 36 + 16},
		{24, 48000},
		{28, 48000 * 2 * 4},
		{40, 16},
	} {
		if got := le.Uint32(wav[tc.off:]); got != tc.want {
			t.Fatalf("header word at %d = %d, want %d", tc.off, got, tc.want)
		}
	}
	for _, tc := range []struct {
		off  int
		want uint16
	}{
		{20, 3},
		{22, 2},
		{32, 8},
		{34, 32},
	} {
		if got := le.Uint16(wav[tc.off:]); got != tc.want {
			t.Fatalf("header half at %d = %d, want %d", tc.off, got, tc.want)
		}
	}
	if got := math.Float32frombits(le.Uint32(wav[44+4:])); got != -0.5 {
		t.Fatalf("second sample = %v", got)
	}
}

func TestWriteWAVRejectsPartialFrames(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWAV(&buf, []float32{1, 2, 3}, 48000); err == nil {
		t.Fatalf("odd sample count accepted")
	}
	if err := WriteWAV(&buf, nil, 0); err == nil {
		t.Fatalf("zero sample rate accepted")
	}
	if buf.Len() != 0 {
		t.Fatalf("wrote %d bytes on error", buf.Len())
	}
}

func TestRenderedWAVRoundTrip(t *testing.T) {
	r := newRuntime(t)
	patch(t, r, "out:audio = 0.25", numOut)

	samples, err := RenderFrames(r, 0, 4)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var buf bytes.Buffer
	if err := WriteWAV(&buf, samples, int(r.SampleRate())); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := make([]float32, 8)
	if err := binary.Read(bytes.NewReader(buf.Bytes()[44:]), binary.LittleEndian, got); err != nil {
		t.Fatalf("read back: %v", err)
	}
	for i, v := range got {
		if v != 0.25 {
			t.Fatalf("sample %d = %v, want 0.25", i, v)
		}
	}
}
