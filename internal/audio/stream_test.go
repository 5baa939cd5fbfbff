package audio

import (
	"encoding/binary"
	"io"
	"math"
	"testing"
)

type counter struct {
	n     float32
	limit int
}

func (c *counter) Process(dst []float32) {
	for i := range dst {
		c.n++
		dst[i] = c.n
	}
}

func (c *counter) Finished() bool { return int(c.n) >= c.limit }

func TestStreamReaderEncodesFrames(t *testing.T) {
	src := &counter{limit: 100}
	r := NewStreamReader(src)

	p := make([]byte, 8*3+5)
	n, err := r.Read(p)
	if err != nil || n != 24 {
		t.Fatalf("read = %d, %v", n, err)
	}
	for i := 0; i < 6; i++ {
		got := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		if got != float32(i+1) {
			t.Fatalf("sample %d = %v", i, got)
		}
	}

	if n, err := r.Read(make([]byte, 7)); n != 0 || err != nil {
		t.Fatalf("short read = %d, %v", n, err)
	}
}

func TestStreamReaderEOF(t *testing.T) {
	r := NewStreamReader(&counter{limit: 4})
	if _, err := r.Read(make([]byte, 16)); err != io.EOF {
		t.Fatalf("err = %v, want EOF", err)
	}
}

func TestFrameFunc(t *testing.T) {
	i := float32(0)
	f := FrameFunc(func() (float32, float32) {
		i++
		return i, -i
	})
	dst := make([]float32, 5)
	f.Process(dst)
	want := []float32{1, -1, 2, -2, 0}
	for k := range want {
		if dst[k] != want[k] {
			t.Fatalf("dst = %v, want %v", dst, want)
		}
	}
}

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in   string
		want Backend
		ok   bool
	}{
		{"", BackendEbiten, true},
		{"PortAudio", BackendPortAudio, true},
		{" ebiten ", BackendEbiten, true},
		{"alsa", "", false},
	}
	for _, tc := range tests {
		got, err := ParseBackend(tc.in)
		if (err == nil) != tc.ok || got != tc.want {
			t.Fatalf("%q: %v %v", tc.in, got, err)
		}
	}
}
