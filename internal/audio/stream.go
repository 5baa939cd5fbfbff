// Package audio plays the frames of a running image through a sound
// device.
package audio

import (
	"encoding/binary"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/nikandfor/errors"
)

// SampleSource fills dst with interleaved stereo samples.
type SampleSource interface {
	Process(dst []float32)
}

// FinishingSource is a SampleSource that can signal when playback has ended.
// When Finished returns true, the stream will return io.EOF on the next Read.
type FinishingSource interface {
	SampleSource
	Finished() bool
}

// FrameFunc produces one stereo frame per call.
type FrameFunc func() (l, r float32)

func (f FrameFunc) Process(dst []float32) {
	for i := 0; i+1 < len(dst); i += 2 {
		dst[i], dst[i+1] = f()
	}
}

// StreamReader encodes a source as little endian float32 stereo frames.
type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i, s := range r.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	n := frames * 8
	if fs, ok := r.source.(FinishingSource); ok && fs.Finished() {
		return n, io.EOF
	}
	return n, nil
}

func (r *StreamReader) Close() error { return nil }

// Player is a sound device playing a source.
type Player interface {
	Play()
	Pause()
	IsPlaying() bool
	// Position is how much audio has been played.
	Position() time.Duration
	Stop() error
}

type Backend string

const (
	BackendEbiten    Backend = "ebiten"
	BackendPortAudio Backend = "portaudio"
)

func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendEbiten, BackendPortAudio:
		return b, nil
	case "":
		return BackendEbiten, nil
	}
	return "", errors.New("invalid audio backend %q (expected ebiten|portaudio)", s)
}

func NewPlayer(b Backend, sampleRate int, source SampleSource) (Player, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}
	switch b {
	case BackendPortAudio:
		return newPortAudioPlayer(sampleRate, source)
	case BackendEbiten, "":
		return newEbitenPlayer(sampleRate, source)
	}
	return nil, errors.New("invalid audio backend %q", b)
}
