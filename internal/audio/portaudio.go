package audio

import (
	"sync"
	"sync/atomic"
	"time"

	pa "github.com/gordonklaus/portaudio"
	"github.com/nikandfor/errors"
)

const portAudioFrames = 512

var (
	paMu    sync.Mutex
	paUsers int
)

func paAcquire() error {
	paMu.Lock()
	defer paMu.Unlock()
	if paUsers == 0 {
		if err := pa.Initialize(); err != nil {
			return errors.Wrap(err, "initialize portaudio")
		}
	}
	paUsers++
	return nil
}

func paRelease() error {
	paMu.Lock()
	defer paMu.Unlock()
	paUsers--
	if paUsers == 0 {
		return pa.Terminate()
	}
	return nil
}

type portAudioPlayer struct {
	mu         sync.Mutex
	stream     *pa.Stream
	source     SampleSource
	sampleRate int
	frames     atomic.Int64
	playing    bool
	closed     bool
}

func newPortAudioPlayer(sampleRate int, source SampleSource) (*portAudioPlayer, error) {
	if err := paAcquire(); err != nil {
		return nil, err
	}
	p := &portAudioPlayer{source: source, sampleRate: sampleRate}
	stream, err := pa.OpenDefaultStream(0, 2, float64(sampleRate), portAudioFrames, p.process)
	if err != nil {
		_ = paRelease()
		return nil, errors.Wrap(err, "open default stream")
	}
	p.stream = stream
	return p, nil
}

// process runs on the portaudio callback thread with interleaved output.
func (p *portAudioPlayer) process(out []float32) {
	p.source.Process(out)
	p.frames.Add(int64(len(out) / 2))
}

func (p *portAudioPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing || p.closed {
		return
	}
	if err := p.stream.Start(); err == nil {
		p.playing = true
	}
}

func (p *portAudioPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return
	}
	_ = p.stream.Stop()
	p.playing = false
}

func (p *portAudioPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *portAudioPlayer) Position() time.Duration {
	return time.Duration(p.frames.Load()) * time.Second / time.Duration(p.sampleRate)
}

func (p *portAudioPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.playing {
		_ = p.stream.Stop()
		p.playing = false
	}
	if err := p.stream.Close(); err != nil {
		_ = paRelease()
		return errors.Wrap(err, "close stream")
	}
	return paRelease()
}
