package axiom

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nikandfor/errors"

	"github.com/monadgroup/axiom-sub000/internal/audio"
	"github.com/monadgroup/axiom-sub000/internal/dsp"
)

// PlaybackEvent carries playback events from Watch().
type PlaybackEvent struct {
	Kind int // EventPlaybackEnded or EventUpdateFailed
	// Err is set for EventUpdateFailed.
	Err error
}

const (
	EventPlaybackEnded int = iota
	EventUpdateFailed
)

type PlayerOption func(*playerConfig)

type playerConfig struct {
	backend   audio.Backend
	output    int
	duration  time.Duration
	sampleTap func([]float32)
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{backend: audio.BackendEbiten}
}

// WithBackend selects the sound device backend: "ebiten" or "portaudio".
func WithBackend(b string) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.backend = audio.Backend(b)
	}
}

// WithOutputPortal selects the portal whose number is played. The
// default is portal 0.
func WithOutputPortal(i int) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.output = i
	}
}

// WithDuration ends playback after d. Zero plays until Stop.
func WithDuration(d time.Duration) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.duration = d
	}
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.sampleTap = tap
	}
}

// Player streams a runtime's output portal to a sound device, advancing
// the image once per frame.
type Player struct {
	mu         sync.Mutex
	rt         *Runtime
	cfg        playerConfig
	sampleRate int
	audio      audio.Player
	volume     atomic.Uint64
	done       chan struct{}
	eventCh    chan PlaybackEvent
	eventChMu  sync.Mutex
}

// portalSource runs the image on the audio thread.
type portalSource struct {
	p        *Player
	limit    int64
	frames   int64
	finished atomic.Bool
}

func (s *portalSource) Process(dst []float32) {
	p := s.p
	if s.finished.Load() {
		clear(dst)
		return
	}
	vol := float32(p.MasterVolume())

	err := p.rt.Run(func(m *Memory) error {
		out, err := p.rt.rt.PortalPtr(p.cfg.output)
		if err != nil {
			return err
		}

		var uerr error
		frame := audio.FrameFunc(func() (l, r float32) {
			if uerr != nil || s.limit > 0 && s.frames >= s.limit {
				return 0, 0
			}
			if uerr = p.rt.rt.RunUpdate(); uerr != nil {
				return 0, 0
			}
			s.frames++
			n := dsp.ReadNum(m, out)
			return float32(n.Left) * vol, float32(n.Right) * vol
		})
		frame.Process(dst)
		return uerr
	})

	if p.cfg.sampleTap != nil {
		p.cfg.sampleTap(dst)
	}

	switch {
	case err != nil:
		s.finish()
		p.sendEvent(PlaybackEvent{Kind: EventUpdateFailed, Err: err})
		p.signalDone()
	case s.limit > 0 && s.frames >= s.limit:
		s.finish()
		p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded})
		p.signalDone()
	}
}

func (s *portalSource) finish() { s.finished.Store(true) }

func (s *portalSource) Finished() bool {
	return s.finished.Load()
}

func NewPlayer(rt *Runtime, opts ...PlayerOption) (*Player, error) {
	if rt == nil {
		return nil, errors.New("nil runtime")
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	b, err := audio.ParseBackend(string(cfg.backend))
	if err != nil {
		return nil, err
	}
	cfg.backend = b
	if cfg.output < 0 {
		return nil, errors.New("invalid output portal %d", cfg.output)
	}

	p := &Player{
		rt:         rt,
		cfg:        cfg,
		sampleRate: int(math.Round(rt.SampleRate())),
	}
	p.volume.Store(math.Float64bits(1))
	return p, nil
}

// Play starts streaming the runtime. A playback already running is
// replaced.
func (p *Player) Play() error {
	src := &portalSource{p: p}
	if p.cfg.duration > 0 {
		src.limit = int64(p.cfg.duration.Seconds() * float64(p.sampleRate))
	}
	backend, err := audio.NewPlayer(p.cfg.backend, p.sampleRate, src)
	if err != nil {
		return err
	}

	p.mu.Lock()
	// Signal any existing Wait() that the previous playback was replaced
	if p.done != nil {
		close(p.done)
	}
	p.done = make(chan struct{})
	prev := p.audio
	p.audio = backend
	p.mu.Unlock()

	// The previous source may be blocked on p.mu inside its callback.
	if prev != nil {
		_ = prev.Stop()
	}
	backend.Play()
	return nil
}

func (p *Player) sendEvent(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event
		}
	}
}

func (p *Player) signalDone() {
	p.mu.Lock()
	done := p.done
	p.done = nil
	p.mu.Unlock()
	if done != nil {
		close(done)
	}
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Pause()
	}
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Play()
	}
}

func (p *Player) Stop() error {
	p.mu.Lock()
	a := p.audio
	p.audio = nil
	done := p.done
	p.done = nil
	p.mu.Unlock()
	if a == nil {
		return nil
	}
	err := a.Stop()
	p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded})
	if done != nil {
		close(done)
	}
	return err
}

// Wait blocks until the current playback ends. Without WithDuration,
// Wait blocks until Stop or a failed update.
// Wait returns immediately if no playback is active.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Watch returns a channel that receives playback events.
//
// The channel is buffered (cap 8); receive in a goroutine to avoid losing events.
// Only the most recent Watch() channel receives events; call Watch before Play.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

// SetMasterVolume sets the output gain. 1.0 is default.
func (p *Player) SetMasterVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	p.volume.Store(math.Float64bits(volume))
}

func (p *Player) MasterVolume() float64 {
	return math.Float64frombits(p.volume.Load())
}

// PlaybackPosition returns the current output position of the audio driver
// in frames, i.e. what the listener actually hears right now. Returns 0 if
// not playing.
func (p *Player) PlaybackPosition() int64 {
	p.mu.Lock()
	a := p.audio
	p.mu.Unlock()
	if a == nil {
		return 0
	}
	pos := a.Position()
	return int64(pos.Seconds() * float64(p.sampleRate))
}
