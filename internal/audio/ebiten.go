package audio

import (
	"io"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/nikandfor/errors"
)

type ebitenPlayer struct {
	player *ebitaudio.Player
	reader io.ReadCloser
}

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

// sharedAudioContext returns the process wide ebiten context. ebiten
// allows one per process, so every player must use the same rate.
func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, errors.New("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

func newEbitenPlayer(sampleRate int, source SampleSource) (*ebitenPlayer, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, errors.Wrap(err, "new ebiten player")
	}
	return &ebitenPlayer{
		player: pl,
		reader: reader,
	}, nil
}

func (p *ebitenPlayer) Play()           { p.player.Play() }
func (p *ebitenPlayer) Pause()          { p.player.Pause() }
func (p *ebitenPlayer) IsPlaying() bool { return p.player.IsPlaying() }

// Position returns the current playback position (what the listener actually hears).
func (p *ebitenPlayer) Position() time.Duration {
	return p.player.Position()
}

func (p *ebitenPlayer) Stop() error {
	p.player.Pause()
	if err := p.player.Close(); err != nil {
		return errors.Wrap(err, "close player")
	}
	return p.reader.Close()
}
