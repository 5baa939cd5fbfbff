package axiom

import "testing"

func TestPlayerMasterVolumeRuntimeAPI(t *testing.T) {
	pl, err := NewPlayer(newRuntime(t))
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	if got := pl.MasterVolume(); got != 1 {
		t.Fatalf("default master volume = %v, want 1", got)
	}
	pl.SetMasterVolume(0.35)
	if got := pl.MasterVolume(); got != 0.35 {
		t.Fatalf("master volume = %v, want 0.35", got)
	}
	pl.SetMasterVolume(-2)
	if got := pl.MasterVolume(); got != 0 {
		t.Fatalf("master volume should clamp to 0, got %v", got)
	}
}

func TestNewPlayerOptions(t *testing.T) {
	r := newRuntime(t)
	if _, err := NewPlayer(nil); err == nil {
		t.Fatalf("nil runtime accepted")
	}
	if _, err := NewPlayer(r, WithBackend("alsa")); err == nil {
		t.Fatalf("unknown backend accepted")
	}
	if _, err := NewPlayer(r, WithOutputPortal(-1)); err == nil {
		t.Fatalf("negative portal accepted")
	}
	pl, err := NewPlayer(r, WithBackend("PortAudio"), WithOutputPortal(1))
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	if pl.cfg.output != 1 || pl.sampleRate != 44100 {
		t.Fatalf("config = %+v, rate %d", pl.cfg, pl.sampleRate)
	}
	if pl.PlaybackPosition() != 0 {
		t.Fatalf("position before play")
	}
	pl.Wait()
	if err := pl.Stop(); err != nil {
		t.Fatalf("stop idle player: %v", err)
	}
}

// TestPortalSourceFinishes drives the playback source without a sound
// device.
func TestPortalSourceFinishes(t *testing.T) {
	r := newRuntime(t)
	patch(t, r, "out:audio = accum(1)", numOut)

	var tapped int
	pl, err := NewPlayer(r, WithSampleTap(func(b []float32) { tapped += len(b) }))
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	pl.SetMasterVolume(0.5)
	events := pl.Watch()
	pl.done = make(chan struct{})

	src := &portalSource{p: pl, limit: 3}
	buf := make([]float32, 8)
	src.Process(buf)
	want := []float32{0.5, 0.5, 1, 1, 1.5, 1.5, 0, 0}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("frames = %v, want %v", buf, want)
		}
	}
	if !src.Finished() || tapped != 8 {
		t.Fatalf("finished = %v, tapped %d", src.Finished(), tapped)
	}
	if ev := <-events; ev.Kind != EventPlaybackEnded {
		t.Fatalf("event = %+v", ev)
	}
	pl.Wait()

	src.Process(buf)
	if buf[0] != 0 {
		t.Fatalf("finished source produced %v", buf)
	}
}
