package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/nikandfor/tlog"

	axiom "github.com/monadgroup/axiom-sub000"
	"github.com/monadgroup/axiom-sub000/internal/config"
	"github.com/monadgroup/axiom-sub000/internal/midiin"
)

const defaultBlock = "out:audio = sinOsc(440) * 0.2"

func main() {
	cfg := config.Load()
	var (
		sampleRate = flag.Float64("sample-rate", cfg.Runtime.SampleRate, "output sample rate")
		bpm        = flag.Float64("bpm", cfg.Runtime.BPM, "tempo")
		backend    = flag.String("backend", "ebiten", "audio backend: ebiten|portaudio")
		path       = flag.String("file", "", "path to a block source file")
		inline     = flag.String("src", "", "inline block source")
		output     = flag.String("output", "", "portal to play (default: first num output)")
		volume     = flag.Float64("volume", 1.0, "master volume scalar")
		seconds    = flag.Float64("seconds", 0, "stop after this many seconds (0 = until interrupted)")
		midi       = flag.Bool("midi", false, "feed MIDI input into the first midi portal")
		midiDevice = flag.Int("midi-device", -1, "MIDI input device id (-1 = system default)")
		listMidi   = flag.Bool("list-midi", false, "list MIDI input devices and exit")
		wav        = flag.String("wav", "", "render offline to this WAV file instead of playing")
	)
	flag.Parse()

	tlog.DefaultLogger = tlog.New(tlog.NewConsoleWriter(os.Stderr, tlog.LstdFlags))
	tlog.SetVerbosity(cfg.Verbose)

	if *listMidi {
		devs, err := midiin.Inputs()
		if err != nil {
			log.Fatal(err)
		}
		for _, d := range devs {
			fmt.Printf("%d\t%s\n", d.ID, d.Name)
		}
		return
	}

	src, err := resolveBlockInput(*path, *inline)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	tr := tlog.Start("axiom-play")
	defer tr.Finish()
	ctx = tlog.ContextWithSpan(ctx, tr)

	r, err := axiom.New(axiom.WithSampleRate(*sampleRate), axiom.WithBPM(*bpm))
	if err != nil {
		log.Fatal(err)
	}
	defer r.Close()

	b, err := r.CompileBlock(0, "play", src)
	if err != nil {
		log.Fatal(err)
	}
	if err := r.Commit(ctx, axiom.BlockPatch(b)); err != nil {
		log.Fatal(err)
	}

	portals := r.Portals()
	out, err := pickPortal(portals, *output, axiom.PortalOutput, axiom.NumType())
	if err != nil {
		log.Fatal(err)
	}

	if *wav != "" {
		if err := renderWAV(*wav, r, out, *seconds); err != nil {
			log.Fatal(err)
		}
		tr.Printw("rendered", "file", *wav)
		return
	}

	opts := []axiom.PlayerOption{axiom.WithBackend(*backend), axiom.WithOutputPortal(out)}
	if *seconds > 0 {
		opts = append(opts, axiom.WithDuration(time.Duration(*seconds*float64(time.Second))))
	}
	pl, err := axiom.NewPlayer(r, opts...)
	if err != nil {
		log.Fatal(err)
	}
	pl.SetMasterVolume(*volume)

	if *midi {
		in, err := pickPortal(portals, "", axiom.PortalInput, axiom.MidiType())
		if err != nil {
			log.Fatal(err)
		}
		go func() {
			if err := axiom.ConnectMIDI(ctx, r, *midiDevice, in); err != nil {
				log.Printf("midi: %v", err)
			}
		}()
	}

	ch := pl.Watch()
	if err := pl.Play(); err != nil {
		log.Fatal(err)
	}

	select {
	case <-ctx.Done():
		_ = pl.Stop()
	case ev := <-ch:
		switch ev.Kind {
		case axiom.EventPlaybackEnded:
			fmt.Println("playback completed")
		case axiom.EventUpdateFailed:
			log.Printf("playback stopped: %v", ev.Err)
		}
	}
	pl.Wait()
}

const defaultRenderSeconds = 2

// renderWAV writes seconds of the out portal to path.
func renderWAV(path string, r *axiom.Runtime, out int, seconds float64) error {
	if seconds <= 0 {
		seconds = defaultRenderSeconds
	}
	samples, err := axiom.RenderSamples(r, out, seconds)
	if err != nil {
		return err
	}
	p, err := homedir.Expand(path)
	if err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := axiom.WriteWAV(w, samples, int(r.SampleRate())); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func resolveBlockInput(path string, inline string) (string, error) {
	if strings.TrimSpace(inline) != "" {
		return inline, nil
	}
	if strings.TrimSpace(path) != "" {
		p, err := homedir.Expand(path)
		if err != nil {
			return "", err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return defaultBlock, nil
}

// pickPortal returns the portal called name, or the first portal of kind
// and type when name is empty.
func pickPortal(portals []axiom.RootSocket, name string, kind axiom.PortalKind, typ axiom.VarType) (int, error) {
	for i, p := range portals {
		if name != "" && p.Name == name {
			return i, nil
		}
		if name == "" && p.Kind == kind && p.Type.Equal(typ) {
			return i, nil
		}
	}
	if name != "" {
		return 0, fmt.Errorf("no portal %q", name)
	}
	return 0, fmt.Errorf("block has no %v %v portal", kind, typ)
}
