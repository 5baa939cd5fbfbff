package axiom

import (
	"context"

	"github.com/nikandfor/errors"
	"github.com/nikandfor/tlog"

	"github.com/monadgroup/axiom-sub000/internal/dsp"
	"github.com/monadgroup/axiom-sub000/internal/midiin"
	"github.com/monadgroup/axiom-sub000/internal/mir"
)

// PushMidi queues ev on MIDI portal i for the next update. Events beyond
// the portal's capacity are dropped and reported as false.
func (r *Runtime) PushMidi(i int, ev MidiEvent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sockets := r.rt.Project().Root.Sockets
	if i < 0 || i >= len(sockets) {
		return false, errors.New("no portal %d", i)
	}
	if sockets[i].Type.Kind != mir.VarMidi {
		return false, errors.New("portal %d is %v, not midi", i, sockets[i].Type)
	}
	a, err := r.rt.PortalPtr(i)
	if err != nil {
		return false, err
	}
	return dsp.PushMidi(r.rt.Memory(), a, ev), nil
}

// ConnectMIDI feeds MIDI input device into portal i until ctx is done. A
// negative device selects the system default input.
func ConnectMIDI(ctx context.Context, r *Runtime, device, i int) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "midi_input", "device", device, "portal", i)
	defer tr.Finish("err", &err)

	var dropped int
	in, err := midiin.Open(device, func(ev MidiEvent) {
		ok, perr := r.PushMidi(i, ev)
		if perr != nil || !ok {
			dropped++
		}
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := in.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "close midi input")
		}
		tr.Printw("midi input closed", "dropped", dropped)
	}()

	return in.Run(ctx)
}
