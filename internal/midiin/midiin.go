// Package midiin reads a MIDI input device and feeds its events to a
// MIDI portal.
package midiin

import (
	"context"
	"sync"
	"time"

	"github.com/nikandfor/errors"
	"github.com/nikandfor/tlog"
	"github.com/rakyll/portmidi"

	"github.com/monadgroup/axiom-sub000/internal/dsp"
)

// Status bytes, channel nibble cleared.
const (
	statusNoteOff           = 0x80
	statusNoteOn            = 0x90
	statusPolyAftertouch    = 0xa0
	statusChannelAftertouch = 0xd0
	statusPitchWheel        = 0xe0
)

// Translate converts a raw channel message. Messages without a
// counterpart, like control changes, report false.
func Translate(status, data1, data2 int64) (dsp.MidiEvent, bool) {
	ev := dsp.MidiEvent{Channel: uint8(status & 0x0f), Note: uint8(data1 & 0x7f)}
	switch status & 0xf0 {
	case statusNoteOn:
		if data2 == 0 {
			ev.Kind = dsp.NoteOff
			return ev, true
		}
		ev.Kind = dsp.NoteOn
		ev.Param = float32(data2&0x7f) / 127
	case statusNoteOff:
		ev.Kind = dsp.NoteOff
	case statusPolyAftertouch:
		ev.Kind = dsp.PolyAftertouch
		ev.Param = float32(data2&0x7f) / 127
	case statusChannelAftertouch:
		ev.Kind = dsp.ChannelAftertouch
		ev.Note = 0
		ev.Param = float32(data1&0x7f) / 127
	case statusPitchWheel:
		ev.Kind = dsp.PitchWheel
		ev.Note = 0
		v := (data2&0x7f)<<7 | data1&0x7f
		ev.Param = float32(v-8192) / 8192
	default:
		return dsp.MidiEvent{}, false
	}
	return ev, true
}

type Device struct {
	ID   portmidi.DeviceID
	Name string
}

var (
	initOnce sync.Once
	initErr  error
)

func initialize() error {
	initOnce.Do(func() { initErr = portmidi.Initialize() })
	if initErr != nil {
		return errors.Wrap(initErr, "initialize portmidi")
	}
	return nil
}

// Inputs lists the devices that can be opened for input.
func Inputs() ([]Device, error) {
	if err := initialize(); err != nil {
		return nil, err
	}
	var ds []Device
	for i := 0; i < portmidi.CountDevices(); i++ {
		id := portmidi.DeviceID(i)
		info := portmidi.Info(id)
		if info != nil && info.IsInputAvailable {
			ds = append(ds, Device{ID: id, Name: info.Interface + "/" + info.Name})
		}
	}
	return ds, nil
}

// Reader polls an input device and passes every translated event to a
// sink.
type Reader struct {
	stream *portmidi.Stream
	sink   func(dsp.MidiEvent)
	poll   time.Duration
}

// Open opens device id, or the default input when id is negative.
func Open(id int, sink func(dsp.MidiEvent)) (*Reader, error) {
	if err := initialize(); err != nil {
		return nil, err
	}
	dev := portmidi.DeviceID(id)
	if id < 0 {
		dev = portmidi.DefaultInputDeviceID()
	}
	s, err := portmidi.NewInputStream(dev, 1024)
	if err != nil {
		return nil, errors.Wrap(err, "open midi input %d", dev)
	}
	return &Reader{stream: s, sink: sink, poll: time.Millisecond}, nil
}

// Run reads events until ctx is done.
func (r *Reader) Run(ctx context.Context) error {
	tr := tlog.SpanFromContext(ctx)
	t := time.NewTicker(r.poll)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}

		ok, err := r.stream.Poll()
		if err != nil {
			return errors.Wrap(err, "poll midi")
		}
		if !ok {
			continue
		}
		events, err := r.stream.Read(1024)
		if err != nil {
			return errors.Wrap(err, "read midi")
		}
		for _, e := range events {
			ev, ok := Translate(e.Status, e.Data1, e.Data2)
			if !ok {
				if tr.If("midi") {
					tr.Printw("skip midi message", "status", e.Status, "data1", e.Data1, "data2", e.Data2)
				}
				continue
			}
			r.sink(ev)
		}
	}
}

func (r *Reader) Close() error {
	return r.stream.Close()
}
