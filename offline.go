package axiom

import (
	"encoding/binary"
	"io"

	"github.com/nikandfor/errors"

	"github.com/monadgroup/axiom-sub000/internal/dsp"
)

// RenderSamples runs the image for seconds of audio and returns the
// interleaved stereo values of portal.
func RenderSamples(r *Runtime, portal int, seconds float64) ([]float32, error) {
	frames := int(r.SampleRate() * seconds)
	return RenderFrames(r, portal, frames)
}

func RenderFrames(r *Runtime, portal int, frames int) ([]float32, error) {
	if frames < 0 {
		return nil, errors.New("negative frame count %d", frames)
	}
	out := make([]float32, frames*2)

	err := r.Run(func(m *Memory) error {
		if !r.rt.IsBuilt() {
			return errors.New("no image deployed")
		}
		a, err := r.rt.PortalPtr(portal)
		if err != nil {
			return err
		}
		for i := 0; i < frames; i++ {
			if err := r.rt.RunUpdate(); err != nil {
				return errors.Wrap(err, "frame %d", i)
			}
			n := dsp.ReadNum(m, a)
			out[2*i], out[2*i+1] = float32(n.Left), float32(n.Right)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// wavHeader is the RIFF header of a 32-bit float WAV file.
type wavHeader struct {
	Riff       [4]byte
	RiffSize   uint32
	Wave       [4]byte
	Fmt        [4]byte
	FmtSize    uint32
	Format     uint16
	Channels   uint16
	SampleRate uint32
	ByteRate   uint32
	BlockAlign uint16
	Bits       uint16
	Data       [4]byte
	DataSize   uint32
}

const wavFormatFloat = 3

// WriteWAV writes interleaved stereo samples, as returned by RenderFrames,
// to w as a 32-bit float WAV file.
func WriteWAV(w io.Writer, samples []float32, sampleRate int) error {
	if len(samples)%2 != 0 {
		return errors.New("%d samples do not make whole stereo frames", len(samples))
	}
	if sampleRate <= 0 {
		return errors.New("sample rate %d", sampleRate)
	}

	const frameBytes = 2 * 4
	data := uint32(len(samples) * 4)
	h := wavHeader{
		Riff:       [4]byte{'R', 'I', 'F', 'F'},
		RiffSize:   36 + data,
		Wave:       [4]byte{'W', 'A', 'V', 'E'},
		Fmt:        [4]byte{'f', 'm', 't', ' '},
		FmtSize:    16,
		Format:     wavFormatFloat,
		Channels:   2,
		SampleRate: uint32(sampleRate),
		ByteRate:   uint32(sampleRate * frameBytes),
		BlockAlign: frameBytes,
		Bits:       32,
		Data:       [4]byte{'d', 'a', 't', 'a'},
		DataSize:   data,
	}
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return errors.Wrap(err, "wav header")
	}
	if err := binary.Write(w, binary.LittleEndian, samples); err != nil {
		return errors.Wrap(err, "wav data")
	}
	return nil
}
