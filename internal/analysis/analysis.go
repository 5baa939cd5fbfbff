// Package analysis inspects rendered audio.
package analysis

import (
	"math"
	"math/cmplx"

	"github.com/maddyblue/go-dsp/fft"
)

// Channel extracts channel ch of interleaved stereo samples.
func Channel(stereo []float32, ch int) []float64 {
	out := make([]float64, len(stereo)/2)
	for i := range out {
		out[i] = float64(stereo[2*i+ch])
	}
	return out
}

// Spectrum returns the magnitude of bins 0 to len(x)/2, normalized by the
// sample count.
func Spectrum(x []float64) []float64 {
	if len(x) == 0 {
		return nil
	}
	bins := fft.FFTReal(x)
	mag := make([]float64, len(bins)/2+1)
	for i := range mag {
		mag[i] = cmplx.Abs(bins[i]) / float64(len(x))
	}
	return mag
}

// PeakFrequency returns the centre frequency of the strongest bin above
// DC, or 0 for silence.
func PeakFrequency(x []float64, sampleRate float64) float64 {
	mag := Spectrum(x)
	best, at := 0.0, 0
	for i := 1; i < len(mag); i++ {
		if mag[i] > best {
			best, at = mag[i], i
		}
	}
	if at == 0 {
		return 0
	}
	return float64(at) * sampleRate / float64(len(x))
}

func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}
