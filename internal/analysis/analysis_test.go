package analysis

import (
	"math"
	"testing"
)

func sine(freq, rate float64, n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * freq * float64(i) / rate)
	}
	return x
}

func TestPeakFrequency(t *testing.T) {
	const rate = 8192
	for _, f := range []float64{55, 440, 1000} {
		if got := PeakFrequency(sine(f, rate, rate), rate); math.Abs(got-f) > 1 {
			t.Fatalf("peak of %v Hz = %v", f, got)
		}
	}
	if got := PeakFrequency(make([]float64, 64), rate); got != 0 {
		t.Fatalf("peak of silence = %v", got)
	}
}

func TestSpectrumAndRMS(t *testing.T) {
	x := sine(4, 64, 64)
	mag := Spectrum(x)
	if len(mag) != 33 || math.Abs(mag[4]-0.5) > 1e-9 {
		t.Fatalf("bin 4 = %v of %d bins", mag[4], len(mag))
	}
	if got := RMS(x); math.Abs(got-math.Sqrt(0.5)) > 1e-9 {
		t.Fatalf("rms = %v", got)
	}
	if Spectrum(nil) != nil || RMS(nil) != 0 {
		t.Fatalf("empty input")
	}
}

func TestChannel(t *testing.T) {
	st := []float32{1, -1, 2, -2, 3, -3}
	l, r := Channel(st, 0), Channel(st, 1)
	if len(l) != 3 || l[2] != 3 || r[1] != -2 {
		t.Fatalf("l = %v, r = %v", l, r)
	}
}
