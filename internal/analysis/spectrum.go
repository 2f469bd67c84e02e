package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// PowerSpectrum returns |X_k| for the first half of the bins of the
// mean-removed signal. Bin k is at k/(len(data)*dt) Hz.
func PowerSpectrum(data []float64) []float64 {
	if len(data) == 0 {
		return nil
	}
	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(len(data))
	centered := make([]float64, len(data))
	for i, v := range data {
		centered[i] = v - mean
	}

	X := fft.FFTReal(centered)
	ps := make([]float64, len(X)/2)
	for i := range ps {
		ps[i] = cmplx.Abs(X[i])
	}
	return ps
}

// Peak is the strongest non-zero frequency of a uniformly sampled signal.
type Peak struct {
	Frequency float64
	Power     float64
}

// DominantFrequency finds the spectral peak of samples taken every dt
// seconds. It reports a zero Peak when there is nothing to analyze.
func DominantFrequency(samples []float64, dt float64) Peak {
	ps := PowerSpectrum(samples)
	if len(ps) < 2 || !(dt > 0) {
		return Peak{}
	}
	best := 1
	for i := 2; i < len(ps); i++ {
		if ps[i] > ps[best] {
			best = i
		}
	}
	return Peak{
		Frequency: float64(best) / (float64(len(samples)) * dt),
		Power:     ps[best],
	}
}

// SampleInterval is the mean spacing of a time column.
func SampleInterval(times []float64) float64 {
	if len(times) < 2 {
		return 0
	}
	return (times[len(times)-1] - times[0]) / float64(len(times)-1)
}
