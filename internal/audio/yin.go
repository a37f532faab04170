package audio

// yin estimates the fundamental frequency of a frame using the YIN
// cumulative-mean-normalized difference function (de Cheveigné & Kawahara).
type yin struct {
	sampleRate float64
	tauMin     int
	tauMax     int
	threshold  float64
}

func newYIN(sampleRate int, minHz, maxHz, threshold float64) *yin {
	sr := float64(sampleRate)
	tauMin := int(sr / maxHz)
	if tauMin < 2 {
		tauMin = 2
	}
	return &yin{
		sampleRate: sr,
		tauMin:     tauMin,
		tauMax:     int(sr/minHz) + 1,
		threshold:  threshold,
	}
}

// estimate returns the F0 of frame in Hz and whether the frame is voiced.
func (y *yin) estimate(frame []float64) (float64, bool) {
	tauMax := y.tauMax
	// The integration window must hold at least as many samples as the longest lag.
	if tauMax > len(frame)/2 {
		tauMax = len(frame) / 2
	}
	if tauMax <= y.tauMin {
		return 0, false
	}
	window := len(frame) - tauMax

	d := make([]float64, tauMax+1)
	for tau := 1; tau <= tauMax; tau++ {
		var sum float64
		for j := 0; j < window; j++ {
			delta := frame[j] - frame[j+tau]
			sum += delta * delta
		}
		d[tau] = sum
	}

	// cumulative mean normalization, d'[0] = 1
	cmnd := make([]float64, tauMax+1)
	cmnd[0] = 1
	var running float64
	for tau := 1; tau <= tauMax; tau++ {
		running += d[tau]
		if running == 0 {
			cmnd[tau] = 1
			continue
		}
		cmnd[tau] = d[tau] * float64(tau) / running
	}

	tau := -1
	for t := y.tauMin; t <= tauMax; t++ {
		if cmnd[t] < y.threshold {
			for t+1 <= tauMax && cmnd[t+1] < cmnd[t] {
				t++
			}
			tau = t
			break
		}
	}
	if tau < 0 {
		return 0, false
	}

	refined := parabolic(cmnd, tau)
	if refined <= 0 {
		return 0, false
	}
	f0 := y.sampleRate / refined
	if f0 < y.sampleRate/float64(y.tauMax) || f0 > y.sampleRate/float64(y.tauMin) {
		return 0, false
	}
	return f0, true
}

// parabolic refines the lag at index i by fitting a parabola through its neighbours.
func parabolic(values []float64, i int) float64 {
	if i <= 0 || i >= len(values)-1 {
		return float64(i)
	}
	s0, s1, s2 := values[i-1], values[i], values[i+1]
	denom := s0 - 2*s1 + s2
	if denom == 0 {
		return float64(i)
	}
	return float64(i) + (s0-s2)/(2*denom)
}
