package wav

import "math"

const (
	// AbsoluteGateLUFS is the BS.1770 absolute gating threshold.
	AbsoluteGateLUFS = -70.0
	// RelativeGateLU is the offset below the ungated level for the relative gate.
	RelativeGateLU = -10.0
	// SilenceDBFS is reported as the peak of a file with no non-zero samples.
	SilenceDBFS = -144.0

	stepsPerBlock = 4
)

type biquad struct {
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// highShelf is the first K-weighting stage (head acoustics).
func highShelf(rate float64) biquad {
	const (
		gainDB = 4.0
		q      = 1 / math.Sqrt2
		fc     = 1500.0
	)
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * fc / rate
	alpha := math.Sin(w0) / (2 * q)
	cosw := math.Cos(w0)
	sqrtA := math.Sqrt(a)

	b0 := a * ((a + 1) + (a-1)*cosw + 2*sqrtA*alpha)
	b1 := -2 * a * ((a - 1) + (a+1)*cosw)
	b2 := a * ((a + 1) + (a-1)*cosw - 2*sqrtA*alpha)
	a0 := (a + 1) - (a-1)*cosw + 2*sqrtA*alpha
	a1 := 2 * ((a - 1) - (a+1)*cosw)
	a2 := (a + 1) - (a-1)*cosw - 2*sqrtA*alpha
	return biquad{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}

// highPass is the second K-weighting stage (RLB weighting).
func highPass(rate float64) biquad {
	const (
		q  = 0.5
		fc = 38.0
	)
	w0 := 2 * math.Pi * fc / rate
	alpha := math.Sin(w0) / (2 * q)
	cosw := math.Cos(w0)

	b0 := (1 + cosw) / 2
	b1 := -(1 + cosw)
	b2 := (1 + cosw) / 2
	a0 := 1 + alpha
	a1 := -2 * cosw
	a2 := 1 - alpha
	return biquad{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}

// channelWeight follows the BS.1770 surround weights for 5.1 layouts.
func channelWeight(channels, index int) float64 {
	if channels == 6 {
		switch index {
		case 3:
			return 0
		case 4, 5:
			return 1.41
		}
	}
	return 1
}

// Meter accumulates K-weighted energy in 100 ms steps and gates 400 ms blocks.
type Meter struct {
	channels int
	stepLen  int
	weights  []float64
	shelf    []biquad
	pass     []biquad

	stepSum   []float64
	stepCount int
	recent    [][]float64
	blocks    []float64
	peak      float64
}

// NewMeter prepares a meter for interleaved frames of the given layout.
func NewMeter(sampleRate, channels int) *Meter {
	m := &Meter{
		channels: channels,
		stepLen:  max(1, sampleRate/10),
		weights:  make([]float64, channels),
		shelf:    make([]biquad, channels),
		pass:     make([]biquad, channels),
		stepSum:  make([]float64, channels),
	}
	for ch := range channels {
		m.weights[ch] = channelWeight(channels, ch)
		m.shelf[ch] = highShelf(float64(sampleRate))
		m.pass[ch] = highPass(float64(sampleRate))
	}
	return m
}

// Add feeds one frame of samples normalized to [-1, 1).
func (m *Meter) Add(frame []float64) {
	for ch := 0; ch < m.channels && ch < len(frame); ch++ {
		x := frame[ch]
		if abs := math.Abs(x); abs > m.peak {
			m.peak = abs
		}
		y := m.pass[ch].process(m.shelf[ch].process(x))
		m.stepSum[ch] += y * y
	}
	m.stepCount++
	if m.stepCount == m.stepLen {
		m.completeStep()
	}
}

func (m *Meter) completeStep() {
	m.recent = append(m.recent, m.stepSum)
	m.stepSum = make([]float64, m.channels)
	m.stepCount = 0
	if len(m.recent) > stepsPerBlock {
		m.recent = m.recent[1:]
	}
	if len(m.recent) < stepsPerBlock {
		return
	}
	var power float64
	for ch := range m.channels {
		var sum float64
		for _, step := range m.recent {
			sum += step[ch]
		}
		power += m.weights[ch] * sum / float64(stepsPerBlock*m.stepLen)
	}
	m.blocks = append(m.blocks, power)
}

// Integrated returns the gated loudness in LUFS. Programs without a single
// block above the absolute gate report AbsoluteGateLUFS.
func (m *Meter) Integrated() float64 {
	absGate := powerFor(AbsoluteGateLUFS)
	var sum float64
	var count int
	for _, p := range m.blocks {
		if p > absGate {
			sum += p
			count++
		}
	}
	if count == 0 {
		return AbsoluteGateLUFS
	}
	relGate := powerFor(loudnessOf(sum/float64(count)) + RelativeGateLU)

	sum, count = 0, 0
	for _, p := range m.blocks {
		if p > absGate && p > relGate {
			sum += p
			count++
		}
	}
	if count == 0 {
		return AbsoluteGateLUFS
	}
	return loudnessOf(sum / float64(count))
}

// PeakDBFS returns the sample peak relative to full scale.
func (m *Meter) PeakDBFS() float64 {
	if m.peak == 0 {
		return SilenceDBFS
	}
	return 20 * math.Log10(m.peak)
}

func loudnessOf(power float64) float64 {
	return -0.691 + 10*math.Log10(power)
}

func powerFor(lufs float64) float64 {
	return math.Pow(10, (lufs+0.691)/10)
}
