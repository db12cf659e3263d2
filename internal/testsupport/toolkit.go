package testsupport

import (
	"context"
	"sync"

	"splice/internal/audio"
)

// FakeToolkit wraps a real audio.Toolkit and lets tests override loudness
// measurement and gain application.
type FakeToolkit struct {
	audio.Toolkit

	MeasureFunc func(ctx context.Context, path string) (audio.Loudness, error)
	GainFunc    func(ctx context.Context, src, dest string, gainDB float64) error

	mu       sync.Mutex
	measured []string
	gains    []float64
}

// MeasureLoudness records the call and defers to MeasureFunc when set.
func (f *FakeToolkit) MeasureLoudness(ctx context.Context, path string) (audio.Loudness, error) {
	f.mu.Lock()
	f.measured = append(f.measured, path)
	f.mu.Unlock()
	if f.MeasureFunc != nil {
		return f.MeasureFunc(ctx, path)
	}
	return f.Toolkit.MeasureLoudness(ctx, path)
}

// ApplyGain records the gain and defers to GainFunc when set.
func (f *FakeToolkit) ApplyGain(ctx context.Context, src, dest string, gainDB float64) error {
	f.mu.Lock()
	f.gains = append(f.gains, gainDB)
	f.mu.Unlock()
	if f.GainFunc != nil {
		return f.GainFunc(ctx, src, dest, gainDB)
	}
	return f.Toolkit.ApplyGain(ctx, src, dest, gainDB)
}

// Measured returns the paths passed to MeasureLoudness.
func (f *FakeToolkit) Measured() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.measured...)
}

// Gains returns every gain passed to ApplyGain.
func (f *FakeToolkit) Gains() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.gains...)
}
