package ai

import (
	"context"
	"image"
	"image/color"
	"sync"

	"potholytics/internal/logger"
)

type fakeRunner struct {
	mu      sync.Mutex
	outputs map[string]Tensor
	err     error
	inputs  []Tensor
	closed  bool
}

func (f *fakeRunner) Run(ctx context.Context, input Tensor) (map[string]Tensor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return f.outputs, nil
}

func (f *fakeRunner) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func newTestDetector(r recipe, runner Runner, labels []string) *DetectorService {
	return &DetectorService{
		name:   "test",
		runner: runner,
		recipe: r,
		labels: labels,
		logger: logger.Discard(),
	}
}

func solidFrame(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}
