package ai

import (
	"context"
	"fmt"
	"image"
	"sync"

	"potholytics/internal/logger"
	"potholytics/internal/model"
)

// Backend is one loaded detection model.
type Backend interface {
	Name() string
	Infer(ctx context.Context, frame *image.RGBA) ([]model.Detection, error)
	LabelFor(classID int) string
	Style() model.RenderStyle
	Close() error
}

// recipe owns the model-specific input layout and output post-processing.
type recipe interface {
	outputs() []string
	input(img image.Image) Tensor
	decode(out map[string]Tensor, frame image.Point) ([]model.Detection, error)
}

// DetectorService runs a recipe on top of a Runner. A DetectorService is not
// safe for concurrent Infer calls; every request opens its own.
type DetectorService struct {
	name   string
	runner Runner
	recipe recipe
	labels []string
	style  model.RenderStyle
	logger *logger.Logger

	mu     sync.Mutex
	closed bool
}

func (s *DetectorService) Name() string {
	return s.name
}

// Infer runs the network on the frame and returns detections in frame coordinates.
func (s *DetectorService) Infer(ctx context.Context, frame *image.RGBA) ([]model.Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, &InferenceError{Backend: s.name, Err: fmt.Errorf("backend closed")}
	}

	size := frame.Bounds().Size()
	if size.X == 0 || size.Y == 0 {
		return nil, &InferenceError{Backend: s.name, Err: fmt.Errorf("empty frame")}
	}

	outputs, err := s.runner.Run(ctx, s.recipe.input(frame))
	if err != nil {
		return nil, &InferenceError{Backend: s.name, Err: err}
	}

	detections, err := s.recipe.decode(outputs, size)
	if err != nil {
		return nil, &InferenceError{Backend: s.name, Err: fmt.Errorf("failed to decode outputs: %w", err)}
	}

	for i := range detections {
		detections[i].Box = detections[i].Box.Clamp(size.X, size.Y)
		if detections[i].ClassLabel == "" {
			detections[i].ClassLabel = s.LabelFor(detections[i].ClassID)
		}
	}

	s.logger.Debug("%s: %d detection(s) on %dx%d frame", s.name, len(detections), size.X, size.Y)
	return detections, nil
}

// LabelFor maps model class IDs to human-readable labels.
func (s *DetectorService) LabelFor(classID int) string {
	return labelFor(s.labels, classID)
}

func (s *DetectorService) Style() model.RenderStyle {
	return s.style
}

// Close releases the underlying runner. It is safe to call more than once.
func (s *DetectorService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.runner.Close()
}
