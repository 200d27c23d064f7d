package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"potholytics/internal/config"
	"potholytics/internal/logger"
	"potholytics/internal/model"
	"potholytics/internal/service/ai"
	"potholytics/internal/service/media"

	"github.com/google/uuid"
)

// BackendFactory validates identifiers and opens a backend per request.
type BackendFactory interface {
	Validate(name string) (config.ModelSpec, error)
	New(name string) (ai.Backend, error)
	Models() map[string]config.ModelSpec
}

// GeoExtractor reads the burn-in strip of a frame.
type GeoExtractor interface {
	Extract(ctx context.Context, frame image.Image) model.GeoInfo
}

// FrameRenderer annotates and serialises a frame.
type FrameRenderer interface {
	Render(frame *image.RGBA, detections []model.Detection, style model.RenderStyle) (string, error)
}

// Notifier receives progress events. Publish must not block.
type Notifier interface {
	Publish(event model.Event)
}

// Opener opens a media file.
type Opener func(path string) (media.Source, error)

// Options are the per-request pipeline switches. Zero or nil fields inherit
// the manager's defaults.
type Options struct {
	Backend string
	Stride  int
	Dedup   *bool
	OCR     *bool
}

// Bool returns a pointer to v for the Options switches.
func Bool(v bool) *bool { return &v }

// OCREnabled reports whether the burn-in strip is read.
func (o Options) OCREnabled() bool { return o.OCR != nil && *o.OCR }

// DedupEnabled reports whether repeated locations skip inference. Dedup
// needs coordinates, so it is off whenever OCR is.
func (o Options) DedupEnabled() bool { return o.Dedup != nil && *o.Dedup && o.OCREnabled() }

// DefaultOptions derives request defaults from the configuration.
func DefaultOptions(cfg *config.Config) Options {
	return Options{
		Backend: cfg.DefaultModel,
		Stride:  cfg.SamplingStride,
		Dedup:   Bool(cfg.DedupEnabled),
		OCR:     Bool(cfg.OCREnabled),
	}
}

// DetectRequest is one media file to run through the pipeline.
type DetectRequest struct {
	ID      string
	Path    string
	Options Options
}

// Outcome is the terminal result of a request that did not fail.
type Outcome struct {
	RequestID     string                  `json:"request_id"`
	State         State                   `json:"state"`
	Backend       string                  `json:"backend"`
	Results       []model.AnnotatedResult `json:"frames"`
	FramesRead    int                     `json:"frames_read"`
	FramesSampled int                     `json:"frames_sampled"`
	Inferences    int                     `json:"inferences"`
}

// Manager runs detection requests and tracks their cancellation flags.
type Manager struct {
	backends  BackendFactory
	open      Opener
	extractor GeoExtractor
	renderer  FrameRenderer
	notifiers []Notifier
	defaults  Options
	logger    *logger.Logger

	mu       sync.Mutex
	requests map[string]*RequestState
}

func NewManager(backends BackendFactory, extractor GeoExtractor, renderer FrameRenderer, defaults Options, logger *logger.Logger, notifiers ...Notifier) *Manager {
	if defaults.Stride < 1 {
		defaults.Stride = 1
	}
	defaults.Dedup = Bool(defaults.Dedup != nil && *defaults.Dedup)
	defaults.OCR = Bool(defaults.OCREnabled())
	manager := &Manager{
		backends:  backends,
		open:      media.Open,
		extractor: extractor,
		renderer:  renderer,
		notifiers: notifiers,
		defaults:  defaults,
		logger:    logger,
		requests:  make(map[string]*RequestState),
	}

	manager.logger.Info("🎬 Manager started - backend %s, every %d frame(s), dedup=%t, ocr=%t",
		defaults.Backend, defaults.Stride, *defaults.Dedup, *defaults.OCR)
	return manager
}

func (m *Manager) Defaults() Options {
	return m.defaults
}

// Models lists the selectable backends, aliases included.
func (m *Manager) Models() map[string]config.ModelSpec {
	return m.backends.Models()
}

// Validate checks a backend identifier without loading anything.
func (m *Manager) Validate(name string) error {
	_, err := m.backends.Validate(name)
	return err
}

// Prepare registers a READY request so that a stop signal sent before the
// pipeline starts is honoured. An empty id gets a generated one.
func (m *Manager) Prepare(id string) (*RequestState, error) {
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.requests[id]; ok {
		if st.State() != StateReady {
			return nil, fmt.Errorf("request %s is already %s", id, st.State())
		}
		return st, nil
	}

	st := newRequestState(id)
	m.requests[id] = st
	return st, nil
}

// Release forgets a request that will not run.
func (m *Manager) Release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.requests[id]; ok && st.State() == StateReady {
		delete(m.requests, id)
	}
}

// Stop raises the cancel flag of an in-flight or prepared request.
func (m *Manager) Stop(id string) bool {
	m.mu.Lock()
	st, ok := m.requests[id]
	m.mu.Unlock()

	if !ok || st.State().Terminal() {
		return false
	}
	st.Cancel()
	m.logger.Info("🛑 Stop requested for %s", id)
	return true
}

// StopAll cancels every request that has not finished and returns how many.
func (m *Manager) StopAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, st := range m.requests {
		if !st.State().Terminal() {
			st.Cancel()
			n++
		}
	}
	if n > 0 {
		m.logger.Info("🛑 Stop requested for %d request(s)", n)
	}
	return n
}

// Active lists the requests currently tracked.
func (m *Manager) Active() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Snapshot, 0, len(m.requests))
	for _, st := range m.requests {
		out = append(out, st.Snapshot())
	}
	return out
}

// Detect runs one request to completion. A failed request returns only the
// error; a cancelled one returns whatever was accumulated.
func (m *Manager) Detect(ctx context.Context, req DetectRequest) (*Outcome, error) {
	opts := m.resolve(req.Options)

	st, err := m.Prepare(req.ID)
	if err != nil {
		return nil, err
	}
	defer m.forget(st)

	if _, err := m.backends.Validate(opts.Backend); err != nil {
		st.transition(StateFailed)
		return nil, err
	}

	st.mu.Lock()
	st.backend = opts.Backend
	st.mu.Unlock()

	if err := st.transition(StateRunning); err != nil {
		return nil, err
	}
	m.logger.Info("▶️  Request %s: %s with %s", st.ID, req.Path, opts.Backend)

	outcome, err := m.run(ctx, st, req.Path, opts)
	if err != nil {
		st.transition(StateFailed)
		m.logger.Error("Request %s failed: %v", st.ID, err)
		m.publish(model.Event{Type: model.EventDone, RequestID: st.ID, State: string(StateFailed), Backend: opts.Backend, Error: err.Error()})
		return nil, err
	}

	st.transition(outcome.State)
	m.logger.Info("⏹️  Request %s %s: %d result(s) from %d sampled frame(s), %d inference(s)",
		st.ID, outcome.State, len(outcome.Results), outcome.FramesSampled, outcome.Inferences)
	m.publish(model.Event{Type: model.EventDone, RequestID: st.ID, State: string(outcome.State), Backend: opts.Backend, Results: len(outcome.Results)})
	return outcome, nil
}

func (m *Manager) resolve(o Options) Options {
	if o.Backend == "" {
		o.Backend = m.defaults.Backend
	}
	if o.Stride < 1 {
		o.Stride = m.defaults.Stride
	}
	if o.Dedup == nil {
		o.Dedup = m.defaults.Dedup
	}
	if o.OCR == nil {
		o.OCR = m.defaults.OCR
	}
	return o
}

// Close releases the geotag collaborators.
func (m *Manager) Close() error {
	if c, ok := m.extractor.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (m *Manager) forget(st *RequestState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.requests[st.ID] == st && st.State().Terminal() {
		delete(m.requests, st.ID)
	}
}

func (m *Manager) publish(event model.Event) {
	for _, n := range m.notifiers {
		n.Publish(event)
	}
}

// cancelled reports whether the request should stop at this checkpoint.
func cancelled(ctx context.Context, st *RequestState) bool {
	return st.Cancelled() || ctx.Err() != nil
}

// interrupted reports whether err came from the request context ending.
func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
