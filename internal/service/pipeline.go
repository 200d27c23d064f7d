package service

import (
	"context"
	"slices"

	"potholytics/internal/model"
	"potholytics/internal/service/ai"
	"potholytics/internal/service/media"

	"go.uber.org/multierr"
)

// run opens the backend and the media, dispatches on the media kind and
// releases both before returning.
func (m *Manager) run(ctx context.Context, st *RequestState, path string, opts Options) (outcome *Outcome, err error) {
	backend, err := m.backends.New(opts.Backend)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("Request %s: backend %s loaded", st.ID, backend.Name())

	src, err := m.open(path)
	if err != nil {
		backend.Close()
		return nil, err
	}

	defer func() {
		if cerr := multierr.Combine(src.Close(), backend.Close()); cerr != nil {
			m.logger.Warning("Request %s: failed to release resources: %v", st.ID, cerr)
		}
	}()

	outcome = &Outcome{RequestID: st.ID, Backend: opts.Backend, State: StateCompleted}
	if src.Kind() == media.KindVideo {
		err = m.runVideo(ctx, st, src, backend, opts, outcome)
	} else {
		err = m.runImage(ctx, st, src, backend, opts, outcome)
	}
	if err != nil {
		return nil, err
	}
	if outcome.Results == nil {
		outcome.Results = []model.AnnotatedResult{}
	}
	return outcome, nil
}

// runImage infers on the single frame and reads the burn-in only when
// something was found.
func (m *Manager) runImage(ctx context.Context, st *RequestState, src media.Source, backend ai.Backend, opts Options, outcome *Outcome) error {
	if cancelled(ctx, st) {
		outcome.State = StateCancelled
		return nil
	}

	frame, ok := src.Next()
	if !ok {
		return src.Err()
	}
	outcome.FramesRead = 1
	outcome.FramesSampled = 1
	st.progress(frame.Index, 1, 0, 0)

	detections, err := backend.Infer(ctx, frame.Image)
	if err != nil {
		if interrupted(ctx, err) {
			outcome.State = StateCancelled
			return nil
		}
		return err
	}
	outcome.Inferences = 1

	if len(detections) == 0 {
		st.progress(frame.Index, 1, 1, 0)
		return nil
	}

	var info model.GeoInfo
	if opts.OCREnabled() {
		info = m.extractor.Extract(ctx, frame.Image)
	}

	result, err := m.annotate(frame, detections, backend, info)
	if err != nil {
		return err
	}
	outcome.Results = append(outcome.Results, result)
	st.progress(frame.Index, 1, 1, 1)
	m.publish(model.Event{Type: model.EventResult, RequestID: st.ID, Backend: opts.Backend, FrameIndex: frame.Index, Results: 1, Result: &result})
	return nil
}

// runVideo samples every stride-th frame. With dedup on, a sampled frame
// whose coordinates equal the previous sampled frame's is not inferred.
// Results are returned most recent first.
func (m *Manager) runVideo(ctx context.Context, st *RequestState, src media.Source, backend ai.Backend, opts Options, outcome *Outcome) error {
	dedup := opts.DedupEnabled()
	var lastGeo model.GeoInfo
	var results []model.AnnotatedResult

	index := 0
	for {
		if index%opts.Stride != 0 {
			if !src.Skip() {
				break
			}
			index++
			continue
		}

		if cancelled(ctx, st) {
			outcome.State = StateCancelled
			break
		}

		frame, ok := src.Next()
		if !ok {
			break
		}
		index++
		outcome.FramesSampled++
		m.publish(model.Event{Type: model.EventProgress, RequestID: st.ID, State: string(StateRunning), Backend: opts.Backend, FrameIndex: frame.Index, Results: len(results)})

		var info model.GeoInfo
		if opts.OCREnabled() {
			info = m.extractor.Extract(ctx, frame.Image)
		}
		if dedup && info.SameLocation(lastGeo) {
			lastGeo = info
			st.progress(frame.Index, outcome.FramesSampled, outcome.Inferences, len(results))
			continue
		}
		lastGeo = info

		detections, err := backend.Infer(ctx, frame.Image)
		if err != nil {
			if interrupted(ctx, err) {
				outcome.State = StateCancelled
				break
			}
			return err
		}
		outcome.Inferences++

		if len(detections) > 0 {
			result, err := m.annotate(frame, detections, backend, info)
			if err != nil {
				return err
			}
			results = append(results, result)
			m.publish(model.Event{Type: model.EventResult, RequestID: st.ID, Backend: opts.Backend, FrameIndex: frame.Index, Results: len(results), Result: &result})
		}
		st.progress(frame.Index, outcome.FramesSampled, outcome.Inferences, len(results))
	}
	outcome.FramesRead = index

	if err := src.Err(); err != nil && outcome.State == StateCompleted {
		m.logger.Warning("Request %s: video ended early after %d frame(s): %v", st.ID, index, err)
	}

	slices.Reverse(results)
	outcome.Results = results
	return nil
}

func (m *Manager) annotate(frame media.Frame, detections []model.Detection, backend ai.Backend, info model.GeoInfo) (model.AnnotatedResult, error) {
	encoded, err := m.renderer.Render(frame.Image, detections, backend.Style())
	if err != nil {
		return model.AnnotatedResult{}, err
	}
	return model.AnnotatedResult{
		Info:            info,
		Image:           encoded,
		DetectionsCount: len(detections),
		FrameIndex:      frame.Index,
	}, nil
}

func (r *RequestState) progress(frameIndex, sampled, inferences, results int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frameIndex = frameIndex
	r.framesSampled = sampled
	r.inferences = inferences
	r.results = results
}
