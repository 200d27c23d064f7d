package storage

import (
	"context"
	"sync"
	"time"

	"potholytics/internal/logger"
	"potholytics/internal/model"
	"potholytics/internal/repository"
)

// ArchiveFlushInterval defines how often buffered results are flushed.
const ArchiveFlushInterval = 30 * time.Second

// Archiver buffers result events in memory and writes them to the frame
// repository when their request finishes or on a timer.
type Archiver struct {
	repo   repository.FrameRepository
	limit  int
	logger *logger.Logger

	mu          sync.Mutex
	frames      []model.SavedFrame
	bufferCount map[string]int
	flush       chan struct{}
}

// NewArchiver creates an Archiver keeping at most limit results per request.
func NewArchiver(repo repository.FrameRepository, limit int, logger *logger.Logger) *Archiver {
	if limit <= 0 {
		limit = 50
	}
	return &Archiver{
		repo:        repo,
		limit:       limit,
		logger:      logger,
		frames:      make([]model.SavedFrame, 0),
		bufferCount: make(map[string]int),
		flush:       make(chan struct{}, 1),
	}
}

// Run flushes on every tick and whenever a request completes, until ctx ends.
func (a *Archiver) Run(ctx context.Context) {
	ticker := time.NewTicker(ArchiveFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.Flush(context.Background())
			return
		case <-ticker.C:
			a.Flush(ctx)
		case <-a.flush:
			a.Flush(ctx)
		}
	}
}

// Publish implements the pipeline notifier. It never blocks on storage.
func (a *Archiver) Publish(event model.Event) {
	switch event.Type {
	case model.EventResult:
		if event.Result == nil {
			return
		}
		a.mu.Lock()
		defer a.mu.Unlock()

		if a.bufferCount[event.RequestID] >= a.limit {
			return
		}
		a.frames = append(a.frames, model.SavedFrame{
			Info:            event.Result.Info,
			Image:           event.Result.Image,
			DetectionsCount: event.Result.DetectionsCount,
			Model:           event.Backend,
			CreatedAt:       time.Now().UTC(),
		})
		a.bufferCount[event.RequestID]++
		a.logger.Debug("Archive buffer for request %s: %d/%d", event.RequestID, a.bufferCount[event.RequestID], a.limit)

	case model.EventDone:
		select {
		case a.flush <- struct{}{}:
		default:
		}
	}
}

// Flush writes buffered results and resets the buffer and per-request counters.
// The buffer is swapped out before the write so Publish never waits on the
// store. Results are put back for the next attempt when the write fails.
func (a *Archiver) Flush(ctx context.Context) int {
	a.mu.Lock()
	frames, counts := a.frames, a.bufferCount
	a.frames = make([]model.SavedFrame, 0, len(frames))
	a.bufferCount = make(map[string]int)
	a.mu.Unlock()

	if len(frames) == 0 {
		return 0
	}

	if err := a.repo.InsertBatch(ctx, frames); err != nil {
		a.logger.Error("Error archiving %d result(s): %v", len(frames), err)

		a.mu.Lock()
		a.frames = append(frames, a.frames...)
		for id, n := range counts {
			a.bufferCount[id] += n
		}
		a.mu.Unlock()
		return 0
	}

	a.logger.Info("Archived %d result(s)", len(frames))
	return len(frames)
}

// Pending reports how many results are waiting to be flushed.
func (a *Archiver) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.frames)
}
