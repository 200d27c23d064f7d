package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"potholytics/internal/logger"
	"potholytics/internal/model"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu     sync.Mutex
	frames []model.SavedFrame
	err    error
}

func (r *memoryRepo) InsertBatch(ctx context.Context, frames []model.SavedFrame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.frames = append(r.frames, frames...)
	return nil
}

func (r *memoryRepo) GetAll(ctx context.Context) ([]model.SavedFrame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.SavedFrame{}, r.frames...), nil
}

func (r *memoryRepo) Close(context.Context) error { return nil }

type blobFunc func(ctx context.Context, ref string) ([]byte, error)

func (f blobFunc) Fetch(ctx context.Context, ref string) ([]byte, error) { return f(ctx, ref) }

func TestFrameService_SaveAndList(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewFrameService(repo, nil, logger.Discard())
	ctx := context.Background()

	require.ErrorIs(t, svc.Save(ctx, nil), ErrEmptyBatch)
	require.NoError(t, svc.Save(ctx, []model.SavedFrame{{DetectionsCount: 1}, {DetectionsCount: 2}}))

	frames, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	repo.err = errors.New("disk full")
	require.Error(t, svc.Save(ctx, []model.SavedFrame{{}}))
}

func TestFrameService_FetchImage(t *testing.T) {
	ctx := context.Background()

	_, err := NewFrameService(&memoryRepo{}, nil, logger.Discard()).FetchImage(ctx, "x.jpg")
	require.ErrorIs(t, err, ErrBlobStoreDisabled)

	svc := NewFrameService(&memoryRepo{}, blobFunc(func(ctx context.Context, ref string) ([]byte, error) {
		require.Equal(t, "https://acct/potholes/x.jpg?sig=1", ref)
		return []byte("hi"), nil
	}), logger.Discard())
	encoded, err := svc.FetchImage(ctx, "https://acct/potholes/x.jpg?sig=1")
	require.NoError(t, err)
	require.Equal(t, "aGk=", encoded)
}

func resultEvent(requestID string, count int) model.Event {
	return model.Event{
		Type:      model.EventResult,
		RequestID: requestID,
		Backend:   "yolov11n",
		Result:    &model.AnnotatedResult{Image: "img", DetectionsCount: count},
	}
}

func TestArchiver_BuffersUpToLimitPerRequest(t *testing.T) {
	repo := &memoryRepo{}
	a := NewArchiver(repo, 2, logger.Discard())

	for i := 0; i < 5; i++ {
		a.Publish(resultEvent("a", i))
	}
	a.Publish(resultEvent("b", 9))
	a.Publish(model.Event{Type: model.EventProgress, RequestID: "a"})
	require.Equal(t, 3, a.Pending())

	require.Equal(t, 3, a.Flush(context.Background()))
	require.Zero(t, a.Pending())
	require.Len(t, repo.frames, 3)
	require.Equal(t, "yolov11n", repo.frames[0].Model)
	require.False(t, repo.frames[0].CreatedAt.IsZero())

	// Counters reset after a flush.
	a.Publish(resultEvent("a", 1))
	require.Equal(t, 1, a.Pending())
}

func TestArchiver_KeepsResultsWhenWriteFails(t *testing.T) {
	repo := &memoryRepo{err: errors.New("offline")}
	a := NewArchiver(repo, 10, logger.Discard())

	a.Publish(resultEvent("a", 1))
	require.Zero(t, a.Flush(context.Background()))
	require.Equal(t, 1, a.Pending())

	repo.err = nil
	require.Equal(t, 1, a.Flush(context.Background()))
}

func TestArchiver_DoneEventTriggersFlush(t *testing.T) {
	repo := &memoryRepo{}
	a := NewArchiver(repo, 10, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	a.Publish(resultEvent("a", 1))
	a.Publish(model.Event{Type: model.EventDone, RequestID: "a"})

	require.Eventually(t, func() bool {
		frames, _ := repo.GetAll(context.Background())
		return len(frames) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

type blockingRepo struct {
	memoryRepo
	started chan struct{}
	release chan struct{}
}

func (r *blockingRepo) InsertBatch(ctx context.Context, frames []model.SavedFrame) error {
	close(r.started)
	<-r.release
	return r.memoryRepo.InsertBatch(ctx, frames)
}

func TestArchiver_PublishDoesNotWaitForSlowWrite(t *testing.T) {
	repo := &blockingRepo{started: make(chan struct{}), release: make(chan struct{})}
	a := NewArchiver(repo, 10, logger.Discard())
	a.Publish(resultEvent("a", 1))

	flushed := make(chan int)
	go func() { flushed <- a.Flush(context.Background()) }()
	<-repo.started

	published := make(chan struct{})
	go func() {
		a.Publish(resultEvent("b", 2))
		close(published)
	}()
	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked behind an in-flight write")
	}
	require.Equal(t, 1, a.Pending())

	close(repo.release)
	require.Equal(t, 1, <-flushed)
	require.Equal(t, 1, a.Pending())
}

func TestArchiver_FailedWriteKeepsPerRequestLimit(t *testing.T) {
	repo := &memoryRepo{err: errors.New("offline")}
	a := NewArchiver(repo, 2, logger.Discard())

	a.Publish(resultEvent("a", 1))
	a.Publish(resultEvent("a", 2))
	require.Zero(t, a.Flush(context.Background()))

	a.Publish(resultEvent("a", 3))
	require.Equal(t, 2, a.Pending())
}
