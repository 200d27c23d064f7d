package storage

import (
	"context"
	"encoding/base64"
	"errors"

	"potholytics/internal/logger"
	"potholytics/internal/model"
	"potholytics/internal/repository"
)

var (
	// ErrEmptyBatch is returned when Save receives no frames.
	ErrEmptyBatch = errors.New("no detections to save")
	// ErrBlobStoreDisabled is returned when no blob storage is configured.
	ErrBlobStoreDisabled = errors.New("blob storage is not configured")
)

// FrameService persists detection results and serves them back.
type FrameService struct {
	frames repository.FrameRepository
	blobs  repository.BlobRepository
	logger *logger.Logger
}

// NewFrameService creates a FrameService. blobs may be nil.
func NewFrameService(frames repository.FrameRepository, blobs repository.BlobRepository, logger *logger.Logger) *FrameService {
	return &FrameService{frames: frames, blobs: blobs, logger: logger}
}

// Save stores a batch of frames.
func (s *FrameService) Save(ctx context.Context, frames []model.SavedFrame) error {
	if len(frames) == 0 {
		return ErrEmptyBatch
	}
	if err := s.frames.InsertBatch(ctx, frames); err != nil {
		s.logger.Error("Error saving %d detection(s): %v", len(frames), err)
		return err
	}
	s.logger.Info("💾 Saved %d detection(s)", len(frames))
	return nil
}

// List returns every stored frame.
func (s *FrameService) List(ctx context.Context) ([]model.SavedFrame, error) {
	return s.frames.GetAll(ctx)
}

// FetchImage downloads a stored image and returns it base64 encoded.
func (s *FrameService) FetchImage(ctx context.Context, blobURL string) (string, error) {
	if s.blobs == nil {
		return "", ErrBlobStoreDisabled
	}
	data, err := s.blobs.Fetch(ctx, blobURL)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
