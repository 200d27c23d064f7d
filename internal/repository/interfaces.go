package repository

import (
	"context"
	"errors"

	"potholytics/internal/model"
)

// ErrBlobNotFound is returned when the referenced blob does not exist.
var ErrBlobNotFound = errors.New("blob not found")

// FrameRepository persists saved detection frames.
type FrameRepository interface {
	// InsertBatch stores the frames in order.
	InsertBatch(ctx context.Context, frames []model.SavedFrame) error

	// GetAll returns every stored frame in insertion order.
	GetAll(ctx context.Context) ([]model.SavedFrame, error)

	Close(ctx context.Context) error
}

// BlobRepository reads annotated images kept in object storage.
type BlobRepository interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}
