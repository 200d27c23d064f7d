package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"potholytics/internal/model"

	"github.com/google/uuid"
)

// FrameRepository implements repository.FrameRepository for SQLite.
type FrameRepository struct {
	db *DB
}

// NewFrameRepository creates a new SQLite frame repository.
func NewFrameRepository(db *DB) *FrameRepository {
	return &FrameRepository{db: db}
}

// InsertBatch adds multiple frames in a single transaction. Frames without
// an ID get a generated one.
func (r *FrameRepository) InsertBatch(ctx context.Context, frames []model.SavedFrame) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO frames (id, date, time, latitude, longitude, address, image, blob_url, detections_count, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, f := range frames {
		id := f.ID
		if id == "" {
			id = uuid.NewString()
		}
		created := f.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			id,
			nullString(f.Info.Date),
			nullString(f.Info.Time),
			nullFloat(f.Info.Latitude),
			nullFloat(f.Info.Longitude),
			nullString(f.Info.Address),
			f.Image,
			f.BlobURL,
			f.DetectionsCount,
			f.Model,
			created,
		); err != nil {
			return fmt.Errorf("failed to insert frame: %w", err)
		}
	}

	return tx.Commit()
}

// GetAll retrieves every stored frame in insertion order.
func (r *FrameRepository) GetAll(ctx context.Context) ([]model.SavedFrame, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT id, date, time, latitude, longitude, address, image, blob_url, detections_count, model, created_at
		FROM frames ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	frames := []model.SavedFrame{}
	for rows.Next() {
		var (
			f                   model.SavedFrame
			date, tm, address   sql.NullString
			latitude, longitude sql.NullFloat64
		)
		if err := rows.Scan(&f.ID, &date, &tm, &latitude, &longitude, &address,
			&f.Image, &f.BlobURL, &f.DetectionsCount, &f.Model, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		f.Info = model.GeoInfo{
			Date:      stringPtr(date),
			Time:      stringPtr(tm),
			Latitude:  floatPtr(latitude),
			Longitude: floatPtr(longitude),
			Address:   stringPtr(address),
		}
		frames = append(frames, f)
	}

	return frames, rows.Err()
}

// Close releases the database.
func (r *FrameRepository) Close(context.Context) error {
	return r.db.Close()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	return &f.Float64
}
