package mongo

import (
	"context"
	"fmt"
	"time"

	"potholytics/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// FrameRepository implements repository.FrameRepository on a MongoDB
// collection. Documents keep the shape the dashboard reads.
type FrameRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Connect dials uri and binds to database.collection.
func Connect(ctx context.Context, uri, database, collection string) (*FrameRepository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &FrameRepository{client: client, coll: client.Database(database).Collection(collection)}, nil
}

// NewFrameRepository wraps an existing collection.
func NewFrameRepository(coll *mongo.Collection) *FrameRepository {
	return &FrameRepository{coll: coll}
}

func (r *FrameRepository) InsertBatch(ctx context.Context, frames []model.SavedFrame) error {
	if len(frames) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(frames))
	now := time.Now().UTC()
	for _, f := range frames {
		if f.CreatedAt.IsZero() {
			f.CreatedAt = now
		}
		docs = append(docs, f)
	}

	if _, err := r.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert frames: %w", err)
	}
	return nil
}

// GetAll returns every document; ObjectIDs come back as hex strings.
func (r *FrameRepository) GetAll(ctx context.Context) ([]model.SavedFrame, error) {
	cursor, err := r.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer cursor.Close(ctx)

	frames := []model.SavedFrame{}
	if err := cursor.All(ctx, &frames); err != nil {
		return nil, fmt.Errorf("failed to decode frames: %w", err)
	}
	return frames, nil
}

func (r *FrameRepository) Close(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Disconnect(ctx)
}
