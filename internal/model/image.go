package model

import "time"

// SavedFrame represents a persisted detection record.
type SavedFrame struct {
	ID              string    `json:"_id,omitempty" bson:"_id,omitempty"`
	Info            GeoInfo   `json:"info" bson:"info"`
	Image           string    `json:"image,omitempty" bson:"image,omitempty"`
	BlobURL         string    `json:"blob_url,omitempty" bson:"blob_url,omitempty"`
	DetectionsCount int       `json:"detections_count" bson:"detections_count"`
	Model           string    `json:"model,omitempty" bson:"model,omitempty"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
}
