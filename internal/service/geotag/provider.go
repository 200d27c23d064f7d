package geotag

import (
	"context"
	"fmt"

	"potholytics/internal/config"
	"potholytics/internal/logger"
)

// NewFromConfig builds the extractor with the configured OCR provider and,
// when a maps key is present, the geocoder. A Vision client that cannot be
// created leaves the extractor without a recognizer; every frame then reads
// as having no coordinates.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*Extractor, error) {
	var recognizer Recognizer
	switch cfg.OCRProvider {
	case "tesseract":
		t, err := NewTesseractRecognizer(cfg.OCRLanguage)
		if err != nil {
			return nil, err
		}
		recognizer = t
	case "vision", "":
		if cfg.GoogleVisionAPIKey == "" {
			logger.Warning("GOOGLE_VISION_API_KEY not set, Cloud Vision falls back to application default credentials")
		}
		v, err := NewVisionRecognizer(ctx, cfg.GoogleVisionAPIKey)
		if err != nil {
			logger.Warning("Burn-in text will not be read: %v. With dedup on, every sampled frame after the first is skipped", err)
		} else {
			recognizer = v
		}
	default:
		return nil, fmt.Errorf("unknown OCR provider %q", cfg.OCRProvider)
	}

	var geocoder Geocoder
	if cfg.GoogleMapsAPIKey != "" {
		geocoder = NewMapsGeocoder(cfg.GoogleMapsAPIKey, "", cfg.CollaboratorTimeout)
	} else {
		logger.Warning("GOOGLE_MAPS_API_KEY not set, addresses will not be resolved")
	}

	return NewExtractor(recognizer, geocoder, cfg.CropHeight, cfg.CollaboratorTimeout, logger), nil
}
