//go:build tesseract
// +build tesseract

package geotag

import (
	"context"
	"fmt"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// TesseractRecognizer runs a local Tesseract instance.
type TesseractRecognizer struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseractRecognizer initialises a client for the given language.
func NewTesseractRecognizer(language string) (*TesseractRecognizer, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	return &TesseractRecognizer{client: client}, nil
}

func (t *TesseractRecognizer) Recognize(ctx context.Context, img []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(img); err != nil {
		return "", &OCRError{Message: err.Error()}
	}
	text, err := t.client.Text()
	if err != nil {
		return "", &OCRError{Message: err.Error()}
	}
	return text, nil
}

func (t *TesseractRecognizer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}
