//go:build !tesseract
// +build !tesseract

package geotag

import (
	"context"
	"errors"
)

type TesseractRecognizer struct{}

// NewTesseractRecognizer returns an error when built without the tesseract tag.
func NewTesseractRecognizer(language string) (*TesseractRecognizer, error) {
	_ = language
	return nil, errors.New("tesseract build tag is not enabled")
}

func (t *TesseractRecognizer) Recognize(ctx context.Context, img []byte) (string, error) {
	_ = ctx
	_ = img
	return "", errors.New("tesseract build tag is not enabled")
}

func (t *TesseractRecognizer) Close() error {
	return nil
}
