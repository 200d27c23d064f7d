package media

import (
	"fmt"
	"image"
	"image/draw"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Kind tells still images from video containers.
type Kind int

const (
	KindImage Kind = iota
	KindVideo
)

func (k Kind) String() string {
	if k == KindVideo {
		return "video"
	}
	return "image"
}

var videoExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
	".m4v":  true,
}

// Frame is one decoded picture with its 0-based position in the source.
type Frame struct {
	Index int
	Image *image.RGBA
}

// Source is a finite, non-restartable sequence of frames.
type Source interface {
	Kind() Kind
	// Next decodes the following frame; false means the sequence ended.
	Next() (Frame, bool)
	// Skip advances past one frame without converting it.
	Skip() bool
	// Err reports why a sequence ended before its declared length.
	Err() error
	Close() error
}

// DecodeError means the media could not be opened or read.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s: %v", filepath.Base(e.Path), e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// KindOf classifies a path by extension.
func KindOf(path string) Kind {
	if videoExtensions[strings.ToLower(filepath.Ext(path))] {
		return KindVideo
	}
	return KindImage
}

// Open returns a Source for path.
func Open(path string) (Source, error) {
	if KindOf(path) == KindVideo {
		return openVideo(path)
	}
	return openImage(path)
}

type imageSource struct {
	frame *image.RGBA
	done  bool
}

func openImage(path string) (*imageSource, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return &imageSource{frame: toRGBA(img)}, nil
}

// NewImageSource wraps an already decoded picture.
func NewImageSource(img image.Image) Source {
	return &imageSource{frame: toRGBA(img)}
}

func (s *imageSource) Kind() Kind { return KindImage }

func (s *imageSource) Next() (Frame, bool) {
	if s.done {
		return Frame{}, false
	}
	s.done = true
	return Frame{Index: 0, Image: s.frame}, true
}

func (s *imageSource) Skip() bool {
	if s.done {
		return false
	}
	s.done = true
	return true
}

func (s *imageSource) Err() error   { return nil }
func (s *imageSource) Close() error { s.frame = nil; return nil }

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
