package geotag

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"potholytics/internal/logger"
	"potholytics/internal/model"

	"github.com/disintegration/imaging"
)

// DefaultCropHeight is the height of the burn-in strip at the bottom of a frame.
const DefaultCropHeight = 100

// Recognizer turns an encoded image into text.
type Recognizer interface {
	Recognize(ctx context.Context, img []byte) (string, error)
}

// Geocoder resolves coordinates into a postal address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

// OCRError is a failure reported by the text-recognition service.
type OCRError struct {
	Message string
}

func (e *OCRError) Error() string {
	return "text recognition failed: " + e.Message
}

// GeocodeError is a failed or empty reverse-geocoding lookup.
type GeocodeError struct {
	Status string
	Err    error
}

func (e *GeocodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reverse geocoding failed (%s): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("reverse geocoding failed (%s)", e.Status)
}

func (e *GeocodeError) Unwrap() error {
	return e.Err
}

var (
	datePattern      = regexp.MustCompile(`(\d{2}-\d{2}-\d{4})`)
	timePattern      = regexp.MustCompile(`(\d{2}:\d{2}:\d{2})`)
	longitudePattern = regexp.MustCompile(`km/h\s*E\s*(\d+\s*\.\s*\d+)`)
	latitudePattern  = regexp.MustCompile(`,\s*[№N]\s*(\d+\s*\.\s*\d+)`)
)

// Parse extracts date, time and coordinates from flattened burn-in text.
// Fields that do not match or do not parse stay nil.
func Parse(text string) model.GeoInfo {
	var info model.GeoInfo
	if m := datePattern.FindStringSubmatch(text); m != nil {
		info.Date = &m[1]
	}
	if m := timePattern.FindStringSubmatch(text); m != nil {
		info.Time = &m[1]
	}
	if m := latitudePattern.FindStringSubmatch(text); m != nil {
		info.Latitude = parseCoordinate(m[1])
	}
	if m := longitudePattern.FindStringSubmatch(text); m != nil {
		info.Longitude = parseCoordinate(m[1])
	}
	return info
}

func parseCoordinate(s string) *float64 {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, strings.ReplaceAll(s, " ", ""))

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &v
}

// Extractor reads the burn-in strip of a frame.
type Extractor struct {
	recognizer Recognizer
	geocoder   Geocoder
	cropHeight int
	timeout    time.Duration
	logger     *logger.Logger
}

// NewExtractor wires the collaborators. geocoder may be nil, in which case
// addresses are never resolved. A nil recognizer reads nothing.
func NewExtractor(recognizer Recognizer, geocoder Geocoder, cropHeight int, timeout time.Duration, logger *logger.Logger) *Extractor {
	if cropHeight <= 0 {
		cropHeight = DefaultCropHeight
	}
	return &Extractor{
		recognizer: recognizer,
		geocoder:   geocoder,
		cropHeight: cropHeight,
		timeout:    timeout,
		logger:     logger,
	}
}

// Extract never fails: collaborator errors degrade to absent fields.
func (e *Extractor) Extract(ctx context.Context, frame image.Image) model.GeoInfo {
	if e.recognizer == nil {
		return model.GeoInfo{}
	}

	strip, err := e.crop(frame)
	if err != nil {
		e.logger.Warning("Failed to prepare geotag strip: %v", err)
		return model.GeoInfo{}
	}

	text, err := e.recognize(ctx, strip)
	if err != nil {
		e.logger.Warning("Geotag text recognition degraded: %v", err)
		return model.GeoInfo{}
	}
	text = strings.ReplaceAll(text, "\n", " ")
	e.logger.Debug("Extracted text: %s", text)

	info := Parse(text)
	if info.HasCoordinates() && e.geocoder != nil {
		address := e.resolve(ctx, *info.Latitude, *info.Longitude)
		info.Address = &address
	}
	return info
}

// crop encodes the bottom strip of the frame as JPEG.
func (e *Extractor) crop(frame image.Image) ([]byte, error) {
	b := frame.Bounds()
	top := b.Max.Y - e.cropHeight
	if top < b.Min.Y {
		top = b.Min.Y
	}
	strip := imaging.Crop(frame, image.Rect(b.Min.X, top, b.Max.X, b.Max.Y))

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, strip, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return nil, fmt.Errorf("failed to encode strip: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *Extractor) recognize(ctx context.Context, strip []byte) (string, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()
	return e.recognizer.Recognize(ctx, strip)
}

func (e *Extractor) resolve(ctx context.Context, lat, lon float64) string {
	ctx, cancel := e.bound(ctx)
	defer cancel()

	address, err := e.geocoder.ReverseGeocode(ctx, lat, lon)
	if err != nil || address == "" {
		e.logger.Warning("Reverse geocoding %.6f,%.6f failed: %v", lat, lon, err)
		return model.AddressNotFound
	}
	return address
}

// Close releases the recognizer when it holds a client.
func (e *Extractor) Close() error {
	if c, ok := e.recognizer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (e *Extractor) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return context.WithCancel(ctx)
}
