package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"

	"potholytics/internal/model"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

const (
	// StrokeWidth is the box outline thickness in pixels.
	StrokeWidth = 4
	// ScaleFactor is applied to both dimensions before encoding.
	ScaleFactor = 0.25

	labelPadding = 4
)

var palette = []color.RGBA{
	{R: 0xA3, G: 0x51, B: 0xFB, A: 0xFF},
	{R: 0xE6, G: 0x19, B: 0x4B, A: 0xFF},
	{R: 0x3C, G: 0xB4, B: 0x4B, A: 0xFF},
	{R: 0xFF, G: 0xE1, B: 0x19, A: 0xFF},
	{R: 0x43, G: 0x63, B: 0xD8, A: 0xFF},
	{R: 0xF5, G: 0x82, B: 0x31, A: 0xFF},
	{R: 0x46, G: 0xF0, B: 0xF0, A: 0xFF},
	{R: 0xF0, G: 0x32, B: 0xE6, A: 0xFF},
}

// Renderer draws detections and serialises frames for transport.
type Renderer struct {
	quality int
}

func NewRenderer(quality int) *Renderer {
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	return &Renderer{quality: quality}
}

// Render annotates the frame in place, downscales it, applies the style's
// channel order and returns the base64 JPEG.
func (r *Renderer) Render(frame *image.RGBA, detections []model.Detection, style model.RenderStyle) (string, error) {
	Annotate(frame, detections, style)
	small := Downscale(frame)
	if style.SwapRB {
		SwapRB(small)
	}
	return r.Encode(small)
}

// Label formats the caption drawn above a box.
func Label(d model.Detection, style model.RenderStyle) string {
	if style.ScoreOnly {
		return fmt.Sprintf("%.2f", d.Confidence)
	}
	return fmt.Sprintf("%s %.2f", d.ClassLabel, d.Confidence)
}

// Annotate draws one rectangle and one caption per detection onto frame.
func Annotate(frame *image.RGBA, detections []model.Detection, style model.RenderStyle) *image.RGBA {
	if len(detections) == 0 {
		return frame
	}

	dc := gg.NewContextForRGBA(frame)
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetLineWidth(StrokeWidth)

	for _, d := range detections {
		c := strokeColor(d.ClassID, style)
		b := d.Box

		dc.SetColor(c)
		dc.DrawRectangle(b.X1, b.Y1, b.Width(), b.Height())
		dc.Stroke()

		text := Label(d, style)
		tw, th := dc.MeasureString(text)
		tagH := th + 2*labelPadding
		top := b.Y1 - tagH
		if top < 0 {
			top = b.Y1
		}

		dc.SetColor(c)
		dc.DrawRectangle(b.X1, top, tw+2*labelPadding, tagH)
		dc.Fill()

		dc.SetColor(textColor(c))
		dc.DrawStringAnchored(text, b.X1+labelPadding, top+tagH/2, 0, 0.35)
	}
	return frame
}

func strokeColor(classID int, style model.RenderStyle) color.RGBA {
	if style.Color != nil {
		return *style.Color
	}
	if classID < 0 {
		classID = -classID
	}
	return palette[classID%len(palette)]
}

// textColor picks black or white for contrast against the tag background.
func textColor(bg color.RGBA) color.Color {
	luma := 0.299*float64(bg.R) + 0.587*float64(bg.G) + 0.114*float64(bg.B)
	if luma > 150 {
		return color.Black
	}
	return color.White
}

// Downscale resizes to floor(ScaleFactor x size) on both axes with area averaging.
func Downscale(img image.Image) *image.NRGBA {
	b := img.Bounds()
	w := int(float64(b.Dx()) * ScaleFactor)
	h := int(float64(b.Dy()) * ScaleFactor)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return imaging.Resize(img, w, h, imaging.Box)
}

// SwapRB exchanges the red and blue channels in place.
func SwapRB(img *image.NRGBA) {
	for i := 0; i+3 < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+2] = img.Pix[i+2], img.Pix[i]
	}
}

// Encode serialises img as JPEG and base64-encodes it.
func (r *Renderer) Encode(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(r.quality)); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
