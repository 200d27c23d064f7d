package render

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"potholytics/internal/model"

	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func decode(t *testing.T, encoded string) image.Image {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	return img
}

func TestDownscale_FloorQuarter(t *testing.T) {
	sizes := [][2]int{{4, 4}, {7, 9}, {1920, 1080}, {1279, 719}, {33, 4}}
	for _, s := range sizes {
		out := Downscale(image.NewRGBA(image.Rect(0, 0, s[0], s[1])))
		require.Equal(t, s[0]/4, out.Bounds().Dx(), "width of %v", s)
		require.Equal(t, s[1]/4, out.Bounds().Dy(), "height of %v", s)
	}
}

func TestLabel(t *testing.T) {
	d := model.Detection{ClassLabel: "pothole", Confidence: 0.876}
	require.Equal(t, "pothole 0.88", Label(d, model.RenderStyle{}))
	require.Equal(t, "0.88", Label(d, model.RenderStyle{ScoreOnly: true}))
}

func TestAnnotate_DrawsBoxOutline(t *testing.T) {
	frame := solid(200, 200, color.RGBA{A: 255})
	stroke := color.RGBA{R: 255, A: 255}
	det := model.Detection{Box: model.Box{X1: 50, Y1: 80, X2: 150, Y2: 150}, Confidence: 0.9, ClassLabel: "pothole"}

	Annotate(frame, []model.Detection{det}, model.RenderStyle{Color: &stroke})

	edge := frame.RGBAAt(100, 150)
	require.Equal(t, uint8(255), edge.R)
	inside := frame.RGBAAt(100, 120)
	require.Equal(t, uint8(0), inside.R)
}

func TestAnnotate_NoDetectionsLeavesFrame(t *testing.T) {
	frame := solid(16, 16, color.RGBA{G: 10, A: 255})
	before := append([]uint8(nil), frame.Pix...)
	Annotate(frame, nil, model.RenderStyle{})
	require.Equal(t, before, frame.Pix)
}

func TestRender_SwapRBDiffersFromDefault(t *testing.T) {
	r := NewRenderer(95)
	red := color.RGBA{R: 220, G: 30, B: 20, A: 255}

	plain, err := r.Render(solid(64, 64, red), nil, model.RenderStyle{})
	require.NoError(t, err)
	swapped, err := r.Render(solid(64, 64, red), nil, model.RenderStyle{SwapRB: true})
	require.NoError(t, err)

	a := decode(t, plain)
	b := decode(t, swapped)
	require.Equal(t, image.Rect(0, 0, 16, 16), a.Bounds())

	ar, _, ab, _ := a.At(8, 8).RGBA()
	br, _, bb, _ := b.At(8, 8).RGBA()
	require.Greater(t, ar, ab)
	require.Greater(t, bb, br)
}

func TestEncode_Base64JPEG(t *testing.T) {
	encoded, err := NewRenderer(0).Encode(solid(8, 8, color.RGBA{B: 255, A: 255}))
	require.NoError(t, err)
	img := decode(t, encoded)
	require.Equal(t, 8, img.Bounds().Dx())
}
