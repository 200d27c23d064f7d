package media

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	require.Equal(t, KindVideo, KindOf("/tmp/drive.MP4"))
	require.Equal(t, KindVideo, KindOf("clip.mkv"))
	require.Equal(t, KindImage, KindOf("frame.jpg"))
	require.Equal(t, KindImage, KindOf("noext"))
}

func TestOpen_StillImageYieldsOneFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	img := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	img.Set(3, 4, color.NRGBA{R: 200, A: 255})
	require.NoError(t, imaging.Save(img, path))

	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()
	require.Equal(t, KindImage, src.Kind())

	frame, ok := src.Next()
	require.True(t, ok)
	require.Equal(t, 0, frame.Index)
	require.Equal(t, image.Rect(0, 0, 40, 20), frame.Image.Bounds())
	require.Equal(t, uint8(200), frame.Image.RGBAAt(3, 4).R)

	_, ok = src.Next()
	require.False(t, ok)
	require.False(t, src.Skip())
	require.NoError(t, src.Err())
}

func TestOpen_UndecodableImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0644))

	_, err := Open(path)
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	require.Equal(t, path, decodeErr.Path)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.png"))
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestNewImageSource_NormalisesOrigin(t *testing.T) {
	sub := image.NewRGBA(image.Rect(0, 0, 10, 10)).SubImage(image.Rect(2, 2, 6, 8))
	src := NewImageSource(sub)

	require.True(t, src.Skip())
	_, ok := src.Next()
	require.False(t, ok)

	src = NewImageSource(sub)
	frame, ok := src.Next()
	require.True(t, ok)
	require.Equal(t, image.Rect(0, 0, 4, 6), frame.Image.Bounds())
}
