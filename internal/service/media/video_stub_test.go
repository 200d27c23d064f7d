//go:build !gocv
// +build !gocv

package media

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpen_VideoWithoutOpenCV(t *testing.T) {
	_, err := Open("drive.mp4")
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	require.ErrorContains(t, err, "gocv build tag is not enabled")
}
