//go:build gocv
// +build gocv

package media

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

type videoSource struct {
	path     string
	capture  *gocv.VideoCapture
	mat      gocv.Mat
	declared int
	index    int
	ended    bool
	err      error
}

func openVideo(path string) (Source, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, &DecodeError{Path: path, Err: errors.New("video capture is not opened")}
	}

	return &videoSource{
		path:     path,
		capture:  capture,
		mat:      gocv.NewMat(),
		declared: int(capture.Get(gocv.VideoCaptureFrameCount)),
	}, nil
}

func (v *videoSource) Kind() Kind { return KindVideo }

func (v *videoSource) read() bool {
	if v.ended {
		return false
	}
	if ok := v.capture.Read(&v.mat); !ok || v.mat.Empty() {
		v.finish()
		return false
	}
	return true
}

func (v *videoSource) Next() (Frame, bool) {
	if !v.read() {
		return Frame{}, false
	}
	img, err := v.mat.ToImage()
	if err != nil {
		v.err = &DecodeError{Path: v.path, Err: fmt.Errorf("frame %d: %w", v.index, err)}
		v.ended = true
		return Frame{}, false
	}
	frame := Frame{Index: v.index, Image: toRGBA(img)}
	v.index++
	return frame, true
}

func (v *videoSource) Skip() bool {
	if !v.read() {
		return false
	}
	v.index++
	return true
}

// finish records a truncated stream when fewer frames were read than the
// container declared.
func (v *videoSource) finish() {
	v.ended = true
	if v.declared > 0 && v.index < v.declared {
		v.err = &DecodeError{
			Path: v.path,
			Err:  fmt.Errorf("stream ended at frame %d of %d", v.index, v.declared),
		}
	}
}

func (v *videoSource) Err() error { return v.err }

func (v *videoSource) Close() error {
	v.mat.Close()
	return v.capture.Close()
}
