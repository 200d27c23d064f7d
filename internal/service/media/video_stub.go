//go:build !gocv
// +build !gocv

package media

import "errors"

func openVideo(path string) (Source, error) {
	return nil, &DecodeError{Path: path, Err: errors.New("gocv build tag is not enabled")}
}
