//go:build !gocv
// +build !gocv

package ai

import "errors"

// NewOpenCVRunner returns an error when built without the gocv tag.
func NewOpenCVRunner(opts RunnerOptions) (Runner, error) {
	_ = opts
	return nil, errors.New("gocv build tag is not enabled")
}
