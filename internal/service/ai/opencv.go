//go:build gocv
// +build gocv

package ai

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// OpenCVRunner executes an ONNX model through the OpenCV DNN module.
type OpenCVRunner struct {
	net     gocv.Net
	outputs []string
	mu      sync.Mutex
}

// NewOpenCVRunner loads the network and sets backend/target preferences.
func NewOpenCVRunner(opts RunnerOptions) (Runner, error) {
	if _, err := os.Stat(opts.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", opts.ModelPath)
	}

	net := gocv.ReadNet(opts.ModelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network %s", opts.ModelPath)
	}

	backend, target := gocv.NetBackendDefault, gocv.NetTargetCPU
	if opts.Device == "cuda" {
		backend, target = gocv.NetBackendCUDA, gocv.NetTargetCUDA
	}
	errBackend := net.SetPreferableBackend(backend)
	errTarget := net.SetPreferableTarget(target)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	return &OpenCVRunner{net: net, outputs: opts.Outputs}, nil
}

// Run does not observe ctx once the forward pass has started.
func (r *OpenCVRunner) Run(ctx context.Context, input Tensor) (map[string]Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	raw := make([]byte, 4*len(input.Data))
	for i, v := range input.Data {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	blob, err := gocv.NewMatWithSizesFromBytes(input.Shape, gocv.MatTypeCV32F, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to build input blob: %w", err)
	}
	defer blob.Close()

	r.net.SetInput(blob, "")

	mats := r.net.ForwardLayers(r.outputs)
	defer func() {
		for _, m := range mats {
			m.Close()
		}
	}()
	if len(mats) != len(r.outputs) {
		return nil, fmt.Errorf("expected %d outputs, got %d", len(r.outputs), len(mats))
	}

	out := make(map[string]Tensor, len(mats))
	for i, m := range mats {
		data, err := m.DataPtrFloat32()
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", r.outputs[i], err)
		}
		out[r.outputs[i]] = Tensor{Shape: m.Size(), Data: append([]float32(nil), data...)}
	}
	return out, nil
}

func (r *OpenCVRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.net.Close()
}
