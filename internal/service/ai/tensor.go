package ai

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Tensor is a dense float32 array in row-major order.
type Tensor struct {
	Shape []int     `msgpack:"shape"`
	Data  []float32 `msgpack:"data"`
}

// Len returns the number of elements implied by the shape.
func (t Tensor) Len() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

func (t Tensor) check(name string, rank int) error {
	if len(t.Shape) != rank {
		return fmt.Errorf("output %q: expected rank %d, got shape %v", name, rank, t.Shape)
	}
	if t.Len() != len(t.Data) {
		return fmt.Errorf("output %q: shape %v does not match %d values", name, t.Shape, len(t.Data))
	}
	return nil
}

// Runner executes a loaded model on one input tensor.
type Runner interface {
	Run(ctx context.Context, input Tensor) (map[string]Tensor, error)
	Close() error
}

// RunnerOptions selects the model a Runner loads.
type RunnerOptions struct {
	ModelPath string
	Kind      string
	Device    string
	Outputs   []string
}

// RunnerFactory opens a Runner for one backend instance.
type RunnerFactory func(opts RunnerOptions) (Runner, error)

// normalization maps 8-bit pixels to model input values: (v*scale - mean) / std.
type normalization struct {
	scale float32
	mean  [3]float32
	std   [3]float32
	bgr   bool
}

var (
	unitScale = normalization{scale: 1.0 / 255, std: [3]float32{1, 1, 1}}
	imageNet  = normalization{
		scale: 1.0 / 255,
		mean:  [3]float32{0.485, 0.456, 0.406},
		std:   [3]float32{0.229, 0.224, 0.225},
	}
	rawBGR = normalization{scale: 1, std: [3]float32{1, 1, 1}, bgr: true}
)

// toTensor resizes img to size x size and lays it out as a [1,3,size,size] CHW tensor.
func toTensor(img image.Image, size int, n normalization) Tensor {
	resized := imaging.Resize(img, size, size, imaging.Linear)

	plane := size * size
	data := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := resized.PixOffset(x, y)
			c := [3]float32{float32(resized.Pix[i]), float32(resized.Pix[i+1]), float32(resized.Pix[i+2])}
			if n.bgr {
				c[0], c[2] = c[2], c[0]
			}
			idx := y*size + x
			for ch := 0; ch < 3; ch++ {
				data[ch*plane+idx] = (c[ch]*n.scale - n.mean[ch]) / n.std[ch]
			}
		}
	}

	return Tensor{Shape: []int{1, 3, size, size}, Data: data}
}
