package ai

import (
	"fmt"
	"image"

	"potholytics/internal/model"
)

// Defaults the ultralytics predictor applies when called without arguments.
const (
	ultralyticsConf   = 0.25
	ultralyticsIoU    = 0.7
	ultralyticsMaxDet = 300
)

// yoloRecipe decodes single-stage output of shape [1, 4+nc, N] where the
// first four rows are cx, cy, w, h in input pixels. Exports that emit
// [1, N, 4+nc] set transposed in the registry.
type yoloRecipe struct {
	size       int
	transposed bool
}

func (r yoloRecipe) outputs() []string { return []string{"output0"} }

func (r yoloRecipe) input(img image.Image) Tensor {
	return toTensor(img, r.size, unitScale)
}

func (r yoloRecipe) decode(out map[string]Tensor, frame image.Point) ([]model.Detection, error) {
	t, err := singleOutput(out, "output0")
	if err != nil {
		return nil, err
	}
	if err := t.check("output0", 3); err != nil {
		return nil, err
	}

	rows, n := t.Shape[1], t.Shape[2]
	if r.transposed {
		rows, n = n, rows
	}
	if rows < 5 {
		return nil, fmt.Errorf("output0: expected at least 5 rows of box and scores, got shape %v", t.Shape)
	}
	at := func(row, i int) float64 {
		if r.transposed {
			return float64(t.Data[i*rows+row])
		}
		return float64(t.Data[row*n+i])
	}

	sx := float64(frame.X) / float64(r.size)
	sy := float64(frame.Y) / float64(r.size)

	var dets []model.Detection
	for i := 0; i < n; i++ {
		best, class := 0.0, -1
		for c := 4; c < rows; c++ {
			if s := at(c, i); s > best {
				best, class = s, c-4
			}
		}
		if best <= ultralyticsConf {
			continue
		}
		cx, cy, w, h := at(0, i), at(1, i), at(2, i), at(3, i)
		dets = append(dets, model.Detection{
			Box: model.Box{
				X1: (cx - w/2) * sx,
				Y1: (cy - h/2) * sy,
				X2: (cx + w/2) * sx,
				Y2: (cy + h/2) * sy,
			},
			Confidence: best,
			ClassID:    class,
		})
	}

	dets = NMS(dets, ultralyticsIoU, true)
	if len(dets) > ultralyticsMaxDet {
		dets = dets[:ultralyticsMaxDet]
	}
	return dets, nil
}

// rtdetrRecipe decodes real-time transformer output of shape [1, N, 4+nc]
// with normalised cx, cy, w, h. The model already emits one box per query,
// so no suppression runs.
type rtdetrRecipe struct {
	size int
}

func (r rtdetrRecipe) outputs() []string { return []string{"output0"} }

func (r rtdetrRecipe) input(img image.Image) Tensor {
	return toTensor(img, r.size, unitScale)
}

func (r rtdetrRecipe) decode(out map[string]Tensor, frame image.Point) ([]model.Detection, error) {
	t, err := singleOutput(out, "output0")
	if err != nil {
		return nil, err
	}
	if err := t.check("output0", 3); err != nil {
		return nil, err
	}

	n, cols := t.Shape[1], t.Shape[2]
	if cols < 5 {
		return nil, fmt.Errorf("output0: expected at least 5 columns, got shape %v", t.Shape)
	}

	fw, fh := float64(frame.X), float64(frame.Y)

	var dets []model.Detection
	for i := 0; i < n; i++ {
		row := t.Data[i*cols : (i+1)*cols]
		best, class := 0.0, -1
		for c := 4; c < cols; c++ {
			if s := float64(row[c]); s > best {
				best, class = s, c-4
			}
		}
		if best <= ultralyticsConf {
			continue
		}
		cx, cy, w, h := float64(row[0]), float64(row[1]), float64(row[2]), float64(row[3])
		dets = append(dets, model.Detection{
			Box: model.Box{
				X1: (cx - w/2) * fw,
				Y1: (cy - h/2) * fh,
				X2: (cx + w/2) * fw,
				Y2: (cy + h/2) * fh,
			},
			Confidence: best,
			ClassID:    class,
		})
	}

	if len(dets) > ultralyticsMaxDet {
		sortByConfidence(dets)
		dets = dets[:ultralyticsMaxDet]
	}
	return dets, nil
}

// singleOutput returns the named output, or the only output when the
// runtime reports it under a different name.
func singleOutput(out map[string]Tensor, name string) (Tensor, error) {
	if t, ok := out[name]; ok {
		return t, nil
	}
	if len(out) == 1 {
		for _, t := range out {
			return t, nil
		}
	}
	return Tensor{}, fmt.Errorf("missing output %q", name)
}
