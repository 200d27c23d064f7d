package ai

import (
	"fmt"
	"image"
	"math"

	"potholytics/internal/model"
)

const (
	detrConf       = 0.5
	detrIoU        = 0.6
	detrSecondIoU  = 0.1
	detrClassLabel = "pothole"
)

// detrRecipe handles the offline transformer: ImageNet-normalised input,
// softmax over logits with a trailing no-object class, normalised boxes.
type detrRecipe struct {
	size int
}

func (r detrRecipe) outputs() []string { return []string{"logits", "pred_boxes"} }

func (r detrRecipe) input(img image.Image) Tensor {
	return toTensor(img, r.size, imageNet)
}

func (r detrRecipe) decode(out map[string]Tensor, frame image.Point) ([]model.Detection, error) {
	logits, ok := out["logits"]
	if !ok {
		return nil, fmt.Errorf("missing output %q", "logits")
	}
	boxes, ok := out["pred_boxes"]
	if !ok {
		return nil, fmt.Errorf("missing output %q", "pred_boxes")
	}
	if err := logits.check("logits", 3); err != nil {
		return nil, err
	}
	if err := boxes.check("pred_boxes", 3); err != nil {
		return nil, err
	}

	queries, classes := logits.Shape[1], logits.Shape[2]
	if classes < 2 {
		return nil, fmt.Errorf("logits: expected a no-object column, got shape %v", logits.Shape)
	}
	if boxes.Shape[1] != queries || boxes.Shape[2] != 4 {
		return nil, fmt.Errorf("pred_boxes: shape %v does not match logits %v", boxes.Shape, logits.Shape)
	}

	fw, fh := float64(frame.X), float64(frame.Y)

	var dets []model.Detection
	for q := 0; q < queries; q++ {
		probs := softmax(logits.Data[q*classes : (q+1)*classes])
		best, class := 0.0, -1
		for c := 0; c < classes-1; c++ {
			if probs[c] > best {
				best, class = probs[c], c
			}
		}
		if best <= detrConf {
			continue
		}
		b := boxes.Data[q*4 : q*4+4]
		cx, cy, w, h := float64(b[0]), float64(b[1]), float64(b[2]), float64(b[3])
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

	return detrSuppress(dets), nil
}

// detrSuppress runs the strict pass and then the loose pass. Every
// survivor is relabelled because the model is single-class.
func detrSuppress(dets []model.Detection) []model.Detection {
	dets = NMS(dets, detrIoU, false)
	dets = NMS(dets, detrSecondIoU, false)
	for i := range dets {
		dets[i].ClassLabel = detrClassLabel
	}
	return dets
}

func softmax(logits []float32) []float64 {
	maxV := math.Inf(-1)
	for _, v := range logits {
		maxV = math.Max(maxV, float64(v))
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(float64(v) - maxV)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
