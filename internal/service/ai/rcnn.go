package ai

import (
	"fmt"
	"image"
	"image/color"

	"potholytics/internal/model"
)

// RCNNScoreThreshold is the test-time score threshold of the region-proposal predictor.
const RCNNScoreThreshold = 0.7

var rcnnStroke = color.RGBA{R: 255, G: 0, B: 0, A: 255}

// rcnnRecipe consumes the exported region-proposal predictor: BGR input in
// 0-255, outputs boxes [N,4] in input pixels with scores [N] and classes [N].
type rcnnRecipe struct {
	size      int
	threshold float64
}

func newRCNNRecipe(size int, threshold float64) rcnnRecipe {
	return rcnnRecipe{size: size, threshold: threshold}
}

func (r rcnnRecipe) outputs() []string { return []string{"boxes", "scores", "classes"} }

func (r rcnnRecipe) input(img image.Image) Tensor {
	return toTensor(img, r.size, rawBGR)
}

func (r rcnnRecipe) decode(out map[string]Tensor, frame image.Point) ([]model.Detection, error) {
	boxes, ok := out["boxes"]
	if !ok {
		return nil, fmt.Errorf("missing output %q", "boxes")
	}
	scores, ok := out["scores"]
	if !ok {
		return nil, fmt.Errorf("missing output %q", "scores")
	}
	classes, ok := out["classes"]
	if !ok {
		return nil, fmt.Errorf("missing output %q", "classes")
	}
	if err := boxes.check("boxes", 2); err != nil {
		return nil, err
	}
	n := boxes.Shape[0]
	if boxes.Shape[1] != 4 || len(scores.Data) != n || len(classes.Data) != n {
		return nil, fmt.Errorf("inconsistent outputs: boxes %v, %d scores, %d classes", boxes.Shape, len(scores.Data), len(classes.Data))
	}

	sx := float64(frame.X) / float64(r.size)
	sy := float64(frame.Y) / float64(r.size)

	var dets []model.Detection
	for i := 0; i < n; i++ {
		score := float64(scores.Data[i])
		if score <= r.threshold {
			continue
		}
		b := boxes.Data[i*4 : i*4+4]
		dets = append(dets, model.Detection{
			Box: model.Box{
				X1: float64(b[0]) * sx,
				Y1: float64(b[1]) * sy,
				X2: float64(b[2]) * sx,
				Y2: float64(b[3]) * sy,
			},
			Confidence: score,
			ClassID:    int(classes.Data[i]),
		})
	}
	return dets, nil
}

func rcnnStyle() model.RenderStyle {
	stroke := rcnnStroke
	return model.RenderStyle{Color: &stroke, ScoreOnly: true, SwapRB: true}
}
