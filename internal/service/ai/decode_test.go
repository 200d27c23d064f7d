package ai

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestYOLO_DecodeScalesAndSuppresses(t *testing.T) {
	// rows: cx, cy, w, h, score; three anchors
	out := Tensor{Shape: []int{1, 5, 3}, Data: []float32{
		100, 102, 300,
		100, 100, 300,
		20, 20, 20,
		20, 20, 20,
		0.9, 0.8, 0.2,
	}}
	runner := &fakeRunner{outputs: map[string]Tensor{"output0": out}}
	d := newTestDetector(yoloRecipe{size: 640}, runner, []string{"pothole"})

	dets, err := d.Infer(context.Background(), image.NewRGBA(image.Rect(0, 0, 1280, 640)))
	require.NoError(t, err)
	require.Len(t, dets, 1)

	require.InDelta(t, 0.9, dets[0].Confidence, 1e-6)
	require.Equal(t, "pothole", dets[0].ClassLabel)
	require.InDelta(t, 180, dets[0].Box.X1, 1e-6)
	require.InDelta(t, 90, dets[0].Box.Y1, 1e-6)
	require.InDelta(t, 220, dets[0].Box.X2, 1e-6)
	require.InDelta(t, 110, dets[0].Box.Y2, 1e-6)

	require.Len(t, runner.inputs, 1)
	require.Equal(t, []int{1, 3, 640, 640}, runner.inputs[0].Shape)
}

func TestYOLO_OverlapAcrossClassesKept(t *testing.T) {
	out := Tensor{Shape: []int{1, 6, 2}, Data: []float32{
		50, 50,
		50, 50,
		10, 10,
		10, 10,
		0.9, 0.1,
		0.1, 0.8,
	}}
	d := newTestDetector(yoloRecipe{size: 100}, &fakeRunner{outputs: map[string]Tensor{"output0": out}}, []string{"pothole", "crack"})

	dets, err := d.Infer(context.Background(), image.NewRGBA(image.Rect(0, 0, 100, 100)))
	require.NoError(t, err)
	require.Len(t, dets, 2)
	require.Equal(t, "pothole", dets[0].ClassLabel)
	require.Equal(t, "crack", dets[1].ClassLabel)
}

func TestYOLO_AcceptsTransposedOutput(t *testing.T) {
	// [1, N, 5] as some exports emit it
	data := make([]float32, 0, 8*5)
	for i := 0; i < 8; i++ {
		score := float32(0)
		if i == 3 {
			score = 0.7
		}
		data = append(data, float32(10+i*20), 10, 10, 10, score)
	}
	out := Tensor{Shape: []int{1, 8, 5}, Data: data}
	d := newTestDetector(yoloRecipe{size: 200, transposed: true}, &fakeRunner{outputs: map[string]Tensor{"anything": out}}, nil)

	dets, err := d.Infer(context.Background(), image.NewRGBA(image.Rect(0, 0, 200, 200)))
	require.NoError(t, err)
	require.Len(t, dets, 1)
	require.InDelta(t, 65, dets[0].Box.X1, 1e-6)
	require.Equal(t, "class0", dets[0].ClassLabel)
}

func TestYOLO_FewCandidatesKeepChannelMajorLayout(t *testing.T) {
	// Fewer candidates than channels must not flip the layout.
	out := Tensor{Shape: []int{1, 7, 2}, Data: []float32{
		50, 150,
		50, 150,
		10, 10,
		10, 10,
		0.1, 0.2,
		0.9, 0.1,
		0.1, 0.6,
	}}
	d := newTestDetector(yoloRecipe{size: 200}, &fakeRunner{outputs: map[string]Tensor{"output0": out}}, []string{"a", "pothole", "c"})

	dets, err := d.Infer(context.Background(), image.NewRGBA(image.Rect(0, 0, 200, 200)))
	require.NoError(t, err)
	require.Len(t, dets, 2)
	require.Equal(t, "pothole", dets[0].ClassLabel)
	require.InDelta(t, 45, dets[0].Box.X1, 1e-6)
	require.Equal(t, "c", dets[1].ClassLabel)
	require.InDelta(t, 145, dets[1].Box.X1, 1e-6)
}

func TestYOLO_TransposedTooFewColumns(t *testing.T) {
	out := Tensor{Shape: []int{1, 5, 3}, Data: make([]float32, 15)}
	d := newTestDetector(yoloRecipe{size: 100, transposed: true}, &fakeRunner{outputs: map[string]Tensor{"output0": out}}, nil)

	_, err := d.Infer(context.Background(), image.NewRGBA(image.Rect(0, 0, 100, 100)))
	require.ErrorContains(t, err, "expected at least 5 rows")
}

func TestRTDETR_NormalisedBoxesNoSuppression(t *testing.T) {
	out := Tensor{Shape: []int{1, 3, 5}, Data: []float32{
		0.5, 0.5, 0.2, 0.2, 0.9,
		0.5, 0.5, 0.2, 0.2, 0.6,
		0.1, 0.1, 0.1, 0.1, 0.1,
	}}
	d := newTestDetector(rtdetrRecipe{size: 640}, &fakeRunner{outputs: map[string]Tensor{"output0": out}}, []string{"pothole"})

	dets, err := d.Infer(context.Background(), image.NewRGBA(image.Rect(0, 0, 100, 50)))
	require.NoError(t, err)
	require.Len(t, dets, 2, "identical boxes are both kept")
	require.InDelta(t, 40, dets[0].Box.X1, 1e-4)
	require.InDelta(t, 20, dets[0].Box.Y1, 1e-4)
	require.InDelta(t, 60, dets[0].Box.X2, 1e-4)
	require.InDelta(t, 30, dets[0].Box.Y2, 1e-4)
}

func TestDETR_ThresholdTwoPassNMSAndFixedLabel(t *testing.T) {
	logits := Tensor{Shape: []int{1, 5, 2}, Data: []float32{
		3, 0,
		2.9, 0,
		0, 3,
		2, 0,
		1, 0,
	}}
	boxes := Tensor{Shape: []int{1, 5, 4}, Data: []float32{
		0.30, 0.3, 0.2, 0.2,
		0.31, 0.3, 0.2, 0.2,
		0.60, 0.6, 0.2, 0.2,
		0.45, 0.3, 0.2, 0.2,
		0.80, 0.8, 0.1, 0.1,
	}}
	d := newTestDetector(detrRecipe{size: 800}, &fakeRunner{outputs: map[string]Tensor{"logits": logits, "pred_boxes": boxes}}, []string{"something-else"})

	dets, err := d.Infer(context.Background(), image.NewRGBA(image.Rect(0, 0, 100, 100)))
	require.NoError(t, err)
	require.Len(t, dets, 2)
	require.Greater(t, dets[0].Confidence, dets[1].Confidence)
	require.InDelta(t, 20, dets[0].Box.X1, 1e-4)
	require.InDelta(t, 75, dets[1].Box.X1, 1e-4)
	for _, det := range dets {
		require.Equal(t, "pothole", det.ClassLabel)
		require.Greater(t, det.Confidence, 0.5)
	}
}

func TestDETR_InputIsImageNetNormalised(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]Tensor{
		"logits":     {Shape: []int{1, 0, 2}},
		"pred_boxes": {Shape: []int{1, 0, 4}},
	}}
	d := newTestDetector(detrRecipe{size: 4}, runner, nil)

	_, err := d.Infer(context.Background(), solidFrame(8, 8, color.RGBA{R: 255, A: 255}))
	require.NoError(t, err)

	in := runner.inputs[0]
	require.InDelta(t, (1-0.485)/0.229, in.Data[0], 1e-4)
	require.InDelta(t, (0-0.406)/0.225, in.Data[2*16], 1e-4)
}

func TestRCNN_ConstructionThresholdAndStyle(t *testing.T) {
	boxes := Tensor{Shape: []int{3, 4}, Data: []float32{
		100, 100, 200, 200,
		10, 10, 20, 20,
		300, 300, 400, 400,
	}}
	scores := Tensor{Shape: []int{3}, Data: []float32{0.95, 0.7, 0.71}}
	classes := Tensor{Shape: []int{3}, Data: []float32{0, 0, 0}}
	runner := &fakeRunner{outputs: map[string]Tensor{"boxes": boxes, "scores": scores, "classes": classes}}

	r := newRCNNRecipe(800, RCNNScoreThreshold)
	d := newTestDetector(r, runner, []string{"pothole"})
	d.style = rcnnStyle()

	dets, err := d.Infer(context.Background(), solidFrame(1600, 800, color.RGBA{R: 255, A: 255}))
	require.NoError(t, err)
	require.Len(t, dets, 2)
	require.InDelta(t, 200, dets[0].Box.X1, 1e-6)
	require.InDelta(t, 100, dets[0].Box.Y1, 1e-6)

	style := d.Style()
	require.True(t, style.ScoreOnly)
	require.True(t, style.SwapRB)
	require.NotNil(t, style.Color)

	// BGR layout in 0-255: a red frame has an empty first plane.
	in := runner.inputs[0]
	plane := 800 * 800
	require.Equal(t, float32(0), in.Data[0])
	require.Equal(t, float32(255), in.Data[2*plane])
}

func TestInfer_RunnerFailureIsInferenceError(t *testing.T) {
	d := newTestDetector(yoloRecipe{size: 32}, &fakeRunner{err: errors.New("cuda oom")}, nil)

	_, err := d.Infer(context.Background(), image.NewRGBA(image.Rect(0, 0, 64, 64)))
	var inferErr *InferenceError
	require.ErrorAs(t, err, &inferErr)
	require.ErrorContains(t, err, "cuda oom")
}

func TestInfer_MalformedOutputIsInferenceError(t *testing.T) {
	out := Tensor{Shape: []int{1, 5, 3}, Data: []float32{1, 2}}
	d := newTestDetector(yoloRecipe{size: 32}, &fakeRunner{outputs: map[string]Tensor{"output0": out}}, nil)

	_, err := d.Infer(context.Background(), image.NewRGBA(image.Rect(0, 0, 64, 64)))
	var inferErr *InferenceError
	require.ErrorAs(t, err, &inferErr)
}

func TestInfer_AfterClose(t *testing.T) {
	runner := &fakeRunner{}
	d := newTestDetector(yoloRecipe{size: 32}, runner, nil)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	require.True(t, runner.closed)

	_, err := d.Infer(context.Background(), image.NewRGBA(image.Rect(0, 0, 64, 64)))
	require.Error(t, err)
}
