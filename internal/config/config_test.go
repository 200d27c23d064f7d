package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 5000, cfg.Port)
	require.Equal(t, "yolov11n", cfg.DefaultModel)
	require.Equal(t, 30, cfg.SamplingStride)
	require.True(t, cfg.DedupEnabled)
	require.True(t, cfg.OCREnabled)
	require.Equal(t, 100, cfg.CropHeight)
	require.Equal(t, 10*time.Second, cfg.CollaboratorTimeout)
	require.Equal(t, "potholytics", cfg.MongoDatabase)
	require.Equal(t, "potholes", cfg.MongoCollection)

	for _, name := range []string{"yolov11n", "yolov11l", "rt-detr", "re-detr", "detr", "rcnn"} {
		require.Contains(t, cfg.Models, name)
	}
	require.Equal(t, KindRTDETR, cfg.Models["re-detr"].Kind)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SAMPLING_STRIDE", "10")
	t.Setenv("DEDUP_ENABLED", "false")
	t.Setenv("OCR_ENABLED", "0")
	t.Setenv("COLLABORATOR_TIMEOUT", "250ms")
	t.Setenv("PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 10, cfg.SamplingStride)
	require.False(t, cfg.DedupEnabled)
	require.False(t, cfg.OCREnabled)
	require.Equal(t, 250*time.Millisecond, cfg.CollaboratorTimeout)
	require.Equal(t, 5000, cfg.Port)
}

func TestLoad_StrideFloor(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SAMPLING_STRIDE", "0")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 1, cfg.SamplingStride)
}

func TestLoad_ModelsFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	file := filepath.Join(dir, "models.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
models:
  yolov8s:
    kind: yolo
    path: yolov8s.onnx
    labels_file: coco.names
    input_size: 640
    aliases: [v8]
`), 0644))

	t.Setenv("MODEL_DIR", "/srv/models")
	t.Setenv("MODELS_FILE", file)

	cfg, err := Load()
	require.NoError(t, err)

	spec, ok := cfg.Models["yolov8s"]
	require.True(t, ok)
	require.Equal(t, "/srv/models/yolov8s.onnx", spec.Path)
	require.Equal(t, "/srv/models/coco.names", spec.LabelsFile)
	require.Equal(t, spec, cfg.Models["v8"])
	require.Contains(t, cfg.Models, "detr")
}

func TestLoad_ModelsFileRejectsUnknownKind(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	file := filepath.Join(dir, "models.yaml")
	require.NoError(t, os.WriteFile(file, []byte("models:\n  x:\n    kind: ssd\n    path: x.onnx\n"), 0644))
	t.Setenv("MODELS_FILE", file)

	_, err := Load()
	require.ErrorContains(t, err, "unknown kind")
}
