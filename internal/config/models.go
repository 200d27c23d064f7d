package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Model kinds understood by the detection backend factory.
const (
	KindYOLO   = "yolo"
	KindRTDETR = "rtdetr"
	KindDETR   = "detr"
	KindRCNN   = "rcnn"
)

// ModelSpec describes one selectable detection model.
type ModelSpec struct {
	Kind       string   `yaml:"kind"`
	Path       string   `yaml:"path"`
	Labels     []string `yaml:"labels"`
	LabelsFile string   `yaml:"labels_file"`
	InputSize  int      `yaml:"input_size"`
	Aliases    []string `yaml:"aliases"`
	Transposed bool     `yaml:"transposed"`
}

type modelsFile struct {
	Models map[string]ModelSpec `yaml:"models"`
}

// DefaultModels returns the built-in registry rooted at dir.
func DefaultModels(dir string) map[string]ModelSpec {
	pothole := []string{"pothole"}
	return map[string]ModelSpec{
		"yolov11n": {Kind: KindYOLO, Path: filepath.Join(dir, "yolov11n.onnx"), Labels: pothole, InputSize: 640},
		"yolov11l": {Kind: KindYOLO, Path: filepath.Join(dir, "yolov11l.onnx"), Labels: pothole, InputSize: 640},
		"rt-detr":  {Kind: KindRTDETR, Path: filepath.Join(dir, "rt-detr.onnx"), Labels: pothole, InputSize: 640, Aliases: []string{"re-detr"}},
		"detr":     {Kind: KindDETR, Path: filepath.Join(dir, "detr.onnx"), Labels: pothole, InputSize: 800},
		"rcnn":     {Kind: KindRCNN, Path: filepath.Join(dir, "rcnn.onnx"), Labels: pothole, InputSize: 800},
	}
}

// loadModels merges the optional YAML registry over the built-in one and
// expands aliases into their own entries.
func loadModels(dir, file string) (map[string]ModelSpec, error) {
	models := DefaultModels(dir)

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read models file: %w", err)
		}

		var parsed modelsFile
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse models file: %w", err)
		}

		for name, spec := range parsed.Models {
			if err := validateSpec(name, spec); err != nil {
				return nil, err
			}
			if spec.Path != "" && !filepath.IsAbs(spec.Path) {
				spec.Path = filepath.Join(dir, spec.Path)
			}
			if spec.LabelsFile != "" && !filepath.IsAbs(spec.LabelsFile) {
				spec.LabelsFile = filepath.Join(dir, spec.LabelsFile)
			}
			models[name] = spec
		}
	}

	aliases := make(map[string]ModelSpec)
	for _, spec := range models {
		for _, alias := range spec.Aliases {
			if _, taken := models[alias]; !taken {
				aliases[alias] = spec
			}
		}
	}
	for alias, spec := range aliases {
		models[alias] = spec
	}

	return models, nil
}

func validateSpec(name string, spec ModelSpec) error {
	switch spec.Kind {
	case KindYOLO, KindRTDETR, KindDETR, KindRCNN:
	default:
		return fmt.Errorf("model %q: unknown kind %q", name, spec.Kind)
	}
	if spec.Path == "" {
		return fmt.Errorf("model %q: path is required", name)
	}
	return nil
}
