package ai

import (
	"fmt"

	"potholytics/internal/config"
	"potholytics/internal/logger"
	"potholytics/internal/model"
)

const defaultInputSize = 640

// Factory resolves backend identifiers against the model registry and
// opens a fresh backend per request.
type Factory struct {
	models    map[string]config.ModelSpec
	newRunner RunnerFactory
	device    string
	logger    *logger.Logger
}

// NewFactory picks the inference engine named in the configuration.
func NewFactory(cfg *config.Config, logger *logger.Logger) *Factory {
	var runners RunnerFactory
	switch cfg.InferenceEngine {
	case "opencv":
		runners = NewOpenCVRunner
	default:
		command := cfg.WorkerCommand
		runners = func(opts RunnerOptions) (Runner, error) {
			r, err := NewWorkerRunner(command, opts, logger)
			if err != nil {
				return nil, err
			}
			return r, nil
		}
	}
	return NewFactoryWithRunner(cfg.Models, cfg.InferenceDevice, runners, logger)
}

// NewFactoryWithRunner builds a Factory around an explicit RunnerFactory.
func NewFactoryWithRunner(models map[string]config.ModelSpec, device string, runners RunnerFactory, logger *logger.Logger) *Factory {
	return &Factory{
		models:    models,
		newRunner: runners,
		device:    device,
		logger:    logger,
	}
}

// Validate checks that name is a known backend without touching any file.
func (f *Factory) Validate(name string) (config.ModelSpec, error) {
	spec, ok := f.models[name]
	if !ok {
		return config.ModelSpec{}, &InvalidModelError{Name: name}
	}
	return spec, nil
}

// Models returns the registry entry of every selectable identifier.
func (f *Factory) Models() map[string]config.ModelSpec {
	out := make(map[string]config.ModelSpec, len(f.models))
	for k, v := range f.models {
		out[k] = v
	}
	return out
}

// New loads the named backend.
func (f *Factory) New(name string) (Backend, error) {
	spec, err := f.Validate(name)
	if err != nil {
		return nil, err
	}

	labels := spec.Labels
	if spec.LabelsFile != "" {
		if labels, err = LoadLabels(spec.LabelsFile); err != nil {
			return nil, err
		}
	}

	size := spec.InputSize
	if size <= 0 {
		size = defaultInputSize
	}

	device := f.device
	var r recipe
	style := model.RenderStyle{}
	switch spec.Kind {
	case config.KindYOLO:
		r = yoloRecipe{size: size, transposed: spec.Transposed}
	case config.KindRTDETR:
		r = rtdetrRecipe{size: size}
	case config.KindDETR:
		r = detrRecipe{size: size}
	case config.KindRCNN:
		r = newRCNNRecipe(size, RCNNScoreThreshold)
		style = rcnnStyle()
		device = "cpu"
	default:
		return nil, fmt.Errorf("model %q: unsupported kind %q", name, spec.Kind)
	}

	runner, err := f.newRunner(RunnerOptions{
		ModelPath: spec.Path,
		Kind:      spec.Kind,
		Device:    device,
		Outputs:   r.outputs(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", name, err)
	}

	f.logger.Info("Loaded %s backend %q on %s", spec.Kind, name, device)
	return &DetectorService{
		name:   name,
		runner: runner,
		recipe: r,
		labels: labels,
		style:  style,
		logger: f.logger,
	}, nil
}
