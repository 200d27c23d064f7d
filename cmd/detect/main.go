package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"potholytics/internal/app"
	"potholytics/internal/config"
	"potholytics/internal/dto"
	"potholytics/internal/logger"
	"potholytics/internal/model"
	"potholytics/internal/service"
	"potholytics/internal/service/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	input := flag.String("input", "", "Image or video to analyse")
	modelName := flag.String("model", cfg.DefaultModel, "Detection backend")
	stride := flag.Int("stride", cfg.SamplingStride, "Process every Nth video frame")
	dedup := flag.Bool("dedup", cfg.DedupEnabled, "Skip frames whose GPS position did not change")
	ocr := flag.Bool("ocr", cfg.OCREnabled, "Read date, time and position from the burn-in strip")
	out := flag.String("out", "-", "Where to write the result JSON (- for stdout)")
	save := flag.Bool("save", false, "Persist the results to the configured store")
	flag.Parse()

	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}

	l := logger.NewLogger(cfg)
	defer l.Close()

	manager, err := app.NewPipeline(cfg, l)
	if err != nil {
		log.Fatalf("Failed to set up pipeline: %v", err)
	}
	defer manager.Close()

	// Ctrl+C stops the request and keeps what was found so far.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Analysing %s with %s\n", *input, *modelName)
	start := time.Now()

	outcome, err := manager.Detect(ctx, service.DetectRequest{
		Path: *input,
		Options: service.Options{
			Backend: *modelName,
			Stride:  *stride,
			Dedup:   dedup,
			OCR:     ocr,
		},
	})
	if err != nil {
		log.Fatalf("Detection failed: %v", err)
	}

	fmt.Fprintf(os.Stderr, "%s: %d frame(s) with potholes, %d sampled, %d inference(s) in %s\n",
		outcome.State, len(outcome.Results), outcome.FramesSampled, outcome.Inferences, time.Since(start).Round(time.Millisecond))

	if err := writeResult(*out, outcome); err != nil {
		log.Fatalf("Failed to write results: %v", err)
	}

	if *save && len(outcome.Results) > 0 {
		if err := persist(cfg, l, outcome); err != nil {
			log.Fatalf("Failed to save results: %v", err)
		}
		fmt.Fprintf(os.Stderr, "✅ Saved %d result(s) to %s store\n", len(outcome.Results), cfg.StoreBackend)
	}
}

func writeResult(path string, outcome *service.Outcome) error {
	resp := dto.DetectResponse{
		RequestID:     outcome.RequestID,
		State:         string(outcome.State),
		Backend:       outcome.Backend,
		Frames:        outcome.Results,
		FramesRead:    outcome.FramesRead,
		FramesSampled: outcome.FramesSampled,
		Inferences:    outcome.Inferences,
	}

	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func persist(cfg *config.Config, l *logger.Logger, outcome *service.Outcome) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := app.OpenFrameRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close(context.Background())

	now := time.Now().UTC()
	frames := make([]model.SavedFrame, 0, len(outcome.Results))
	for _, r := range outcome.Results {
		frames = append(frames, model.SavedFrame{
			Info:            r.Info,
			Image:           r.Image,
			DetectionsCount: r.DetectionsCount,
			Model:           outcome.Backend,
			CreatedAt:       now,
		})
	}

	return storage.NewFrameService(repo, nil, l).Save(ctx, frames)
}
