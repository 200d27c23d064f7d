package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"potholytics/internal/config"
	"potholytics/internal/logger"
	"potholytics/internal/repository"
	"potholytics/internal/repository/blob"
	"potholytics/internal/repository/mongo"
	"potholytics/internal/repository/sqlite"
	"potholytics/internal/route"
	"potholytics/internal/service"
	"potholytics/internal/service/ai"
	"potholytics/internal/service/emitter"
	"potholytics/internal/service/geotag"
	"potholytics/internal/service/render"
	"potholytics/internal/service/storage"
	"potholytics/internal/service/websocket"

	"go.uber.org/multierr"
)

type App struct {
	config   *config.Config
	logger   *logger.Logger
	manager  *service.Manager
	repo     repository.FrameRepository
	frames   *storage.FrameService
	archiver *storage.Archiver
	hub      *websocket.HubService
	mqtt     *emitter.MQTTEmitter
}

func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.NewLogger(cfg)

	repo, err := OpenFrameRepository(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	var blobs repository.BlobRepository
	if cfg.StorageAccountName != "" {
		if blobs, err = blob.NewAzureStore(cfg.StorageAccountName, cfg.ContainerName, cfg.SASToken, cfg.CollaboratorTimeout); err != nil {
			return nil, err
		}
	} else {
		log.Warning("STORAGE_ACCOUNT_NAME not set, /get_image is disabled")
	}

	hub := websocket.NewHubService(log)
	notifiers := []service.Notifier{hub}

	var mqtt *emitter.MQTTEmitter
	if cfg.MQTTBroker != "" {
		if mqtt, err = emitter.Connect(cfg.MQTTBroker, cfg.MQTTTopic, log); err != nil {
			log.Warning("MQTT disabled: %v", err)
		} else {
			notifiers = append(notifiers, mqtt)
		}
	}

	var archiver *storage.Archiver
	if cfg.AutoSave {
		archiver = storage.NewArchiver(repo, cfg.ArchiveBufferLimit, log)
		notifiers = append(notifiers, archiver)
	}

	manager, err := NewPipeline(cfg, log, notifiers...)
	if err != nil {
		return nil, err
	}

	return &App{
		config:   cfg,
		logger:   log,
		manager:  manager,
		repo:     repo,
		frames:   storage.NewFrameService(repo, blobs, log),
		archiver: archiver,
		hub:      hub,
		mqtt:     mqtt,
	}, nil
}

// NewPipeline wires the backend factory, geotag extractor and renderer into a Manager.
func NewPipeline(cfg *config.Config, log *logger.Logger, notifiers ...service.Notifier) (*service.Manager, error) {
	extractor, err := geotag.NewFromConfig(context.Background(), cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to set up geotag extraction: %w", err)
	}

	factory := ai.NewFactory(cfg, log)
	if _, err := factory.Validate(cfg.DefaultModel); err != nil {
		return nil, fmt.Errorf("default model: %w", err)
	}

	return service.NewManager(factory, extractor, render.NewRenderer(cfg.JPEGQuality), service.DefaultOptions(cfg), log, notifiers...), nil
}

// OpenFrameRepository opens the configured result store.
func OpenFrameRepository(ctx context.Context, cfg *config.Config) (repository.FrameRepository, error) {
	switch cfg.StoreBackend {
	case "mongo", "mongodb":
		if cfg.MongoURI == "" {
			return nil, errors.New("MONGODB_URI is required for the mongo store")
		}
		repo, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case "sqlite", "":
		db, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		return sqlite.NewFrameRepository(db), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start background services
	go a.hub.Run(ctx)
	if a.archiver != nil {
		go a.archiver.Run(ctx)
	}

	// Setup routes
	router := route.SetupRoutes(a.manager, a.frames, a.hub, a.config, a.logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("🚀 Potholytics Server\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("🤖 Default model: %s (%s on %s)\n", a.config.DefaultModel, a.config.InferenceEngine, a.config.InferenceDevice)
	fmt.Printf("🎞️  Every %d frame(s), dedup=%t, ocr=%t\n", a.config.SamplingStride, a.config.DedupEnabled, a.config.OCREnabled)
	fmt.Printf("💾 Store: %s\n", a.config.StoreBackend)

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		a.logger.Info("Shutting down")
		if n := a.manager.StopAll(); n > 0 {
			a.logger.Info("Stopped %d running detection(s)", n)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Server shutdown: %v", err)
		}
	}

	return a.Close()
}

// Close flushes pending results and releases every connection.
func (a *App) Close() error {
	if a.archiver != nil {
		a.archiver.Flush(context.Background())
		if n := a.archiver.Pending(); n > 0 {
			a.logger.Error("%d result(s) could not be archived before shutdown", n)
		}
	}
	if a.mqtt != nil {
		a.mqtt.Disconnect()
	}
	return multierr.Combine(a.manager.Close(), a.repo.Close(context.Background()), a.logger.Close())
}
