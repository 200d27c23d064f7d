package route

import (
	"net/http"

	"potholytics/internal/config"
	"potholytics/internal/handler"
	"potholytics/internal/logger"
	"potholytics/internal/middleware"
	"potholytics/internal/service"
	"potholytics/internal/service/storage"
	"potholytics/internal/service/websocket"
)

// SetupRoutes registers the detection, storage, viewer and log endpoints
// and wraps the mux with CORS and request logging.
func SetupRoutes(manager *service.Manager, frames *storage.FrameService, hub *websocket.HubService,
	cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Detection endpoints
	mux.HandleFunc("/detect-potholes", handler.DetectHandler(manager, cfg, logger))
	mux.HandleFunc("/stop-detection", handler.StopHandler(manager, logger))

	// Stored results
	mux.HandleFunc("/save-detections", handler.SaveDetectionsHandler(frames, logger))
	mux.HandleFunc("/get-pothole-data", handler.GetPotholeDataHandler(frames, logger))
	mux.HandleFunc("/get_image", handler.GetImageHandler(frames, logger))

	// API endpoints
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(hub, logger))
	mux.HandleFunc("GET /api/models", handler.ModelsHandler(manager, logger))
	mux.HandleFunc("GET /api/requests", handler.RequestsHandler(manager, logger))

	// Log endpoints
	mux.HandleFunc("GET /logs/{level}", handler.ShowLogsHandler(logger))
	mux.HandleFunc("POST /logs/{level}/clear", handler.ClearLogsHandler(logger))

	return middleware.CORS(middleware.RequestLogger(logger)(mux))
}
