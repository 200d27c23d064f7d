package handler

import (
	"net/http"
	"sort"

	"potholytics/internal/dto"
	"potholytics/internal/logger"
	"potholytics/internal/service"
)

// ModelsHandler lists the selectable backends.
func ModelsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		def := manager.Defaults().Backend
		models := manager.Models()

		out := make([]dto.ModelInfo, 0, len(models))
		for name, spec := range models {
			out = append(out, dto.ModelInfo{
				Name:      name,
				Kind:      spec.Kind,
				InputSize: spec.InputSize,
				Default:   name == def,
			})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

		writeJSON(w, logger, http.StatusOK, out)
	}
}

// RequestsHandler lists the requests the pipeline is currently tracking.
func RequestsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		active := manager.Active()
		sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.Before(active[j].CreatedAt) })
		writeJSON(w, logger, http.StatusOK, active)
	}
}
