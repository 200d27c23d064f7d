package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"potholytics/internal/dto"
	"potholytics/internal/logger"
	"potholytics/internal/model"
	"potholytics/internal/repository"
	"potholytics/internal/service/storage"
)

// SaveDetectionsHandler stores the JSON array of frames posted by the dashboard.
func SaveDetectionsHandler(frames *storage.FrameService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, logger, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		var batch []model.SavedFrame
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			logger.Warning("Invalid detections payload: %v", err)
			writeJSON(w, logger, http.StatusBadRequest, dto.MessageResponse{Message: "Invalid detections payload"})
			return
		}

		if err := frames.Save(r.Context(), batch); err != nil {
			if errors.Is(err, storage.ErrEmptyBatch) {
				writeJSON(w, logger, http.StatusBadRequest, dto.MessageResponse{Message: "No detections to save"})
				return
			}
			writeJSON(w, logger, http.StatusInternalServerError, dto.MessageResponse{Message: "Failed to save detections"})
			return
		}

		writeJSON(w, logger, http.StatusCreated, dto.MessageResponse{Message: "Detections saved successfully!"})
	}
}

// GetPotholeDataHandler returns every stored frame.
func GetPotholeDataHandler(frames *storage.FrameService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := frames.List(r.Context())
		if err != nil {
			logger.Error("Error querying pothole data: %v", err)
			writeError(w, logger, http.StatusInternalServerError, "Failed to retrieve data")
			return
		}
		writeJSON(w, logger, http.StatusOK, data)
	}
}

// GetImageHandler downloads a stored image referenced by its blob URL.
func GetImageHandler(frames *storage.FrameService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		blobURL := r.URL.Query().Get("blob_url")
		if blobURL == "" {
			writeError(w, logger, http.StatusBadRequest, "No blob_url provided")
			return
		}

		encoded, err := frames.FetchImage(r.Context(), blobURL)
		switch {
		case errors.Is(err, repository.ErrBlobNotFound):
			writeError(w, logger, http.StatusNotFound, err.Error())
			return
		case err != nil:
			logger.Error("Error fetching image %s: %v", blobURL, err)
			writeError(w, logger, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, logger, http.StatusOK, dto.ImageResponse{ImageBase64: encoded})
	}
}
