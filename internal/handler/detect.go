package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"potholytics/internal/config"
	"potholytics/internal/dto"
	"potholytics/internal/logger"
	"potholytics/internal/service"
	"potholytics/internal/service/ai"

	"github.com/google/uuid"
)

// DetectHandler accepts a multipart upload and runs it through the pipeline.
// A request id given in the query or the X-Request-ID header is registered
// before the upload is read, so it can be stopped while still uploading.
func DetectHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, logger, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		requestID := requestIDFromURL(r)
		if requestID != "" {
			if _, err := manager.Prepare(requestID); err != nil {
				writeError(w, logger, http.StatusConflict, err.Error())
				return
			}
			defer manager.Release(requestID)
		}

		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadMB<<20)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeError(w, logger, http.StatusBadRequest, "Invalid form data")
			return
		}
		defer r.MultipartForm.RemoveAll()

		if requestID == "" {
			st, err := manager.Prepare(r.FormValue("request_id"))
			if err != nil {
				writeError(w, logger, http.StatusConflict, err.Error())
				return
			}
			requestID = st.ID
			defer manager.Release(requestID)
		}

		opts := manager.Defaults()
		if name := r.FormValue("model"); name != "" {
			opts.Backend = name
		}
		if err := manager.Validate(opts.Backend); err != nil {
			logger.Warning("Rejected model %q", opts.Backend)
			writeError(w, logger, http.StatusBadRequest, "Invalid model selected")
			return
		}
		opts.Stride = atoiDefault(r.FormValue("stride"), opts.Stride)
		opts.Dedup = service.Bool(boolDefault(r.FormValue("dedup"), *opts.Dedup))
		opts.OCR = service.Bool(boolDefault(r.FormValue("ocr"), *opts.OCR))

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, logger, http.StatusBadRequest, "No file provided")
			return
		}
		defer file.Close()

		path, err := saveUpload(cfg.UploadDirectory, header.Filename, file)
		if err != nil {
			logger.Error("Error saving upload %s: %v", header.Filename, err)
			writeError(w, logger, http.StatusInternalServerError, "Failed to store upload")
			return
		}
		defer os.Remove(path)

		outcome, err := manager.Detect(r.Context(), service.DetectRequest{
			ID:      requestID,
			Path:    path,
			Options: opts,
		})
		if err != nil {
			var invalid *ai.InvalidModelError
			if errors.As(err, &invalid) {
				writeError(w, logger, http.StatusBadRequest, "Invalid model selected")
				return
			}
			writeError(w, logger, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, logger, http.StatusOK, dto.DetectResponse{
			RequestID:     outcome.RequestID,
			State:         string(outcome.State),
			Backend:       outcome.Backend,
			Frames:        outcome.Results,
			FramesRead:    outcome.FramesRead,
			FramesSampled: outcome.FramesSampled,
			Inferences:    outcome.Inferences,
		})
	}
}

// StopHandler raises the stop flag of one request, or of every in-flight
// request when no id is given.
func StopHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, logger, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		requestID := r.FormValue("request_id")
		if requestID == "" {
			requestID = r.Header.Get("X-Request-ID")
		}

		resp := dto.StopResponse{Message: "Detection stopped", RequestID: requestID}
		if requestID == "" {
			resp.Stopped = manager.StopAll()
		} else if manager.Stop(requestID) {
			resp.Stopped = 1
		}
		if resp.Stopped == 0 {
			resp.Message = "No detection in progress"
		}
		writeJSON(w, logger, http.StatusOK, resp)
	}
}

// saveUpload copies the upload into dir under a unique name. The extension
// is kept because it selects the media kind.
func saveUpload(dir, filename string, src io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s", uuid.NewString(), filepath.Base(filename)))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}
