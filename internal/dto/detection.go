package dto

import "potholytics/internal/model"

// DetectResponse is returned by the detection endpoint.
type DetectResponse struct {
	RequestID     string                  `json:"request_id"`
	State         string                  `json:"state"`
	Backend       string                  `json:"model"`
	Frames        []model.AnnotatedResult `json:"frames"`
	FramesRead    int                     `json:"frames_read"`
	FramesSampled int                     `json:"frames_sampled"`
	Inferences    int                     `json:"inferences"`
}

// StopResponse reports how many requests received the stop signal.
type StopResponse struct {
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Stopped   int    `json:"stopped"`
}

// ModelInfo describes one selectable backend.
type ModelInfo struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	InputSize int    `json:"input_size"`
	Default   bool   `json:"default"`
}
