package model

// AnnotatedResult is one processed frame with at least one detection.
type AnnotatedResult struct {
	Info            GeoInfo `json:"info"`
	Image           string  `json:"image"`
	DetectionsCount int     `json:"detections_count"`
	FrameIndex      int     `json:"frame_index"`
}

// Event is pushed to viewers and brokers while a request runs.
type Event struct {
	Type       string           `json:"type"`
	RequestID  string           `json:"request_id"`
	State      string           `json:"state,omitempty"`
	Backend    string           `json:"backend,omitempty"`
	FrameIndex int              `json:"frame_index"`
	Results    int              `json:"results"`
	Result     *AnnotatedResult `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// Event types.
const (
	EventProgress = "progress"
	EventResult   = "result"
	EventDone     = "done"
)
