package ai

import "fmt"

// InvalidModelError is returned for a backend identifier the registry does not know.
type InvalidModelError struct {
	Name string
}

func (e *InvalidModelError) Error() string {
	return fmt.Sprintf("invalid model selected: %q", e.Name)
}

// InferenceError wraps any failure inside a backend's forward pass or output decoding.
type InferenceError struct {
	Backend string
	Err     error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s inference failed: %v", e.Backend, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}
