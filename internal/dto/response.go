package dto

// ErrorResponse is the body of every failed JSON request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse carries a human-readable status.
type MessageResponse struct {
	Message string `json:"message"`
}

// ImageResponse carries one stored image.
type ImageResponse struct {
	ImageBase64 string `json:"image_base64"`
}
