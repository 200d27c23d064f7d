package geotag

import (
	"context"
	"fmt"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// VisionRecognizer runs Cloud Vision TEXT_DETECTION.
type VisionRecognizer struct {
	client *vision.ImageAnnotatorClient
}

// NewVisionRecognizer opens a Cloud Vision client over REST. Without an API
// key the client uses application default credentials.
func NewVisionRecognizer(ctx context.Context, apiKey string, opts ...option.ClientOption) (*VisionRecognizer, error) {
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client, err := vision.NewImageAnnotatorRESTClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &VisionRecognizer{client: client}, nil
}

// Recognize returns the first text annotation, or "" when nothing was read.
func (v *VisionRecognizer) Recognize(ctx context.Context, img []byte) (string, error) {
	resp, err := v.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: img},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_TEXT_DETECTION}},
		}},
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &OCRError{Message: err.Error()}
	}

	responses := resp.GetResponses()
	if len(responses) == 0 {
		return "", nil
	}
	first := responses[0]
	if msg := first.GetError().GetMessage(); msg != "" {
		return "", &OCRError{Message: msg}
	}
	if len(first.GetTextAnnotations()) == 0 {
		return "", nil
	}
	return first.GetTextAnnotations()[0].GetDescription(), nil
}

func (v *VisionRecognizer) Close() error {
	return v.client.Close()
}
