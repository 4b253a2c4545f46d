package client

import (
	"context"
	"errors"

	"github.com/menta2k/vision-lens/pkg/types"
)

var (
	// ErrConfig marks missing or invalid configuration. It is returned before
	// any network activity and is not recoverable by retrying.
	ErrConfig = errors.New("configuration error")

	// ErrTransport marks a failed remote call. The user may retry.
	ErrTransport = errors.New("transport error")
)

// Uploader sends an image to a media host and returns its public URL
type Uploader interface {
	Upload(ctx context.Context, file types.Upload) (string, error)
}

// Analyzer sends a public image URL to a vision service
type Analyzer interface {
	Analyze(ctx context.Context, req types.AnalyzeImageRequest) (*types.AnalyzeImageResponse, error)
}

// VisionClient is a local vision model that answers a prompt about an image
type VisionClient interface {
	AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (string, error)
}
