package uploaders

import (
	"context"
	"errors"

	"hivesnaps-media/internal/model"
)

// ErrUploadCancelled marks a transport failure caused by intentional
// cancellation. The coordinator resets to idle silently instead of surfacing
// it as a user-facing error.
var ErrUploadCancelled = errors.New("upload cancelled")

// UploadRequest is a request to push a local video asset to the video host.
type UploadRequest struct {
	Asset *model.LocalAsset
	Title string

	// OnProgress is called zero or more times before Upload returns. It may
	// be called from the uploading goroutine; callers guard their own state.
	OnProgress func(model.UploadProgress)
}

// UploadResult is what the video host hands back for a finished upload.
type UploadResult struct {
	EmbedID   string `json:"embed_id"`
	EmbedURL  string `json:"embed_url"`
	UploadURL string `json:"upload_url"`
}

// VideoTransport streams a local asset to the video host.
type VideoTransport interface {
	Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error)
}
