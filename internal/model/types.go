package model

import "time"

// LocalAsset describes a picked local video file. It is immutable once built
// by the asset preparer.
type LocalAsset struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	FileName  string    `json:"file_name"`
	MimeType  string    `json:"mime_type"`
	SizeBytes int64     `json:"size_bytes"`
	DurationS float64   `json:"duration_s"`
	PickedAt  time.Time `json:"picked_at"`
}

// Thumbnail is a still image derived from a LocalAsset. Its lifecycle is
// independent from the video upload: generation may fail without aborting it.
type Thumbnail struct {
	Path      string `json:"path"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// UploadProgress reports byte-level progress of one upload attempt.
// Percentage never decreases within a single attempt.
type UploadProgress struct {
	BytesUploaded int64   `json:"bytes_uploaded"`
	BytesTotal    int64   `json:"bytes_total"`
	Percentage    float64 `json:"percentage"`
}

// EmbedInfo is resolved playback metadata for an embed reference.
type EmbedInfo struct {
	Ref          string `json:"ref"`
	Title        string `json:"title"`
	PreviewURL   string `json:"preview_url"`
	StreamURL    string `json:"stream_url"`
	ProviderName string `json:"provider_name"`
	Fallback     bool   `json:"fallback"`
}
