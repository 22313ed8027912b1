package attach

import "hivesnaps-media/internal/model"

// Snapshot is the coordinator's whole state. It is replaced as a single
// value on every transition, never mutated field-by-field.
//
// At most one of Uploading, AssetID or Err is set at any time; the zero
// value is the idle state.
type Snapshot struct {
	Asset        *model.LocalAsset
	Thumbnail    *model.Thumbnail
	ThumbnailURL string
	Progress     *model.UploadProgress
	Uploading    bool
	Err          string
	AssetID      string
	UploadURL    string
}

// Idle reports whether every field is at its zero value.
func (s Snapshot) Idle() bool {
	return s == Snapshot{}
}

// Phase is a human-readable name for the snapshot's position in the
// Idle → Uploading → {Succeeded | Failed} machine.
func (s Snapshot) Phase() string {
	switch {
	case s.Uploading:
		return "uploading"
	case s.Err != "":
		return "failed"
	case s.AssetID != "":
		return "succeeded"
	case s.Asset != nil:
		return "prepared"
	default:
		return "idle"
	}
}
