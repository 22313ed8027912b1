package asset

import (
	"context"
	"errors"
	"io/fs"
	"os"
)

var (
	// ErrPermissionDenied means the source refused access (surfaced to the
	// user, no state change).
	ErrPermissionDenied = errors.New("source access denied")
	// ErrCancelled means the user backed out of selection (silent no-op).
	ErrCancelled = errors.New("selection cancelled")
)

// Picker selects a local video file. Implementations own the source prompt
// and its permission semantics: the CLI picker checks file access, the bot
// picker waits for a chat upload.
type Picker interface {
	Pick(ctx context.Context) (string, error)
}

// FilePicker "picks" a pre-chosen path, mapping access failures onto the
// picker error taxonomy.
type FilePicker struct {
	Path string
}

func (p FilePicker) Pick(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", ErrCancelled
	}
	if p.Path == "" {
		return "", ErrCancelled
	}
	f, err := os.Open(p.Path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return "", ErrPermissionDenied
		}
		return "", err
	}
	f.Close()
	return p.Path, nil
}
