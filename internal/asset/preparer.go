package asset

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mowshon/moviego"

	"hivesnaps-media/internal/logging"
	"hivesnaps-media/internal/model"
)

// Preparer normalizes a picked file into a canonical LocalAsset.
type Preparer struct {
	log *logging.Logger
}

func NewPreparer(log *logging.Logger) *Preparer {
	return &Preparer{log: log}
}

// Prepare stats and probes the file. An unreadable source is an access
// error; a failed duration probe is not (the host re-probes server side).
func (p *Preparer) Prepare(ctx context.Context, path string) (*model.LocalAsset, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("asset not readable: %w", err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("asset not readable: %s is a directory", path)
	}

	mimeType := mimeFromExt(filepath.Ext(path))
	if mimeType == "" {
		mimeType, err = sniffMime(path)
		if err != nil {
			return nil, fmt.Errorf("asset not readable: %w", err)
		}
	}

	duration := 0.0
	if vid, err := safeLoad(path); err != nil {
		p.log.Warnf("asset: duration probe failed for %s: %v (continuing anyway)", path, err)
	} else {
		duration = vid.Duration()
	}

	return &model.LocalAsset{
		ID:        uuid.NewString(),
		Path:      path,
		FileName:  filepath.Base(path),
		MimeType:  mimeType,
		SizeBytes: fi.Size(),
		DurationS: duration,
		PickedAt:  time.Now(),
	}, nil
}

func mimeFromExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	}
	return ""
}

func sniffMime(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	return http.DetectContentType(buf[:n]), nil
}

// safeLoad wraps moviego.Load to catch panics from the library
func safeLoad(path string) (vid moviego.Video, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("moviego.Load panicked: %v", r)
		}
	}()
	vid, err = moviego.Load(path)
	return
}
