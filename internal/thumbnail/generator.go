package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"hivesnaps-media/internal/logging"
	"hivesnaps-media/internal/model"
)

// ffmpegSem limits the number of concurrent ffmpeg processes to 1 to avoid
// exhausting system threads on small hosts.
var ffmpegSem = make(chan struct{}, 1)

// Generator extracts a still frame from a local video asset.
type Generator struct {
	tempDir string
	log     *logging.Logger
}

func NewGenerator(tempDir string, log *logging.Logger) *Generator {
	return &Generator{tempDir: tempDir, log: log}
}

// Generate writes a jpeg frame from ~10% into the clip (capped at 3s so long
// videos don't seek forever) to a temp file. Failure here never aborts the
// video upload; callers log and move on.
func (g *Generator) Generate(ctx context.Context, asset *model.LocalAsset) (*model.Thumbnail, error) {
	if asset == nil {
		return nil, fmt.Errorf("no asset to generate thumbnail from")
	}

	offset := asset.DurationS * 0.1
	if offset > 3 {
		offset = 3
	}

	outPath := filepath.Join(g.tempDir, fmt.Sprintf("thumb-%s.jpg", asset.ID))

	ffmpegSem <- struct{}{}
	defer func() { <-ffmpegSem }()

	ctxRun, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctxRun, "ffmpeg",
		"-hide_banner",
		"-loglevel", "error",
		"-threads", "1",
		"-ss", fmt.Sprintf("%.2f", offset),
		"-i", asset.Path,
		"-frames:v", "1",
		"-q:v", "3",
		"-y",
		outPath,
	)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame extraction failed: %w (%s)", err, stderr.String())
	}

	fi, err := os.Stat(outPath)
	if err != nil || fi.Size() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no thumbnail for %s", asset.Path)
	}

	g.log.Infof("thumbnail: extracted frame at %.2fs from %s (%d bytes)", offset, asset.FileName, fi.Size())
	return &model.Thumbnail{
		Path:      outPath,
		MimeType:  "image/jpeg",
		SizeBytes: fi.Size(),
	}, nil
}
