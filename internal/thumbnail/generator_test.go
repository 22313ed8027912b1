package thumbnail

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hivesnaps-media/internal/logging"
	"hivesnaps-media/internal/model"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	log, err := logging.New(filepath.Join(t.TempDir(), "errors.log"))
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return log
}

func TestGenerateRejectsNilAsset(t *testing.T) {
	g := NewGenerator(t.TempDir(), testLogger(t))
	_, err := g.Generate(context.Background(), nil)
	require.Error(t, err)
}

func TestGenerateFailsOnNonVideoInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.mp4")
	require.NoError(t, os.WriteFile(path, []byte("this is not a video"), 0644))

	g := NewGenerator(dir, testLogger(t))
	_, err := g.Generate(context.Background(), &model.LocalAsset{
		ID:        "a1",
		Path:      path,
		FileName:  "garbage.mp4",
		DurationS: 10,
	})
	assert.Error(t, err, "frame extraction from garbage input must report failure, not succeed silently")
}
