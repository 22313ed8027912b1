package asset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilePickerReturnsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))

	got, err := FilePicker{Path: path}.Pick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestFilePickerEmptyPathIsCancellation(t *testing.T) {
	_, err := FilePicker{}.Pick(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestFilePickerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FilePicker{Path: "/some/file.mp4"}.Pick(ctx)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestFilePickerPermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root, permission bits are not enforced")
	}
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0000))

	_, err := FilePicker{Path: path}.Pick(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestFilePickerMissingFile(t *testing.T) {
	_, err := FilePicker{Path: filepath.Join(t.TempDir(), "missing.mp4")}.Pick(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCancelled)
	assert.NotErrorIs(t, err, ErrPermissionDenied)
}
