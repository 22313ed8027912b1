package janitor

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hivesnaps-media/internal"
	"hivesnaps-media/internal/logging"
	"hivesnaps-media/internal/s3"
)

type memStore struct {
	mu      sync.Mutex
	objects []s3.ObjectInfo
	deleted []string
	listErr error
}

func (m *memStore) PutBytes(ctx context.Context, key string, b []byte, contentType string) error {
	return nil
}

func (m *memStore) PutFile(ctx context.Context, key string, path string, contentType string) error {
	return nil
}

func (m *memStore) GetBytes(ctx context.Context, key string) ([]byte, string, error) {
	return nil, "", fs.ErrNotExist
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memStore) List(ctx context.Context, prefix string) ([]s3.ObjectInfo, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.objects, nil
}

func (m *memStore) ReadJSON(ctx context.Context, key string, out any) (bool, error) {
	return false, nil
}

func (m *memStore) WriteJSON(ctx context.Context, key string, v any) error {
	_, err := json.Marshal(v)
	return err
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	log, err := logging.New(filepath.Join(t.TempDir(), "errors.log"))
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return log
}

func testConfig(tempDir string) internal.Config {
	return internal.Config{
		TempDir:      tempDir,
		MaxAge:       time.Hour,
		JanitorSpec:  "17 * * * *",
		ThumbsPrefix: "thumbs/",
	}
}

func writeAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	old := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, old, old))
	return path
}

func TestSweepTempRemovesOnlyStaleOwnedFiles(t *testing.T) {
	dir := t.TempDir()
	staleAttach := writeAged(t, dir, "attach-123-clip.mp4", 2*time.Hour)
	staleThumb := writeAged(t, dir, "thumb-abc.jpg", 2*time.Hour)
	fresh := writeAged(t, dir, "attach-456-clip.mp4", time.Minute)
	foreign := writeAged(t, dir, "unrelated.tmp", 48*time.Hour)

	j, err := New(testConfig(dir), &memStore{}, testLogger(t))
	require.NoError(t, err)
	j.Sweep()

	assert.NoFileExists(t, staleAttach)
	assert.NoFileExists(t, staleThumb)
	assert.FileExists(t, fresh, "files younger than MaxAge survive")
	assert.FileExists(t, foreign, "files we did not create are never touched")
}

func TestSweepArchiveDeletesAgedObjects(t *testing.T) {
	now := time.Now()
	store := &memStore{objects: []s3.ObjectInfo{
		{Key: "thumbs/old.jpg", LastModified: now.Add(-2 * time.Hour).Format("2006-01-02T15:04:05Z07:00")},
		{Key: "thumbs/new.jpg", LastModified: now.Add(-time.Minute).Format("2006-01-02T15:04:05Z07:00")},
		{Key: "thumbs/bad-timestamp.jpg", LastModified: "garbage"},
	}}

	j, err := New(testConfig(t.TempDir()), store, testLogger(t))
	require.NoError(t, err)
	j.Sweep()

	assert.Equal(t, []string{"thumbs/old.jpg"}, store.deleted)
}

func TestSweepSurvivesListFailure(t *testing.T) {
	store := &memStore{listErr: errors.New("s3 down")}
	j, err := New(testConfig(t.TempDir()), store, testLogger(t))
	require.NoError(t, err)

	j.Sweep()
	assert.Empty(t, store.deleted)
}

func TestNewRejectsBadCronSpec(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.JanitorSpec = "not a cron spec"
	_, err := New(cfg, &memStore{}, testLogger(t))
	require.Error(t, err)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	j, err := New(testConfig(t.TempDir()), &memStore{}, testLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("janitor did not stop")
	}
}
