package attach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hivesnaps-media/internal"
	"hivesnaps-media/internal/creds"
	"hivesnaps-media/internal/logging"
	"hivesnaps-media/internal/model"
	"hivesnaps-media/internal/s3"
	"hivesnaps-media/internal/uploaders"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	files   map[string]string
	putErr  error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, files: map[string]string{}}
}

func (m *memStore) PutBytes(ctx context.Context, key string, b []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = b
	return nil
}

func (m *memStore) PutFile(ctx context.Context, key string, path string, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = path
	return nil
}

func (m *memStore) GetBytes(ctx context.Context, key string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, "", fs.ErrNotExist
	}
	return b, "application/json", nil
}

func (m *memStore) Delete(ctx context.Context, key string) error { return nil }

func (m *memStore) List(ctx context.Context, prefix string) ([]s3.ObjectInfo, error) {
	return nil, nil
}

func (m *memStore) ReadJSON(ctx context.Context, key string, out any) (bool, error) {
	b, _, err := m.GetBytes(ctx, key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, json.Unmarshal(b, out)
}

func (m *memStore) WriteJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return m.PutBytes(ctx, key, b, "application/json")
}

func (m *memStore) archivedKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.files))
	for k := range m.files {
		keys = append(keys, k)
	}
	return keys
}

func sinkLogger(t *testing.T) *logging.Logger {
	t.Helper()
	log, err := logging.New(filepath.Join(t.TempDir(), "errors.log"))
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return log
}

func newSink(t *testing.T, store *memStore, hostURL string) *ImageHostSink {
	t.Helper()
	cfg := internal.Config{
		TokensPrefix:          "tokens/",
		ImageHostConsumerKey:  "ck",
		ImageHostConsumerSec:  "cs",
		ImageHostAccessToken:  "at",
		ImageHostAccessSecret: "as",
	}
	return &ImageHostSink{
		Username:      "alice",
		Creds:         creds.NewProvider(cfg, store),
		Host:          uploaders.NewImageHost(hostURL, nil),
		Log:           sinkLogger(t),
		Archive:       store,
		ArchivePrefix: "thumbs/",
	}
}

func sinkThumb(t *testing.T) *model.Thumbnail {
	t.Helper()
	path := filepath.Join(t.TempDir(), "thumb-a1.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpegdata"), 0644))
	return &model.Thumbnail{Path: path, MimeType: "image/jpeg", SizeBytes: 8}
}

func TestSinkUploadHostsAndArchives(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"media":{"url":"https://img/thumb-a1.jpg"}}`)
	}))
	defer srv.Close()

	store := newMemStore()
	sink := newSink(t, store, srv.URL)

	url, err := sink.Upload(context.Background(), sinkThumb(t))
	require.NoError(t, err)
	assert.Equal(t, "https://img/thumb-a1.jpg", url)
	assert.Equal(t, []string{"thumbs/thumb-a1.jpg"}, store.archivedKeys())
}

func TestSinkArchiveFailureDoesNotFailUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"media":{"url":"https://img/t.jpg"}}`)
	}))
	defer srv.Close()

	store := newMemStore()
	store.putErr = errors.New("bucket gone")
	sink := newSink(t, store, srv.URL)

	url, err := sink.Upload(context.Background(), sinkThumb(t))
	require.NoError(t, err)
	assert.Equal(t, "https://img/t.jpg", url)
}

func TestSinkMissingCredentials(t *testing.T) {
	store := newMemStore()
	sink := newSink(t, store, "http://unused")
	sink.Creds = creds.NewProvider(internal.Config{TokensPrefix: "tokens/"}, store)

	_, err := sink.Upload(context.Background(), sinkThumb(t))
	require.ErrorIs(t, err, ErrNoCredentials)

	err = sink.Associate(context.Background(), "abc", "url")
	require.ErrorIs(t, err, ErrNoCredentials)
	assert.Empty(t, store.archivedKeys())
}

func TestSinkAssociateDelegates(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/media/associate" {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		}
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	sink := newSink(t, newMemStore(), srv.URL)
	require.NoError(t, sink.Associate(context.Background(), "abc", "https://img/t.jpg"))
	assert.Equal(t, "abc", got["embed_id"])
	assert.Equal(t, "https://img/t.jpg", got["thumbnail_url"])
}
