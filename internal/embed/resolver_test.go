package embed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hivesnaps-media/internal/logging"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	log, err := logging.New(filepath.Join(t.TempDir(), "errors.log"))
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return log
}

func TestResolveDiscoversOEmbedMetadata(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><head><link rel="alternate" type="application/json+oembed" href="/oembed?ref=watch"></head><body></body></html>`)
	})
	mux.HandleFunc("/oembed", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"title":"My Clip","stream_url":"https://cdn/clip.m3u8","thumbnail_url":"https://cdn/t.jpg","provider_name":"StreamHost"}`)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	r := NewResolver("https://fallback/media", testLogger(t))
	info := r.Resolve(context.Background(), srv.URL+"/watch")

	assert.Equal(t, srv.URL+"/watch", info.Ref)
	assert.Equal(t, "My Clip", info.Title)
	assert.Equal(t, "https://cdn/clip.m3u8", info.StreamURL)
	assert.Equal(t, "https://cdn/t.jpg", info.PreviewURL)
	assert.Equal(t, "StreamHost", info.ProviderName)
	assert.False(t, info.Fallback)
}

func TestResolveUsesURLFieldWhenNoStreamURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><link type="application/json+oembed" href="/oembed"></head></html>`)
	})
	mux.HandleFunc("/oembed", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"url":"https://cdn/plain.mp4"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	info := NewResolver("https://fallback/media", testLogger(t)).Resolve(context.Background(), srv.URL+"/watch")
	assert.Equal(t, "https://cdn/plain.mp4", info.StreamURL)
	assert.False(t, info.Fallback)
}

func TestResolveFallsBackOnNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	ref := srv.URL + "/watch"
	srv.Close()

	info := NewResolver("https://fallback/media", testLogger(t)).Resolve(context.Background(), ref)
	assert.Equal(t, ref, info.Ref)
	assert.Equal(t, "https://fallback/media", info.StreamURL)
	assert.True(t, info.Fallback)
}

func TestResolveFallsBackWhenPageHasNoOEmbedLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head></head><body>nothing here</body></html>`)
	}))
	defer srv.Close()

	info := NewResolver("https://fallback/media", testLogger(t)).Resolve(context.Background(), srv.URL+"/watch")
	assert.True(t, info.Fallback)
	assert.Equal(t, "https://fallback/media", info.StreamURL)
}

func TestResolveFallsBackOnEmptyPayload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><link type="application/json+oembed" href="/oembed"></head></html>`)
	})
	mux.HandleFunc("/oembed", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	info := NewResolver("https://fallback/media", testLogger(t)).Resolve(context.Background(), srv.URL+"/watch")
	assert.True(t, info.Fallback)
}
