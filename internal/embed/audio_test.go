package embed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForceCompactChrome(t *testing.T) {
	out, err := forceCompactChrome("https://audio.example/embed?track=9&visual=true")
	require.NoError(t, err)

	u, err := url.Parse(out)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "false", q.Get("visual"), "existing params are overridden")
	assert.Equal(t, "true", q.Get("hide_related"))
	assert.Equal(t, "false", q.Get("show_comments"))
	assert.Equal(t, "9", q.Get("track"), "unrelated params survive")
}

func TestForceCompactChromeRejectsRelative(t *testing.T) {
	_, err := forceCompactChrome("/embed?track=9")
	require.Error(t, err)
}

func TestRenderStaticNormalizesHeight(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `<html><head><title>player</title></head><body><iframe src="/inner"></iframe></body></html>`)
	}))
	defer srv.Close()

	n := NewAudioNormalizer(180, false, testLogger(t))
	html := n.Render(context.Background(), srv.URL+"/embed?track=9")

	assert.Equal(t, "false", gotQuery.Get("visual"), "compact params reach the host")
	assert.Contains(t, html, "max-height:180px")
	assert.Contains(t, html, `height="180"`)
	assert.NotContains(t, html, "Audio unavailable")
}

func TestRenderBadReferenceYieldsUnavailableDoc(t *testing.T) {
	n := NewAudioNormalizer(180, false, testLogger(t))
	html := n.Render(context.Background(), "not a url at all\x7f")
	assert.Contains(t, html, "Audio unavailable")
	assert.Contains(t, html, "180px")
}

func TestRenderServerErrorYieldsUnavailableDoc(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	n := NewAudioNormalizer(120, false, testLogger(t))
	html := n.Render(context.Background(), srv.URL+"/embed")
	assert.Contains(t, html, "Audio unavailable")
	assert.Contains(t, html, "120px")
}

func TestRenderDefaultsHeight(t *testing.T) {
	n := NewAudioNormalizer(0, false, testLogger(t))
	assert.Equal(t, 180, n.maxHeight)
}
