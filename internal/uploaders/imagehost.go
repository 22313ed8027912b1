package uploaders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/dghubble/oauth1"
	"github.com/tidwall/gjson"

	"hivesnaps-media/internal/creds"
	"hivesnaps-media/internal/logging"
	"hivesnaps-media/internal/model"
)

// ImageHost uploads thumbnails to the image host with OAuth1-signed requests
// and associates the hosted URL with an uploaded video's embed id.
type ImageHost struct {
	baseURL string
	log     *logging.Logger
}

func NewImageHost(baseURL string, log *logging.Logger) *ImageHost {
	return &ImageHost{baseURL: baseURL, log: log}
}

// Upload posts the thumbnail and returns its hosted URL.
func (h *ImageHost) Upload(ctx context.Context, thumb *model.Thumbnail, keys *creds.ImageHostKeys) (string, error) {
	if keys == nil {
		return "", fmt.Errorf("image host credentials missing")
	}

	data, err := os.ReadFile(thumb.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read thumbnail: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, _ := writer.CreateFormFile("media", "thumbnail.jpg")
	part.Write(data)
	writer.WriteField("media_type", thumb.MimeType)
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", h.baseURL+"/v1/media", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	respBytes, err := h.doSigned(req, keys)
	if err != nil {
		return "", err
	}

	url := gjson.GetBytes(respBytes, "media.url").String()
	if url == "" {
		return "", fmt.Errorf("image host returned no url: %s", truncate(respBytes, 300))
	}
	return url, nil
}

// Associate links a hosted thumbnail URL to an embed id. Best effort: the
// caller logs failures and moves on, the video stays usable without a custom
// thumbnail.
func (h *ImageHost) Associate(ctx context.Context, embedID, url string, keys *creds.ImageHostKeys) error {
	if keys == nil {
		return fmt.Errorf("image host credentials missing")
	}

	payload, _ := json.Marshal(map[string]string{
		"embed_id":      embedID,
		"thumbnail_url": url,
	})
	req, err := http.NewRequestWithContext(ctx, "POST", h.baseURL+"/v1/media/associate", bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = h.doSigned(req, keys)
	return err
}

func (h *ImageHost) doSigned(req *http.Request, keys *creds.ImageHostKeys) ([]byte, error) {
	config := oauth1.NewConfig(keys.ConsumerKey, keys.ConsumerSecret)
	token := oauth1.NewToken(keys.AccessToken, keys.AccessSecret)
	client := config.Client(req.Context(), token)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image host request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("image host responded %d: %s", resp.StatusCode, truncate(body, 300))
	}
	return body, nil
}
