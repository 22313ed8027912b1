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
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"hivesnaps-media/internal/logging"
	"hivesnaps-media/internal/model"
)

// StreamHost uploads videos with the host's chunked session protocol:
// initialize, append segments, finalize, then poll processing status until
// the embed is playable.
type StreamHost struct {
	baseURL    string
	chunkSize  int64
	httpClient *http.Client
	log        *logging.Logger
}

func NewStreamHost(baseURL string, chunkSize int64, token *oauth2.Token, log *logging.Logger) *StreamHost {
	client := http.DefaultClient
	if token != nil {
		client = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(token))
	}
	if chunkSize <= 0 {
		chunkSize = 5 * 1024 * 1024
	}
	return &StreamHost{
		baseURL:    baseURL,
		chunkSize:  chunkSize,
		httpClient: client,
		log:        log,
	}
}

func (h *StreamHost) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	file, err := os.Open(req.Asset.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open video file: %w", err)
	}
	defer file.Close()

	total := req.Asset.SizeBytes

	// Step 1: Initialize session
	initBody := map[string]any{
		"file_name":   req.Asset.FileName,
		"media_type":  req.Asset.MimeType,
		"total_bytes": total,
		"duration_s":  req.Asset.DurationS,
		"title":       req.Title,
	}
	initJSON, _ := json.Marshal(initBody)
	initReq, err := http.NewRequestWithContext(ctx, "POST", h.baseURL+"/v1/uploads/initialize", bytes.NewBuffer(initJSON))
	if err != nil {
		return nil, err
	}
	initReq.Header.Set("Content-Type", "application/json")

	initBytes, err := h.do(ctx, initReq, http.StatusOK, "INIT")
	if err != nil {
		return nil, err
	}
	sessionID := gjson.GetBytes(initBytes, "upload.id").String()
	if sessionID == "" {
		return nil, fmt.Errorf("INIT returned no session id: %s", string(initBytes))
	}

	// Step 2: Append chunks, reporting progress after each accepted segment
	var uploaded int64
	buf := make([]byte, h.chunkSize)
	for segment := 0; uploaded < total; segment++ {
		n, readErr := io.ReadFull(file, buf)
		if readErr == io.EOF {
			break
		}
		if readErr != nil && readErr != io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("failed to read video chunk: %w", readErr)
		}

		var appendBody bytes.Buffer
		writer := multipart.NewWriter(&appendBody)
		writer.WriteField("segment_index", strconv.Itoa(segment))
		part, _ := writer.CreateFormFile("media", req.Asset.FileName)
		part.Write(buf[:n])
		writer.Close()

		appendURL := fmt.Sprintf("%s/v1/uploads/%s/append", h.baseURL, sessionID)
		appendReq, err := http.NewRequestWithContext(ctx, "POST", appendURL, &appendBody)
		if err != nil {
			return nil, err
		}
		appendReq.Header.Set("Content-Type", writer.FormDataContentType())

		if _, err := h.do(ctx, appendReq, http.StatusOK, "APPEND"); err != nil {
			return nil, err
		}

		uploaded += int64(n)
		if req.OnProgress != nil {
			req.OnProgress(progressOf(uploaded, total))
		}
	}

	// Step 3: Finalize
	finalizeURL := fmt.Sprintf("%s/v1/uploads/%s/finalize", h.baseURL, sessionID)
	finalizeReq, err := http.NewRequestWithContext(ctx, "POST", finalizeURL, nil)
	if err != nil {
		return nil, err
	}
	finalBytes, err := h.do(ctx, finalizeReq, http.StatusOK, "FINALIZE")
	if err != nil {
		return nil, err
	}

	// Step 4: Poll processing status until the host settles
	if state := gjson.GetBytes(finalBytes, "processing.state").String(); state != "" && state != "succeeded" {
		if err := h.awaitProcessing(ctx, sessionID, finalBytes); err != nil {
			return nil, err
		}
	}

	result := &UploadResult{
		EmbedID:   gjson.GetBytes(finalBytes, "embed.id").String(),
		EmbedURL:  gjson.GetBytes(finalBytes, "embed.url").String(),
		UploadURL: gjson.GetBytes(finalBytes, "upload.url").String(),
	}
	if result.EmbedID == "" {
		return nil, fmt.Errorf("FINALIZE returned no embed id: %s", string(finalBytes))
	}
	return result, nil
}

// statusPollFloor is the minimum wait between status polls; tests shrink it.
var statusPollFloor = time.Second

func (h *StreamHost) awaitProcessing(ctx context.Context, sessionID string, finalBytes []byte) error {
	checkAfter := gjson.GetBytes(finalBytes, "processing.check_after_secs").Int()

	const maxAttempts = 60
	for attempt := 0; attempt < maxAttempts; attempt++ {
		wait := time.Duration(checkAfter) * time.Second
		if wait < statusPollFloor {
			wait = statusPollFloor
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("processing wait: %w", ErrUploadCancelled)
		case <-time.After(wait):
		}

		statusURL := fmt.Sprintf("%s/v1/uploads/%s/status", h.baseURL, sessionID)
		statusReq, err := http.NewRequestWithContext(ctx, "GET", statusURL, nil)
		if err != nil {
			return err
		}
		statusBytes, err := h.do(ctx, statusReq, http.StatusOK, "STATUS")
		if err != nil {
			return err
		}

		switch gjson.GetBytes(statusBytes, "processing.state").String() {
		case "succeeded":
			return nil
		case "failed":
			return fmt.Errorf("video processing failed: %s", gjson.GetBytes(statusBytes, "processing.error").String())
		}
		checkAfter = gjson.GetBytes(statusBytes, "processing.check_after_secs").Int()
	}
	return fmt.Errorf("video processing did not settle after %d checks", maxAttempts)
}

// do runs the request and maps context cancellation onto ErrUploadCancelled
// so callers can tell an intentional abort from a genuine transport failure.
func (h *StreamHost) do(ctx context.Context, req *http.Request, wantStatus int, phase string) ([]byte, error) {
	resp, err := h.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s aborted: %w", phase, ErrUploadCancelled)
		}
		return nil, fmt.Errorf("%s request failed: %w", phase, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s aborted: %w", phase, ErrUploadCancelled)
		}
		return nil, fmt.Errorf("%s read failed: %w", phase, err)
	}
	if resp.StatusCode != wantStatus {
		return nil, fmt.Errorf("%s failed with status %d: %s", phase, resp.StatusCode, truncate(body, 500))
	}
	return body, nil
}

func progressOf(uploaded, total int64) model.UploadProgress {
	pct := 100.0
	if total > 0 {
		pct = float64(uploaded) / float64(total) * 100
	}
	if pct > 100 {
		pct = 100
	}
	return model.UploadProgress{
		BytesUploaded: uploaded,
		BytesTotal:    total,
		Percentage:    pct,
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
