package embed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gocolly/colly"
	"github.com/tidwall/gjson"

	"hivesnaps-media/internal/logging"
	"hivesnaps-media/internal/model"
)

const resolverUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Resolver fetches playback metadata for an embed reference. Lookup failure
// is never surfaced to the caller: the configured fallback media reference
// is substituted so the embed stays functional.
type Resolver struct {
	fallbackURL string
	httpClient  *http.Client
	log         *logging.Logger
}

func NewResolver(fallbackURL string, log *logging.Logger) *Resolver {
	return &Resolver{
		fallbackURL: fallbackURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		log:         log,
	}
}

// Resolve discovers the reference's oEmbed endpoint and picks the metadata
// out of it. Any failure along the way degrades to the fallback.
func (r *Resolver) Resolve(ctx context.Context, ref string) *model.EmbedInfo {
	info, err := r.lookup(ctx, ref)
	if err != nil {
		r.log.Warnf("embed: metadata fetch failed for %s: %v (using fallback)", ref, err)
		return &model.EmbedInfo{
			Ref:       ref,
			StreamURL: r.fallbackURL,
			Fallback:  true,
		}
	}
	return info
}

func (r *Resolver) lookup(ctx context.Context, ref string) (*model.EmbedInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	endpoint, err := r.discover(ref)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", resolverUA)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oembed fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oembed fetch: http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	streamURL := gjson.GetBytes(body, "stream_url").String()
	if streamURL == "" {
		streamURL = gjson.GetBytes(body, "url").String()
	}
	if streamURL == "" {
		return nil, fmt.Errorf("oembed payload has no stream url")
	}

	return &model.EmbedInfo{
		Ref:          ref,
		Title:        gjson.GetBytes(body, "title").String(),
		PreviewURL:   gjson.GetBytes(body, "thumbnail_url").String(),
		StreamURL:    streamURL,
		ProviderName: gjson.GetBytes(body, "provider_name").String(),
	}, nil
}

// discover scans the embed page for its oEmbed discovery link.
func (r *Resolver) discover(ref string) (string, error) {
	var endpoint string

	c := colly.NewCollector(colly.UserAgent(resolverUA))
	c.SetRequestTimeout(15 * time.Second)

	c.OnHTML(`link[type="application/json+oembed"]`, func(e *colly.HTMLElement) {
		if endpoint == "" {
			endpoint = e.Request.AbsoluteURL(e.Attr("href"))
		}
	})

	var visitErr error
	c.OnError(func(_ *colly.Response, err error) {
		visitErr = err
	})

	if err := c.Visit(ref); err != nil {
		return "", fmt.Errorf("discovery: %w", err)
	}
	if visitErr != nil {
		return "", fmt.Errorf("discovery: %w", visitErr)
	}
	if endpoint == "" {
		return "", fmt.Errorf("no oembed link on %s", ref)
	}
	return endpoint, nil
}
