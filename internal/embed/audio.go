package embed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"hivesnaps-media/internal/logging"
)

// compactParams are force-appended to every audio embed URL to request the
// host's minimal chrome.
var compactParams = map[string]string{
	"visual":        "false",
	"hide_related":  "true",
	"show_comments": "false",
	"show_user":     "false",
	"show_teaser":   "false",
}

// normalizeScript overrides the embed page's styling so the player fits a
// fixed-height container without clipping. The MutationObserver catches
// nodes the page inserts after load.
const normalizeScript = `(function(height) {
	var style = document.createElement('style');
	style.textContent =
		'html, body { margin: 0 !important; padding: 0 !important; overflow: hidden !important; background: transparent !important; }' +
		'iframe, .player, [class*="sound"] { max-height: ' + height + 'px !important; height: ' + height + 'px !important; width: 100%% !important; }';
	document.head.appendChild(style);

	var squeeze = function(node) {
		if (node && node.style) {
			node.style.maxHeight = height + 'px';
		}
	};
	document.querySelectorAll('iframe, .player').forEach(squeeze);

	new MutationObserver(function(mutations) {
		mutations.forEach(function(m) {
			m.addedNodes.forEach(squeeze);
		});
	}).observe(document.body, { childList: true, subtree: true });
	return true;
})(%d)`

// unavailableDoc replaces the player when the embed cannot be loaded at all.
const unavailableDoc = `<!DOCTYPE html><html><body style="margin:0;display:flex;align-items:center;justify-content:center;height:%dpx;font-family:sans-serif;color:#888;">Audio unavailable</body></html>`

// AudioNormalizer produces a height-constrained, chrome-stripped rendition
// of a remote audio embed page. It renders with headless Chrome first (so
// late-inserted nodes exist and the normalization script has run), then
// falls back to a plain fetch with a static style override.
type AudioNormalizer struct {
	maxHeight  int
	useChrome  bool
	timeout    time.Duration
	httpClient *http.Client
	log        *logging.Logger
}

func NewAudioNormalizer(maxHeight int, useChrome bool, log *logging.Logger) *AudioNormalizer {
	if maxHeight <= 0 {
		maxHeight = 180
	}
	return &AudioNormalizer{
		maxHeight:  maxHeight,
		useChrome:  useChrome,
		timeout:    20 * time.Second,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

// Render fetches and normalizes the embed page for ref. It always returns a
// usable document: on total failure that document is the static
// "unavailable" message.
func (n *AudioNormalizer) Render(ctx context.Context, ref string) string {
	embedURL, err := forceCompactChrome(ref)
	if err != nil {
		n.log.Warnf("audio: bad embed reference %q: %v", ref, err)
		return fmt.Sprintf(unavailableDoc, n.maxHeight)
	}

	if n.useChrome {
		if html, err := n.renderChrome(ctx, embedURL); err == nil {
			return html
		} else {
			n.log.Warnf("audio: chrome render failed for %s: %v (falling back to static fetch)", embedURL, err)
		}
	}

	html, err := n.renderStatic(ctx, embedURL)
	if err != nil {
		n.log.Warnf("audio: static render failed for %s: %v", embedURL, err)
		return fmt.Sprintf(unavailableDoc, n.maxHeight)
	}
	return html
}

// renderChrome loads the page in headless Chrome, runs the normalization
// script and snapshots the resulting document.
func (n *AudioNormalizer) renderChrome(ctx context.Context, embedURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(resolverUA),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	chromeCtx, cancelChrome := chromedp.NewContext(allocCtx)
	defer cancelChrome()

	chromeCtx, cancelTimeout := context.WithTimeout(chromeCtx, n.timeout)
	defer cancelTimeout()

	var ok bool
	var html string
	err := chromedp.Run(chromeCtx,
		chromedp.Navigate(embedURL),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(fmt.Sprintf(normalizeScript, n.maxHeight), &ok),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(html) == "" {
		return "", fmt.Errorf("chrome returned an empty document")
	}
	return html, nil
}

// renderStatic fetches the page and injects a style override without
// executing it. Late-inserted nodes are covered by the stylesheet rules
// alone in this mode.
func (n *AudioNormalizer) renderStatic(ctx context.Context, embedURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", embedURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", resolverUA)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", err
	}

	override := fmt.Sprintf(
		`<style>html,body{margin:0!important;padding:0!important;overflow:hidden!important}iframe,.player{max-height:%dpx!important;height:%dpx!important;width:100%%!important}</style>`,
		n.maxHeight, n.maxHeight,
	)
	doc.Find("head").AppendHtml(override)
	doc.Find("iframe, .player").Each(func(_ int, sel *goquery.Selection) {
		sel.SetAttr("height", fmt.Sprintf("%d", n.maxHeight))
	})

	html, err := doc.Html()
	if err != nil {
		return "", err
	}
	return html, nil
}

// forceCompactChrome rewrites ref with the compact-chrome query parameters,
// overriding whatever the reference already carried.
func forceCompactChrome(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("not an absolute url")
	}
	q := u.Query()
	for k, v := range compactParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
