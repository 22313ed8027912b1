package attach

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hivesnaps-media/internal/asset"
	"hivesnaps-media/internal/logging"
	"hivesnaps-media/internal/model"
	"hivesnaps-media/internal/uploaders"
)

var (
	// ErrBusy means an upload is running or a video is already attached.
	// One attached video per post draft.
	ErrBusy = errors.New("a video is already attached")
	// ErrClosed means the coordinator's owner went away.
	ErrClosed = errors.New("coordinator closed")
	// ErrNoCredentials lets a ThumbnailSink short-circuit the thumbnail flow
	// without failing the attach.
	ErrNoCredentials = errors.New("no image host credentials")
)

// AssetPreparer normalizes a picked path into a LocalAsset.
type AssetPreparer interface {
	Prepare(ctx context.Context, path string) (*model.LocalAsset, error)
}

// ThumbnailGenerator derives a still image from a local video asset.
type ThumbnailGenerator interface {
	Generate(ctx context.Context, a *model.LocalAsset) (*model.Thumbnail, error)
}

// ThumbnailSink uploads a thumbnail and associates it with an embed id.
// Upload returns ErrNoCredentials when the user has no image host keys.
type ThumbnailSink interface {
	Upload(ctx context.Context, thumb *model.Thumbnail) (string, error)
	Associate(ctx context.Context, embedID, url string) error
}

// Confirmer gates destructive actions (remove, cancel while uploading).
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

type thumbResult struct {
	url string
	err error
}

// Options wires the coordinator's collaborators.
type Options struct {
	Picker     asset.Picker
	Preparer   AssetPreparer
	Thumbnails ThumbnailGenerator
	Video      uploaders.VideoTransport
	Thumbs     ThumbnailSink
	Confirm    Confirmer
	Log        *logging.Logger

	// OnChange observes every state transition. Called without internal
	// locks held; never called after Close returns a stale snapshot.
	OnChange func(Snapshot)

	// How long a succeeded upload waits for a still-pending thumbnail
	// before giving up on the association. Zero means 30s.
	ThumbnailWait time.Duration
}

// Coordinator owns the lifecycle of "attach a video to an outgoing post":
// pick, derive a thumbnail, upload both, associate, and expose
// progress/cancel/retry/remove. All state lives in a single Snapshot value
// replaced wholesale on every transition.
type Coordinator struct {
	opts Options

	mu     sync.Mutex
	state  Snapshot
	closed bool

	// attempt is the cancellation generation: callbacks from an attempt
	// that is no longer current are discarded.
	attempt       int64
	cancelAttempt context.CancelFunc
	maxPct        float64

	thumbCh     chan thumbResult
	cancelThumb context.CancelFunc

	// transitions queued for OnChange, delivered in order outside the lock.
	// notifyMu serializes the drain so concurrent goroutines cannot
	// interleave deliveries.
	pending  []Snapshot
	notifyMu sync.Mutex
}

func NewCoordinator(opts Options) *Coordinator {
	if opts.ThumbnailWait <= 0 {
		opts.ThumbnailWait = 30 * time.Second
	}
	return &Coordinator{opts: opts}
}

// State returns the current snapshot.
func (c *Coordinator) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AddVideo runs the picker, prepares the asset, starts thumbnail derivation
// and uploads the video, blocking until the attempt resolves. A cancelled
// pick is a silent no-op; a denied permission or unreadable asset is
// returned without any state transition.
func (c *Coordinator) AddVideo(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state.Uploading || c.state.Asset != nil || c.state.AssetID != "" {
		c.mu.Unlock()
		return ErrBusy
	}
	c.mu.Unlock()

	if c.opts.Picker == nil {
		return errors.New("no picker configured")
	}
	path, err := c.opts.Picker.Pick(ctx)
	if err != nil {
		if errors.Is(err, asset.ErrCancelled) {
			return nil
		}
		return err
	}
	return c.AttachPath(ctx, path)
}

// AttachPath runs the attach flow for an already-picked path. The bot uses
// it directly: its "picker" is whatever file the operator just sent.
func (c *Coordinator) AttachPath(ctx context.Context, path string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state.Uploading || c.state.Asset != nil || c.state.AssetID != "" {
		c.mu.Unlock()
		return ErrBusy
	}
	c.mu.Unlock()

	a, err := c.opts.Preparer.Prepare(ctx, path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state.Uploading || c.state.Asset != nil || c.state.AssetID != "" {
		c.mu.Unlock()
		return ErrBusy
	}
	c.replaceLocked(Snapshot{Asset: a})
	c.startThumbnailLocked(a)
	c.mu.Unlock()
	c.notify()

	return c.startUpload(ctx, a)
}

// Cancel requests cancellation of the in-flight transport. No-op when not
// uploading. The transport resolves with a cancellation error and the state
// resets to idle silently.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	if !c.state.Uploading || c.cancelAttempt == nil {
		c.mu.Unlock()
		return
	}
	cancel := c.cancelAttempt
	c.mu.Unlock()
	cancel()
}

// Retry re-runs the upload with the previously prepared asset. No-op when
// there is none or an upload is already running.
func (c *Coordinator) Retry(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state.Uploading || c.state.Asset == nil {
		c.mu.Unlock()
		return nil
	}
	a := c.state.Asset
	c.mu.Unlock()
	return c.startUpload(ctx, a)
}

// Remove asks for confirmation, then cancels an in-flight upload or clears
// an attached result.
func (c *Coordinator) Remove(ctx context.Context) {
	c.mu.Lock()
	empty := !c.state.Uploading && c.state.Asset == nil && c.state.AssetID == ""
	uploading := c.state.Uploading
	c.mu.Unlock()
	if empty {
		return
	}

	if c.opts.Confirm != nil && !c.opts.Confirm.Confirm(ctx, "Remove this video?") {
		return
	}
	if uploading {
		c.Cancel()
		return
	}
	c.Clear()
}

// Clear unconditionally aborts any in-flight work and resets every field of
// the snapshot together. Partial resets are the bug class this exists to
// prevent.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	c.abortLocked()
	c.replaceLocked(Snapshot{})
	c.mu.Unlock()
	c.notify()
}

// Close ends the coordinator's lifetime: in-flight work is aborted and every
// late callback becomes a no-op.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.abortLocked()
	c.state = Snapshot{}
	c.pending = nil
	c.mu.Unlock()
}

// startUpload transitions to Uploading and drives one transport attempt to
// resolution.
func (c *Coordinator) startUpload(ctx context.Context, a *model.LocalAsset) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.attempt++
	attempt := c.attempt
	c.maxPct = 0
	attemptCtx, cancel := context.WithCancel(ctx)
	c.cancelAttempt = cancel
	c.replaceLocked(Snapshot{
		Asset:        a,
		Thumbnail:    c.state.Thumbnail,
		ThumbnailURL: c.state.ThumbnailURL,
		Progress:     &model.UploadProgress{BytesTotal: a.SizeBytes},
		Uploading:    true,
	})
	c.mu.Unlock()
	c.notify()
	defer cancel()

	res, err := c.opts.Video.Upload(attemptCtx, &uploaders.UploadRequest{
		Asset: a,
		Title: a.FileName,
		OnProgress: func(p model.UploadProgress) {
			c.applyProgress(attempt, p)
		},
	})

	if err != nil {
		return c.finishFailed(attempt, attemptCtx, a, err)
	}
	return c.finishSucceeded(attempt, a, res)
}

func (c *Coordinator) finishFailed(attempt int64, attemptCtx context.Context, a *model.LocalAsset, err error) error {
	cancelled := errors.Is(err, uploaders.ErrUploadCancelled) || attemptCtx.Err() != nil

	c.mu.Lock()
	if c.closed || attempt != c.attempt {
		c.mu.Unlock()
		return nil
	}
	if cancelled {
		// Intentional cancellation never surfaces as a failure.
		c.replaceLocked(Snapshot{})
		c.mu.Unlock()
		c.notify()
		return nil
	}
	c.replaceLocked(Snapshot{
		Asset:        a,
		Thumbnail:    c.state.Thumbnail,
		ThumbnailURL: c.state.ThumbnailURL,
		Err:          fmt.Sprintf("video upload failed: %v", err),
	})
	c.mu.Unlock()
	c.notify()
	return fmt.Errorf("video upload failed: %w", err)
}

func (c *Coordinator) finishSucceeded(attempt int64, a *model.LocalAsset, res *uploaders.UploadResult) error {
	c.mu.Lock()
	if c.closed || attempt != c.attempt {
		c.mu.Unlock()
		return nil
	}
	c.replaceLocked(Snapshot{
		Asset:        a,
		Thumbnail:    c.state.Thumbnail,
		ThumbnailURL: c.state.ThumbnailURL,
		Progress: &model.UploadProgress{
			BytesUploaded: a.SizeBytes,
			BytesTotal:    a.SizeBytes,
			Percentage:    100,
		},
		AssetID:   res.EmbedID,
		UploadURL: res.UploadURL,
	})
	c.mu.Unlock()
	c.notify()

	if url := c.awaitThumbnail(attempt); url != "" {
		assocCtx, cancelAssoc := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelAssoc()
		if err := c.opts.Thumbs.Associate(assocCtx, res.EmbedID, url); err != nil {
			// Logged only: the video stays usable without a custom thumbnail.
			c.logf("attach: thumbnail association failed for %s: %v", res.EmbedID, err)
		}
	}
	return nil
}

// applyProgress accepts an update only if the coordinator is open, the
// attempt is still current and the percentage is not behind the highest one
// observed for this attempt. Out-of-order progress events never regress the
// displayed bar.
func (c *Coordinator) applyProgress(attempt int64, p model.UploadProgress) {
	c.mu.Lock()
	if c.closed || attempt != c.attempt || !c.state.Uploading {
		c.mu.Unlock()
		return
	}
	if p.Percentage < c.maxPct {
		c.mu.Unlock()
		return
	}
	c.maxPct = p.Percentage
	next := c.state
	next.Progress = &model.UploadProgress{
		BytesUploaded: p.BytesUploaded,
		BytesTotal:    p.BytesTotal,
		Percentage:    p.Percentage,
	}
	c.replaceLocked(next)
	c.mu.Unlock()
	c.notify()
}

// startThumbnailLocked kicks off generation and upload of the thumbnail for
// the attached asset. It runs concurrently with the video transport and its
// failures never block the primary flow.
func (c *Coordinator) startThumbnailLocked(a *model.LocalAsset) {
	ch := make(chan thumbResult, 1)
	thumbCtx, cancel := context.WithCancel(context.Background())
	c.thumbCh = ch
	c.cancelThumb = cancel

	go func() {
		thumb, err := c.opts.Thumbnails.Generate(thumbCtx, a)
		if err != nil {
			c.logf("attach: thumbnail generation failed for %s: %v", a.FileName, err)
			ch <- thumbResult{err: err}
			return
		}
		c.applyThumbnail(a.ID, thumb)

		url, err := c.opts.Thumbs.Upload(thumbCtx, thumb)
		if err != nil {
			if errors.Is(err, ErrNoCredentials) {
				c.logf("attach: skipping thumbnail upload for %s: no credentials", a.FileName)
			} else {
				c.logf("attach: thumbnail upload failed for %s: %v", a.FileName, err)
			}
			ch <- thumbResult{err: err}
			return
		}
		c.applyThumbnailURL(a.ID, url)
		ch <- thumbResult{url: url}
	}()
}

// awaitThumbnail returns the hosted thumbnail URL, waiting out a still
// in-flight upload, or "" when there is none to associate or the attempt is
// no longer current when the wait ends.
func (c *Coordinator) awaitThumbnail(attempt int64) string {
	c.mu.Lock()
	url := c.state.ThumbnailURL
	ch := c.thumbCh
	c.mu.Unlock()

	if url == "" {
		if ch == nil {
			return ""
		}
		select {
		case r := <-ch:
			// Put the result back for a later retry of the same asset.
			ch <- r
			if r.err != nil {
				return ""
			}
			url = r.url
		case <-time.After(c.opts.ThumbnailWait):
			c.logf("attach: gave up waiting for thumbnail after %s", c.opts.ThumbnailWait)
			return ""
		}
	}

	// The attach may have been cleared or closed while we waited; a removed
	// video must not get an association.
	c.mu.Lock()
	stale := c.closed || attempt != c.attempt
	c.mu.Unlock()
	if stale {
		return ""
	}
	return url
}

func (c *Coordinator) applyThumbnail(assetID string, thumb *model.Thumbnail) {
	c.mu.Lock()
	if c.closed || c.state.Asset == nil || c.state.Asset.ID != assetID {
		c.mu.Unlock()
		return
	}
	next := c.state
	next.Thumbnail = thumb
	c.replaceLocked(next)
	c.mu.Unlock()
	c.notify()
}

func (c *Coordinator) applyThumbnailURL(assetID, url string) {
	c.mu.Lock()
	if c.closed || c.state.Asset == nil || c.state.Asset.ID != assetID {
		c.mu.Unlock()
		return
	}
	next := c.state
	next.ThumbnailURL = url
	c.replaceLocked(next)
	c.mu.Unlock()
	c.notify()
}

// abortLocked invalidates the current attempt and stops in-flight work.
func (c *Coordinator) abortLocked() {
	c.attempt++
	if c.cancelAttempt != nil {
		c.cancelAttempt()
		c.cancelAttempt = nil
	}
	if c.cancelThumb != nil {
		c.cancelThumb()
		c.cancelThumb = nil
	}
	c.thumbCh = nil
}

func (c *Coordinator) replaceLocked(next Snapshot) {
	c.state = next
	c.pending = append(c.pending, next)
}

func (c *Coordinator) notify() {
	if c.opts.OnChange == nil {
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()
		return
	}

	// One drain at a time: the transport and thumbnail goroutines both queue
	// transitions, and an unserialized drain could deliver a stale snapshot
	// after a newer one.
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	for {
		c.mu.Lock()
		if len(c.pending) == 0 {
			c.mu.Unlock()
			return
		}
		next := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()
		c.opts.OnChange(next)
	}
}

func (c *Coordinator) logf(format string, args ...any) {
	if c.opts.Log != nil {
		c.opts.Log.Warnf(format, args...)
	}
}
