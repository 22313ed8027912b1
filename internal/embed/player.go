package embed

import (
	"sync"
	"time"

	"hivesnaps-media/internal/logging"
)

// OrientationLocker controls the screen rotation lock around full-bleed
// playback.
type OrientationLocker interface {
	Unlock()
	LockPortrait()
}

// PlayerSession tracks one full-bleed playback surface. Opening it unlocks
// rotation; closing restores the portrait lock after a short grace delay so
// the relock doesn't race the closing animation. Shutting down with the
// surface still open restores the lock immediately.
type PlayerSession struct {
	orientation OrientationLocker
	graceDelay  time.Duration
	log         *logging.Logger

	mu         sync.Mutex
	open       bool
	buffering  bool
	graceTimer *time.Timer
	done       bool
}

func NewPlayerSession(orientation OrientationLocker, graceDelay time.Duration, log *logging.Logger) *PlayerSession {
	if graceDelay <= 0 {
		graceDelay = 500 * time.Millisecond
	}
	return &PlayerSession{
		orientation: orientation,
		graceDelay:  graceDelay,
		log:         log,
	}
}

// Open shows the surface and unlocks rotation.
func (p *PlayerSession) Open() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done || p.open {
		return
	}
	p.open = true
	p.buffering = false
	if p.graceTimer != nil {
		p.graceTimer.Stop()
		p.graceTimer = nil
	}
	p.orientation.Unlock()
}

// Close dismisses the surface and schedules the portrait relock.
func (p *PlayerSession) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done || !p.open {
		return
	}
	p.open = false
	p.buffering = false
	p.graceTimer = time.AfterFunc(p.graceDelay, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.done || p.open {
			return
		}
		p.graceTimer = nil
		p.orientation.LockPortrait()
	})
}

// SetBuffering toggles the spinner overlay while the surface is open.
func (p *PlayerSession) SetBuffering(buffering bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done || !p.open {
		return
	}
	p.buffering = buffering
}

// OnPlaybackError stops the buffering indicator but leaves the surface open;
// the user dismisses it manually.
func (p *PlayerSession) OnPlaybackError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.buffering = false
	if p.log != nil && err != nil {
		p.log.Warnf("player: playback error: %v", err)
	}
}

// Shutdown ends the session's lifetime. A surface still open at shutdown
// must still restore the portrait lock.
func (p *PlayerSession) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.done = true
	if p.graceTimer != nil {
		p.graceTimer.Stop()
		p.graceTimer = nil
		p.orientation.LockPortrait()
		return
	}
	if p.open {
		p.open = false
		p.orientation.LockPortrait()
	}
}

// IsOpen reports whether the surface is currently shown.
func (p *PlayerSession) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Buffering reports whether the spinner overlay is shown.
func (p *PlayerSession) Buffering() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffering
}
