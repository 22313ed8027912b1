package janitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/samber/lo"

	"hivesnaps-media/internal"
	"hivesnaps-media/internal/logging"
	"hivesnaps-media/internal/s3"
)

// Janitor periodically removes stale attach temp files and aged-out
// thumbnail archive objects.
type Janitor struct {
	cfg  internal.Config
	s3c  s3.Client
	log  *logging.Logger
	cron *cron.Cron
}

func New(cfg internal.Config, s3c s3.Client, log *logging.Logger) (*Janitor, error) {
	j := &Janitor{
		cfg:  cfg,
		s3c:  s3c,
		log:  log,
		cron: cron.New(),
	}
	if _, err := j.cron.AddFunc(cfg.JanitorSpec, j.sweep); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Janitor) Run(ctx context.Context) error {
	j.cron.Start()
	<-ctx.Done()

	ctxStop := j.cron.Stop()
	select {
	case <-ctxStop.Done():
		return nil
	case <-time.After(10 * time.Second):
		return errors.New("cron stop timeout")
	}
}

// Sweep runs one cleanup pass immediately. The cron schedule calls it too.
func (j *Janitor) Sweep() {
	j.sweep()
}

func (j *Janitor) sweep() {
	removedTemp := j.sweepTemp()
	removedArchive := j.sweepArchive()
	if removedTemp > 0 || removedArchive > 0 {
		j.log.Infof("janitor: removed %d temp files, %d archived thumbnails", removedTemp, removedArchive)
	}
}

func (j *Janitor) sweepTemp() int {
	entries, err := os.ReadDir(j.cfg.TempDir)
	if err != nil {
		j.log.Warnf("janitor: read temp dir: %v", err)
		return 0
	}

	cutoff := time.Now().Add(-j.cfg.MaxAge)
	stale := lo.Filter(entries, func(e os.DirEntry, _ int) bool {
		name := e.Name()
		if !strings.HasPrefix(name, "attach-") && !strings.HasPrefix(name, "thumb-") {
			return false
		}
		info, err := e.Info()
		return err == nil && info.ModTime().Before(cutoff)
	})

	removed := 0
	for _, e := range stale {
		path := filepath.Join(j.cfg.TempDir, e.Name())
		if err := os.Remove(path); err != nil {
			j.log.Warnf("janitor: remove %s: %v", path, err)
			continue
		}
		removed++
	}
	return removed
}

func (j *Janitor) sweepArchive() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	objects, err := j.s3c.List(ctx, j.cfg.ThumbsPrefix)
	if err != nil {
		j.log.Warnf("janitor: list thumbnail archive: %v", err)
		return 0
	}

	cutoff := time.Now().Add(-j.cfg.MaxAge)
	removed := 0
	for _, obj := range objects {
		ts, err := time.Parse("2006-01-02T15:04:05Z07:00", obj.LastModified)
		if err != nil || !ts.Before(cutoff) {
			continue
		}
		if err := j.s3c.Delete(ctx, obj.Key); err != nil {
			j.log.Warnf("janitor: delete %s: %v", obj.Key, err)
			continue
		}
		removed++
	}
	return removed
}
