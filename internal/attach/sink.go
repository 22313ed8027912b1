package attach

import (
	"context"
	"path/filepath"

	"hivesnaps-media/internal/creds"
	"hivesnaps-media/internal/logging"
	"hivesnaps-media/internal/model"
	"hivesnaps-media/internal/s3"
	"hivesnaps-media/internal/uploaders"
)

// ImageHostSink is the production ThumbnailSink: it looks up the user's
// image host keys and delegates to the OAuth1 transport. Missing keys
// short-circuit with ErrNoCredentials instead of failing the attach.
type ImageHostSink struct {
	Username string
	Creds    *creds.Provider
	Host     *uploaders.ImageHost
	Log      *logging.Logger

	// Optional archive of uploaded thumbnails, swept by the janitor.
	Archive       s3.Client
	ArchivePrefix string
}

func (s *ImageHostSink) Upload(ctx context.Context, thumb *model.Thumbnail) (string, error) {
	keys, ok, err := s.Creds.ImageHost(ctx, s.Username)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNoCredentials
	}

	url, err := s.Host.Upload(ctx, thumb, keys)
	if err != nil {
		return "", err
	}
	s.archive(ctx, thumb)
	return url, nil
}

func (s *ImageHostSink) Associate(ctx context.Context, embedID, url string) error {
	keys, ok, err := s.Creds.ImageHost(ctx, s.Username)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoCredentials
	}
	return s.Host.Associate(ctx, embedID, url, keys)
}

// archive keeps a copy of the hosted thumbnail on our own storage.
// Best effort: failures are logged and never affect the attach.
func (s *ImageHostSink) archive(ctx context.Context, thumb *model.Thumbnail) {
	if s.Archive == nil {
		return
	}
	key := s.ArchivePrefix + filepath.Base(thumb.Path)
	if err := s.Archive.PutFile(ctx, key, thumb.Path, thumb.MimeType); err != nil {
		s.Log.Warnf("attach: thumbnail archive failed for %s: %v", key, err)
	}
}
