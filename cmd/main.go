package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"hivesnaps-media/internal"
	"hivesnaps-media/internal/asset"
	"hivesnaps-media/internal/attach"
	"hivesnaps-media/internal/bot"
	"hivesnaps-media/internal/creds"
	"hivesnaps-media/internal/janitor"
	"hivesnaps-media/internal/logging"
	"hivesnaps-media/internal/s3"
	"hivesnaps-media/internal/thumbnail"
	"hivesnaps-media/internal/uploaders"
)

func main() {
	// Load .env file if it exists (try multiple paths)
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, path := range envPaths {
		_ = godotenv.Load(path)
	}

	log, err := logging.New("errors.log")
	if err != nil {
		panic(err)
	}
	defer log.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stop on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Infof("shutdown signal received")
		cancel()
	}()

	cfg, err := internal.LoadConfig()
	if err != nil {
		log.Errorf("load config: %v", err)
		return
	}

	s3c, err := s3.New(cfg)
	if err != nil {
		log.Errorf("s3 init: %v", err)
		return
	}

	provider := creds.NewProvider(cfg, s3c)
	token, ok, err := provider.VideoHostToken(ctx)
	if err != nil {
		log.Errorf("video host token: %v", err)
		return
	}
	if !ok {
		log.Warnf("no video host token configured; uploads will be unauthenticated")
	}

	b, err := bot.NewTelegramBot(cfg, log, "errors.log")
	if err != nil {
		log.Errorf("bot init: %v", err)
		return
	}

	coordinator := attach.NewCoordinator(attach.Options{
		Preparer:   asset.NewPreparer(log),
		Thumbnails: thumbnail.NewGenerator(cfg.TempDir, log),
		Video:      uploaders.NewStreamHost(cfg.VideoHostBaseURL, cfg.ChunkSizeBytes, token, log),
		Thumbs: &attach.ImageHostSink{
			Username:      cfg.ImageHostUsername,
			Creds:         provider,
			Host:          uploaders.NewImageHost(cfg.ImageHostBaseURL, log),
			Log:           log,
			Archive:       s3c,
			ArchivePrefix: cfg.ThumbsPrefix,
		},
		Confirm:  b,
		Log:      log,
		OnChange: b.StateChanged,
	})
	defer coordinator.Close()
	b.SetCoordinator(coordinator)

	j, err := janitor.New(cfg, s3c, log)
	if err != nil {
		log.Errorf("janitor init: %v", err)
		return
	}
	go func() {
		if err := j.Run(ctx); err != nil {
			log.Errorf("janitor stopped: %v", err)
		}
	}()

	if err := b.Run(ctx); err != nil {
		log.Errorf("bot run: %v", err)
		return
	}

	<-ctx.Done()
	time.Sleep(300 * time.Millisecond)
}
