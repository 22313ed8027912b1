package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"hivesnaps-media/internal"
	"hivesnaps-media/internal/asset"
	"hivesnaps-media/internal/attach"
	"hivesnaps-media/internal/creds"
	"hivesnaps-media/internal/logging"
	"hivesnaps-media/internal/s3"
	"hivesnaps-media/internal/thumbnail"
	"hivesnaps-media/internal/uploaders"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	var (
		file = flag.String("file", "", "Path of the video to attach")
		yes  = flag.Bool("y", false, "Answer yes to confirmation prompts")
	)
	flag.Parse()

	if *file == "" {
		fmt.Println("Usage: attach -file <video> [-y]")
		os.Exit(1)
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New("attach.log")
	if err != nil {
		fmt.Printf("Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	s3c, err := s3.New(cfg)
	if err != nil {
		fmt.Printf("Error initializing s3: %v\n", err)
		os.Exit(1)
	}

	provider := creds.NewProvider(cfg, s3c)
	token, _, err := provider.VideoHostToken(ctx)
	if err != nil {
		fmt.Printf("Error loading video host token: %v\n", err)
		os.Exit(1)
	}

	coordinator := attach.NewCoordinator(attach.Options{
		Picker:     asset.FilePicker{Path: *file},
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
		Confirm: attach.AutoConfirm(*yes),
		Log:     log,
		OnChange: func(s attach.Snapshot) {
			if s.Uploading && s.Progress != nil {
				fmt.Printf("\ruploading… %3.0f%% (%d/%d bytes)", s.Progress.Percentage, s.Progress.BytesUploaded, s.Progress.BytesTotal)
			}
		},
	})
	defer coordinator.Close()

	// Cancel the transport when the context dies so Ctrl-C resets cleanly
	go func() {
		<-ctx.Done()
		coordinator.Cancel()
	}()

	if err := coordinator.AddVideo(ctx); err != nil {
		fmt.Printf("\nattach failed: %v\n", err)
		os.Exit(1)
	}

	final := coordinator.State()
	if final.Idle() {
		fmt.Println("\nattach cancelled")
		return
	}
	fmt.Printf("\nattached: embed=%s upload=%s", final.AssetID, final.UploadURL)
	if final.ThumbnailURL != "" {
		fmt.Printf(" thumbnail=%s", final.ThumbnailURL)
	}
	fmt.Println()
}
