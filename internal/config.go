package internal

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	TelegramToken string
	S3Endpoint    string
	S3Region      string
	S3Bucket      string
	S3AccessKey   string
	S3SecretKey   string

	// Video host (embed service with the chunked session protocol)
	VideoHostBaseURL string
	VideoHostToken   string // env fallback when no token is stored on S3

	// Image host for thumbnails
	ImageHostBaseURL      string
	ImageHostUsername     string
	ImageHostConsumerKey  string
	ImageHostConsumerSec  string
	ImageHostAccessToken  string
	ImageHostAccessSecret string

	// Used when embed metadata lookup fails outright
	FallbackMediaURL string

	TokensPrefix string
	ThumbsPrefix string

	TempDir string
	MaxAge  time.Duration

	// Cron spec for the temp/orphan sweeper
	JanitorSpec string

	ChunkSizeBytes int64
	Silent         bool
}

func LoadConfig() (Config, error) {
	cfg := Config{
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		S3Endpoint:    os.Getenv("S3_ENDPOINT"),
		S3Region:      os.Getenv("S3_REGION"),
		S3Bucket:      os.Getenv("S3_BUCKET"),
		S3AccessKey:   firstNonEmpty(os.Getenv("S3_ACCESS_KEY"), os.Getenv("S3_ACCESS_KEY_ID")),
		S3SecretKey:   firstNonEmpty(os.Getenv("S3_SECRET_ACCESS_KEY"), os.Getenv("S3_SECRET_ACCESS_KEY_ID")),

		VideoHostBaseURL: os.Getenv("VIDEO_HOST_URL"),
		VideoHostToken:   os.Getenv("VIDEO_HOST_TOKEN"),

		ImageHostBaseURL:      os.Getenv("IMAGE_HOST_URL"),
		ImageHostUsername:     firstNonEmpty(os.Getenv("IMAGE_HOST_USERNAME"), "default"),
		ImageHostConsumerKey:  os.Getenv("IMAGE_HOST_CONSUMER_KEY"),
		ImageHostConsumerSec:  os.Getenv("IMAGE_HOST_CONSUMER_SECRET"),
		ImageHostAccessToken:  os.Getenv("IMAGE_HOST_ACCESS_TOKEN"),
		ImageHostAccessSecret: os.Getenv("IMAGE_HOST_ACCESS_SECRET"),

		FallbackMediaURL: os.Getenv("FALLBACK_MEDIA_URL"),

		TokensPrefix: "tokens/",
		ThumbsPrefix: "thumbs/",

		TempDir:        os.TempDir(),
		MaxAge:         24 * time.Hour,
		JanitorSpec:    "17 * * * *",
		ChunkSizeBytes: 5 * 1024 * 1024,
		Silent:         true,
	}

	if v := os.Getenv("TEMP_DIR"); v != "" {
		cfg.TempDir = v
	}

	if v := os.Getenv("MAX_AGE"); v != "" {
		if duration, err := time.ParseDuration(v); err == nil {
			cfg.MaxAge = duration
		}
	}

	if v := os.Getenv("JANITOR_SPEC"); v != "" {
		cfg.JanitorSpec = v
	}

	if v := os.Getenv("CHUNK_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.ChunkSizeBytes = n
		}
	}

	if v := os.Getenv("SILENT"); v != "" {
		cfg.Silent = v != "false" && v != "0"
	}

	if cfg.VideoHostBaseURL == "" {
		return cfg, errors.New("VIDEO_HOST_URL is required")
	}
	if cfg.S3Endpoint == "" || cfg.S3Region == "" || cfg.S3Bucket == "" || cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
		return cfg, errors.New("S3_* env vars are required")
	}
	return cfg, nil
}

func firstNonEmpty(v ...string) string {
	for _, s := range v {
		if s != "" {
			return s
		}
	}
	return ""
}
