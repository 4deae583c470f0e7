package media

import (
	"fmt"
	"time"

	configs "github.com/avvvet/assassin-services/configs"
)

// Config is the media service configuration.
type Config struct {
	NatsURL   string `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	NatsToken string `env:"NATS_TOKEN"`

	UploadFolder string        `env:"UPLOAD_FOLDER" envDefault:"./uploads"`
	Quality      string        `env:"TRANSCODE_QUALITY" envDefault:"high"`
	FFmpegPath   string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	Timeout      time.Duration `env:"TRANSCODE_TIMEOUT" envDefault:"10m"`
	QueueGroup   string        `env:"TRANSCODE_QUEUE_GROUP" envDefault:"media"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := configs.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if _, ok := Presets[cfg.Quality]; !ok {
		return Config{}, fmt.Errorf("TRANSCODE_QUALITY must be one of low, medium, high, extreme; got %q", cfg.Quality)
	}
	if cfg.Timeout <= 0 {
		return Config{}, fmt.Errorf("TRANSCODE_TIMEOUT must be positive, got %s", cfg.Timeout)
	}
	return cfg, nil
}
