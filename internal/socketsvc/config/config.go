package config

import (
	"fmt"

	configs "github.com/avvvet/assassin-services/configs"
)

type Config struct {
	NatsURL   string `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	NatsToken string `env:"NATS_TOKEN"`

	Port        string   `env:"SOCKET_SERVICE_PORT" envDefault:"8081"`
	RateLimit   int      `env:"RATE_LIMIT" envDefault:"100"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	// Must match the game service so its tokens verify here.
	JWTSecret string `env:"JWT_SECRET_KEY,required,notEmpty"`
}

func Load() (Config, error) {
	var cfg Config
	if err := configs.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit < 1 {
		return Config{}, fmt.Errorf("RATE_LIMIT must be positive, got %d", cfg.RateLimit)
	}
	return cfg, nil
}
