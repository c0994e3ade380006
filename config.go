package teleboy

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jehaby/teleboy/internal/telegram"
)

const (
	DefaultBaseURL   = telegram.DefaultBaseURL
	DefaultChunkSize = 4096
	DefaultTimeout   = 10 * time.Second
)

// Config is fixed at construction and never mutated by the Client.
type Config struct {
	Token     string        `env:"TELEBOY_TOKEN"`
	TopicID   string        `env:"TELEBOY_TOPIC_ID"`
	Timeout   time.Duration `env:"TELEBOY_TIMEOUT" envDefault:"10s"`
	ChunkSize int           `env:"TELEBOY_CHUNK_SIZE" envDefault:"4096"`
	BaseURL   string        `env:"TELEBOY_BASE" envDefault:"https://api.telegram.org/bot"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env config: %w", err)
	}
	return cfg, nil
}

// withDefaults validates cfg and fills zero values.
func (cfg Config) withDefaults() (Config, error) {
	if cfg.Token == "" {
		return cfg, fmt.Errorf("token is required")
	}
	if cfg.ChunkSize < 0 {
		return cfg, fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.Timeout < 0 {
		return cfg, fmt.Errorf("timeout must be positive, got %s", cfg.Timeout)
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return cfg, nil
}
