// Package config loads the chat client and relay settings from the
// environment, with an optional .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"go-simpler.org/env"

	"github.com/omochice/relay-chat/internal/transport"
)

// Client holds the settings of cmd/chat.
type Client struct {
	RelayURL    string `env:"CHAT_RELAY_URL" default:"ws://localhost:8080/ws"`
	LogLevel    string `env:"CHAT_LOG_LEVEL" default:"info"`
	LogFile     string `env:"CHAT_LOG_FILE" default:"chat-client.log"`
	MetricsAddr string `env:"CHAT_METRICS_ADDR"`
}

// Relay holds the settings of cmd/relay. Setting CHAT_TCP_ADDR to the value
// of CHAT_WS_ADDR serves both transports on one port.
type Relay struct {
	WSAddr    string `env:"CHAT_WS_ADDR" default:":8080"`
	TCPAddr   string `env:"CHAT_TCP_ADDR"`
	LogLevel  string `env:"CHAT_LOG_LEVEL" default:"info"`
	QueueSize int    `env:"CHAT_OUTBUF" default:"64"`
}

// LoadClient reads the client settings.
func LoadClient() (*Client, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	var cfg Client
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the relay URL. It is exported so a command line override
// can be checked after loading.
func (c *Client) Validate() error {
	if c.RelayURL == "" {
		return errors.New("CHAT_RELAY_URL is required")
	}
	if err := transport.CheckURL(c.RelayURL); err != nil {
		return fmt.Errorf("CHAT_RELAY_URL: %w", err)
	}
	if c.LogFile == "" {
		return errors.New("CHAT_LOG_FILE is required")
	}
	return nil
}

// LoadRelay reads the relay settings.
func LoadRelay() (*Relay, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	var cfg Relay
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := validateRelay(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SharedPort reports whether TCP clients are accepted on the WebSocket port.
func (r *Relay) SharedPort() bool {
	return r.TCPAddr != "" && r.TCPAddr == r.WSAddr
}

func validateRelay(cfg *Relay) error {
	if cfg.WSAddr == "" {
		return errors.New("CHAT_WS_ADDR is required")
	}
	if cfg.QueueSize < 1 {
		return fmt.Errorf("CHAT_OUTBUF must be positive, got %d", cfg.QueueSize)
	}
	return nil
}

// loadDotEnv applies .env if present. Variables already set win.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read .env: %w", err)
	}
	return nil
}
