// Package bot wires the Manu assistant together: configuration, credential
// resolution, the WhatsApp channel and the message pipeline.
package bot

import (
	"fmt"
	"strings"

	"github.com/jholhewres/manu/pkg/manu/channels/whatsapp"
	"github.com/jholhewres/manu/pkg/manu/pipeline"
)

// Config is the root configuration.
type Config struct {
	// Name is the bot's display name.
	Name string `yaml:"name"`

	// OwnerNumber is the only number the assistant answers to, digits only
	// in international format (e.g. "5511999999999").
	OwnerNumber string `yaml:"owner_number"`

	// Prefix is the chat command prefix.
	Prefix string `yaml:"prefix"`

	// Model is the Gemini model used for replies.
	Model string `yaml:"model"`

	// API holds assistant backend credentials.
	API APIConfig `yaml:"api"`

	// Channels holds per-transport configuration.
	Channels ChannelsConfig `yaml:"channels"`

	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig holds assistant backend credentials.
type APIConfig struct {
	// APIKey is the Gemini API key. Prefer the OS keyring or the
	// GEMINI_API_KEY environment variable over a plaintext value here.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the API endpoint. Mainly for tests.
	BaseURL string `yaml:"base_url,omitempty"`
}

// ChannelsConfig holds per-transport configuration.
type ChannelsConfig struct {
	WhatsApp whatsapp.Config `yaml:"whatsapp"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:   "Manu",
		Prefix: pipeline.DefaultPrefix,
		Model:  "gemini-2.5-flash",
		Channels: ChannelsConfig{
			WhatsApp: whatsapp.DefaultConfig(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration for fatal problems.
func (c *Config) Validate() error {
	if c.OwnerNumber == "" {
		return fmt.Errorf("owner_number is required")
	}
	if strings.ContainsAny(c.OwnerNumber, "@ +-()") {
		return fmt.Errorf("owner_number must be digits only, got %q", c.OwnerNumber)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid logging format %q", c.Logging.Format)
	}
	return nil
}
