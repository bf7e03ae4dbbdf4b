// Package bot – keyring.go provides credential storage using the operating
// system's native keyring (Linux: Secret Service/GNOME Keyring, macOS:
// Keychain, Windows: Credential Manager).
//
// Priority for resolving the API key:
//  1. OS keyring (encrypted by the OS, requires user session)
//  2. Environment variable (GEMINI_API_KEY, MANU_API_KEY)
//  3. config.yaml value (least secure — plaintext on disk)
//  4. Interactive prompt, when stdin is a terminal
package bot

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const (
	// keyringService is the service name used in the OS keyring.
	keyringService = "manu"

	// keyringAPIKey is the key name for the Gemini API key.
	keyringAPIKey = "api_key"
)

// StoreKeyring saves a secret to the OS keyring.
func StoreKeyring(key, value string) error {
	return keyring.Set(keyringService, key, value)
}

// GetKeyring retrieves a secret from the OS keyring. Returns empty string
// if not found.
func GetKeyring(key string) string {
	val, err := keyring.Get(keyringService, key)
	if err != nil {
		return ""
	}
	return val
}

// DeleteKeyring removes a secret from the OS keyring.
func DeleteKeyring(key string) error {
	return keyring.Delete(keyringService, key)
}

// KeyringAvailable checks if the OS keyring is accessible.
func KeyringAvailable() bool {
	testKey := "__manu_test__"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, testKey)
	return true
}

// ResolveAPIKey resolves the Gemini API key using the priority chain and
// updates the config in place. Returns an error when no key can be found.
func ResolveAPIKey(cfg *Config, logger *slog.Logger) error {
	// 1. OS keyring.
	if val := GetKeyring(keyringAPIKey); val != "" {
		cfg.API.APIKey = val
		logger.Debug("API key loaded from OS keyring")
		return nil
	}

	// 2. Already resolved from env expansion or config.
	if cfg.API.APIKey != "" && !IsEnvReference(cfg.API.APIKey) {
		logger.Debug("API key loaded from config/env")
		return nil
	}

	// 3. Interactive prompt as last resort.
	if term.IsTerminal(int(os.Stdin.Fd())) {
		key, err := ReadPassword("Gemini API key: ")
		if err != nil {
			return fmt.Errorf("reading API key: %w", err)
		}
		key = strings.TrimSpace(key)
		if key != "" {
			cfg.API.APIKey = key
			if err := StoreKeyring(keyringAPIKey, key); err != nil {
				logger.Warn("failed to store API key in OS keyring", "error", err)
			} else {
				logger.Info("API key stored in OS keyring", "service", keyringService)
			}
			return nil
		}
	}

	return fmt.Errorf("no API key found: set GEMINI_API_KEY or run 'manu setup'")
}

// ReadPassword reads a secret from the terminal without echoing it.
func ReadPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// MigrateKeyToKeyring moves an API key from config/env to the OS keyring.
func MigrateKeyToKeyring(apiKey string, logger *slog.Logger) error {
	if err := StoreKeyring(keyringAPIKey, apiKey); err != nil {
		return fmt.Errorf("storing in keyring: %w", err)
	}
	logger.Info("API key stored in OS keyring",
		"service", keyringService,
		"hint", "You can now remove it from .env and config.yaml")
	return nil
}
