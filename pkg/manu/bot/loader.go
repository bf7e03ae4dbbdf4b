// Package bot – loader.go handles loading configuration from YAML files
// with credential management via environment variables and .env files.
package bot

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches environment variable patterns in config values:
//   - ${VAR_NAME}          - simple variable
//   - ${VAR_NAME:-default} - default value if not set
//   - ${VAR_NAME:?error}   - error message if not set
//   - $VAR_NAME            - bare variable (no default/error support)
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::(-|\?)([^}]*))?\}|\$([A-Z_][A-Z0-9_]*)`)

// LoadConfigFromFile reads and parses a YAML configuration file.
// Automatically loads .env files and expands environment variables.
// Returns an error if any ${VAR:?error} pattern has its variable unset.
func LoadConfigFromFile(path string) (*Config, error) {
	// Load .env files (silently ignore if not found).
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded, err := expandEnvVarsWithValidation(string(data))
	if err != nil {
		return nil, fmt.Errorf("expanding environment variables: %w", err)
	}

	cfg, err := ParseConfig([]byte(expanded))
	if err != nil {
		return nil, err
	}

	resolveSecrets(cfg)
	checkFilePermissions(path)

	return cfg, nil
}

// ParseConfig parses YAML bytes into a Config. Starts with defaults and
// overlays values from the YAML.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	return cfg, nil
}

// SaveConfigToFile writes a Config as YAML to the specified path. The API
// key is replaced with an environment variable reference when one matches.
func SaveConfigToFile(cfg *Config, path string) error {
	sanitized := *cfg
	sanitized.API.APIKey = sanitizeSecret(cfg.API.APIKey, "GEMINI_API_KEY")

	data, err := yaml.Marshal(&sanitized)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	// Backup existing file before overwriting.
	if existing, err := os.ReadFile(path); err == nil {
		_ = os.WriteFile(path+".bak", existing, 0o600)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// FindConfigFile searches for config files in standard locations.
func FindConfigFile() string {
	candidates := []string{
		"config.yaml",
		"config.yml",
		"manu.yaml",
		"manu.yml",
		"configs/config.yaml",
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ---------- Internal ----------

// loadEnvFiles loads .env files from standard locations. godotenv does NOT
// overwrite existing env vars.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

// expandEnvVars replaces ${VAR}, ${VAR:-default}, ${VAR:?error}, and $VAR
// references in a string with their environment variable values. The
// ${VAR:?error} pattern produces an "ERROR:" marker when unset, caught by
// expandEnvVarsWithValidation.
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)

		var varName, modifierType, modifierValue, bareVar string
		if len(submatches) >= 2 {
			varName = submatches[1]
		}
		if len(submatches) >= 3 {
			modifierType = submatches[2]
		}
		if len(submatches) >= 4 {
			modifierValue = submatches[3]
		}
		if len(submatches) >= 5 {
			bareVar = submatches[4]
		}

		if bareVar != "" {
			if val, ok := os.LookupEnv(bareVar); ok {
				return val
			}
			return match
		}

		if varName != "" {
			if val, ok := os.LookupEnv(varName); ok {
				return val
			}
			if modifierType == "?" {
				errorMsg := modifierValue
				if errorMsg == "" {
					errorMsg = "required environment variable not set"
				}
				return "ERROR:" + varName + ":" + errorMsg
			}
			if modifierType == "-" {
				return modifierValue
			}
			return match
		}

		return match
	})
}

// expandEnvVarsWithValidation is like expandEnvVars but returns an error
// if any ${VAR:?error} pattern has its variable unset.
func expandEnvVarsWithValidation(input string) (string, error) {
	result := expandEnvVars(input)
	if idx := strings.Index(result, "ERROR:"); idx >= 0 {
		rest := result[idx+6:]
		colonIdx := strings.Index(rest, ":")
		if colonIdx == -1 {
			return "", fmt.Errorf("config error: malformed error marker")
		}
		varName := rest[:colonIdx]
		errorMsg := strings.SplitN(rest[colonIdx+1:], "\n", 2)[0]
		if errorMsg == "" {
			errorMsg = "required environment variable not set"
		}
		return "", fmt.Errorf("config error: %s - %s", varName, errorMsg)
	}
	return result, nil
}

// resolveSecrets fills in config secrets from environment variables when
// the config value is empty or an unresolved reference.
func resolveSecrets(cfg *Config) {
	if cfg.API.APIKey == "" || IsEnvReference(cfg.API.APIKey) {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			cfg.API.APIKey = key
		} else if key := os.Getenv("MANU_API_KEY"); key != "" {
			cfg.API.APIKey = key
		}
	}
}

// sanitizeSecret replaces a real secret with an env var reference for safe
// storage in config files.
func sanitizeSecret(value, envVar string) string {
	if value == "" || IsEnvReference(value) {
		return value
	}
	if os.Getenv(envVar) == value {
		return "${" + envVar + "}"
	}
	return value
}

// IsEnvReference checks if a string is an environment variable reference.
func IsEnvReference(s string) bool {
	return strings.HasPrefix(s, "${") || strings.HasPrefix(s, "$")
}

// checkFilePermissions warns if the config file is group/world readable.
func checkFilePermissions(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	mode := info.Mode().Perm()
	if mode&0o044 != 0 {
		slog.Warn("config file has open permissions, consider restricting",
			"path", path,
			"current", fmt.Sprintf("%04o", mode),
			"recommended", "0600",
		)
	}
}
