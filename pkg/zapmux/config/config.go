// Package config loads zapmux configuration from YAML files, with .env
// loading and environment variable expansion in config values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jholhewres/zapmux/pkg/zapmux/session"
	"github.com/jholhewres/zapmux/pkg/zapmux/wameow"
)

// envVarPattern matches ${VAR_NAME} and ${VAR_NAME:-default} in config text.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// LoggingConfig controls where and how logs are emitted.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// Config is the top-level zapmux configuration.
type Config struct {
	Logging LoggingConfig  `yaml:"logging"`
	Session session.Config `yaml:"session"`
	Client  wameow.Config  `yaml:"client"`

	// Sessions lists session IDs to bring up at startup.
	Sessions []string `yaml:"sessions"`
}

// DefaultConfig returns a Config with all defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Session: session.DefaultConfig(),
		Client:  wameow.DefaultConfig(),
	}
}

// LoadFromFile reads and parses a YAML configuration file. .env and
// .env.local are loaded first (without overriding existing variables), then
// ${VAR} references in the file are expanded before parsing.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse([]byte(expandEnvVars(string(data))))
	if err != nil {
		return nil, err
	}

	resolveRelativePaths(cfg, path)
	return cfg, nil
}

// Parse parses YAML bytes into a Config, overlaying defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	return cfg, nil
}

func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		// godotenv.Load does NOT overwrite existing env vars.
		_ = godotenv.Load(f)
	}
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} references with the
// environment's values. An unset variable without a default expands to "".
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, def := groups[1], groups[2]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return def
	})
}

// resolveRelativePaths anchors relative paths on the config file's directory.
func resolveRelativePaths(cfg *Config, configPath string) {
	base := filepath.Dir(configPath)
	if cfg.Session.CacheRoot != "" && !filepath.IsAbs(cfg.Session.CacheRoot) {
		cfg.Session.CacheRoot = filepath.Join(base, cfg.Session.CacheRoot)
	}
}
