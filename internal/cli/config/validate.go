package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// logLevels maps config log level names onto slog levels.
var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Validate checks the loaded configuration for values no command could
// work with.
func (c *Config) Validate() error {
	if len(c.TemplateDirs) == 0 {
		return fmt.Errorf("no template directories configured")
	}
	if c.DefaultDialect != "markup" && c.DefaultDialect != "text" {
		return fmt.Errorf("invalid dialect %q: must be markup or text", c.DefaultDialect)
	}
	if _, ok := logLevels[strings.ToLower(c.LogLevel)]; !ok {
		return fmt.Errorf("invalid log level %q: must be debug, info, warn or error", c.LogLevel)
	}
	if c.Preview.Addr == "" {
		return fmt.Errorf("preview address must not be empty")
	}
	return nil
}

// SlogLevel returns the configured log level as a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	return logLevels[strings.ToLower(c.LogLevel)]
}
