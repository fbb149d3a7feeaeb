// Package config provides configuration management for the weft CLI.
//
// Configuration is layered: built-in defaults, then a weft.yaml project
// file found by upward search, then WEFT_-prefixed environment
// variables, then explicitly set command-line flags.
package config

import (
	"golang.org/x/text/language"
)

// PreviewConfig holds configuration for the preview server.
type PreviewConfig struct {
	Addr string `koanf:"addr"`
}

// Config holds all CLI configuration options. Relative paths are
// resolved against the project root after loading.
type Config struct {
	TemplateDirs       []string      `koanf:"template_dirs"`
	CacheDir           string        `koanf:"cache_dir"`
	DefaultDialect     string        `koanf:"dialect"`
	AutoReload         bool          `koanf:"auto_reload"`
	AllowAbsolutePaths bool          `koanf:"allow_absolute_paths"`
	Language           language.Tag  `koanf:"language"`
	Catalogs           []string      `koanf:"catalogs"`
	DataFiles          []string      `koanf:"data_files"`
	Preview            PreviewConfig `koanf:"preview"`
	LogLevel           string        `koanf:"log_level"`

	// ProjectRoot is the directory every relative path resolves
	// against. Not read from the file; inferred while loading.
	ProjectRoot string `koanf:"-"`
	// ConfigFile is the config file that was loaded, "" when none was
	// found.
	ConfigFile string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultTemplateDir = "templates"
	DefaultCacheDir    = ".weft/cache"
	DefaultDialect     = "markup"
	DefaultLogLevel    = "warn"
	DefaultPreviewAddr = ":8080"
)
