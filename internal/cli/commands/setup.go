// Package commands implements the weft subcommands.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/weft/internal/cli/config"
	"github.com/leapstack-labs/weft/pkg/i18n"
	"github.com/leapstack-labs/weft/pkg/spi"
	"github.com/leapstack-labs/weft/pkg/template"
)

// CommandContext carries everything a subcommand needs: the loaded
// configuration, the logger, and a loader built from both.
type CommandContext struct {
	Config *config.Config
	Logger *slog.Logger
	Loader *template.Loader
}

// NewCommandContext builds the command context from cmd. langOverride,
// when non-empty, replaces the configured render language.
func NewCommandContext(cmd *cobra.Command, langOverride string) (*CommandContext, error) {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	logger := config.Logger(cmd.Context())

	translator, err := newTranslator(cfg, langOverride)
	if err != nil {
		return nil, err
	}

	loader, err := template.New(template.Config{
		Paths:              cfg.TemplateDirs,
		DefaultKind:        cfg.DefaultDialect,
		AutoReload:         cfg.AutoReload,
		AllowAbsolutePaths: cfg.AllowAbsolutePaths,
		CacheDir:           cfg.CacheDir,
		Translator:         translator,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create loader: %w", err)
	}

	// Embedders construct their own loaders; the CLI owns this one, so
	// registration happens here rather than in a package init.
	spi.Register(template.NewEngine(loader))

	return &CommandContext{Config: cfg, Logger: logger, Loader: loader}, nil
}

// loadTemplate loads path through the command's loader, honoring an
// explicit dialect override.
func loadTemplate(cmdCtx *CommandContext, path, dialect string) (*template.Template, error) {
	if dialect != "" {
		return cmdCtx.Loader.LoadKind(path, dialect)
	}
	return cmdCtx.Loader.Load(path)
}

// newTranslator loads the configured catalogs and selects the
// translator for the render language.
func newTranslator(cfg *config.Config, langOverride string) (i18n.Translator, error) {
	if len(cfg.Catalogs) == 0 {
		return i18n.NullTranslator{}, nil
	}
	catalog := i18n.NewCatalog()
	for _, path := range cfg.Catalogs {
		if err := catalog.LoadFile(path); err != nil {
			return nil, fmt.Errorf("failed to load catalog %q: %w", path, err)
		}
	}
	tag := cfg.Language
	if langOverride != "" {
		parsed, err := language.Parse(langOverride)
		if err != nil {
			return nil, fmt.Errorf("invalid language tag %q: %w", langOverride, err)
		}
		tag = parsed
	}
	return catalog.Translator(tag), nil
}
