package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gojson "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/weft/pkg/spi"
)

// FileProvider supplies render variables from YAML or JSON files,
// selected by extension. Later files win on key collisions.
type FileProvider struct {
	Paths []string
}

var _ spi.ContextProvider = (*FileProvider)(nil)

// Context implements spi.ContextProvider.
func (p *FileProvider) Context(_ context.Context) (map[string]any, error) {
	merged := make(map[string]any)
	for _, path := range p.Paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read data file %q: %w", path, err)
		}
		vars := make(map[string]any)
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json":
			if err := gojson.Unmarshal(raw, &vars); err != nil {
				return nil, fmt.Errorf("failed to parse data file %q: %w", path, err)
			}
		default:
			if err := yaml.Unmarshal(raw, &vars); err != nil {
				return nil, fmt.Errorf("failed to parse data file %q: %w", path, err)
			}
		}
		for k, v := range vars {
			merged[k] = v
		}
	}
	return merged, nil
}

// LiteralProvider supplies render variables from key=value literals.
// Values are plain strings.
type LiteralProvider struct {
	Pairs []string
}

var _ spi.ContextProvider = (*LiteralProvider)(nil)

// Context implements spi.ContextProvider.
func (p *LiteralProvider) Context(_ context.Context) (map[string]any, error) {
	vars := make(map[string]any, len(p.Pairs))
	for _, pair := range p.Pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set value %q: want key=value", pair)
		}
		vars[key] = value
	}
	return vars, nil
}

// MergeProviders folds the providers' variables together in order;
// later providers win.
func MergeProviders(ctx context.Context, providers ...spi.ContextProvider) (map[string]any, error) {
	merged := make(map[string]any)
	for _, p := range providers {
		vars, err := p.Context(ctx)
		if err != nil {
			return nil, err
		}
		for k, v := range vars {
			merged[k] = v
		}
	}
	return merged, nil
}
