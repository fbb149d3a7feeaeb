package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"golang.org/x/text/language"
)

// maxUpwardSearchLevels limits how far up the directory tree to search
// for a project config file.
const maxUpwardSearchLevels = 10

// configFileNames are the recognized project file names, in priority
// order.
var configFileNames = []string{"weft.yaml", "weft.yml"}

// configFileIn returns the config file inside dir, or "".
func configFileIn(dir string) string {
	for _, name := range configFileNames {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate
		}
	}
	return ""
}

// findProjectRootUpward searches upward from startDir for a weft config
// file. Returns "" if none is found within maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configFileIn(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// flagKey maps a flag name onto its config key: kebab-case becomes
// snake_case, and the short singular flag names map onto their plural
// config keys.
func flagKey(name string) string {
	switch name {
	case "template-dir":
		return "template_dirs"
	case "catalog":
		return "catalogs"
	case "data":
		return "data_files"
	case "lang":
		return "language"
	}
	return strings.ReplaceAll(name, "-", "_")
}

// languageTagHook decodes "de-AT"-style strings into language.Tag
// fields during unmarshalling.
func languageTagHook() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(language.Tag{}) {
			return data, nil
		}
		s, ok := data.(string)
		if !ok {
			return data, nil
		}
		if s == "" {
			return language.Und, nil
		}
		tag, err := language.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid language tag %q: %w", s, err)
		}
		return tag, nil
	}
}

// Load loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file >
// defaults. cfgFile overrides the upward config-file search; flags may
// be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// Project root: the explicit config file's directory, else the
	// nearest ancestor holding a weft.yaml, else the working directory.
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	projectRoot := cwd
	if cfgFile != "" {
		abs, err := filepath.Abs(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config file %q: %w", cfgFile, err)
		}
		cfgFile = abs
		projectRoot = filepath.Dir(abs)
	} else if root := findProjectRootUpward(cwd); root != "" {
		projectRoot = root
		cfgFile = configFileIn(root)
	}

	// 1. Defaults.
	if err := k.Load(confmap.Provider(map[string]any{
		"template_dirs": []string{DefaultTemplateDir},
		"cache_dir":     DefaultCacheDir,
		"dialect":       DefaultDialect,
		"log_level":     DefaultLogLevel,
		"preview.addr":  DefaultPreviewAddr,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Project file.
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// 3. Environment variables: WEFT_CACHE_DIR -> cache_dir.
	if err := k.Load(env.Provider("WEFT_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "WEFT_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags: only those explicitly set override the layers below.
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return flagKey(f.Name), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				languageTagHook(),
				mapstructure.StringToSliceHookFunc(","),
			),
			WeaklyTypedInput: true,
			Result:           &cfg,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.ProjectRoot = projectRoot
	cfg.ConfigFile = cfgFile
	resolvePaths(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolvePaths anchors every relative path in cfg at the project root.
func resolvePaths(cfg *Config) {
	for i, dir := range cfg.TemplateDirs {
		cfg.TemplateDirs[i] = resolvePathRelativeTo(dir, cfg.ProjectRoot)
	}
	cfg.CacheDir = resolvePathRelativeTo(cfg.CacheDir, cfg.ProjectRoot)
	for i, p := range cfg.Catalogs {
		cfg.Catalogs[i] = resolvePathRelativeTo(p, cfg.ProjectRoot)
	}
	for i, p := range cfg.DataFiles {
		cfg.DataFiles[i] = resolvePathRelativeTo(p, cfg.ProjectRoot)
	}
}

// resolvePathRelativeTo resolves path against baseDir unless it is
// empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
