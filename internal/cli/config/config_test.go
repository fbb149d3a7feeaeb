package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadDefaults(t *testing.T) {
	tmp := t.TempDir()
	chdir(t, tmp)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(cfg.ProjectRoot, "templates")}, cfg.TemplateDirs)
	assert.Equal(t, "markup", cfg.DefaultDialect)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.Preview.Addr)
	assert.False(t, cfg.AutoReload)
	assert.Equal(t, language.Und, cfg.Language)
	assert.Empty(t, cfg.ConfigFile)
}

func TestLoadProjectFile(t *testing.T) {
	tmp := t.TempDir()
	yaml := `
template_dirs: [pages, shared]
dialect: text
auto_reload: true
language: de-AT
catalogs: [i18n/de.yaml]
log_level: debug
preview:
  addr: ":9999"
`
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "weft.yaml"), []byte(yaml), 0o644))
	chdir(t, tmp)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(tmp, "weft.yaml"), cfg.ConfigFile)
	assert.Equal(t, []string{filepath.Join(tmp, "pages"), filepath.Join(tmp, "shared")}, cfg.TemplateDirs)
	assert.Equal(t, "text", cfg.DefaultDialect)
	assert.True(t, cfg.AutoReload)
	assert.Equal(t, language.MustParse("de-AT"), cfg.Language)
	assert.Equal(t, []string{filepath.Join(tmp, "i18n", "de.yaml")}, cfg.Catalogs)
	assert.Equal(t, ":9999", cfg.Preview.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadUpwardSearch(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "weft.yml"), []byte("dialect: text\n"), 0o644))
	nested := filepath.Join(tmp, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	chdir(t, nested)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, tmp, cfg.ProjectRoot)
	assert.Equal(t, "text", cfg.DefaultDialect)
	// Relative defaults anchor at the project root, not the CWD.
	assert.Equal(t, filepath.Join(tmp, ".weft", "cache"), cfg.CacheDir)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "weft.yaml"), []byte("log_level: info\n"), 0o644))
	chdir(t, tmp)
	t.Setenv("WEFT_LOG_LEVEL", "error")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	tmp := t.TempDir()
	chdir(t, tmp)
	t.Setenv("WEFT_DIALECT", "text")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("dialect", "", "")
	flags.StringSlice("template-dir", nil, "")
	flags.String("lang", "", "")
	require.NoError(t, flags.Parse([]string{"--dialect", "markup", "--template-dir", "views", "--lang", "fr"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, "markup", cfg.DefaultDialect)
	assert.Equal(t, []string{filepath.Join(cfg.ProjectRoot, "views")}, cfg.TemplateDirs)
	assert.Equal(t, language.French, cfg.Language)
}

func TestLoadUnsetFlagsDoNotOverride(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "weft.yaml"), []byte("dialect: text\n"), 0o644))
	chdir(t, tmp)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("dialect", "markup", "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.DefaultDialect)
}

func TestLoadExplicitConfigFile(t *testing.T) {
	tmp := t.TempDir()
	sub := filepath.Join(tmp, "conf")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	cfgPath := filepath.Join(sub, "custom.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("cache_dir: cache\n"), 0o644))
	chdir(t, tmp)

	cfg, err := Load(cfgPath, nil)
	require.NoError(t, err)

	// The explicit file's directory is the project root.
	assert.Equal(t, sub, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(sub, "cache"), cfg.CacheDir)
}

func TestLoadInvalidLanguage(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "weft.yaml"), []byte("language: 'not a tag!'\n"), 0o644))
	chdir(t, tmp)

	_, err := Load("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "language tag")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		errSubstr string
	}{
		{
			name:      "bad dialect",
			mutate:    func(c *Config) { c.DefaultDialect = "jinja" },
			errSubstr: "invalid dialect",
		},
		{
			name:      "bad log level",
			mutate:    func(c *Config) { c.LogLevel = "trace" },
			errSubstr: "invalid log level",
		},
		{
			name:      "no template dirs",
			mutate:    func(c *Config) { c.TemplateDirs = nil },
			errSubstr: "no template directories",
		},
		{
			name:      "empty preview addr",
			mutate:    func(c *Config) { c.Preview.Addr = "" },
			errSubstr: "preview address",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				TemplateDirs:   []string{"templates"},
				DefaultDialect: DefaultDialect,
				LogLevel:       DefaultLogLevel,
				Preview:        PreviewConfig{Addr: DefaultPreviewAddr},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := &Config{LogLevel: "DEBUG"}
	assert.Equal(t, cfg.SlogLevel().String(), "DEBUG")
}
