// Package cli provides the command-line interface for weft.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/weft/internal/cli/commands"
	"github.com/leapstack-labs/weft/internal/cli/config"
	"github.com/leapstack-labs/weft/pkg/directive"
	"github.com/leapstack-labs/weft/pkg/parser"
	"github.com/leapstack-labs/weft/pkg/runtime"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "weft",
		Short: "weft - Template Compiler",
		Long: `weft compiles directive-annotated templates into renderers.

Templates are written in one of two dialects: a markup dialect whose
control syntax lives in reserved-namespace tags and attributes, and a
delimited-text dialect built on {% ... %} statements. Embedded
expressions are evaluated with starlark.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Help and completion work without a valid project.
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: cfg.SlogLevel(),
			}))

			ctx := config.NewContext(cmd.Context(), cfg)
			ctx = config.WithLogger(ctx, logger)
			cmd.SetContext(ctx)

			if cfg.ConfigFile != "" {
				logger.Debug("using config file", "path", cfg.ConfigFile)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Template compiler built with Go and starlark
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./weft.yaml, searched upward)")
	rootCmd.PersistentFlags().StringSliceP("template-dir", "T", nil, "Template search directory (repeatable)")
	rootCmd.PersistentFlags().String("cache-dir", "", "Directory for the compiled-template disk cache")
	rootCmd.PersistentFlags().String("dialect", "", "Default dialect for unknown extensions (markup|text)")
	rootCmd.PersistentFlags().Bool("auto-reload", false, "Revalidate cached templates against source mtimes")
	rootCmd.PersistentFlags().Bool("allow-absolute-paths", false, "Permit template references outside the search roots")
	rootCmd.PersistentFlags().String("lang", "", "Render language tag (e.g. de-AT)")
	rootCmd.PersistentFlags().StringSlice("catalog", nil, "Message catalog file (repeatable)")
	rootCmd.PersistentFlags().StringSlice("data", nil, "Context data file, YAML or JSON (repeatable)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error)")

	_ = rootCmd.RegisterFlagCompletionFunc("dialect", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"markup", "text"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewRenderCommand())
	rootCmd.AddCommand(commands.NewPrecompileCommand())
	rootCmd.AddCommand(commands.NewExtractCommand())
	rootCmd.AddCommand(commands.NewPreviewCommand())
	rootCmd.AddCommand(commands.NewCleanCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command and prints any error as a styled
// diagnostic naming the error kind.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		styles := NewStyles()
		fmt.Fprintf(os.Stderr, "%s %v\n", styles.Error.Render(diagnosticLabel(err)+":"), err)
		return err
	}
	return nil
}

// diagnosticLabel names the error kind for the terminal diagnostic.
func diagnosticLabel(err error) string {
	var (
		lexErr   *parser.LexError
		compErr  *directive.CompileError
		notFound *runtime.TemplateNotFoundError
		undef    *runtime.UndefinedVariableError
		render   *runtime.RenderError
	)
	switch {
	case errors.As(err, &lexErr):
		return "parse error"
	case errors.As(err, &compErr):
		return "compile error"
	case errors.As(err, &notFound):
		return "template not found"
	case errors.As(err, &undef):
		return "undefined variable"
	case errors.As(err, &render):
		return "render error"
	}
	return "error"
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for weft.

To load completions:

Bash:
  $ source <(weft completion bash)

Zsh:
  $ weft completion zsh > "${fpath[1]}/_weft"

Fish:
  $ weft completion fish | source

PowerShell:
  PS> weft completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}
	return cmd
}
