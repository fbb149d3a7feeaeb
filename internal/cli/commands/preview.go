package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/weft/internal/cli/config"
	"github.com/leapstack-labs/weft/internal/preview"
)

// PreviewOptions holds options for the preview command.
type PreviewOptions struct {
	Addr string
	Data []string
	Lang string
}

// NewPreviewCommand creates the preview command.
func NewPreviewCommand() *cobra.Command {
	opts := &PreviewOptions{}

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Serve templates with live reload",
		Long: `Start a local web server rendering the project's templates with the
configured data files. Connected pages reload automatically when a
template or one of the templates it loads changes on disk.`,
		Example: `  # Serve on the configured address
  weft preview

  # Serve on a custom address with a context file
  weft preview --addr :3000 --data context.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPreview(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "Listen address (default from config, :8080)")
	cmd.Flags().StringArrayVar(&opts.Data, "data", nil, "Context data file, YAML or JSON (repeatable)")
	cmd.Flags().StringVar(&opts.Lang, "lang", "", "Render language tag (overrides config)")

	return cmd
}

func runPreview(cmd *cobra.Command, opts *PreviewOptions) error {
	// The watcher revalidates through the loader; stale cache entries
	// would serve old output after a reload event.
	if cfg := config.FromContext(cmd.Context()); cfg != nil {
		cfg.AutoReload = true
	}

	cmdCtx, err := NewCommandContext(cmd, opts.Lang)
	if err != nil {
		return err
	}

	addr := cmdCtx.Config.Preview.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}
	dataFiles := append(append([]string{}, cmdCtx.Config.DataFiles...), opts.Data...)

	srv := preview.New(preview.Config{
		Loader:   cmdCtx.Loader,
		Provider: &FileProvider{Paths: dataFiles},
		Addr:     addr,
		Logger:   cmdCtx.Logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Serve(ctx)
}
