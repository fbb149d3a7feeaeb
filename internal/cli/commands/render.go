package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// RenderOptions holds options for the render command.
type RenderOptions struct {
	Data    []string
	Sets    []string
	Lang    string
	Dialect string
	Output  string
}

// NewRenderCommand creates the render command.
func NewRenderCommand() *cobra.Command {
	opts := &RenderOptions{}

	cmd := &cobra.Command{
		Use:   "render <template>",
		Short: "Render a template with the given context",
		Long: `Render a template against variables merged from data files and
--set literals, in that order.

The template path is resolved against the configured template
directories. The dialect is picked by extension unless --dialect
forces one.`,
		Example: `  # Render with a context file
  weft render page.html --data context.yaml

  # Override single values
  weft render page.html --data context.yaml --set title=Home

  # Render a translated variant to a file
  weft render page.html --lang de -o out/page.de.html

  # Force the text dialect for an unknown extension
  weft render mail.tmpl --dialect text`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Data, "data", nil, "Context data file, YAML or JSON (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Sets, "set", nil, "Literal context value key=value (repeatable)")
	cmd.Flags().StringVar(&opts.Lang, "lang", "", "Render language tag (overrides config)")
	cmd.Flags().StringVar(&opts.Dialect, "dialect", "", "Force dialect (markup|text)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Write output to file instead of stdout")

	return cmd
}

func runRender(cmd *cobra.Command, path string, opts *RenderOptions) error {
	cmdCtx, err := NewCommandContext(cmd, opts.Lang)
	if err != nil {
		return err
	}

	dataFiles := append(append([]string{}, cmdCtx.Config.DataFiles...), opts.Data...)
	vars, err := MergeProviders(cmd.Context(),
		&FileProvider{Paths: dataFiles},
		&LiteralProvider{Pairs: opts.Sets},
	)
	if err != nil {
		return err
	}

	tmpl, err := loadTemplate(cmdCtx, path, opts.Dialect)
	if err != nil {
		return err
	}
	out, err := tmpl.Render(cmd.Context(), vars)
	if err != nil {
		return err
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(out), 0o644); err != nil {
			return fmt.Errorf("failed to write output file %q: %w", opts.Output, err)
		}
		return nil
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), out)
	return err
}
