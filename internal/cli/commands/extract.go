package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/weft/pkg/i18n"
)

// ExtractOptions holds options for the extract command.
type ExtractOptions struct {
	Output  string
	Dialect string
}

// NewExtractCommand creates the extract command.
func NewExtractCommand() *cobra.Command {
	opts := &ExtractOptions{}

	cmd := &cobra.Command{
		Use:   "extract [paths...]",
		Short: "Extract translatable messages into a catalog skeleton",
		Long: `Collect the translatable messages of the given templates, or of
every template under the configured template directories: translation
markup plus string literals passed to _(), gettext() and ngettext()
inside embedded expressions.

The output is a YAML catalog skeleton with empty translations, source
references and extracted comments, ready to be filled in and loaded
back via the catalogs configuration.`,
		Example: `  # Extract everything into messages.yaml
  weft extract -o messages.yaml

  # Extract selected templates to stdout
  weft extract page.html mail.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Write the catalog skeleton to file instead of stdout")
	cmd.Flags().StringVar(&opts.Dialect, "dialect", "", "Force dialect (markup|text)")

	return cmd
}

func runExtract(cmd *cobra.Command, args []string, opts *ExtractOptions) error {
	cmdCtx, err := NewCommandContext(cmd, "")
	if err != nil {
		return err
	}

	paths := args
	if len(paths) == 0 {
		paths, err = cmdCtx.Loader.Discover()
		if err != nil {
			return err
		}
	}

	var msgs []i18n.Extracted
	for _, path := range paths {
		tmpl, err := loadTemplate(cmdCtx, path, opts.Dialect)
		if err != nil {
			return err
		}
		msgs = append(msgs, i18n.Extract(tmpl.Doc())...)
	}

	skeleton := i18n.Skeleton(msgs)
	raw, err := yaml.Marshal(skeleton)
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, raw, 0o644); err != nil {
			return fmt.Errorf("failed to write catalog file %q: %w", opts.Output, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d messages from %d templates into %s\n",
			len(skeleton.Messages), len(paths), opts.Output)
		return nil
	}
	_, err = cmd.OutOrStdout().Write(raw)
	return err
}
