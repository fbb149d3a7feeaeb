package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewCleanCommand creates the clean command.
func NewCleanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the compiled-template disk cache",
		Long: `Delete the configured cache directory. The next render or
precompile rebuilds it from source.`,
		Example: `  # Remove the disk cache
  weft clean`,
		Args: cobra.NoArgs,
		RunE: runClean,
	}
	return cmd
}

func runClean(cmd *cobra.Command, _ []string) error {
	cmdCtx, err := NewCommandContext(cmd, "")
	if err != nil {
		return err
	}

	dir := cmdCtx.Config.CacheDir
	if dir == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "No cache directory configured.")
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		fmt.Fprintf(cmd.OutOrStdout(), "Cache directory %s does not exist.\n", dir)
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove cache directory %q: %w", dir, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", dir)
	return nil
}
