package commands

import (
	"fmt"
	goruntime "runtime"
	"sort"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// PrecompileOptions holds options for the precompile command.
type PrecompileOptions struct {
	KeepGoing bool
	Jobs      int
}

// NewPrecompileCommand creates the precompile command.
func NewPrecompileCommand() *cobra.Command {
	opts := &PrecompileOptions{}

	cmd := &cobra.Command{
		Use:   "precompile [paths...]",
		Short: "Compile templates eagerly and fill the disk cache",
		Long: `Compile the given templates, or every template found under the
configured template directories, and persist the compiled trees in the
disk cache so later renders skip the parse phase.

A summary table lists each template with its status; compile errors
include the source position.`,
		Example: `  # Precompile everything under the template directories
  weft precompile

  # Precompile selected templates
  weft precompile page.html mail.txt

  # Report every failure instead of stopping at the first
  weft precompile --keep-going`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrecompile(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.KeepGoing, "keep-going", "k", false, "Compile remaining templates after a failure")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 0, "Concurrent compilations (default: number of CPUs)")

	return cmd
}

// precompileResult is one row of the summary table.
type precompileResult struct {
	path string
	err  error
}

func runPrecompile(cmd *cobra.Command, args []string, opts *PrecompileOptions) error {
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
	if len(paths) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No templates found.")
		return nil
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = goruntime.NumCPU()
	}

	var mu sync.Mutex
	results := make([]precompileResult, 0, len(paths))

	eg, ctx := errgroup.WithContext(cmd.Context())
	eg.SetLimit(jobs)
	for _, path := range paths {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, loadErr := cmdCtx.Loader.Load(path)
			mu.Lock()
			results = append(results, precompileResult{path: path, err: loadErr})
			mu.Unlock()
			if loadErr != nil && !opts.KeepGoing {
				return loadErr
			}
			return nil
		})
	}
	firstErr := eg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].path < results[j].path })
	failed := writeSummary(cmd, results)

	if firstErr != nil {
		return firstErr
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d templates failed to compile", failed, len(results))
	}
	return nil
}

// writeSummary renders the result table and returns the failure count.
func writeSummary(cmd *cobra.Command, results []precompileResult) int {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Template", "Status", "Detail"})

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			t.AppendRow(table.Row{r.path, "failed", r.err.Error()})
		} else {
			t.AppendRow(table.Row{r.path, "ok", ""})
		}
	}
	t.Render()
	fmt.Fprintf(cmd.OutOrStdout(), "%d compiled, %d failed\n", len(results)-failed, failed)
	return failed
}
