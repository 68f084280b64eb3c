package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/certprep/certprep-backend/internal/importer"
	"github.com/certprep/certprep-backend/internal/repository"
)

func newImportCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "import-questions FILE_OR_GLOB...",
		Short: "Import JSON or YAML question files into the question bank",
		Long: `Reads question export files (either {"questions": [...]} or a bare list)
and upserts every item keyed by its content hash. Re-importing a file
updates existing questions instead of duplicating them.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := expandPaths(args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no question files match %s", strings.Join(args, " "))
			}

			ctx := cmd.Context()
			_, pool, log, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			im := importer.New(repository.NewQuestionRepository(pool), concurrency, log)
			sum, err := im.ImportFiles(ctx, paths)
			printSummary(cmd, sum)
			if err != nil {
				return err
			}
			if sum.Errors > 0 {
				return fmt.Errorf("%d error(s) during import, see the log above", sum.Errors)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", importer.DefaultConcurrency, "files imported in parallel")
	return cmd
}

// expandPaths resolves glob patterns; plain paths are kept even when missing
// so the importer reports them.
func expandPaths(args []string) ([]string, error) {
	var paths []string
	seen := make(map[string]bool)
	for _, arg := range args {
		matches := []string{arg}
		if strings.ContainsAny(arg, "*?[") {
			m, err := filepath.Glob(arg)
			if err != nil {
				return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
			}
			matches = m
		}
		for _, p := range matches {
			if !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
	}
	return paths, nil
}

func printSummary(cmd *cobra.Command, s importer.Summary) {
	out := cmd.OutOrStdout()
	line := strings.Repeat("=", 40)
	fmt.Fprintln(out, line)
	fmt.Fprintln(out, "Import summary")
	fmt.Fprintln(out, line)
	fmt.Fprintf(out, "Files:     %d\n", s.Files)
	fmt.Fprintf(out, "Processed: %d\n", s.Processed)
	fmt.Fprintf(out, "Inserted:  %d\n", s.Inserted)
	fmt.Fprintf(out, "Updated:   %d\n", s.Updated)
	fmt.Fprintf(out, "Skipped:   %d\n", s.Skipped)
	fmt.Fprintf(out, "Errors:    %d\n", s.Errors)
	fmt.Fprintln(out, line)
}
