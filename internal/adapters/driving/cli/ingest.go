package cli

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/askdocs/internal/core/domain"
)

// defaultTestQueries are run by ingest --test-queries when no --query is given.
var defaultTestQueries = []string{
	"getting started",
	"troubleshooting",
	"maintenance tips",
}

var (
	ingestSourceID    string
	ingestTestQueries bool
	ingestQueries     []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Ingest files or directories",
	Long: `Extracts text from each file, splits it into chunks, embeds the chunks and
writes them to the vector index. Re-ingesting a file replaces its records.

Directories are walked for .pdf, .txt and .md files, skipping paths matched
by .askdocsignore. With no path the configured documents directory is used.`,
	Annotations: needs(needsPipeline),
	RunE:        runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSourceID, "source-id", "", "source id for a single file (default: the path)")
	ingestCmd.Flags().BoolVar(&ingestTestQueries, "test-queries", false, "run sample queries after ingesting")
	ingestCmd.Flags().StringArrayVar(&ingestQueries, "query", nil, "sample query to run (repeatable, implies --test-queries)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}
	if ingestSourceID != "" && len(args) != 1 {
		return errors.New("--source-id requires exactly one file")
	}

	ctx := cmd.Context()
	start := time.Now()

	if len(args) == 0 {
		args = []string{""}
	}

	var failed int
	for _, path := range args {
		if err := ingestOne(ctx, cmd, path); err != nil {
			cmd.PrintErrf("%s: %v\n", displayPath(path), err)
			failed++
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	cmd.Printf("Done in %s.\n", time.Since(start).Round(time.Millisecond))

	if ingestTestQueries || len(ingestQueries) > 0 {
		if err := runTestQueries(ctx, cmd); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d paths failed", failed, len(args))
	}
	return nil
}

func ingestOne(ctx context.Context, cmd *cobra.Command, path string) error {
	info, err := os.Stat(path)
	if path == "" || (err == nil && info.IsDir()) {
		report, err := ingestionService.IngestDirectory(ctx, path)
		if err != nil {
			return err
		}
		printDirectoryReport(cmd, report)
		return nil
	}
	if err != nil {
		return err
	}

	sourceID := ingestSourceID
	if sourceID == "" {
		sourceID = filepath.ToSlash(filepath.Clean(path))
	}
	report, err := ingestionService.IngestPath(ctx, path, sourceID)
	if err != nil {
		return err
	}
	cmd.Printf("Ingested %s: %d chunks from %d bytes in %s\n",
		report.SourceID, report.ChunksCreated, report.BytesProcessed, report.Duration.Round(time.Millisecond))
	return nil
}

func printDirectoryReport(cmd *cobra.Command, report *domain.DirectoryReport) {
	cmd.Printf("Ingested %s: %d files, %d chunks", report.Dir, report.FilesProcessed, report.TotalChunks)
	if report.FilesFailed > 0 {
		cmd.Printf(", %d failed", report.FilesFailed)
	}
	cmd.Println()

	for _, fileType := range slices.Sorted(maps.Keys(report.ByType)) {
		cmd.Printf("  %-10s %d\n", fileType, report.ByType[fileType])
	}
	for _, name := range slices.Sorted(maps.Keys(report.Failures)) {
		cmd.PrintErrf("  failed %s: %v\n", name, report.Failures[name])
	}
}

func runTestQueries(ctx context.Context, cmd *cobra.Command) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	queries := ingestQueries
	if len(queries) == 0 {
		queries = defaultTestQueries
	}

	out := cmd.OutOrStdout()
	cmd.Println()
	cmd.Println(render(out, headingStyle, "Sample queries"))

	anything := 0.0
	for _, q := range queries {
		window, err := queryService.Retrieve(ctx, domain.QueryRequest{Question: q, TopK: 2, Threshold: &anything})
		if err != nil {
			return fmt.Errorf("query %q: %w", q, err)
		}
		if window.IsEmpty() {
			cmd.Printf("  %q: no results\n", q)
			continue
		}
		best := window.Entries[0]
		cmd.Printf("  %q: %d results, best %s from %s\n", q, len(window.Entries),
			render(out, scoreStyle, fmt.Sprintf("%.4f", best.Score)), recordSource(best.Record))
	}
	return nil
}

func displayPath(path string) string {
	if path == "" {
		return "documents directory"
	}
	return path
}

func recordSource(rec domain.IndexRecord) string {
	if src, ok := rec.Metadata[domain.MetaSource].(string); ok && src != "" {
		return src
	}
	return rec.ID
}
