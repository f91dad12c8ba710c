package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/askdocs/internal/adapters/driving/watch"
)

var (
	watchInitial  bool
	watchDebounce string
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Keep the index in step with a directory",
	Long: `Ingests the directory, then re-ingests files as they are created or
changed and removes the records of deleted files. Runs until interrupted.

With no directory the configured documents directory is watched.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: needs(needsPipeline),
	RunE:        runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchInitial, "initial", true, "ingest the whole directory before watching")
	watchCmd.Flags().StringVar(&watchDebounce, "debounce", watch.DefaultDebounce.String(), "quiet period before a changed file is processed")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	dir := ""
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" && settingsService != nil {
		if settings, err := settingsService.Get(); err == nil {
			dir = settings.Ingestion.DocumentsDir
		}
	}
	if dir == "" {
		return errors.New("no directory given and no documents directory configured")
	}

	debounce, err := parseDuration(watchDebounce)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if watchInitial {
		report, err := ingestionService.IngestDirectory(ctx, dir)
		if err != nil {
			return err
		}
		printDirectoryReport(cmd, report)
	}

	w, err := watch.New(dir, ingestionService,
		watch.WithDebounce(debounce),
		watch.WithReporter(func(change watch.Change, err error) {
			if err != nil {
				cmd.PrintErrf("%s %s failed: %v\n", change.Op, change.SourceID, err)
				return
			}
			cmd.Printf("%s %s\n", change.Op, change.SourceID)
		}),
	)
	if err != nil {
		return err
	}
	defer w.Close()

	cmd.Printf("Watching %s (Ctrl-C to stop)\n", w.Root())
	return w.Run(ctx)
}
