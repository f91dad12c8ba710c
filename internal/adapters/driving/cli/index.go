package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var indexJSON bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect and manage the vector index",
}

var indexDescribeCmd = &cobra.Command{
	Use:         "describe",
	Short:       "Show the index dimension, metric and record count",
	Args:        cobra.NoArgs,
	Annotations: needs(needsPipeline),
	RunE:        runIndexDescribe,
}

var indexRemoveCmd = &cobra.Command{
	Use:         "remove [source-id]",
	Short:       "Delete every record of a source",
	Args:        cobra.ExactArgs(1),
	Annotations: needs(needsPipeline),
	RunE:        runIndexRemove,
}

func init() {
	indexDescribeCmd.Flags().BoolVar(&indexJSON, "json", false, "output as JSON")
	indexCmd.AddCommand(indexDescribeCmd)
	indexCmd.AddCommand(indexRemoveCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexDescribe(cmd *cobra.Command, _ []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	desc, err := queryService.Describe(cmd.Context())
	if err != nil {
		return fmt.Errorf("describe failed: %w", err)
	}

	if indexJSON {
		data, err := json.MarshalIndent(map[string]any{
			"dimension": desc.Dimension,
			"metric":    desc.Metric.String(),
			"count":     desc.Count,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal description: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	cmd.Printf("Dimension: %d\n", desc.Dimension)
	cmd.Printf("Metric:    %s\n", desc.Metric)
	cmd.Printf("Records:   %d\n", desc.Count)
	return nil
}

func runIndexRemove(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	if err := ingestionService.Remove(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("remove failed: %w", err)
	}
	cmd.Printf("Removed %s.\n", args[0])
	return nil
}
