package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var embedCmd = &cobra.Command{
	Use:   "embed [text]",
	Short: "Print the embedding of a text",
	Long: `Embeds the text with the configured embedding model and prints the
vector as a JSON array.`,
	Args:        cobra.MinimumNArgs(1),
	Annotations: needs(needsPipeline),
	RunE:        runEmbed,
}

func init() {
	rootCmd.AddCommand(embedCmd)
}

func runEmbed(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	vec, err := queryService.Embed(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("embed failed: %w", err)
	}

	data, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
