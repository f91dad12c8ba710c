package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/askdocs/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/askdocs/internal/adapters/driving/mcp"
	"github.com/custodia-labs/askdocs/internal/core/domain"
	"github.com/custodia-labs/askdocs/internal/logger"
)

var (
	serveAddr     string
	serveJSONLogs bool
	serveNoMCP    bool
)

const mcpPath = "/mcp"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the HTTP API until interrupted:

  POST /api/query-rag           stream an answer grounded in the index
  POST /api/ask                 stream an answer without retrieval
  POST /api/upload-knowledge    ingest a multipart file upload
  POST /api/generate-embedding  embed a text
  GET  /api/index               describe the vector index
  GET  /healthz                 liveness check
  /mcp                          MCP streamable HTTP transport (disable with --no-mcp)`,
	Args:        cobra.NoArgs,
	Annotations: needs(needsAnswers),
	RunE:        runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, "+domain.DefaultServerAddr+")")
	serveCmd.Flags().BoolVar(&serveJSONLogs, "json-logs", false, "log as JSON")
	serveCmd.Flags().BoolVar(&serveNoMCP, "no-mcp", false, "do not mount the MCP endpoint at /mcp")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}
	if serveJSONLogs {
		logger.SetJSON(true)
	}

	addr := serveAddr
	maxUpload := int64(domain.DefaultMaxFileSize)
	if settingsService != nil {
		if settings, err := settingsService.Get(); err == nil {
			if addr == "" {
				addr = settings.Server.Addr
			}
			maxUpload = settings.Ingestion.MaxFileSize
		}
	}
	if addr == "" {
		addr = domain.DefaultServerAddr
	}

	server, err := httpapi.NewServer(queryService, ingestionService, httpapi.Options{MaxUploadBytes: maxUpload})
	if err != nil {
		return err
	}
	if !serveNoMCP {
		tools, err := mcp.NewServer(&mcp.Ports{Query: queryService, Ingestion: ingestionService})
		if err != nil {
			return err
		}
		server.Mount(mcpPath, tools.Handler())
	}

	fmt.Fprintf(cmd.OutOrStdout(), "askdocs API listening on http://%s\n", addr)
	return server.ListenAndServe(cmd.Context(), addr)
}
