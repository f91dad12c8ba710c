// Package mcp provides an MCP (Model Context Protocol) server adapter for askdocs.
// It lets AI assistants ask grounded questions and add documents to the index.
package mcp

import "errors"

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")

// ErrIngestionDisabled is returned by ingest tools when no ingestion service is configured.
var ErrIngestionDisabled = errors.New("mcp: ingestion is not available")
