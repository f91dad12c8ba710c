package mcp

import (
	"github.com/custodia-labs/askdocs/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server calls.
type Ports struct {
	// Query answers questions and describes the index.
	Query driving.QueryService

	// Ingestion adds documents to the index. Optional; the ingest tools
	// report ErrIngestionDisabled without it.
	Ingestion driving.IngestionService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	return nil
}
