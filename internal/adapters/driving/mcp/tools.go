package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/askdocs/internal/core/domain"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question  string   `json:"question" jsonschema:"the question to answer from the indexed documents"`
	Label     string   `json:"label,omitempty" jsonschema:"optional classification label prefixed to the question"`
	TopK      int      `json:"top_k,omitempty" jsonschema:"number of passages to retrieve (default from config)"`
	Threshold *float64 `json:"threshold,omitempty" jsonschema:"minimum relevance score between 0 and 1"`
	NoRAG     bool     `json:"no_rag,omitempty" jsonschema:"answer directly without retrieval"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer string `json:"answer"`
	State  string `json:"state"`
	Tokens int    `json:"tokens"`
}

// IngestTextInput is the input schema for the ingest_text tool.
type IngestTextInput struct {
	SourceID string         `json:"source_id" jsonschema:"name of the document; re-ingesting replaces it"`
	Text     string         `json:"text" jsonschema:"the document text"`
	Metadata map[string]any `json:"metadata,omitempty" jsonschema:"extra metadata stored with every chunk"`
}

// IngestFileInput is the input schema for the ingest_file tool.
type IngestFileInput struct {
	Path     string `json:"path" jsonschema:"path of a .pdf, .txt, .md, .html or .docx file"`
	SourceID string `json:"source_id,omitempty" jsonschema:"name of the document (default: the path)"`
}

// IngestOutput is the output schema for the ingest tools.
type IngestOutput struct {
	SourceID string `json:"source_id"`
	Chunks   int    `json:"chunks"`
	Bytes    int    `json:"bytes"`
}

// DescribeInput is the (empty) input schema for the describe_index tool.
type DescribeInput struct{}

// DescribeOutput is the output schema for the describe_index tool.
type DescribeOutput struct {
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Count     int    `json:"count"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question using the indexed documents as context",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_text",
		Description: "Chunk, embed and index a piece of text",
	}, s.handleIngestText)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_file",
		Description: "Extract, chunk, embed and index a file from disk",
	}, s.handleIngestFile)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "describe_index",
		Description: "Report the vector index dimension, metric and record count",
	}, s.handleDescribe)
}

// handleAsk streams an answer and returns it as one text result.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	var (
		stream *domain.Stream
		err    error
	)
	if input.NoRAG {
		stream, err = s.ports.Query.AskDirect(ctx, input.Question)
	} else {
		stream, err = s.ports.Query.Ask(ctx, domain.QueryRequest{
			Question:  input.Question,
			Label:     input.Label,
			TopK:      input.TopK,
			Threshold: input.Threshold,
		})
	}
	if err != nil {
		return nil, AskOutput{}, err
	}

	var answer strings.Builder
	for _, tok := range stream.Collect() {
		answer.WriteString(tok.Text)
	}
	if err := stream.Err(); err != nil {
		return nil, AskOutput{}, err
	}

	return nil, AskOutput{
		Answer: answer.String(),
		State:  stream.State().String(),
		Tokens: stream.Session().TokensEmitted,
	}, nil
}

func (s *Server) handleIngestText(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestTextInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	if s.ports.Ingestion == nil {
		return nil, IngestOutput{}, ErrIngestionDisabled
	}

	report, err := s.ports.Ingestion.Ingest(ctx, domain.IngestRequest{
		SourceID: input.SourceID,
		Content:  input.Text,
		Metadata: input.Metadata,
	})
	if err != nil {
		return nil, IngestOutput{}, err
	}
	return nil, toIngestOutput(report), nil
}

func (s *Server) handleIngestFile(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestFileInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	if s.ports.Ingestion == nil {
		return nil, IngestOutput{}, ErrIngestionDisabled
	}
	if strings.TrimSpace(input.Path) == "" {
		return nil, IngestOutput{}, fmt.Errorf("%w: path is required", domain.ErrInvalidInput)
	}

	sourceID := input.SourceID
	if sourceID == "" {
		sourceID = input.Path
	}
	report, err := s.ports.Ingestion.IngestPath(ctx, input.Path, sourceID)
	if err != nil {
		return nil, IngestOutput{}, err
	}
	return nil, toIngestOutput(report), nil
}

func (s *Server) handleDescribe(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ DescribeInput,
) (*mcp.CallToolResult, DescribeOutput, error) {
	desc, err := s.ports.Query.Describe(ctx)
	if err != nil {
		return nil, DescribeOutput{}, err
	}
	return nil, DescribeOutput{
		Dimension: desc.Dimension,
		Metric:    desc.Metric.String(),
		Count:     desc.Count,
	}, nil
}

func toIngestOutput(r *domain.IngestReport) IngestOutput {
	return IngestOutput{
		SourceID: r.SourceID,
		Chunks:   r.ChunksCreated,
		Bytes:    r.BytesProcessed,
	}
}
