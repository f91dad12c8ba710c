package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// indexURI is the resource describing the vector index.
const indexURI = "askdocs://index"

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         indexURI,
		Name:        "index",
		Description: "Vector index dimension, similarity metric and record count",
		MIMEType:    "application/json",
	}, s.handleIndexResource)
}

func (s *Server) handleIndexResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	_, desc, err := s.handleDescribe(ctx, nil, DescribeInput{})
	if err != nil {
		return nil, fmt.Errorf("describing index: %w", err)
	}

	data, err := json.Marshal(desc)
	if err != nil {
		return nil, fmt.Errorf("marshalling index description: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
