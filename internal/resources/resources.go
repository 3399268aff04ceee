// Package resources implements MCP resource handlers for the knowledge
// graph. Resources provide read-only data the host can consume for context,
// addressed by URI (graph://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fylo-labs/fylo-core-mcp/internal/graph"
	"github.com/mark3labs/mcp-go/mcp"
)

// Handler manages graph resource endpoints.
type Handler struct {
	store *graph.Store
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(store *graph.Store) *Handler {
	return &Handler{store: store}
}

// StatsResource returns the MCP resource definition for graph statistics.
func (h *Handler) StatsResource() mcp.Resource {
	return mcp.NewResource(
		"graph://stats",
		"Knowledge Graph Statistics",
		mcp.WithResourceDescription("Entity and relation counts by type, plus orphan entities"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStats returns the current graph statistics as JSON.
func (h *Handler) HandleStats(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	stats, err := h.store.Stats()
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling stats: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
