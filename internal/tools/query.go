package tools

import (
	"context"

	"github.com/fylo-labs/fylo-core-mcp/internal/graph"
	"github.com/mark3labs/mcp-go/mcp"
)

// ─── QueryGraphTool ─────────────────────────────────────────────────────────

// QueryGraphTool handles the query_graph MCP tool.
type QueryGraphTool struct {
	store *graph.Store
}

// NewQueryGraphTool creates a QueryGraphTool with the given store.
func NewQueryGraphTool(store *graph.Store) *QueryGraphTool {
	return &QueryGraphTool{store: store}
}

// Definition returns the MCP tool definition for query_graph.
func (t *QueryGraphTool) Definition() mcp.Tool {
	return mcp.NewTool("query_graph",
		mcp.WithDescription(
			"Breadth-first traversal of the knowledge graph. Seeds are entities matching the "+
				"type/name filter; relations matching the relation filter are followed up to "+
				"'depth' hops (default 1). Returns the reachable entities and the edges used.",
		),
		mcp.WithString("type",
			mcp.Description("Seed entity type filter (source, url, build, modification, category, pattern)"),
		),
		mcp.WithString("name_pattern",
			mcp.Description("Seed name filter, SQL LIKE pattern (e.g. '%turbo%')"),
		),
		mcp.WithString("relation_type",
			mcp.Description("Only follow relations of this type"),
		),
		mcp.WithString("from_id",
			mcp.Description("Only follow relations originating at this entity"),
		),
		mcp.WithNumber("depth",
			mcp.Description("Traversal depth in hops (default 1, max 10)"),
		),
	)
}

// Handle processes the query_graph tool call.
func (t *QueryGraphTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sub, err := t.store.Query(
		graph.EntityFilter{
			Type:        req.GetString("type", ""),
			NamePattern: req.GetString("name_pattern", ""),
		},
		graph.RelationFilter{
			Type:   req.GetString("relation_type", ""),
			FromID: req.GetString("from_id", ""),
		},
		intArg(req, "depth", 1),
	)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(sub), nil
}

// ─── GraphStatsTool ─────────────────────────────────────────────────────────

// GraphStatsTool handles the get_graph_stats MCP tool.
type GraphStatsTool struct {
	store *graph.Store
}

// NewGraphStatsTool creates a GraphStatsTool with the given store.
func NewGraphStatsTool(store *graph.Store) *GraphStatsTool {
	return &GraphStatsTool{store: store}
}

// Definition returns the MCP tool definition for get_graph_stats.
func (t *GraphStatsTool) Definition() mcp.Tool {
	return mcp.NewTool("get_graph_stats",
		mcp.WithDescription(
			"Aggregate graph statistics: entity counts by type, relation counts by type, "+
				"and the number of orphan entities (no incident relations).",
		),
	)
}

// Handle processes the get_graph_stats tool call.
func (t *GraphStatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := t.store.Stats()
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(stats), nil
}
