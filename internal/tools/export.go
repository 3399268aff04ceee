package tools

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fylo-labs/fylo-core-mcp/internal/config"
	"github.com/fylo-labs/fylo-core-mcp/internal/export"
	"github.com/mark3labs/mcp-go/mcp"
)

// ─── ExportDuckDBTool ───────────────────────────────────────────────────────

// ExportDuckDBTool handles the export_to_duckdb MCP tool.
type ExportDuckDBTool struct {
	exporter *export.Exporter
	cfg      config.Config
}

// NewExportDuckDBTool creates an ExportDuckDBTool.
func NewExportDuckDBTool(exporter *export.Exporter, cfg config.Config) *ExportDuckDBTool {
	return &ExportDuckDBTool{exporter: exporter, cfg: cfg}
}

// Definition returns the MCP tool definition for export_to_duckdb.
func (t *ExportDuckDBTool) Definition() mcp.Tool {
	return mcp.NewTool("export_to_duckdb",
		mcp.WithDescription(
			"Export the graph as a relational dataset: one CSV per entity type (columns "+
				"are the union of observed attribute keys), a relations CSV, and a DuckDB "+
				"load.sql. Deterministic — re-exporting an unchanged graph is byte-identical.",
		),
		mcp.WithString("output_dir",
			mcp.Description("Directory to write the export into (default: <data_dir>/export)"),
		),
	)
}

// Handle processes the export_to_duckdb tool call.
func (t *ExportDuckDBTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir := req.GetString("output_dir", "")
	if dir == "" {
		dir = filepath.Join(t.cfg.DataDir, "export")
	}

	result, err := t.exporter.Relational(dir)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("storage failure: %v", err)), nil
	}
	return jsonResult(result), nil
}

// ─── VisualizeGraphTool ─────────────────────────────────────────────────────

// VisualizeGraphTool handles the visualize_graph MCP tool.
type VisualizeGraphTool struct {
	exporter *export.Exporter
}

// NewVisualizeGraphTool creates a VisualizeGraphTool.
func NewVisualizeGraphTool(exporter *export.Exporter) *VisualizeGraphTool {
	return &VisualizeGraphTool{exporter: exporter}
}

// Definition returns the MCP tool definition for visualize_graph.
func (t *VisualizeGraphTool) Definition() mcp.Tool {
	return mcp.NewTool("visualize_graph",
		mcp.WithDescription(
			"Render the graph as a Mermaid diagram. Over max_nodes, the highest-degree "+
				"nodes are kept and the output notes the truncation.",
		),
		mcp.WithString("type",
			mcp.Description("Restrict to one entity type plus its direct neighbors"),
		),
		mcp.WithNumber("max_nodes",
			mcp.Description(fmt.Sprintf("Node budget (default %d)", export.DefaultMaxNodes)),
		),
	)
}

// Handle processes the visualize_graph tool call.
func (t *VisualizeGraphTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	diagram, err := t.exporter.Diagram(
		req.GetString("type", ""),
		intArg(req, "max_nodes", export.DefaultMaxNodes),
	)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(diagram), nil
}
