package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/fylo-labs/fylo-core-mcp/internal/graph"
	"github.com/fylo-labs/fylo-core-mcp/internal/validate"
	"github.com/mark3labs/mcp-go/mcp"
)

// ─── DiagnoseFailureTool ────────────────────────────────────────────────────

// DiagnoseFailureTool handles the diagnose_failure MCP tool.
type DiagnoseFailureTool struct{}

// NewDiagnoseFailureTool creates a DiagnoseFailureTool.
func NewDiagnoseFailureTool() *DiagnoseFailureTool {
	return &DiagnoseFailureTool{}
}

// Definition returns the MCP tool definition for diagnose_failure.
func (t *DiagnoseFailureTool) Definition() mcp.Tool {
	return mcp.NewTool("diagnose_failure",
		mcp.WithDescription(
			"Match a failure symptom (validation evidence, error text) against a fixed "+
				"rule table of known pipeline failure modes. Suggestions are advisory hints, "+
				"not conclusions.",
		),
		mcp.WithString("symptom",
			mcp.Required(),
			mcp.Description("The failure text to diagnose, e.g. a failed condition's evidence"),
		),
	)
}

// Handle processes the diagnose_failure tool call.
func (t *DiagnoseFailureTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	symptom := req.GetString("symptom", "")
	if strings.TrimSpace(symptom) == "" {
		return mcp.NewToolResultError("'symptom' is required"), nil
	}

	matches := validate.Diagnose(symptom)
	if len(matches) == 0 {
		return mcp.NewToolResultText(
			"No known failure mode matches this symptom. That does not mean nothing is wrong — " +
				"inspect the stage output directly.",
		), nil
	}
	return jsonResult(map[string]any{
		"symptom":   symptom,
		"diagnoses": matches,
		"note":      "advisory rule-table matches, most specific first",
	}), nil
}

// ─── RecordSuccessPatternTool ───────────────────────────────────────────────

// RecordSuccessPatternTool handles the record_success_pattern MCP tool.
// Patterns are ordinary `pattern` entities: the approach that worked is the
// observation, the stage and source live in attributes.
type RecordSuccessPatternTool struct {
	store *graph.Store
}

// NewRecordSuccessPatternTool creates a RecordSuccessPatternTool.
func NewRecordSuccessPatternTool(store *graph.Store) *RecordSuccessPatternTool {
	return &RecordSuccessPatternTool{store: store}
}

// Definition returns the MCP tool definition for record_success_pattern.
func (t *RecordSuccessPatternTool) Definition() mcp.Tool {
	return mcp.NewTool("record_success_pattern",
		mcp.WithDescription(
			"Record an approach that worked (selector, pagination trick, retry policy) as a "+
				"`pattern` entity so later runs can look it up. Repeat recordings of the same "+
				"pattern name append observations instead of duplicating.",
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Short pattern name, e.g. 'bat-gallery-pagination'"),
		),
		mcp.WithString("description",
			mcp.Required(),
			mcp.Description("What worked and why"),
		),
		mcp.WithString("stage",
			mcp.Description("Pipeline stage the pattern applies to"),
		),
		mcp.WithString("source_id",
			mcp.Description("Source entity to link via discovered_pattern"),
		),
	)
}

// Handle processes the record_success_pattern tool call.
func (t *RecordSuccessPatternTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	description := req.GetString("description", "")
	if name == "" {
		return mcp.NewToolResultError("'name' is required"), nil
	}
	if description == "" {
		return mcp.NewToolResultError("'description' is required"), nil
	}

	attrs := map[string]any{}
	if stage := req.GetString("stage", ""); stage != "" {
		attrs["stage"] = stage
	}

	pattern, created, err := t.store.CreateEntity(graph.CreateEntityParams{
		Type:       graph.TypePattern,
		Name:       name,
		Attributes: attrs,
		Upsert:     true,
	})
	if err != nil {
		return toolError(err), nil
	}

	if _, err := t.store.AddObservation(pattern.ID, description); err != nil {
		return toolError(err), nil
	}

	linked := ""
	if sourceID := req.GetString("source_id", ""); sourceID != "" {
		if _, _, err := t.store.CreateRelation(sourceID, pattern.ID, graph.RelDiscoveredPattern); err != nil {
			return toolError(err), nil
		}
		linked = fmt.Sprintf(", linked from %s", sourceID)
	}

	verb := "updated"
	if created {
		verb = "recorded"
	}
	return mcp.NewToolResultText(
		fmt.Sprintf("Pattern %s: %s (%s)%s", verb, pattern.Name, pattern.ID, linked),
	), nil
}

// ─── GetSuccessPatternsTool ─────────────────────────────────────────────────

// GetSuccessPatternsTool handles the get_success_patterns MCP tool.
type GetSuccessPatternsTool struct {
	store *graph.Store
}

// NewGetSuccessPatternsTool creates a GetSuccessPatternsTool.
func NewGetSuccessPatternsTool(store *graph.Store) *GetSuccessPatternsTool {
	return &GetSuccessPatternsTool{store: store}
}

// Definition returns the MCP tool definition for get_success_patterns.
func (t *GetSuccessPatternsTool) Definition() mcp.Tool {
	return mcp.NewTool("get_success_patterns",
		mcp.WithDescription(
			"List recorded success patterns with their observation history, optionally "+
				"filtered by pipeline stage.",
		),
		mcp.WithString("stage",
			mcp.Description("Only patterns recorded for this stage"),
		),
		mcp.WithString("name_pattern",
			mcp.Description("SQL LIKE filter on pattern name"),
		),
	)
}

// Handle processes the get_success_patterns tool call.
func (t *GetSuccessPatternsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	patterns, err := t.store.ListEntities(graph.EntityFilter{
		Type:        graph.TypePattern,
		NamePattern: req.GetString("name_pattern", ""),
	})
	if err != nil {
		return toolError(err), nil
	}

	stage := req.GetString("stage", "")

	type patternEntry struct {
		Entity       graph.Entity        `json:"entity"`
		Observations []graph.Observation `json:"observations"`
	}

	var entries []patternEntry
	for _, p := range patterns {
		if stage != "" {
			s, _ := p.Attributes["stage"].(string)
			if s != stage {
				continue
			}
		}
		obs, err := t.store.Observations(p.ID)
		if err != nil {
			return toolError(err), nil
		}
		entries = append(entries, patternEntry{Entity: p, Observations: obs})
	}

	if len(entries) == 0 {
		return mcp.NewToolResultText("No success patterns recorded yet."), nil
	}
	return jsonResult(entries), nil
}
