package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/fylo-labs/fylo-core-mcp/internal/graph"
	"github.com/mark3labs/mcp-go/mcp"
)

// CreateRelationTool handles the create_relation MCP tool.
type CreateRelationTool struct {
	store *graph.Store
}

// NewCreateRelationTool creates a CreateRelationTool with the given store.
func NewCreateRelationTool(store *graph.Store) *CreateRelationTool {
	return &CreateRelationTool{store: store}
}

// Definition returns the MCP tool definition for create_relation.
func (t *CreateRelationTool) Definition() mcp.Tool {
	return mcp.NewTool("create_relation",
		mcp.WithDescription(
			"Create a typed directed edge between two existing entities. "+
				"Types: "+strings.Join(graph.RelationTypes, ", ")+". "+
				"Each type only connects specific entity types (e.g. has_modification is build → modification). "+
				"Creating the same edge twice is a no-op.",
		),
		mcp.WithString("from_id",
			mcp.Required(),
			mcp.Description("Source entity id"),
		),
		mcp.WithString("to_id",
			mcp.Required(),
			mcp.Description("Target entity id"),
		),
		mcp.WithString("relation_type",
			mcp.Required(),
			mcp.Description("Relation type: "+strings.Join(graph.RelationTypes, ", ")),
		),
	)
}

// Handle processes the create_relation tool call.
func (t *CreateRelationTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fromID := req.GetString("from_id", "")
	toID := req.GetString("to_id", "")
	relType := req.GetString("relation_type", "")
	if fromID == "" {
		return mcp.NewToolResultError("'from_id' is required"), nil
	}
	if toID == "" {
		return mcp.NewToolResultError("'to_id' is required"), nil
	}
	if relType == "" {
		return mcp.NewToolResultError("'relation_type' is required"), nil
	}

	rel, created, err := t.store.CreateRelation(fromID, toID, relType)
	if err != nil {
		return toolError(err), nil
	}

	if !created {
		return mcp.NewToolResultText(
			fmt.Sprintf("Relation already exists: %s → %s (%s), id %d",
				fromID, toID, relType, rel.ID),
		), nil
	}
	return mcp.NewToolResultText(
		fmt.Sprintf("Relation created: %s → %s (%s), id %d",
			fromID, toID, relType, rel.ID),
	), nil
}
