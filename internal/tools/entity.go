package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/fylo-labs/fylo-core-mcp/internal/graph"
	"github.com/mark3labs/mcp-go/mcp"
)

// ─── CreateEntityTool ───────────────────────────────────────────────────────

// CreateEntityTool handles the create_entity MCP tool.
type CreateEntityTool struct {
	store *graph.Store
}

// NewCreateEntityTool creates a CreateEntityTool with the given store.
func NewCreateEntityTool(store *graph.Store) *CreateEntityTool {
	return &CreateEntityTool{store: store}
}

// Definition returns the MCP tool definition for create_entity.
func (t *CreateEntityTool) Definition() mcp.Tool {
	return mcp.NewTool("create_entity",
		mcp.WithDescription(
			"Create a typed entity in the knowledge graph. "+
				"Types: source, url, build, modification, category, pattern. "+
				"Without upsert, creating a second entity with the same type and name is rejected.",
		),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("Entity type: source, url, build, modification, category, pattern"),
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Human-readable entity name, unique within its type"),
		),
		mcp.WithString("id",
			mcp.Description("Optional stable id; derived from type and name when omitted"),
		),
		mcp.WithObject("attributes",
			mcp.Description("Free-form attribute object for this entity"),
		),
		mcp.WithBoolean("upsert",
			mcp.Description("If true, merge attributes into an existing entity instead of failing (default: false)"),
		),
	)
}

// Handle processes the create_entity tool call.
func (t *CreateEntityTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entityType := req.GetString("type", "")
	name := req.GetString("name", "")
	if entityType == "" {
		return mcp.NewToolResultError("'type' is required"), nil
	}
	if strings.TrimSpace(name) == "" {
		return mcp.NewToolResultError("'name' is required"), nil
	}

	entity, created, err := t.store.CreateEntity(graph.CreateEntityParams{
		Type:       entityType,
		Name:       name,
		ID:         req.GetString("id", ""),
		Attributes: mapArg(req, "attributes"),
		Upsert:     boolArg(req, "upsert", false),
	})
	if err != nil {
		return toolError(err), nil
	}

	verb := "updated"
	if created {
		verb = "created"
	}
	return jsonResult(map[string]any{
		"status": verb,
		"entity": entity,
	}), nil
}

// ─── AddObservationTool ─────────────────────────────────────────────────────

// AddObservationTool handles the add_observation MCP tool.
type AddObservationTool struct {
	store *graph.Store
}

// NewAddObservationTool creates an AddObservationTool with the given store.
func NewAddObservationTool(store *graph.Store) *AddObservationTool {
	return &AddObservationTool{store: store}
}

// Definition returns the MCP tool definition for add_observation.
func (t *AddObservationTool) Definition() mcp.Tool {
	return mcp.NewTool("add_observation",
		mcp.WithDescription(
			"Append a timestamped free-form note to an existing entity. "+
				"Observations are append-only; use them to record what was learned about an entity over time.",
		),
		mcp.WithString("entity_id",
			mcp.Required(),
			mcp.Description("Id of the entity to annotate"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The note text"),
		),
	)
}

// Handle processes the add_observation tool call.
func (t *AddObservationTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entityID := req.GetString("entity_id", "")
	content := req.GetString("content", "")
	if entityID == "" {
		return mcp.NewToolResultError("'entity_id' is required"), nil
	}
	if strings.TrimSpace(content) == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}

	obs, err := t.store.AddObservation(entityID, content)
	if err != nil {
		return toolError(err), nil
	}

	return mcp.NewToolResultText(
		fmt.Sprintf("Observation #%d added to %s", obs.ID, entityID),
	), nil
}
