// Package tools provides the MCP tool handlers for Fylo Core.
//
// Each tool follows the same pattern:
// - A struct with dependencies (graph store, ingestor, validator, ...)
//   injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// Domain failures (not found, duplicates, failed validations) come back as
// tool results so the orchestrator can react; only storage failures are
// labeled as such, distinctly.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fylo-labs/fylo-core-mcp/internal/graph"
	"github.com/mark3labs/mcp-go/mcp"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// mapArg extracts an object argument from a tool request.
func mapArg(req mcp.CallToolRequest, key string) map[string]any {
	v, ok := req.GetArguments()[key].(map[string]any)
	if !ok {
		return nil
	}
	return v
}

// sliceArg extracts an array argument from a tool request.
func sliceArg(req mcp.CallToolRequest, key string) []any {
	v, ok := req.GetArguments()[key].([]any)
	if !ok {
		return nil
	}
	return v
}

// jsonResult marshals v as indented JSON into a text tool result.
func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// toolError converts a store/engine error into a tool error result,
// labeling storage failures distinctly from domain rejections.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, graph.ErrNotFound),
		errors.Is(err, graph.ErrDuplicateEntity),
		errors.Is(err, graph.ErrInvalidEntityType),
		errors.Is(err, graph.ErrInvalidRelationType),
		errors.Is(err, graph.ErrSemanticMismatch):
		return mcp.NewToolResultError(err.Error())
	default:
		return mcp.NewToolResultError(fmt.Sprintf("storage failure: %v", err))
	}
}
