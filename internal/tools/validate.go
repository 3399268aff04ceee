package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fylo-labs/fylo-core-mcp/internal/config"
	"github.com/fylo-labs/fylo-core-mcp/internal/validate"
	"github.com/mark3labs/mcp-go/mcp"
)

// resolveSourceDir picks the explicit source_dir argument or derives it
// from the source name under the pipeline root.
func resolveSourceDir(req mcp.CallToolRequest, cfg config.Config) (string, *mcp.CallToolResult) {
	if dir := req.GetString("source_dir", ""); dir != "" {
		return dir, nil
	}
	if source := req.GetString("source", ""); source != "" {
		return cfg.SourceDir(source), nil
	}
	return "", mcp.NewToolResultError("'source_dir' or 'source' is required")
}

// ─── ValidateStageTool ──────────────────────────────────────────────────────

// ValidateStageTool handles the validate_pipeline_stage MCP tool.
type ValidateStageTool struct {
	validator *validate.Validator
	cfg       config.Config
}

// NewValidateStageTool creates a ValidateStageTool.
func NewValidateStageTool(validator *validate.Validator, cfg config.Config) *ValidateStageTool {
	return &ValidateStageTool{validator: validator, cfg: cfg}
}

// Definition returns the MCP tool definition for validate_pipeline_stage.
func (t *ValidateStageTool) Definition() mcp.Tool {
	return mcp.NewTool("validate_pipeline_stage",
		mcp.WithDescription(
			"Run the fixed condition battery for a pipeline stage against a source's "+
				"artifact directory. Stages: url_discovery, html_scrape, build_extraction, "+
				"mod_extraction, or all. A failed condition is a result with evidence, not an error.",
		),
		mcp.WithString("stage",
			mcp.Required(),
			mcp.Description("Stage to validate: url_discovery, html_scrape, build_extraction, mod_extraction, all"),
		),
		mcp.WithString("source_dir",
			mcp.Description("Artifact directory to validate"),
		),
		mcp.WithString("source",
			mcp.Description("Source name; resolves to <pipeline_root>/sources/<source>"),
		),
	)
}

// Handle processes the validate_pipeline_stage tool call.
func (t *ValidateStageTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stage := req.GetString("stage", "")
	if stage == "" {
		return mcp.NewToolResultError("'stage' is required"), nil
	}
	dir, errResult := resolveSourceDir(req, t.cfg)
	if errResult != nil {
		return errResult, nil
	}

	report, err := t.validator.ValidateStage(dir, stage)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(report), nil
}

// ─── AssertConditionTool ────────────────────────────────────────────────────

// AssertConditionTool handles the assert_condition MCP tool.
type AssertConditionTool struct{}

// NewAssertConditionTool creates an AssertConditionTool.
func NewAssertConditionTool() *AssertConditionTool {
	return &AssertConditionTool{}
}

// Definition returns the MCP tool definition for assert_condition.
func (t *AssertConditionTool) Definition() mcp.Tool {
	return mcp.NewTool("assert_condition",
		mcp.WithDescription(
			"Evaluate one condition against an on-disk artifact. Conditions: "+
				"file_exists, dir_exists, json_valid, count_gte, field_nonempty. "+
				"Missing or unparseable targets fail closed with evidence.",
		),
		mcp.WithString("condition",
			mcp.Required(),
			mcp.Description("Condition name"),
		),
		mcp.WithString("target",
			mcp.Required(),
			mcp.Description("File or directory path to evaluate"),
		),
		mcp.WithString("field",
			mcp.Description("Dotted field path into a JSON document (e.g. 'urls' or 'meta.count')"),
		),
		mcp.WithNumber("min",
			mcp.Description("Threshold for count_gte"),
		),
	)
}

// Handle processes the assert_condition tool call.
func (t *AssertConditionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	condition := req.GetString("condition", "")
	target := req.GetString("target", "")
	if condition == "" {
		return mcp.NewToolResultError("'condition' is required"), nil
	}
	if target == "" {
		return mcp.NewToolResultError("'target' is required"), nil
	}

	result := validate.Evaluate(validate.Assertion{
		Condition: condition,
		Target:    target,
		Field:     req.GetString("field", ""),
		Min:       intArg(req, "min", 0),
	})
	return jsonResult(result), nil
}

// ─── AssertBatchTool ────────────────────────────────────────────────────────

// AssertBatchTool handles the assert_batch MCP tool.
type AssertBatchTool struct{}

// NewAssertBatchTool creates an AssertBatchTool.
func NewAssertBatchTool() *AssertBatchTool {
	return &AssertBatchTool{}
}

// Definition returns the MCP tool definition for assert_batch.
func (t *AssertBatchTool) Definition() mcp.Tool {
	return mcp.NewTool("assert_batch",
		mcp.WithDescription(
			"Evaluate a list of conditions independently — one failing assertion never "+
				"stops the rest. Use for acceptance criteria the fixed stage batteries "+
				"don't anticipate. Each item: {condition, target, field?, min?}.",
		),
		mcp.WithArray("assertions",
			mcp.Required(),
			mcp.Description("Array of assertion objects"),
		),
	)
}

// Handle processes the assert_batch tool call.
func (t *AssertBatchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := sliceArg(req, "assertions")
	if raw == nil {
		return mcp.NewToolResultError("'assertions' is required"), nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid 'assertions': %v", err)), nil
	}
	var assertions []validate.Assertion
	if err := json.Unmarshal(data, &assertions); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid 'assertions': %v", err)), nil
	}

	results := validate.EvaluateBatch(assertions)
	passed := 0
	for _, r := range results {
		if r.Passed {
			passed++
		}
	}
	return jsonResult(map[string]any{
		"passed":  passed,
		"failed":  len(results) - passed,
		"results": results,
	}), nil
}
