package tools

import (
	"context"

	"github.com/fylo-labs/fylo-core-mcp/internal/config"
	"github.com/fylo-labs/fylo-core-mcp/internal/score"
	"github.com/mark3labs/mcp-go/mcp"
)

// ─── QualityReportTool ──────────────────────────────────────────────────────

// QualityReportTool handles the get_quality_report MCP tool.
type QualityReportTool struct {
	scorer *score.Scorer
	cfg    config.Config
}

// NewQualityReportTool creates a QualityReportTool.
func NewQualityReportTool(scorer *score.Scorer, cfg config.Config) *QualityReportTool {
	return &QualityReportTool{scorer: scorer, cfg: cfg}
}

// Definition returns the MCP tool definition for get_quality_report.
func (t *QualityReportTool) Definition() mcp.Tool {
	return mcp.NewTool("get_quality_report",
		mcp.WithDescription(
			"Score every pipeline stage 0–100 from its validation battery and compute the "+
				"weighted overall score. Stages with no applicable conditions are reported as "+
				"unscored, not 100. Includes the failed conditions as concrete deficiencies.",
		),
		mcp.WithString("source_dir",
			mcp.Description("Artifact directory to score"),
		),
		mcp.WithString("source",
			mcp.Description("Source name; resolves to <pipeline_root>/sources/<source>"),
		),
	)
}

// Handle processes the get_quality_report tool call.
func (t *QualityReportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir, errResult := resolveSourceDir(req, t.cfg)
	if errResult != nil {
		return errResult, nil
	}

	report, err := t.scorer.Report(dir)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(report), nil
}

// ─── VerifyStoryTool ────────────────────────────────────────────────────────

// VerifyStoryTool handles the verify_story_complete MCP tool.
type VerifyStoryTool struct {
	scorer *score.Scorer
	cfg    config.Config
}

// NewVerifyStoryTool creates a VerifyStoryTool.
func NewVerifyStoryTool(scorer *score.Scorer, cfg config.Config) *VerifyStoryTool {
	return &VerifyStoryTool{scorer: scorer, cfg: cfg}
}

// Definition returns the MCP tool definition for verify_story_complete.
func (t *VerifyStoryTool) Definition() mcp.Tool {
	return mcp.NewTool("verify_story_complete",
		mcp.WithDescription(
			"Check whether a source's scraping story is done: every stage battery must pass "+
				"AND the graph must hold the builds the pipeline counters promise. Runs fresh — "+
				"never reports from stale results.",
		),
		mcp.WithString("source_id",
			mcp.Required(),
			mcp.Description("Graph id of the source entity"),
		),
		mcp.WithString("source_dir",
			mcp.Description("Artifact directory to validate"),
		),
		mcp.WithString("source",
			mcp.Description("Source name; resolves to <pipeline_root>/sources/<source>"),
		),
	)
}

// Handle processes the verify_story_complete tool call.
func (t *VerifyStoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceID := req.GetString("source_id", "")
	if sourceID == "" {
		return mcp.NewToolResultError("'source_id' is required"), nil
	}
	dir, errResult := resolveSourceDir(req, t.cfg)
	if errResult != nil {
		return errResult, nil
	}

	completion, err := t.scorer.VerifyStoryComplete(dir, sourceID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(completion), nil
}

// ─── CompletionProofTool ────────────────────────────────────────────────────

// CompletionProofTool handles the get_completion_proof MCP tool.
type CompletionProofTool struct {
	scorer *score.Scorer
	cfg    config.Config
}

// NewCompletionProofTool creates a CompletionProofTool.
func NewCompletionProofTool(scorer *score.Scorer, cfg config.Config) *CompletionProofTool {
	return &CompletionProofTool{scorer: scorer, cfg: cfg}
}

// Definition returns the MCP tool definition for get_completion_proof.
func (t *CompletionProofTool) Definition() mcp.Tool {
	return mcp.NewTool("get_completion_proof",
		mcp.WithDescription(
			"Render a markdown completion proof for a source: per-stage scores, graph "+
				"cross-checks, and any deficiencies, from a fresh verification run.",
		),
		mcp.WithString("source_id",
			mcp.Required(),
			mcp.Description("Graph id of the source entity"),
		),
		mcp.WithString("source_dir",
			mcp.Description("Artifact directory to validate"),
		),
		mcp.WithString("source",
			mcp.Description("Source name; resolves to <pipeline_root>/sources/<source>"),
		),
	)
}

// Handle processes the get_completion_proof tool call.
func (t *CompletionProofTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceID := req.GetString("source_id", "")
	if sourceID == "" {
		return mcp.NewToolResultError("'source_id' is required"), nil
	}
	dir, errResult := resolveSourceDir(req, t.cfg)
	if errResult != nil {
		return errResult, nil
	}

	proof, err := t.scorer.Proof(dir, sourceID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(proof), nil
}
