// Package prompts implements MCP prompt handlers for Fylo Core.
package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the pipeline-status MCP prompt.
// It instructs the AI to gather and present the scraping pipeline state.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("pipeline-status",
		mcp.WithPromptDescription(
			"Review the scraping pipeline: per-source progress, graph contents, "+
				"and validation state, with suggested next steps.",
		),
	)
}

// Handle processes the pipeline-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Pipeline Status Review",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `get_pipeline_status` and `get_graph_stats`.\n\n" +
						"Then:\n" +
						"1. Summarize per-source progress against the pipeline counters\n" +
						"2. Flag sources whose graph counts lag their counters (ingestion behind)\n" +
						"3. For any lagging source, run `validate_pipeline_stage` with stage=all and report deficiencies\n" +
						"4. Tell me exactly which stage to re-run next, per source",
				),
			},
		},
	}, nil
}
