package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fylo-labs/fylo-core-mcp/internal/config"
	"github.com/fylo-labs/fylo-core-mcp/internal/ingest"
	"github.com/mark3labs/mcp-go/mcp"
)

// ─── SyncSourcesTool ────────────────────────────────────────────────────────

// SyncSourcesTool handles the sync_ralph_sources MCP tool.
type SyncSourcesTool struct {
	ingestor *ingest.Ingestor
	cfg      config.Config
}

// NewSyncSourcesTool creates a SyncSourcesTool.
func NewSyncSourcesTool(ingestor *ingest.Ingestor, cfg config.Config) *SyncSourcesTool {
	return &SyncSourcesTool{ingestor: ingestor, cfg: cfg}
}

// Definition returns the MCP tool definition for sync_ralph_sources.
func (t *SyncSourcesTool) Definition() mcp.Tool {
	return mcp.NewTool("sync_ralph_sources",
		mcp.WithDescription(
			"Upsert a `source` entity per record from the pipeline's sources.json "+
				"(or from an inline 'sources' array). Keyed by external id, so re-running "+
				"with unchanged input creates nothing new.",
		),
		mcp.WithString("pipeline_root",
			mcp.Description("Directory containing sources.json (default: configured pipeline root)"),
		),
		mcp.WithArray("sources",
			mcp.Description("Inline source records; when given, sources.json is not read"),
		),
	)
}

// Handle processes the sync_ralph_sources tool call.
func (t *SyncSourcesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var records []ingest.SourceRecord

	if inline := sliceArg(req, "sources"); inline != nil {
		// Round-trip through JSON so inline records share the file schema.
		data, err := json.Marshal(inline)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid 'sources': %v", err)), nil
		}
		if err := json.Unmarshal(data, &records); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid 'sources': %v", err)), nil
		}
	} else {
		root := req.GetString("pipeline_root", t.cfg.PipelineRoot)
		var err error
		records, err = ingest.ReadSources(root)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("reading sources: %v", err)), nil
		}
	}

	result, err := t.ingestor.SyncSources(records)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(result), nil
}

// ─── IngestBuildsTool ───────────────────────────────────────────────────────

// IngestBuildsTool handles the ingest_builds MCP tool.
type IngestBuildsTool struct {
	ingestor *ingest.Ingestor
	cfg      config.Config
}

// NewIngestBuildsTool creates an IngestBuildsTool.
func NewIngestBuildsTool(ingestor *ingest.Ingestor, cfg config.Config) *IngestBuildsTool {
	return &IngestBuildsTool{ingestor: ingestor, cfg: cfg}
}

// Definition returns the MCP tool definition for ingest_builds.
func (t *IngestBuildsTool) Definition() mcp.Tool {
	return mcp.NewTool("ingest_builds",
		mcp.WithDescription(
			"Ingest a batch of extracted builds under a source entity: upserts build "+
				"entities, contains_build edges from the source, and modification entities "+
				"with has_modification edges. Reads builds.json/builds.jsonl from the "+
				"source directory unless inline 'builds' are given. Malformed records are "+
				"reported per record; the batch continues.",
		),
		mcp.WithString("source_id",
			mcp.Required(),
			mcp.Description("Id of the source entity the builds belong to"),
		),
		mcp.WithString("source_dir",
			mcp.Description("Directory containing builds.json/builds.jsonl (default: <pipeline_root>/sources/<source>)"),
		),
		mcp.WithString("source",
			mcp.Description("Source name used to resolve the default source directory"),
		),
		mcp.WithArray("builds",
			mcp.Description("Inline build records; when given, no file is read"),
		),
	)
}

// Handle processes the ingest_builds tool call.
func (t *IngestBuildsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceID := req.GetString("source_id", "")
	if sourceID == "" {
		return mcp.NewToolResultError("'source_id' is required"), nil
	}

	var records []ingest.BuildRecord
	var readErrs []error

	if inline := sliceArg(req, "builds"); inline != nil {
		data, err := json.Marshal(inline)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid 'builds': %v", err)), nil
		}
		if err := json.Unmarshal(data, &records); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid 'builds': %v", err)), nil
		}
	} else {
		dir := req.GetString("source_dir", "")
		if dir == "" {
			source := req.GetString("source", "")
			if source == "" {
				return mcp.NewToolResultError("'source_dir', 'source', or inline 'builds' is required"), nil
			}
			dir = t.cfg.SourceDir(source)
		}
		var err error
		records, readErrs, err = ingest.ReadBuilds(dir)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("reading builds: %v", err)), nil
		}
	}

	result, err := t.ingestor.IngestBuilds(sourceID, records)
	if err != nil {
		return toolError(err), nil
	}
	for _, e := range readErrs {
		result.Errors = append(result.Errors, e.Error())
	}
	return jsonResult(result), nil
}

// ─── PipelineStatusTool ─────────────────────────────────────────────────────

// PipelineStatusTool handles the get_pipeline_status MCP tool.
type PipelineStatusTool struct {
	ingestor *ingest.Ingestor
	cfg      config.Config
}

// NewPipelineStatusTool creates a PipelineStatusTool.
func NewPipelineStatusTool(ingestor *ingest.Ingestor, cfg config.Config) *PipelineStatusTool {
	return &PipelineStatusTool{ingestor: ingestor, cfg: cfg}
}

// Definition returns the MCP tool definition for get_pipeline_status.
func (t *PipelineStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("get_pipeline_status",
		mcp.WithDescription(
			"Per-source pipeline progress: the counters from sources.json "+
				"(expectedUrls, urlsFound, htmlScraped, builds, mods) joined with the "+
				"graph's ingested counts for each source.",
		),
		mcp.WithString("pipeline_root",
			mcp.Description("Directory containing sources.json (default: configured pipeline root)"),
		),
	)
}

// Handle processes the get_pipeline_status tool call.
func (t *PipelineStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root := req.GetString("pipeline_root", t.cfg.PipelineRoot)
	statuses, err := t.ingestor.PipelineStatus(root)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("pipeline status: %v", err)), nil
	}
	return jsonResult(statuses), nil
}
