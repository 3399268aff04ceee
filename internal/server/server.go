// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it loads configuration, opens the graph
// store, and injects both into the tools/resources/prompts that depend on
// them. No business logic lives here, only wiring.
package server

import (
	"fmt"

	"github.com/fylo-labs/fylo-core-mcp/internal/config"
	"github.com/fylo-labs/fylo-core-mcp/internal/export"
	"github.com/fylo-labs/fylo-core-mcp/internal/graph"
	"github.com/fylo-labs/fylo-core-mcp/internal/ingest"
	"github.com/fylo-labs/fylo-core-mcp/internal/prompts"
	"github.com/fylo-labs/fylo-core-mcp/internal/resources"
	"github.com/fylo-labs/fylo-core-mcp/internal/score"
	"github.com/fylo-labs/fylo-core-mcp/internal/tools"
	"github.com/fylo-labs/fylo-core-mcp/internal/validate"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools, resources, and
// prompts registered. The returned cleanup function closes the graph
// store's database connection and must be called on shutdown.
func New(cfg config.Config) (*server.MCPServer, func(), error) {
	store, err := graph.Open(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening graph store: %w", err)
	}
	cleanup := func() { _ = store.Close() }

	validator := validate.New(cfg.Scoring)
	ingestor := ingest.New(store)
	scorer := score.New(validator, cfg.Scoring, store)
	exporter := export.New(store)

	s := server.NewMCPServer(
		"fylo-core",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Graph tools ---

	createEntity := tools.NewCreateEntityTool(store)
	s.AddTool(createEntity.Definition(), createEntity.Handle)

	addObservation := tools.NewAddObservationTool(store)
	s.AddTool(addObservation.Definition(), addObservation.Handle)

	createRelation := tools.NewCreateRelationTool(store)
	s.AddTool(createRelation.Definition(), createRelation.Handle)

	queryGraph := tools.NewQueryGraphTool(store)
	s.AddTool(queryGraph.Definition(), queryGraph.Handle)

	graphStats := tools.NewGraphStatsTool(store)
	s.AddTool(graphStats.Definition(), graphStats.Handle)

	// --- Ingestion tools ---

	syncSources := tools.NewSyncSourcesTool(ingestor, cfg)
	s.AddTool(syncSources.Definition(), syncSources.Handle)

	ingestBuilds := tools.NewIngestBuildsTool(ingestor, cfg)
	s.AddTool(ingestBuilds.Definition(), ingestBuilds.Handle)

	pipelineStatus := tools.NewPipelineStatusTool(ingestor, cfg)
	s.AddTool(pipelineStatus.Definition(), pipelineStatus.Handle)

	// --- Validation tools ---

	validateStage := tools.NewValidateStageTool(validator, cfg)
	s.AddTool(validateStage.Definition(), validateStage.Handle)

	assertCondition := tools.NewAssertConditionTool()
	s.AddTool(assertCondition.Definition(), assertCondition.Handle)

	assertBatch := tools.NewAssertBatchTool()
	s.AddTool(assertBatch.Definition(), assertBatch.Handle)

	// --- Quality tools ---

	qualityReport := tools.NewQualityReportTool(scorer, cfg)
	s.AddTool(qualityReport.Definition(), qualityReport.Handle)

	verifyStory := tools.NewVerifyStoryTool(scorer, cfg)
	s.AddTool(verifyStory.Definition(), verifyStory.Handle)

	completionProof := tools.NewCompletionProofTool(scorer, cfg)
	s.AddTool(completionProof.Definition(), completionProof.Handle)

	// --- Diagnosis & patterns ---

	diagnose := tools.NewDiagnoseFailureTool()
	s.AddTool(diagnose.Definition(), diagnose.Handle)

	recordPattern := tools.NewRecordSuccessPatternTool(store)
	s.AddTool(recordPattern.Definition(), recordPattern.Handle)

	getPatterns := tools.NewGetSuccessPatternsTool(store)
	s.AddTool(getPatterns.Definition(), getPatterns.Handle)

	// --- Export tools ---

	exportDuckDB := tools.NewExportDuckDBTool(exporter, cfg)
	s.AddTool(exportDuckDB.Definition(), exportDuckDB.Handle)

	visualize := tools.NewVisualizeGraphTool(exporter)
	s.AddTool(visualize.Definition(), visualize.Handle)

	// --- Resources & prompts ---

	resourceHandler := resources.NewHandler(store)
	s.AddResource(resourceHandler.StatsResource(), resourceHandler.HandleStats)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	return s, cleanup, nil
}

// serverInstructions returns the system instructions that tell the agent
// how to use Fylo Core effectively.
func serverInstructions() string {
	return `You have access to Fylo Core, a knowledge-graph server for the vehicle-build
scraping pipeline. It tracks sources, discovered URLs, extracted builds and
modifications as typed entities with typed relations, validates each pipeline
stage's artifacts, and scores overall quality.

## Workflow

1. sync_ralph_sources — register/update source entities from sources.json.
   Run this before anything else so sources exist in the graph.
2. After a scraping stage finishes for a source, run validate_pipeline_stage
   with that stage. A failed condition includes evidence — feed it to
   diagnose_failure for suggested fixes.
3. After build extraction, run ingest_builds to load builds and their
   modifications into the graph. Per-record errors are reported; the batch
   continues, so check the errors list.
4. Use get_quality_report for a scored view and get_pipeline_status for the
   per-source counter/graph comparison.
5. Before marking a source done, run verify_story_complete; attach the
   get_completion_proof output to the story.

## Graph conventions

- Entity types: source, url, build, modification, category, pattern.
- Relation types: has_url (source→url), contains_build (source→build),
  has_modification (build→modification), belongs_to (→category),
  discovered_pattern (→pattern).
- Entity ids look like "build:1987-porsche-911". Creating the same relation
  twice is a no-op, so re-running ingestion is always safe.
- query_graph walks outward from a filtered seed set; depth=1 from a source
  returns its direct builds/urls.

## Recording knowledge

- When an extraction approach works (a selector, a pagination trick), save it
  with record_success_pattern and link it to the source. Check
  get_success_patterns before attacking a similar site.
- Use add_observation to note anything learned about an entity (rate limits,
  layout quirks, data oddities).

## Important

- Validation failures are expected outcomes, not errors: read the evidence.
- assert_condition / assert_batch cover acceptance criteria the fixed stage
  batteries don't anticipate.
- diagnose_failure is advisory — rule-table hints, not conclusions.`
}
