package score

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fylo-labs/fylo-core-mcp/internal/config"
	"github.com/fylo-labs/fylo-core-mcp/internal/graph"
	"github.com/fylo-labs/fylo-core-mcp/internal/validate"
)

func newTestScorer(t *testing.T) (*Scorer, *graph.Store) {
	t.Helper()
	store, err := graph.Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	scoring := config.Default().Scoring
	return New(validate.New(scoring), scoring, store), store
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// writeCompleteSource lays out a source dir that passes every stage battery
// under the default scoring table.
func writeCompleteSource(t *testing.T, dir string) {
	t.Helper()
	urls := make([]map[string]string, 50)
	for i := range urls {
		urls[i] = map[string]string{"url": fmt.Sprintf("https://example.com/%d", i)}
	}
	data, _ := json.Marshal(map[string]any{"urls": urls})
	writeFile(t, filepath.Join(dir, "urls.json"), string(data))

	for i := 0; i < 50; i++ {
		writeFile(t, filepath.Join(dir, "html", fmt.Sprintf("page-%d.html", i)), "<html></html>")
	}

	writeFile(t, filepath.Join(dir, "builds.json"),
		`{"builds": [{"title": "Safari 911", "modifications": ["lift kit", "skid plate"]}]}`)
}

func TestReport_CompleteSourcePasses(t *testing.T) {
	scorer, _ := newTestScorer(t)
	dir := t.TempDir()
	writeCompleteSource(t, dir)

	report, err := scorer.Report(dir)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if report.Overall == nil || *report.Overall != 100 {
		t.Fatalf("overall = %v, want 100", report.Overall)
	}
	if !report.Passed {
		t.Error("complete source should pass")
	}
	if len(report.Deficiencies) != 0 {
		t.Errorf("deficiencies = %+v", report.Deficiencies)
	}
	if len(report.Stages) != len(config.StageOrder) {
		t.Errorf("got %d stages, want %d", len(report.Stages), len(config.StageOrder))
	}
	for _, ss := range report.Stages {
		if ss.Score == nil || *ss.Score != 100 {
			t.Errorf("stage %s score = %v, want 100", ss.Stage, ss.Score)
		}
	}
}

func TestReport_EmptySourceScoresZero(t *testing.T) {
	scorer, _ := newTestScorer(t)

	report, err := scorer.Report(t.TempDir())
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if report.Passed {
		t.Error("empty source should not pass")
	}
	if report.Overall == nil {
		t.Fatal("every battery ran, so the overall score should exist")
	}
	if *report.Overall != 0 {
		t.Errorf("overall = %v, want 0", *report.Overall)
	}
	if len(report.Deficiencies) == 0 {
		t.Error("expected deficiencies for every failed condition")
	}
	// Deficiencies come out in stage order.
	if report.Deficiencies[0].Stage != config.StageURLDiscovery {
		t.Errorf("first deficiency stage = %s", report.Deficiencies[0].Stage)
	}
}

func TestReport_WeightedMean(t *testing.T) {
	scorer, _ := newTestScorer(t)
	dir := t.TempDir()
	// URL discovery fully passes; everything downstream is missing.
	urls := make([]map[string]string, 50)
	for i := range urls {
		urls[i] = map[string]string{"url": fmt.Sprintf("https://example.com/%d", i)}
	}
	data, _ := json.Marshal(map[string]any{"urls": urls})
	writeFile(t, filepath.Join(dir, "urls.json"), string(data))

	report, err := scorer.Report(dir)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if report.Passed {
		t.Error("partially complete source should not pass")
	}

	// url_discovery (weight 1.0) scores 100; html_scrape (1.5) scores 0 of 3
	// conditions; build_extraction (2.0) and mod_extraction (2.5) score 0.
	// Weighted mean = 100*1.0 / 7.0 ≈ 14.
	if report.Overall == nil {
		t.Fatal("overall missing")
	}
	if *report.Overall != 14 {
		t.Errorf("overall = %v, want 14", *report.Overall)
	}

	if report.Stages[0].Weight != 1.0 || report.Stages[3].Weight != 2.5 {
		t.Errorf("weights = %v, %v", report.Stages[0].Weight, report.Stages[3].Weight)
	}
}

func TestReport_HighScoreWithDeficiencyStillFails(t *testing.T) {
	scorer, _ := newTestScorer(t)
	dir := t.TempDir()
	writeCompleteSource(t, dir)
	// Remove one html page: coverage check fails but the score stays high.
	if err := os.Remove(filepath.Join(dir, "html", "page-0.html")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	report, err := scorer.Report(dir)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if report.Overall == nil || *report.Overall < scorer.scoring.PassOverall {
		t.Fatalf("overall = %v, expected a score above the pass line", report.Overall)
	}
	if report.Passed {
		t.Error("a report with any deficiency must not pass, regardless of score")
	}
	if len(report.Deficiencies) == 0 {
		t.Error("expected the coverage deficiency")
	}
}

func TestVerifyStoryComplete(t *testing.T) {
	scorer, store := newTestScorer(t)
	dir := t.TempDir()
	writeCompleteSource(t, dir)

	src, _, err := store.CreateEntity(graph.CreateEntityParams{
		Type: graph.TypeSource, Name: "bringatrailer",
		Attributes: map[string]any{"builds": 1},
	})
	if err != nil {
		t.Fatalf("create source: %v", err)
	}
	build, _, err := store.CreateEntity(graph.CreateEntityParams{
		Type: graph.TypeBuild, Name: "Safari 911",
	})
	if err != nil {
		t.Fatalf("create build: %v", err)
	}
	if _, _, err := store.CreateRelation(src.ID, build.ID, graph.RelContainsBuild); err != nil {
		t.Fatalf("relate: %v", err)
	}

	completion, err := scorer.VerifyStoryComplete(dir, src.ID)
	if err != nil {
		t.Fatalf("VerifyStoryComplete: %v", err)
	}
	if !completion.Complete {
		t.Errorf("expected complete, got %+v", completion.GraphChecks)
	}
	if len(completion.GraphChecks) != 2 {
		t.Errorf("got %d graph checks, want entity + coverage", len(completion.GraphChecks))
	}
}

func TestVerifyStoryComplete_MissingSourceEntity(t *testing.T) {
	scorer, _ := newTestScorer(t)
	dir := t.TempDir()
	writeCompleteSource(t, dir)

	completion, err := scorer.VerifyStoryComplete(dir, "source:ghost")
	if err != nil {
		t.Fatalf("VerifyStoryComplete: %v", err)
	}
	if completion.Complete {
		t.Error("missing source entity must fail completion")
	}
	if completion.GraphChecks[0].Passed {
		t.Errorf("entity check = %+v", completion.GraphChecks[0])
	}
}

func TestVerifyStoryComplete_GraphBehindCounters(t *testing.T) {
	scorer, store := newTestScorer(t)
	dir := t.TempDir()
	writeCompleteSource(t, dir)

	// Source claims 5 builds; none are linked in the graph.
	src, _, err := store.CreateEntity(graph.CreateEntityParams{
		Type: graph.TypeSource, Name: "bringatrailer",
		Attributes: map[string]any{"builds": 5},
	})
	if err != nil {
		t.Fatalf("create source: %v", err)
	}

	completion, err := scorer.VerifyStoryComplete(dir, src.ID)
	if err != nil {
		t.Fatalf("VerifyStoryComplete: %v", err)
	}
	if completion.Complete {
		t.Error("graph lagging counters must fail completion")
	}

	var cover *validate.Result
	for i := range completion.GraphChecks {
		if completion.GraphChecks[i].Condition == "graph_builds_ingested" {
			cover = &completion.GraphChecks[i]
		}
	}
	if cover == nil || cover.Passed {
		t.Errorf("coverage check = %+v", cover)
	}
	if !strings.Contains(cover.Evidence, "ingest_builds") {
		t.Errorf("evidence should point at ingest_builds: %q", cover.Evidence)
	}
}

func TestProof_Rendering(t *testing.T) {
	scorer, store := newTestScorer(t)
	dir := t.TempDir()
	writeCompleteSource(t, dir)

	src, _, err := store.CreateEntity(graph.CreateEntityParams{
		Type: graph.TypeSource, Name: "bringatrailer",
	})
	if err != nil {
		t.Fatalf("create source: %v", err)
	}

	proof, err := scorer.Proof(dir, src.ID)
	if err != nil {
		t.Fatalf("Proof: %v", err)
	}
	if !strings.Contains(proof, "Verdict: COMPLETE") {
		t.Errorf("proof = %q", proof)
	}
	for _, stage := range config.StageOrder {
		if !strings.Contains(proof, stage) {
			t.Errorf("proof missing stage %s", stage)
		}
	}
	if !strings.Contains(proof, "[PASS] entity_exists") {
		t.Error("proof missing graph check line")
	}
}

func TestProof_Incomplete(t *testing.T) {
	scorer, _ := newTestScorer(t)

	proof, err := scorer.Proof(t.TempDir(), "source:ghost")
	if err != nil {
		t.Fatalf("Proof: %v", err)
	}
	if !strings.Contains(proof, "Verdict: INCOMPLETE") {
		t.Errorf("proof = %q", proof)
	}
	if !strings.Contains(proof, "## Deficiencies") {
		t.Error("proof should list deficiencies")
	}
}
