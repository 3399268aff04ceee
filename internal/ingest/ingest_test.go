package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fylo-labs/fylo-core-mcp/internal/graph"
)

// newTestIngestor wires an Ingestor over a fresh store.
func newTestIngestor(t *testing.T) (*Ingestor, *graph.Store) {
	t.Helper()
	store, err := graph.Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return New(store), store
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ─── SyncSources ─────────────────────────────────────────────────────────────

func TestSyncSources_CreateUpdateSkip(t *testing.T) {
	ing, store := newTestIngestor(t)

	records := []SourceRecord{
		{ID: "bat", Name: "bringatrailer", URL: "https://bringatrailer.com",
			Pipeline: PipelineCounters{ExpectedURLs: 100, URLsFound: 80}},
	}

	result, err := ing.SyncSources(records)
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if result.Created != 1 || result.Updated != 0 || result.Skipped != 0 {
		t.Errorf("first sync = %+v, want 1 created", result)
	}

	// Identical input: nothing changes.
	result, err = ing.SyncSources(records)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if result.Skipped != 1 || result.Created != 0 || result.Updated != 0 {
		t.Errorf("identical sync = %+v, want 1 skipped", result)
	}

	// Counter moved: update.
	records[0].Pipeline.URLsFound = 100
	result, err = ing.SyncSources(records)
	if err != nil {
		t.Fatalf("third sync: %v", err)
	}
	if result.Updated != 1 {
		t.Errorf("changed sync = %+v, want 1 updated", result)
	}

	ent, err := store.GetEntityByName(graph.TypeSource, "bringatrailer")
	if err != nil {
		t.Fatalf("GetEntityByName: %v", err)
	}
	if ent == nil {
		t.Fatal("source entity missing")
	}
	if ent.ID != "source:bat" {
		t.Errorf("id = %q, want keyed by external id", ent.ID)
	}
	if got := ent.Attributes["urls_found"]; got != float64(100) {
		t.Errorf("urls_found = %v, want 100", got)
	}
	if ent.Attributes["external_id"] != "bat" {
		t.Errorf("external_id = %v", ent.Attributes["external_id"])
	}
}

func TestSyncSources_RenamedSourceStaysOneEntity(t *testing.T) {
	ing, store := newTestIngestor(t)

	if _, err := ing.SyncSources([]SourceRecord{
		{ID: "src-1", Name: "Bring a Trailer"},
	}); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	result, err := ing.SyncSources([]SourceRecord{
		{ID: "src-1", Name: "BringATrailer.com"},
	})
	if err != nil {
		t.Fatalf("renamed sync: %v", err)
	}
	if result.Updated != 1 || result.Created != 0 {
		t.Errorf("renamed sync = %+v, want 1 updated", result)
	}

	sources, err := store.ListEntities(graph.EntityFilter{Type: graph.TypeSource})
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("got %d source entities, want 1 (rename must not fork)", len(sources))
	}
	if sources[0].ID != "source:src-1" || sources[0].Name != "BringATrailer.com" {
		t.Errorf("entity = %s %q, want renamed under the stable id", sources[0].ID, sources[0].Name)
	}
}

func TestSyncSources_NamelessRecordSkipped(t *testing.T) {
	ing, _ := newTestIngestor(t)

	result, err := ing.SyncSources([]SourceRecord{{ID: "", Name: "  "}})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.Skipped != 1 || result.Created != 0 {
		t.Errorf("result = %+v, want 1 skipped", result)
	}
}

// ─── IngestBuilds ────────────────────────────────────────────────────────────

func testSource(t *testing.T, ing *Ingestor) string {
	t.Helper()
	result, err := ing.SyncSources([]SourceRecord{{ID: "bat", Name: "bringatrailer"}})
	if err != nil || result.Created != 1 {
		t.Fatalf("seed source: %v (%+v)", err, result)
	}
	return "source:bat"
}

func TestIngestBuilds_FullRecord(t *testing.T) {
	ing, store := newTestIngestor(t)
	sourceID := testSource(t, ing)

	result, err := ing.IngestBuilds(sourceID, []BuildRecord{
		{
			ID: "bat-1", Title: "Safari 911", URL: "https://example.com/1",
			Year: "1987", Make: "Porsche", Model: "911",
			Category:      "off-road",
			Modifications: []string{"lift kit", "skid plate"},
		},
	})
	if err != nil {
		t.Fatalf("IngestBuilds: %v", err)
	}
	if result.Created != 1 || len(result.Errors) != 0 {
		t.Fatalf("result = %+v", result)
	}
	// contains_build + 2 has_modification + belongs_to
	if result.Relations != 4 {
		t.Errorf("relations = %d, want 4", result.Relations)
	}

	build, err := store.GetEntity("build:bat-1")
	if err != nil || build == nil {
		t.Fatalf("build keyed by external id missing: %v", err)
	}
	if build.Attributes["make"] != "Porsche" {
		t.Errorf("make = %v", build.Attributes["make"])
	}

	mods, err := store.ListRelations(graph.RelationFilter{
		FromID: build.ID, Type: graph.RelHasModification,
	})
	if err != nil {
		t.Fatalf("ListRelations: %v", err)
	}
	if len(mods) != 2 {
		t.Errorf("got %d has_modification edges, want 2", len(mods))
	}
}

func TestIngestBuilds_Reimport(t *testing.T) {
	ing, _ := newTestIngestor(t)
	sourceID := testSource(t, ing)

	records := []BuildRecord{
		{ID: "bat-1", Title: "Safari 911", Modifications: []string{"lift kit"}},
	}
	if _, err := ing.IngestBuilds(sourceID, records); err != nil {
		t.Fatalf("first import: %v", err)
	}

	result, err := ing.IngestBuilds(sourceID, records)
	if err != nil {
		t.Fatalf("reimport: %v", err)
	}
	if result.Created != 0 || result.Updated != 1 {
		t.Errorf("reimport = %+v, want 0 created / 1 updated", result)
	}
	if result.Relations != 0 {
		t.Errorf("reimport created %d relations, want 0", result.Relations)
	}
}

func TestIngestBuilds_RetitledBuildUpdates(t *testing.T) {
	ing, store := newTestIngestor(t)
	sourceID := testSource(t, ing)

	if _, err := ing.IngestBuilds(sourceID, []BuildRecord{
		{ID: "bat-123", Title: "Porsche 911"},
	}); err != nil {
		t.Fatalf("first import: %v", err)
	}

	result, err := ing.IngestBuilds(sourceID, []BuildRecord{
		{ID: "bat-123", Title: "1987 Porsche 911 Safari"},
	})
	if err != nil {
		t.Fatalf("retitled import: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("retitled import errors: %v", result.Errors)
	}
	if result.Created != 0 || result.Updated != 1 {
		t.Errorf("retitled import = %+v, want 0 created / 1 updated", result)
	}

	build, err := store.GetEntity("build:bat-123")
	if err != nil || build == nil {
		t.Fatalf("build missing: %v", err)
	}
	if build.Name != "1987 Porsche 911 Safari" {
		t.Errorf("name = %q, want retitled", build.Name)
	}

	builds, err := store.ListEntities(graph.EntityFilter{Type: graph.TypeBuild})
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if len(builds) != 1 {
		t.Errorf("got %d build entities, want 1 (retitle must not fork)", len(builds))
	}
}

func TestIngestBuilds_MissingSourceFailsBatch(t *testing.T) {
	ing, _ := newTestIngestor(t)

	_, err := ing.IngestBuilds("source:ghost", []BuildRecord{{Title: "x"}})
	if !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("err = %v, want graph.ErrNotFound", err)
	}
}

func TestIngestBuilds_MissingTitleIsPerRecord(t *testing.T) {
	ing, _ := newTestIngestor(t)
	sourceID := testSource(t, ing)

	result, err := ing.IngestBuilds(sourceID, []BuildRecord{
		{Title: "  "},
		{Title: "Valid Build"},
	})
	if err != nil {
		t.Fatalf("IngestBuilds: %v", err)
	}
	if result.Created != 1 {
		t.Errorf("created = %d, want 1 (batch continues past bad record)", result.Created)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "missing title") {
		t.Errorf("errors = %v", result.Errors)
	}
}

// ─── PipelineStatus ──────────────────────────────────────────────────────────

func TestPipelineStatus(t *testing.T) {
	ing, _ := newTestIngestor(t)
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "sources.json"), `{
		"sources": [
			{"id": "bat", "name": "bringatrailer", "pipeline": {"expectedUrls": 100, "urlsFound": 80, "builds": 2}},
			{"id": "unsynced", "name": "newsite", "pipeline": {}}
		]
	}`)

	sourceID := testSource(t, ing)
	if _, err := ing.IngestBuilds(sourceID, []BuildRecord{
		{Title: "Safari 911"}, {Title: "Baja Bug"},
	}); err != nil {
		t.Fatalf("IngestBuilds: %v", err)
	}

	statuses, err := ing.PipelineStatus(root)
	if err != nil {
		t.Fatalf("PipelineStatus: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("got %d statuses, want 2", len(statuses))
	}

	bat := statuses[0]
	if bat.Source != "bringatrailer" || !bat.InGraph {
		t.Errorf("bat status = %+v", bat)
	}
	if bat.GraphBuilds != 2 {
		t.Errorf("graph_builds = %d, want 2", bat.GraphBuilds)
	}
	if bat.Counters.ExpectedURLs != 100 || bat.Counters.URLsFound != 80 {
		t.Errorf("counters = %+v", bat.Counters)
	}

	if statuses[1].InGraph {
		t.Error("unsynced source should not be in graph")
	}
}

// ─── Artifact readers ────────────────────────────────────────────────────────

func TestReadURLs_JSONWrapper(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "urls.json"),
		`{"urls": [{"url": "https://a"}, {"url": "https://b", "filename": "b.html"}]}`)

	urls, err := ReadURLs(dir)
	if err != nil {
		t.Fatalf("ReadURLs: %v", err)
	}
	if len(urls) != 2 || urls[1].Filename != "b.html" {
		t.Errorf("urls = %+v", urls)
	}
}

func TestReadURLs_JSONL(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "urls.jsonl"),
		"{\"url\": \"https://a\"}\n\n{\"url\": \"https://b\"}\n")

	urls, err := ReadURLs(dir)
	if err != nil {
		t.Fatalf("ReadURLs: %v", err)
	}
	if len(urls) != 2 {
		t.Errorf("got %d urls, want 2 (blank line skipped)", len(urls))
	}
}

func TestReadURLs_Missing(t *testing.T) {
	_, err := ReadURLs(t.TempDir())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want fs.ErrNotExist", err)
	}
}

func TestReadBuilds_JSONLCollectsBadLines(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "builds.jsonl"),
		"{\"title\": \"Safari 911\"}\nnot json at all\n{\"title\": \"Baja Bug\"}\n")

	builds, recordErrs, err := ReadBuilds(dir)
	if err != nil {
		t.Fatalf("ReadBuilds: %v", err)
	}
	if len(builds) != 2 {
		t.Errorf("got %d builds, want 2 good records", len(builds))
	}
	if len(recordErrs) != 1 || !errors.Is(recordErrs[0], ErrMalformedArtifact) {
		t.Errorf("recordErrs = %v", recordErrs)
	}
	if !strings.Contains(recordErrs[0].Error(), "line 2") {
		t.Errorf("error should name the line: %v", recordErrs[0])
	}
}

func TestReadBuilds_MalformedJSONFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "builds.json"), `{"builds": [oops]`)

	_, _, err := ReadBuilds(dir)
	if !errors.Is(err, ErrMalformedArtifact) {
		t.Errorf("err = %v, want ErrMalformedArtifact", err)
	}
}

func TestReadSources_BareArrayAndWrapper(t *testing.T) {
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "sources.json"), `[{"id": "bat", "name": "bringatrailer"}]`)
	records, err := ReadSources(root)
	if err != nil || len(records) != 1 {
		t.Fatalf("bare array: %v (%d records)", err, len(records))
	}

	writeFile(t, filepath.Join(root, "sources.json"), `{"sources": [{"id": "bat"}, {"id": "cl"}]}`)
	records, err = ReadSources(root)
	if err != nil || len(records) != 2 {
		t.Fatalf("wrapper: %v (%d records)", err, len(records))
	}
}
