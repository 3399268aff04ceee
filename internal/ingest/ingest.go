package ingest

import (
	"fmt"
	"strings"

	"github.com/fylo-labs/fylo-core-mcp/internal/graph"
)

// Ingestor applies pipeline artifacts to the graph store.
type Ingestor struct {
	store *graph.Store
}

// New creates an Ingestor over the given store.
func New(store *graph.Store) *Ingestor {
	return &Ingestor{store: store}
}

// SyncResult reports the outcome of a source sync.
type SyncResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// IngestResult reports the outcome of a build batch.
type IngestResult struct {
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Relations int      `json:"relations"`
	Errors    []string `json:"errors,omitempty"`
}

// SourceStatus joins a source's pipeline counters with its graph counts.
type SourceStatus struct {
	Source      string           `json:"source"`
	EntityID    string           `json:"entity_id,omitempty"`
	Counters    PipelineCounters `json:"counters"`
	GraphBuilds int              `json:"graph_builds"`
	GraphURLs   int              `json:"graph_urls"`
	InGraph     bool             `json:"in_graph"`
}

// SyncSources upserts a `source` entity per record, keyed by the record's
// external id (the entity id is derived from it), so a renamed source stays
// one entity. Re-running with identical input creates nothing new: records
// whose entity already exists with identical name and counters are skipped,
// anything changed counts as an update.
func (in *Ingestor) SyncSources(records []SourceRecord) (*SyncResult, error) {
	result := &SyncResult{}

	for _, rec := range records {
		name := rec.Name
		if name == "" {
			name = rec.ID
		}
		if strings.TrimSpace(name) == "" {
			result.Skipped++
			continue
		}

		attrs := map[string]any{
			"external_id":   rec.ID,
			"url":           rec.URL,
			"expected_urls": rec.Pipeline.ExpectedURLs,
			"urls_found":    rec.Pipeline.URLsFound,
			"html_scraped":  rec.Pipeline.HTMLScraped,
			"builds":        rec.Pipeline.Builds,
			"mods":          rec.Pipeline.Mods,
		}

		var (
			id       string
			existing *graph.Entity
			err      error
		)
		if rec.ID != "" {
			id = graph.DeriveID(graph.TypeSource, rec.ID)
			existing, err = in.store.GetEntity(id)
		} else {
			existing, err = in.store.GetEntityByName(graph.TypeSource, name)
		}
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.Name == name && countersEqual(existing.Attributes, rec.Pipeline) {
			result.Skipped++
			continue
		}

		_, created, err := in.store.CreateEntity(graph.CreateEntityParams{
			Type:       graph.TypeSource,
			Name:       name,
			ID:         id,
			Attributes: attrs,
			Upsert:     true,
		})
		if err != nil {
			return nil, fmt.Errorf("sync source %q: %w", name, err)
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	return result, nil
}

// IngestBuilds upserts a `build` entity per record under the given source,
// wiring contains_build from the source and has_modification to upserted
// `modification` entities, plus belongs_to when the record names a
// category. Malformed records are reported in Errors; the batch continues.
// A missing source entity fails the whole batch with graph.ErrNotFound.
func (in *Ingestor) IngestBuilds(sourceID string, records []BuildRecord) (*IngestResult, error) {
	source, err := in.store.GetEntity(sourceID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("%w: source %q", graph.ErrNotFound, sourceID)
	}

	result := &IngestResult{}

	for i, rec := range records {
		if strings.TrimSpace(rec.Title) == "" {
			result.Errors = append(result.Errors,
				fmt.Sprintf("record %d: missing title", i))
			continue
		}

		attrs := map[string]any{
			"source": source.Name,
		}
		if rec.ID != "" {
			attrs["external_id"] = rec.ID
		}
		if rec.URL != "" {
			attrs["url"] = rec.URL
		}
		if rec.Year != "" {
			attrs["year"] = rec.Year
		}
		if rec.Make != "" {
			attrs["make"] = rec.Make
		}
		if rec.Model != "" {
			attrs["model"] = rec.Model
		}

		// Key by external id when present so retitled builds stay one entity.
		name := rec.Title
		var id string
		if rec.ID != "" {
			id = graph.DeriveID(graph.TypeBuild, rec.ID)
		}

		build, created, err := in.store.CreateEntity(graph.CreateEntityParams{
			Type:       graph.TypeBuild,
			Name:       name,
			ID:         id,
			Attributes: attrs,
			Upsert:     true,
		})
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("record %d (%s): %v", i, rec.Title, err))
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}

		if _, fresh, err := in.store.CreateRelation(source.ID, build.ID, graph.RelContainsBuild); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("record %d (%s): relation: %v", i, rec.Title, err))
		} else if fresh {
			result.Relations++
		}

		for _, mod := range rec.Modifications {
			mod = strings.TrimSpace(mod)
			if mod == "" {
				continue
			}
			modEnt, _, err := in.store.CreateEntity(graph.CreateEntityParams{
				Type:   graph.TypeModification,
				Name:   mod,
				Upsert: true,
			})
			if err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("record %d (%s): modification %q: %v", i, rec.Title, mod, err))
				continue
			}
			if _, fresh, err := in.store.CreateRelation(build.ID, modEnt.ID, graph.RelHasModification); err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("record %d (%s): modification %q: %v", i, rec.Title, mod, err))
			} else if fresh {
				result.Relations++
			}
		}

		if cat := strings.TrimSpace(rec.Category); cat != "" {
			catEnt, _, err := in.store.CreateEntity(graph.CreateEntityParams{
				Type:   graph.TypeCategory,
				Name:   cat,
				Upsert: true,
			})
			if err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("record %d (%s): category %q: %v", i, rec.Title, cat, err))
				continue
			}
			if _, fresh, err := in.store.CreateRelation(build.ID, catEnt.ID, graph.RelBelongsTo); err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("record %d (%s): category %q: %v", i, rec.Title, cat, err))
			} else if fresh {
				result.Relations++
			}
		}
	}

	return result, nil
}

// PipelineStatus reads sources.json from the pipeline root and joins each
// record with the graph's view of that source.
func (in *Ingestor) PipelineStatus(root string) ([]SourceStatus, error) {
	records, err := ReadSources(root)
	if err != nil {
		return nil, err
	}

	statuses := make([]SourceStatus, 0, len(records))
	for _, rec := range records {
		name := rec.Name
		if name == "" {
			name = rec.ID
		}
		status := SourceStatus{Source: name, Counters: rec.Pipeline}

		// Resolve the same way SyncSources keys: external id first.
		var ent *graph.Entity
		if rec.ID != "" {
			ent, err = in.store.GetEntity(graph.DeriveID(graph.TypeSource, rec.ID))
		} else {
			ent, err = in.store.GetEntityByName(graph.TypeSource, name)
		}
		if err != nil {
			return nil, err
		}
		if ent != nil {
			status.InGraph = true
			status.EntityID = ent.ID

			builds, err := in.store.ListRelations(graph.RelationFilter{
				FromID: ent.ID, Type: graph.RelContainsBuild,
			})
			if err != nil {
				return nil, err
			}
			status.GraphBuilds = len(builds)

			urls, err := in.store.ListRelations(graph.RelationFilter{
				FromID: ent.ID, Type: graph.RelHasURL,
			})
			if err != nil {
				return nil, err
			}
			status.GraphURLs = len(urls)
		}

		statuses = append(statuses, status)
	}

	return statuses, nil
}

// countersEqual compares stored source attributes with fresh pipeline
// counters. Stored JSON numbers decode as float64.
func countersEqual(attrs map[string]any, c PipelineCounters) bool {
	return attrInt(attrs, "expected_urls") == c.ExpectedURLs &&
		attrInt(attrs, "urls_found") == c.URLsFound &&
		attrInt(attrs, "html_scraped") == c.HTMLScraped &&
		attrInt(attrs, "builds") == c.Builds &&
		attrInt(attrs, "mods") == c.Mods
}

func attrInt(attrs map[string]any, key string) int {
	switch v := attrs[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
