// Package graph implements the persistent knowledge graph for Fylo Core.
//
// Typed entities (sources, URLs, builds, modifications, categories,
// patterns) are connected by typed directed relations and persisted in
// SQLite. Every mutation commits synchronously, so the on-disk graph always
// reflects the last completed operation.
package graph

// Entity types form a closed set. The store rejects anything else.
const (
	TypeSource       = "source"
	TypeURL          = "url"
	TypeBuild        = "build"
	TypeModification = "modification"
	TypeCategory     = "category"
	TypePattern      = "pattern"
)

// EntityTypes lists the closed set of entity types in canonical order.
var EntityTypes = []string{
	TypeSource,
	TypeURL,
	TypeBuild,
	TypeModification,
	TypeCategory,
	TypePattern,
}

// Relation types form a closed set. Each type is only valid between
// specific entity types — see edgeSchema.
const (
	RelHasURL            = "has_url"
	RelContainsBuild     = "contains_build"
	RelHasModification   = "has_modification"
	RelBelongsTo         = "belongs_to"
	RelDiscoveredPattern = "discovered_pattern"
)

// RelationTypes lists the closed set of relation types in canonical order.
var RelationTypes = []string{
	RelHasURL,
	RelContainsBuild,
	RelHasModification,
	RelBelongsTo,
	RelDiscoveredPattern,
}

// edgeSchema maps each relation type to the (from, to) entity-type pairs it
// may connect. Creation against any other pair is a semantic mismatch.
var edgeSchema = map[string][][2]string{
	RelHasURL:            {{TypeSource, TypeURL}},
	RelContainsBuild:     {{TypeSource, TypeBuild}},
	RelHasModification:   {{TypeBuild, TypeModification}},
	RelBelongsTo:         {{TypeBuild, TypeCategory}, {TypeModification, TypeCategory}},
	RelDiscoveredPattern: {{TypeSource, TypePattern}, {TypeBuild, TypePattern}},
}

// ValidEntityType reports whether t is in the closed entity-type set.
func ValidEntityType(t string) bool {
	for _, known := range EntityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ValidRelationType reports whether t is in the closed relation-type set.
func ValidRelationType(t string) bool {
	_, ok := edgeSchema[t]
	return ok
}

// relationAllowed reports whether relation type rel may connect fromType to
// toType under the edge schema.
func relationAllowed(rel, fromType, toType string) bool {
	for _, pair := range edgeSchema[rel] {
		if pair[0] == fromType && pair[1] == toType {
			return true
		}
	}
	return false
}

// Entity is a typed node in the knowledge graph.
type Entity struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes,omitempty"`
	CreatedAt  string         `json:"created_at"`
	UpdatedAt  string         `json:"updated_at"`
}

// Observation is a timestamped free-form note appended to an entity.
type Observation struct {
	ID        int64  `json:"id"`
	EntityID  string `json:"entity_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// Relation is a typed directed edge between two entities.
type Relation struct {
	ID        int64  `json:"id"`
	FromID    string `json:"from_id"`
	ToID      string `json:"to_id"`
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
}

// CreateEntityParams holds the input for creating (or upserting) an entity.
type CreateEntityParams struct {
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	ID         string         `json:"id,omitempty"` // optional caller-supplied id
	Attributes map[string]any `json:"attributes,omitempty"`
	Upsert     bool           `json:"upsert,omitempty"`
}

// EntityFilter selects entities by type and/or SQL LIKE name pattern.
// Zero values match everything.
type EntityFilter struct {
	Type        string `json:"type,omitempty"`
	NamePattern string `json:"name_pattern,omitempty"`
}

// RelationFilter selects relations by endpoint and/or type.
// Zero values match everything.
type RelationFilter struct {
	FromID string `json:"from_id,omitempty"`
	ToID   string `json:"to_id,omitempty"`
	Type   string `json:"type,omitempty"`
}

// Subgraph is the result of a bounded traversal: the reachable entities and
// the edges used to reach them.
type Subgraph struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`
	Seeds     int        `json:"seeds"`
	MaxDepth  int        `json:"max_depth"`
}

// Stats holds aggregate graph statistics.
type Stats struct {
	TotalEntities        int            `json:"total_entities"`
	TotalRelations       int            `json:"total_relations"`
	CountsByType         map[string]int `json:"counts_by_type"`
	CountsByRelationType map[string]int `json:"counts_by_relation_type"`
	OrphanEntityCount    int            `json:"orphan_entity_count"`
}
