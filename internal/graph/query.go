package graph

import (
	"fmt"
	"sort"
)

// maxQueryDepth caps traversal depth so a bad caller can't walk the whole
// graph one hop at a time forever.
const maxQueryDepth = 10

// Query performs a bounded breadth-first traversal. Seeds are the entities
// matching entityFilter; edges matching relationFilter are followed in both
// directions up to depth hops (default 1). A visited set guarantees
// termination on cyclic graphs. Results are ordered by id for determinism.
func (s *Store) Query(ef EntityFilter, rf RelationFilter, depth int) (*Subgraph, error) {
	if depth <= 0 {
		depth = 1
	}
	if depth > maxQueryDepth {
		depth = maxQueryDepth
	}

	seeds, err := s.ListEntities(ef)
	if err != nil {
		return nil, err
	}

	type queueItem struct {
		id    string
		depth int
	}

	visited := make(map[string]Entity, len(seeds))
	usedEdges := make(map[int64]Relation)
	queue := make([]queueItem, 0, len(seeds))
	for _, e := range seeds {
		visited[e.ID] = e
		queue = append(queue, queueItem{id: e.ID, depth: 0})
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.depth >= depth {
			continue
		}

		rels, err := s.RelationsFor(current.id)
		if err != nil {
			return nil, fmt.Errorf("graph: traverse %s: %w", current.id, err)
		}

		for _, rel := range rels {
			if !rf.matches(rel) {
				continue
			}
			otherID := rel.ToID
			if otherID == current.id {
				otherID = rel.FromID
			}

			if _, seen := visited[otherID]; seen {
				// Node already reached, but the edge still belongs to the
				// subgraph when both endpoints are in it.
				usedEdges[rel.ID] = rel
				continue
			}

			other, err := s.getByID(otherID)
			if err != nil {
				return nil, err
			}
			if other == nil {
				continue // endpoint deleted between queries
			}

			visited[otherID] = *other
			usedEdges[rel.ID] = rel
			queue = append(queue, queueItem{id: otherID, depth: current.depth + 1})
		}
	}

	sub := &Subgraph{Seeds: len(seeds), MaxDepth: depth}
	for _, e := range visited {
		sub.Entities = append(sub.Entities, e)
	}
	sort.Slice(sub.Entities, func(i, j int) bool { return sub.Entities[i].ID < sub.Entities[j].ID })

	for _, r := range usedEdges {
		// Keep only edges whose endpoints both made it into the subgraph.
		if _, ok := visited[r.FromID]; !ok {
			continue
		}
		if _, ok := visited[r.ToID]; !ok {
			continue
		}
		sub.Relations = append(sub.Relations, r)
	}
	sort.Slice(sub.Relations, func(i, j int) bool { return sub.Relations[i].ID < sub.Relations[j].ID })

	return sub, nil
}

func (f RelationFilter) matches(r Relation) bool {
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.FromID != "" && r.FromID != f.FromID {
		return false
	}
	if f.ToID != "" && r.ToID != f.ToID {
		return false
	}
	return true
}

// Stats returns aggregate counts. An empty graph yields zeros, not errors.
func (s *Store) Stats() (*Stats, error) {
	stats := &Stats{
		CountsByType:         make(map[string]int),
		CountsByRelationType: make(map[string]int),
	}

	rows, err := s.db.Query(`SELECT type, COUNT(*) FROM entities GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("graph: entity counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("graph: scan entity count: %w", err)
		}
		stats.CountsByType[t] = n
		stats.TotalEntities += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	relRows, err := s.db.Query(`SELECT type, COUNT(*) FROM relations GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("graph: relation counts: %w", err)
	}
	defer relRows.Close()
	for relRows.Next() {
		var t string
		var n int
		if err := relRows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("graph: scan relation count: %w", err)
		}
		stats.CountsByRelationType[t] = n
		stats.TotalRelations += n
	}
	if err := relRows.Err(); err != nil {
		return nil, err
	}

	row := s.db.QueryRow(`
		SELECT COUNT(*) FROM entities e
		WHERE NOT EXISTS (SELECT 1 FROM relations r WHERE r.from_id = e.id OR r.to_id = e.id)
	`)
	if err := row.Scan(&stats.OrphanEntityCount); err != nil {
		return nil, fmt.Errorf("graph: orphan count: %w", err)
	}

	return stats, nil
}
