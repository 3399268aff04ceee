package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fylo-labs/fylo-core-mcp/internal/graph"
)

// DefaultMaxNodes bounds diagram size when the caller doesn't.
const DefaultMaxNodes = 50

// Diagram renders the graph (optionally restricted to one entity type plus
// its direct neighbors) as a Mermaid flowchart. When the node count exceeds
// maxNodes, the highest-degree nodes are kept — the most connected entities
// say the most about the graph — and a truncation note is appended.
func (ex *Exporter) Diagram(typeFilter string, maxNodes int) (string, error) {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}

	entities, err := ex.store.ListEntities(graph.EntityFilter{Type: typeFilter})
	if err != nil {
		return "", err
	}
	relations, err := ex.store.ListRelations(graph.RelationFilter{})
	if err != nil {
		return "", err
	}

	byID := make(map[string]graph.Entity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}

	// With a type filter, pull in direct neighbors so edges have both ends.
	if typeFilter != "" {
		for _, r := range relations {
			_, hasFrom := byID[r.FromID]
			_, hasTo := byID[r.ToID]
			if hasFrom == hasTo {
				continue
			}
			missing := r.FromID
			if hasFrom {
				missing = r.ToID
			}
			e, err := ex.store.GetEntity(missing)
			if err != nil {
				return "", err
			}
			if e != nil {
				byID[e.ID] = *e
			}
		}
	}

	degree := make(map[string]int, len(byID))
	for _, r := range relations {
		if _, ok := byID[r.FromID]; ok {
			degree[r.FromID]++
		}
		if _, ok := byID[r.ToID]; ok {
			degree[r.ToID]++
		}
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	// Highest degree first, ties broken by id for determinism.
	sort.Slice(ids, func(i, j int) bool {
		if degree[ids[i]] != degree[ids[j]] {
			return degree[ids[i]] > degree[ids[j]]
		}
		return ids[i] < ids[j]
	})

	truncated := false
	total := len(ids)
	if len(ids) > maxNodes {
		ids = ids[:maxNodes]
		truncated = true
	}
	kept := make(map[string]bool, len(ids))
	for _, id := range ids {
		kept[id] = true
	}
	sort.Strings(ids) // render order is id order

	var b strings.Builder
	b.WriteString("graph TD\n")
	for _, id := range ids {
		e := byID[id]
		fmt.Fprintf(&b, "    %s[\"%s: %s\"]\n", nodeRef(id), e.Type, escapeLabel(e.Name))
	}
	for _, r := range relations {
		if !kept[r.FromID] || !kept[r.ToID] {
			continue
		}
		fmt.Fprintf(&b, "    %s -->|%s| %s\n", nodeRef(r.FromID), r.Type, nodeRef(r.ToID))
	}

	if truncated {
		fmt.Fprintf(&b, "    %%%% truncated: showing %d highest-degree nodes of %d\n", maxNodes, total)
	}

	return b.String(), nil
}

// nodeRef makes an entity id safe as a Mermaid node identifier.
func nodeRef(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, `"`, "'")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
