// Package export renders the knowledge graph for consumption outside the
// server: a relational CSV dump with a DuckDB load script, and a Mermaid
// diagram description. Both are deterministic for an unchanged graph.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/fylo-labs/fylo-core-mcp/internal/graph"
)

// LoadScriptName is the DuckDB import script written next to the CSVs.
const LoadScriptName = "load.sql"

// Exporter reads the graph store and writes export artifacts.
type Exporter struct {
	store *graph.Store
}

// New creates an Exporter over the given store.
func New(store *graph.Store) *Exporter {
	return &Exporter{store: store}
}

// RelationalResult summarizes a relational export.
type RelationalResult struct {
	Dir    string         `json:"dir"`
	Tables map[string]int `json:"tables"` // table name -> row count
	Script string         `json:"script"`
}

// Relational writes one CSV per entity type present in the graph (columns:
// id, name, created_at, updated_at, then the sorted union of attribute
// keys), a relations.csv, and a DuckDB load.sql. Rows are streamed in id
// order, so re-exporting an unchanged graph is byte-identical.
func (ex *Exporter) Relational(dir string) (*RelationalResult, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("export: create dir: %w", err)
	}

	result := &RelationalResult{
		Dir:    dir,
		Tables: make(map[string]int),
		Script: filepath.Join(dir, LoadScriptName),
	}

	var script strings.Builder
	script.WriteString("-- DuckDB load script generated by fylo-core.\n")
	script.WriteString("-- Run: duckdb fylo.duckdb < load.sql\n\n")

	for _, entityType := range graph.EntityTypes {
		entities, err := ex.store.ListEntities(graph.EntityFilter{Type: entityType})
		if err != nil {
			return nil, err
		}
		if len(entities) == 0 {
			continue
		}

		table := "entities_" + entityType
		fileName := table + ".csv"
		columns := attributeColumns(entities)
		if err := writeEntityCSV(filepath.Join(dir, fileName), entities, columns); err != nil {
			return nil, err
		}
		result.Tables[table] = len(entities)

		fmt.Fprintf(&script, "CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto('%s', header=true);\n",
			table, fileName)
	}

	relations, err := ex.store.ListRelations(graph.RelationFilter{})
	if err != nil {
		return nil, err
	}
	if err := writeRelationCSV(filepath.Join(dir, "relations.csv"), relations); err != nil {
		return nil, err
	}
	result.Tables["relations"] = len(relations)
	script.WriteString("CREATE OR REPLACE TABLE relations AS SELECT * FROM read_csv_auto('relations.csv', header=true);\n")

	if err := os.WriteFile(result.Script, []byte(script.String()), 0644); err != nil {
		return nil, fmt.Errorf("export: write load script: %w", err)
	}

	return result, nil
}

// attributeColumns returns the sorted union of attribute keys across the
// entities. Stable ordering keeps the export deterministic.
func attributeColumns(entities []graph.Entity) []string {
	seen := map[string]bool{}
	for _, e := range entities {
		for k := range e.Attributes {
			seen[k] = true
		}
	}
	columns := make([]string, 0, len(seen))
	for k := range seen {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	return columns
}

func writeEntityCSV(path string, entities []graph.Entity, attrColumns []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"id", "name", "created_at", "updated_at"}, attrColumns...)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}

	// Rows stream straight from the (id-ordered) listing; nothing is
	// buffered beyond the csv writer.
	for _, e := range entities {
		row := []string{e.ID, e.Name, e.CreatedAt, e.UpdatedAt}
		for _, col := range attrColumns {
			row = append(row, attrString(e.Attributes[col]))
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("export: write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("export: flush %s: %w", path, err)
	}
	return f.Close()
}

func writeRelationCSV(path string, relations []graph.Relation) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"from_id", "to_id", "type", "created_at"}); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for _, r := range relations {
		if err := w.Write([]string{r.FromID, r.ToID, r.Type, r.CreatedAt}); err != nil {
			return fmt.Errorf("export: write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("export: flush %s: %w", path, err)
	}
	return f.Close()
}

// attrString renders an attribute value for a CSV cell. Scalars print
// plainly; structured values fall back to compact JSON.
func attrString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}
