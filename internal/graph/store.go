package graph

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// DBFileName is the SQLite database file inside the data directory.
const DBFileName = "graph.db"

// Store is the persistent knowledge-graph engine backed by SQLite.
//
// Mutations are serialized through a single writer lock so concurrent tool
// calls never interleave read-modify-write cycles; each mutation commits
// before the lock is released. Reads run concurrently under WAL and always
// observe the last committed snapshot.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates the data directory if needed, opens SQLite with WAL mode,
// and runs migrations.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("graph: create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFileName)
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("graph: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("graph: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("graph: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS entities (
			id         TEXT PRIMARY KEY,
			type       TEXT NOT NULL,
			name       TEXT NOT NULL,
			attributes TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_ent_type_name ON entities(type, name);
		CREATE INDEX IF NOT EXISTS idx_ent_type ON entities(type);

		CREATE TABLE IF NOT EXISTS observations (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_id  TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			FOREIGN KEY (entity_id) REFERENCES entities(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_obs_entity ON observations(entity_id);

		CREATE TABLE IF NOT EXISTS relations (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			from_id    TEXT NOT NULL,
			to_id      TEXT NOT NULL,
			type       TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			FOREIGN KEY (from_id) REFERENCES entities(id) ON DELETE CASCADE,
			FOREIGN KEY (to_id)   REFERENCES entities(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_rel_from ON relations(from_id);
		CREATE INDEX IF NOT EXISTS idx_rel_to   ON relations(to_id);
		CREATE INDEX IF NOT EXISTS idx_rel_type ON relations(type);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_rel_unique ON relations(from_id, to_id, type);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ─── Entities ────────────────────────────────────────────────────────────────

// DeriveID builds a stable entity id from type and name: "type:slug". Falls
// back to a UUID when the name yields an empty slug.
func DeriveID(entityType, name string) string {
	slug := slugify(name)
	if slug == "" {
		return entityType + ":" + uuid.NewString()
	}
	return entityType + ":" + slug
}

func slugify(s string) string {
	var b strings.Builder
	lastDash := true // suppress leading dash
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// CreateEntity creates a new entity, or upserts when p.Upsert is set.
// The second return reports whether a new entity was created (false on
// upsert of an existing one). An upsert with a caller-supplied id resolves
// the existing entity by id first, so a renamed record stays one entity;
// otherwise resolution is by (type, name). Without upsert, an existing
// entity on either key yields ErrDuplicateEntity.
func (s *Store) CreateEntity(p CreateEntityParams) (*Entity, bool, error) {
	if !ValidEntityType(p.Type) {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidEntityType, p.Type)
	}
	if strings.TrimSpace(p.Name) == "" {
		return nil, false, fmt.Errorf("entity name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID != "" {
		byID, err := s.getByID(p.ID)
		if err != nil {
			return nil, false, err
		}
		if byID != nil {
			if !p.Upsert || byID.Type != p.Type {
				return nil, false, fmt.Errorf("%w: id %q already in use", ErrDuplicateEntity, p.ID)
			}
			return s.applyUpsert(byID, p.Name, p.Attributes)
		}
	}

	existing, err := s.getByTypeName(p.Type, p.Name)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if !p.Upsert {
			return nil, false, fmt.Errorf("%w: %s %q (id %s)", ErrDuplicateEntity, p.Type, p.Name, existing.ID)
		}
		return s.applyUpsert(existing, existing.Name, p.Attributes)
	}

	id := p.ID
	if id == "" {
		id = DeriveID(p.Type, p.Name)
	}
	attrs, err := marshalAttrs(p.Attributes)
	if err != nil {
		return nil, false, err
	}

	if _, err := s.db.Exec(
		`INSERT INTO entities (id, type, name, attributes) VALUES (?, ?, ?, ?)`,
		id, p.Type, p.Name, attrs,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, false, fmt.Errorf("%w: id %q already in use", ErrDuplicateEntity, id)
		}
		return nil, false, fmt.Errorf("graph: insert entity: %w", err)
	}

	created, err := s.getByID(id)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// applyUpsert merges attrs into an existing entity and renames it when the
// incoming name differs. A rename that collides with another entity's
// (type, name) surfaces as ErrDuplicateEntity. Caller holds the write lock.
func (s *Store) applyUpsert(existing *Entity, name string, attrs map[string]any) (*Entity, bool, error) {
	merged := existing.Attributes
	if merged == nil {
		merged = map[string]any{}
	}
	for k, v := range attrs {
		merged[k] = v
	}
	enc, err := marshalAttrs(merged)
	if err != nil {
		return nil, false, err
	}
	if name == "" {
		name = existing.Name
	}

	if _, err := s.db.Exec(
		`UPDATE entities SET name = ?, attributes = ?, updated_at = datetime('now') WHERE id = ?`,
		name, enc, existing.ID,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, false, fmt.Errorf("%w: %s %q", ErrDuplicateEntity, existing.Type, name)
		}
		return nil, false, fmt.Errorf("graph: update entity: %w", err)
	}
	updated, err := s.getByID(existing.ID)
	if err != nil {
		return nil, false, err
	}
	return updated, false, nil
}

// GetEntity retrieves an entity by id. Absence is not an error: the result
// is (nil, nil).
func (s *Store) GetEntity(id string) (*Entity, error) {
	return s.getByID(id)
}

// GetEntityByName retrieves an entity by its (type, name) pair, or nil.
func (s *Store) GetEntityByName(entityType, name string) (*Entity, error) {
	return s.getByTypeName(entityType, name)
}

// ListEntities returns entities matching the filter, ordered by id so
// repeated listings of an unchanged graph are identical.
func (s *Store) ListEntities(f EntityFilter) ([]Entity, error) {
	query := `SELECT id, type, name, attributes, created_at, updated_at FROM entities WHERE 1=1`
	args := []any{}
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, f.Type)
	}
	if f.NamePattern != "" {
		query += ` AND name LIKE ?`
		args = append(args, f.NamePattern)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("graph: list entities: %w", err)
	}
	defer rows.Close()

	var result []Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

// AddObservation appends a timestamped note to an entity and touches its
// updated_at. Returns ErrNotFound when the entity does not exist.
func (s *Store) AddObservation(entityID, content string) (*Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.getByID(entityID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%w: entity %q", ErrNotFound, entityID)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("graph: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(
		`INSERT INTO observations (entity_id, content) VALUES (?, ?)`,
		entityID, content,
	)
	if err != nil {
		return nil, fmt.Errorf("graph: insert observation: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE entities SET updated_at = datetime('now') WHERE id = ?`, entityID,
	); err != nil {
		return nil, fmt.Errorf("graph: touch entity: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("graph: commit: %w", err)
	}

	id, _ := res.LastInsertId()
	row := s.db.QueryRow(
		`SELECT id, entity_id, content, created_at FROM observations WHERE id = ?`, id,
	)
	var o Observation
	if err := row.Scan(&o.ID, &o.EntityID, &o.Content, &o.CreatedAt); err != nil {
		return nil, fmt.Errorf("graph: read observation: %w", err)
	}
	return &o, nil
}

// Observations returns an entity's notes in append order.
func (s *Store) Observations(entityID string) ([]Observation, error) {
	rows, err := s.db.Query(
		`SELECT id, entity_id, content, created_at FROM observations
		 WHERE entity_id = ? ORDER BY id ASC`, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("graph: list observations: %w", err)
	}
	defer rows.Close()

	var result []Observation
	for rows.Next() {
		var o Observation
		if err := rows.Scan(&o.ID, &o.EntityID, &o.Content, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("graph: scan observation: %w", err)
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

// DeleteEntity removes an entity, cascading its observations and relations
// in one transaction. Returns ErrNotFound when the entity does not exist,
// leaving the graph untouched.
func (s *Store) DeleteEntity(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("graph: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM relations WHERE from_id = ? OR to_id = ?`, id, id); err != nil {
		return fmt.Errorf("graph: cascade relations: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM observations WHERE entity_id = ?`, id); err != nil {
		return fmt.Errorf("graph: cascade observations: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM entities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("graph: delete entity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: entity %q", ErrNotFound, id)
	}
	return tx.Commit()
}

// ─── Relations ───────────────────────────────────────────────────────────────

// CreateRelation creates a typed directed edge between two existing
// entities. Duplicate (from, to, type) edges are silently deduplicated; the
// second return reports whether a new edge was created. The relation type
// must be in the closed set and must be valid for the endpoint entity types.
func (s *Store) CreateRelation(fromID, toID, relType string) (*Relation, bool, error) {
	if !ValidRelationType(relType) {
		return nil, false, fmt.Errorf("%w: %q (known: %s)",
			ErrInvalidRelationType, relType, strings.Join(RelationTypes, ", "))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	from, err := s.getByID(fromID)
	if err != nil {
		return nil, false, err
	}
	if from == nil {
		return nil, false, fmt.Errorf("%w: entity %q", ErrNotFound, fromID)
	}
	to, err := s.getByID(toID)
	if err != nil {
		return nil, false, err
	}
	if to == nil {
		return nil, false, fmt.Errorf("%w: entity %q", ErrNotFound, toID)
	}

	if !relationAllowed(relType, from.Type, to.Type) {
		return nil, false, fmt.Errorf("%w: %s cannot connect %s → %s",
			ErrSemanticMismatch, relType, from.Type, to.Type)
	}

	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO relations (from_id, to_id, type) VALUES (?, ?, ?)`,
		fromID, toID, relType,
	)
	if err != nil {
		return nil, false, fmt.Errorf("graph: insert relation: %w", err)
	}
	n, _ := res.RowsAffected()

	row := s.db.QueryRow(
		`SELECT id, from_id, to_id, type, created_at FROM relations
		 WHERE from_id = ? AND to_id = ? AND type = ?`,
		fromID, toID, relType,
	)
	var r Relation
	if err := row.Scan(&r.ID, &r.FromID, &r.ToID, &r.Type, &r.CreatedAt); err != nil {
		return nil, false, fmt.Errorf("graph: read relation: %w", err)
	}
	return &r, n > 0, nil
}

// ListRelations returns relations matching the filter, ordered by id.
func (s *Store) ListRelations(f RelationFilter) ([]Relation, error) {
	query := `SELECT id, from_id, to_id, type, created_at FROM relations WHERE 1=1`
	args := []any{}
	if f.FromID != "" {
		query += ` AND from_id = ?`
		args = append(args, f.FromID)
	}
	if f.ToID != "" {
		query += ` AND to_id = ?`
		args = append(args, f.ToID)
	}
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, f.Type)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("graph: list relations: %w", err)
	}
	defer rows.Close()

	var result []Relation
	for rows.Next() {
		var r Relation
		if err := rows.Scan(&r.ID, &r.FromID, &r.ToID, &r.Type, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("graph: scan relation: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// RelationsFor returns all relations incident to an entity, in either
// direction.
func (s *Store) RelationsFor(entityID string) ([]Relation, error) {
	rows, err := s.db.Query(
		`SELECT id, from_id, to_id, type, created_at FROM relations
		 WHERE from_id = ? OR to_id = ? ORDER BY id ASC`,
		entityID, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("graph: relations for %s: %w", entityID, err)
	}
	defer rows.Close()

	var result []Relation
	for rows.Next() {
		var r Relation
		if err := rows.Scan(&r.ID, &r.FromID, &r.ToID, &r.Type, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("graph: scan relation: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// DeleteRelationsFor removes every relation incident to an entity and
// returns the number removed.
func (s *Store) DeleteRelationsFor(entityID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`DELETE FROM relations WHERE from_id = ? OR to_id = ?`, entityID, entityID,
	)
	if err != nil {
		return 0, fmt.Errorf("graph: delete relations: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

type rowLike interface {
	Scan(dest ...any) error
}

func scanEntity(row rowLike) (*Entity, error) {
	var e Entity
	var attrs string
	if err := row.Scan(&e.ID, &e.Type, &e.Name, &attrs, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, fmt.Errorf("graph: scan entity: %w", err)
	}
	if err := json.Unmarshal([]byte(attrs), &e.Attributes); err != nil {
		return nil, fmt.Errorf("graph: decode attributes for %s: %w", e.ID, err)
	}
	return &e, nil
}

func (s *Store) getByID(id string) (*Entity, error) {
	row := s.db.QueryRow(
		`SELECT id, type, name, attributes, created_at, updated_at FROM entities WHERE id = ?`, id,
	)
	e, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

func (s *Store) getByTypeName(entityType, name string) (*Entity, error) {
	row := s.db.QueryRow(
		`SELECT id, type, name, attributes, created_at, updated_at FROM entities
		 WHERE type = ? AND name = ?`, entityType, name,
	)
	e, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

func marshalAttrs(attrs map[string]any) (string, error) {
	if len(attrs) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("graph: encode attributes: %w", err)
	}
	return string(data), nil
}

// isUniqueViolation checks whether err is a SQLite unique constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
