package graph

import "errors"

// Error taxonomy for graph operations. Callers classify with errors.Is;
// everything else wrapping out of the store is a storage failure and is
// fatal to the operation that hit it.
var (
	// ErrNotFound — a referenced entity or relation does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEntity — an entity with the same type and name already
	// exists and the caller did not request upsert.
	ErrDuplicateEntity = errors.New("duplicate entity")

	// ErrInvalidEntityType — the entity type is outside the closed set.
	ErrInvalidEntityType = errors.New("invalid entity type")

	// ErrInvalidRelationType — the relation type is outside the closed set.
	ErrInvalidRelationType = errors.New("invalid relation type")

	// ErrSemanticMismatch — the relation type does not connect the given
	// pair of entity types under the edge schema.
	ErrSemanticMismatch = errors.New("semantic mismatch")
)
