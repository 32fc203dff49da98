// Package postgres implements the PostgreSQL persistence layer of the
// mastery graph engine.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/edubridge/mastery-graph/internal/domain/concept"
	"github.com/edubridge/mastery-graph/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONCEPT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ConceptRepository implements concept.Repository for PostgreSQL.
type ConceptRepository struct {
	conn *Connection
}

// NewConceptRepository creates a new ConceptRepository.
func NewConceptRepository(conn *Connection) *ConceptRepository {
	return &ConceptRepository{conn: conn}
}

const conceptColumns = `id, name, subject, grade_band, description, aliases, difficulty, provenance, created_at, updated_at`

// ─────────────────────────────────────────────────────────────────────────────
// Concepts
// ─────────────────────────────────────────────────────────────────────────────

// CreateConcept creates a new concept.
func (r *ConceptRepository) CreateConcept(ctx context.Context, c *concept.Concept) error {
	query := `
		INSERT INTO concepts (
			id, name, subject, grade_band, description, aliases, difficulty,
			provenance, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.conn.Exec(ctx, query,
		c.ID,
		c.Name,
		string(c.Subject),
		string(c.GradeBand),
		c.Description,
		c.Aliases,
		c.Difficulty,
		string(c.Provenance),
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrConceptAlreadyExists
		}
		return fmt.Errorf("failed to create concept: %w", err)
	}

	return nil
}

// UpdateConcept updates a concept.
func (r *ConceptRepository) UpdateConcept(ctx context.Context, c *concept.Concept) error {
	query := `
		UPDATE concepts
		SET name = $2, subject = $3, grade_band = $4, description = $5,
			aliases = $6, difficulty = $7, provenance = $8, updated_at = $9
		WHERE id = $1
	`

	tag, err := r.conn.Exec(ctx, query,
		c.ID,
		c.Name,
		string(c.Subject),
		string(c.GradeBand),
		c.Description,
		c.Aliases,
		c.Difficulty,
		string(c.Provenance),
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update concept: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrConceptNotFound
	}

	return nil
}

// GetConceptByID returns a concept by ID.
func (r *ConceptRepository) GetConceptByID(ctx context.Context, id string) (*concept.Concept, error) {
	query := `SELECT ` + conceptColumns + ` FROM concepts WHERE id = $1`

	return r.scanConcept(r.conn.QueryRow(ctx, query, id))
}

// GetConceptByName returns a concept by canonical name, case-insensitively.
func (r *ConceptRepository) GetConceptByName(ctx context.Context, name string) (*concept.Concept, error) {
	query := `SELECT ` + conceptColumns + ` FROM concepts WHERE LOWER(name) = LOWER($1)`

	return r.scanConcept(r.conn.QueryRow(ctx, query, name))
}

// FindConceptByAlias returns the concept carrying the alias.
// On ambiguity the earliest created concept wins; (created_at, id) gives a
// stable order when creation timestamps collide.
func (r *ConceptRepository) FindConceptByAlias(ctx context.Context, alias string) (*concept.Concept, error) {
	query := `
		SELECT ` + conceptColumns + `
		FROM concepts
		WHERE $1 = ANY(aliases)
		ORDER BY created_at, id
		LIMIT 1
	`

	return r.scanConcept(r.conn.QueryRow(ctx, query, concept.NormalizeAlias(alias)))
}

// ListConceptsByIDs returns the concepts with the given IDs. Unknown IDs are
// skipped.
func (r *ConceptRepository) ListConceptsByIDs(ctx context.Context, ids []string) ([]*concept.Concept, error) {
	if len(ids) == 0 {
		return []*concept.Concept{}, nil
	}

	query := `SELECT ` + conceptColumns + ` FROM concepts WHERE id = ANY($1)`

	rows, err := r.conn.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list concepts: %w", err)
	}
	defer rows.Close()

	return r.collectConcepts(rows)
}

func (r *ConceptRepository) scanConcept(row pgx.Row) (*concept.Concept, error) {
	var c concept.Concept
	var subject, provenance string

	err := row.Scan(
		&c.ID,
		&c.Name,
		&subject,
		(*string)(&c.GradeBand),
		&c.Description,
		&c.Aliases,
		&c.Difficulty,
		&provenance,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrConceptNotFound
		}
		return nil, fmt.Errorf("failed to scan concept: %w", err)
	}

	c.Subject = concept.Subject(subject)
	c.Provenance = concept.Provenance(provenance)
	return &c, nil
}

func (r *ConceptRepository) collectConcepts(rows pgx.Rows) ([]*concept.Concept, error) {
	concepts := make([]*concept.Concept, 0)
	for rows.Next() {
		c, err := r.scanConcept(rows)
		if err != nil {
			return nil, err
		}
		concepts = append(concepts, c)
	}
	return concepts, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Relationships
// ─────────────────────────────────────────────────────────────────────────────

const relationshipColumns = `id, source_id, target_id, kind, strength, confidence, reasoning, provenance, created_at, updated_at`

// CreateRelationship creates a new edge.
func (r *ConceptRepository) CreateRelationship(ctx context.Context, rel *concept.Relationship) error {
	query := `
		INSERT INTO concept_relationships (
			id, source_id, target_id, kind, strength, confidence, reasoning,
			provenance, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.conn.Exec(ctx, query,
		rel.ID,
		rel.SourceID,
		rel.TargetID,
		string(rel.Kind),
		float64(rel.Strength),
		float64(rel.Confidence),
		rel.Reasoning,
		string(rel.Provenance),
		rel.CreatedAt,
		rel.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		if IsForeignKeyViolation(err) {
			return shared.ErrConceptNotFound
		}
		return fmt.Errorf("failed to create relationship: %w", err)
	}

	return nil
}

// UpdateRelationship updates the metadata of an existing edge.
func (r *ConceptRepository) UpdateRelationship(ctx context.Context, rel *concept.Relationship) error {
	query := `
		UPDATE concept_relationships
		SET strength = $2, confidence = $3, reasoning = $4, updated_at = $5
		WHERE id = $1
	`

	tag, err := r.conn.Exec(ctx, query,
		rel.ID,
		float64(rel.Strength),
		float64(rel.Confidence),
		rel.Reasoning,
		rel.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update relationship: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}

	return nil
}

// GetRelationship returns the edge with the (source, target, kind) triple.
func (r *ConceptRepository) GetRelationship(ctx context.Context, sourceID, targetID string, kind concept.RelationKind) (*concept.Relationship, error) {
	query := `
		SELECT ` + relationshipColumns + `
		FROM concept_relationships
		WHERE source_id = $1 AND target_id = $2 AND kind = $3
	`

	return r.scanRelationship(r.conn.QueryRow(ctx, query, sourceID, targetID, string(kind)))
}

// ListIncoming returns edges of the kind pointing into the concept,
// in creation order.
func (r *ConceptRepository) ListIncoming(ctx context.Context, targetID string, kind concept.RelationKind) ([]*concept.Relationship, error) {
	query := `
		SELECT ` + relationshipColumns + `
		FROM concept_relationships
		WHERE target_id = $1 AND kind = $2
		ORDER BY created_at, id
	`

	rows, err := r.conn.Query(ctx, query, targetID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list incoming edges: %w", err)
	}
	defer rows.Close()

	return r.collectRelationships(rows)
}

// ListOutgoing returns edges of the kind leaving the concept,
// in creation order.
func (r *ConceptRepository) ListOutgoing(ctx context.Context, sourceID string, kind concept.RelationKind) ([]*concept.Relationship, error) {
	query := `
		SELECT ` + relationshipColumns + `
		FROM concept_relationships
		WHERE source_id = $1 AND kind = $2
		ORDER BY created_at, id
	`

	rows, err := r.conn.Query(ctx, query, sourceID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list outgoing edges: %w", err)
	}
	defer rows.Close()

	return r.collectRelationships(rows)
}

// ListRelationshipsAmong returns edges with both endpoints in the set.
func (r *ConceptRepository) ListRelationshipsAmong(ctx context.Context, conceptIDs []string) ([]*concept.Relationship, error) {
	if len(conceptIDs) == 0 {
		return []*concept.Relationship{}, nil
	}

	query := `
		SELECT ` + relationshipColumns + `
		FROM concept_relationships
		WHERE source_id = ANY($1) AND target_id = ANY($1)
		ORDER BY created_at, id
	`

	rows, err := r.conn.Query(ctx, query, conceptIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships among concepts: %w", err)
	}
	defer rows.Close()

	return r.collectRelationships(rows)
}

// ListAllTouching returns all edges incident to the concept.
func (r *ConceptRepository) ListAllTouching(ctx context.Context, conceptID string) ([]*concept.Relationship, error) {
	query := `
		SELECT ` + relationshipColumns + `
		FROM concept_relationships
		WHERE source_id = $1 OR target_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.conn.Query(ctx, query, conceptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list touching edges: %w", err)
	}
	defer rows.Close()

	return r.collectRelationships(rows)
}

func (r *ConceptRepository) scanRelationship(row pgx.Row) (*concept.Relationship, error) {
	var rel concept.Relationship
	var kind, provenance string
	var strength, confidence float64

	err := row.Scan(
		&rel.ID,
		&rel.SourceID,
		&rel.TargetID,
		&kind,
		&strength,
		&confidence,
		&rel.Reasoning,
		&provenance,
		&rel.CreatedAt,
		&rel.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan relationship: %w", err)
	}

	rel.Kind = concept.RelationKind(kind)
	rel.Strength = concept.Strength(strength)
	rel.Confidence = concept.Confidence(confidence)
	return &rel, nil
}

func (r *ConceptRepository) collectRelationships(rows pgx.Rows) ([]*concept.Relationship, error) {
	rels := make([]*concept.Relationship, 0)
	for rows.Next() {
		rel, err := r.scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}

var _ concept.Repository = (*ConceptRepository)(nil)
