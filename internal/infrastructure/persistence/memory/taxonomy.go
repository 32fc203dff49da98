// Package memory provides in-memory repository implementations.
// Used by tests and by the engine's storage-free development mode; the
// semantics mirror the postgres repositories.
package memory

import (
	"context"
	"sync"

	"github.com/edubridge/mastery-graph/internal/domain/concept"
	"github.com/edubridge/mastery-graph/internal/domain/shared"
)

// TaxonomyRepository is an in-memory concept.Repository.
type TaxonomyRepository struct {
	mu sync.RWMutex

	// conceptOrder preserves creation order: alias ambiguity resolves to
	// the earliest created concept.
	concepts     map[string]*concept.Concept
	conceptOrder []string

	// relOrder preserves creation order: traversal order at each level is
	// edge creation order.
	relationships map[string]*concept.Relationship
	relOrder      []string
}

// NewTaxonomyRepository creates an empty in-memory taxonomy.
func NewTaxonomyRepository() *TaxonomyRepository {
	return &TaxonomyRepository{
		concepts:      make(map[string]*concept.Concept),
		relationships: make(map[string]*concept.Relationship),
	}
}

// CreateConcept implements concept.Repository.
func (r *TaxonomyRepository) CreateConcept(_ context.Context, c *concept.Concept) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.concepts {
		if concept.NormalizeAlias(existing.Name) == concept.NormalizeAlias(c.Name) {
			return shared.ErrConceptAlreadyExists
		}
	}

	clone := cloneConcept(c)
	r.concepts[c.ID] = clone
	r.conceptOrder = append(r.conceptOrder, c.ID)
	return nil
}

// UpdateConcept implements concept.Repository.
func (r *TaxonomyRepository) UpdateConcept(_ context.Context, c *concept.Concept) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.concepts[c.ID]; !ok {
		return shared.ErrConceptNotFound
	}
	r.concepts[c.ID] = cloneConcept(c)
	return nil
}

// GetConceptByID implements concept.Repository.
func (r *TaxonomyRepository) GetConceptByID(_ context.Context, id string) (*concept.Concept, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.concepts[id]
	if !ok {
		return nil, shared.ErrConceptNotFound
	}
	return cloneConcept(c), nil
}

// GetConceptByName implements concept.Repository. Matching is case-insensitive.
func (r *TaxonomyRepository) GetConceptByName(_ context.Context, name string) (*concept.Concept, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	normalized := concept.NormalizeAlias(name)
	for _, id := range r.conceptOrder {
		if concept.NormalizeAlias(r.concepts[id].Name) == normalized {
			return cloneConcept(r.concepts[id]), nil
		}
	}
	return nil, shared.ErrConceptNotFound
}

// FindConceptByAlias implements concept.Repository.
// On ambiguity the earliest created concept wins.
func (r *TaxonomyRepository) FindConceptByAlias(_ context.Context, alias string) (*concept.Concept, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.conceptOrder {
		if r.concepts[id].HasAlias(alias) {
			return cloneConcept(r.concepts[id]), nil
		}
	}
	return nil, shared.ErrConceptNotFound
}

// ListConceptsByIDs implements concept.Repository. Unknown IDs are skipped.
func (r *TaxonomyRepository) ListConceptsByIDs(_ context.Context, ids []string) ([]*concept.Concept, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*concept.Concept, 0, len(ids))
	for _, id := range ids {
		if c, ok := r.concepts[id]; ok {
			out = append(out, cloneConcept(c))
		}
	}
	return out, nil
}

// CreateRelationship implements concept.Repository.
func (r *TaxonomyRepository) CreateRelationship(_ context.Context, rel *concept.Relationship) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.relationships {
		if existing.SourceID == rel.SourceID && existing.TargetID == rel.TargetID && existing.Kind == rel.Kind {
			return shared.ErrAlreadyExists
		}
	}

	r.relationships[rel.ID] = cloneRelationship(rel)
	r.relOrder = append(r.relOrder, rel.ID)
	return nil
}

// UpdateRelationship implements concept.Repository.
func (r *TaxonomyRepository) UpdateRelationship(_ context.Context, rel *concept.Relationship) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.relationships[rel.ID]; !ok {
		return shared.ErrNotFound
	}
	r.relationships[rel.ID] = cloneRelationship(rel)
	return nil
}

// GetRelationship implements concept.Repository.
func (r *TaxonomyRepository) GetRelationship(_ context.Context, sourceID, targetID string, kind concept.RelationKind) (*concept.Relationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.relOrder {
		rel := r.relationships[id]
		if rel.SourceID == sourceID && rel.TargetID == targetID && rel.Kind == kind {
			return cloneRelationship(rel), nil
		}
	}
	return nil, shared.ErrNotFound
}

// ListIncoming implements concept.Repository. Creation order.
func (r *TaxonomyRepository) ListIncoming(_ context.Context, targetID string, kind concept.RelationKind) ([]*concept.Relationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*concept.Relationship, 0)
	for _, id := range r.relOrder {
		rel := r.relationships[id]
		if rel.TargetID == targetID && rel.Kind == kind {
			out = append(out, cloneRelationship(rel))
		}
	}
	return out, nil
}

// ListOutgoing implements concept.Repository. Creation order.
func (r *TaxonomyRepository) ListOutgoing(_ context.Context, sourceID string, kind concept.RelationKind) ([]*concept.Relationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*concept.Relationship, 0)
	for _, id := range r.relOrder {
		rel := r.relationships[id]
		if rel.SourceID == sourceID && rel.Kind == kind {
			out = append(out, cloneRelationship(rel))
		}
	}
	return out, nil
}

// ListRelationshipsAmong implements concept.Repository.
func (r *TaxonomyRepository) ListRelationshipsAmong(_ context.Context, conceptIDs []string) ([]*concept.Relationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	member := make(map[string]bool, len(conceptIDs))
	for _, id := range conceptIDs {
		member[id] = true
	}

	out := make([]*concept.Relationship, 0)
	for _, id := range r.relOrder {
		rel := r.relationships[id]
		if member[rel.SourceID] && member[rel.TargetID] {
			out = append(out, cloneRelationship(rel))
		}
	}
	return out, nil
}

// ListAllTouching implements concept.Repository.
func (r *TaxonomyRepository) ListAllTouching(_ context.Context, conceptID string) ([]*concept.Relationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*concept.Relationship, 0)
	for _, id := range r.relOrder {
		rel := r.relationships[id]
		if rel.SourceID == conceptID || rel.TargetID == conceptID {
			out = append(out, cloneRelationship(rel))
		}
	}
	return out, nil
}

// ConceptCount returns the number of stored concepts. Test helper.
func (r *TaxonomyRepository) ConceptCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.concepts)
}

// RelationshipCount returns the number of stored edges. Test helper.
func (r *TaxonomyRepository) RelationshipCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.relationships)
}

func cloneConcept(c *concept.Concept) *concept.Concept {
	clone := *c
	clone.Aliases = append([]string(nil), c.Aliases...)
	return &clone
}

func cloneRelationship(rel *concept.Relationship) *concept.Relationship {
	clone := *rel
	return &clone
}

var _ concept.Repository = (*TaxonomyRepository)(nil)
