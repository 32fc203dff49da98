package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edubridge/mastery-graph/internal/domain/concept"
	"github.com/edubridge/mastery-graph/internal/infrastructure/persistence/memory"
)

func newIngestFixture() (*IngestExtractionHandler, *memory.TaxonomyRepository, *capturingPublisher) {
	taxonomy := memory.NewTaxonomyRepository()
	publisher := &capturingPublisher{}
	return NewIngestExtractionHandler(taxonomy, publisher, nil), taxonomy, publisher
}

func TestIngestExtraction_EmptyBatchRejected(t *testing.T) {
	handler, _, _ := newIngestFixture()

	_, err := handler.Handle(context.Background(), IngestExtractionCommand{})
	assert.Error(t, err)

	_, err = handler.Handle(context.Background(), IngestExtractionCommand{
		Concepts:   []ConceptCandidate{{Name: "Fractions", Subject: "mathematics"}},
		Provenance: "martian",
	})
	assert.Error(t, err, "unknown provenance rejected")
}

func TestIngestExtraction_CreatesConceptsAndEdges(t *testing.T) {
	handler, taxonomy, publisher := newIngestFixture()

	result, err := handler.Handle(context.Background(), IngestExtractionCommand{
		Concepts: []ConceptCandidate{
			{Name: "Fractions", Subject: "mathematics", Aliases: []string{"fracciones"}},
			{Name: "Division", Subject: "mathematics"},
		},
		Relationships: []RelationshipCandidate{
			{Source: "Division", Target: "Fractions", Kind: "prerequisite", Strength: 0.9, Confidence: 0.8},
		},
		Provenance: "ai",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.ConceptsCreated)
	assert.Equal(t, 0, result.ConceptsUpdated)
	assert.Equal(t, 1, result.RelationshipsCreated)
	assert.Empty(t, result.Quarantined)
	assert.Len(t, publisher.types(), 3)

	c, err := taxonomy.GetConceptByName(context.Background(), "fractions")
	require.NoError(t, err)
	assert.Equal(t, concept.ProvenanceAI, c.Provenance)
	assert.Equal(t, []string{"fracciones"}, c.Aliases)

	rels, err := taxonomy.ListIncoming(context.Background(), c.ID, concept.KindPrerequisite)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, concept.Strength(0.9), rels[0].Strength)
}

func TestIngestExtraction_UpsertIsIdempotent(t *testing.T) {
	handler, taxonomy, _ := newIngestFixture()
	batch := IngestExtractionCommand{
		Concepts: []ConceptCandidate{
			{Name: "Fractions", Subject: "mathematics", Aliases: []string{"fracciones"}},
		},
		Relationships: []RelationshipCandidate{
			{Source: "Fractions", Target: "Fractions", Kind: "related"},
		},
	}
	// Self-edge quarantined, concept applied
	first, err := handler.Handle(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, first.ConceptsCreated)
	assert.Len(t, first.Quarantined, 1)

	// Re-ingesting changes nothing
	second, err := handler.Handle(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 0, second.ConceptsCreated)
	assert.Equal(t, 0, second.ConceptsUpdated, "no new aliases, no update")

	assert.Equal(t, 1, taxonomy.ConceptCount())
}

func TestIngestExtraction_MergesAliasesIntoExisting(t *testing.T) {
	handler, taxonomy, _ := newIngestFixture()

	_, err := handler.Handle(context.Background(), IngestExtractionCommand{
		Concepts: []ConceptCandidate{{Name: "Fractions", Subject: "mathematics"}},
	})
	require.NoError(t, err)

	// Same concept, different casing, new aliases
	result, err := handler.Handle(context.Background(), IngestExtractionCommand{
		Concepts: []ConceptCandidate{
			{Name: "FRACTIONS", Subject: "mathematics", Aliases: []string{"common fractions"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ConceptsCreated)
	assert.Equal(t, 1, result.ConceptsUpdated)

	c, err := taxonomy.GetConceptByName(context.Background(), "Fractions")
	require.NoError(t, err)
	assert.Equal(t, "Fractions", c.Name, "canonical name keeps the original casing")
	assert.Contains(t, c.Aliases, "common fractions")
}

func TestIngestExtraction_CandidateNamedLikeAliasEnrichesConcept(t *testing.T) {
	handler, taxonomy, _ := newIngestFixture()

	_, err := handler.Handle(context.Background(), IngestExtractionCommand{
		Concepts: []ConceptCandidate{
			{Name: "Fractions", Subject: "mathematics", Aliases: []string{"fracciones"}},
		},
	})
	require.NoError(t, err)

	// A candidate named after a registered alias must not create a duplicate
	result, err := handler.Handle(context.Background(), IngestExtractionCommand{
		Concepts: []ConceptCandidate{
			{Name: "Fracciones", Subject: "mathematics", Aliases: []string{"quebrados"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ConceptsCreated)
	assert.Equal(t, 1, result.ConceptsUpdated)
	assert.Equal(t, 1, taxonomy.ConceptCount())

	c, err := taxonomy.GetConceptByName(context.Background(), "Fractions")
	require.NoError(t, err)
	assert.Contains(t, c.Aliases, "quebrados")
}

func TestIngestExtraction_QuarantineKeepsSiblings(t *testing.T) {
	handler, taxonomy, _ := newIngestFixture()

	result, err := handler.Handle(context.Background(), IngestExtractionCommand{
		Concepts: []ConceptCandidate{
			{Name: "Fractions", Subject: "mathematics"},
			{Name: "   ", Subject: "mathematics"},
			{Name: "Broken", Subject: ""},
			{Name: "Division", Subject: "mathematics"},
		},
		Relationships: []RelationshipCandidate{
			{Source: "Division", Target: "Fractions", Kind: "prerequisite", Strength: 0.9, Confidence: 0.8},
			{Source: "Ghost", Target: "Fractions", Kind: "prerequisite"},
			{Source: "Division", Target: "Fractions", Kind: "causes"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.ConceptsCreated)
	assert.Equal(t, 1, result.RelationshipsCreated)
	require.Len(t, result.Quarantined, 4)
	assert.Equal(t, 2, taxonomy.ConceptCount())
	assert.Equal(t, 1, taxonomy.RelationshipCount())
}

func TestIngestExtraction_RefreshesEdgeMetadata(t *testing.T) {
	handler, taxonomy, _ := newIngestFixture()

	_, err := handler.Handle(context.Background(), IngestExtractionCommand{
		Concepts: []ConceptCandidate{
			{Name: "Fractions", Subject: "mathematics"},
			{Name: "Division", Subject: "mathematics"},
		},
		Relationships: []RelationshipCandidate{
			{Source: "Division", Target: "Fractions", Kind: "prerequisite", Strength: 0.5, Confidence: 0.5, Reasoning: "initial"},
		},
	})
	require.NoError(t, err)

	result, err := handler.Handle(context.Background(), IngestExtractionCommand{
		Relationships: []RelationshipCandidate{
			{Source: "Division", Target: "Fractions", Kind: "prerequisite", Strength: 0.9, Confidence: 0.95, Reasoning: "re-extracted"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.RelationshipsRefreshed)
	assert.Equal(t, 0, result.RelationshipsCreated)

	fractions, err := taxonomy.GetConceptByName(context.Background(), "Fractions")
	require.NoError(t, err)
	rels, err := taxonomy.ListIncoming(context.Background(), fractions.ID, concept.KindPrerequisite)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, concept.Strength(0.9), rels[0].Strength)
	assert.Equal(t, "re-extracted", rels[0].Reasoning)
}
