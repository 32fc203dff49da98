package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edubridge/mastery-graph/internal/domain/concept"
	"github.com/edubridge/mastery-graph/internal/domain/shared"
)

func seedTaxonomyConcept(t *testing.T, repo *TaxonomyRepository, id, name string, aliases ...string) {
	t.Helper()
	c, err := concept.NewConcept(concept.NewConceptParams{
		ID:      id,
		Name:    name,
		Subject: "mathematics",
		Aliases: aliases,
	})
	require.NoError(t, err)
	require.NoError(t, repo.CreateConcept(context.Background(), c))
}

func TestTaxonomyRepository_DuplicateNameRejected(t *testing.T) {
	repo := NewTaxonomyRepository()
	seedTaxonomyConcept(t, repo, "c1", "Fractions")

	dup, err := concept.NewConcept(concept.NewConceptParams{ID: "c2", Name: "FRACTIONS", Subject: "mathematics"})
	require.NoError(t, err)
	err = repo.CreateConcept(context.Background(), dup)
	assert.ErrorIs(t, err, shared.ErrConceptAlreadyExists, "name uniqueness is case-insensitive")
}

func TestTaxonomyRepository_LookupIsCaseInsensitive(t *testing.T) {
	repo := NewTaxonomyRepository()
	seedTaxonomyConcept(t, repo, "c1", "Fractions", "fracciones")

	byName, err := repo.GetConceptByName(context.Background(), "fRaCtIoNs")
	require.NoError(t, err)
	assert.Equal(t, "c1", byName.ID)

	byAlias, err := repo.FindConceptByAlias(context.Background(), "FRACCIONES")
	require.NoError(t, err)
	assert.Equal(t, "c1", byAlias.ID)

	_, err = repo.FindConceptByAlias(context.Background(), "quebrados")
	assert.ErrorIs(t, err, shared.ErrConceptNotFound)
}

func TestTaxonomyRepository_AmbiguousAliasResolvesToEarliestCreated(t *testing.T) {
	repo := NewTaxonomyRepository()
	seedTaxonomyConcept(t, repo, "c-old", "Fractions", "parts of a whole")
	seedTaxonomyConcept(t, repo, "c-new", "Ratios", "parts of a whole")

	c, err := repo.FindConceptByAlias(context.Background(), "parts of a whole")
	require.NoError(t, err)
	assert.Equal(t, "c-old", c.ID)
}

func TestTaxonomyRepository_EdgeUpsertKey(t *testing.T) {
	repo := NewTaxonomyRepository()
	ctx := context.Background()
	seedTaxonomyConcept(t, repo, "division", "Division")
	seedTaxonomyConcept(t, repo, "fractions", "Fractions")

	rel, err := concept.NewRelationship(concept.NewRelationshipParams{
		ID:       "r1",
		SourceID: "division",
		TargetID: "fractions",
		Kind:     concept.KindPrerequisite,
		Strength: 0.8,
	})
	require.NoError(t, err)
	require.NoError(t, repo.CreateRelationship(ctx, rel))

	// Same (source, target, kind) triple is a duplicate regardless of ID
	dup, err := concept.NewRelationship(concept.NewRelationshipParams{
		ID:       "r2",
		SourceID: "division",
		TargetID: "fractions",
		Kind:     concept.KindPrerequisite,
		Strength: 0.5,
	})
	require.NoError(t, err)
	err = repo.CreateRelationship(ctx, dup)
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	// A different kind between the same pair is a distinct edge
	related, err := concept.NewRelationship(concept.NewRelationshipParams{
		ID:       "r3",
		SourceID: "division",
		TargetID: "fractions",
		Kind:     concept.KindRelated,
		Strength: 0.5,
	})
	require.NoError(t, err)
	require.NoError(t, repo.CreateRelationship(ctx, related))
	assert.Equal(t, 2, repo.RelationshipCount())

	got, err := repo.GetRelationship(ctx, "division", "fractions", concept.KindPrerequisite)
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)
}

func TestTaxonomyRepository_ListRelationshipsAmong(t *testing.T) {
	repo := NewTaxonomyRepository()
	ctx := context.Background()
	seedTaxonomyConcept(t, repo, "a", "Addition")
	seedTaxonomyConcept(t, repo, "b", "Subtraction")
	seedTaxonomyConcept(t, repo, "c", "Multiplication")

	mk := func(id, src, dst string) {
		rel, err := concept.NewRelationship(concept.NewRelationshipParams{
			ID: id, SourceID: src, TargetID: dst, Kind: concept.KindPrerequisite, Strength: 0.7,
		})
		require.NoError(t, err)
		require.NoError(t, repo.CreateRelationship(ctx, rel))
	}
	mk("r1", "a", "b")
	mk("r2", "a", "c")
	mk("r3", "b", "c")

	// Only edges with both endpoints inside the set
	rels, err := repo.ListRelationshipsAmong(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "r1", rels[0].ID)

	touching, err := repo.ListAllTouching(ctx, "c")
	require.NoError(t, err)
	assert.Len(t, touching, 2)
}
