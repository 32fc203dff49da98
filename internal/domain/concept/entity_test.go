package concept

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConcept_Validation(t *testing.T) {
	_, err := NewConcept(NewConceptParams{Name: "Fractions", Subject: "mathematics"})
	assert.Error(t, err, "missing id")

	_, err = NewConcept(NewConceptParams{ID: "c1", Name: "   ", Subject: "mathematics"})
	assert.Error(t, err, "blank name")

	_, err = NewConcept(NewConceptParams{ID: "c1", Name: "Fractions"})
	assert.Error(t, err, "missing subject")

	_, err = NewConcept(NewConceptParams{ID: "c1", Name: "Fractions", Subject: "mathematics", Provenance: "robot"})
	assert.Error(t, err, "unknown provenance")

	_, err = NewConcept(NewConceptParams{ID: "c1", Name: "Fractions", Subject: "mathematics", Difficulty: 1.5})
	assert.Error(t, err, "difficulty out of range")

	c, err := NewConcept(NewConceptParams{ID: "c1", Name: "  Fractions  ", Subject: "mathematics"})
	require.NoError(t, err)
	assert.Equal(t, "Fractions", c.Name)
	assert.Equal(t, ProvenanceHuman, c.Provenance, "provenance defaults to human")
}

func TestConcept_MergeAliases_Union(t *testing.T) {
	c, err := NewConcept(NewConceptParams{
		ID:      "c1",
		Name:    "Fractions",
		Subject: "mathematics",
		Aliases: []string{"Fracciones", "simple fractions"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"fracciones", "simple fractions"}, c.Aliases)

	// Union: duplicates and the canonical name itself are dropped,
	// existing order is preserved
	changed := c.MergeAliases([]string{"FRACCIONES", "fractions", "common fractions"})
	assert.True(t, changed)
	assert.Equal(t, []string{"fracciones", "simple fractions", "common fractions"}, c.Aliases)

	changed = c.MergeAliases([]string{"fracciones", "  ", ""})
	assert.False(t, changed)
	assert.Equal(t, []string{"fracciones", "simple fractions", "common fractions"}, c.Aliases)
}

func TestConcept_Matches(t *testing.T) {
	c, err := NewConcept(NewConceptParams{
		ID:      "c1",
		Name:    "Fractions",
		Subject: "mathematics",
		Aliases: []string{"fracciones"},
	})
	require.NoError(t, err)

	assert.True(t, c.Matches("fractions"))
	assert.True(t, c.Matches("  FRACTIONS "))
	assert.True(t, c.Matches("Fracciones"))
	assert.False(t, c.Matches("decimals"))
}

func TestNewRelationship_Validation(t *testing.T) {
	valid := NewRelationshipParams{
		ID:         "r1",
		SourceID:   "c1",
		TargetID:   "c2",
		Kind:       KindPrerequisite,
		Strength:   0.8,
		Confidence: 0.9,
	}

	r, err := NewRelationship(valid)
	require.NoError(t, err)
	assert.Equal(t, ProvenanceHuman, r.Provenance)

	selfEdge := valid
	selfEdge.TargetID = "c1"
	_, err = NewRelationship(selfEdge)
	assert.Error(t, err, "self edge rejected")

	badKind := valid
	badKind.Kind = "causes"
	_, err = NewRelationship(badKind)
	assert.Error(t, err, "unknown kind rejected")

	badStrength := valid
	badStrength.Strength = 1.2
	_, err = NewRelationship(badStrength)
	assert.Error(t, err, "strength out of range")
}

func TestRelationship_RefreshMetadata(t *testing.T) {
	r, err := NewRelationship(NewRelationshipParams{
		ID:         "r1",
		SourceID:   "c1",
		TargetID:   "c2",
		Kind:       KindPrerequisite,
		Strength:   0.5,
		Confidence: 0.5,
		Reasoning:  "initial",
	})
	require.NoError(t, err)

	require.NoError(t, r.RefreshMetadata(0.9, 0.95, "re-extracted"))
	assert.Equal(t, Strength(0.9), r.Strength)
	assert.Equal(t, Confidence(0.95), r.Confidence)
	assert.Equal(t, "re-extracted", r.Reasoning)

	// Empty reasoning keeps the previous text
	require.NoError(t, r.RefreshMetadata(0.7, 0.8, ""))
	assert.Equal(t, "re-extracted", r.Reasoning)

	assert.Error(t, r.RefreshMetadata(2.0, 0.8, ""))
}
