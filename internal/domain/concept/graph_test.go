package concept

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edubridge/mastery-graph/internal/domain/shared"
)

// fakeReader is an in-memory Reader for walker tests. Edge slices keep
// insertion order, mirroring the creation-order guarantee of real
// repositories.
type fakeReader struct {
	concepts map[string]*Concept
	edges    []*Relationship
}

func newFakeReader() *fakeReader {
	return &fakeReader{concepts: make(map[string]*Concept)}
}

func (f *fakeReader) addConcept(id, name string, subject Subject) *Concept {
	c := &Concept{ID: id, Name: name, Subject: subject}
	f.concepts[id] = c
	return c
}

func (f *fakeReader) addEdge(sourceID, targetID string, kind RelationKind) {
	f.edges = append(f.edges, &Relationship{
		ID:       sourceID + "->" + targetID,
		SourceID: sourceID,
		TargetID: targetID,
		Kind:     kind,
		Strength: 0.5,
	})
}

func (f *fakeReader) GetConceptByID(ctx context.Context, id string) (*Concept, error) {
	if c, ok := f.concepts[id]; ok {
		return c, nil
	}
	return nil, shared.ErrConceptNotFound
}

func (f *fakeReader) GetConceptByName(ctx context.Context, name string) (*Concept, error) {
	for _, c := range f.concepts {
		if NormalizeAlias(c.Name) == NormalizeAlias(name) {
			return c, nil
		}
	}
	return nil, shared.ErrConceptNotFound
}

func (f *fakeReader) FindConceptByAlias(ctx context.Context, alias string) (*Concept, error) {
	for _, c := range f.concepts {
		if c.HasAlias(alias) {
			return c, nil
		}
	}
	return nil, shared.ErrConceptNotFound
}

func (f *fakeReader) ListIncoming(ctx context.Context, targetID string, kind RelationKind) ([]*Relationship, error) {
	out := make([]*Relationship, 0)
	for _, e := range f.edges {
		if e.TargetID == targetID && e.Kind == kind {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeReader) ListAllTouching(ctx context.Context, conceptID string) ([]*Relationship, error) {
	out := make([]*Relationship, 0)
	for _, e := range f.edges {
		if e.SourceID == conceptID || e.TargetID == conceptID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestWalker_PrerequisiteChain_DepthFirst(t *testing.T) {
	reader := newFakeReader()
	reader.addConcept("algebra", "Algebra", "mathematics")
	reader.addConcept("fractions", "Fractions", "mathematics")
	reader.addConcept("division", "Division", "mathematics")
	reader.addConcept("multiplication", "Multiplication", "mathematics")

	// fractions and multiplication precede algebra,
	// division precedes fractions
	reader.addEdge("fractions", "algebra", KindPrerequisite)
	reader.addEdge("multiplication", "algebra", KindPrerequisite)
	reader.addEdge("division", "fractions", KindPrerequisite)

	walker := NewWalker(reader)
	chain, err := walker.PrerequisiteChain(context.Background(), "algebra")
	require.NoError(t, err)

	// Depth-first: fractions branch is fully explored before multiplication
	require.Len(t, chain, 3)
	assert.Equal(t, "fractions", chain[0].Concept.ID)
	assert.Equal(t, 1, chain[0].Depth)
	assert.Equal(t, "division", chain[1].Concept.ID)
	assert.Equal(t, 2, chain[1].Depth)
	assert.Equal(t, "multiplication", chain[2].Concept.ID)
	assert.Equal(t, 1, chain[2].Depth)
}

func TestWalker_PrerequisiteChain_CycleTerminates(t *testing.T) {
	reader := newFakeReader()
	reader.addConcept("a", "A", "mathematics")
	reader.addConcept("b", "B", "mathematics")

	// Mutual prerequisites: the AI extractor can produce cycles
	reader.addEdge("b", "a", KindPrerequisite)
	reader.addEdge("a", "b", KindPrerequisite)

	walker := NewWalker(reader)
	chain, err := walker.PrerequisiteChain(context.Background(), "a")
	require.NoError(t, err)

	// The walk terminates and each node appears at most once
	require.Len(t, chain, 1)
	assert.Equal(t, "b", chain[0].Concept.ID)
}

func TestWalker_PrerequisiteChain_SharedPrerequisiteOnce(t *testing.T) {
	reader := newFakeReader()
	reader.addConcept("root", "Root", "mathematics")
	reader.addConcept("x", "X", "mathematics")
	reader.addConcept("y", "Y", "mathematics")
	reader.addConcept("base", "Base", "mathematics")

	reader.addEdge("x", "root", KindPrerequisite)
	reader.addEdge("y", "root", KindPrerequisite)
	reader.addEdge("base", "x", KindPrerequisite)
	reader.addEdge("base", "y", KindPrerequisite)

	walker := NewWalker(reader)
	chain, err := walker.PrerequisiteChain(context.Background(), "root")
	require.NoError(t, err)

	// base is reachable through both x and y but listed once, at the
	// depth of the first visit
	require.Len(t, chain, 3)
	assert.Equal(t, "x", chain[0].Concept.ID)
	assert.Equal(t, "base", chain[1].Concept.ID)
	assert.Equal(t, 2, chain[1].Depth)
	assert.Equal(t, "y", chain[2].Concept.ID)
}

func TestWalker_PrerequisiteChain_DanglingEdgeSkipped(t *testing.T) {
	reader := newFakeReader()
	reader.addConcept("root", "Root", "mathematics")
	reader.addConcept("known", "Known", "mathematics")

	reader.addEdge("ghost", "root", KindPrerequisite)
	reader.addEdge("known", "root", KindPrerequisite)

	walker := NewWalker(reader)
	chain, err := walker.PrerequisiteChain(context.Background(), "root")
	require.NoError(t, err)

	require.Len(t, chain, 1)
	assert.Equal(t, "known", chain[0].Concept.ID)
}

func TestWalker_PrerequisiteChain_UnknownConcept(t *testing.T) {
	walker := NewWalker(newFakeReader())
	_, err := walker.PrerequisiteChain(context.Background(), "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestWalker_CrossSubjectConnections(t *testing.T) {
	reader := newFakeReader()
	reader.addConcept("ratios", "Ratios", "mathematics")
	reader.addConcept("density", "Density", "physics")
	reader.addConcept("fractions", "Fractions", "mathematics")
	reader.addConcept("scale", "Map Scale", "geography")

	reader.addEdge("ratios", "density", KindAppliedIn)
	reader.addEdge("fractions", "ratios", KindPrerequisite) // same subject, excluded
	reader.addEdge("scale", "ratios", KindRelated)

	walker := NewWalker(reader)
	links, err := walker.CrossSubjectConnections(context.Background(), "ratios")
	require.NoError(t, err)

	require.Len(t, links, 2)
	assert.Equal(t, "density", links[0].Concept.ID)
	assert.True(t, links[0].Outgoing)
	assert.Equal(t, KindAppliedIn, links[0].Kind)
	assert.Equal(t, "scale", links[1].Concept.ID)
	assert.False(t, links[1].Outgoing)
}

func TestResolver_NameBeforeAlias(t *testing.T) {
	reader := newFakeReader()
	fractions := reader.addConcept("fractions", "Fractions", "mathematics")
	decimals := reader.addConcept("decimals", "Decimals", "mathematics")
	decimals.Aliases = []string{"fractions of ten"}
	fractions.Aliases = []string{"decimal parts"}

	resolver := NewResolver(reader)

	// Canonical name wins over any alias match
	c, err := resolver.Resolve(context.Background(), "Fractions")
	require.NoError(t, err)
	assert.Equal(t, "fractions", c.ID)

	c, err = resolver.Resolve(context.Background(), "decimal parts")
	require.NoError(t, err)
	assert.Equal(t, "fractions", c.ID)

	_, err = resolver.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = resolver.Resolve(context.Background(), "calculus")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
