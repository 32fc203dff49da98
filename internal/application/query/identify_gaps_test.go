package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edubridge/mastery-graph/internal/domain/concept"
	"github.com/edubridge/mastery-graph/internal/domain/mastery"
	"github.com/edubridge/mastery-graph/internal/infrastructure/persistence/memory"
)

// fakeRequirements is a RequiredConceptsProvider backed by a map.
type fakeRequirements struct {
	byClass map[string][]string
	err     error
}

func (f *fakeRequirements) RequiredConcepts(_ context.Context, classID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byClass[classID], nil
}

type gapsFixture struct {
	handler      *IdentifyGapsHandler
	taxonomy     *memory.TaxonomyRepository
	ledger       *memory.MasteryRepository
	requirements *fakeRequirements
	now          time.Time
}

func newGapsFixture(t *testing.T) *gapsFixture {
	t.Helper()

	taxonomy := memory.NewTaxonomyRepository()
	ledger := memory.NewMasteryRepository()
	requirements := &fakeRequirements{byClass: make(map[string][]string)}

	handler := NewIdentifyGapsHandler(requirements, taxonomy, ledger, nil)
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	handler.now = func() time.Time { return now }

	return &gapsFixture{
		handler:      handler,
		taxonomy:     taxonomy,
		ledger:       ledger,
		requirements: requirements,
		now:          now,
	}
}

func (f *gapsFixture) seedConcept(t *testing.T, id, name string) {
	t.Helper()
	c, err := concept.NewConcept(concept.NewConceptParams{ID: id, Name: name, Subject: "mathematics"})
	require.NoError(t, err)
	require.NoError(t, f.taxonomy.CreateConcept(context.Background(), c))
}

// seedMastery applies correct/incorrect attempts so that the percent lands
// where the scenario needs it, with the last attempt at the given time.
func (f *gapsFixture) seedMastery(t *testing.T, conceptID string, correct, incorrect int, lastAssessed time.Time) {
	t.Helper()

	rec, err := mastery.NewMasteryRecord("rec-"+conceptID, "student-1", conceptID)
	require.NoError(t, err)
	for i := 0; i < incorrect; i++ {
		rec.ApplyAttempt("class-prev", false, "quiz", lastAssessed)
	}
	for i := 0; i < correct; i++ {
		rec.ApplyAttempt("class-prev", true, "quiz", lastAssessed)
	}

	classRec, err := mastery.NewClassMasteryRecord("class-rec-"+conceptID, rec, "class-prev", "")
	require.NoError(t, err)
	require.NoError(t, f.ledger.SaveAttempt(context.Background(), rec, classRec))
}

func TestIdentifyGaps_Validation(t *testing.T) {
	f := newGapsFixture(t)

	_, err := f.handler.Handle(context.Background(), IdentifyGapsQuery{ClassID: "class-1"})
	assert.Error(t, err)

	_, err = f.handler.Handle(context.Background(), IdentifyGapsQuery{StudentID: "student-1"})
	assert.Error(t, err)
}

func TestIdentifyGaps_SeverityBuckets(t *testing.T) {
	f := newGapsFixture(t)
	f.seedConcept(t, "fractions", "Fractions")
	f.seedConcept(t, "decimals", "Decimals")
	f.seedConcept(t, "ratios", "Ratios")
	f.seedConcept(t, "algebra", "Algebra")

	twoYearsAgo := f.now.AddDate(-2, -1, 0)
	// fractions: 1/3 = 33%, below beginning -> HIGH
	f.seedMastery(t, "fractions", 1, 2, twoYearsAgo)
	// decimals: 1/2 = 50%, developing -> MEDIUM
	f.seedMastery(t, "decimals", 1, 1, f.now.AddDate(0, -1, 0))
	// ratios: 3/4 = 75%, proficient -> not a gap
	f.seedMastery(t, "ratios", 3, 1, f.now.AddDate(0, -1, 0))
	// algebra: never assessed -> HIGH

	f.requirements.byClass["class-1"] = []string{"Fractions", "Decimals", "Ratios", "Algebra", "Unknown Concept"}

	result, err := f.handler.Handle(context.Background(), IdentifyGapsQuery{
		StudentID: "student-1",
		ClassID:   "class-1",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalGaps)
	assert.Equal(t, 2, result.CriticalGaps)
	assert.Equal(t, 1, result.ModerateGaps)
	assert.Equal(t, []string{"Unknown Concept"}, result.SkippedNames)

	// Gaps come back in requirement order
	require.Len(t, result.Gaps, 3)

	fractions := result.Gaps[0]
	assert.Equal(t, "Fractions", fractions.Name)
	assert.Equal(t, SeverityHigh, fractions.Severity)
	assert.Equal(t, 33, fractions.CurrentMastery)
	assert.True(t, fractions.Attempted)
	assert.Equal(t, 2, fractions.YearsAgo)
	require.NotNil(t, fractions.LastAssessed)

	decimals := result.Gaps[1]
	assert.Equal(t, SeverityMedium, decimals.Severity)
	assert.Equal(t, 50, decimals.CurrentMastery)
	assert.Equal(t, 0, decimals.YearsAgo)

	algebra := result.Gaps[2]
	assert.Equal(t, "Algebra", algebra.Name)
	assert.Equal(t, SeverityHigh, algebra.Severity)
	assert.False(t, algebra.Attempted)
	assert.Nil(t, algebra.LastAssessed)
	assert.Contains(t, algebra.Recommendation, "never been assessed")
}

func TestIdentifyGaps_ProficientBoundaryIsNotAGap(t *testing.T) {
	f := newGapsFixture(t)
	f.seedConcept(t, "fractions", "Fractions")
	// 7/10 = 70%, exactly at the proficient threshold
	f.seedMastery(t, "fractions", 7, 3, f.now.AddDate(0, -1, 0))

	f.requirements.byClass["class-1"] = []string{"Fractions"}

	result, err := f.handler.Handle(context.Background(), IdentifyGapsQuery{
		StudentID: "student-1",
		ClassID:   "class-1",
	})
	require.NoError(t, err)
	assert.Zero(t, result.TotalGaps)
	assert.Empty(t, result.Gaps)
}

func TestIdentifyGaps_RequirementsFailureSurfaces(t *testing.T) {
	f := newGapsFixture(t)
	f.requirements.err = errors.New("collaborator down")

	_, err := f.handler.Handle(context.Background(), IdentifyGapsQuery{
		StudentID: "student-1",
		ClassID:   "class-1",
	})
	assert.Error(t, err)
}

func TestYearsAgo(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, yearsAgo(time.Time{}, now))
	assert.Equal(t, 0, yearsAgo(now, now))
	assert.Equal(t, 0, yearsAgo(now.AddDate(0, -11, 0), now))
	assert.Equal(t, 1, yearsAgo(now.AddDate(-1, 0, -1), now))
	assert.Equal(t, 3, yearsAgo(now.AddDate(-3, -2, 0), now))
}
