package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edubridge/mastery-graph/internal/domain/concept"
	"github.com/edubridge/mastery-graph/internal/domain/journey"
	"github.com/edubridge/mastery-graph/internal/domain/mastery"
	"github.com/edubridge/mastery-graph/internal/domain/shared"
	"github.com/edubridge/mastery-graph/internal/infrastructure/persistence/memory"
)

// capturingPublisher records published events in order.
type capturingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
	fail   error
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type attemptFixture struct {
	handler   *RecordAttemptHandler
	taxonomy  *memory.TaxonomyRepository
	ledger    *memory.MasteryRepository
	journeys  *memory.JourneyRepository
	publisher *capturingPublisher
}

func newAttemptFixture(t *testing.T) *attemptFixture {
	t.Helper()

	taxonomy := memory.NewTaxonomyRepository()
	ledger := memory.NewMasteryRepository()
	journeys := memory.NewJourneyRepository()
	publisher := &capturingPublisher{}

	fractions, err := concept.NewConcept(concept.NewConceptParams{
		ID:      "concept-fractions",
		Name:    "Fractions",
		Subject: "mathematics",
		Aliases: []string{"fracciones"},
	})
	require.NoError(t, err)
	require.NoError(t, taxonomy.CreateConcept(context.Background(), fractions))

	handler := NewRecordAttemptHandler(ledger, journeys, taxonomy, publisher, nil, DefaultRecordAttemptHandlerConfig())
	return &attemptFixture{
		handler:   handler,
		taxonomy:  taxonomy,
		ledger:    ledger,
		journeys:  journeys,
		publisher: publisher,
	}
}

func (f *attemptFixture) record(t *testing.T, isCorrect bool) *RecordAttemptResult {
	t.Helper()
	result, err := f.handler.Handle(context.Background(), RecordAttemptCommand{
		StudentID:   "student-1",
		ConceptName: "Fractions",
		ClassID:     "class-1",
		SchoolYear:  "2026-2027",
		IsCorrect:   isCorrect,
		Context:     "quiz",
	})
	require.NoError(t, err)
	return result
}

func TestRecordAttempt_Validation(t *testing.T) {
	f := newAttemptFixture(t)

	_, err := f.handler.Handle(context.Background(), RecordAttemptCommand{
		ConceptName: "Fractions", ClassID: "class-1",
	})
	assert.ErrorIs(t, err, shared.ErrInvalidAttemptState)

	_, err = f.handler.Handle(context.Background(), RecordAttemptCommand{
		StudentID: "student-1", ClassID: "class-1",
	})
	assert.ErrorIs(t, err, shared.ErrInvalidAttemptState)

	_, err = f.handler.Handle(context.Background(), RecordAttemptCommand{
		StudentID: "student-1", ConceptName: "Fractions",
	})
	assert.ErrorIs(t, err, shared.ErrInvalidAttemptState)
}

func TestRecordAttempt_UnknownConceptRejected(t *testing.T) {
	f := newAttemptFixture(t)

	_, err := f.handler.Handle(context.Background(), RecordAttemptCommand{
		StudentID:   "student-1",
		ConceptName: "Quantum Chromodynamics",
		ClassID:     "class-1",
		IsCorrect:   true,
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRecordAttempt_ResolvesThroughAlias(t *testing.T) {
	f := newAttemptFixture(t)

	result, err := f.handler.Handle(context.Background(), RecordAttemptCommand{
		StudentID:   "student-1",
		ConceptName: "Fracciones",
		ClassID:     "class-1",
		IsCorrect:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "concept-fractions", result.ConceptID)
	assert.Equal(t, "Fractions", result.ConceptName)
}

func TestRecordAttempt_CountersAndLevels(t *testing.T) {
	f := newAttemptFixture(t)

	// Three incorrect then two correct: 2/5 = 40%, developing
	var result *RecordAttemptResult
	for i := 0; i < 3; i++ {
		result = f.record(t, false)
	}
	for i := 0; i < 2; i++ {
		result = f.record(t, true)
	}

	assert.Equal(t, 5, result.TotalAttempts)
	assert.Equal(t, 40, result.Percent)
	assert.Equal(t, mastery.LevelDeveloping, result.Level)
	assert.Equal(t, 40, result.ClassPercent)

	// Two more correct: 4/7 = 57%, still developing
	result = f.record(t, true)
	result = f.record(t, true)
	assert.Equal(t, 7, result.TotalAttempts)
	assert.Equal(t, 57, result.Percent)
	assert.Equal(t, mastery.LevelDeveloping, result.Level)
}

func TestRecordAttempt_FirstAttemptCreatesRecord(t *testing.T) {
	f := newAttemptFixture(t)

	result := f.record(t, true)
	assert.True(t, result.FirstAttempt)
	assert.Equal(t, 100, result.Percent)
	assert.Equal(t, mastery.TrendStable, result.Trend, "first attempt has no previous snapshot")

	result = f.record(t, true)
	assert.False(t, result.FirstAttempt)
}

func TestRecordAttempt_MasteredMilestoneExactlyOnce(t *testing.T) {
	f := newAttemptFixture(t)

	// One incorrect then nine correct: percent crosses 90 on attempt 10
	// (previous snapshot 8/9 = 89, new 9/10 = 90)
	result := f.record(t, false)
	assert.Empty(t, result.Milestones, "percent is still zero")

	result = f.record(t, true)
	assert.Equal(t, []journey.MilestoneKind{journey.KindFirstIntroduced}, result.Milestones)

	for i := 0; i < 7; i++ {
		result = f.record(t, true)
		assert.Empty(t, result.Milestones, "no crossing at %d%%", result.Percent)
	}

	result = f.record(t, true)
	require.Equal(t, 90, result.Percent)
	assert.Equal(t, []journey.MilestoneKind{journey.KindMastered}, result.Milestones)

	// The milestone events precede mastery-updated
	require.Len(t, result.Events, 2)
	assert.Equal(t, shared.EventMilestoneAchieved, result.Events[0].EventType())
	assert.Equal(t, shared.EventMasteryUpdated, result.Events[1].EventType())

	// Drop below the threshold, then climb back over it: the crossing
	// repeats but the milestone does not
	result = f.record(t, false)
	result = f.record(t, false)
	assert.Less(t, result.Percent, 90)

	for result.Percent < 90 {
		result = f.record(t, true)
		assert.Empty(t, result.Milestones, "mastered is recorded at most once")
	}
}

func TestRecordAttempt_EventOrdering(t *testing.T) {
	f := newAttemptFixture(t)

	// A single correct first attempt crosses both thresholds at once
	result := f.record(t, true)
	assert.Equal(t,
		[]journey.MilestoneKind{journey.KindFirstIntroduced, journey.KindMastered},
		result.Milestones)

	assert.Equal(t, []shared.EventType{
		shared.EventConceptDiscovered,
		shared.EventMilestoneAchieved,
		shared.EventMasteryUpdated,
	}, f.publisher.types())
}

func TestRecordAttempt_PublishFailureDoesNotFailWrite(t *testing.T) {
	f := newAttemptFixture(t)
	f.publisher.fail = errors.New("broker down")

	result := f.record(t, true)
	assert.Equal(t, 100, result.Percent)

	// The ledger write survived the delivery failure
	rec, err := f.ledger.GetRecord(context.Background(), "student-1", "concept-fractions")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.TotalAttempts)
}

func TestRecordAttempt_ConcurrentWritersSerialized(t *testing.T) {
	f := newAttemptFixture(t)

	const writers = 24
	var wg sync.WaitGroup
	errs := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(isCorrect bool) {
			defer wg.Done()
			_, err := f.handler.Handle(context.Background(), RecordAttemptCommand{
				StudentID:   "student-1",
				ConceptName: "Fractions",
				ClassID:     "class-1",
				IsCorrect:   isCorrect,
			})
			errs <- err
		}(i%2 == 0)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err, "conflicts must be retried internally, never surfaced")
	}

	rec, err := f.ledger.GetRecord(context.Background(), "student-1", "concept-fractions")
	require.NoError(t, err)
	assert.Equal(t, writers, rec.TotalAttempts, "no attempt may be lost")
	assert.Equal(t, writers/2, rec.CorrectAttempts)
	require.NoError(t, rec.CheckInvariants())
}
