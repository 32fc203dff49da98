package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edubridge/mastery-graph/internal/domain/mastery"
	"github.com/edubridge/mastery-graph/internal/domain/shared"
)

func newLedgerRecord(t *testing.T, at time.Time) (*mastery.MasteryRecord, *mastery.ClassMasteryRecord) {
	t.Helper()

	rec, err := mastery.NewMasteryRecord("rec-1", "student-1", "concept-fractions")
	require.NoError(t, err)
	rec.ApplyAttempt("class-1", true, "quiz", at)

	classRec, err := mastery.NewClassMasteryRecord("class-rec-1", rec, "class-1", "2026-2027")
	require.NoError(t, err)
	return rec, classRec
}

func TestMasteryRepository_SaveAndGet(t *testing.T) {
	repo := NewMasteryRepository()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := repo.GetRecord(ctx, "student-1", "concept-fractions")
	assert.ErrorIs(t, err, shared.ErrMasteryRecordNotFound)

	rec, classRec := newLedgerRecord(t, at)
	require.NoError(t, repo.SaveAttempt(ctx, rec, classRec))
	assert.Equal(t, int64(1), rec.Version, "version mirrored back to the caller")

	stored, err := repo.GetRecord(ctx, "student-1", "concept-fractions")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalAttempts)
	assert.Equal(t, 100, stored.Percent)

	// The stored copy is isolated from later caller mutations
	rec.ApplyAttempt("class-1", false, "quiz", at.Add(time.Hour))
	stored, err = repo.GetRecord(ctx, "student-1", "concept-fractions")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalAttempts)
}

func TestMasteryRepository_VersionConflict(t *testing.T) {
	repo := NewMasteryRepository()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rec, classRec := newLedgerRecord(t, at)
	require.NoError(t, repo.SaveAttempt(ctx, rec, classRec))

	// A writer holding a stale version must not overwrite the newer state
	stale, staleClass := newLedgerRecord(t, at)
	stale.Version = 0
	err := repo.SaveAttempt(ctx, stale, staleClass)
	assert.ErrorIs(t, err, shared.ErrPersistenceConflict)

	// A nonzero version on a missing record is also a conflict
	ghost, ghostClass := newLedgerRecord(t, at)
	ghost.ConceptID = "concept-decimals"
	ghost.Version = 3
	err = repo.SaveAttempt(ctx, ghost, ghostClass)
	assert.ErrorIs(t, err, shared.ErrPersistenceConflict)

	// Re-reading and saving at the current version succeeds
	current, err := repo.GetRecord(ctx, "student-1", "concept-fractions")
	require.NoError(t, err)
	current.ApplyAttempt("class-1", false, "quiz", at.Add(time.Hour))
	require.NoError(t, repo.SaveAttempt(ctx, current, classRec))
	assert.Equal(t, int64(2), current.Version)
}

func TestMasteryRepository_ConceptTrajectoryOrderedByFirstAssessed(t *testing.T) {
	repo := NewMasteryRepository()
	ctx := context.Background()

	rec, err := mastery.NewMasteryRecord("rec-1", "student-1", "concept-fractions")
	require.NoError(t, err)

	// Two school years, seeded out of order
	later := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	earlier := time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC)

	rec.ApplyAttempt("class-2027", true, "quiz", later)
	laterRec, err := mastery.NewClassMasteryRecord("cr-2027", rec, "class-2027", "2026-2027")
	require.NoError(t, err)
	laterRec.ApplyAttempt(true, later)
	require.NoError(t, repo.SaveAttempt(ctx, rec, laterRec))

	rec.ApplyAttempt("class-2026", true, "quiz", earlier)
	earlierRec, err := mastery.NewClassMasteryRecord("cr-2026", rec, "class-2026", "2025-2026")
	require.NoError(t, err)
	earlierRec.ApplyAttempt(true, earlier)
	require.NoError(t, repo.SaveAttempt(ctx, rec, earlierRec))

	trajectory, err := repo.ListConceptTrajectory(ctx, "student-1", "concept-fractions")
	require.NoError(t, err)
	require.Len(t, trajectory, 2)
	assert.Equal(t, "2025-2026", trajectory[0].SchoolYear)
	assert.Equal(t, "2026-2027", trajectory[1].SchoolYear)
}

func TestMasteryRepository_SavePosition(t *testing.T) {
	repo := NewMasteryRepository()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	pos := mastery.Position{X: 0.3, Y: 0.7}
	err := repo.SavePosition(ctx, "student-1", "concept-fractions", pos)
	assert.ErrorIs(t, err, shared.ErrMasteryRecordNotFound)

	rec, classRec := newLedgerRecord(t, at)
	require.NoError(t, repo.SaveAttempt(ctx, rec, classRec))
	require.NoError(t, repo.SavePosition(ctx, "student-1", "concept-fractions", pos))

	stored, err := repo.GetRecord(ctx, "student-1", "concept-fractions")
	require.NoError(t, err)
	require.NotNil(t, stored.Position)
	assert.Equal(t, pos, *stored.Position)
}
