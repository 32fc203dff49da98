package mastery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMasteryRecord_Validation(t *testing.T) {
	_, err := NewMasteryRecord("", "student-1", "concept-1")
	assert.Error(t, err)

	_, err = NewMasteryRecord("rec-1", "", "concept-1")
	assert.Error(t, err)

	rec, err := NewMasteryRecord("rec-1", "student-1", "concept-1")
	require.NoError(t, err)
	assert.Equal(t, LevelNotStarted, rec.Level)
	assert.Equal(t, TrendStable, rec.Trend)
	assert.Equal(t, 0, rec.Percent)
	assert.Empty(t, rec.History)
}

func TestMasteryRecord_ApplyAttempt_Sequence(t *testing.T) {
	rec, err := NewMasteryRecord("rec-1", "student-1", "concept-1")
	require.NoError(t, err)

	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// Three incorrect then two correct: 2/5 = 40%
	for i := 0; i < 3; i++ {
		rec.ApplyAttempt("class-1", false, "quiz", at)
	}
	for i := 0; i < 2; i++ {
		rec.ApplyAttempt("class-1", true, "quiz", at)
	}

	assert.Equal(t, 5, rec.TotalAttempts)
	assert.Equal(t, 2, rec.CorrectAttempts)
	assert.Equal(t, 3, rec.IncorrectAttempts)
	assert.Equal(t, 40, rec.Percent)
	assert.Equal(t, LevelDeveloping, rec.Level)
	require.NoError(t, rec.CheckInvariants())

	// Two more correct: 4/7 = 57%, still developing
	rec.ApplyAttempt("class-1", true, "quiz", at)
	rec.ApplyAttempt("class-1", true, "quiz", at)

	assert.Equal(t, 7, rec.TotalAttempts)
	assert.Equal(t, 4, rec.CorrectAttempts)
	assert.Equal(t, 57, rec.Percent)
	assert.Equal(t, LevelDeveloping, rec.Level)
	require.NoError(t, rec.CheckInvariants())

	// History is append-only, one entry per attempt
	assert.Len(t, rec.History, 7)
	assert.Equal(t, 57, rec.History[6].Percent)
	assert.Equal(t, "class-1", rec.History[6].ClassID)
}

func TestMasteryRecord_FirstAttemptTrendIsStable(t *testing.T) {
	rec, err := NewMasteryRecord("rec-1", "student-1", "concept-1")
	require.NoError(t, err)

	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rec.ApplyAttempt("class-1", true, "quiz", at)

	// 0% -> 100% would read as improving, but there is no previous snapshot
	assert.Equal(t, 100, rec.Percent)
	assert.Equal(t, TrendStable, rec.Trend)
	assert.Equal(t, at, rec.FirstAssessed)
	assert.Equal(t, at, rec.LastAssessed)

	rec.ApplyAttempt("class-1", false, "quiz", at.Add(time.Hour))
	assert.Equal(t, 50, rec.Percent)
	assert.Equal(t, 100, rec.PreviousPercent)
	assert.Equal(t, TrendDeclining, rec.Trend)
	assert.Equal(t, at, rec.FirstAssessed)
	assert.Equal(t, at.Add(time.Hour), rec.LastAssessed)
}

func TestMasteryRecord_SetPosition(t *testing.T) {
	rec, err := NewMasteryRecord("rec-1", "student-1", "concept-1")
	require.NoError(t, err)
	assert.Nil(t, rec.Position)

	rec.SetPosition(Position{X: 120.5, Y: -42})
	require.NotNil(t, rec.Position)
	assert.Equal(t, 120.5, rec.Position.X)
	assert.Equal(t, -42.0, rec.Position.Y)
}

func TestClassMasteryRecord_TracksOwnCounters(t *testing.T) {
	parent, err := NewMasteryRecord("rec-1", "student-1", "concept-1")
	require.NoError(t, err)

	classRec, err := NewClassMasteryRecord("class-rec-1", parent, "class-1", "2025-2026")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", classRec.MasteryRecordID)
	assert.Equal(t, "student-1", classRec.StudentID)

	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	classRec.ApplyAttempt(true, at)
	classRec.ApplyAttempt(false, at.Add(time.Minute))

	assert.Equal(t, 2, classRec.TotalAttempts)
	assert.Equal(t, 50, classRec.Percent)
	assert.Equal(t, at, classRec.FirstAssessed)
	assert.Equal(t, at.Add(time.Minute), classRec.LastAssessed)
}

func TestNewClassMasteryRecord_Validation(t *testing.T) {
	parent, err := NewMasteryRecord("rec-1", "student-1", "concept-1")
	require.NoError(t, err)

	_, err = NewClassMasteryRecord("", parent, "class-1", "")
	assert.Error(t, err)

	_, err = NewClassMasteryRecord("class-rec-1", nil, "class-1", "")
	assert.Error(t, err)

	_, err = NewClassMasteryRecord("class-rec-1", parent, "", "")
	assert.Error(t, err)
}
