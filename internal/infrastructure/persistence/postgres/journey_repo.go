// Package postgres implements the PostgreSQL persistence layer of the
// mastery graph engine.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/edubridge/mastery-graph/internal/domain/journey"
	"github.com/edubridge/mastery-graph/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOURNEY REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// JourneyRepository implements journey.Repository for PostgreSQL.
type JourneyRepository struct {
	conn *Connection
}

// NewJourneyRepository creates a new JourneyRepository.
func NewJourneyRepository(conn *Connection) *JourneyRepository {
	return &JourneyRepository{conn: conn}
}

// GetOrCreateJourney returns the student's journey, creating it lazily.
// Concurrent creators race on the student_id unique constraint; the loser
// reads the winner's row.
func (r *JourneyRepository) GetOrCreateJourney(ctx context.Context, studentID string) (*journey.LearningJourney, error) {
	j, err := r.getJourney(ctx, studentID)
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, shared.ErrJourneyNotFound) {
		return nil, err
	}

	created, err := journey.NewLearningJourney(uuid.NewString(), studentID)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO learning_journeys (id, student_id, predicted_struggles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (student_id) DO NOTHING
	`
	_, err = r.conn.Exec(ctx, query,
		created.ID, created.StudentID, created.PredictedStruggles,
		created.CreatedAt, created.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create journey: %w", err)
	}

	return r.getJourney(ctx, studentID)
}

func (r *JourneyRepository) getJourney(ctx context.Context, studentID string) (*journey.LearningJourney, error) {
	query := `
		SELECT id, student_id, predicted_struggles, created_at, updated_at
		FROM learning_journeys
		WHERE student_id = $1
	`

	var j journey.LearningJourney
	err := r.conn.QueryRow(ctx, query, studentID).Scan(
		&j.ID, &j.StudentID, &j.PredictedStruggles, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrJourneyNotFound
		}
		return nil, fmt.Errorf("failed to get journey: %w", err)
	}
	return &j, nil
}

// HasMilestone reports whether the milestone kind is already recorded for
// the (journey, concept) pair.
func (r *JourneyRepository) HasMilestone(ctx context.Context, journeyID, conceptID string, kind journey.MilestoneKind) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM milestones
			WHERE journey_id = $1 AND concept_id = $2 AND kind = $3
		)
	`

	var exists bool
	if err := r.conn.QueryRow(ctx, query, journeyID, conceptID, string(kind)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check milestone: %w", err)
	}
	return exists, nil
}

// RecordMilestone stores a milestone. The unique constraint on
// (journey, concept, kind) is the defensive second line behind the
// serialized detection; a violation maps to ErrMilestoneAlreadyExists.
func (r *JourneyRepository) RecordMilestone(ctx context.Context, m *journey.Milestone) error {
	query := `
		INSERT INTO milestones (
			id, journey_id, student_id, concept_id, class_id, kind,
			context, percent, achieved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.conn.Exec(ctx, query,
		m.ID, m.JourneyID, m.StudentID, m.ConceptID, m.ClassID,
		string(m.Kind), m.Context, m.Percent, m.AchievedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrMilestoneAlreadyExists
		}
		return fmt.Errorf("failed to record milestone: %w", err)
	}
	return nil
}

// ListMilestones returns the journey's milestones in achievement order.
func (r *JourneyRepository) ListMilestones(ctx context.Context, journeyID string) ([]*journey.Milestone, error) {
	query := `
		SELECT id, journey_id, student_id, concept_id, class_id, kind,
			context, percent, achieved_at
		FROM milestones
		WHERE journey_id = $1
		ORDER BY achieved_at, id
	`

	rows, err := r.conn.Query(ctx, query, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}
	defer rows.Close()

	milestones := make([]*journey.Milestone, 0)
	for rows.Next() {
		m, err := r.scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		milestones = append(milestones, m)
	}
	return milestones, rows.Err()
}

// SavePredictedStruggles replaces the journey's predicted struggles.
func (r *JourneyRepository) SavePredictedStruggles(ctx context.Context, journeyID string, struggles []string) error {
	query := `
		UPDATE learning_journeys
		SET predicted_struggles = $2, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.conn.Exec(ctx, query, journeyID, struggles)
	if err != nil {
		return fmt.Errorf("failed to save predicted struggles: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrJourneyNotFound
	}
	return nil
}

func (r *JourneyRepository) scanMilestone(rows pgx.Rows) (*journey.Milestone, error) {
	var m journey.Milestone
	var kind string

	err := rows.Scan(
		&m.ID, &m.JourneyID, &m.StudentID, &m.ConceptID, &m.ClassID,
		&kind, &m.Context, &m.Percent, &m.AchievedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan milestone: %w", err)
	}
	m.Kind = journey.MilestoneKind(kind)
	return &m, nil
}

var _ journey.Repository = (*JourneyRepository)(nil)
