package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/edubridge/mastery-graph/internal/domain/journey"
	"github.com/edubridge/mastery-graph/internal/domain/shared"
)

// JourneyRepository is an in-memory journey.Repository.
type JourneyRepository struct {
	mu sync.RWMutex

	// journeys keyed by studentID; one journey per student.
	journeys map[string]*journey.LearningJourney

	// milestones per journeyID in achievement order.
	milestones map[string][]*journey.Milestone
}

// NewJourneyRepository creates an empty in-memory journey store.
func NewJourneyRepository() *JourneyRepository {
	return &JourneyRepository{
		journeys:   make(map[string]*journey.LearningJourney),
		milestones: make(map[string][]*journey.Milestone),
	}
}

// GetOrCreateJourney implements journey.Repository.
func (r *JourneyRepository) GetOrCreateJourney(_ context.Context, studentID string) (*journey.LearningJourney, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if j, ok := r.journeys[studentID]; ok {
		return cloneJourney(j), nil
	}

	j, err := journey.NewLearningJourney(uuid.NewString(), studentID)
	if err != nil {
		return nil, err
	}
	r.journeys[studentID] = j
	return cloneJourney(j), nil
}

// HasMilestone implements journey.Repository.
func (r *JourneyRepository) HasMilestone(_ context.Context, journeyID, conceptID string, kind journey.MilestoneKind) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.milestones[journeyID] {
		if m.ConceptID == conceptID && m.Kind == kind {
			return true, nil
		}
	}
	return false, nil
}

// RecordMilestone implements journey.Repository. The (journey, concept, kind)
// uniqueness mirrors the defensive constraint of the postgres schema.
func (r *JourneyRepository) RecordMilestone(_ context.Context, m *journey.Milestone) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.milestones[m.JourneyID] {
		if existing.ConceptID == m.ConceptID && existing.Kind == m.Kind {
			return shared.ErrMilestoneAlreadyExists
		}
	}

	clone := *m
	r.milestones[m.JourneyID] = append(r.milestones[m.JourneyID], &clone)
	return nil
}

// ListMilestones implements journey.Repository. Achievement order.
func (r *JourneyRepository) ListMilestones(_ context.Context, journeyID string) ([]*journey.Milestone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*journey.Milestone, 0, len(r.milestones[journeyID]))
	for _, m := range r.milestones[journeyID] {
		clone := *m
		out = append(out, &clone)
	}
	return out, nil
}

// SavePredictedStruggles implements journey.Repository.
func (r *JourneyRepository) SavePredictedStruggles(_ context.Context, journeyID string, struggles []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, j := range r.journeys {
		if j.ID == journeyID {
			j.SetPredictedStruggles(struggles)
			return nil
		}
	}
	return shared.ErrJourneyNotFound
}

func cloneJourney(j *journey.LearningJourney) *journey.LearningJourney {
	clone := *j
	clone.PredictedStruggles = append([]string(nil), j.PredictedStruggles...)
	return &clone
}

var _ journey.Repository = (*JourneyRepository)(nil)
