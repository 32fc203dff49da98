package journey

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над учебными путями и вехами.
type Repository interface {
	// GetOrCreateJourney возвращает учебный путь студента, создавая его
	// лениво при первом обращении.
	GetOrCreateJourney(ctx context.Context, studentID string) (*LearningJourney, error)

	// HasMilestone проверяет, записана ли веха данного типа для пары
	// (путь, концепт).
	HasMilestone(ctx context.Context, journeyID, conceptID string, kind MilestoneKind) (bool, error)

	// RecordMilestone сохраняет веху. Вехи неизменяемы.
	// Возвращает shared.ErrMilestoneAlreadyExists, если веха этого типа
	// для пары (путь, концепт) уже записана.
	RecordMilestone(ctx context.Context, m *Milestone) error

	// ListMilestones возвращает вехи пути в порядке достижения.
	ListMilestones(ctx context.Context, journeyID string) ([]*Milestone, error)

	// SavePredictedStruggles сохраняет предсказанные трудности пути.
	SavePredictedStruggles(ctx context.Context, journeyID string, struggles []string) error
}
