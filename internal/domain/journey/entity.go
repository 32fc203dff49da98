// Package journey содержит учебный путь студента: вехи освоения концептов
// и предсказанные трудности. Это ядро бизнес-логики - здесь нет внешних
// зависимостей.
package journey

import (
	"time"

	"github.com/edubridge/mastery-graph/internal/domain/mastery"
	"github.com/edubridge/mastery-graph/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MILESTONE
// ══════════════════════════════════════════════════════════════════════════════

// MilestoneKind представляет тип вехи.
type MilestoneKind string

const (
	// KindFirstIntroduced - студент впервые продемонстрировал концепт.
	KindFirstIntroduced MilestoneKind = "first_introduced"

	// KindMastered - процент мастерства впервые достиг порога освоения.
	KindMastered MilestoneKind = "mastered"
)

// IsValid проверяет, что тип вехи известен.
func (k MilestoneKind) IsValid() bool {
	return k == KindFirstIntroduced || k == KindMastered
}

// String возвращает строковое представление типа вехи.
func (k MilestoneKind) String() string {
	return string(k)
}

// Milestone - неизменяемая запись о пересечении порога.
//
// Инвариант: не более одной вехи каждого типа на пару (студент, концепт).
// Гарантируется сериализованной проверкой пересечения порога в пути записи;
// хранилище дополнительно несёт защитное уникальное ограничение
// (см. DESIGN.md - поведение при его срабатывании: "уже записано", не ошибка).
type Milestone struct {
	// ID - стабильный идентификатор (UUID).
	ID string

	// JourneyID - учебный путь, к которому относится веха.
	JourneyID string

	// StudentID - студент (денормализовано для выборок).
	StudentID string

	// ConceptID - концепт.
	ConceptID string

	// ClassID - класс, в котором произошло пересечение порога.
	ClassID string

	// Kind - тип вехи.
	Kind MilestoneKind

	// Context - контекст оценивания, породившего веху.
	Context string

	// Percent - процент мастерства в момент вехи.
	Percent int

	// AchievedAt - момент пересечения порога.
	AchievedAt time.Time
}

// NewMilestone создаёт веху с валидацией.
func NewMilestone(id, journeyID, studentID, conceptID, classID string, kind MilestoneKind, context string, percent int, at time.Time) (*Milestone, error) {
	if id == "" || journeyID == "" || studentID == "" || conceptID == "" {
		return nil, shared.NewDomainError("journey", "RecordMilestone", shared.ErrInvalidID, "milestone identity is incomplete")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("journey", "RecordMilestone", shared.ErrInvalidInput, "unknown milestone kind")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	return &Milestone{
		ID:         id,
		JourneyID:  journeyID,
		StudentID:  studentID,
		ConceptID:  conceptID,
		ClassID:    classID,
		Kind:       kind,
		Context:    context,
		Percent:    percent,
		AchievedAt: at,
	}, nil
}

// DetectMilestones возвращает типы вех, порождаемые переходом процента.
// Чистая функция над смежной парой срезов (previous, new):
//   - previous == 0 и new > 0  -> first_introduced
//   - previous < 90 и new >= 90 -> mastered
//
// Корректность зависит от строгой сериализации обновлений пары
// (студент, концепт): пара срезов обязана быть смежной.
func DetectMilestones(previousPercent, newPercent int) []MilestoneKind {
	kinds := make([]MilestoneKind, 0, 2)
	if previousPercent == 0 && newPercent > 0 {
		kinds = append(kinds, KindFirstIntroduced)
	}
	if previousPercent < mastery.ThresholdMastered && newPercent >= mastery.ThresholdMastered {
		kinds = append(kinds, KindMastered)
	}
	return kinds
}

// ══════════════════════════════════════════════════════════════════════════════
// LEARNING JOURNEY
// ══════════════════════════════════════════════════════════════════════════════

// LearningJourney - контейнер вех и предсказанных трудностей студента.
// Создаётся лениво: при первой вехе либо первом предсказании.
type LearningJourney struct {
	// ID - стабильный идентификатор (UUID).
	ID string

	// StudentID - студент. Один путь на студента.
	StudentID string

	// PredictedStruggles - предсказанные AI будущие трудности.
	// Хранятся как непрозрачные строки.
	PredictedStruggles []string

	// CreatedAt - время создания.
	CreatedAt time.Time

	// UpdatedAt - время последнего изменения.
	UpdatedAt time.Time
}

// NewLearningJourney создаёт учебный путь студента.
func NewLearningJourney(id, studentID string) (*LearningJourney, error) {
	if id == "" || studentID == "" {
		return nil, shared.NewDomainError("journey", "Create", shared.ErrInvalidID, "journey identity is incomplete")
	}

	now := time.Now().UTC()
	return &LearningJourney{
		ID:                 id,
		StudentID:          studentID,
		PredictedStruggles: make([]string, 0),
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// SetPredictedStruggles заменяет предсказанные трудности.
func (j *LearningJourney) SetPredictedStruggles(struggles []string) {
	j.PredictedStruggles = append(j.PredictedStruggles[:0], struggles...)
	j.UpdatedAt = time.Now().UTC()
}
