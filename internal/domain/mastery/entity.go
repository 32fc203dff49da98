// Package mastery содержит реестр мастерства: агрегатные счётчики
// по паре (студент, концепт) и их классовые срезы.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package mastery

import (
	"math"
	"time"

	"github.com/edubridge/mastery-graph/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// HISTORY & LAYOUT
// ══════════════════════════════════════════════════════════════════════════════

// HistoryEntry - одна точка истории процента во времени.
// История строго append-only: записи никогда не изменяются и не удаляются.
type HistoryEntry struct {
	// Timestamp - момент записи.
	Timestamp time.Time

	// Percent - процент мастерства после обновления.
	Percent int

	// ClassID - класс, в контексте которого произошла попытка.
	ClassID string

	// Context - контекст оценивания (задание, вопрос и т.п.).
	Context string
}

// Position - 2-D координаты узла для персистентной визуализации.
// Движок хранит их как непрозрачные данные и никогда не интерпретирует.
type Position struct {
	X float64
	Y float64
}

// ══════════════════════════════════════════════════════════════════════════════
// MASTERY RECORD
// ══════════════════════════════════════════════════════════════════════════════

// MasteryRecord - агрегат мастерства по паре (студент, концепт),
// независимый от класса.
//
// Инварианты:
//   - CorrectAttempts + IncorrectAttempts == TotalAttempts
//   - Percent == round(100 * CorrectAttempts / TotalAttempts) при TotalAttempts > 0, иначе 0
//   - Level и Trend - чистые функции от Percent и PreviousPercent (см. calculator.go)
//
// Все изменения счётчиков проходят через ApplyAttempt - единственный
// путь записи. Записи никогда не удаляются.
type MasteryRecord struct {
	// ID - стабильный идентификатор (UUID).
	ID string

	// StudentID - студент.
	StudentID string

	// ConceptID - концепт из таксономии.
	ConceptID string

	// TotalAttempts - всего оценённых попыток.
	TotalAttempts int

	// CorrectAttempts - верных попыток.
	CorrectAttempts int

	// IncorrectAttempts - неверных попыток.
	IncorrectAttempts int

	// Percent - текущий процент мастерства, [0, 100].
	Percent int

	// PreviousPercent - срез процента до последнего обновления.
	PreviousPercent int

	// Level - уровень мастерства, производный от Percent.
	Level Level

	// Trend - направление изменения относительно PreviousPercent.
	Trend Trend

	// FirstAssessed - момент первой оценённой попытки.
	FirstAssessed time.Time

	// LastAssessed - момент последней оценённой попытки.
	LastAssessed time.Time

	// History - упорядоченная append-only история процента.
	History []HistoryEntry

	// Position - координаты для визуализации (опционально).
	Position *Position

	// Version - счётчик версий для оптимистической блокировки на записи.
	Version int64

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего изменения.
	UpdatedAt time.Time
}

// NewMasteryRecord создаёт пустую запись мастерства.
// Запись создаётся при первой оценённой попытке пары (студент, концепт).
func NewMasteryRecord(id, studentID, conceptID string) (*MasteryRecord, error) {
	if id == "" || studentID == "" || conceptID == "" {
		return nil, shared.ErrInvalidAttemptState
	}

	now := time.Now().UTC()
	return &MasteryRecord{
		ID:        id,
		StudentID: studentID,
		ConceptID: conceptID,
		Level:     LevelNotStarted,
		Trend:     TrendStable,
		History:   make([]HistoryEntry, 0, 4),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ApplyAttempt применяет одну оценённую попытку к записи.
//
// Порядок фиксирован: срез текущего процента в PreviousPercent, затем
// инкремент счётчиков, пересчёт процента, уровня и тренда, запись в
// историю. Тренд первой попытки - stable (предыдущего среза нет).
func (r *MasteryRecord) ApplyAttempt(classID string, isCorrect bool, context string, at time.Time) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	firstAttempt := r.TotalAttempts == 0

	r.PreviousPercent = r.Percent

	r.TotalAttempts++
	if isCorrect {
		r.CorrectAttempts++
	} else {
		r.IncorrectAttempts++
	}

	r.Percent = computePercent(r.CorrectAttempts, r.TotalAttempts)
	r.Level = LevelForPercent(r.Percent)
	if firstAttempt {
		r.Trend = TrendStable
		r.FirstAssessed = at
	} else {
		r.Trend = TrendFor(r.PreviousPercent, r.Percent)
	}
	r.LastAssessed = at
	r.UpdatedAt = at

	r.History = append(r.History, HistoryEntry{
		Timestamp: at,
		Percent:   r.Percent,
		ClassID:   classID,
		Context:   context,
	})
}

// SetPosition сохраняет координаты визуализации.
func (r *MasteryRecord) SetPosition(pos Position) {
	r.Position = &pos
	r.UpdatedAt = time.Now().UTC()
}

// CheckInvariants проверяет счётные инварианты записи.
func (r *MasteryRecord) CheckInvariants() error {
	if r.CorrectAttempts+r.IncorrectAttempts != r.TotalAttempts {
		return shared.NewDomainError("mastery", "CheckInvariants", shared.ErrInvalidState,
			"correct + incorrect must equal total")
	}
	if r.Percent != computePercent(r.CorrectAttempts, r.TotalAttempts) {
		return shared.NewDomainError("mastery", "CheckInvariants", shared.ErrInvalidState,
			"percent must be derived from counters")
	}
	return nil
}

// computePercent вычисляет round(100 * correct / total); 0 при total == 0.
func computePercent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

// ══════════════════════════════════════════════════════════════════════════════
// CLASS MASTERY RECORD
// ══════════════════════════════════════════════════════════════════════════════

// ClassMasteryRecord - узкий срез тех же счётчиков в рамках одного класса
// и учебного года. По записям восстанавливается траектория студента по
// концепту через несколько классов и лет.
type ClassMasteryRecord struct {
	// ID - стабильный идентификатор (UUID).
	ID string

	// MasteryRecordID - родительская запись мастерства.
	MasteryRecordID string

	// StudentID - студент (денормализовано для выборок).
	StudentID string

	// ConceptID - концепт (денормализовано для выборок).
	ConceptID string

	// ClassID - класс, к которому относится срез.
	ClassID string

	// SchoolYear - учебный год (например, "2025-2026"). Опционально.
	SchoolYear string

	// TotalAttempts / CorrectAttempts / IncorrectAttempts - счётчики в классе.
	TotalAttempts     int
	CorrectAttempts   int
	IncorrectAttempts int

	// Percent - процент мастерства в рамках класса.
	Percent int

	// FirstAssessed / LastAssessed - границы активности в классе.
	FirstAssessed time.Time
	LastAssessed  time.Time

	// CreatedAt / UpdatedAt - служебные отметки времени.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewClassMasteryRecord создаёт классовый срез для записи мастерства.
func NewClassMasteryRecord(id string, parent *MasteryRecord, classID, schoolYear string) (*ClassMasteryRecord, error) {
	if id == "" || parent == nil || classID == "" {
		return nil, shared.ErrInvalidAttemptState
	}

	now := time.Now().UTC()
	return &ClassMasteryRecord{
		ID:              id,
		MasteryRecordID: parent.ID,
		StudentID:       parent.StudentID,
		ConceptID:       parent.ConceptID,
		ClassID:         classID,
		SchoolYear:      schoolYear,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// ApplyAttempt применяет попытку к классовому срезу.
func (r *ClassMasteryRecord) ApplyAttempt(isCorrect bool, at time.Time) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	if r.TotalAttempts == 0 {
		r.FirstAssessed = at
	}

	r.TotalAttempts++
	if isCorrect {
		r.CorrectAttempts++
	} else {
		r.IncorrectAttempts++
	}

	r.Percent = computePercent(r.CorrectAttempts, r.TotalAttempts)
	r.LastAssessed = at
	r.UpdatedAt = at
}
