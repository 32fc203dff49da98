package mastery

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над записями мастерства.
//
// Контракт сериализации: SaveAttempt выполняет оптимистическую проверку
// версии записи и возвращает shared.ErrPersistenceConflict, если с момента
// чтения запись изменил другой писатель. Путь записи обязан перечитать
// запись и повторить попытку; конфликт никогда не доходит до вызывающего
// кода RecordAttempt.
//
// Контракт чтения: читатели видят запись целиком на один момент времени -
// рваные чтения (смесь старых и новых счётчиков) недопустимы.
type Repository interface {
	// GetRecord возвращает запись по паре (студент, концепт).
	// Возвращает shared.ErrMasteryRecordNotFound, если записи ещё нет.
	GetRecord(ctx context.Context, studentID, conceptID string) (*MasteryRecord, error)

	// GetClassRecord возвращает классовый срез записи.
	// Возвращает shared.ErrMasteryRecordNotFound, если среза ещё нет.
	GetClassRecord(ctx context.Context, studentID, conceptID, classID string) (*ClassMasteryRecord, error)

	// SaveAttempt атомарно сохраняет запись и её классовый срез после
	// применения попытки (включая добавленную точку истории).
	// Возвращает shared.ErrPersistenceConflict при конфликте версий.
	SaveAttempt(ctx context.Context, record *MasteryRecord, classRecord *ClassMasteryRecord) error

	// ListByStudent возвращает все записи студента.
	ListByStudent(ctx context.Context, studentID string) ([]*MasteryRecord, error)

	// ListClassRecords возвращает классовые срезы студента в классе.
	ListClassRecords(ctx context.Context, studentID, classID string) ([]*ClassMasteryRecord, error)

	// ListConceptTrajectory возвращает все классовые срезы пары
	// (студент, концепт) в порядке первой оценки - многолетняя траектория.
	ListConceptTrajectory(ctx context.Context, studentID, conceptID string) ([]*ClassMasteryRecord, error)

	// SavePosition сохраняет координаты визуализации записи.
	// Позиция непрозрачна для движка и не участвует в версионировании счётчиков.
	SavePosition(ctx context.Context, studentID, conceptID string, pos Position) error
}
