package concept

import (
	"context"
	"errors"

	"github.com/edubridge/mastery-graph/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем таксономии.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над концептами и рёбрами таксономии.
// Записи видны читателям сразу после коммита - слоя кеширования нет.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// Concepts
	// ─────────────────────────────────────────────────────────────────────────

	// CreateConcept создаёт новый концепт.
	// Возвращает shared.ErrConceptAlreadyExists при конфликте имени.
	CreateConcept(ctx context.Context, c *Concept) error

	// UpdateConcept обновляет концепт (алиасы, описание, метаданные).
	// Возвращает shared.ErrConceptNotFound, если концепт не найден.
	UpdateConcept(ctx context.Context, c *Concept) error

	// GetConceptByID возвращает концепт по ID.
	// Возвращает shared.ErrConceptNotFound, если концепт не найден.
	GetConceptByID(ctx context.Context, id string) (*Concept, error)

	// GetConceptByName возвращает концепт по каноническому имени
	// (сравнение без учёта регистра).
	// Возвращает shared.ErrConceptNotFound, если концепт не найден.
	GetConceptByName(ctx context.Context, name string) (*Concept, error)

	// FindConceptByAlias возвращает концепт, содержащий алиас.
	// При неоднозначности выигрывает созданный раньше.
	// Возвращает shared.ErrConceptNotFound, если совпадений нет.
	FindConceptByAlias(ctx context.Context, alias string) (*Concept, error)

	// ListConceptsByIDs возвращает концепты по списку ID.
	ListConceptsByIDs(ctx context.Context, ids []string) ([]*Concept, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Relationships
	// ─────────────────────────────────────────────────────────────────────────

	// CreateRelationship создаёт новое ребро.
	// Возвращает shared.ErrAlreadyExists при конфликте (source, target, kind).
	CreateRelationship(ctx context.Context, r *Relationship) error

	// UpdateRelationship обновляет метаданные существующего ребра.
	UpdateRelationship(ctx context.Context, r *Relationship) error

	// GetRelationship возвращает ребро по тройке (source, target, kind).
	// Возвращает shared.ErrNotFound, если ребро не найдено.
	GetRelationship(ctx context.Context, sourceID, targetID string, kind RelationKind) (*Relationship, error)

	// ListIncoming возвращает рёбра указанного типа, входящие в концепт
	// (source -> targetID), в порядке создания.
	ListIncoming(ctx context.Context, targetID string, kind RelationKind) ([]*Relationship, error)

	// ListOutgoing возвращает рёбра указанного типа, исходящие из концепта,
	// в порядке создания.
	ListOutgoing(ctx context.Context, sourceID string, kind RelationKind) ([]*Relationship, error)

	// ListRelationshipsAmong возвращает все рёбра, оба конца которых входят
	// в переданное множество концептов. Используется при экспорте графа.
	ListRelationshipsAmong(ctx context.Context, conceptIDs []string) ([]*Relationship, error)

	// ListAllTouching возвращает все рёбра любого типа, инцидентные концепту.
	ListAllTouching(ctx context.Context, conceptID string) ([]*Relationship, error)
}

// Reader - подмножество Repository, достаточное для обходов графа.
// Walker и детектор пробелов работают только через него.
type Reader interface {
	GetConceptByID(ctx context.Context, id string) (*Concept, error)
	GetConceptByName(ctx context.Context, name string) (*Concept, error)
	FindConceptByAlias(ctx context.Context, alias string) (*Concept, error)
	ListIncoming(ctx context.Context, targetID string, kind RelationKind) ([]*Relationship, error)
	ListAllTouching(ctx context.Context, conceptID string) ([]*Relationship, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// RESOLVER
// ══════════════════════════════════════════════════════════════════════════════

// Resolver разрешает имя или алиас в концепт.
//
// Порядок разрешения фиксирован: сначала точное совпадение канонического
// имени, затем поиск по алиасам. Алиасы могут временно пересекаться между
// концептами; при неоднозначности выигрывает созданный раньше.
type Resolver struct {
	reader Reader
}

// NewResolver создаёт новый Resolver.
func NewResolver(reader Reader) *Resolver {
	return &Resolver{reader: reader}
}

// Resolve возвращает концепт по имени или алиасу.
// Возвращает shared.ErrConceptNotFound, если совпадений нет.
func (r *Resolver) Resolve(ctx context.Context, nameOrAlias string) (*Concept, error) {
	normalized := NormalizeAlias(nameOrAlias)
	if normalized == "" {
		return nil, shared.ErrConceptNotFound
	}

	c, err := r.reader.GetConceptByName(ctx, normalized)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	return r.reader.FindConceptByAlias(ctx, normalized)
}
