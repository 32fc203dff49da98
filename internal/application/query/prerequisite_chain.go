// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/edubridge/mastery-graph/internal/domain/concept"
	"github.com/edubridge/mastery-graph/internal/domain/mastery"
	"github.com/edubridge/mastery-graph/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PREREQUISITE CHAIN QUERY
// Возвращает упорядоченную цепочку предпосылок концепта: что нужно освоить
// раньше, и на какой глубине от исходного концепта это находится.
// Используется учительскими отчётами для объяснения корней пробелов.
// ══════════════════════════════════════════════════════════════════════════════

// GetPrerequisiteChainQuery содержит параметры запроса цепочки предпосылок.
type GetPrerequisiteChainQuery struct {
	// ConceptID - ID концепта. Приоритетнее ConceptName.
	ConceptID string

	// ConceptName - имя или алиас концепта (если ID неизвестен).
	ConceptName string

	// StudentID - опциональный студент: элементы цепочки аннотируются
	// его текущим мастерством.
	StudentID string
}

// Validate проверяет корректность параметров.
func (q *GetPrerequisiteChainQuery) Validate() error {
	if q.ConceptID == "" && q.ConceptName == "" {
		return errors.New("either concept_id or concept_name must be provided")
	}
	return nil
}

// ChainEntryDTO - один элемент цепочки предпосылок.
type ChainEntryDTO struct {
	// ConceptID - ID концепта-предпосылки.
	ConceptID string `json:"concept_id"`

	// Name - каноническое имя.
	Name string `json:"name"`

	// Subject - учебный предмет.
	Subject string `json:"subject"`

	// Depth - глубина рекурсии; прямые предпосылки имеют глубину 1.
	Depth int `json:"depth"`

	// MasteryPercent - процент мастерства студента (если запрошен студент).
	MasteryPercent *int `json:"mastery_percent,omitempty"`

	// MasteryLevel - уровень мастерства студента (если запрошен студент).
	MasteryLevel string `json:"mastery_level,omitempty"`
}

// GetPrerequisiteChainResult содержит результат запроса.
type GetPrerequisiteChainResult struct {
	// ConceptID - ID исходного концепта.
	ConceptID string `json:"concept_id"`

	// ConceptName - каноническое имя исходного концепта.
	ConceptName string `json:"concept_name"`

	// Chain - цепочка предпосылок в порядке обхода.
	Chain []ChainEntryDTO `json:"chain"`

	// MaxDepth - наибольшая достигнутая глубина.
	MaxDepth int `json:"max_depth"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetPrerequisiteChainHandler обрабатывает GetPrerequisiteChainQuery.
type GetPrerequisiteChainHandler struct {
	taxonomy    concept.Reader
	masteryRepo mastery.Repository
	walker      *concept.Walker
	resolver    *concept.Resolver
}

// NewGetPrerequisiteChainHandler создаёт новый обработчик.
func NewGetPrerequisiteChainHandler(taxonomy concept.Reader, masteryRepo mastery.Repository) *GetPrerequisiteChainHandler {
	return &GetPrerequisiteChainHandler{
		taxonomy:    taxonomy,
		masteryRepo: masteryRepo,
		walker:      concept.NewWalker(taxonomy),
		resolver:    concept.NewResolver(taxonomy),
	}
}

// Handle выполняет запрос цепочки предпосылок.
func (h *GetPrerequisiteChainHandler) Handle(ctx context.Context, q GetPrerequisiteChainQuery) (*GetPrerequisiteChainResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("prerequisite_chain: %w", err)
	}

	origin, err := h.resolveOrigin(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("prerequisite_chain: %w", err)
	}

	chain, err := h.walker.PrerequisiteChain(ctx, origin.ID)
	if err != nil {
		return nil, fmt.Errorf("prerequisite_chain: walk from %s: %w", origin.ID, err)
	}

	result := &GetPrerequisiteChainResult{
		ConceptID:   origin.ID,
		ConceptName: origin.Name,
		Chain:       make([]ChainEntryDTO, 0, len(chain)),
	}

	for _, entry := range chain {
		dto := ChainEntryDTO{
			ConceptID: entry.Concept.ID,
			Name:      entry.Concept.Name,
			Subject:   entry.Concept.Subject.String(),
			Depth:     entry.Depth,
		}
		if entry.Depth > result.MaxDepth {
			result.MaxDepth = entry.Depth
		}

		if q.StudentID != "" {
			rec, err := h.masteryRepo.GetRecord(ctx, q.StudentID, entry.Concept.ID)
			switch {
			case err == nil:
				percent := rec.Percent
				dto.MasteryPercent = &percent
				dto.MasteryLevel = string(rec.Level)
			case errors.Is(err, shared.ErrNotFound):
				// Не оценивался - аннотация отсутствует.
			default:
				return nil, fmt.Errorf("prerequisite_chain: mastery of %s: %w", entry.Concept.ID, err)
			}
		}

		result.Chain = append(result.Chain, dto)
	}

	return result, nil
}

func (h *GetPrerequisiteChainHandler) resolveOrigin(ctx context.Context, q GetPrerequisiteChainQuery) (*concept.Concept, error) {
	if q.ConceptID != "" {
		return h.taxonomy.GetConceptByID(ctx, q.ConceptID)
	}
	return h.resolver.Resolve(ctx, q.ConceptName)
}

// ══════════════════════════════════════════════════════════════════════════════
// CROSS SUBJECT CONNECTIONS QUERY
// Возвращает связи концепта с концептами других предметов. Такие рёбра
// обычно порождаются AI-коллаборатором; движок лишь хранит и выбирает их.
// ══════════════════════════════════════════════════════════════════════════════

// GetCrossSubjectConnectionsQuery содержит параметры запроса.
type GetCrossSubjectConnectionsQuery struct {
	// ConceptID - ID концепта.
	ConceptID string
}

// CrossSubjectLinkDTO - одна межпредметная связь.
type CrossSubjectLinkDTO struct {
	// ConceptID - ID концепта на дальнем конце ребра.
	ConceptID string `json:"concept_id"`

	// Name - каноническое имя.
	Name string `json:"name"`

	// Subject - предмет дальнего концепта.
	Subject string `json:"subject"`

	// Kind - тип ребра.
	Kind string `json:"kind"`

	// Strength - существенность связи.
	Strength float64 `json:"strength"`

	// Outgoing - true, если ребро исходит из запрошенного концепта.
	Outgoing bool `json:"outgoing"`
}

// GetCrossSubjectConnectionsHandler обрабатывает запрос межпредметных связей.
type GetCrossSubjectConnectionsHandler struct {
	walker *concept.Walker
}

// NewGetCrossSubjectConnectionsHandler создаёт новый обработчик.
func NewGetCrossSubjectConnectionsHandler(taxonomy concept.Reader) *GetCrossSubjectConnectionsHandler {
	return &GetCrossSubjectConnectionsHandler{walker: concept.NewWalker(taxonomy)}
}

// Handle выполняет запрос межпредметных связей.
func (h *GetCrossSubjectConnectionsHandler) Handle(ctx context.Context, q GetCrossSubjectConnectionsQuery) ([]CrossSubjectLinkDTO, error) {
	if q.ConceptID == "" {
		return nil, errors.New("cross_subject_connections: concept_id is required")
	}

	links, err := h.walker.CrossSubjectConnections(ctx, q.ConceptID)
	if err != nil {
		return nil, fmt.Errorf("cross_subject_connections: %w", err)
	}

	dtos := make([]CrossSubjectLinkDTO, 0, len(links))
	for _, link := range links {
		dtos = append(dtos, CrossSubjectLinkDTO{
			ConceptID: link.Concept.ID,
			Name:      link.Concept.Name,
			Subject:   link.Concept.Subject.String(),
			Kind:      link.Kind.String(),
			Strength:  float64(link.Strength),
			Outgoing:  link.Outgoing,
		})
	}
	return dtos, nil
}
