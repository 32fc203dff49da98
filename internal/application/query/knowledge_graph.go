package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edubridge/mastery-graph/internal/domain/concept"
	"github.com/edubridge/mastery-graph/internal/domain/mastery"
)

// ══════════════════════════════════════════════════════════════════════════════
// KNOWLEDGE GRAPH QUERY
// Экспортирует персональный граф знаний студента для визуализации:
// узлы несут мастерство/уровень/тренд/позицию, рёбра - тип и вес.
// ══════════════════════════════════════════════════════════════════════════════

// GetKnowledgeGraphQuery содержит параметры экспорта графа.
type GetKnowledgeGraphQuery struct {
	// StudentID - внутренний ID студента.
	StudentID string

	// Subject - опциональный фильтр по предмету.
	Subject string

	// MinPercent - опциональный нижний порог мастерства узла.
	MinPercent int
}

// Validate проверяет корректность параметров.
func (q *GetKnowledgeGraphQuery) Validate() error {
	if q.StudentID == "" {
		return errors.New("student_id is required")
	}
	if q.MinPercent < 0 || q.MinPercent > 100 {
		return errors.New("min_percent must be within [0,100]")
	}
	return nil
}

// GraphNodeDTO - узел персонального графа.
type GraphNodeDTO struct {
	// ConceptID - ID концепта.
	ConceptID string `json:"concept_id"`

	// Name - каноническое имя.
	Name string `json:"name"`

	// Subject - учебный предмет.
	Subject string `json:"subject"`

	// Percent - процент мастерства студента.
	Percent int `json:"percent"`

	// Level - уровень мастерства.
	Level string `json:"level"`

	// Trend - направление изменения.
	Trend string `json:"trend"`

	// Position - сохранённая позиция визуализации (nil, если не задана).
	Position *PositionDTO `json:"position,omitempty"`
}

// PositionDTO - 2D-координаты узла. Непрозрачны для движка.
type PositionDTO struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GraphEdgeDTO - ребро персонального графа.
type GraphEdgeDTO struct {
	// SourceID - концепт-источник.
	SourceID string `json:"source_id"`

	// TargetID - концепт-приёмник.
	TargetID string `json:"target_id"`

	// Kind - тип ребра.
	Kind string `json:"kind"`

	// Strength - существенность связи.
	Strength float64 `json:"strength"`
}

// GraphMetadataDTO - сводка по экспортированному графу.
type GraphMetadataDTO struct {
	// NodeCount - число узлов.
	NodeCount int `json:"node_count"`

	// EdgeCount - число рёбер.
	EdgeCount int `json:"edge_count"`

	// LevelCounts - число узлов по уровням мастерства.
	LevelCounts map[string]int `json:"level_counts"`

	// GeneratedAt - момент экспорта.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetKnowledgeGraphResult содержит экспортированный граф.
type GetKnowledgeGraphResult struct {
	// StudentID - студент.
	StudentID string `json:"student_id"`

	// Nodes - узлы графа.
	Nodes []GraphNodeDTO `json:"nodes"`

	// Edges - рёбра, оба конца которых входят в узлы.
	Edges []GraphEdgeDTO `json:"edges"`

	// Metadata - сводка.
	Metadata GraphMetadataDTO `json:"metadata"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetKnowledgeGraphHandler обрабатывает GetKnowledgeGraphQuery.
type GetKnowledgeGraphHandler struct {
	taxonomy    concept.Repository
	masteryRepo mastery.Repository
}

// NewGetKnowledgeGraphHandler создаёт новый обработчик.
func NewGetKnowledgeGraphHandler(taxonomy concept.Repository, masteryRepo mastery.Repository) *GetKnowledgeGraphHandler {
	return &GetKnowledgeGraphHandler{
		taxonomy:    taxonomy,
		masteryRepo: masteryRepo,
	}
}

// Handle выполняет экспорт персонального графа знаний.
func (h *GetKnowledgeGraphHandler) Handle(ctx context.Context, q GetKnowledgeGraphQuery) (*GetKnowledgeGraphResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("knowledge_graph: %w", err)
	}

	records, err := h.masteryRepo.ListByStudent(ctx, q.StudentID)
	if err != nil {
		return nil, fmt.Errorf("knowledge_graph: mastery of student %s: %w", q.StudentID, err)
	}

	recordByConcept := make(map[string]*mastery.MasteryRecord, len(records))
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.Percent < q.MinPercent {
			continue
		}
		recordByConcept[rec.ConceptID] = rec
		ids = append(ids, rec.ConceptID)
	}

	concepts, err := h.taxonomy.ListConceptsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("knowledge_graph: concepts: %w", err)
	}

	result := &GetKnowledgeGraphResult{
		StudentID: q.StudentID,
		Nodes:     make([]GraphNodeDTO, 0, len(concepts)),
		Edges:     make([]GraphEdgeDTO, 0),
		Metadata: GraphMetadataDTO{
			LevelCounts: make(map[string]int),
			GeneratedAt: time.Now().UTC(),
		},
	}

	// Узлы: пересечение реестра и таксономии с учётом фильтров.
	// Записи о концептах, удалённых из таксономии, не экспортируются.
	kept := make(map[string]bool, len(concepts))
	for _, con := range concepts {
		if q.Subject != "" && con.Subject.String() != q.Subject {
			continue
		}
		rec := recordByConcept[con.ID]
		if rec == nil {
			continue
		}

		node := GraphNodeDTO{
			ConceptID: con.ID,
			Name:      con.Name,
			Subject:   con.Subject.String(),
			Percent:   rec.Percent,
			Level:     string(rec.Level),
			Trend:     string(rec.Trend),
		}
		if rec.Position != nil {
			node.Position = &PositionDTO{X: rec.Position.X, Y: rec.Position.Y}
		}

		kept[con.ID] = true
		result.Nodes = append(result.Nodes, node)
		result.Metadata.LevelCounts[string(rec.Level)]++
	}

	keptIDs := make([]string, 0, len(kept))
	for _, node := range result.Nodes {
		keptIDs = append(keptIDs, node.ConceptID)
	}

	edges, err := h.taxonomy.ListRelationshipsAmong(ctx, keptIDs)
	if err != nil {
		return nil, fmt.Errorf("knowledge_graph: relationships: %w", err)
	}
	for _, edge := range edges {
		result.Edges = append(result.Edges, GraphEdgeDTO{
			SourceID: edge.SourceID,
			TargetID: edge.TargetID,
			Kind:     edge.Kind.String(),
			Strength: float64(edge.Strength),
		})
	}

	result.Metadata.NodeCount = len(result.Nodes)
	result.Metadata.EdgeCount = len(result.Edges)
	return result, nil
}
