package concept

import (
	"context"
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// PREREQUISITE GRAPH WALKER
// Рекурсивный обход рёбер prerequisite от концепта к его предпосылкам.
//
// Граф частично порождается AI и не обязан быть ацикличным, поэтому каждый
// обход несёт явное множество посещённых узлов и отклоняет повторное
// посещение. Защита по глубине стека не используется принципиально:
// цикл A -> B -> A обязан завершаться конечной цепочкой.
// ══════════════════════════════════════════════════════════════════════════════

// ChainEntry - один элемент упорядоченной цепочки предпосылок.
type ChainEntry struct {
	// Concept - концепт-предпосылка.
	Concept *Concept

	// Depth - глубина рекурсии, на которой концепт был достигнут.
	// Прямые предпосылки имеют глубину 1.
	Depth int
}

// CrossSubjectLink - связь концепта с концептом из другого предмета.
type CrossSubjectLink struct {
	// Concept - концепт на дальнем конце ребра.
	Concept *Concept

	// Kind - тип ребра.
	Kind RelationKind

	// Strength - существенность связи.
	Strength Strength

	// Outgoing - true, если ребро исходит из исходного концепта.
	Outgoing bool
}

// Walker выполняет обходы графа таксономии.
// Walker работает только на чтение и может выполняться параллельно
// с писателями реестра мастерства.
type Walker struct {
	reader Reader
}

// NewWalker создаёт новый Walker.
func NewWalker(reader Reader) *Walker {
	return &Walker{reader: reader}
}

// PrerequisiteChain возвращает упорядоченную цепочку предпосылок концепта.
//
// Обход: depth-first по входящим рёбрам prerequisite (от концепта к тем,
// что необходимо освоить раньше). Порядок на каждом уровне - порядок
// создания рёбер. Узел включается в цепочку не более одного раза.
func (w *Walker) PrerequisiteChain(ctx context.Context, conceptID string) ([]ChainEntry, error) {
	if _, err := w.reader.GetConceptByID(ctx, conceptID); err != nil {
		return nil, err
	}

	visited := map[string]bool{conceptID: true}
	chain := make([]ChainEntry, 0)

	if err := w.walkPrerequisites(ctx, conceptID, 1, visited, &chain); err != nil {
		return nil, err
	}
	return chain, nil
}

// walkPrerequisites - рекурсивный шаг обхода.
// visited пополняется до рекурсивного вызова: в циклическом графе
// повторное посещение отклоняется, а не переполняет стек.
func (w *Walker) walkPrerequisites(ctx context.Context, conceptID string, depth int, visited map[string]bool, chain *[]ChainEntry) error {
	edges, err := w.reader.ListIncoming(ctx, conceptID, KindPrerequisite)
	if err != nil {
		return fmt.Errorf("walk prerequisites of %s: %w", conceptID, err)
	}

	for _, edge := range edges {
		if visited[edge.SourceID] {
			continue
		}
		visited[edge.SourceID] = true

		prereq, err := w.reader.GetConceptByID(ctx, edge.SourceID)
		if err != nil {
			// Висячее ребро не роняет весь отчёт.
			continue
		}

		*chain = append(*chain, ChainEntry{Concept: prereq, Depth: depth})

		if err := w.walkPrerequisites(ctx, edge.SourceID, depth+1, visited, chain); err != nil {
			return err
		}
	}
	return nil
}

// CrossSubjectConnections возвращает связи концепта с концептами других
// предметов. Такие рёбра обычно порождаются AI-коллаборатором; движок
// лишь хранит и выбирает их, не выводя самостоятельно.
func (w *Walker) CrossSubjectConnections(ctx context.Context, conceptID string) ([]CrossSubjectLink, error) {
	origin, err := w.reader.GetConceptByID(ctx, conceptID)
	if err != nil {
		return nil, err
	}

	edges, err := w.reader.ListAllTouching(ctx, conceptID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	links := make([]CrossSubjectLink, 0)

	for _, edge := range edges {
		otherID := edge.SourceID
		outgoing := false
		if edge.SourceID == conceptID {
			otherID = edge.TargetID
			outgoing = true
		}
		if seen[otherID] {
			continue
		}

		other, err := w.reader.GetConceptByID(ctx, otherID)
		if err != nil {
			continue
		}
		if other.Subject == origin.Subject {
			continue
		}

		seen[otherID] = true
		links = append(links, CrossSubjectLink{
			Concept:  other,
			Kind:     edge.Kind,
			Strength: edge.Strength,
			Outgoing: outgoing,
		})
	}
	return links, nil
}
