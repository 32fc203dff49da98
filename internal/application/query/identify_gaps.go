package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/edubridge/mastery-graph/internal/domain/concept"
	"github.com/edubridge/mastery-graph/internal/domain/mastery"
	"github.com/edubridge/mastery-graph/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IDENTIFY GAPS QUERY
// Сопоставляет требования класса с реестром мастерства студента и возвращает
// пробелы по серьёзности. Неразрешимые имена концептов молча пропускаются:
// частичный отчёт полезнее учителю, чем отказ всего запроса.
// ══════════════════════════════════════════════════════════════════════════════

// Severity - серьёзность пробела.
type Severity string

const (
	// SeverityHigh - процент ниже порога beginning либо концепт не оценивался.
	SeverityHigh Severity = "HIGH"

	// SeverityMedium - процент в диапазоне developing.
	SeverityMedium Severity = "MEDIUM"
)

// RequiredConceptsProvider отдаёт имена концептов, требуемых классом.
// Реализация - HTTP-клиент коллаборатора заданий (infrastructure/external).
type RequiredConceptsProvider interface {
	// RequiredConcepts возвращает имена концептов для класса.
	RequiredConcepts(ctx context.Context, classID string) ([]string, error)
}

// IdentifyGapsQuery содержит параметры запроса пробелов.
type IdentifyGapsQuery struct {
	// StudentID - внутренний ID студента.
	StudentID string

	// ClassID - класс, требования которого проверяются.
	ClassID string
}

// Validate проверяет корректность параметров.
func (q *IdentifyGapsQuery) Validate() error {
	if q.StudentID == "" {
		return errors.New("student_id is required")
	}
	if q.ClassID == "" {
		return errors.New("class_id is required")
	}
	return nil
}

// GapDTO - один пробел в знаниях.
type GapDTO struct {
	// ConceptID - ID концепта.
	ConceptID string `json:"concept_id"`

	// Name - каноническое имя концепта.
	Name string `json:"name"`

	// CurrentMastery - текущий процент мастерства (0, если не оценивался).
	CurrentMastery int `json:"current_mastery"`

	// Severity - серьёзность пробела.
	Severity Severity `json:"severity"`

	// Attempted - оценивался ли концепт хотя бы раз.
	Attempted bool `json:"attempted"`

	// LastAssessed - время последней оценки (nil, если не оценивался).
	LastAssessed *time.Time `json:"last_assessed,omitempty"`

	// YearsAgo - целых лет с последней оценки (floor).
	YearsAgo int `json:"years_ago"`

	// Recommendation - человекочитаемая рекомендация.
	Recommendation string `json:"recommendation"`
}

// IdentifyGapsResult содержит результат запроса пробелов.
type IdentifyGapsResult struct {
	// StudentID - студент.
	StudentID string `json:"student_id"`

	// ClassID - класс.
	ClassID string `json:"class_id"`

	// Gaps - пробелы в порядке требований класса.
	Gaps []GapDTO `json:"gaps"`

	// TotalGaps - всего пробелов.
	TotalGaps int `json:"total_gaps"`

	// CriticalGaps - пробелов с серьёзностью HIGH.
	CriticalGaps int `json:"critical_gaps"`

	// ModerateGaps - пробелов с серьёзностью MEDIUM.
	ModerateGaps int `json:"moderate_gaps"`

	// SkippedNames - имена требований, не разрешившиеся в концепты.
	SkippedNames []string `json:"skipped_names,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// IdentifyGapsHandler обрабатывает IdentifyGapsQuery.
type IdentifyGapsHandler struct {
	requirements RequiredConceptsProvider
	resolver     *concept.Resolver
	masteryRepo  mastery.Repository
	logger       *slog.Logger

	// now подменяется в тестах для детерминизма yearsAgo.
	now func() time.Time
}

// NewIdentifyGapsHandler создаёт новый обработчик.
func NewIdentifyGapsHandler(
	requirements RequiredConceptsProvider,
	taxonomy concept.Reader,
	masteryRepo mastery.Repository,
	logger *slog.Logger,
) *IdentifyGapsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentifyGapsHandler{
		requirements: requirements,
		resolver:     concept.NewResolver(taxonomy),
		masteryRepo:  masteryRepo,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Handle выполняет запрос пробелов.
func (h *IdentifyGapsHandler) Handle(ctx context.Context, q IdentifyGapsQuery) (*IdentifyGapsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("identify_gaps: %w", err)
	}

	names, err := h.requirements.RequiredConcepts(ctx, q.ClassID)
	if err != nil {
		return nil, fmt.Errorf("identify_gaps: requirements for class %s: %w", q.ClassID, err)
	}

	result := &IdentifyGapsResult{
		StudentID:    q.StudentID,
		ClassID:      q.ClassID,
		Gaps:         make([]GapDTO, 0, len(names)),
		SkippedNames: make([]string, 0),
	}

	for _, name := range names {
		con, err := h.resolver.Resolve(ctx, name)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				result.SkippedNames = append(result.SkippedNames, name)
				h.logger.Debug("identify_gaps: requirement does not resolve",
					"class_id", q.ClassID, "name", name)
				continue
			}
			return nil, fmt.Errorf("identify_gaps: resolve %q: %w", name, err)
		}

		gap, isGap, err := h.evaluate(ctx, q.StudentID, con)
		if err != nil {
			return nil, err
		}
		if !isGap {
			continue
		}

		result.Gaps = append(result.Gaps, gap)
		result.TotalGaps++
		switch gap.Severity {
		case SeverityHigh:
			result.CriticalGaps++
		case SeverityMedium:
			result.ModerateGaps++
		}
	}

	return result, nil
}

// evaluate определяет, есть ли у студента пробел по концепту.
// Пробел: записи нет либо процент ниже порога proficient.
func (h *IdentifyGapsHandler) evaluate(ctx context.Context, studentID string, con *concept.Concept) (GapDTO, bool, error) {
	rec, err := h.masteryRepo.GetRecord(ctx, studentID, con.ID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return GapDTO{
			ConceptID:      con.ID,
			Name:           con.Name,
			CurrentMastery: 0,
			Severity:       SeverityHigh,
			Attempted:      false,
			Recommendation: recommendation(SeverityHigh, false, con.Name),
		}, true, nil
	case err != nil:
		return GapDTO{}, false, fmt.Errorf("identify_gaps: mastery of %s: %w", con.ID, err)
	}

	if rec.Percent >= mastery.ThresholdProficient {
		return GapDTO{}, false, nil
	}

	severity := SeverityMedium
	if rec.Percent < mastery.ThresholdBeginning {
		severity = SeverityHigh
	}

	last := rec.LastAssessed
	return GapDTO{
		ConceptID:      con.ID,
		Name:           con.Name,
		CurrentMastery: rec.Percent,
		Severity:       severity,
		Attempted:      true,
		LastAssessed:   &last,
		YearsAgo:       yearsAgo(last, h.now()),
		Recommendation: recommendation(severity, true, con.Name),
	}, true, nil
}

// yearsAgo возвращает целое число лет между двумя моментами (floor).
func yearsAgo(since, now time.Time) int {
	if since.IsZero() || !since.Before(now) {
		return 0
	}
	const year = 365 * 24 * time.Hour
	return int(now.Sub(since) / year)
}

// recommendation строит рекомендацию из серьёзности и факта оценивания.
func recommendation(severity Severity, attempted bool, conceptName string) string {
	switch {
	case !attempted:
		return fmt.Sprintf("Concept %q has never been assessed. Introduce it with guided practice before it blocks dependent material.", conceptName)
	case severity == SeverityHigh:
		return fmt.Sprintf("Mastery of %q is critically low. Re-teach the fundamentals and follow up with short frequent practice.", conceptName)
	default:
		return fmt.Sprintf("Mastery of %q is developing. Targeted practice should close the remaining gap.", conceptName)
	}
}
