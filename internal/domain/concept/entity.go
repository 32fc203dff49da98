// Package concept содержит доменную модель таксономии академических концептов.
// Это ядро графа знаний - здесь нет внешних зависимостей.
package concept

import (
	"fmt"
	"strings"
	"time"

	"github.com/edubridge/mastery-graph/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Subject представляет учебный предмет концепта (например, "mathematics").
type Subject string

// IsValid проверяет, что предмет не пустой.
func (s Subject) IsValid() bool {
	return strings.TrimSpace(string(s)) != ""
}

// String возвращает строковое представление предмета.
func (s Subject) String() string {
	return string(s)
}

// GradeBand представляет возрастную ступень (например, "6-8"). Опционально.
type GradeBand string

// String возвращает строковое представление ступени.
func (g GradeBand) String() string {
	return string(g)
}

// Provenance показывает происхождение записи: ручное авторство или AI-извлечение.
type Provenance string

const (
	// ProvenanceHuman - запись создана человеком.
	ProvenanceHuman Provenance = "human"

	// ProvenanceAI - запись извлечена AI-коллаборатором из учебного материала.
	ProvenanceAI Provenance = "ai"
)

// IsValid проверяет корректность происхождения.
func (p Provenance) IsValid() bool {
	return p == ProvenanceHuman || p == ProvenanceAI
}

// RelationKind представляет тип направленного ребра между концептами.
// Множество закрыто: неизвестные типы отклоняются при валидации.
type RelationKind string

const (
	// KindPrerequisite - source необходимо освоить до target.
	KindPrerequisite RelationKind = "prerequisite"

	// KindBuildsUpon - target развивает идеи source.
	KindBuildsUpon RelationKind = "builds_upon"

	// KindAppliedIn - source применяется в контексте target.
	KindAppliedIn RelationKind = "applied_in"

	// KindRelated - концепты связаны без явной направленной семантики.
	KindRelated RelationKind = "related"
)

// IsValid проверяет, что тип ребра входит в закрытое множество.
func (k RelationKind) IsValid() bool {
	switch k {
	case KindPrerequisite, KindBuildsUpon, KindAppliedIn, KindRelated:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление типа ребра.
func (k RelationKind) String() string {
	return string(k)
}

// Strength представляет существенность связи: 0.0-1.0, выше = важнее.
type Strength float64

// IsValid проверяет диапазон [0,1].
func (s Strength) IsValid() bool {
	return s >= 0.0 && s <= 1.0
}

// Confidence представляет уверенность источника в связи: 0.0-1.0.
type Confidence float64

// IsValid проверяет диапазон [0,1].
func (c Confidence) IsValid() bool {
	return c >= 0.0 && c <= 1.0
}

// NormalizeAlias приводит алиас к каноническому виду для поиска:
// нижний регистр, без обрамляющих пробелов.
func NormalizeAlias(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ══════════════════════════════════════════════════════════════════════════════
// CONCEPT ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Concept представляет именованную единицу знания в таксономии.
//
// Инвариант: каноническое имя уникально в пределах таксономии.
// Алиасы хранятся в нижнем регистре; при неоднозначном совпадении
// алиаса выигрывает концепт, созданный раньше (см. Resolver).
type Concept struct {
	// ID - стабильный идентификатор (UUID).
	ID string

	// Name - каноническое имя, уникальное в таксономии.
	Name string

	// Subject - учебный предмет.
	Subject Subject

	// GradeBand - возрастная ступень (опционально).
	GradeBand GradeBand

	// Description - описание концепта.
	Description string

	// Aliases - алиасы для нечёткого разрешения имён (в нижнем регистре).
	Aliases []string

	// Difficulty - оценка сложности от источника извлечения, [0,1].
	// Ноль допустим и означает "не оценено".
	Difficulty float64

	// Provenance - происхождение: человек или AI.
	Provenance Provenance

	// CreatedAt - время создания.
	CreatedAt time.Time

	// UpdatedAt - время последнего изменения.
	UpdatedAt time.Time
}

// NewConceptParams содержит параметры для создания концепта.
type NewConceptParams struct {
	ID          string
	Name        string
	Subject     Subject
	GradeBand   GradeBand
	Description string
	Aliases     []string
	Difficulty  float64
	Provenance  Provenance
}

// NewConcept создаёт новый концепт с валидацией.
func NewConcept(params NewConceptParams) (*Concept, error) {
	if params.ID == "" {
		return nil, shared.NewDomainError("concept", "Create", shared.ErrInvalidID, "concept id is required")
	}
	if strings.TrimSpace(params.Name) == "" {
		return nil, shared.ErrInvalidConceptName
	}
	if !params.Subject.IsValid() {
		return nil, shared.NewDomainError("concept", "Create", shared.ErrEmptyValue, "subject is required")
	}
	if params.Provenance == "" {
		params.Provenance = ProvenanceHuman
	}
	if !params.Provenance.IsValid() {
		return nil, shared.NewDomainError("concept", "Create", shared.ErrInvalidInput,
			fmt.Sprintf("unknown provenance %q", params.Provenance))
	}
	if params.Difficulty < 0 || params.Difficulty > 1 {
		return nil, shared.NewDomainError("concept", "Create", shared.ErrValueOutOfRange, "difficulty must be within [0,1]")
	}

	now := time.Now().UTC()
	c := &Concept{
		ID:          params.ID,
		Name:        strings.TrimSpace(params.Name),
		Subject:     params.Subject,
		GradeBand:   params.GradeBand,
		Description: params.Description,
		Aliases:     make([]string, 0, len(params.Aliases)),
		Difficulty:  params.Difficulty,
		Provenance:  params.Provenance,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	c.MergeAliases(params.Aliases)
	return c, nil
}

// MergeAliases добавляет алиасы к концепту (объединение множеств).
// Алиасы нормализуются; порядок существующих сохраняется.
// Возвращает true, если множество изменилось.
func (c *Concept) MergeAliases(aliases []string) bool {
	changed := false
	for _, raw := range aliases {
		alias := NormalizeAlias(raw)
		if alias == "" || alias == NormalizeAlias(c.Name) {
			continue
		}
		if c.HasAlias(alias) {
			continue
		}
		c.Aliases = append(c.Aliases, alias)
		changed = true
	}
	if changed {
		c.UpdatedAt = time.Now().UTC()
	}
	return changed
}

// HasAlias проверяет наличие алиаса (вход нормализуется).
func (c *Concept) HasAlias(raw string) bool {
	alias := NormalizeAlias(raw)
	for _, a := range c.Aliases {
		if a == alias {
			return true
		}
	}
	return false
}

// Matches проверяет, совпадает ли строка с каноническим именем или алиасом.
func (c *Concept) Matches(nameOrAlias string) bool {
	normalized := NormalizeAlias(nameOrAlias)
	return NormalizeAlias(c.Name) == normalized || c.HasAlias(normalized)
}

// IsAIGenerated возвращает true для концептов, извлечённых AI.
func (c *Concept) IsAIGenerated() bool {
	return c.Provenance == ProvenanceAI
}

// ══════════════════════════════════════════════════════════════════════════════
// RELATIONSHIP ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Relationship представляет направленное типизированное ребро между концептами.
//
// Инвариант: уникальность по тройке (source, target, kind) - одна и та же
// пара концептов может нести рёбра разных типов. Граф не обязан быть
// ацикличным: обходы защищаются явным множеством посещённых узлов (см. Walker).
type Relationship struct {
	// ID - стабильный идентификатор (UUID).
	ID string

	// SourceID - концепт-источник. Для prerequisite: source осваивается до target.
	SourceID string

	// TargetID - концепт-приёмник.
	TargetID string

	// Kind - тип ребра из закрытого множества.
	Kind RelationKind

	// Strength - существенность связи, [0,1].
	Strength Strength

	// Confidence - уверенность источника, [0,1].
	Confidence Confidence

	// Reasoning - свободный текст с обоснованием связи (опционально).
	Reasoning string

	// Provenance - происхождение: человек или AI.
	Provenance Provenance

	// CreatedAt - время создания. Определяет порядок обхода на уровне.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления метаданных.
	UpdatedAt time.Time
}

// NewRelationshipParams содержит параметры для создания ребра.
type NewRelationshipParams struct {
	ID         string
	SourceID   string
	TargetID   string
	Kind       RelationKind
	Strength   Strength
	Confidence Confidence
	Reasoning  string
	Provenance Provenance
}

// NewRelationship создаёт новое ребро с валидацией.
func NewRelationship(params NewRelationshipParams) (*Relationship, error) {
	if params.ID == "" {
		return nil, shared.NewDomainError("concept", "Relate", shared.ErrInvalidID, "relationship id is required")
	}
	if params.SourceID == "" || params.TargetID == "" {
		return nil, shared.NewDomainError("concept", "Relate", shared.ErrInvalidID, "source and target are required")
	}
	if params.SourceID == params.TargetID {
		return nil, shared.ErrSelfRelationship
	}
	if !params.Kind.IsValid() {
		return nil, shared.ErrInvalidRelationKind
	}
	if !params.Strength.IsValid() {
		return nil, shared.ErrInvalidStrength
	}
	if !params.Confidence.IsValid() {
		return nil, shared.ErrInvalidConfidence
	}
	if params.Provenance == "" {
		params.Provenance = ProvenanceHuman
	}
	if !params.Provenance.IsValid() {
		return nil, shared.NewDomainError("concept", "Relate", shared.ErrInvalidInput,
			fmt.Sprintf("unknown provenance %q", params.Provenance))
	}

	now := time.Now().UTC()
	return &Relationship{
		ID:         params.ID,
		SourceID:   params.SourceID,
		TargetID:   params.TargetID,
		Kind:       params.Kind,
		Strength:   params.Strength,
		Confidence: params.Confidence,
		Reasoning:  params.Reasoning,
		Provenance: params.Provenance,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// RefreshMetadata обновляет strength/confidence/reasoning при повторном
// извлечении. Семантика last-write-wins: метаданные перезаписываются,
// исторические счётчики мастерства не затрагиваются.
func (r *Relationship) RefreshMetadata(strength Strength, confidence Confidence, reasoning string) error {
	if !strength.IsValid() {
		return shared.ErrInvalidStrength
	}
	if !confidence.IsValid() {
		return shared.ErrInvalidConfidence
	}

	r.Strength = strength
	r.Confidence = confidence
	if reasoning != "" {
		r.Reasoning = reasoning
	}
	r.UpdatedAt = time.Now().UTC()
	return nil
}
