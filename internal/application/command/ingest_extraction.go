package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/edubridge/mastery-graph/internal/domain/concept"
	"github.com/edubridge/mastery-graph/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// INGEST EXTRACTION COMMAND
// Applies a batch of concepts and relationships produced by a human author or
// an AI extraction pass. Upserts are idempotent: re-ingesting the same batch
// changes nothing but relationship metadata (last write wins).
// ══════════════════════════════════════════════════════════════════════════════

// ConceptCandidate is one proposed concept from an extraction batch.
type ConceptCandidate struct {
	// Name is the canonical name of the concept.
	Name string

	// Subject is the academic subject.
	Subject string

	// GradeBand is the optional grade band (e.g. "6-8").
	GradeBand string

	// Description is a free-form description.
	Description string

	// Aliases are alternative names for fuzzy resolution.
	Aliases []string

	// Difficulty is the source's difficulty estimate, [0,1].
	Difficulty float64
}

// RelationshipCandidate is one proposed edge from an extraction batch.
// Endpoints are referenced by name or alias.
type RelationshipCandidate struct {
	// Source is the name or alias of the source concept.
	Source string

	// Target is the name or alias of the target concept.
	Target string

	// Kind is the edge kind.
	Kind string

	// Strength is the substantiveness of the link, [0,1].
	Strength float64

	// Confidence is the source's confidence in the link, [0,1].
	Confidence float64

	// Reasoning is free-form justification text.
	Reasoning string
}

// IngestExtractionCommand contains one extraction batch.
type IngestExtractionCommand struct {
	// Concepts are the proposed concepts. Applied before relationships so
	// that edges can reference concepts from the same batch.
	Concepts []ConceptCandidate

	// Relationships are the proposed edges.
	Relationships []RelationshipCandidate

	// Provenance marks the origin of the batch: "human" or "ai".
	Provenance string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c IngestExtractionCommand) Validate() error {
	if len(c.Concepts) == 0 && len(c.Relationships) == 0 {
		return errors.New("ingest_extraction: batch is empty")
	}
	if c.Provenance != "" && !concept.Provenance(c.Provenance).IsValid() {
		return fmt.Errorf("ingest_extraction: unknown provenance %q", c.Provenance)
	}
	return nil
}

// QuarantinedEntry describes one rejected batch entry. A malformed entry
// never aborts the batch: valid siblings are still applied.
type QuarantinedEntry struct {
	// Kind is "concept" or "relationship".
	Kind string

	// Reference names the rejected entry (concept name or "source->target").
	Reference string

	// Reason explains the rejection.
	Reason string
}

// IngestExtractionResult summarizes the applied batch.
type IngestExtractionResult struct {
	// ConceptsCreated is the number of new concepts.
	ConceptsCreated int

	// ConceptsUpdated is the number of existing concepts that gained aliases.
	ConceptsUpdated int

	// RelationshipsCreated is the number of new edges.
	RelationshipsCreated int

	// RelationshipsRefreshed is the number of existing edges with
	// refreshed metadata.
	RelationshipsRefreshed int

	// Quarantined lists the rejected entries with reasons.
	Quarantined []QuarantinedEntry

	// Events contains domain events generated.
	Events []shared.Event

	// IngestedAt is when the batch was applied.
	IngestedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// IngestExtractionHandler handles the IngestExtractionCommand.
type IngestExtractionHandler struct {
	taxonomy       concept.Repository
	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewIngestExtractionHandler creates a new IngestExtractionHandler.
func NewIngestExtractionHandler(
	taxonomy concept.Repository,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *IngestExtractionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestExtractionHandler{
		taxonomy:       taxonomy,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Handle executes the ingest extraction command.
func (h *IngestExtractionHandler) Handle(ctx context.Context, cmd IngestExtractionCommand) (*IngestExtractionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	provenance := concept.Provenance(cmd.Provenance)
	if provenance == "" {
		provenance = concept.ProvenanceHuman
	}

	result := &IngestExtractionResult{
		Quarantined: make([]QuarantinedEntry, 0),
		Events:      make([]shared.Event, 0, len(cmd.Concepts)+len(cmd.Relationships)),
		IngestedAt:  time.Now().UTC(),
	}

	// Concepts first: edges of the same batch may reference them.
	for _, cand := range cmd.Concepts {
		if err := h.upsertConcept(ctx, cand, provenance, result); err != nil {
			return nil, fmt.Errorf("ingest_extraction: concept %q: %w", cand.Name, err)
		}
	}

	for _, cand := range cmd.Relationships {
		if err := h.upsertRelationship(ctx, cand, provenance, result); err != nil {
			return nil, fmt.Errorf("ingest_extraction: relationship %q -> %q: %w", cand.Source, cand.Target, err)
		}
	}

	for _, event := range result.Events {
		if pubErr := h.eventPublisher.Publish(event); pubErr != nil {
			h.logger.Warn("ingest_extraction: event publish failed",
				"event_type", string(event.EventType()),
				"error", pubErr)
		}
	}

	return result, nil
}

// upsertConcept creates the concept or merges aliases into the existing one.
// Identity is the canonical name; the matching is case-insensitive and also
// covers registered aliases, so a candidate named like an existing alias
// enriches that concept instead of duplicating it.
func (h *IngestExtractionHandler) upsertConcept(ctx context.Context, cand ConceptCandidate, provenance concept.Provenance, result *IngestExtractionResult) error {
	name := strings.TrimSpace(cand.Name)
	if name == "" {
		result.Quarantined = append(result.Quarantined, QuarantinedEntry{
			Kind: "concept", Reference: cand.Name, Reason: "empty name",
		})
		return nil
	}

	existing, err := concept.NewResolver(h.taxonomy).Resolve(ctx, name)
	switch {
	case err == nil:
		// Merge: union aliases, keep everything else. The original
		// provenance and description are not overwritten by re-extraction.
		aliases := append([]string{}, cand.Aliases...)
		if !strings.EqualFold(existing.Name, name) {
			// Matched through an alias; the candidate name is already known.
			aliases = append(aliases, name)
		}
		if !existing.MergeAliases(aliases) {
			return nil
		}
		if err := h.taxonomy.UpdateConcept(ctx, existing); err != nil {
			return err
		}
		result.ConceptsUpdated++
		result.Events = append(result.Events, h.conceptEvent(existing, false))
		return nil

	case errors.Is(err, shared.ErrNotFound):
		created, err := concept.NewConcept(concept.NewConceptParams{
			ID:          uuid.NewString(),
			Name:        name,
			Subject:     concept.Subject(cand.Subject),
			GradeBand:   concept.GradeBand(cand.GradeBand),
			Description: cand.Description,
			Aliases:     cand.Aliases,
			Difficulty:  cand.Difficulty,
			Provenance:  provenance,
		})
		if err != nil {
			result.Quarantined = append(result.Quarantined, QuarantinedEntry{
				Kind: "concept", Reference: name, Reason: err.Error(),
			})
			return nil
		}
		if err := h.taxonomy.CreateConcept(ctx, created); err != nil {
			if errors.Is(err, shared.ErrAlreadyExists) {
				// Raced with another ingester; the concept exists now.
				return nil
			}
			return err
		}
		result.ConceptsCreated++
		result.Events = append(result.Events, h.conceptEvent(created, true))
		return nil

	default:
		return err
	}
}

// upsertRelationship creates the edge or refreshes its metadata.
// Identity is the (source, target, kind) triple. Edges whose endpoints do
// not resolve are quarantined, never silently dropped.
func (h *IngestExtractionHandler) upsertRelationship(ctx context.Context, cand RelationshipCandidate, provenance concept.Provenance, result *IngestExtractionResult) error {
	ref := cand.Source + "->" + cand.Target
	quarantine := func(reason string) {
		result.Quarantined = append(result.Quarantined, QuarantinedEntry{
			Kind: "relationship", Reference: ref, Reason: reason,
		})
	}

	kind := concept.RelationKind(cand.Kind)
	if !kind.IsValid() {
		quarantine(fmt.Sprintf("unknown kind %q", cand.Kind))
		return nil
	}

	resolver := concept.NewResolver(h.taxonomy)
	source, err := resolver.Resolve(ctx, cand.Source)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			quarantine(fmt.Sprintf("source %q does not resolve", cand.Source))
			return nil
		}
		return err
	}
	target, err := resolver.Resolve(ctx, cand.Target)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			quarantine(fmt.Sprintf("target %q does not resolve", cand.Target))
			return nil
		}
		return err
	}
	if source.ID == target.ID {
		quarantine("source and target resolve to the same concept")
		return nil
	}

	existing, err := h.taxonomy.GetRelationship(ctx, source.ID, target.ID, kind)
	switch {
	case err == nil:
		if err := existing.RefreshMetadata(concept.Strength(cand.Strength), concept.Confidence(cand.Confidence), cand.Reasoning); err != nil {
			quarantine(err.Error())
			return nil
		}
		if err := h.taxonomy.UpdateRelationship(ctx, existing); err != nil {
			return err
		}
		result.RelationshipsRefreshed++
		result.Events = append(result.Events, shared.NewRelationshipRegisteredEvent(existing.ID, source.ID, target.ID, string(kind), float64(existing.Strength)))
		return nil

	case errors.Is(err, shared.ErrNotFound):
		created, err := concept.NewRelationship(concept.NewRelationshipParams{
			ID:         uuid.NewString(),
			SourceID:   source.ID,
			TargetID:   target.ID,
			Kind:       kind,
			Strength:   concept.Strength(cand.Strength),
			Confidence: concept.Confidence(cand.Confidence),
			Reasoning:  cand.Reasoning,
			Provenance: provenance,
		})
		if err != nil {
			quarantine(err.Error())
			return nil
		}
		if err := h.taxonomy.CreateRelationship(ctx, created); err != nil {
			if errors.Is(err, shared.ErrAlreadyExists) {
				return nil
			}
			return err
		}
		result.RelationshipsCreated++
		result.Events = append(result.Events, shared.NewRelationshipRegisteredEvent(created.ID, source.ID, target.ID, string(kind), float64(created.Strength)))
		return nil

	default:
		return err
	}
}

func (h *IngestExtractionHandler) conceptEvent(c *concept.Concept, created bool) shared.Event {
	return shared.NewConceptRegisteredEvent(c.ID, c.Name, c.Subject.String(), c.IsAIGenerated(), created)
}
