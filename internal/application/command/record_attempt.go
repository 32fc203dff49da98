// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/edubridge/mastery-graph/internal/domain/concept"
	"github.com/edubridge/mastery-graph/internal/domain/journey"
	"github.com/edubridge/mastery-graph/internal/domain/mastery"
	"github.com/edubridge/mastery-graph/internal/domain/shared"
	"github.com/edubridge/mastery-graph/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ATTEMPT COMMAND
// The single write path of the mastery ledger: applies one assessed attempt,
// detects threshold crossings and publishes the resulting events.
// ══════════════════════════════════════════════════════════════════════════════

// RecordAttemptCommand contains the data of one assessed attempt.
type RecordAttemptCommand struct {
	// StudentID is the internal ID of the student.
	StudentID string

	// ConceptName is the canonical name or a registered alias of the concept.
	ConceptName string

	// ClassID is the class in which the attempt happened.
	ClassID string

	// SchoolYear labels the class-scoped slice (e.g. "2026-2027").
	SchoolYear string

	// IsCorrect is the outcome of the attempt.
	IsCorrect bool

	// Context describes where the attempt came from (assignment, quiz, ...).
	Context string

	// Timestamp is when the attempt occurred (defaults to now if zero).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RecordAttemptCommand) Validate() error {
	if c.StudentID == "" {
		return fmt.Errorf("record_attempt: student_id is required: %w", shared.ErrInvalidAttemptState)
	}
	if c.ConceptName == "" {
		return fmt.Errorf("record_attempt: concept_name is required: %w", shared.ErrInvalidAttemptState)
	}
	if c.ClassID == "" {
		return fmt.Errorf("record_attempt: class_id is required: %w", shared.ErrInvalidAttemptState)
	}
	return nil
}

// RecordAttemptResult contains the state of the ledger after the attempt.
type RecordAttemptResult struct {
	// StudentID is the internal ID of the student.
	StudentID string

	// ConceptID is the resolved concept.
	ConceptID string

	// ConceptName is the canonical name of the resolved concept.
	ConceptName string

	// FirstAttempt indicates that the record was created by this attempt.
	FirstAttempt bool

	// Percent is the mastery percent after the attempt.
	Percent int

	// PreviousPercent is the percent before the attempt.
	PreviousPercent int

	// Level is the derived mastery level.
	Level mastery.Level

	// Trend is the derived direction of change.
	Trend mastery.Trend

	// TotalAttempts is the lifetime attempt counter after the update.
	TotalAttempts int

	// ClassPercent is the mastery percent within the class slice.
	ClassPercent int

	// Milestones lists the milestone kinds recorded by this attempt.
	Milestones []journey.MilestoneKind

	// Events contains domain events generated.
	Events []shared.Event

	// RecordedAt is when the attempt was recorded.
	RecordedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordAttemptHandler handles the RecordAttemptCommand.
//
// Updates of a (student, concept) pair are strictly serialized: an in-process
// keyed mutex orders writers inside the instance, and the repository's
// optimistic version check catches writers from other instances. Version
// conflicts are retried here and never reach the caller.
type RecordAttemptHandler struct {
	masteryRepo    mastery.Repository
	journeyRepo    journey.Repository
	resolver       *concept.Resolver
	eventPublisher shared.EventPublisher
	logger         *slog.Logger

	locks           *keyedMutex
	conflictRetrier *retry.Retrier
}

// RecordAttemptHandlerConfig contains configuration for the handler.
type RecordAttemptHandlerConfig struct {
	// ConflictMaxAttempts bounds retries of optimistic version conflicts.
	ConflictMaxAttempts int

	// ConflictInitialDelay is the first backoff delay between retries.
	ConflictInitialDelay time.Duration
}

// DefaultRecordAttemptHandlerConfig returns default configuration.
func DefaultRecordAttemptHandlerConfig() RecordAttemptHandlerConfig {
	return RecordAttemptHandlerConfig{
		ConflictMaxAttempts:  5,
		ConflictInitialDelay: 10 * time.Millisecond,
	}
}

// NewRecordAttemptHandler creates a new RecordAttemptHandler.
func NewRecordAttemptHandler(
	masteryRepo mastery.Repository,
	journeyRepo journey.Repository,
	taxonomy concept.Reader,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
	config RecordAttemptHandlerConfig,
) *RecordAttemptHandler {
	if config.ConflictMaxAttempts == 0 {
		config = DefaultRecordAttemptHandlerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RecordAttemptHandler{
		masteryRepo:    masteryRepo,
		journeyRepo:    journeyRepo,
		resolver:       concept.NewResolver(taxonomy),
		eventPublisher: eventPublisher,
		logger:         logger,
		locks:          newKeyedMutex(),
		conflictRetrier: retry.New(
			retry.WithMaxAttempts(config.ConflictMaxAttempts),
			retry.WithInitialDelay(config.ConflictInitialDelay),
			retry.WithRetryIf(shared.IsConflict),
		),
	}
}

// Handle executes the record attempt command.
func (h *RecordAttemptHandler) Handle(ctx context.Context, cmd RecordAttemptCommand) (*RecordAttemptResult, error) {
	// Validate command
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	// Set timestamp if not provided
	timestamp := cmd.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	// Resolve the concept against the taxonomy. Attempts against unknown
	// concepts are rejected, the ledger never references dangling concepts.
	con, err := h.resolver.Resolve(ctx, cmd.ConceptName)
	if err != nil {
		return nil, fmt.Errorf("record_attempt: resolve %q: %w", cmd.ConceptName, err)
	}

	// Serialize writers of this (student, concept) pair.
	unlock := h.locks.Lock(cmd.StudentID + "/" + con.ID)
	defer unlock()

	var (
		rec      *mastery.MasteryRecord
		classRec *mastery.ClassMasteryRecord
	)

	// Read-modify-write under the lock; re-read and retry on version
	// conflicts from writers on other instances.
	err = h.conflictRetrier.Do(ctx, func(ctx context.Context) error {
		var opErr error
		rec, classRec, opErr = h.applyAttempt(ctx, cmd, con.ID, timestamp)
		return opErr
	})
	if err != nil {
		return nil, fmt.Errorf("record_attempt: save attempt for student %s concept %s: %w", cmd.StudentID, con.ID, err)
	}

	result := &RecordAttemptResult{
		StudentID:       cmd.StudentID,
		ConceptID:       con.ID,
		ConceptName:     con.Name,
		FirstAttempt:    rec.TotalAttempts == 1,
		Percent:         rec.Percent,
		PreviousPercent: rec.PreviousPercent,
		Level:           rec.Level,
		Trend:           rec.Trend,
		TotalAttempts:   rec.TotalAttempts,
		ClassPercent:    classRec.Percent,
		Milestones:      make([]journey.MilestoneKind, 0, 2),
		Events:          make([]shared.Event, 0, 3),
		RecordedAt:      timestamp,
	}

	// Threshold crossings are computed from the adjacent (previous, new)
	// snapshot pair taken under the same serialization as the write.
	h.recordMilestones(ctx, cmd, con, rec, timestamp, result)

	// mastery-updated is emitted unconditionally, after milestone events.
	updated := shared.NewMasteryUpdatedEvent(
		cmd.StudentID, con.ID, con.Name, cmd.ClassID,
		rec.Percent, rec.PreviousPercent, string(rec.Level), string(rec.Trend),
	)
	updated.BaseEvent = updated.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	result.Events = append(result.Events, updated)

	// Publish events. The ledger write is already durable: delivery
	// failures are logged and never roll it back.
	for _, event := range result.Events {
		if pubErr := h.eventPublisher.Publish(event); pubErr != nil {
			h.logger.Warn("record_attempt: event publish failed",
				"event_type", string(event.EventType()),
				"student_id", cmd.StudentID,
				"concept_id", con.ID,
				"error", pubErr)
		}
	}

	return result, nil
}

// applyAttempt performs one read-modify-write cycle over the ledger.
func (h *RecordAttemptHandler) applyAttempt(ctx context.Context, cmd RecordAttemptCommand, conceptID string, timestamp time.Time) (*mastery.MasteryRecord, *mastery.ClassMasteryRecord, error) {
	rec, err := h.masteryRepo.GetRecord(ctx, cmd.StudentID, conceptID)
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrMasteryRecordNotFound):
		rec, err = mastery.NewMasteryRecord(uuid.NewString(), cmd.StudentID, conceptID)
		if err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, err
	}

	classRec, err := h.masteryRepo.GetClassRecord(ctx, cmd.StudentID, conceptID, cmd.ClassID)
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrMasteryRecordNotFound):
		classRec, err = mastery.NewClassMasteryRecord(uuid.NewString(), rec, cmd.ClassID, cmd.SchoolYear)
		if err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, err
	}

	rec.ApplyAttempt(cmd.ClassID, cmd.IsCorrect, cmd.Context, timestamp)
	classRec.ApplyAttempt(cmd.IsCorrect, timestamp)

	if err := h.masteryRepo.SaveAttempt(ctx, rec, classRec); err != nil {
		if shared.IsConflict(err) {
			return nil, nil, retry.Retryable(err)
		}
		return nil, nil, err
	}
	return rec, classRec, nil
}

// recordMilestones detects threshold crossings, records the milestones and
// appends the corresponding events to the result. Milestone persistence is
// part of the attempt outcome but never fails the ledger write.
func (h *RecordAttemptHandler) recordMilestones(ctx context.Context, cmd RecordAttemptCommand, con *concept.Concept, rec *mastery.MasteryRecord, timestamp time.Time, result *RecordAttemptResult) {
	kinds := journey.DetectMilestones(rec.PreviousPercent, rec.Percent)
	if len(kinds) == 0 {
		return
	}

	// The journey is created lazily on the first milestone.
	jrn, err := h.journeyRepo.GetOrCreateJourney(ctx, cmd.StudentID)
	if err != nil {
		h.logger.Error("record_attempt: journey lookup failed",
			"student_id", cmd.StudentID, "error", err)
		return
	}

	for _, kind := range kinds {
		exists, err := h.journeyRepo.HasMilestone(ctx, jrn.ID, con.ID, kind)
		if err != nil {
			h.logger.Error("record_attempt: milestone lookup failed",
				"student_id", cmd.StudentID, "concept_id", con.ID,
				"kind", string(kind), "error", err)
			continue
		}
		if exists {
			// The crossing was already recorded by an earlier attempt.
			continue
		}

		m, err := journey.NewMilestone(uuid.NewString(), jrn.ID, cmd.StudentID, con.ID, cmd.ClassID, kind, cmd.Context, rec.Percent, timestamp)
		if err != nil {
			h.logger.Error("record_attempt: milestone construction failed",
				"student_id", cmd.StudentID, "concept_id", con.ID,
				"kind", string(kind), "error", err)
			continue
		}
		if err := h.journeyRepo.RecordMilestone(ctx, m); err != nil {
			if errors.Is(err, shared.ErrMilestoneAlreadyExists) {
				// Defensive storage constraint fired: treat as already
				// recorded, no event.
				continue
			}
			h.logger.Error("record_attempt: milestone save failed",
				"student_id", cmd.StudentID, "concept_id", con.ID,
				"kind", string(kind), "error", err)
			continue
		}

		result.Milestones = append(result.Milestones, kind)
		switch kind {
		case journey.KindFirstIntroduced:
			discovered := shared.NewConceptDiscoveredEvent(
				cmd.StudentID, con.ID, con.Name, cmd.ClassID, cmd.Context,
			)
			discovered.BaseEvent = discovered.BaseEvent.WithCorrelationID(cmd.CorrelationID)
			result.Events = append(result.Events, discovered)
		case journey.KindMastered:
			achieved := shared.NewMilestoneAchievedEvent(
				cmd.StudentID, con.ID, con.Name, cmd.ClassID, string(kind), rec.Percent, cmd.Context,
			)
			achieved.BaseEvent = achieved.BaseEvent.WithCorrelationID(cmd.CorrelationID)
			result.Events = append(result.Events, achieved)
		}
	}
}
