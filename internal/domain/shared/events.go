// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Mastery ledger events
	EventMasteryUpdated EventType = "mastery.updated"

	// Discovery and milestone events
	EventConceptDiscovered EventType = "mastery.concept_discovered"
	EventMilestoneAchieved EventType = "journey.milestone_achieved"

	// Taxonomy events
	EventConceptRegistered      EventType = "taxonomy.concept_registered"
	EventRelationshipRegistered EventType = "taxonomy.relationship_registered"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Mastery Events
// ═══════════════════════════════════════════════════════════════════════════

// MasteryUpdatedEvent is emitted after every recorded attempt,
// unconditionally. The aggregate is the student.
type MasteryUpdatedEvent struct {
	BaseEvent
	StudentID       string `json:"student_id"`
	ConceptID       string `json:"concept_id"`
	ConceptName     string `json:"concept_name"`
	ClassID         string `json:"class_id"`
	Percent         int    `json:"percent"`
	PreviousPercent int    `json:"previous_percent"`
	Level           string `json:"level"`
	Trend           string `json:"trend"`
}

// Payload implements Event interface.
func (e MasteryUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":       e.StudentID,
		"concept_id":       e.ConceptID,
		"concept_name":     e.ConceptName,
		"class_id":         e.ClassID,
		"percent":          e.Percent,
		"previous_percent": e.PreviousPercent,
		"level":            e.Level,
		"trend":            e.Trend,
	}
}

// NewMasteryUpdatedEvent creates a new MasteryUpdatedEvent.
func NewMasteryUpdatedEvent(studentID, conceptID, conceptName, classID string, percent, previousPercent int, level, trend string) MasteryUpdatedEvent {
	return MasteryUpdatedEvent{
		BaseEvent:       NewBaseEvent(EventMasteryUpdated, studentID),
		StudentID:       studentID,
		ConceptID:       conceptID,
		ConceptName:     conceptName,
		ClassID:         classID,
		Percent:         percent,
		PreviousPercent: previousPercent,
		Level:           level,
		Trend:           trend,
	}
}

// ConceptDiscoveredEvent is emitted when a student demonstrates a concept
// for the first time (previous percent 0, new percent positive).
type ConceptDiscoveredEvent struct {
	BaseEvent
	StudentID   string `json:"student_id"`
	ConceptID   string `json:"concept_id"`
	ConceptName string `json:"concept_name"`
	ClassID     string `json:"class_id"`
	Context     string `json:"context,omitempty"`
}

// Payload implements Event interface.
func (e ConceptDiscoveredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":   e.StudentID,
		"concept_id":   e.ConceptID,
		"concept_name": e.ConceptName,
		"class_id":     e.ClassID,
		"context":      e.Context,
	}
}

// NewConceptDiscoveredEvent creates a new ConceptDiscoveredEvent.
func NewConceptDiscoveredEvent(studentID, conceptID, conceptName, classID, context string) ConceptDiscoveredEvent {
	return ConceptDiscoveredEvent{
		BaseEvent:   NewBaseEvent(EventConceptDiscovered, studentID),
		StudentID:   studentID,
		ConceptID:   conceptID,
		ConceptName: conceptName,
		ClassID:     classID,
		Context:     context,
	}
}

// MilestoneAchievedEvent is emitted when a threshold crossing produces a
// milestone record (first_introduced or mastered).
type MilestoneAchievedEvent struct {
	BaseEvent
	StudentID   string `json:"student_id"`
	ConceptID   string `json:"concept_id"`
	ConceptName string `json:"concept_name"`
	ClassID     string `json:"class_id"`
	Kind        string `json:"kind"`
	Percent     int    `json:"percent"`
	Context     string `json:"context,omitempty"`
}

// Payload implements Event interface.
func (e MilestoneAchievedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":   e.StudentID,
		"concept_id":   e.ConceptID,
		"concept_name": e.ConceptName,
		"class_id":     e.ClassID,
		"kind":         e.Kind,
		"percent":      e.Percent,
		"context":      e.Context,
	}
}

// NewMilestoneAchievedEvent creates a new MilestoneAchievedEvent.
func NewMilestoneAchievedEvent(studentID, conceptID, conceptName, classID, kind string, percent int, context string) MilestoneAchievedEvent {
	return MilestoneAchievedEvent{
		BaseEvent:   NewBaseEvent(EventMilestoneAchieved, studentID),
		StudentID:   studentID,
		ConceptID:   conceptID,
		ConceptName: conceptName,
		ClassID:     classID,
		Kind:        kind,
		Percent:     percent,
		Context:     context,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Taxonomy Events
// ═══════════════════════════════════════════════════════════════════════════

// ConceptRegisteredEvent is emitted when a concept is created or updated
// in the taxonomy (manual authoring or AI extraction).
type ConceptRegisteredEvent struct {
	BaseEvent
	ConceptID   string `json:"concept_id"`
	Name        string `json:"name"`
	Subject     string `json:"subject"`
	AIGenerated bool   `json:"ai_generated"`
	Created     bool   `json:"created"` // false when an existing concept was merged into
}

// Payload implements Event interface.
func (e ConceptRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"concept_id":   e.ConceptID,
		"name":         e.Name,
		"subject":      e.Subject,
		"ai_generated": e.AIGenerated,
		"created":      e.Created,
	}
}

// NewConceptRegisteredEvent creates a new ConceptRegisteredEvent.
func NewConceptRegisteredEvent(conceptID, name, subject string, aiGenerated, created bool) ConceptRegisteredEvent {
	return ConceptRegisteredEvent{
		BaseEvent:   NewBaseEvent(EventConceptRegistered, conceptID),
		ConceptID:   conceptID,
		Name:        name,
		Subject:     subject,
		AIGenerated: aiGenerated,
		Created:     created,
	}
}

// RelationshipRegisteredEvent is emitted when an edge is created or its
// metadata refreshed.
type RelationshipRegisteredEvent struct {
	BaseEvent
	RelationshipID string  `json:"relationship_id"`
	SourceID       string  `json:"source_id"`
	TargetID       string  `json:"target_id"`
	Kind           string  `json:"kind"`
	Strength       float64 `json:"strength"`
}

// Payload implements Event interface.
func (e RelationshipRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"relationship_id": e.RelationshipID,
		"source_id":       e.SourceID,
		"target_id":       e.TargetID,
		"kind":            e.Kind,
		"strength":        e.Strength,
	}
}

// NewRelationshipRegisteredEvent creates a new RelationshipRegisteredEvent.
func NewRelationshipRegisteredEvent(relationshipID, sourceID, targetID, kind string, strength float64) RelationshipRegisteredEvent {
	return RelationshipRegisteredEvent{
		BaseEvent:      NewBaseEvent(EventRelationshipRegistered, relationshipID),
		RelationshipID: relationshipID,
		SourceID:       sourceID,
		TargetID:       targetID,
		Kind:           kind,
		Strength:       strength,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
