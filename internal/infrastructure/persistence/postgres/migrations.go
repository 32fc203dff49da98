// Package postgres implements the PostgreSQL persistence layer of the
// mastery graph engine.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE TAXONOMY
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create concept taxonomy tables
-- Version: 001

-- Academic concepts. Canonical name is unique case-insensitively.
CREATE TABLE IF NOT EXISTS concepts (
    id UUID PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    subject VARCHAR(100) NOT NULL,
    grade_band VARCHAR(20) NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    aliases TEXT[] NOT NULL DEFAULT '{}',
    difficulty DOUBLE PRECISION NOT NULL DEFAULT 0,
    provenance VARCHAR(10) NOT NULL DEFAULT 'human',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_provenance CHECK (provenance IN ('human', 'ai')),
    CONSTRAINT valid_difficulty CHECK (difficulty >= 0 AND difficulty <= 1)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_concepts_name_ci ON concepts(LOWER(name));
CREATE INDEX IF NOT EXISTS idx_concepts_subject ON concepts(subject);
-- Alias lookup. Ambiguity resolves to the earliest created concept,
-- hence the (created_at, id) ordering in queries.
CREATE INDEX IF NOT EXISTS idx_concepts_aliases ON concepts USING GIN (aliases);

-- Directed typed edges. One edge per (source, target, kind) triple.
CREATE TABLE IF NOT EXISTS concept_relationships (
    id UUID PRIMARY KEY,
    source_id UUID NOT NULL REFERENCES concepts(id) ON DELETE CASCADE,
    target_id UUID NOT NULL REFERENCES concepts(id) ON DELETE CASCADE,
    kind VARCHAR(20) NOT NULL,
    strength DOUBLE PRECISION NOT NULL DEFAULT 0,
    confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
    reasoning TEXT NOT NULL DEFAULT '',
    provenance VARCHAR(10) NOT NULL DEFAULT 'human',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT no_self_edges CHECK (source_id <> target_id),
    CONSTRAINT valid_kind CHECK (kind IN ('prerequisite', 'builds_upon', 'applied_in', 'related')),
    CONSTRAINT valid_strength CHECK (strength >= 0 AND strength <= 1),
    CONSTRAINT valid_confidence CHECK (confidence >= 0 AND confidence <= 1),
    CONSTRAINT unique_edge UNIQUE (source_id, target_id, kind)
);

-- Traversal order at each level is edge creation order.
CREATE INDEX IF NOT EXISTS idx_relationships_target_kind ON concept_relationships(target_id, kind, created_at);
CREATE INDEX IF NOT EXISTS idx_relationships_source_kind ON concept_relationships(source_id, kind, created_at);
`

const migration001Down = `
DROP TABLE IF EXISTS concept_relationships;
DROP TABLE IF EXISTS concepts;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE MASTERY LEDGER
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create mastery ledger tables
-- Version: 002

-- Lifetime record per (student, concept). The version column carries the
-- optimistic concurrency check of the single write path.
CREATE TABLE IF NOT EXISTS mastery_records (
    id UUID PRIMARY KEY,
    student_id VARCHAR(100) NOT NULL,
    concept_id UUID NOT NULL REFERENCES concepts(id) ON DELETE CASCADE,
    total_attempts INTEGER NOT NULL DEFAULT 0,
    correct_attempts INTEGER NOT NULL DEFAULT 0,
    incorrect_attempts INTEGER NOT NULL DEFAULT 0,
    percent INTEGER NOT NULL DEFAULT 0,
    previous_percent INTEGER NOT NULL DEFAULT 0,
    level VARCHAR(20) NOT NULL DEFAULT 'not_started',
    trend VARCHAR(20) NOT NULL DEFAULT 'stable',
    first_assessed TIMESTAMP WITH TIME ZONE,
    last_assessed TIMESTAMP WITH TIME ZONE,
    history JSONB NOT NULL DEFAULT '[]'::jsonb,
    position_x DOUBLE PRECISION,
    position_y DOUBLE PRECISION,
    version BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT unique_student_concept UNIQUE (student_id, concept_id),
    CONSTRAINT counters_add_up CHECK (correct_attempts + incorrect_attempts = total_attempts),
    CONSTRAINT valid_percent CHECK (percent >= 0 AND percent <= 100)
);

CREATE INDEX IF NOT EXISTS idx_mastery_student ON mastery_records(student_id);
CREATE INDEX IF NOT EXISTS idx_mastery_concept ON mastery_records(concept_id);

-- Class-scoped slice per (student, concept, class).
CREATE TABLE IF NOT EXISTS class_mastery_records (
    id UUID PRIMARY KEY,
    mastery_record_id UUID NOT NULL REFERENCES mastery_records(id) ON DELETE CASCADE,
    student_id VARCHAR(100) NOT NULL,
    concept_id UUID NOT NULL REFERENCES concepts(id) ON DELETE CASCADE,
    class_id VARCHAR(100) NOT NULL,
    school_year VARCHAR(20) NOT NULL DEFAULT '',
    total_attempts INTEGER NOT NULL DEFAULT 0,
    correct_attempts INTEGER NOT NULL DEFAULT 0,
    incorrect_attempts INTEGER NOT NULL DEFAULT 0,
    percent INTEGER NOT NULL DEFAULT 0,
    first_assessed TIMESTAMP WITH TIME ZONE,
    last_assessed TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT unique_student_concept_class UNIQUE (student_id, concept_id, class_id),
    CONSTRAINT class_counters_add_up CHECK (correct_attempts + incorrect_attempts = total_attempts)
);

CREATE INDEX IF NOT EXISTS idx_class_mastery_student_class ON class_mastery_records(student_id, class_id);
CREATE INDEX IF NOT EXISTS idx_class_mastery_trajectory ON class_mastery_records(student_id, concept_id, first_assessed);
`

const migration002Down = `
DROP TABLE IF EXISTS class_mastery_records;
DROP TABLE IF EXISTS mastery_records;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE JOURNEYS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create learning journey tables
-- Version: 003

-- One journey per student, created lazily on the first milestone.
CREATE TABLE IF NOT EXISTS learning_journeys (
    id UUID PRIMARY KEY,
    student_id VARCHAR(100) NOT NULL UNIQUE,
    predicted_struggles TEXT[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

-- Immutable threshold-crossing records. The unique constraint is a
-- defensive second line behind the serialized detection in the write path;
-- a violation is treated as "already recorded".
CREATE TABLE IF NOT EXISTS milestones (
    id UUID PRIMARY KEY,
    journey_id UUID NOT NULL REFERENCES learning_journeys(id) ON DELETE CASCADE,
    student_id VARCHAR(100) NOT NULL,
    concept_id UUID NOT NULL REFERENCES concepts(id) ON DELETE CASCADE,
    class_id VARCHAR(100) NOT NULL DEFAULT '',
    kind VARCHAR(30) NOT NULL,
    context TEXT NOT NULL DEFAULT '',
    percent INTEGER NOT NULL DEFAULT 0,
    achieved_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_milestone_kind CHECK (kind IN ('first_introduced', 'mastered')),
    CONSTRAINT unique_milestone UNIQUE (journey_id, concept_id, kind)
);

CREATE INDEX IF NOT EXISTS idx_milestones_journey ON milestones(journey_id, achieved_at);
CREATE INDEX IF NOT EXISTS idx_milestones_student ON milestones(student_id);
`

const migration003Down = `
DROP TABLE IF EXISTS milestones;
DROP TABLE IF EXISTS learning_journeys;
`
