// Package postgres implements the PostgreSQL persistence layer of the
// mastery graph engine.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edubridge/mastery-graph/internal/domain/mastery"
	"github.com/edubridge/mastery-graph/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MASTERY REPOSITORY IMPLEMENTATION
//
// SaveAttempt carries the cross-instance half of the write serialization:
// the update only lands when the stored version still equals the version the
// caller read. A lost race surfaces as ErrPersistenceConflict, which the
// command handler retries with a fresh read.
// ══════════════════════════════════════════════════════════════════════════════

// MasteryRepository implements mastery.Repository for PostgreSQL.
type MasteryRepository struct {
	conn *Connection
}

// NewMasteryRepository creates a new MasteryRepository.
func NewMasteryRepository(conn *Connection) *MasteryRepository {
	return &MasteryRepository{conn: conn}
}

const masteryColumns = `
	id, student_id, concept_id, total_attempts, correct_attempts, incorrect_attempts,
	percent, previous_percent, level, trend, first_assessed, last_assessed,
	history, position_x, position_y, version, created_at, updated_at`

const classMasteryColumns = `
	id, mastery_record_id, student_id, concept_id, class_id, school_year,
	total_attempts, correct_attempts, incorrect_attempts, percent,
	first_assessed, last_assessed, created_at, updated_at`

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

// GetRecord returns the record for the (student, concept) pair.
// Single-statement read: the returned record is one consistent snapshot.
func (r *MasteryRepository) GetRecord(ctx context.Context, studentID, conceptID string) (*mastery.MasteryRecord, error) {
	query := `SELECT ` + masteryColumns + ` FROM mastery_records WHERE student_id = $1 AND concept_id = $2`

	return r.scanRecord(r.conn.QueryRow(ctx, query, studentID, conceptID))
}

// GetClassRecord returns the class-scoped slice.
func (r *MasteryRepository) GetClassRecord(ctx context.Context, studentID, conceptID, classID string) (*mastery.ClassMasteryRecord, error) {
	query := `SELECT ` + classMasteryColumns + ` FROM class_mastery_records
		WHERE student_id = $1 AND concept_id = $2 AND class_id = $3`

	return r.scanClassRecord(r.conn.QueryRow(ctx, query, studentID, conceptID, classID))
}

// ListByStudent returns all records of the student.
func (r *MasteryRepository) ListByStudent(ctx context.Context, studentID string) ([]*mastery.MasteryRecord, error) {
	query := `SELECT ` + masteryColumns + ` FROM mastery_records WHERE student_id = $1 ORDER BY concept_id`

	rows, err := r.conn.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mastery records: %w", err)
	}
	defer rows.Close()

	records := make([]*mastery.MasteryRecord, 0)
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListClassRecords returns the student's class-scoped slices in the class.
func (r *MasteryRepository) ListClassRecords(ctx context.Context, studentID, classID string) ([]*mastery.ClassMasteryRecord, error) {
	query := `SELECT ` + classMasteryColumns + ` FROM class_mastery_records
		WHERE student_id = $1 AND class_id = $2 ORDER BY concept_id`

	rows, err := r.conn.Query(ctx, query, studentID, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to list class mastery records: %w", err)
	}
	defer rows.Close()

	return r.collectClassRecords(rows)
}

// ListConceptTrajectory returns all class slices of the (student, concept)
// pair in first-assessment order: the multi-year trajectory.
func (r *MasteryRepository) ListConceptTrajectory(ctx context.Context, studentID, conceptID string) ([]*mastery.ClassMasteryRecord, error) {
	query := `SELECT ` + classMasteryColumns + ` FROM class_mastery_records
		WHERE student_id = $1 AND concept_id = $2 ORDER BY first_assessed NULLS LAST, id`

	rows, err := r.conn.Query(ctx, query, studentID, conceptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list concept trajectory: %w", err)
	}
	defer rows.Close()

	return r.collectClassRecords(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Writes
// ─────────────────────────────────────────────────────────────────────────────

// SaveAttempt atomically stores the record and its class slice.
// Version 0 inserts; anything else updates with a version guard.
func (r *MasteryRepository) SaveAttempt(ctx context.Context, record *mastery.MasteryRecord, classRecord *mastery.ClassMasteryRecord) error {
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if err := r.saveRecord(ctx, tx, record); err != nil {
			return err
		}
		return r.saveClassRecord(ctx, tx, classRecord)
	})
	if err != nil {
		return err
	}

	// Mirror the stored version so a subsequent save by the same caller
	// passes the guard.
	record.Version++
	return nil
}

func (r *MasteryRepository) saveRecord(ctx context.Context, tx pgx.Tx, record *mastery.MasteryRecord) error {
	historyJSON, err := json.Marshal(record.History)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	var posX, posY *float64
	if record.Position != nil {
		posX, posY = &record.Position.X, &record.Position.Y
	}
	firstAssessed := nullableTime(record.FirstAssessed)
	lastAssessed := nullableTime(record.LastAssessed)

	if record.Version == 0 {
		query := `
			INSERT INTO mastery_records (
				id, student_id, concept_id, total_attempts, correct_attempts,
				incorrect_attempts, percent, previous_percent, level, trend,
				first_assessed, last_assessed, history, position_x, position_y,
				version, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 1, $16, $17)
		`
		_, err := tx.Exec(ctx, query,
			record.ID, record.StudentID, record.ConceptID,
			record.TotalAttempts, record.CorrectAttempts, record.IncorrectAttempts,
			record.Percent, record.PreviousPercent, string(record.Level), string(record.Trend),
			firstAssessed, lastAssessed, historyJSON, posX, posY,
			record.CreatedAt, record.UpdatedAt,
		)
		if err != nil {
			if IsUniqueViolation(err) {
				// Another writer created the record since our read.
				return shared.ErrPersistenceConflict
			}
			return fmt.Errorf("failed to insert mastery record: %w", err)
		}
		return nil
	}

	query := `
		UPDATE mastery_records
		SET total_attempts = $3, correct_attempts = $4, incorrect_attempts = $5,
			percent = $6, previous_percent = $7, level = $8, trend = $9,
			first_assessed = $10, last_assessed = $11, history = $12,
			version = version + 1, updated_at = $13
		WHERE student_id = $1 AND concept_id = $2 AND version = $14
	`
	tag, err := tx.Exec(ctx, query,
		record.StudentID, record.ConceptID,
		record.TotalAttempts, record.CorrectAttempts, record.IncorrectAttempts,
		record.Percent, record.PreviousPercent, string(record.Level), string(record.Trend),
		firstAssessed, lastAssessed, historyJSON,
		record.UpdatedAt, record.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update mastery record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrPersistenceConflict
	}
	return nil
}

func (r *MasteryRepository) saveClassRecord(ctx context.Context, tx pgx.Tx, rec *mastery.ClassMasteryRecord) error {
	// The class slice rides inside the version-guarded transaction,
	// a plain upsert is sufficient.
	query := `
		INSERT INTO class_mastery_records (
			id, mastery_record_id, student_id, concept_id, class_id, school_year,
			total_attempts, correct_attempts, incorrect_attempts, percent,
			first_assessed, last_assessed, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (student_id, concept_id, class_id) DO UPDATE
		SET total_attempts = EXCLUDED.total_attempts,
			correct_attempts = EXCLUDED.correct_attempts,
			incorrect_attempts = EXCLUDED.incorrect_attempts,
			percent = EXCLUDED.percent,
			first_assessed = EXCLUDED.first_assessed,
			last_assessed = EXCLUDED.last_assessed,
			updated_at = EXCLUDED.updated_at
	`
	_, err := tx.Exec(ctx, query,
		rec.ID, rec.MasteryRecordID, rec.StudentID, rec.ConceptID, rec.ClassID, rec.SchoolYear,
		rec.TotalAttempts, rec.CorrectAttempts, rec.IncorrectAttempts, rec.Percent,
		nullableTime(rec.FirstAssessed), nullableTime(rec.LastAssessed),
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert class mastery record: %w", err)
	}
	return nil
}

// SavePosition stores the visualization coordinates of the record.
// Positions are opaque to the engine and bypass counter versioning.
func (r *MasteryRepository) SavePosition(ctx context.Context, studentID, conceptID string, pos mastery.Position) error {
	query := `
		UPDATE mastery_records
		SET position_x = $3, position_y = $4, updated_at = NOW()
		WHERE student_id = $1 AND concept_id = $2
	`

	tag, err := r.conn.Exec(ctx, query, studentID, conceptID, pos.X, pos.Y)
	if err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrMasteryRecordNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func (r *MasteryRepository) scanRecord(row pgx.Row) (*mastery.MasteryRecord, error) {
	var rec mastery.MasteryRecord
	var level, trend string
	var firstAssessed, lastAssessed *time.Time
	var historyJSON []byte
	var posX, posY *float64

	err := row.Scan(
		&rec.ID, &rec.StudentID, &rec.ConceptID,
		&rec.TotalAttempts, &rec.CorrectAttempts, &rec.IncorrectAttempts,
		&rec.Percent, &rec.PreviousPercent, &level, &trend,
		&firstAssessed, &lastAssessed,
		&historyJSON, &posX, &posY,
		&rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrMasteryRecordNotFound
		}
		return nil, fmt.Errorf("failed to scan mastery record: %w", err)
	}

	rec.Level = mastery.Level(level)
	rec.Trend = mastery.Trend(trend)
	if firstAssessed != nil {
		rec.FirstAssessed = *firstAssessed
	}
	if lastAssessed != nil {
		rec.LastAssessed = *lastAssessed
	}
	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &rec.History); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history: %w", err)
		}
	}
	if posX != nil && posY != nil {
		rec.Position = &mastery.Position{X: *posX, Y: *posY}
	}
	return &rec, nil
}

func (r *MasteryRepository) scanClassRecord(row pgx.Row) (*mastery.ClassMasteryRecord, error) {
	var rec mastery.ClassMasteryRecord
	var firstAssessed, lastAssessed *time.Time

	err := row.Scan(
		&rec.ID, &rec.MasteryRecordID, &rec.StudentID, &rec.ConceptID,
		&rec.ClassID, &rec.SchoolYear,
		&rec.TotalAttempts, &rec.CorrectAttempts, &rec.IncorrectAttempts, &rec.Percent,
		&firstAssessed, &lastAssessed,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrMasteryRecordNotFound
		}
		return nil, fmt.Errorf("failed to scan class mastery record: %w", err)
	}

	if firstAssessed != nil {
		rec.FirstAssessed = *firstAssessed
	}
	if lastAssessed != nil {
		rec.LastAssessed = *lastAssessed
	}
	return &rec, nil
}

func (r *MasteryRepository) collectClassRecords(rows pgx.Rows) ([]*mastery.ClassMasteryRecord, error) {
	records := make([]*mastery.ClassMasteryRecord, 0)
	for rows.Next() {
		rec, err := r.scanClassRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

var _ mastery.Repository = (*MasteryRepository)(nil)
