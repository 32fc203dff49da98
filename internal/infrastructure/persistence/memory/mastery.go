package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/edubridge/mastery-graph/internal/domain/mastery"
	"github.com/edubridge/mastery-graph/internal/domain/shared"
)

// MasteryRepository is an in-memory mastery.Repository.
//
// SaveAttempt carries the same optimistic version check as the postgres
// repository: a record whose stored version no longer matches the version
// the caller read fails with ErrPersistenceConflict. Reads copy records
// under the lock, so a reader never observes a half-applied update.
type MasteryRepository struct {
	mu sync.RWMutex

	// records keyed by studentID + "/" + conceptID.
	records map[string]*mastery.MasteryRecord

	// classRecords keyed by studentID + "/" + conceptID + "/" + classID.
	classRecords map[string]*mastery.ClassMasteryRecord
}

// NewMasteryRepository creates an empty in-memory ledger.
func NewMasteryRepository() *MasteryRepository {
	return &MasteryRepository{
		records:      make(map[string]*mastery.MasteryRecord),
		classRecords: make(map[string]*mastery.ClassMasteryRecord),
	}
}

func recordKey(studentID, conceptID string) string {
	return studentID + "/" + conceptID
}

func classKey(studentID, conceptID, classID string) string {
	return studentID + "/" + conceptID + "/" + classID
}

// GetRecord implements mastery.Repository.
func (r *MasteryRepository) GetRecord(_ context.Context, studentID, conceptID string) (*mastery.MasteryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[recordKey(studentID, conceptID)]
	if !ok {
		return nil, shared.ErrMasteryRecordNotFound
	}
	return cloneRecord(rec), nil
}

// GetClassRecord implements mastery.Repository.
func (r *MasteryRepository) GetClassRecord(_ context.Context, studentID, conceptID, classID string) (*mastery.ClassMasteryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.classRecords[classKey(studentID, conceptID, classID)]
	if !ok {
		return nil, shared.ErrMasteryRecordNotFound
	}
	clone := *rec
	return &clone, nil
}

// SaveAttempt implements mastery.Repository. The record and its class slice
// are stored together; on a version conflict nothing is written.
func (r *MasteryRepository) SaveAttempt(_ context.Context, record *mastery.MasteryRecord, classRecord *mastery.ClassMasteryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := recordKey(record.StudentID, record.ConceptID)
	if existing, ok := r.records[key]; ok {
		if existing.Version != record.Version {
			return shared.ErrPersistenceConflict
		}
	} else if record.Version != 0 {
		return shared.ErrPersistenceConflict
	}

	stored := cloneRecord(record)
	stored.Version++
	record.Version = stored.Version
	r.records[key] = stored

	classClone := *classRecord
	r.classRecords[classKey(classRecord.StudentID, classRecord.ConceptID, classRecord.ClassID)] = &classClone
	return nil
}

// ListByStudent implements mastery.Repository.
func (r *MasteryRepository) ListByStudent(_ context.Context, studentID string) ([]*mastery.MasteryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*mastery.MasteryRecord, 0)
	for _, rec := range r.records {
		if rec.StudentID == studentID {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConceptID < out[j].ConceptID })
	return out, nil
}

// ListClassRecords implements mastery.Repository.
func (r *MasteryRepository) ListClassRecords(_ context.Context, studentID, classID string) ([]*mastery.ClassMasteryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*mastery.ClassMasteryRecord, 0)
	for _, rec := range r.classRecords {
		if rec.StudentID == studentID && rec.ClassID == classID {
			clone := *rec
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConceptID < out[j].ConceptID })
	return out, nil
}

// ListConceptTrajectory implements mastery.Repository.
// Slices are ordered by first assessment: the multi-year trajectory.
func (r *MasteryRepository) ListConceptTrajectory(_ context.Context, studentID, conceptID string) ([]*mastery.ClassMasteryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*mastery.ClassMasteryRecord, 0)
	for _, rec := range r.classRecords {
		if rec.StudentID == studentID && rec.ConceptID == conceptID {
			clone := *rec
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstAssessed.Before(out[j].FirstAssessed) })
	return out, nil
}

// SavePosition implements mastery.Repository. The position does not
// participate in counter versioning.
func (r *MasteryRepository) SavePosition(_ context.Context, studentID, conceptID string, pos mastery.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[recordKey(studentID, conceptID)]
	if !ok {
		return shared.ErrMasteryRecordNotFound
	}
	p := pos
	rec.Position = &p
	return nil
}

func cloneRecord(rec *mastery.MasteryRecord) *mastery.MasteryRecord {
	clone := *rec
	clone.History = append([]mastery.HistoryEntry(nil), rec.History...)
	if rec.Position != nil {
		p := *rec.Position
		clone.Position = &p
	}
	return &clone
}

var _ mastery.Repository = (*MasteryRepository)(nil)
