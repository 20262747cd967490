package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindcase/mindcase-core/pkg/apperrors"
	"github.com/mindcase/mindcase-core/pkg/models"
)

// MemoryStore implements RecordStore and DocumentStore in process memory.
// It backs unit tests and the offline-first client mode, where the regional
// Postgres store is reached only through the sync engine.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[uuid.UUID]models.SubjectRecord
	related   map[uuid.UUID][]models.RelatedEntity
	tasks     map[uuid.UUID][]models.VerificationTask
	documents map[uuid.UUID]models.DocumentRecord
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[uuid.UUID]models.SubjectRecord),
		related:   make(map[uuid.UUID][]models.RelatedEntity),
		tasks:     make(map[uuid.UUID][]models.VerificationTask),
		documents: make(map[uuid.UUID]models.DocumentRecord),
	}
}

var (
	_ RecordStore   = (*MemoryStore)(nil)
	_ DocumentStore = (*MemoryStore)(nil)
)

func (s *MemoryStore) CreateWithRelated(_ context.Context, record *models.SubjectRecord, related []models.RelatedEntity, tasks []models.VerificationTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; exists {
		// Replaying a create that already committed is a success, not a
		// duplicate: the queue may re-run a mutation whose first attempt
		// committed but whose acknowledgement was lost.
		return nil
	}

	record.Version = 1
	s.records[record.ID] = cloneRecord(*record)
	s.related[record.ID] = append([]models.RelatedEntity(nil), related...)
	s.tasks[record.ID] = append([]models.VerificationTask(nil), tasks...)
	return nil
}

func (s *MemoryStore) GetRecord(_ context.Context, tenantID string, id uuid.UUID) (*models.SubjectRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok || record.TenantID != tenantID {
		return nil, apperrors.ErrNotFound
	}
	out := cloneRecord(record)
	return &out, nil
}

func (s *MemoryStore) UpdateRecord(_ context.Context, record *models.SubjectRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[record.ID]
	if !ok || current.TenantID != record.TenantID {
		return apperrors.ErrNotFound
	}
	if current.Version != record.Version {
		return apperrors.ErrConflict
	}
	record.Version++
	s.records[record.ID] = cloneRecord(*record)
	return nil
}

func (s *MemoryStore) ListRelated(_ context.Context, tenantID string, subjectID uuid.UUID) ([]models.RelatedEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[subjectID]
	if !ok || record.TenantID != tenantID {
		return nil, apperrors.ErrNotFound
	}
	return append([]models.RelatedEntity(nil), s.related[subjectID]...), nil
}

func (s *MemoryStore) ListTasks(_ context.Context, tenantID string, subjectID uuid.UUID) ([]models.VerificationTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[subjectID]
	if !ok || record.TenantID != tenantID {
		return nil, apperrors.ErrNotFound
	}
	return append([]models.VerificationTask(nil), s.tasks[subjectID]...), nil
}

func (s *MemoryStore) FindByHash(_ context.Context, tenantID, hash string) (*models.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.documents {
		if doc.TenantID == tenantID && doc.Hash == hash && doc.Status != models.DocumentError {
			out := doc
			return &out, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (s *MemoryStore) CreateDocument(_ context.Context, doc *models.DocumentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	s.documents[doc.ID] = *doc
	return nil
}

func (s *MemoryStore) UpdateDocumentStatus(_ context.Context, tenantID string, id uuid.UUID, status models.DocumentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok || doc.TenantID != tenantID {
		return apperrors.ErrNotFound
	}
	doc.Status = status
	s.documents[id] = doc
	return nil
}

// cloneRecord deep-copies the section maps so callers can mutate the result
// without touching stored state.
func cloneRecord(record models.SubjectRecord) models.SubjectRecord {
	record.Identity = record.Identity.Clone()
	record.Education = record.Education.Clone()
	record.Family = record.Family.Clone()
	record.Health = record.Health.Clone()
	record.Extensions = record.Extensions.Clone()
	return record
}
