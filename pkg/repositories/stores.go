// Package repositories provides data access for subject records, related
// entities, verification tasks, and document records. Stores are
// interface-driven so services can run against the in-memory implementation
// in tests and against Postgres in a regional deployment.
package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/mindcase/mindcase-core/pkg/models"
)

// RecordStore is the per-region store for subject records and their
// sub-entities.
type RecordStore interface {
	// CreateWithRelated writes the primary record, its related entities, and
	// its initial verification tasks as one all-or-nothing unit. Any failure
	// leaves no partial record visible.
	CreateWithRelated(ctx context.Context, record *models.SubjectRecord, related []models.RelatedEntity, tasks []models.VerificationTask) error

	// GetRecord returns the record by id within the tenant, including its
	// current concurrency version. apperrors.ErrNotFound when absent.
	GetRecord(ctx context.Context, tenantID string, id uuid.UUID) (*models.SubjectRecord, error)

	// UpdateRecord writes the record back under optimistic concurrency: the
	// commit succeeds only if the stored version still equals record.Version.
	// apperrors.ErrConflict signals a lost race; the caller re-reads and
	// retries. On success record.Version is advanced.
	UpdateRecord(ctx context.Context, record *models.SubjectRecord) error

	// ListRelated returns the sub-entities attached to a subject.
	ListRelated(ctx context.Context, tenantID string, subjectID uuid.UUID) ([]models.RelatedEntity, error)

	// ListTasks returns the verification tasks for a subject.
	ListTasks(ctx context.Context, tenantID string, subjectID uuid.UUID) ([]models.VerificationTask, error)
}

// DocumentStore is the per-region store for uploaded document records.
type DocumentStore interface {
	// FindByHash returns the non-errored document with the given content
	// hash within the tenant, or apperrors.ErrNotFound. Errored uploads are
	// excluded so a failed upload never blocks a retry of the same bytes.
	FindByHash(ctx context.Context, tenantID, hash string) (*models.DocumentRecord, error)

	// CreateDocument persists a new document record.
	CreateDocument(ctx context.Context, doc *models.DocumentRecord) error

	// UpdateDocumentStatus moves a document through its upload lifecycle.
	UpdateDocumentStatus(ctx context.Context, tenantID string, id uuid.UUID, status models.DocumentStatus) error
}
