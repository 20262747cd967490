package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/mindcase/mindcase-core/pkg/apperrors"
	"github.com/mindcase/mindcase-core/pkg/metrics"
	"github.com/mindcase/mindcase-core/pkg/models"
	"github.com/mindcase/mindcase-core/pkg/regions"
)

// ComputeHash returns the SHA-256 hex digest of content. Always hash the
// original bytes, before any recompression or transform, so dedup detection
// stays transform-invariant.
func ComputeHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// BlobStore is the byte sink documents are uploaded to (object storage,
// shared filesystem). External to this layer.
type BlobStore interface {
	Put(ctx context.Context, path string, content []byte) error
}

// DocumentService deduplicates and uploads documents.
type DocumentService interface {
	// Upload stores content under the tenant after the dedup check. Returns
	// a DuplicateError carrying the existing document id when byte-identical
	// content is already on file.
	Upload(ctx context.Context, tenantID, filename string, content []byte, metadata map[string]string, actorID string) (*models.DocumentRecord, error)

	// CheckDuplicate runs only the dedup check. Nil means no duplicate.
	CheckDuplicate(ctx context.Context, tenantID string, content []byte) error
}

type documentService struct {
	stores  regions.HandleResolver
	blobs   BlobStore
	hashSem *semaphore.Weighted
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// defaultHashConcurrency bounds concurrent SHA-256 runs so a bulk import
// cannot starve the interactive path.
const defaultHashConcurrency = 4

// NewDocumentService builds a DocumentService. metrics may be nil.
func NewDocumentService(stores regions.HandleResolver, blobs BlobStore, m *metrics.Metrics, logger *zap.Logger) DocumentService {
	return &documentService{
		stores:  stores,
		blobs:   blobs,
		hashSem: semaphore.NewWeighted(defaultHashConcurrency),
		metrics: m,
		logger:  logger.Named("document-service"),
	}
}

var _ DocumentService = (*documentService)(nil)

// hash computes the content hash under the concurrency bound.
func (s *documentService) hash(ctx context.Context, content []byte) (string, error) {
	if err := s.hashSem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer s.hashSem.Release(1)
	return ComputeHash(content), nil
}

// findExisting returns the non-errored document already holding this hash,
// or nil. There is no lock between this check and the subsequent write; two
// concurrent identical uploads can race past it, and the store's unique
// index decides the winner.
func (s *documentService) findExisting(ctx context.Context, handle *regions.StoreHandle, tenantID, contentHash string) (*models.DocumentRecord, error) {
	existing, err := handle.Documents.FindByHash(ctx, tenantID, contentHash)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *documentService) CheckDuplicate(ctx context.Context, tenantID string, content []byte) error {
	handle, err := s.stores.ForTenant(tenantID)
	if err != nil {
		return err
	}
	contentHash, err := s.hash(ctx, content)
	if err != nil {
		return err
	}
	existing, err := s.findExisting(ctx, handle, tenantID, contentHash)
	if err != nil {
		return err
	}
	if existing != nil {
		if s.metrics != nil {
			s.metrics.DuplicatesRejected.Inc()
		}
		return &apperrors.DuplicateError{ExistingID: existing.ID.String(), Hash: contentHash}
	}
	return nil
}

func (s *documentService) Upload(ctx context.Context, tenantID, filename string, content []byte, metadata map[string]string, actorID string) (*models.DocumentRecord, error) {
	handle, err := s.stores.ForTenant(tenantID)
	if err != nil {
		return nil, err
	}

	contentHash, err := s.hash(ctx, content)
	if err != nil {
		return nil, err
	}

	existing, err := s.findExisting(ctx, handle, tenantID, contentHash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if s.metrics != nil {
			s.metrics.DuplicatesRejected.Inc()
		}
		s.logger.Info("duplicate upload rejected",
			zap.String("tenant_id", tenantID),
			zap.String("hash", contentHash),
			zap.String("existing_id", existing.ID.String()))
		return nil, &apperrors.DuplicateError{ExistingID: existing.ID.String(), Hash: contentHash}
	}

	doc := &models.DocumentRecord{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Hash:        contentHash,
		StoragePath: fmt.Sprintf("%s/%s/%s", tenantID, contentHash, filename),
		Status:      models.DocumentUploading,
		Metadata:    metadata,
		CreatedAt:   time.Now(),
	}
	if err := handle.Documents.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	if err := s.blobs.Put(ctx, doc.StoragePath, content); err != nil {
		// Mark the record errored so the hash is freed for a retry; a
		// failure here leaves the record in uploading state, which still
		// blocks the hash until an operator intervenes.
		if statusErr := handle.Documents.UpdateDocumentStatus(ctx, tenantID, doc.ID, models.DocumentError); statusErr != nil {
			s.logger.Error("failed to mark document errored after blob failure",
				zap.String("document_id", doc.ID.String()),
				zap.Error(statusErr))
		}
		doc.Status = models.DocumentError
		return nil, apperrors.Transient("upload blob", err)
	}

	if err := handle.Documents.UpdateDocumentStatus(ctx, tenantID, doc.ID, models.DocumentReady); err != nil {
		return nil, err
	}
	doc.Status = models.DocumentReady

	s.logger.Info("document uploaded",
		zap.String("document_id", doc.ID.String()),
		zap.String("tenant_id", tenantID),
		zap.String("actor_id", actorID),
		zap.String("hash", contentHash),
		zap.Int("bytes", len(content)))
	return doc, nil
}
