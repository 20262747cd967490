// Package services implements the consistency layer's use cases: record
// creation with provenance, field verification, and content-deduplicated
// document upload.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindcase/mindcase-core/pkg/apperrors"
	"github.com/mindcase/mindcase-core/pkg/fieldpath"
	"github.com/mindcase/mindcase-core/pkg/metrics"
	"github.com/mindcase/mindcase-core/pkg/models"
	"github.com/mindcase/mindcase-core/pkg/regions"
	"github.com/mindcase/mindcase-core/pkg/trust"
)

// RecordService creates subject records and drives field verification.
type RecordService interface {
	// CreateWithRelated atomically creates a subject record, its related
	// entities, and the initial verification tasks, returning the new id.
	CreateWithRelated(ctx context.Context, tenantID string, draft models.SubjectDraft, related []models.RelatedDraft, actorID string) (uuid.UUID, error)

	// CreateWithRelatedID is CreateWithRelated with a caller-pinned record
	// id, so queue replays recreate the exact record the UI already shows.
	CreateWithRelatedID(ctx context.Context, tenantID string, recordID uuid.UUID, draft models.SubjectDraft, related []models.RelatedDraft, actorID string) error

	// VerifyField marks one provenance field verified and recomputes the
	// record's trust and completeness scores in a read-modify-write
	// transaction. evidenceRef, when non-empty, lands in the field's
	// sourceId.
	VerifyField(ctx context.Context, tenantID string, subjectID uuid.UUID, fieldPath, verifierID, evidenceRef string) error

	// GetRecord fetches a record from the tenant's regional store.
	GetRecord(ctx context.Context, tenantID string, subjectID uuid.UUID) (*models.SubjectRecord, error)
}

type recordService struct {
	stores  regions.HandleResolver
	trust   *trust.Engine
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewRecordService builds a RecordService. metrics may be nil.
func NewRecordService(stores regions.HandleResolver, engine *trust.Engine, m *metrics.Metrics, logger *zap.Logger) RecordService {
	return &recordService{
		stores:  stores,
		trust:   engine,
		metrics: m,
		logger:  logger.Named("record-service"),
	}
}

var _ RecordService = (*recordService)(nil)

func (s *recordService) CreateWithRelated(ctx context.Context, tenantID string, draft models.SubjectDraft, related []models.RelatedDraft, actorID string) (uuid.UUID, error) {
	id := uuid.New()
	if err := s.CreateWithRelatedID(ctx, tenantID, id, draft, related, actorID); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (s *recordService) CreateWithRelatedID(ctx context.Context, tenantID string, recordID uuid.UUID, draft models.SubjectDraft, related []models.RelatedDraft, actorID string) error {
	if draft.RecordType == "" {
		return &apperrors.ValidationError{Field: "recordType", Reason: "draft must carry a record type"}
	}
	for _, rd := range related {
		if rd.Kind == "" {
			return &apperrors.ValidationError{Field: "related.kind", Reason: "related entity draft must carry a kind"}
		}
	}

	handle, err := s.stores.ForTenant(tenantID)
	if err != nil {
		return err
	}

	now := time.Now()
	record := &models.SubjectRecord{
		ID:         recordID,
		TenantID:   tenantID,
		Identity:   draft.Identity.Clone(),
		Education:  draft.Education.Clone(),
		Family:     draft.Family.Clone(),
		Health:     draft.Health.Clone(),
		Extensions: draft.Extensions.Clone(),
		Meta: models.RecordMeta{
			CreatedAt:    now,
			CreatedBy:    actorID,
			UpdatedAt:    now,
			UpdatedBy:    actorID,
			PrivacyLevel: models.PrivacyStandard,
		},
	}
	record.Meta.TrustScore = s.trust.Score(record)
	record.Meta.CompletenessScore = s.trust.Completeness(record)

	entities := make([]models.RelatedEntity, 0, len(related))
	for _, rd := range related {
		entities = append(entities, models.RelatedEntity{
			ID:                     uuid.New(),
			SubjectID:              record.ID,
			TenantID:               tenantID,
			Kind:                   rd.Kind,
			Fields:                 rd.Fields.Clone(),
			HasLegalResponsibility: rd.HasLegalResponsibility,
			CreatedAt:              now,
		})
	}

	tasks := s.trust.GenerateInitialTasks(record, entities)

	if err := handle.Records.CreateWithRelated(ctx, record, entities, tasks); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.TrustScoreComputed.Observe(float64(record.Meta.TrustScore))
	}
	s.logger.Info("subject record created",
		zap.String("record_id", record.ID.String()),
		zap.String("tenant_id", tenantID),
		zap.String("region", handle.Region),
		zap.Int("trust_score", record.Meta.TrustScore),
		zap.Int("related_entities", len(entities)),
		zap.Int("verification_tasks", len(tasks)))
	return nil
}

// verifyRetries bounds re-attempts after an optimistic concurrency conflict:
// one re-read and re-apply, per the store contract that the earlier loser is
// retried rather than merged.
const verifyRetries = 1

func (s *recordService) VerifyField(ctx context.Context, tenantID string, subjectID uuid.UUID, path, verifierID, evidenceRef string) error {
	handle, err := s.stores.ForTenant(tenantID)
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		record, err := handle.Records.GetRecord(ctx, tenantID, subjectID)
		if err != nil {
			return err
		}

		now := time.Now()
		err = fieldpath.Update(record, path, func(field models.Field) models.Field {
			field.Metadata.Verified = true
			field.Metadata.VerifiedBy = verifierID
			field.Metadata.VerifiedAt = &now
			if evidenceRef != "" {
				field.Metadata.SourceID = evidenceRef
			}
			return field
		})
		if err != nil {
			return err
		}

		record.Meta.TrustScore = s.trust.Score(record)
		record.Meta.CompletenessScore = s.trust.Completeness(record)
		record.Meta.UpdatedAt = now
		record.Meta.UpdatedBy = verifierID

		err = handle.Records.UpdateRecord(ctx, record)
		if err == nil {
			if s.metrics != nil {
				s.metrics.TrustScoreComputed.Observe(float64(record.Meta.TrustScore))
			}
			s.logger.Info("field verified",
				zap.String("record_id", subjectID.String()),
				zap.String("tenant_id", tenantID),
				zap.String("field_path", path),
				zap.String("verifier_id", verifierID),
				zap.Int("trust_score", record.Meta.TrustScore))
			return nil
		}
		if errors.Is(err, apperrors.ErrConflict) && attempt < verifyRetries {
			s.logger.Debug("verify lost concurrency race, retrying",
				zap.String("record_id", subjectID.String()),
				zap.String("field_path", path))
			continue
		}
		return err
	}
}

func (s *recordService) GetRecord(ctx context.Context, tenantID string, subjectID uuid.UUID) (*models.SubjectRecord, error) {
	handle, err := s.stores.ForTenant(tenantID)
	if err != nil {
		return nil, err
	}
	return handle.Records.GetRecord(ctx, tenantID, subjectID)
}
