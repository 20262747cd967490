package services

import (
	"context"

	"github.com/mindcase/mindcase-core/pkg/apperrors"
	"github.com/mindcase/mindcase-core/pkg/models"
	"github.com/mindcase/mindcase-core/pkg/outbox"
)

// RegisterReplayHandlers binds every mutation type to the service call that
// re-runs it. The queue replays the original operation with the payload
// captured at enqueue time.
func RegisterReplayHandlers(queue *outbox.Queue, records RecordService, documents DocumentService) {
	queue.RegisterHandler(models.MutationCreateRecord, func(ctx context.Context, m models.QueuedMutation) error {
		payload, err := models.DecodePayload[models.CreateRecordPayload](m)
		if err != nil {
			return err
		}
		return records.CreateWithRelatedID(ctx, payload.TenantID, payload.RecordID, payload.Draft, payload.Related, payload.ActorID)
	})

	queue.RegisterHandler(models.MutationVerifyField, func(ctx context.Context, m models.QueuedMutation) error {
		payload, err := models.DecodePayload[models.VerifyFieldPayload](m)
		if err != nil {
			return err
		}
		return records.VerifyField(ctx, payload.TenantID, payload.SubjectID, payload.FieldPath, payload.VerifierID, payload.EvidenceRef)
	})

	queue.RegisterHandler(models.MutationUploadDocument, func(ctx context.Context, m models.QueuedMutation) error {
		payload, err := models.DecodePayload[models.UploadDocumentPayload](m)
		if err != nil {
			return err
		}
		_, err = documents.Upload(ctx, payload.TenantID, payload.Filename, payload.Content, payload.Metadata, payload.ActorID)
		if _, isDup := apperrors.IsDuplicate(err); isDup {
			// The first attempt (or another device) already landed these
			// bytes; replaying to a duplicate is success, not failure.
			return nil
		}
		return err
	})
}
