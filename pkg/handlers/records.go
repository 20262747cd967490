package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindcase/mindcase-core/pkg/auth"
	"github.com/mindcase/mindcase-core/pkg/models"
	"github.com/mindcase/mindcase-core/pkg/services"
	"github.com/mindcase/mindcase-core/pkg/syncengine"
)

// RecordHandler handles subject record HTTP requests.
type RecordHandler struct {
	records services.RecordService
	sync    *syncengine.Engine
	actors  auth.ActorProvider
	logger  *zap.Logger
}

// NewRecordHandler creates a new record handler.
func NewRecordHandler(records services.RecordService, sync *syncengine.Engine, actors auth.ActorProvider, logger *zap.Logger) *RecordHandler {
	return &RecordHandler{
		records: records,
		sync:    sync,
		actors:  actors,
		logger:  logger,
	}
}

// RegisterRoutes registers the record handler's routes on the given mux.
func (h *RecordHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/tenants/{tenant}/records"
	mux.HandleFunc("POST "+base, withBearerToken(h.CreateRecord))
	mux.HandleFunc("GET "+base+"/{id}", withBearerToken(h.GetRecord))
	mux.HandleFunc("POST "+base+"/{id}/verify", withBearerToken(h.VerifyField))
}

type createRecordRequest struct {
	Draft   models.SubjectDraft   `json:"draft"`
	Related []models.RelatedDraft `json:"related,omitempty"`
}

type createRecordResponse struct {
	ID         uuid.UUID         `json:"id"`
	SyncStatus syncengine.Status `json:"syncStatus"`
}

// CreateRecord handles POST /api/tenants/{tenant}/records.
//
// The response carries the record id immediately: while offline the create
// is queued and the id is the one a later replay will commit.
func (h *RecordHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")
	actorID, ok := resolveActor(w, r, h.actors, h.logger)
	if !ok {
		return
	}

	var req createRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	recordID := uuid.New()
	err := h.sync.Do(r.Context(), syncengine.Action{
		TenantID: tenantID,
		Apply: func(ctx context.Context) error {
			return h.records.CreateWithRelatedID(ctx, tenantID, recordID, req.Draft, req.Related, actorID)
		},
		Mutation: func() (models.QueuedMutation, error) {
			return models.NewMutation(models.MutationCreateRecord, models.CreateRecordPayload{
				TenantID: tenantID,
				Draft:    req.Draft,
				Related:  req.Related,
				ActorID:  actorID,
				RecordID: recordID,
			})
		},
	})
	if err != nil {
		if err := writeDomainError(w, err); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusAccepted, createRecordResponse{
		ID:         recordID,
		SyncStatus: h.sync.Status(),
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetRecord handles GET /api/tenants/{tenant}/records/{id}.
func (h *RecordHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")
	if _, ok := resolveActor(w, r, h.actors, h.logger); !ok {
		return
	}

	recordID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_record_id", "Invalid record ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	record, err := h.records.GetRecord(r.Context(), tenantID, recordID)
	if err != nil {
		if err := writeDomainError(w, err); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, record); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

type verifyFieldRequest struct {
	FieldPath   string `json:"fieldPath"`
	EvidenceRef string `json:"evidenceRef,omitempty"`
}

// VerifyField handles POST /api/tenants/{tenant}/records/{id}/verify.
func (h *RecordHandler) VerifyField(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")
	actorID, ok := resolveActor(w, r, h.actors, h.logger)
	if !ok {
		return
	}

	recordID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_record_id", "Invalid record ID format"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var req verifyFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FieldPath == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Request must carry a fieldPath"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	err = h.sync.Do(r.Context(), syncengine.Action{
		TenantID: tenantID,
		Apply: func(ctx context.Context) error {
			return h.records.VerifyField(ctx, tenantID, recordID, req.FieldPath, actorID, req.EvidenceRef)
		},
		Mutation: func() (models.QueuedMutation, error) {
			return models.NewMutation(models.MutationVerifyField, models.VerifyFieldPayload{
				TenantID:    tenantID,
				SubjectID:   recordID,
				FieldPath:   req.FieldPath,
				VerifierID:  actorID,
				EvidenceRef: req.EvidenceRef,
			})
		},
	})
	if err != nil {
		if err := writeDomainError(w, err); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusAccepted, map[string]any{
		"syncStatus": h.sync.Status(),
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
