package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/mindcase/mindcase-core/pkg/auth"
	"github.com/mindcase/mindcase-core/pkg/models"
	"github.com/mindcase/mindcase-core/pkg/services"
	"github.com/mindcase/mindcase-core/pkg/syncengine"
)

// DocumentHandler handles document upload HTTP requests.
type DocumentHandler struct {
	documents services.DocumentService
	sync      *syncengine.Engine
	actors    auth.ActorProvider
	logger    *zap.Logger
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(documents services.DocumentService, sync *syncengine.Engine, actors auth.ActorProvider, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		sync:      sync,
		actors:    actors,
		logger:    logger,
	}
}

// RegisterRoutes registers the document handler's routes on the given mux.
func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/tenants/{tenant}/documents", withBearerToken(h.UploadDocument))
	mux.HandleFunc("POST /api/tenants/{tenant}/documents/check", withBearerToken(h.CheckDocument))
}

type uploadDocumentRequest struct {
	Filename string            `json:"filename"`
	Content  []byte            `json:"content"` // base64 over the wire
	Metadata map[string]string `json:"metadata,omitempty"`
}

// UploadDocument handles POST /api/tenants/{tenant}/documents.
//
// Duplicates are rejected synchronously with 409 and the existing document
// id; they are never queued for replay.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")
	actorID, ok := resolveActor(w, r, h.actors, h.logger)
	if !ok {
		return
	}

	var req uploadDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Filename == "" || len(req.Content) == 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Request must carry a filename and content"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var doc *models.DocumentRecord
	err := h.sync.Do(r.Context(), syncengine.Action{
		TenantID: tenantID,
		Apply: func(ctx context.Context) error {
			uploaded, err := h.documents.Upload(ctx, tenantID, req.Filename, req.Content, req.Metadata, actorID)
			if err != nil {
				return err
			}
			doc = uploaded
			return nil
		},
		Mutation: func() (models.QueuedMutation, error) {
			return models.NewMutation(models.MutationUploadDocument, models.UploadDocumentPayload{
				TenantID: tenantID,
				Filename: req.Filename,
				Content:  req.Content,
				Metadata: req.Metadata,
				ActorID:  actorID,
			})
		},
	})
	if err != nil {
		if err := writeDomainError(w, err); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := map[string]any{"syncStatus": h.sync.Status()}
	if doc != nil {
		response["document"] = doc
	}
	if err := WriteJSON(w, http.StatusAccepted, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

type checkDocumentRequest struct {
	Content []byte `json:"content"`
}

// CheckDocument handles POST /api/tenants/{tenant}/documents/check. It runs
// only the dedup check so the UI can warn before a large upload. 409 means
// byte-identical content is already on file.
func (h *DocumentHandler) CheckDocument(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")
	if _, ok := resolveActor(w, r, h.actors, h.logger); !ok {
		return
	}

	var req checkDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Content) == 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Request must carry content"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := h.documents.CheckDuplicate(r.Context(), tenantID, req.Content); err != nil {
		if err := writeDomainError(w, err); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]bool{"duplicate": false}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
