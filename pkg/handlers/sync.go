package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mindcase/mindcase-core/pkg/outbox"
	"github.com/mindcase/mindcase-core/pkg/syncengine"
)

// SyncHandler exposes the sync status and a manual flush trigger.
type SyncHandler struct {
	sync   *syncengine.Engine
	queue  *outbox.Queue
	logger *zap.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(sync *syncengine.Engine, queue *outbox.Queue, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		sync:   sync,
		queue:  queue,
		logger: logger,
	}
}

// RegisterRoutes registers the sync handler's routes on the given mux.
func (h *SyncHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sync/status", h.GetStatus)
	mux.HandleFunc("POST /api/sync/flush", h.Flush)
}

// GetStatus handles GET /api/sync/status.
func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	depth, err := h.queue.Depth(r.Context())
	if err != nil {
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"status":       h.sync.Status(),
		"pendingCount": depth,
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Flush handles POST /api/sync/flush.
func (h *SyncHandler) Flush(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.Flush(r.Context()); err != nil {
		if err := ErrorResponse(w, http.StatusInternalServerError, "flush_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"status": h.sync.Status(),
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
