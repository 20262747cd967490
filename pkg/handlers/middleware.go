package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mindcase/mindcase-core/pkg/auth"
)

// withBearerToken copies the Authorization bearer token into the request
// context for the actor provider. Token validation happens when a handler
// resolves the actor, not here.
func withBearerToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
			r = r.WithContext(auth.WithToken(r.Context(), token))
		}
		next(w, r)
	}
}

// resolveActor returns the acting user's id or writes a 401.
func resolveActor(w http.ResponseWriter, r *http.Request, actors auth.ActorProvider, logger *zap.Logger) (string, bool) {
	actorID, err := actors.ActorID(r.Context())
	if err != nil {
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "No actor identity"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", false
	}
	return actorID, true
}
