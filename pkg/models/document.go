package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentStatus is the upload lifecycle state of a stored document.
type DocumentStatus string

const (
	DocumentUploading DocumentStatus = "uploading"
	DocumentReady     DocumentStatus = "ready"
	DocumentError     DocumentStatus = "error"
)

// DocumentRecord tracks one uploaded file. Hash is the SHA-256 hex digest of
// the original bytes and is the dedup key within a tenant: no two non-errored
// documents in one tenant may share a hash.
type DocumentRecord struct {
	ID          uuid.UUID         `json:"id"`
	TenantID    string            `json:"tenantId"`
	Hash        string            `json:"hash"`
	StoragePath string            `json:"storagePath"`
	Status      DocumentStatus    `json:"status"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}
