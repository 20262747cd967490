package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MutationType tags a queued mutation with the replay handler that owns it.
type MutationType string

const (
	MutationCreateRecord   MutationType = "createRecord"
	MutationVerifyField    MutationType = "verifyField"
	MutationUploadDocument MutationType = "uploadDocument"
)

// QueuedMutation is the persisted wire form of one pending write. Payload
// stays raw JSON here; the typed payload structs below give each variant an
// exhaustive shape at the dispatch site.
//
// Wire schema: { id, type, payload, timestamp (ms epoch), retryCount }.
type QueuedMutation struct {
	ID         string          `json:"id"`
	Type       MutationType    `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  int64           `json:"timestamp"`
	RetryCount int             `json:"retryCount"`
}

// CreateRecordPayload replays RecordService.CreateWithRelated.
type CreateRecordPayload struct {
	TenantID string         `json:"tenantId"`
	Draft    SubjectDraft   `json:"draft"`
	Related  []RelatedDraft `json:"related,omitempty"`
	ActorID  string         `json:"actorId"`
	// RecordID pins the id chosen optimistically at enqueue time so a replay
	// creates the same record the UI already shows.
	RecordID uuid.UUID `json:"recordId"`
}

// VerifyFieldPayload replays RecordService.VerifyField.
type VerifyFieldPayload struct {
	TenantID    string    `json:"tenantId"`
	SubjectID   uuid.UUID `json:"subjectId"`
	FieldPath   string    `json:"fieldPath"`
	VerifierID  string    `json:"verifierId"`
	EvidenceRef string    `json:"evidenceRef,omitempty"`
}

// UploadDocumentPayload replays DocumentService.Upload. Content is carried
// inline (base64 via encoding/json) because the local blob may be gone by
// the time the replay runs.
type UploadDocumentPayload struct {
	TenantID string            `json:"tenantId"`
	Filename string            `json:"filename"`
	Content  []byte            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	ActorID  string            `json:"actorId"`
}

// NewMutation builds a persisted mutation around a typed payload.
func NewMutation(mutationType MutationType, payload any) (QueuedMutation, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return QueuedMutation{}, fmt.Errorf("marshal %s payload: %w", mutationType, err)
	}
	return QueuedMutation{
		ID:        uuid.NewString(),
		Type:      mutationType,
		Payload:   raw,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// DecodePayload unmarshals a mutation's payload into its typed variant.
func DecodePayload[T any](m QueuedMutation) (T, error) {
	var payload T
	if err := json.Unmarshal(m.Payload, &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload of mutation %s: %w", m.Type, m.ID, err)
	}
	return payload, nil
}
