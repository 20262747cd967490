package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a verification task.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskDone    TaskStatus = "done"
)

// VerificationTask instructs a practitioner to confirm one field (or one
// structural condition) of a subject record. Tasks are generated at record
// creation from the rule set in pkg/trust.
type VerificationTask struct {
	ID          uuid.UUID  `json:"id"`
	SubjectID   uuid.UUID  `json:"subjectId"`
	TenantID    string     `json:"tenantId"`
	FieldPath   string     `json:"fieldPath"` // dot-path, e.g. "identity.dateOfBirth"
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
}
