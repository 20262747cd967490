// Package models contains domain types for the mindcase consistency layer.
package models

import "time"

// FieldMetadata records how much a field's value can be trusted: whether a
// human verified it, who and when, and an optional machine confidence for
// values that arrived from imports or OCR.
type FieldMetadata struct {
	Verified   bool       `json:"verified"`
	VerifiedBy string     `json:"verifiedBy,omitempty"`
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
	Confidence *float64   `json:"confidence,omitempty"` // 0..1
	SourceID   string     `json:"sourceId,omitempty"`   // evidence reference
}

// Field is the provenance-carrying primitive every subject record is built
// from: a value plus the metadata describing where it came from.
type Field struct {
	Value    any           `json:"value"`
	Metadata FieldMetadata `json:"metadata"`
}

// NewField wraps a raw value with empty (unverified) metadata.
func NewField(value any) Field {
	return Field{Value: value}
}

// NewImportedField wraps a value that arrived from an automated source with
// the extraction confidence attached.
func NewImportedField(value any, confidence float64, sourceID string) Field {
	return Field{
		Value: value,
		Metadata: FieldMetadata{
			Confidence: &confidence,
			SourceID:   sourceID,
		},
	}
}

// HasValue reports whether the field carries a usable value. Empty strings
// and nils count as absent for completeness scoring.
func (f Field) HasValue() bool {
	switch v := f.Value.(type) {
	case nil:
		return false
	case string:
		return v != ""
	default:
		return true
	}
}

// Section groups related provenance fields under one record heading
// (identity, education, family, health, extensions).
type Section map[string]Field

// Clone returns a shallow copy so read-modify-write flows never alias the
// map a caller still holds.
func (s Section) Clone() Section {
	if s == nil {
		return nil
	}
	out := make(Section, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
