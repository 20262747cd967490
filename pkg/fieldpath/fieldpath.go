// Package fieldpath resolves dot-path strings like "identity.dateOfBirth"
// against subject records, so verification flows can address any provenance
// field without per-field plumbing.
package fieldpath

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mindcase/mindcase-core/pkg/apperrors"
	"github.com/mindcase/mindcase-core/pkg/models"
)

// ErrBadPath reports a path that does not name a section and a field key.
var ErrBadPath = errors.New("malformed field path")

// split validates and splits a two-segment dot-path.
func split(path string) (section, key string, err error) {
	parts := strings.Split(path, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q (want \"section.field\")", ErrBadPath, path)
	}
	return parts[0], parts[1], nil
}

// Get returns the field addressed by path. Missing sections and missing
// fields both surface apperrors.ErrNotFound so callers treat them alike.
func Get(record *models.SubjectRecord, path string) (models.Field, error) {
	sectionName, key, err := split(path)
	if err != nil {
		return models.Field{}, err
	}
	section, ok := record.Section(sectionName)
	if !ok {
		return models.Field{}, fmt.Errorf("%w: %q (unknown section %q)", ErrBadPath, path, sectionName)
	}
	field, ok := section[key]
	if !ok {
		return models.Field{}, fmt.Errorf("field %q: %w", path, apperrors.ErrNotFound)
	}
	return field, nil
}

// Set writes the field addressed by path, creating the field if absent. The
// section map is cloned before mutation so records read from a store are
// never modified in place.
func Set(record *models.SubjectRecord, path string, field models.Field) error {
	sectionName, key, err := split(path)
	if err != nil {
		return err
	}
	section, ok := record.Section(sectionName)
	if !ok {
		return fmt.Errorf("%w: %q (unknown section %q)", ErrBadPath, path, sectionName)
	}
	updated := section.Clone()
	if updated == nil {
		updated = models.Section{}
	}
	updated[key] = field
	record.SetSection(sectionName, updated)
	return nil
}

// Update applies fn to the existing field at path and writes the result
// back. Fails with apperrors.ErrNotFound when the field is absent; updating
// a field that was never captured is a caller bug, not an upsert.
func Update(record *models.SubjectRecord, path string, fn func(models.Field) models.Field) error {
	field, err := Get(record, path)
	if err != nil {
		return err
	}
	return Set(record, path, fn(field))
}
