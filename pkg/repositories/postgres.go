package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mindcase/mindcase-core/pkg/apperrors"
	"github.com/mindcase/mindcase-core/pkg/database"
	"github.com/mindcase/mindcase-core/pkg/models"
)

// PostgresRecordStore implements RecordStore against one regional shard.
// Record sections and meta live in a JSONB column; a version column carries
// the optimistic concurrency token.
type PostgresRecordStore struct {
	db *database.DB
}

// NewPostgresRecordStore creates a RecordStore over the given shard pool.
func NewPostgresRecordStore(db *database.DB) *PostgresRecordStore {
	return &PostgresRecordStore{db: db}
}

var _ RecordStore = (*PostgresRecordStore)(nil)

// recordData is the JSONB shape for a subject record's domain payload.
type recordData struct {
	Identity   models.Section    `json:"identity,omitempty"`
	Education  models.Section    `json:"education,omitempty"`
	Family     models.Section    `json:"family,omitempty"`
	Health     models.Section    `json:"health,omitempty"`
	Extensions models.Section    `json:"extensions,omitempty"`
	Meta       models.RecordMeta `json:"meta"`
}

func encodeRecord(record *models.SubjectRecord) ([]byte, error) {
	data, err := json.Marshal(recordData{
		Identity:   record.Identity,
		Education:  record.Education,
		Family:     record.Family,
		Health:     record.Health,
		Extensions: record.Extensions,
		Meta:       record.Meta,
	})
	if err != nil {
		return nil, fmt.Errorf("encode record %s: %w", record.ID, err)
	}
	return data, nil
}

func decodeRecord(record *models.SubjectRecord, data []byte) error {
	var payload recordData
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("decode record %s: %w", record.ID, err)
	}
	record.Identity = payload.Identity
	record.Education = payload.Education
	record.Family = payload.Family
	record.Health = payload.Health
	record.Extensions = payload.Extensions
	record.Meta = payload.Meta
	return nil
}

func (s *PostgresRecordStore) CreateWithRelated(ctx context.Context, record *models.SubjectRecord, related []models.RelatedEntity, tasks []models.VerificationTask) error {
	data, err := encodeRecord(record)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperrors.Transient("create record", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		INSERT INTO subject_records (id, tenant_id, data, version, created_at, updated_at)
		VALUES ($1, $2, $3, 1, $4, $5)
		ON CONFLICT (id) DO NOTHING`,
		record.ID, record.TenantID, data, record.Meta.CreatedAt, record.Meta.UpdatedAt,
	)
	if err != nil {
		return apperrors.Transient("create record", err)
	}
	if tag.RowsAffected() == 0 {
		// A replay of a create that already committed. The related entities
		// and tasks committed with it; inserting the replay's fresh copies
		// would duplicate them.
		record.Version = 1
		return nil
	}

	for _, entity := range related {
		fields, err := json.Marshal(entity.Fields)
		if err != nil {
			return fmt.Errorf("encode related entity %s: %w", entity.ID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO related_entities (id, subject_id, tenant_id, kind, fields, has_legal_responsibility, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING`,
			entity.ID, entity.SubjectID, entity.TenantID, entity.Kind, fields, entity.HasLegalResponsibility, entity.CreatedAt,
		)
		if err != nil {
			return apperrors.Transient("create related entity", err)
		}
	}

	for _, task := range tasks {
		_, err = tx.Exec(ctx, `
			INSERT INTO verification_tasks (id, subject_id, tenant_id, field_path, description, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING`,
			task.ID, task.SubjectID, task.TenantID, task.FieldPath, task.Description, task.Status, task.CreatedAt,
		)
		if err != nil {
			return apperrors.Transient("create verification task", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.Transient("commit create", err)
	}
	record.Version = 1
	return nil
}

func (s *PostgresRecordStore) GetRecord(ctx context.Context, tenantID string, id uuid.UUID) (*models.SubjectRecord, error) {
	record := &models.SubjectRecord{ID: id, TenantID: tenantID}
	var data []byte

	err := s.db.QueryRow(ctx, `
		SELECT data, version FROM subject_records
		WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	).Scan(&data, &record.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Transient("get record", err)
	}

	if err := decodeRecord(record, data); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *PostgresRecordStore) UpdateRecord(ctx context.Context, record *models.SubjectRecord) error {
	data, err := encodeRecord(record)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE subject_records
		SET data = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND tenant_id = $4 AND version = $5`,
		data, record.Meta.UpdatedAt, record.ID, record.TenantID, record.Version,
	)
	if err != nil {
		return apperrors.Transient("update record", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a lost race from a missing record.
		var exists bool
		err := s.db.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM subject_records WHERE id = $1 AND tenant_id = $2)`,
			record.ID, record.TenantID,
		).Scan(&exists)
		if err != nil {
			return apperrors.Transient("update record", err)
		}
		if exists {
			return apperrors.ErrConflict
		}
		return apperrors.ErrNotFound
	}
	record.Version++
	return nil
}

func (s *PostgresRecordStore) ListRelated(ctx context.Context, tenantID string, subjectID uuid.UUID) ([]models.RelatedEntity, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, kind, fields, has_legal_responsibility, created_at
		FROM related_entities
		WHERE subject_id = $1 AND tenant_id = $2
		ORDER BY created_at`,
		subjectID, tenantID,
	)
	if err != nil {
		return nil, apperrors.Transient("list related entities", err)
	}
	defer rows.Close()

	var entities []models.RelatedEntity
	for rows.Next() {
		entity := models.RelatedEntity{SubjectID: subjectID, TenantID: tenantID}
		var fields []byte
		if err := rows.Scan(&entity.ID, &entity.Kind, &fields, &entity.HasLegalResponsibility, &entity.CreatedAt); err != nil {
			return nil, apperrors.Transient("scan related entity", err)
		}
		if err := json.Unmarshal(fields, &entity.Fields); err != nil {
			return nil, fmt.Errorf("decode related entity %s: %w", entity.ID, err)
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

func (s *PostgresRecordStore) ListTasks(ctx context.Context, tenantID string, subjectID uuid.UUID) ([]models.VerificationTask, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, field_path, description, status, created_at
		FROM verification_tasks
		WHERE subject_id = $1 AND tenant_id = $2
		ORDER BY created_at`,
		subjectID, tenantID,
	)
	if err != nil {
		return nil, apperrors.Transient("list verification tasks", err)
	}
	defer rows.Close()

	var tasks []models.VerificationTask
	for rows.Next() {
		task := models.VerificationTask{SubjectID: subjectID, TenantID: tenantID}
		if err := rows.Scan(&task.ID, &task.FieldPath, &task.Description, &task.Status, &task.CreatedAt); err != nil {
			return nil, apperrors.Transient("scan verification task", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}
