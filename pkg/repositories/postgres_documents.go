package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mindcase/mindcase-core/pkg/apperrors"
	"github.com/mindcase/mindcase-core/pkg/database"
	"github.com/mindcase/mindcase-core/pkg/models"
)

// uniqueViolation is the Postgres error code for a unique index conflict.
const uniqueViolation = "23505"

// PostgresDocumentStore implements DocumentStore against one regional shard.
// A partial unique index on (tenant_id, hash) where status <> 'error' backs
// the dedup invariant even across the unguarded check-then-write window.
type PostgresDocumentStore struct {
	db *database.DB
}

// NewPostgresDocumentStore creates a DocumentStore over the given shard pool.
func NewPostgresDocumentStore(db *database.DB) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db}
}

var _ DocumentStore = (*PostgresDocumentStore)(nil)

func (s *PostgresDocumentStore) FindByHash(ctx context.Context, tenantID, hash string) (*models.DocumentRecord, error) {
	doc := &models.DocumentRecord{TenantID: tenantID, Hash: hash}
	var metadata []byte

	err := s.db.QueryRow(ctx, `
		SELECT id, storage_path, status, metadata, created_at
		FROM documents
		WHERE tenant_id = $1 AND hash = $2 AND status <> 'error'
		LIMIT 1`,
		tenantID, hash,
	).Scan(&doc.ID, &doc.StoragePath, &doc.Status, &metadata, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Transient("find document by hash", err)
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decode document %s metadata: %w", doc.ID, err)
		}
	}
	return doc, nil
}

func (s *PostgresDocumentStore) CreateDocument(ctx context.Context, doc *models.DocumentRecord) error {
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("encode document %s metadata: %w", doc.ID, err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO documents (id, tenant_id, hash, storage_path, status, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID, doc.TenantID, doc.Hash, doc.StoragePath, doc.Status, metadata, doc.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			// Two identical uploads raced past the guard; the index caught
			// the loser.
			return apperrors.ErrConflict
		}
		return apperrors.Transient("create document", err)
	}
	return nil
}

func (s *PostgresDocumentStore) UpdateDocumentStatus(ctx context.Context, tenantID string, id uuid.UUID, status models.DocumentStatus) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE documents SET status = $1 WHERE id = $2 AND tenant_id = $3`,
		status, id, tenantID,
	)
	if err != nil {
		return apperrors.Transient("update document status", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
