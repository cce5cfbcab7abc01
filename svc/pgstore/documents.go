package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/credkit/pkg/pg"
	"github.com/dmitrymomot/credkit/svc/account"
	"github.com/dmitrymomot/credkit/svc/resume"
)

var _ resume.DocumentStore = (*Store)(nil)

const documentColumns = `id::text, owner_id::text, original_name, storage_id, size,
	content_type, encryption_method, is_public, access_count, uploaded_at, last_accessed_at`

func scanDocument(row pgx.Row) (*resume.Document, error) {
	var d resume.Document
	err := row.Scan(
		&d.ID, &d.OwnerID, &d.OriginalName, &d.StorageID, &d.Size,
		&d.ContentType, &d.EncryptionMethod, &d.IsPublic, &d.AccessCount, &d.UploadedAt, &d.LastAccessedAt,
	)
	if pg.IsNotFoundError(err) {
		return nil, resume.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) CreateDocument(ctx context.Context, d *resume.Document) error {
	id, ok := parseID(d.ID)
	if !ok {
		return fmt.Errorf("create document: invalid id %q", d.ID)
	}
	owner, ok := parseID(d.OwnerID)
	if !ok {
		return account.ErrUserNotFound
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO documents (id, owner_id, original_name, storage_id, size,
			content_type, encryption_method, is_public, access_count, uploaded_at, last_accessed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, owner, d.OriginalName, d.StorageID, d.Size,
		d.ContentType, d.EncryptionMethod, d.IsPublic, d.AccessCount, d.UploadedAt, d.LastAccessedAt,
	)
	if pg.IsForeignKeyViolationError(err) {
		return account.ErrUserNotFound
	}
	return err
}

func (s *Store) Document(ctx context.Context, id string) (*resume.Document, error) {
	did, ok := parseID(id)
	if !ok {
		return nil, resume.ErrDocumentNotFound
	}
	return scanDocument(s.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, did))
}

func (s *Store) DocumentsByOwner(ctx context.Context, ownerID string) ([]*resume.Document, error) {
	owner, ok := parseID(ownerID)
	if !ok {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE owner_id = $1
		ORDER BY uploaded_at DESC, id`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*resume.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RecordAccess increments the counter in the row itself, so concurrent
// downloads never lose an increment.
func (s *Store) RecordAccess(ctx context.Context, id string, at time.Time) (*resume.Document, error) {
	did, ok := parseID(id)
	if !ok {
		return nil, resume.ErrDocumentNotFound
	}
	return scanDocument(s.db.QueryRow(ctx, `
		UPDATE documents
		SET access_count = access_count + 1, last_accessed_at = $2
		WHERE id = $1
		RETURNING `+documentColumns, did, at))
}

func (s *Store) SetVisibility(ctx context.Context, id string, public bool) (*resume.Document, error) {
	did, ok := parseID(id)
	if !ok {
		return nil, resume.ErrDocumentNotFound
	}
	return scanDocument(s.db.QueryRow(ctx, `
		UPDATE documents SET is_public = $2 WHERE id = $1
		RETURNING `+documentColumns, did, public))
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	did, ok := parseID(id)
	if !ok {
		return resume.ErrDocumentNotFound
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, did)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return resume.ErrDocumentNotFound
	}
	return nil
}
