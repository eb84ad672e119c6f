// Package postgres implements blobstore.MetaDataRepo on PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chartcrafter/chartcrafter"
	"github.com/chartcrafter/chartcrafter/blobstore"
	"github.com/chartcrafter/chartcrafter/database/internal"
)

type repo struct {
	pool      *pgxpool.Pool
	tableName string
}

const selectColumns = `id, blob_key, content_type, etag, file_size_bytes, created_at, updated_at`

func (r *repo) table() string {
	return pgx.Identifier{r.tableName}.Sanitize()
}

func scanMetaData(row pgx.Row) (blobstore.MetaData, error) {
	var m blobstore.MetaData
	err := row.Scan(&m.ID, &m.Key, &m.ContentType, &m.Etag, &m.FileSizeBytes, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (r *repo) Get(ctx context.Context, key string) (blobstore.MetaData, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s WHERE blob_key = $1 AND deleted_at IS NULL`, selectColumns, r.table())

	m, err := scanMetaData(r.pool.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return blobstore.MetaData{}, chartcrafter.ErrNotFound
		}
		return blobstore.MetaData{}, fmt.Errorf("get: %w", err)
	}

	return m, nil
}

func (r *repo) Upsert(ctx context.Context, entry blobstore.ObjectEntry) (blobstore.MetaData, bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (blob_key, content_type, etag, file_size_bytes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (blob_key) DO UPDATE
		SET content_type = EXCLUDED.content_type,
			etag = EXCLUDED.etag,
			file_size_bytes = EXCLUDED.file_size_bytes,
			updated_at = NOW(),
			deleted_at = NULL,
			cleaned_up_at = NULL
		RETURNING %s, (xmax = 0) AS inserted
	`, r.table(), selectColumns)

	var m blobstore.MetaData
	var inserted bool

	err := r.pool.QueryRow(ctx, query, entry.Key, entry.ContentType, entry.ETag, entry.Size).Scan(
		&m.ID, &m.Key, &m.ContentType, &m.Etag, &m.FileSizeBytes, &m.CreatedAt, &m.UpdatedAt, &inserted,
	)
	if err != nil {
		return blobstore.MetaData{}, false, fmt.Errorf("upsert: %w", err)
	}

	return m, inserted, nil
}

func (r *repo) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET deleted_at = NOW()
		WHERE blob_key = $1 AND deleted_at IS NULL
	`, r.table())

	result, err := r.pool.Exec(ctx, query, key)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("delete: %w", chartcrafter.ErrNotFound)
	}

	return nil
}

func (r *repo) List(ctx context.Context, q blobstore.ListQuery) (blobstore.ListResult, error) {
	return r.listWithCondition(ctx, q, "deleted_at IS NULL", "list")
}

func (r *repo) ListPendingCleanup(ctx context.Context, q blobstore.ListQuery) (blobstore.ListResult, error) {
	return r.listWithCondition(ctx, q, "deleted_at IS NOT NULL AND cleaned_up_at IS NULL", "list pending cleanup")
}

func (r *repo) listWithCondition(ctx context.Context, q blobstore.ListQuery, whereCondition, opName string) (blobstore.ListResult, error) {
	if q.Limit <= 0 {
		return blobstore.ListResult{}, fmt.Errorf("%s: %w: limit must be positive", opName, chartcrafter.ErrInvalidInput)
	}

	cursor, err := internal.DecodeCursor(q.Cursor)
	if err != nil {
		return blobstore.ListResult{}, fmt.Errorf("%s: %w: %w", opName, chartcrafter.ErrInvalidInput, err)
	}

	escapedPrefix := internal.EscapeLikePattern(q.KeyPrefix)

	var query string
	var args []any

	if q.Cursor == "" {
		query = fmt.Sprintf(`
			SELECT %s FROM %s
			WHERE %s AND blob_key LIKE $1 || '%%'
			ORDER BY created_at, blob_key
			LIMIT $2
		`, selectColumns, r.table(), whereCondition)
		args = []any{escapedPrefix, q.Limit + 1}
	} else {
		query = fmt.Sprintf(`
			SELECT %s FROM %s
			WHERE %s AND blob_key LIKE $1 || '%%' AND (created_at, blob_key) > ($2, $3)
			ORDER BY created_at, blob_key
			LIMIT $4
		`, selectColumns, r.table(), whereCondition)
		args = []any{escapedPrefix, cursor.CreatedAt, cursor.Key, q.Limit + 1}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return blobstore.ListResult{}, fmt.Errorf("%s: %w", opName, err)
	}
	defer rows.Close()

	items := make([]blobstore.MetaData, 0, q.Limit)
	for rows.Next() {
		m, scanErr := scanMetaData(rows)
		if scanErr != nil {
			return blobstore.ListResult{}, fmt.Errorf("%s: scan: %w", opName, scanErr)
		}
		items = append(items, m)
	}

	if err := rows.Err(); err != nil {
		return blobstore.ListResult{}, fmt.Errorf("%s: rows: %w", opName, err)
	}

	var nextCursor string
	if len(items) > q.Limit {
		// cursor points at the last item of the current page
		last := items[q.Limit-1]
		nextCursor = internal.EncodeCursor(last.CreatedAt, last.Key)
		items = items[:q.Limit]
	}

	return blobstore.ListResult{Items: items, NextCursor: nextCursor}, nil
}

func (r *repo) MarkCleanedUp(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET cleaned_up_at = NOW()
		WHERE id = $1 AND deleted_at IS NOT NULL AND cleaned_up_at IS NULL
	`, r.table())

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark cleaned up: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("mark cleaned up: %w", chartcrafter.ErrNotFound)
	}

	return nil
}

func (r *repo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
