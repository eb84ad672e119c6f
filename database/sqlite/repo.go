package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chartcrafter/chartcrafter"
	"github.com/chartcrafter/chartcrafter/blobstore"
	"github.com/chartcrafter/chartcrafter/database/internal"
)

// timeFormat is fixed width so that text comparison orders timestamps.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

type repo struct {
	db        *sql.DB
	tableName string
}

const selectColumns = `id, blob_key, content_type, etag, file_size_bytes, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanMetaData(row scanner) (blobstore.MetaData, error) {
	var m blobstore.MetaData
	var idStr, createdAt, updatedAt string

	if err := row.Scan(&idStr, &m.Key, &m.ContentType, &m.Etag, &m.FileSizeBytes, &createdAt, &updatedAt); err != nil {
		return blobstore.MetaData{}, err
	}

	var err error
	if m.ID, err = uuid.Parse(idStr); err != nil {
		return blobstore.MetaData{}, fmt.Errorf("parse uuid: %w", err)
	}
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return blobstore.MetaData{}, fmt.Errorf("parse created_at: %w", err)
	}
	if m.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return blobstore.MetaData{}, fmt.Errorf("parse updated_at: %w", err)
	}

	return m, nil
}

func (r *repo) Get(ctx context.Context, key string) (blobstore.MetaData, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s WHERE blob_key = ? AND deleted_at IS NULL`, selectColumns, quoteIdentifier(r.tableName))

	m, err := scanMetaData(r.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return blobstore.MetaData{}, chartcrafter.ErrNotFound
		}
		return blobstore.MetaData{}, fmt.Errorf("get: %w", err)
	}

	return m, nil
}

func (r *repo) Upsert(ctx context.Context, entry blobstore.ObjectEntry) (blobstore.MetaData, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return blobstore.MetaData{}, false, fmt.Errorf("upsert: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	table := quoteIdentifier(r.tableName)

	var existingID, existingCreatedAt string
	checkQuery := fmt.Sprintf(`SELECT id, created_at FROM %s WHERE blob_key = ?`, table) //nolint:gosec // table name is validated
	err = tx.QueryRowContext(ctx, checkQuery, entry.Key).Scan(&existingID, &existingCreatedAt)
	isInsert := errors.Is(err, sql.ErrNoRows)
	if err != nil && !isInsert {
		return blobstore.MetaData{}, false, fmt.Errorf("upsert: check existing: %w", err)
	}

	now := time.Now().UTC()
	nowStr := formatTime(now)

	m := blobstore.MetaData{
		Key:           entry.Key,
		ContentType:   entry.ContentType,
		Etag:          entry.ETag,
		FileSizeBytes: entry.Size,
		UpdatedAt:     now,
	}

	if isInsert {
		m.ID = uuid.New()
		m.CreatedAt = now

		insertQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
			`INSERT INTO %s (id, blob_key, content_type, etag, file_size_bytes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`, table)

		if _, err := tx.ExecContext(ctx, insertQuery,
			m.ID.String(), entry.Key, entry.ContentType, entry.ETag, entry.Size, nowStr, nowStr,
		); err != nil {
			return blobstore.MetaData{}, false, fmt.Errorf("upsert: insert: %w", err)
		}
	} else {
		if m.ID, err = uuid.Parse(existingID); err != nil {
			return blobstore.MetaData{}, false, fmt.Errorf("upsert: parse uuid: %w", err)
		}
		if m.CreatedAt, err = parseTime(existingCreatedAt); err != nil {
			return blobstore.MetaData{}, false, fmt.Errorf("upsert: parse created_at: %w", err)
		}

		updateQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
			`UPDATE %s
			SET content_type = ?, etag = ?, file_size_bytes = ?, updated_at = ?,
				deleted_at = NULL, cleaned_up_at = NULL
			WHERE blob_key = ?`, table)

		if _, err := tx.ExecContext(ctx, updateQuery,
			entry.ContentType, entry.ETag, entry.Size, nowStr, entry.Key,
		); err != nil {
			return blobstore.MetaData{}, false, fmt.Errorf("upsert: update: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return blobstore.MetaData{}, false, fmt.Errorf("upsert: commit: %w", err)
	}

	return m, isInsert, nil
}

func (r *repo) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s SET deleted_at = ? WHERE blob_key = ? AND deleted_at IS NULL`, quoteIdentifier(r.tableName))

	result, err := r.db.ExecContext(ctx, query, formatTime(time.Now()), key)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete: rows affected: %w", err)
	}

	if rowsAffected == 0 {
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
	table := quoteIdentifier(r.tableName)

	var query string
	var args []any

	if q.Cursor == "" {
		query = fmt.Sprintf(`
			SELECT %s FROM %s
			WHERE %s AND blob_key LIKE ? || '%%' ESCAPE '\'
			ORDER BY created_at, blob_key
			LIMIT ?
		`, selectColumns, table, whereCondition)
		args = []any{escapedPrefix, q.Limit + 1}
	} else {
		query = fmt.Sprintf(`
			SELECT %s FROM %s
			WHERE %s AND blob_key LIKE ? || '%%' ESCAPE '\' AND (created_at, blob_key) > (?, ?)
			ORDER BY created_at, blob_key
			LIMIT ?
		`, selectColumns, table, whereCondition)
		args = []any{escapedPrefix, formatTime(cursor.CreatedAt), cursor.Key, q.Limit + 1}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return blobstore.ListResult{}, fmt.Errorf("%s: %w", opName, err)
	}
	defer func() { _ = rows.Close() }()

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
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s
		SET cleaned_up_at = ?
		WHERE id = ? AND deleted_at IS NOT NULL AND cleaned_up_at IS NULL`, quoteIdentifier(r.tableName))

	result, err := r.db.ExecContext(ctx, query, formatTime(time.Now()), id.String())
	if err != nil {
		return fmt.Errorf("mark cleaned up: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark cleaned up: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("mark cleaned up: %w", chartcrafter.ErrNotFound)
	}

	return nil
}

func (r *repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
