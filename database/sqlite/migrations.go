package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/chartcrafter/chartcrafter/blobstore"
)

// quoteIdentifier quotes a table or index name that has already passed
// blobstore.IsValidTableName.
func quoteIdentifier(name string) string {
	return `"` + name + `"`
}

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, db *sql.DB) error
	Down      func(ctx context.Context, db *sql.DB) error
}

func getTableMigrations(tables blobstore.Tables) []TableMigration {
	return []TableMigration{
		{
			TableName: tables.MetaData,
			Up:        createMetaTable(tables.MetaData),
			Down:      dropTable(tables.MetaData),
		},
	}
}

func migrate(ctx context.Context, db *sql.DB, tables blobstore.Tables) error {
	for _, migration := range getTableMigrations(tables) {
		if err := migration.Up(ctx, db); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}
	return nil
}

func dropTables(ctx context.Context, db *sql.DB, tables blobstore.Tables) error {
	migrations := getTableMigrations(tables)

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if err := migration.Down(ctx, db); err != nil {
			return fmt.Errorf("migrate down %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func createMetaTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)

		statements := []struct {
			name string
			sql  string
		}{
			{"create table", fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					id TEXT NOT NULL PRIMARY KEY,
					blob_key TEXT NOT NULL UNIQUE,
					content_type TEXT NOT NULL,
					etag TEXT NOT NULL,
					file_size_bytes INTEGER NOT NULL,
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL,
					deleted_at TEXT,
					cleaned_up_at TEXT
				)`, quotedTable)},
			{"create index pending_cleanup", fmt.Sprintf(
				`CREATE INDEX IF NOT EXISTS %s ON %s (deleted_at, cleaned_up_at)`,
				quoteIdentifier("idx_"+tableName+"_pending_cleanup"), quotedTable)},
			{"create index active_list", fmt.Sprintf(
				`CREATE INDEX IF NOT EXISTS %s ON %s (created_at, blob_key) WHERE deleted_at IS NULL`,
				quoteIdentifier("idx_"+tableName+"_active_list"), quotedTable)},
		}

		for _, stmt := range statements {
			if _, err := db.ExecContext(ctx, stmt.sql); err != nil {
				return fmt.Errorf("%s: %w", stmt.name, err)
			}
		}

		return nil
	}
}

func dropTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdentifier(tableName)))
		return err
	}
}
