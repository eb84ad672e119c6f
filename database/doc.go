// Package database connects to the SQL backend that indexes blob metadata
// for the blobstore.
//
// # Supported Backends
//
//   - PostgreSQL: pgx connection pool, for multi-instance deployments
//   - SQLite: modernc.org/sqlite, for single-node deployments and tests
//
// # Usage
//
//	db, err := database.Connect(ctx, database.Config{
//	    Type:   "sqlite",
//	    DSN:    "chartcrafter.db",
//	    Tables: blobstore.Tables{MetaData: "chart_blobs"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	store, err := blobstore.New(db.GetRepo(), files, blobstore.Config{})
package database
