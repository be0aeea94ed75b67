// Package database opens the service's SQLite store and applies its schema
// migrations.
//
// The store holds the characteristic change history. Connections use WAL
// mode and a busy timeout; the pool is limited to one writer.
//
// Migrations are plain SQL files named YYYYMMDD_HHMMSS_description.up.sql
// with an optional matching .down.sql. They are read from an fs.FS (the
// embedded migrations package in production, fstest.MapFS in tests) and
// each one is applied in its own transaction.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
