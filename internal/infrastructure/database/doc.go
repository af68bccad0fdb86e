// Package database provides SQLite database connectivity for Communities Core.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Additive schema migrations loaded from an embedded filesystem
//   - Connection pooling and lifecycle management
//
// The pool is capped at one connection. SQLite has a single writer, and the
// security token store relies on conditional UPDATE statements executing
// one at a time.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
