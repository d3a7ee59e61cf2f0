// Package database provides SQL connectivity for Grapher Core.
//
// This package manages:
//   - Opening a connection pool for SQLite, MySQL or PostgreSQL
//   - SQLite pragmas (WAL mode, busy timeout, foreign keys)
//   - Placeholder rebinding for dialects that do not use '?'
//   - Health checks and lifecycle management
//
// Schema creation is not done here; tables are provisioned from the
// table registry in package datastore by the "grapher setup" command.
//
// Usage:
//
//	db, err := database.Open(database.Config{
//	    Driver: cfg.Database.Driver,
//	    Path:   cfg.Database.Path,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
package database
