// Package database provides SQLite connectivity for versionwatch.
//
// This package manages:
//   - Opening the database with optional WAL mode and a busy timeout
//   - Schema migrations from an injected fs.FS (see the migrations package)
//   - Reporting the backing file that changes on commit, which the watch
//     engine observes to detect configuration edits
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//   - The broker password is stored in the database; protect the file
//
// Usage:
//
//	db, err := database.Open(database.Config{
//	    Path:       cfg.Store.Path,
//	    WALMode:    cfg.Store.WALMode,
//	    Migrations: migrations.FS,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
