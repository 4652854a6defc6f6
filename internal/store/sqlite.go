package store

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (or creates) a SQLite database at the given path.
// The pragmas go in the DSN so they apply to every connection in the
// database/sql pool, not just the one a plain Exec would run on.
func OpenSQLite(path string) (*sql.DB, error) {
	// WAL keeps the dashboard readable while the worker writes; busy_timeout
	// makes writers wait instead of failing when the worker and the API collide.
	dsn := "file:" + path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return db, nil
}
