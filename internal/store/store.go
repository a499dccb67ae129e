// Package store implements the sqlite-backed clipboard history: entries,
// their MIME payload rows, search, and retention operations. It is
// grounded on the original kaprica's database.c (prepared-once statement
// lifecycle, busy-retry loop) and on thiagojdb-adoctl's pkg/cache/cache.go
// (database/sql transaction and Scan idioms), using
// github.com/mattn/go-sqlite3 as the driver.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ArtsyMacaw/kaprica/pkg/errors"
	"github.com/ArtsyMacaw/kaprica/pkg/logger"
)

const (
	busyRetryAttempts = 5
	busyRetryInterval = 100 * time.Millisecond
)

const schema = `
CREATE TABLE IF NOT EXISTS clipboard_history (
    history_id INTEGER PRIMARY KEY ASC,
    timestamp  DATETIME NOT NULL DEFAULT (datetime('now')),
    snippet    TEXT,
    thumbnail  BLOB,
    hash       TEXT
);
CREATE TABLE IF NOT EXISTS content (
    entry     INTEGER,
    length    INTEGER NOT NULL,
    data      BLOB NOT NULL,
    mime_type TEXT NOT NULL,
    FOREIGN KEY (entry) REFERENCES clipboard_history(history_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_content_data       ON content(data);
CREATE INDEX IF NOT EXISTS idx_content_mime_type  ON content(mime_type);
CREATE INDEX IF NOT EXISTS idx_history_snippet    ON clipboard_history(snippet);
CREATE INDEX IF NOT EXISTS idx_history_thumbnail  ON clipboard_history(thumbnail);
CREATE INDEX IF NOT EXISTS idx_history_timestamp  ON clipboard_history(timestamp);
CREATE INDEX IF NOT EXISTS idx_history_hash       ON clipboard_history(hash);
`

// Store owns the single sqlite connection for the history database. Every
// statement with static SQL is prepared once in Open and reused (the
// substring search, whose column is chosen per call, and the PRAGMA/VACUUM
// maintenance calls run unprepared), mirroring database.c's
// "preparing statements is relatively costly" comment and its
// prepare-once, finalize-at-shutdown lifecycle.
type Store struct {
	db *sql.DB

	insertEntry       *sql.Stmt
	insertContent     *sql.Stmt
	selectEntry       *sql.Stmt
	selectLatestID    *sql.Stmt
	selectSnippet     *sql.Stmt
	selectThumb       *sql.Stmt
	selectMeta        *sql.Stmt
	countEntries      *sql.Stmt
	selectLatest      *sql.Stmt
	selectBySnip      *sql.Stmt
	deleteEntry       *sql.Stmt
	deleteOld         *sql.Stmt
	deleteDuplicates  *sql.Stmt
	deleteLastExcl    *sql.Stmt
	deleteLargestExcl *sql.Stmt
	selectSize        *sql.Stmt
	selectAllIDsDesc  *sql.Stmt
	selectContentData *sql.Stmt
}

// Open opens (creating if absent) the sqlite database at path, applies the
// on-disk pragmas and schema, and prepares every statement this package
// uses.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, errors.StoreError(err)
	}
	db.SetMaxOpenConns(1) // single-writer store; avoid concurrent-connection SQLITE_BUSY noise

	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA secure_delete = OFF;",
		"PRAGMA auto_vacuum = NONE;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, errors.StoreError(err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.StoreError(err)
	}

	s := &Store{db: db}
	if err := s.prepareAll(); err != nil {
		db.Close()
		return nil, errors.StoreError(err)
	}
	return s, nil
}

func (s *Store) prepareAll() error {
	stmts := []struct {
		dst **sql.Stmt
		sql string
	}{
		{&s.insertEntry, `INSERT INTO clipboard_history (snippet, thumbnail, hash) VALUES (?, ?, ?);`},
		{&s.insertContent, `INSERT INTO content (entry, length, data, mime_type) VALUES (?, ?, ?, ?);`},
		{&s.selectEntry, `SELECT length, data, mime_type FROM content WHERE entry = ?;`},
		{&s.selectLatestID, `SELECT history_id FROM clipboard_history ORDER BY timestamp DESC LIMIT 1;`},
		{&s.selectSnippet, `SELECT snippet FROM clipboard_history WHERE history_id = ?;`},
		{&s.selectThumb, `SELECT thumbnail FROM clipboard_history WHERE history_id = ?;`},
		{&s.selectMeta, `SELECT snippet, thumbnail, hash FROM clipboard_history WHERE history_id = ?;`},
		{&s.countEntries, `SELECT COUNT(*) FROM clipboard_history;`},
		{&s.selectLatest, `SELECT history_id FROM clipboard_history ORDER BY timestamp DESC LIMIT ? OFFSET ?;`},
		{&s.selectBySnip, `SELECT history_id FROM clipboard_history WHERE snippet = ? LIMIT 1;`},
		{&s.deleteEntry, `DELETE FROM clipboard_history WHERE history_id = ?;`},
		{&s.deleteOld, `DELETE FROM clipboard_history WHERE timestamp < datetime('now', ?);`},
		{&s.deleteDuplicates, `
DELETE FROM clipboard_history
WHERE hash IS NOT NULL
  AND history_id NOT IN (
    SELECT MAX(history_id) FROM clipboard_history WHERE hash IS NOT NULL GROUP BY hash
);`},
		{&s.deleteLastExcl, `
DELETE FROM clipboard_history
WHERE history_id IN (
    SELECT history_id FROM clipboard_history
    WHERE history_id != ?
    ORDER BY timestamp ASC LIMIT ?
);`},
		{&s.deleteLargestExcl, `
DELETE FROM clipboard_history
WHERE history_id IN (
    SELECT entry FROM (
        SELECT entry, SUM(length) AS total
        FROM content
        WHERE entry != ?
        GROUP BY entry
        ORDER BY total DESC
        LIMIT ?
    )
);`},
		{&s.selectSize, `SELECT COALESCE(SUM(length), 0) FROM content;`},
		{&s.selectAllIDsDesc, `SELECT history_id FROM clipboard_history ORDER BY history_id DESC;`},
		{&s.selectContentData, `SELECT data FROM content WHERE entry = ?;`},
	}
	for _, st := range stmts {
		prepared, err := s.db.Prepare(st.sql)
		if err != nil {
			return fmt.Errorf("prepare %q: %w", st.sql, err)
		}
		*st.dst = prepared
	}
	return nil
}

// Close finalizes every prepared statement and closes the connection.
func (s *Store) Close() error {
	stmts := []*sql.Stmt{
		s.insertEntry, s.insertContent, s.selectEntry, s.selectLatestID,
		s.selectSnippet, s.selectThumb, s.selectMeta, s.countEntries, s.selectLatest,
		s.selectBySnip, s.deleteEntry, s.deleteOld, s.deleteDuplicates,
		s.deleteLastExcl, s.deleteLargestExcl, s.selectSize,
		s.selectAllIDsDesc, s.selectContentData,
	}
	for _, st := range stmts {
		if st != nil {
			st.Close()
		}
	}
	return s.db.Close()
}

// Optimize runs sqlite's PRAGMA optimize, the lightweight maintenance pass
// the retention scheduler runs on ticks that didn't warrant a VACUUM.
func (s *Store) Optimize() error {
	_, err := s.db.Exec("PRAGMA optimize;")
	return err
}

// Vacuum rebuilds the database file, run after a largest-entry retention
// pass.
func (s *Store) Vacuum() error {
	_, err := s.db.Exec("VACUUM;")
	return err
}

// stepExec runs fn (an Exec) with a busy-retry budget of up to 5
// attempts, 100ms apart. Exceeding the budget logs and returns a
// StoreBusyError, mirroring database.c's execute_statement retry loop.
func stepExec(op string, fn func() (sql.Result, error)) (sql.Result, error) {
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		res, err := fn()
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !isBusy(err) {
			return nil, err
		}
		time.Sleep(busyRetryInterval)
	}
	logger.Warn().Str("op", op).Msg("history database busy, exceeded retry budget")
	return nil, errors.StoreBusyError(op)
}

func isBusy(err error) bool {
	// go-sqlite3 surfaces SQLITE_BUSY via its own error type; string match
	// keeps this package free of a hard dependency on that type's shape
	// across versions, matching the C original's simple errno-style check.
	return err != nil && (contains(err.Error(), "database is locked") || contains(err.Error(), "SQLITE_BUSY"))
}

func contains(haystack, needle string) bool {
	return len(needle) == 0 || (len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0)
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
