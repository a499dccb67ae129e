package store

import (
	"database/sql"
	"fmt"
)

// DeleteOldEntries drops entries whose timestamp is before now plus `days`,
// mirroring database.c's database_destroy_old_entries: days is negative
// (e.g. -30 drops entries older than 30 days) and is used directly as the
// relative-date modifier. Returns the number of rows removed.
func (s *Store) DeleteOldEntries(days int) (int64, error) {
	modifier := fmt.Sprintf("%d days", days)
	res, err := stepExec("delete_old_entries", func() (sql.Result, error) { return s.deleteOld.Exec(modifier) })
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteLastEntries drops the n oldest entries by timestamp. "Last" here
// standardizes on "oldest", settling an ambiguity across earlier revisions
// of this scheduling logic where both readings appeared.
func (s *Store) DeleteLastEntries(n int) (int64, error) {
	return s.DeleteLastEntriesExcluding(0, n)
}

// DeleteLastEntriesExcluding behaves like DeleteLastEntries but never
// selects excludeID as a victim, even if it is among the n oldest. Pass 0
// for excludeID to exclude nothing. Used by the retention scheduler to
// uphold one invariant: never delete the currently-served entry.
func (s *Store) DeleteLastEntriesExcluding(excludeID int64, n int) (int64, error) {
	res, err := stepExec("delete_last_entries", func() (sql.Result, error) {
		return s.deleteLastExcl.Exec(excludeID, n)
	})
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteDuplicateEntries keeps only the entry with the maximum history_id
// per hash, deleting the rest. Idempotent: a second call always affects
// zero rows once the store is free of duplicate hashes.
func (s *Store) DeleteDuplicateEntries() (int64, error) {
	res, err := stepExec("delete_duplicate_entries", func() (sql.Result, error) {
		return s.deleteDuplicates.Exec()
	})
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteLargestEntries drops the n entries whose total content length is
// largest, used by the retention scheduler's size-cap pass (10 at a time,
// repeated until under the configured size cap).
func (s *Store) DeleteLargestEntries(n int) (int64, error) {
	return s.DeleteLargestEntriesExcluding(0, n)
}

// DeleteLargestEntriesExcluding behaves like DeleteLargestEntries but
// never selects excludeID as a victim. Pass 0 to exclude nothing.
func (s *Store) DeleteLargestEntriesExcluding(excludeID int64, n int) (int64, error) {
	res, err := stepExec("delete_largest_entries", func() (sql.Result, error) {
		return s.deleteLargestExcl.Exec(excludeID, n)
	})
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
