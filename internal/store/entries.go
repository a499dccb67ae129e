package store

import (
	"database/sql"
	"fmt"

	"github.com/ArtsyMacaw/kaprica/internal/clip"
	"github.com/ArtsyMacaw/kaprica/pkg/errors"
)

// InsertEntry inserts one history row and its content rows in a single
// transaction, returning the assigned id. Order of MimePayloads is
// preserved from SourceBuffer to storage.
func (s *Store) InsertEntry(src *clip.SourceBuffer) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, errors.StoreError(err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Stmt(s.insertEntry).Exec(src.Snippet, nullBytes(src.Thumbnail), src.DataHash)
	if err != nil {
		return 0, errors.StoreError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.StoreError(err)
	}

	contentStmt := tx.Stmt(s.insertContent)
	for _, p := range src.Payloads {
		if _, err := contentStmt.Exec(id, p.Length, p.Bytes, p.Type); err != nil {
			return 0, errors.StoreError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.StoreError(err)
	}
	return id, nil
}

// GetEntry populates a SourceBuffer from the stored content rows for id,
// in insertion order. Returns errors.EntryNotFoundError if id is absent.
func (s *Store) GetEntry(id int64) (*clip.SourceBuffer, error) {
	rows, err := s.selectEntry.Query(id)
	if err != nil {
		return nil, errors.StoreError(err)
	}
	defer rows.Close()

	src := clip.NewSourceBuffer()
	for rows.Next() {
		var length uint32
		var data []byte
		var mimeType string
		if err := rows.Scan(&length, &data, &mimeType); err != nil {
			return nil, errors.StoreError(err)
		}
		src.Payloads = append(src.Payloads, clip.MimePayload{Type: mimeType, Bytes: data, Length: length})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreError(err)
	}
	if len(src.Payloads) == 0 {
		return nil, errors.EntryNotFoundError(id)
	}

	snippet, thumbnail, hash, err := s.entryMeta(id)
	if err != nil {
		return nil, err
	}
	src.Snippet = snippet
	src.Thumbnail = thumbnail
	if thumbnail != nil {
		src.ThumbnailLen = uint32(len(thumbnail))
	}
	src.DataHash = hash
	return src, nil
}

func (s *Store) entryMeta(id int64) (snippet string, thumbnail []byte, hash string, err error) {
	row := s.selectMeta.QueryRow(id)
	var snip sql.NullString
	var thumb []byte
	var h sql.NullString
	if scanErr := row.Scan(&snip, &thumb, &h); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return "", nil, "", errors.EntryNotFoundError(id)
		}
		return "", nil, "", errors.StoreError(scanErr)
	}
	return snip.String, thumb, h.String, nil
}

// GetSnippet returns the snippet for id, or ("", err) if absent.
func (s *Store) GetSnippet(id int64) (string, error) {
	var snippet sql.NullString
	if err := s.selectSnippet.QueryRow(id).Scan(&snippet); err != nil {
		if err == sql.ErrNoRows {
			return "", errors.EntryNotFoundError(id)
		}
		return "", errors.StoreError(err)
	}
	return snippet.String, nil
}

// GetThumbnail returns the thumbnail bytes for id, or nil if it has none.
func (s *Store) GetThumbnail(id int64) ([]byte, error) {
	var thumb []byte
	if err := s.selectThumb.QueryRow(id).Scan(&thumb); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.EntryNotFoundError(id)
		}
		return nil, errors.StoreError(err)
	}
	return thumb, nil
}

// GetTotalEntries returns the number of history rows.
func (s *Store) GetTotalEntries() (uint32, error) {
	var count uint32
	if err := s.countEntries.QueryRow().Scan(&count); err != nil {
		return 0, errors.StoreError(err)
	}
	return count, nil
}

// GetLatestEntries returns up to limit ids ordered by timestamp
// descending, starting at offset.
func (s *Store) GetLatestEntries(limit, offset int) ([]int64, error) {
	rows, err := s.selectLatest.Query(limit, offset)
	if err != nil {
		return nil, errors.StoreError(err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// FindEntryFromSnippet returns the id of the entry whose snippet exactly
// matches text, or 0 if none matches.
func (s *Store) FindEntryFromSnippet(text string) (int64, error) {
	var id int64
	err := s.selectBySnip.QueryRow(text).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.StoreError(err)
	}
	return id, nil
}

// DeleteEntry removes one history row (cascading to its content rows).
func (s *Store) DeleteEntry(id int64) error {
	_, err := stepExec("delete_entry", func() (sql.Result, error) { return s.deleteEntry.Exec(id) })
	return err
}

// GetSize returns the total on-disk payload size in bytes (sum of
// content.length), the basis for the retention scheduler's size cap.
func (s *Store) GetSize() (uint64, error) {
	var size uint64
	if err := s.selectSize.QueryRow().Scan(&size); err != nil {
		return 0, errors.StoreError(err)
	}
	return size, nil
}

func nullBytes(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return b
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
