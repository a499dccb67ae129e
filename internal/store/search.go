package store

import (
	"strings"

	"github.com/gobwas/glob"

	"github.com/ArtsyMacaw/kaprica/pkg/errors"
)

// SearchKind parameterizes FindMatchingEntries so there is one search
// entry point instead of a call site per match strategy.
type SearchKind int

const (
	SearchContent SearchKind = iota
	SearchMimeType
	SearchGlob
)

// FindMatchingEntries returns up to limit entry ids, ordered by id
// descending (ids never collide, unlike timestamps), matching pattern
// under the given search kind.
//
// SearchContent and SearchMimeType are pushed into SQL as escaped
// substring matches. SearchGlob is evaluated in Go with
// github.com/gobwas/glob (grounded in cogentcore-core and helixml-helix,
// both of which already depend on it) against each entry's content rows,
// newest first, rather than with sqlite's built-in GLOB operator.
func (s *Store) FindMatchingEntries(kind SearchKind, pattern string, limit int) ([]int64, error) {
	switch kind {
	case SearchContent:
		return s.findBySubstring(`content.data`, pattern, limit, true)
	case SearchMimeType:
		return s.findBySubstring(`content.mime_type`, pattern, limit, false)
	case SearchGlob:
		return s.findByGlob(pattern, limit)
	default:
		return nil, errors.ValidationError("unknown search kind")
	}
}

func (s *Store) findBySubstring(column, pattern string, limit int, binary bool) ([]int64, error) {
	escaped := escapeLike(pattern)
	query := `
SELECT DISTINCT clipboard_history.history_id
FROM clipboard_history
JOIN content ON content.entry = clipboard_history.history_id
WHERE ` + column + ` LIKE '%' || ? || '%' ESCAPE '\'
ORDER BY clipboard_history.history_id DESC
LIMIT ?;`
	rows, err := s.db.Query(query, escaped, limit)
	if err != nil {
		return nil, errors.StoreError(err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func escapeLike(pattern string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(pattern)
}

// findByGlob walks entries newest-first, decoding each entry's content
// rows and testing the compiled glob against the raw bytes, stopping once
// limit matches are found.
func (s *Store) findByGlob(pattern string, limit int) ([]int64, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, errors.ValidationError("invalid glob pattern: " + err.Error())
	}

	rows, err := s.selectAllIDsDesc.Query()
	if err != nil {
		return nil, errors.StoreError(err)
	}
	defer rows.Close()

	var candidateIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.StoreError(err)
		}
		candidateIDs = append(candidateIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreError(err)
	}

	var matches []int64
	for _, id := range candidateIDs {
		if len(matches) >= limit {
			break
		}
		ok, err := s.entryMatchesGlob(id, g)
		if err != nil {
			return nil, err
		}
		if ok {
			matches = append(matches, id)
		}
	}
	return matches, nil
}

func (s *Store) entryMatchesGlob(id int64, g glob.Glob) (bool, error) {
	rows, err := s.selectContentData.Query(id)
	if err != nil {
		return false, errors.StoreError(err)
	}
	defer rows.Close()
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return false, errors.StoreError(err)
		}
		if g.Match(string(data)) {
			return true, nil
		}
	}
	return false, rows.Err()
}
