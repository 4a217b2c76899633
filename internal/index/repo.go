package index

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/cowbump/internal/apperr"
)

// TagCount is a tag's canonical name with the number of entries carrying it.
type TagCount struct {
	Name    string
	Entries int
}

// SearchResult is one entry matched by Search. Tags holds the entry's
// canonical tag names separated by spaces.
type SearchResult struct {
	Path string
	Tags string
}

const defaultSearchLimit = 20

// Search matches query against entry paths and tag names. Builds with the
// sqlite_fts5 tag rank full-text matches; others fall back to substring
// matching in id order.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	stmt, args := searchStatement(query, limit)
	rows, err := db.conn.Query(stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Tags); err != nil {
			return nil, fmt.Errorf("index: search: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats returns row counts of the last export.
func (db *DB) Stats() (Stats, error) {
	var st Stats
	err := db.conn.QueryRow(`
		SELECT (SELECT count(*) FROM entries),
		       (SELECT count(*) FROM tags),
		       (SELECT count(*) FROM sequences)
	`).Scan(&st.Entries, &st.Tags, &st.Sequences)
	if err != nil {
		return Stats{}, fmt.Errorf("index: stats: %w", err)
	}
	return st, nil
}

// PathsWithTag returns the paths of entries that directly carry a tag
// known by name (canonical or alias), ordered by entry id.
func (db *DB) PathsWithTag(name string) ([]string, error) {
	rows, err := db.conn.Query(`
		SELECT DISTINCT e.id, e.path
		FROM entries e
		JOIN entry_tags et ON et.entry_id = e.id
		JOIN tag_names tn ON tn.tag_id = et.tag_id
		WHERE tn.name = ?
		ORDER BY e.id
	`, name)
	if err != nil {
		return nil, fmt.Errorf("index: paths with tag: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id int64
		var p string
		if err := rows.Scan(&id, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// TagUsage lists every tag with its entry count, most used first.
func (db *DB) TagUsage() ([]TagCount, error) {
	rows, err := db.conn.Query(`
		SELECT t.name, count(et.entry_id) AS n
		FROM tags t
		LEFT JOIN entry_tags et ON et.tag_id = t.id
		GROUP BY t.id
		ORDER BY n DESC, t.id
	`)
	if err != nil {
		return nil, fmt.Errorf("index: tag usage: %w", err)
	}
	defer rows.Close()

	var out []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Name, &tc.Entries); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// SnapshotChecksum returns the hex SHA-256 of the snapshot last exported.
func (db *DB) SnapshotChecksum() (string, error) {
	var sum string
	err := db.conn.QueryRow(`SELECT value FROM meta WHERE key = 'snapshot_sha256'`).Scan(&sum)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("index: nothing exported: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("index: snapshot checksum: %w", err)
	}
	return sum, nil
}
