//go:build !sqlite_fts5

package index

import "database/sql"

// Without FTS5 the entries table already holds everything Search needs.

func initFTS(*sql.DB) error { return nil }

func ftsInsert(*sql.Tx, string, string) error { return nil }

func ftsClear(*sql.Tx) error { return nil }

// searchStatement matches query as a substring of the path or tag names.
func searchStatement(query string, limit int) (string, []any) {
	like := "%" + query + "%"
	return `SELECT path, tag_names FROM entries WHERE path LIKE ? OR tag_names LIKE ? ORDER BY id LIMIT ?`,
		[]any{like, like, limit}
}
