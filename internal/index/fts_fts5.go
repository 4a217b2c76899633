//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
			path,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsInsert(tx *sql.Tx, path, tags string) error {
	if _, err := tx.Exec(`INSERT INTO entries_fts (path, tags) VALUES (?, ?)`, path, tags); err != nil {
		return fmt.Errorf("index: insert fts: %w", err)
	}
	return nil
}

func ftsClear(tx *sql.Tx) error {
	if _, err := tx.Exec(`DELETE FROM entries_fts`); err != nil {
		return fmt.Errorf("index: clear fts: %w", err)
	}
	return nil
}

// searchStatement ranks FTS5 matches; query uses FTS5 MATCH syntax.
func searchStatement(query string, limit int) (string, []any) {
	return `SELECT path, tags FROM entries_fts WHERE entries_fts MATCH ? ORDER BY rank LIMIT ?`,
		[]any{query, limit}
}
