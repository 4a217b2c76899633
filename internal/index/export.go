package index

import (
	"bytes"
	"database/sql"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/starford/cowbump/internal/checksum"
	"github.com/starford/cowbump/internal/collection"
)

// Stats counts the rows written by an export.
type Stats struct {
	Entries   int
	Tags      int
	Sequences int
}

var exportTables = []string{
	"entries", "tags", "tag_names", "tag_implies",
	"entry_tags", "sequences", "sequence_entries", "meta",
}

// Export replaces the mirrored rows with the contents of c inside a single
// transaction. References to tags or entries that no longer exist are not
// written.
func (db *DB) Export(c *collection.Collection) (Stats, error) {
	var snapshot bytes.Buffer
	if err := c.Encode(&snapshot); err != nil {
		return Stats{}, fmt.Errorf("index: encode snapshot: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for _, table := range exportTables {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return Stats{}, fmt.Errorf("index: clear %s: %w", table, err)
		}
	}
	if err := ftsClear(tx); err != nil {
		return Stats{}, err
	}

	var st Stats
	if st.Tags, err = exportTags(tx, c); err != nil {
		return Stats{}, err
	}
	if st.Entries, err = exportEntries(tx, c); err != nil {
		return Stats{}, err
	}
	if st.Sequences, err = exportSequences(tx, c); err != nil {
		return Stats{}, err
	}

	meta := map[string]string{
		"uid_counter":     strconv.FormatUint(uint64(c.UIDCounter()), 10),
		"format_version":  strconv.Itoa(int(collection.FormatVersion)),
		"snapshot_sha256": checksum.Hex(snapshot.Bytes()),
	}
	for k, v := range meta {
		if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return Stats{}, fmt.Errorf("index: insert meta %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("index: commit: %w", err)
	}
	return st, nil
}

func exportTags(tx *sql.Tx, c *collection.Collection) (int, error) {
	tagStmt, err := tx.Prepare(`INSERT INTO tags (id, name) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("index: prepare tag insert: %w", err)
	}
	defer tagStmt.Close()
	nameStmt, err := tx.Prepare(`INSERT INTO tag_names (tag_id, position, name) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("index: prepare tag name insert: %w", err)
	}
	defer nameStmt.Close()
	implStmt, err := tx.Prepare(`INSERT INTO tag_implies (tag_id, implied_id) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("index: prepare implication insert: %w", err)
	}
	defer implStmt.Close()

	n := 0
	for id, tag := range c.Tags().All() {
		if _, err := tagStmt.Exec(int64(id), tag.Name()); err != nil {
			return 0, fmt.Errorf("index: insert tag %d: %w", id, err)
		}
		for pos, name := range tag.Names {
			if _, err := nameStmt.Exec(int64(id), pos, name); err != nil {
				return 0, fmt.Errorf("index: insert tag name %q: %w", name, err)
			}
		}
		for _, implied := range c.Implied(id) {
			if _, err := implStmt.Exec(int64(id), int64(implied)); err != nil {
				return 0, fmt.Errorf("index: insert implication %d->%d: %w", id, implied, err)
			}
		}
		n++
	}
	return n, nil
}

func exportEntries(tx *sql.Tx, c *collection.Collection) (int, error) {
	entryStmt, err := tx.Prepare(`INSERT INTO entries (id, path, name, tag_names) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("index: prepare entry insert: %w", err)
	}
	defer entryStmt.Close()
	tagStmt, err := tx.Prepare(`INSERT INTO entry_tags (entry_id, position, tag_id) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("index: prepare entry tag insert: %w", err)
	}
	defer tagStmt.Close()

	n := 0
	for id, en := range c.Entries().All() {
		var names []string
		pos := 0
		for _, tag := range en.Tags {
			t, ok := c.Tag(tag)
			if !ok {
				continue
			}
			if _, err := tagStmt.Exec(int64(id), pos, int64(tag)); err != nil {
				return 0, fmt.Errorf("index: insert entry tag %d: %w", id, err)
			}
			names = append(names, t.Name())
			pos++
		}
		tagText := strings.Join(names, " ")
		if _, err := entryStmt.Exec(int64(id), en.Path, filepath.Base(en.Path), tagText); err != nil {
			return 0, fmt.Errorf("index: insert entry %s: %w", en.Path, err)
		}
		if err := ftsInsert(tx, en.Path, tagText); err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

func exportSequences(tx *sql.Tx, c *collection.Collection) (int, error) {
	seqStmt, err := tx.Prepare(`INSERT INTO sequences (id, name) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("index: prepare sequence insert: %w", err)
	}
	defer seqStmt.Close()
	itemStmt, err := tx.Prepare(`INSERT INTO sequence_entries (sequence_id, position, entry_id) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("index: prepare sequence entry insert: %w", err)
	}
	defer itemStmt.Close()

	n := 0
	for id, seq := range c.Sequences().All() {
		if _, err := seqStmt.Exec(int64(id), seq.Name); err != nil {
			return 0, fmt.Errorf("index: insert sequence %d: %w", id, err)
		}
		live, err := c.SequenceEntries(id)
		if err != nil {
			return 0, fmt.Errorf("index: sequence %d: %w", id, err)
		}
		for pos, entry := range live {
			if _, err := itemStmt.Exec(int64(id), pos, int64(entry)); err != nil {
				return 0, fmt.Errorf("index: insert sequence entry %d: %w", id, err)
			}
		}
		n++
	}
	return n, nil
}
