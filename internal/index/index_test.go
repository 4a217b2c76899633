package index

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/cowbump/internal/apperr"
	"github.com/starford/cowbump/internal/checksum"
	"github.com/starford/cowbump/internal/collection"
	"github.com/starford/cowbump/internal/testutil"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "cowbump-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// sample builds a small tagged collection over real files.
func sample(t *testing.T) (*collection.Collection, string) {
	t.Helper()
	root, store := testutil.TestRoot(t, "a.png", "b.png", "c.png")
	c := collection.New()
	if _, err := c.Reconcile(store, testutil.Logger()); err != nil {
		t.Fatal(err)
	}
	cat, err := c.AddTag([]string{"cat", "kitty"})
	if err != nil {
		t.Fatal(err)
	}
	animal, err := c.AddTag([]string{"animal"})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.AddImplication(cat, animal); err != nil {
		t.Fatal(err)
	}
	a, _ := c.EntryByPath(filepath.Join(root, "a.png"))
	b, _ := c.EntryByPath(filepath.Join(root, "b.png"))
	if err := c.AttachTagMulti([]collection.Uid{a, b}, cat); err != nil {
		t.Fatal(err)
	}
	seq := c.AddSequence("trip")
	if err := c.AppendEntries(seq, b, a); err != nil {
		t.Fatal(err)
	}
	return c, root
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range exportTables {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestExport(t *testing.T) {
	db := testDB(t)
	c, root := sample(t)

	st, err := db.Export(c)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	want := Stats{Entries: 3, Tags: 2, Sequences: 1}
	if st != want {
		t.Errorf("export stats = %+v, want %+v", st, want)
	}
	got, err := db.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("stats = %+v, want %+v", got, want)
	}

	paths, err := db.PathsWithTag("kitty")
	if err != nil {
		t.Fatal(err)
	}
	wantPaths := []string{filepath.Join(root, "a.png"), filepath.Join(root, "b.png")}
	if diff := cmp.Diff(wantPaths, paths); diff != "" {
		t.Errorf("PathsWithTag mismatch (-want +got):\n%s", diff)
	}

	var implied int64
	if err := db.conn.QueryRow(`SELECT implied_id FROM tag_implies`).Scan(&implied); err != nil {
		t.Fatal(err)
	}
	if id, _ := c.ResolveAlias("animal"); implied != int64(id) {
		t.Errorf("implied = %d, want %d", implied, id)
	}

	var order []string
	rows, err := db.conn.Query(`
		SELECT e.name FROM sequence_entries se
		JOIN entries e ON e.id = se.entry_id
		ORDER BY se.position`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			t.Fatal(err)
		}
		order = append(order, n)
	}
	if diff := cmp.Diff([]string{"b.png", "a.png"}, order); diff != "" {
		t.Errorf("sequence order mismatch (-want +got):\n%s", diff)
	}
}

func TestExport_ReplacesRows(t *testing.T) {
	db := testDB(t)
	c, _ := sample(t)
	if _, err := db.Export(c); err != nil {
		t.Fatal(err)
	}
	cat, _ := c.ResolveAlias("cat")
	c.DeleteTags(cat)
	if _, err := db.Export(c); err != nil {
		t.Fatal(err)
	}

	st, err := db.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if st.Tags != 1 {
		t.Errorf("tags = %d, want 1", st.Tags)
	}
	paths, err := db.PathsWithTag("cat")
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 0 {
		t.Errorf("stale tag rows survived: %v", paths)
	}
	var edges int
	if err := db.conn.QueryRow(`SELECT count(*) FROM tag_implies`).Scan(&edges); err != nil {
		t.Fatal(err)
	}
	if edges != 0 {
		t.Errorf("tag_implies rows = %d, want 0", edges)
	}
}

func TestTagUsage(t *testing.T) {
	db := testDB(t)
	c, _ := sample(t)
	if _, err := db.Export(c); err != nil {
		t.Fatal(err)
	}
	got, err := db.TagUsage()
	if err != nil {
		t.Fatal(err)
	}
	want := []TagCount{{Name: "cat", Entries: 2}, {Name: "animal", Entries: 0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("TagUsage mismatch (-want +got):\n%s", diff)
	}
}

func TestSearch(t *testing.T) {
	db := testDB(t)
	c, root := sample(t)
	if _, err := db.Export(c); err != nil {
		t.Fatal(err)
	}
	results, err := db.Search("cat", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Path != filepath.Join(root, "a.png") && results[1].Path != filepath.Join(root, "a.png") {
		t.Errorf("a.png missing from %v", results)
	}
}

func TestSnapshotChecksum(t *testing.T) {
	db := testDB(t)
	if _, err := db.SnapshotChecksum(); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("before export: err = %v, want ErrNotFound", err)
	}

	c, _ := sample(t)
	if _, err := db.Export(c); err != nil {
		t.Fatal(err)
	}
	got, err := db.SnapshotChecksum()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "snap.db")
	if err := c.Save(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := checksum.Hex(data); got != want {
		t.Errorf("checksum = %s, want %s", got, want)
	}
}
