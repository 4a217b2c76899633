package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/cowbump/internal/apperr"
	"github.com/starford/cowbump/internal/index"
	"github.com/starford/cowbump/internal/testutil"
)

// openCatalog creates a root with files and a catalog whose snapshot
// files live inside the root.
func openCatalog(t *testing.T, files ...string) (*Catalog, string) {
	t.Helper()
	root, _ := testutil.TestRoot(t, files...)
	k, err := Open(Options{
		Root:       root,
		DBPath:     filepath.Join(root, "cowbump.db"),
		BackupPath: filepath.Join(root, "cowbump.db.bak"),
	}, testutil.Logger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := k.Reconcile(); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	return k, root
}

func reopen(t *testing.T, root string) *Catalog {
	t.Helper()
	k, err := Open(Options{
		Root:       root,
		DBPath:     filepath.Join(root, "cowbump.db"),
		BackupPath: filepath.Join(root, "cowbump.db.bak"),
	}, testutil.Logger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return k
}

func TestOpen_MissingSnapshotStartsEmpty(t *testing.T) {
	root, _ := testutil.TestRoot(t)
	k := reopen(t, root)
	if n := k.Collection().Entries().Len(); n != 0 {
		t.Errorf("entries = %d, want 0", n)
	}
}

func TestOpen_CorruptSnapshot(t *testing.T) {
	root, _ := testutil.TestRoot(t)
	if err := os.WriteFile(filepath.Join(root, "cowbump.db"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(Options{
		Root:       root,
		DBPath:     filepath.Join(root, "cowbump.db"),
		BackupPath: filepath.Join(root, "cowbump.db.bak"),
	}, testutil.Logger())
	if !errors.Is(err, apperr.ErrCorrupt) {
		t.Errorf("err = %v, want ErrCorrupt", err)
	}
}

func TestSaveAndReopen(t *testing.T) {
	k, root := openCatalog(t, "a.png", "b.png")
	if err := k.TagEntry("a.png", []string{"cat"}, true); err != nil {
		t.Fatal(err)
	}
	if err := k.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	k2 := reopen(t, root)
	rep, err := k2.Reconcile()
	if err != nil {
		t.Fatal(err)
	}
	if rep.Changed() {
		t.Errorf("reconcile after reopen changed %+v; snapshot files must not be tracked", rep)
	}
	info, err := k2.Describe("a.png")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"cat"}, info.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
}

func TestBackupAndRestore(t *testing.T) {
	k, _ := openCatalog(t, "a.png")
	if err := k.TagEntry("a.png", []string{"keep"}, true); err != nil {
		t.Fatal(err)
	}
	if err := k.Backup(); err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if err := k.TagEntry("a.png", []string{"later"}, true); err != nil {
		t.Fatal(err)
	}

	if err := k.RestoreBackup(); err != nil {
		t.Fatalf("RestoreBackup: %v", err)
	}
	info, err := k.Describe("a.png")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"keep"}, info.Tags); diff != "" {
		t.Errorf("tags after restore (-want +got):\n%s", diff)
	}
}

func TestRestoreBackup_Missing(t *testing.T) {
	k, _ := openCatalog(t, "a.png")
	if err := k.RestoreBackup(); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestQuery(t *testing.T) {
	k, _ := openCatalog(t, "beach.png", "cat.png", "dog.png")
	if err := k.TagEntry("cat.png", []string{"cat"}, true); err != nil {
		t.Fatal(err)
	}
	if err := k.TagEntry("dog.png", []string{"dog"}, true); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		query   string
		paths   []string
		unknown []string
	}{
		{"", []string{"beach.png", "cat.png", "dog.png"}, nil},
		{"cat", []string{"cat.png"}, nil},
		{"!cat", []string{"beach.png", "dog.png"}, nil},
		{":no-tag", []string{"beach.png"}, nil},
		{"fn:BEA", []string{"beach.png"}, nil},
		{"cat bird", []string{"cat.png"}, []string{"bird"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res, err := k.Query(tt.query, false)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if diff := cmp.Diff(tt.paths, res.Paths); diff != "" {
				t.Errorf("paths mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.unknown, res.Unknown); diff != "" {
				t.Errorf("unknown mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := k.Query("cat !cat", false); !errors.Is(err, apperr.ErrAmbiguous) {
		t.Errorf("contradiction: err = %v, want ErrAmbiguous", err)
	}
}

func TestQuery_CanonicalText(t *testing.T) {
	k, _ := openCatalog(t, "beach.png", "dog.png")
	ids, err := k.ResolveTags([]string{"dog"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := k.Collection().AddAlias(ids[0], "doggo"); err != nil {
		t.Fatal(err)
	}
	res, err := k.Query("fn:BEA   !doggo", false)
	if err != nil {
		t.Fatal(err)
	}
	if want := "!dog fn:bea"; res.Query != want {
		t.Errorf("Query = %q, want %q", res.Query, want)
	}
	empty, err := k.Query("", true)
	if err != nil {
		t.Fatal(err)
	}
	if empty.Query != "" || len(empty.Paths) != 2 {
		t.Errorf("empty query = %+v", empty)
	}
}

func TestQuery_ExpandImplications(t *testing.T) {
	k, _ := openCatalog(t, "cat.png", "rock.png")
	if err := k.TagEntry("cat.png", []string{"cat"}, true); err != nil {
		t.Fatal(err)
	}
	ids, err := k.ResolveTags([]string{"cat", "animal"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := k.Collection().AddImplication(ids[0], ids[1]); err != nil {
		t.Fatal(err)
	}

	direct, _ := k.Query("animal", false)
	if len(direct.Paths) != 0 {
		t.Errorf("direct = %v, want none", direct.Paths)
	}
	expanded, _ := k.Query("animal", true)
	if diff := cmp.Diff([]string{"cat.png"}, expanded.Paths); diff != "" {
		t.Errorf("expanded mismatch (-want +got):\n%s", diff)
	}
}

func TestTagEntry_UnknownWithoutCreate(t *testing.T) {
	k, _ := openCatalog(t, "a.png")
	if err := k.TagEntry("a.png", []string{"nope"}, false); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := k.TagEntry("missing.png", []string{"x"}, true); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUntagEntry(t *testing.T) {
	k, _ := openCatalog(t, "a.png")
	if err := k.TagEntry("a.png", []string{"x", "y"}, true); err != nil {
		t.Fatal(err)
	}
	if err := k.UntagEntry("a.png", []string{"x"}); err != nil {
		t.Fatal(err)
	}
	info, _ := k.Describe("a.png")
	if diff := cmp.Diff([]string{"y"}, info.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
}

func TestTags(t *testing.T) {
	k, _ := openCatalog(t, "a.png", "b.png")
	_ = k.TagEntry("a.png", []string{"cat"}, true)
	_ = k.TagEntry("b.png", []string{"cat"}, true)
	ids, _ := k.ResolveTags([]string{"cat", "animal"}, true)
	_ = k.Collection().AddAlias(ids[0], "kitty")
	_ = k.Collection().AddImplication(ids[0], ids[1])

	want := []TagInfo{
		{ID: ids[0], Names: []string{"cat", "kitty"}, Implies: []string{"animal"}, Entries: 2},
		{ID: ids[1], Names: []string{"animal"}, Entries: 0},
	}
	if diff := cmp.Diff(want, k.Tags()); diff != "" {
		t.Errorf("Tags mismatch (-want +got):\n%s", diff)
	}
}

func TestSequences(t *testing.T) {
	k, _ := openCatalog(t, "a.png", "b.png")
	seq := k.Collection().AddSequence("trip")
	if err := k.AppendToSequence("trip", "b.png", "a.png", "b.png"); err != nil {
		t.Fatal(err)
	}
	got := k.Sequences()
	want := []SequenceInfo{{ID: seq, Name: "trip", Paths: []string{"b.png", "a.png", "b.png"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Sequences mismatch (-want +got):\n%s", diff)
	}
	info, _ := k.Describe("a.png")
	if diff := cmp.Diff([]string{"trip"}, info.Sequences); diff != "" {
		t.Errorf("Describe sequences (-want +got):\n%s", diff)
	}
	if err := k.AppendToSequence("nope", "a.png"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSequenceEdits(t *testing.T) {
	k, _ := openCatalog(t, "a.png", "b.png")
	k.Collection().AddSequence("trip")
	k.Collection().AddSequence("other")
	if err := k.AppendToSequence("trip", "a.png", "b.png", "a.png"); err != nil {
		t.Fatal(err)
	}

	if err := k.RemoveFromSequence("trip", "a.png"); err != nil {
		t.Fatalf("RemoveFromSequence: %v", err)
	}
	if err := k.RenameSequence("trip", "holiday"); err != nil {
		t.Fatalf("RenameSequence: %v", err)
	}
	if err := k.RenameSequence("holiday", "other"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("rename onto existing name: err = %v, want ErrAlreadyExists", err)
	}
	if _, err := k.SequenceByName("trip"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("old name still resolves: %v", err)
	}
	seqs := k.Sequences()
	if seqs[0].Name != "holiday" {
		t.Errorf("name = %q, want holiday", seqs[0].Name)
	}
	if diff := cmp.Diff([]string{"b.png"}, seqs[0].Paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}

	if err := k.DeleteSequence("holiday"); err != nil {
		t.Fatalf("DeleteSequence: %v", err)
	}
	if len(k.Sequences()) != 1 {
		t.Errorf("sequences = %+v, want only other", k.Sequences())
	}
	info, _ := k.Describe("b.png")
	if len(info.Sequences) != 0 {
		t.Errorf("b.png still in %v", info.Sequences)
	}
	if err := k.DeleteSequence("holiday"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestMoveAndRemove(t *testing.T) {
	k, root := openCatalog(t, "a.png", "b.png")
	if err := k.Move("a.png", "renamed.png"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "renamed.png")); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}
	if _, err := k.EntryID("renamed.png"); err != nil {
		t.Errorf("EntryID after move: %v", err)
	}

	if err := k.Remove("b.png"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "b.png")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("b.png still on disk: %v", err)
	}
	if _, err := k.EntryID("b.png"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("b.png still tracked: %v", err)
	}
}

func TestIgnore(t *testing.T) {
	k, root := openCatalog(t)
	cases := map[string]bool{
		filepath.Join(root, "cowbump.db"):              true,
		filepath.Join(root, "cowbump.db.bak"):          true,
		filepath.Join(root, ".cowbump-tmp-123"):        true,
		filepath.Join(root, "photo.png"):               false,
		filepath.Join(root, "album", "cowbump.db.png"): false,
	}
	for p, want := range cases {
		if got := k.Ignore(p); got != want {
			t.Errorf("Ignore(%s) = %v, want %v", p, got, want)
		}
	}
}

func TestExport(t *testing.T) {
	k, _ := openCatalog(t, "a.png", "b.png")
	_ = k.TagEntry("a.png", []string{"cat"}, true)

	db, err := index.Open(filepath.Join(t.TempDir(), "export.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	st, err := k.Export(db)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if want := (index.Stats{Entries: 2, Tags: 1}); st != want {
		t.Errorf("stats = %+v, want %+v", st, want)
	}
}
