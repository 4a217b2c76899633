package collection

import (
	"errors"
	"slices"
	"testing"

	"github.com/starford/cowbump/internal/apperr"
)

func mustTag(t *testing.T, c *Collection, names ...string) Uid {
	t.Helper()
	id, err := c.AddTag(names)
	if err != nil {
		t.Fatalf("AddTag(%v): %v", names, err)
	}
	return id
}

func TestResolveAlias(t *testing.T) {
	c := New()
	id := mustTag(t, c, "cat", "feline")

	for _, word := range []string{"cat", "feline"} {
		got, ok := c.ResolveAlias(word)
		if !ok || got != id {
			t.Errorf("ResolveAlias(%q) = %d, %v; want %d", word, got, ok, id)
		}
	}
	if _, ok := c.ResolveAlias("dog"); ok {
		t.Error("unknown word resolved")
	}
	if _, ok := c.ResolveAlias("Cat"); ok {
		t.Error("resolution must be exact")
	}
}

func TestResolveAlias_LowestIDWins(t *testing.T) {
	c := New()
	first := mustTag(t, c, "red", "shared")
	_ = mustTag(t, c, "blue", "shared")
	got, _ := c.ResolveAlias("shared")
	if got != first {
		t.Errorf("ResolveAlias(shared) = %d, want %d", got, first)
	}
}

func TestAddTag_RejectsEmptyNames(t *testing.T) {
	c := New()
	if _, err := c.AddTag(nil); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("nil names: err = %v", err)
	}
	if _, err := c.AddTag([]string{" "}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("blank name: err = %v", err)
	}
	if _, err := c.AddTag([]string{"x"}, 99); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown implied tag: err = %v", err)
	}
}

func TestTagNames_MustBeQueryable(t *testing.T) {
	bad := []string{"big cat", "tab\tname", "!bang", ":wide", "fn:x"}
	for _, name := range bad {
		t.Run(name, func(t *testing.T) {
			c := New()
			if _, err := c.AddTag([]string{name}); !errors.Is(err, apperr.ErrInvalid) {
				t.Errorf("AddTag(%q): err = %v, want ErrInvalid", name, err)
			}
			id := mustTag(t, c, "ok")
			if err := c.AddAlias(id, name); !errors.Is(err, apperr.ErrInvalid) {
				t.Errorf("AddAlias(%q): err = %v, want ErrInvalid", name, err)
			}
			tag, _ := c.Tag(id)
			if len(tag.Names) != 1 {
				t.Errorf("names = %v, want only ok", tag.Names)
			}
		})
	}

	c := New()
	for _, name := range []string{"fn", "fnord", "a:b", "c!"} {
		if _, err := c.AddTag([]string{name}); err != nil {
			t.Errorf("AddTag(%q): %v", name, err)
		}
	}
}

func TestRemoveAlias_KeepsLastName(t *testing.T) {
	c := New()
	id := mustTag(t, c, "only")
	if err := c.RemoveAlias(id, "only"); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("removing last name: err = %v", err)
	}
	if err := c.AddAlias(id, "other"); err != nil {
		t.Fatal(err)
	}
	if err := c.RemoveAlias(id, "only"); err != nil {
		t.Fatalf("RemoveAlias: %v", err)
	}
	tag, _ := c.Tag(id)
	if tag.Name() != "other" {
		t.Errorf("canonical name = %q, want other", tag.Name())
	}
}

func TestDeleteTags_CascadesToEntries(t *testing.T) {
	c := New()
	e1 := c.insertEntry("/col/e1.png")
	e2 := c.insertEntry("/col/e2.png")
	tag := mustTag(t, c, "doomed")
	keep := mustTag(t, c, "keep")
	for _, e := range []Uid{e1, e2} {
		if _, err := c.AttachTag(e, tag); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := c.AttachTag(e1, keep); err != nil {
		t.Fatal(err)
	}

	c.DeleteTags(tag)

	for _, e := range []Uid{e1, e2} {
		en, _ := c.Entry(e)
		if en.HasTag(tag) {
			t.Errorf("entry %d still has deleted tag", e)
		}
	}
	if c.Tags().Has(tag) {
		t.Error("tag still in store")
	}
	en, _ := c.Entry(e1)
	if !en.HasTag(keep) {
		t.Error("unrelated tag was removed")
	}
}

func TestDeleteTags_LeavesEdgesButReadersSkipThem(t *testing.T) {
	c := New()
	target := mustTag(t, c, "animal")
	src, err := c.AddTag([]string{"cat"}, target)
	if err != nil {
		t.Fatal(err)
	}
	c.DeleteTags(target)

	tag, _ := c.Tag(src)
	if _, ok := tag.Implies[target]; !ok {
		t.Error("edge should be tolerated in place")
	}
	if got := c.Implied(src); len(got) != 0 {
		t.Errorf("Implied = %v, want none", got)
	}
	if got := c.TagName(target); got != UnknownTagName {
		t.Errorf("TagName = %q", got)
	}
}

func TestImpliedClosure_Cycle(t *testing.T) {
	c := New()
	a := mustTag(t, c, "a")
	b := mustTag(t, c, "b")
	d := mustTag(t, c, "d")
	for _, edge := range [][2]Uid{{a, b}, {b, d}, {d, a}} {
		if err := c.AddImplication(edge[0], edge[1]); err != nil {
			t.Fatal(err)
		}
	}
	got := c.ImpliedClosure(a)
	if len(got) != 3 {
		t.Errorf("closure = %v, want all three tags", got)
	}
}

func TestAddImplication_Validation(t *testing.T) {
	c := New()
	a := mustTag(t, c, "a")
	if err := c.AddImplication(a, a); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("self edge: err = %v", err)
	}
	if err := c.AddImplication(a, 42); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing target: err = %v", err)
	}
}

func TestAttachTag(t *testing.T) {
	c := New()
	e := c.insertEntry("/col/p.png")
	tag := mustTag(t, c, "t")

	already, err := c.AttachTag(e, tag)
	if err != nil || already {
		t.Fatalf("first attach = %v, %v", already, err)
	}
	already, err = c.AttachTag(e, tag)
	if err != nil || !already {
		t.Fatalf("second attach = %v, %v", already, err)
	}
	en, _ := c.Entry(e)
	if len(en.Tags) != 1 {
		t.Errorf("tags = %v, want one", en.Tags)
	}
	if _, err := c.AttachTag(999, tag); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing entry: err = %v", err)
	}
	if err := c.DetachTag(e, tag); err != nil {
		t.Fatal(err)
	}
	if en.HasTag(tag) {
		t.Error("tag not detached")
	}
}

func TestCommonTags(t *testing.T) {
	c := New()
	e1 := c.insertEntry("/col/1.png")
	e2 := c.insertEntry("/col/2.png")
	x := mustTag(t, c, "x")
	y := mustTag(t, c, "y")
	z := mustTag(t, c, "z")
	_ = c.AttachTagMulti([]Uid{e1}, y)
	_ = c.AttachTagMulti([]Uid{e1, e2}, x)
	_ = c.AttachTagMulti([]Uid{e2}, z)
	_ = c.AttachTagMulti([]Uid{e2}, y)

	got := c.CommonTags([]Uid{e1, e2})
	if !slices.Equal(got, []Uid{y, x}) {
		t.Errorf("CommonTags = %v, want [%d %d]", got, y, x)
	}
}
