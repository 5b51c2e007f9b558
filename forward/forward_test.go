package forward

import (
	"testing"

	tt "github.com/rekki/go-search-core/types"
)

func kw(id tt.KeywordId) KeywordEntry {
	return KeywordEntry{KeywordID: id, TFBoost: 1, Occurrences: []Occurrence{{AttributeID: 0, Positions: []uint32{0}}}}
}

func TestAddRecordDuplicate(t *testing.T) {
	idx := New()
	if _, err := idx.AddRecord("a", []KeywordEntry{kw(1)}, 1, nil, nil, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.AddRecord("a", []KeywordEntry{kw(2)}, 1, nil, nil, nil); err != ErrDuplicatePrimaryKey {
		t.Fatalf("expected ErrDuplicatePrimaryKey, got %v", err)
	}
}

func TestLookupExternalLifecycle(t *testing.T) {
	idx := New()
	id, err := idx.AddRecord("a", []KeywordEntry{kw(1)}, 1, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	res, _ := idx.LookupExternal("a")
	if res != ToBeInserted {
		t.Fatalf("expected ToBeInserted before merge, got %v", res)
	}

	idx.Merge(nil)
	res, gotID := idx.LookupExternal("a")
	if res != PresentInReadAndWriteView || gotID != id {
		t.Fatalf("expected present after merge, got %v id=%d", res, gotID)
	}

	if err := idx.MarkDeleted(id); err != nil {
		t.Fatal(err)
	}
	res, _ = idx.LookupExternal("a")
	if res != AbsentOrToBeDeleted {
		t.Fatalf("expected absent after delete, got %v", res)
	}
}

func TestHasWordInRangeAndOffset(t *testing.T) {
	idx := New()
	_, err := idx.AddRecord("a", []KeywordEntry{kw(3), kw(7), kw(9)}, 1, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	idx.Merge(nil)
	rv := idx.ReadView()

	id, entry, ok := rv.HasWordInRange(0, 5, 8, nil)
	if !ok || id != 7 || entry.KeywordID != 7 {
		t.Fatalf("expected to find keyword 7, got id=%d ok=%v", id, ok)
	}

	off, ok := rv.KeywordOffset(0, 9)
	if !ok || off != 2 {
		t.Fatalf("expected offset 2, got %d ok=%v", off, ok)
	}

	if !rv.ContainsKeyword(0, 3) {
		t.Fatal("expected bitmap membership for keyword 3")
	}
	if rv.ContainsKeyword(0, 100) {
		t.Fatal("expected no membership for keyword 100")
	}
}

func TestRemapOnReassignment(t *testing.T) {
	idx := New()
	_, err := idx.AddRecord("a", []KeywordEntry{kw(10), kw(20)}, 1, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	idx.Merge(map[tt.KeywordId]tt.KeywordId{10: 1000, 20: 5})
	rv := idx.ReadView()
	kws := rv.Records[0].Keywords
	if len(kws) != 2 || kws[0].KeywordID != 5 || kws[1].KeywordID != 1000 {
		t.Fatalf("expected remapped+resorted [5,1000], got %v", kws)
	}
}

func TestRecordAcl(t *testing.T) {
	acl := NewRecordAcl([]string{"b", "a"})
	if !acl.HasRole("a") || !acl.HasRole("b") {
		t.Fatal("expected roles a and b present")
	}
	acl.Modify([]string{"c"}, OpAppend)
	if !acl.HasRole("c") {
		t.Fatal("expected role c after append")
	}
	acl.Modify([]string{"a"}, OpDelete)
	if acl.HasRole("a") {
		t.Fatal("expected role a removed")
	}
}
