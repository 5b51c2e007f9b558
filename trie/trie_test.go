package trie

import (
	"sort"
	"testing"

	tt "github.com/rekki/go-search-core/types"
)

func TestAddKeywordIdempotent(t *testing.T) {
	tr := New()
	id1 := tr.AddKeyword("hello")
	id2 := tr.AddKeyword("hello")
	if id1 != id2 {
		t.Fatalf("expected idempotent id, got %d != %d", id1, id2)
	}
}

func TestOrderingInvariant(t *testing.T) {
	tr := New()
	words := []string{"banana", "apple", "cherry", "app", "appetite", "zebra", "a"}
	for _, w := range words {
		tr.AddKeyword(w)
	}
	tr.Merge()

	rv := tr.ReadView()
	type pair struct {
		text string
		id   tt.KeywordId
	}
	var pairs []pair
	for _, w := range words {
		n, ok := rv.Lookup(w)
		if !ok {
			t.Fatalf("missing %q", w)
		}
		pairs = append(pairs, pair{w, n.ID})
	}

	sorted := append([]pair(nil), pairs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].text < sorted[j].text })
	byID := append([]pair(nil), pairs...)
	sort.Slice(byID, func(i, j int) bool { return byID[i].id < byID[j].id })

	for i := range sorted {
		if sorted[i].text != byID[i].text {
			t.Fatalf("ordering invariant violated: lexicographic order %v != id order %v", sorted, byID)
		}
	}
}

func TestDescendantsIDRange(t *testing.T) {
	tr := New()
	tr.AddKeyword("aaa0")
	for i := 1; i <= 40; i++ {
		tr.AddKeyword("aaa" + itoa(i))
	}
	tr.AddKeyword("aaaz")
	tr.Merge()

	rv := tr.ReadView()
	idx, ok := rv.LookupPrefixNode("aaa")
	if !ok {
		t.Fatal("expected prefix node")
	}
	lo, hi := rv.DescendantsIDRange(idx)
	if lo > hi {
		t.Fatalf("empty range lo=%d hi=%d", lo, hi)
	}
	for i := 1; i <= 40; i++ {
		n, ok := rv.Lookup("aaa" + itoa(i))
		if !ok {
			t.Fatalf("missing aaa%d", i)
		}
		if n.ID < lo || n.ID > hi {
			t.Fatalf("id %d out of descendant range [%d,%d]", n.ID, lo, hi)
		}
	}
}

func TestReassignmentOnGapExhaustion(t *testing.T) {
	tr := New()
	// Insert keywords adjacent enough in sort order that gaps run out
	// quickly, forcing the reassignment path.
	for i := 0; i < 500; i++ {
		tr.AddKeyword("k" + itoa(i))
	}
	mapping := tr.Merge()
	_ = mapping // may or may not be non-nil depending on gap exhaustion, both are valid

	rv := tr.ReadView()
	// After reassignment (if any), ordering invariant must still hold.
	var ids []tt.KeywordId
	var texts []string
	for i := 0; i < 500; i++ {
		w := "k" + itoa(i)
		n, ok := rv.Lookup(w)
		if !ok {
			t.Fatalf("missing %q after reassignment", w)
		}
		ids = append(ids, n.ID)
		texts = append(texts, w)
	}
	for i := 0; i < len(texts); i++ {
		for j := i + 1; j < len(texts); j++ {
			if (texts[i] < texts[j]) != (ids[i] < ids[j]) {
				t.Fatalf("ordering violated between %q and %q", texts[i], texts[j])
			}
		}
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
