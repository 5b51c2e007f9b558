package activenode

import (
	"testing"

	"github.com/rekki/go-search-core/trie"
)

func buildTrie(words ...string) *trie.ReadView {
	tr := trie.New()
	for _, w := range words {
		tr.AddKeyword(w)
	}
	tr.Merge()
	return tr.ReadView()
}

func extendAll(s *Set, q string) {
	for _, r := range q {
		s.Extend(r)
	}
}

func TestExactMatchZeroEditDistance(t *testing.T) {
	rv := buildTrie("pink", "floyd", "zeppelin")
	s := New(rv, 0)
	extendAll(s, "pink")

	hits := s.Iterate()
	if len(hits) != 1 || hits[0].Distance != 0 {
		t.Fatalf("expected exactly one zero-distance hit, got %+v", hits)
	}
	n := rv.Nodes[hits[0].NodeIdx]
	if !n.IsTerm || n.ID != hits[0].KeywordID {
		t.Fatalf("expected terminal node for 'pink', got %+v", n)
	}
}

func TestFuzzyWithinBudget(t *testing.T) {
	rv := buildTrie("pink", "pint", "pine")
	s := New(rv, 1)
	extendAll(s, "pino") // one substitution away from each of pine/pint/pink

	hits := s.Iterate()
	if len(hits) == 0 {
		t.Fatal("expected at least one fuzzy hit within budget 1")
	}
	for _, h := range hits {
		if h.Distance > 1 {
			t.Fatalf("hit %+v exceeds edit-distance budget", h)
		}
	}
	found := map[string]bool{}
	for _, h := range hits {
		n, ok := rv.ByID(h.KeywordID)
		if !ok {
			t.Fatal("hit keyword id not resolvable")
		}
		found[textOf(rv, n)] = true
	}
	if !found["pine"] || !found["pint"] {
		t.Fatalf("expected pine and pint within distance 1 of pino, got %v", found)
	}
	if !found["pink"] {
		t.Fatalf("pink is distance 1 from pino (o->k), should be within budget 1, got %v", found)
	}
}

func TestOrderedByDistanceThenID(t *testing.T) {
	rv := buildTrie("cat", "cats", "bat")
	s := New(rv, 2)
	extendAll(s, "cat")

	hits := s.Iterate()
	for i := 1; i < len(hits); i++ {
		if hits[i].Distance < hits[i-1].Distance {
			t.Fatalf("hits not ordered by ascending distance: %+v", hits)
		}
		if hits[i].Distance == hits[i-1].Distance && hits[i].KeywordID < hits[i-1].KeywordID {
			t.Fatalf("equal-distance hits not ordered by ascending id: %+v", hits)
		}
	}
}

func textOf(rv *trie.ReadView, nodeIdx int32) string {
	var runes []rune
	cur := nodeIdx
	for cur != 0 {
		n := rv.Nodes[cur]
		runes = append([]rune{n.Ch}, runes...)
		cur = n.Parent
	}
	return string(runes)
}

func TestCacheReusesLongestPrefix(t *testing.T) {
	rv := buildTrie("pink", "floyd")
	c := NewCache(10)

	s1 := c.Resolve(rv, 1, "pin")
	hits1 := s1.Iterate()

	s2 := c.Resolve(rv, 1, "pink")
	hits2 := s2.Iterate()

	// Extending from the cached "pin" set should reach the same result as
	// a fresh set built directly for "pink".
	fresh := New(rv, 1)
	extendAll(fresh, "pink")
	freshHits := fresh.Iterate()

	if len(hits2) != len(freshHits) {
		t.Fatalf("cached resolve diverged from fresh computation: %+v vs %+v", hits2, freshHits)
	}
	_ = hits1
}
