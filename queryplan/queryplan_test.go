package queryplan

import (
	"context"
	"testing"

	"github.com/rekki/go-search-core/activenode"
	"github.com/rekki/go-search-core/feedback"
	"github.com/rekki/go-search-core/forward"
	"github.com/rekki/go-search-core/inverted"
	"github.com/rekki/go-search-core/snapshot"
	"github.com/rekki/go-search-core/trie"
	tt "github.com/rekki/go-search-core/types"
)

// buildSnapshot is a small test harness that tokenizes whitespace-separated
// text into the trie, forward and inverted indexes and publishes a single
// snapshot.Bundle to evaluate plans against.
func buildSnapshot(t *testing.T, docs map[string]string) snapshot.Bundle {
	t.Helper()
	tr := trie.New()
	fw := forward.New()
	inv := inverted.New(2)
	fb := feedback.New(16, 16)

	for extID, text := range docs {
		words := splitWords(text)
		entries := make([]forward.KeywordEntry, 0, len(words))
		seen := map[tt.KeywordId]int{}
		for pos, w := range words {
			id := tr.AddKeyword(w)
			if idx, ok := seen[id]; ok {
				entries[idx].Occurrences[0].Positions = append(entries[idx].Occurrences[0].Positions, uint32(pos))
				continue
			}
			seen[id] = len(entries)
			entries = append(entries, forward.KeywordEntry{
				KeywordID:   id,
				TFBoost:     1,
				StaticScore: 1,
				Occurrences: []forward.Occurrence{{AttributeID: 0, Positions: []uint32{uint32(pos)}}},
			})
		}
		sortEntries(entries)
		rid, err := fw.AddRecord(extID, entries, 1, nil, nil, nil)
		if err != nil {
			t.Fatalf("AddRecord: %v", err)
		}
		for _, e := range entries {
			inv.AppendPosting(e.KeywordID, rid, float32(len(e.Occurrences[0].Positions)))
		}
	}

	mapping := tr.Merge()
	if mapping != nil {
		m := map[tt.KeywordId]tt.KeywordId(mapping)
		inv.Remap(m)
	}
	fw.Merge(map[tt.KeywordId]tt.KeywordId(mapping))
	if err := inv.Merge(context.Background(), func(tt.InternalRecordId) float32 { return 1 }); err != nil {
		t.Fatalf("inverted Merge: %v", err)
	}
	fb.Merge()

	return snapshot.Bundle{Trie: tr.ReadView(), Forward: fw.ReadView(), Inverted: inv.ReadView(), Feedback: fb.ReadView(), ActiveNodes: activenode.NewCache(16)}
}

func splitWords(s string) []string {
	var out []string
	cur := ""
	for _, r := range s {
		if r == ' ' {
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

func sortEntries(e []forward.KeywordEntry) {
	for i := 1; i < len(e); i++ {
		for j := i; j > 0 && e[j].KeywordID < e[j-1].KeywordID; j-- {
			e[j], e[j-1] = e[j-1], e[j]
		}
	}
}

func hitIDs(hits []Hit) []tt.InternalRecordId {
	out := make([]tt.InternalRecordId, len(hits))
	for i, h := range hits {
		out[i] = h.RecordID
	}
	return out
}

func contains(ids []tt.InternalRecordId, id tt.InternalRecordId) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func TestEvaluateTermExactMatch(t *testing.T) {
	snap := buildSnapshot(t, map[string]string{
		"a": "red bicycle for sale",
		"b": "blue car for sale",
	})
	n := Term("bicycle", TermComplete, 0, tt.AttributeFilter{}, 1)
	hits, err := Evaluate(n, snap)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
}

func TestEvaluateAndOr(t *testing.T) {
	snap := buildSnapshot(t, map[string]string{
		"a": "red bicycle for sale",
		"b": "blue car for sale",
		"c": "red car for sale",
	})
	and := And(
		Term("red", TermComplete, 0, tt.AttributeFilter{}, 1),
		Term("car", TermComplete, 0, tt.AttributeFilter{}, 1),
	)
	hits, err := Evaluate(and, snap)
	if err != nil {
		t.Fatalf("Evaluate AND: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 AND hit, got %d", len(hits))
	}

	or := Or(
		Term("bicycle", TermComplete, 0, tt.AttributeFilter{}, 1),
		Term("blue", TermComplete, 0, tt.AttributeFilter{}, 1),
	)
	orHits, err := Evaluate(or, snap)
	if err != nil {
		t.Fatalf("Evaluate OR: %v", err)
	}
	if len(orHits) != 2 {
		t.Fatalf("expected 2 OR hits, got %d", len(orHits))
	}
}

func TestEvaluateAndNot(t *testing.T) {
	snap := buildSnapshot(t, map[string]string{
		"a": "red bicycle for sale",
		"b": "red car for sale",
	})
	plan := And(
		Term("red", TermComplete, 0, tt.AttributeFilter{}, 1),
		Not(Term("bicycle", TermComplete, 0, tt.AttributeFilter{}, 1)),
	)
	hits, err := Evaluate(plan, snap)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit after NOT exclusion, got %d", len(hits))
	}
}

func TestEvaluatePhraseRespectsOrder(t *testing.T) {
	snap := buildSnapshot(t, map[string]string{
		"a": "the quick brown fox",
		"b": "brown the quick fox",
	})
	phrase := Phrase([]string{"quick", "brown"}, 0, tt.AttributeFilter{}, 1)
	hits, err := Evaluate(phrase, snap)
	if err != nil {
		t.Fatalf("Evaluate phrase: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected exactly 1 phrase hit, got %d", len(hits))
	}
}

func TestUniqueStringStableUnderChildReorder(t *testing.T) {
	a := Or(Term("x", TermComplete, 0, tt.AttributeFilter{}, 1), Term("y", TermComplete, 0, tt.AttributeFilter{}, 1))
	b := Or(Term("y", TermComplete, 0, tt.AttributeFilter{}, 1), Term("x", TermComplete, 0, tt.AttributeFilter{}, 1))
	if a.UniqueString() != b.UniqueString() {
		t.Fatalf("expected OR to be order-insensitive: %q vs %q", a.UniqueString(), b.UniqueString())
	}
}

func TestOptimizerCachesResult(t *testing.T) {
	snap := buildSnapshot(t, map[string]string{"a": "red bicycle"})
	opt := NewOptimizer(4)
	n := Term("red", TermComplete, 0, tt.AttributeFilter{}, 1)

	first, err := opt.Run(n, snap)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := opt.Run(n, snap)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("cached run diverged: %d vs %d", len(first), len(second))
	}
}

func TestParseLogicalPlanAndDSL(t *testing.T) {
	q := &Query{Type: "and", Queries: []*Query{
		{Type: "term", Keyword: "red"},
		{Type: "not", Queries: []*Query{{Type: "term", Keyword: "bicycle"}}},
	}}
	n, err := ParseLogicalPlan(q)
	if err != nil {
		t.Fatalf("ParseLogicalPlan: %v", err)
	}
	snap := buildSnapshot(t, map[string]string{
		"a": "red bicycle",
		"b": "red car",
	})
	hits, err := Evaluate(n, snap)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
}
