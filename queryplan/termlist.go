package queryplan

import (
	"container/heap"

	"github.com/rekki/go-search-core/activenode"
	"github.com/rekki/go-search-core/forward"
	"github.com/rekki/go-search-core/inverted"
	"github.com/rekki/go-search-core/snapshot"
	tt "github.com/rekki/go-search-core/types"
)

// candidateKeyword is one trie keyword matched by a term leaf, paired with
// the edit distance it matched at (0 for exact/prefix).
type candidateKeyword struct {
	id       tt.KeywordId
	distance int
}

// expandCandidateKeywords resolves a TERM leaf's keyword against the trie:
// exact lookup for TermComplete, the descendant id range for TermPrefix,
// and — when editDistance > 0 — every trie node the ActiveNodeSet reaches,
// unioned with the exact/prefix result per §4.7's "fuzzy fallback".
func expandCandidateKeywords(keyword string, termType TermType, editDistance int, snap snapshot.Bundle) []candidateKeyword {
	var out []candidateKeyword
	seen := map[tt.KeywordId]bool{}
	add := func(id tt.KeywordId, dist int) {
		if !seen[id] {
			seen[id] = true
			out = append(out, candidateKeyword{id: id, distance: dist})
		}
	}

	switch termType {
	case TermComplete:
		if n, ok := snap.Trie.Lookup(keyword); ok {
			add(n.ID, 0)
		}
	case TermPrefix:
		if idx, ok := snap.Trie.LookupPrefixNode(keyword); ok {
			lo, hi := snap.Trie.DescendantsIDRange(idx)
			if lo <= hi {
				for _, kid := range snap.Trie.ByIDRange(lo, hi) {
					add(kid, 0)
				}
			}
		}
	}

	if editDistance > 0 {
		var s *activenode.Set
		if snap.ActiveNodes != nil {
			s = snap.ActiveNodes.Resolve(snap.Trie, editDistance, keyword)
		} else {
			s = activenode.New(snap.Trie, editDistance)
			for _, r := range keyword {
				s.Extend(r)
			}
		}
		var hits []activenode.Hit
		if termType == TermPrefix {
			hits = s.IteratePrefix()
		} else {
			hits = s.Iterate()
		}
		for _, h := range hits {
			add(h.KeywordID, h.Distance)
		}
	}
	return out
}

// scoredHeapItem is one lane of the k-way merge over matched keywords'
// inverted lists, each already sorted by score descending.
type scoredHeapItem struct {
	postings []inverted.Posting
	pos      int
	distance int
}

type scoreHeap []*scoredHeapItem

func (h scoreHeap) Len() int { return len(h) }
func (h scoreHeap) Less(i, j int) bool {
	return h[i].postings[h[i].pos].Score > h[j].postings[h[j].pos].Score
}
func (h scoreHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *scoreHeap) Push(x interface{}) { *h = append(*h, x.(*scoredHeapItem)) }
func (h *scoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// unionTermVirtualList is UnionLowestLevelTermVirtualList: it interleaves
// every matched keyword's inverted list through a heap so the combined
// stream comes out in descending-score order, applying the term's
// attribute filter and edit-distance-aware score penalty as it goes.
func unionTermVirtualList(keywords []candidateKeyword, attr tt.AttributeFilter, boost float32, snap snapshot.Bundle) []Hit {
	h := &scoreHeap{}
	for _, kw := range keywords {
		postings := snap.Inverted.Iter(kw.id)
		if len(postings) == 0 {
			continue
		}
		heap.Push(h, &scoredHeapItem{postings: postings, distance: kw.distance})
	}
	heap.Init(h)

	byRecord := map[tt.InternalRecordId]float32{}
	order := []tt.InternalRecordId{}
	for h.Len() > 0 {
		item := (*h)[0]
		p := item.postings[item.pos]
		item.pos++
		if item.pos >= len(item.postings) {
			heap.Pop(h)
		} else {
			heap.Fix(h, 0)
		}

		if !snap.Forward.IsValid(p.RecordID) {
			continue
		}
		if len(attr.Attributes) > 0 {
			if _, _, ok := snap.Forward.HasWordInRange(p.RecordID, 0, ^tt.KeywordId(0), &attr); !ok {
				continue
			}
		}
		penalty := float32(1)
		if item.distance > 0 {
			penalty = 1.0 / float32(item.distance+1)
		}
		score := p.Score * boost * penalty * recordBoostOf(p.RecordID, snap.Forward)
		if _, ok := byRecord[p.RecordID]; !ok {
			order = append(order, p.RecordID)
		}
		byRecord[p.RecordID] += score
	}

	hits := make([]Hit, len(order))
	for i, rid := range order {
		hits[i] = Hit{RecordID: rid, Score: byRecord[rid]}
	}
	sortHitsByScore(hits)
	return hits
}

func recordBoostOf(rid tt.InternalRecordId, fw *forward.ReadView) float32 {
	b := fw.RecordBoost(rid)
	if b == 0 {
		return 1
	}
	return b
}
