// Package activenode implements the incremental fuzzy-prefix frontier over
// the trie: the set of trie nodes within edit distance k of a query
// string, recomputed one character at a time as the caller types (§4.6).
package activenode

import (
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rekki/go-search-core/trie"
	tt "github.com/rekki/go-search-core/types"
)

// entry is one node currently in the frontier: its full DP row (length =
// len(query)+1) giving the edit distance between the trie path to it and
// every prefix of the query typed so far.
type entry struct {
	nodeIdx int32
	depth   int
	row     []int
}

// Set is one incremental fuzzy frontier, seeded from the empty string and
// grown one rune at a time via Extend.
type Set struct {
	rv    *trie.ReadView
	k     int
	query []rune
	byIdx map[int32]*entry
}

// New seeds an ActiveNodeSet at the trie root for edit-distance bound k.
func New(rv *trie.ReadView, k int) *Set {
	s := &Set{rv: rv, k: k, byIdx: map[int32]*entry{}}
	s.byIdx[0] = &entry{nodeIdx: 0, depth: 0, row: []int{0}}
	return s
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func minRow(row []int) int {
	m := row[0]
	for _, v := range row[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Extend advances the frontier by one more character of the query,
// expanding each currently active node's children per the DP recurrence
// described in §4.6, and pruning any node whose row minimum now exceeds k.
func (s *Set) Extend(c rune) {
	s.query = append(s.query, c)
	m := len(s.query)

	// Order existing entries by depth so a parent's row is always
	// extended before its children's.
	ordered := make([]*entry, 0, len(s.byIdx))
	for _, e := range s.byIdx {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].depth < ordered[j].depth })

	newRowOf := map[int32][]int{0: appendRootColumn(s.byIdx[0].row, m)}
	for _, e := range ordered {
		if e.nodeIdx == 0 {
			continue
		}
		n := s.rv.Nodes[e.nodeIdx]
		parentRow, ok := newRowOf[n.Parent]
		if !ok {
			// Parent already pruned this round; child cannot survive either.
			continue
		}
		last := extendLastColumn(parentRow, e.row, n.Ch, s.query)
		// Copy before appending: e.row may be shared with a cached Set
		// this one was cloned from.
		newRowOf[e.nodeIdx] = append(append([]int(nil), e.row...), last)
	}

	next := map[int32]*entry{}
	for idx, row := range newRowOf {
		if minRow(row) <= s.k {
			depth := 0
			if old, ok := s.byIdx[idx]; ok {
				depth = old.depth
			}
			next[idx] = &entry{nodeIdx: idx, depth: depth, row: row}
		}
	}

	// Discover fresh children of every node still active.
	frontier := make([]*entry, 0, len(next))
	for _, e := range next {
		frontier = append(frontier, e)
	}
	for _, e := range frontier {
		n := s.rv.Nodes[e.nodeIdx]
		for _, c := range n.Children {
			if _, already := next[c]; already {
				continue
			}
			child := s.rv.Nodes[c]
			row := computeFullRow(e.row, child.Ch, s.query)
			if minRow(row) <= s.k {
				next[c] = &entry{nodeIdx: c, depth: e.depth + 1, row: row}
			}
		}
	}

	s.byIdx = next
}

func appendRootColumn(row []int, m int) []int {
	return append(append([]int(nil), row...), m)
}

// extendLastColumn computes only the new last entry of a node's row given
// its own previous row and the parent's already-extended new row — the
// earlier columns never change once computed, since they only depend on
// query prefixes that are already fixed.
func extendLastColumn(parentNewRow []int, oldRow []int, ch rune, query []rune) int {
	m := len(query)
	insertCost := oldRow[len(oldRow)-1] + 1
	deleteCost := parentNewRow[m] + 1
	cost := 1
	if query[m-1] == ch {
		cost = 0
	}
	replaceCost := parentNewRow[m-1] + cost
	return min3(insertCost, deleteCost, replaceCost)
}

// computeFullRow builds a brand new row for a node just discovered this
// round, following the classic per-column recurrence over the entire
// query against the trie path ending at this node.
func computeFullRow(parentRow []int, ch rune, query []rune) []int {
	row := make([]int, len(parentRow))
	row[0] = parentRow[0] + 1
	for j := 1; j < len(row); j++ {
		insertCost := row[j-1] + 1
		deleteCost := parentRow[j] + 1
		cost := 1
		if query[j-1] == ch {
			cost = 0
		}
		replaceCost := parentRow[j-1] + cost
		row[j] = min3(insertCost, deleteCost, replaceCost)
	}
	return row
}

// Hit is one (node, actual edit distance) result from Iterate or
// IteratePrefix. NodeIdx is filled only by Iterate; IteratePrefix leaves
// it zero.
type Hit struct {
	NodeIdx int32
	KeywordID tt.KeywordId
	Distance  int
}

// Iterate yields every active terminal node paired with its actual edit
// distance (the row's last column), ordered by distance ascending then id
// ascending, per §4.6.
func (s *Set) Iterate() []Hit {
	var hits []Hit
	for idx, e := range s.byIdx {
		n := s.rv.Nodes[idx]
		if !n.IsTerm {
			continue
		}
		dist := e.row[len(e.row)-1]
		if dist > s.k {
			continue
		}
		hits = append(hits, Hit{NodeIdx: idx, KeywordID: n.ID, Distance: dist})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].KeywordID < hits[j].KeywordID
	})
	return hits
}

// IteratePrefix yields every keyword reachable under an active node's
// subtree, not just active nodes that are themselves terminal: in prefix
// mode a node within edit distance k of the query is a valid completion
// root regardless of how much trie remains below it, so every descendant
// keyword id inherits that node's distance. Used by fuzzy-prefix term
// matching and Suggest, as opposed to Iterate's exact-length fuzzy match.
func (s *Set) IteratePrefix() []Hit {
	seen := map[tt.KeywordId]bool{}
	var hits []Hit
	add := func(id tt.KeywordId, dist int) {
		if id == tt.InvalidKeywordId || seen[id] {
			return
		}
		seen[id] = true
		hits = append(hits, Hit{KeywordID: id, Distance: dist})
	}
	for idx, e := range s.byIdx {
		dist := minRow(e.row)
		if dist > s.k {
			continue
		}
		n := s.rv.Nodes[idx]
		if n.IsTerm {
			add(n.ID, dist)
		}
		lo, hi := s.rv.DescendantsIDRange(idx)
		if lo <= hi {
			for _, kw := range s.rv.ByIDRange(lo, hi) {
				add(kw, dist)
			}
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].KeywordID < hits[j].KeywordID
	})
	return hits
}

// Cache bounds the number of cached ActiveNodeSets kept by longest-prefix
// match, so an interactive caller typing one character at a time reuses
// the previous set instead of recomputing from the root (§4.6).
type Cache struct {
	lru *lru.Cache[string, *Set]
}

// NewCache creates an LRU-bounded ActiveNodeSet cache of the given
// capacity.
func NewCache(capacity int) *Cache {
	c, _ := lru.New[string, *Set](capacity)
	return &Cache{lru: c}
}

// Get returns the cached set for the longest prefix of query present in
// the cache, and how many runes of query remain to be applied via Extend.
// A cached set is only reusable if it was built against this same trie
// read view and edit-distance budget — a set built against a since-merged
// trie has node indices that no longer mean what they used to.
func (c *Cache) Get(rv *trie.ReadView, k int, query string) (*Set, int) {
	runes := []rune(query)
	for n := len(runes); n >= 0; n-- {
		prefix := string(runes[:n])
		if s, ok := c.lru.Get(prefix); ok && s.k == k && s.rv == rv {
			return s, n
		}
	}
	return New(rv, k), 0
}

// Put stores the set under the given query string as its cache key.
func (c *Cache) Put(query string, s *Set) {
	c.lru.Add(query, s)
}

// Resolve returns a fully extended ActiveNodeSet for query, reusing the
// longest cached prefix.
func (c *Cache) Resolve(rv *trie.ReadView, k int, query string) *Set {
	s, consumed := c.Get(rv, k, query)
	runes := []rune(query)
	if consumed > 0 && consumed < len(runes) {
		s = s.clone()
	}
	for i := consumed; i < len(runes); i++ {
		s.Extend(runes[i])
	}
	c.Put(query, s)
	return s
}

// clone returns a shallow copy safe to extend without mutating the
// original's query buffer (entries themselves are immutable once built,
// so only the wrapper and query slice need copying).
func (s *Set) clone() *Set {
	byIdx := make(map[int32]*entry, len(s.byIdx))
	for k, v := range s.byIdx {
		byIdx[k] = v
	}
	return &Set{rv: s.rv, k: s.k, query: append([]rune(nil), s.query...), byIdx: byIdx}
}
