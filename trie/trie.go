// Package trie implements the ordered keyword dictionary: a prefix tree
// whose terminal node ids preserve the lexicographic ordering of the
// keyword text, so prefix queries can be answered as a closed id range.
//
// The tree itself is never touched by a reader: writers mutate a private
// arena (the "write view"), and Merge publishes an immutable snapshot (the
// "read view") by swapping an atomic pointer. A reader that grabbed a
// snapshot keeps it alive for as long as it holds the reference — the Go
// garbage collector is the refcounting mechanism the design notes call out
// as an acceptable substitute for hazard pointers.
package trie

import (
	"sort"
	"sync"
	"sync/atomic"
)

import tt "github.com/rekki/go-search-core/types"

const rootIndex = int32(-1)

// node is a single write-side arena slot. Children are kept sorted by rune
// so a depth-first walk visits terminals in lexicographic order — that
// property is what lets id assignment preserve string ordering.
type node struct {
	ch       rune
	parent   int32
	children []int32
	isTerm   bool
	id       tt.KeywordId
	prob     float64
}

// ReadNode is the immutable, snapshot-side representation of a trie node.
type ReadNode struct {
	Ch       rune
	Parent   int32
	Children []int32
	IsTerm   bool
	ID       tt.KeywordId
	MinID    tt.KeywordId
	MaxID    tt.KeywordId
	Prob     float64
}

// ReadView is the point-in-time, reference-counted-by-GC snapshot readers
// operate against.
type ReadView struct {
	Nodes   []ReadNode
	byID    map[tt.KeywordId]int32
	version uint64
}

// Lookup resolves a keyword's exact text to its node, if present.
func (rv *ReadView) Lookup(text string) (*ReadNode, bool) {
	if rv == nil || len(rv.Nodes) == 0 {
		return nil, false
	}
	cur := int32(0)
	for _, r := range text {
		child, ok := findChild(rv.Nodes[cur].Children, rv.Nodes, r)
		if !ok {
			return nil, false
		}
		cur = child
	}
	n := &rv.Nodes[cur]
	if !n.IsTerm {
		return nil, false
	}
	return n, true
}

// LookupPrefixNode walks to the node representing a prefix (terminal or
// not), used by prefix term expansion and Suggest.
func (rv *ReadView) LookupPrefixNode(prefix string) (int32, bool) {
	if rv == nil || len(rv.Nodes) == 0 {
		return 0, false
	}
	cur := int32(0)
	for _, r := range prefix {
		child, ok := findChild(rv.Nodes[cur].Children, rv.Nodes, r)
		if !ok {
			return 0, false
		}
		cur = child
	}
	return cur, true
}

func findChild(children []int32, nodes []ReadNode, r rune) (int32, bool) {
	lo, hi := 0, len(children)
	for lo < hi {
		mid := (lo + hi) / 2
		if nodes[children[mid]].Ch < r {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(children) && nodes[children[lo]].Ch == r {
		return children[lo], true
	}
	return 0, false
}

// DescendantsIDRange returns the closed [min,max] keyword-id range covering
// every keyword that has this node as a prefix. A O(1) lookup once the read
// view has been built, per §4.1.
func (rv *ReadView) DescendantsIDRange(nodeIdx int32) (tt.KeywordId, tt.KeywordId) {
	n := rv.Nodes[nodeIdx]
	return n.MinID, n.MaxID
}

// ByID resolves a keyword id back to its node index.
func (rv *ReadView) ByID(id tt.KeywordId) (int32, bool) {
	idx, ok := rv.byID[id]
	return idx, ok
}

// ByIDRange returns every keyword id in the closed range [lo,hi] present
// in this view, ascending. Used to enumerate a prefix node's completions
// by descendant id range (§4.1).
func (rv *ReadView) ByIDRange(lo, hi tt.KeywordId) []tt.KeywordId {
	var out []tt.KeywordId
	for id := range rv.byID {
		if id >= lo && id <= hi {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Trie is the writer-owned keyword dictionary.
type Trie struct {
	mu                 sync.Mutex // writer-exclusive, per §5 single-writer discipline
	nodes              []*node
	needsReassignment  bool
	nextVersion        uint64
	readView           atomic.Pointer[ReadView]
	disableReassign    bool // test hook: force the caller to exercise the gap-exhaustion path
}

// New creates an empty trie with a published empty read view.
func New() *Trie {
	t := &Trie{nodes: []*node{{ch: 0, parent: rootIndex}}}
	t.readView.Store(&ReadView{Nodes: []ReadNode{{Parent: rootIndex}}, byID: map[tt.KeywordId]int32{}})
	return t
}

// ReadView returns the currently published snapshot.
func (t *Trie) ReadView() *ReadView {
	return t.readView.Load()
}

// Snapshot is the gob-serializable form of a ReadView: the node arena in
// index order, with every ReadNode field exported so the arena can be
// rebuilt as-is.
type Snapshot struct {
	Nodes []ReadNode
}

// ToSnapshot captures the current read view for persistence.
func (rv *ReadView) ToSnapshot() Snapshot {
	return Snapshot{Nodes: append([]ReadNode(nil), rv.Nodes...)}
}

// FromSnapshot rebuilds a writable Trie from a persisted Snapshot, ready
// to accept further AddKeyword calls.
func FromSnapshot(s Snapshot) *Trie {
	t := &Trie{nodes: make([]*node, len(s.Nodes))}
	byID := make(map[tt.KeywordId]int32, len(s.Nodes))
	for i, rn := range s.Nodes {
		t.nodes[i] = &node{ch: rn.Ch, parent: rn.Parent, children: append([]int32(nil), rn.Children...), isTerm: rn.IsTerm, id: rn.ID, prob: rn.Prob}
		if rn.IsTerm {
			byID[rn.ID] = int32(i)
		}
	}
	t.readView.Store(&ReadView{Nodes: s.Nodes, byID: byID})
	return t
}

// NeedsReassignment reports whether the writer must force a merge before
// any delete_record can proceed, per §4.1's id-assignment algorithm.
func (t *Trie) NeedsReassignment() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.needsReassignment
}

// AddKeyword is idempotent: it returns the existing id if the keyword is
// already present, otherwise assigns one by splitting the gap between its
// lexicographic neighbors.
func (t *Trie) AddKeyword(text string) tt.KeywordId {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := int32(0)
	for _, r := range text {
		cur = t.ensureChild(cur, r)
	}
	n := t.nodes[cur]
	if n.isTerm {
		return n.id
	}

	pred, hasPred := t.prevTerminal(cur)
	succ, hasSucc := t.nextTerminal(cur)

	var predV, succV int64
	if hasPred {
		predV = int64(pred)
	} else {
		predV = -1
	}
	if hasSucc {
		succV = int64(succ)
	} else {
		succV = int64(^uint32(0)) + 1
	}

	mid := predV + (succV-predV)/2
	// A midpoint of 0 would collide with InvalidKeywordId, so it counts as
	// an exhausted gap too.
	if !t.disableReassign && (succV-predV <= 1 || mid <= 0) {
		t.needsReassignment = true
	}
	if mid < 0 {
		mid = 0
	}
	n.isTerm = true
	n.id = tt.KeywordId(uint32(mid))
	return n.id
}

func (t *Trie) ensureChild(cur int32, r rune) int32 {
	n := t.nodes[cur]
	lo, hi := 0, len(n.children)
	for lo < hi {
		mid := (lo + hi) / 2
		if t.nodes[n.children[mid]].ch < r {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(n.children) && t.nodes[n.children[lo]].ch == r {
		return n.children[lo]
	}
	idx := int32(len(t.nodes))
	t.nodes = append(t.nodes, &node{ch: r, parent: cur})
	n.children = append(n.children, 0)
	copy(n.children[lo+1:], n.children[lo:])
	n.children[lo] = idx
	return idx
}

// prevTerminal finds the terminal id immediately preceding idx in DFS
// (lexicographic) order.
func (t *Trie) prevTerminal(idx int32) (tt.KeywordId, bool) {
	cur := idx
	for cur != rootIndex {
		parent := t.nodes[cur].parent
		if parent == rootIndex {
			return 0, false
		}
		siblings := t.nodes[parent].children
		pos := indexOf(siblings, cur)
		for i := pos - 1; i >= 0; i-- {
			if id, ok := t.rightmostTerminal(siblings[i]); ok {
				return id, true
			}
		}
		if t.nodes[parent].isTerm {
			return t.nodes[parent].id, true
		}
		cur = parent
	}
	return 0, false
}

// nextTerminal mirrors prevTerminal for the successor.
func (t *Trie) nextTerminal(idx int32) (tt.KeywordId, bool) {
	cur := idx
	for cur != rootIndex {
		parent := t.nodes[cur].parent
		if parent == rootIndex {
			return 0, false
		}
		siblings := t.nodes[parent].children
		pos := indexOf(siblings, cur)
		for i := pos + 1; i < len(siblings); i++ {
			if id, ok := t.leftmostTerminal(siblings[i]); ok {
				return id, true
			}
		}
		cur = parent
	}
	return 0, false
}

func (t *Trie) rightmostTerminal(idx int32) (tt.KeywordId, bool) {
	n := t.nodes[idx]
	for i := len(n.children) - 1; i >= 0; i-- {
		if id, ok := t.rightmostTerminal(n.children[i]); ok {
			return id, true
		}
	}
	if n.isTerm {
		return n.id, true
	}
	return 0, false
}

func (t *Trie) leftmostTerminal(idx int32) (tt.KeywordId, bool) {
	n := t.nodes[idx]
	if n.isTerm {
		return n.id, true
	}
	for _, c := range n.children {
		if id, ok := t.leftmostTerminal(c); ok {
			return id, true
		}
	}
	return 0, false
}

func indexOf(s []int32, v int32) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

// ReassignmentMapping maps every keyword's old id to its new id, produced
// by a reassignment pass so ForwardIndex and InvertedIndex can rewrite
// their own id-keyed data.
type ReassignmentMapping map[tt.KeywordId]tt.KeywordId

// Merge rebuilds the read view from the current write-side arena. If a
// gap-exhaustion was flagged by AddKeyword, every terminal is renumbered
// evenly across the 32-bit space first, and the old->new mapping is
// returned so callers can propagate it to the forward and inverted
// indexes (§4.1). Returns nil when no reassignment happened.
func (t *Trie) Merge() ReassignmentMapping {
	t.mu.Lock()
	defer t.mu.Unlock()

	var mapping ReassignmentMapping
	if t.needsReassignment {
		mapping = t.reassignLocked()
		t.needsReassignment = false
	}

	nodes := make([]ReadNode, len(t.nodes))
	for i, n := range t.nodes {
		nodes[i] = ReadNode{Ch: n.ch, Parent: n.parent, Children: append([]int32(nil), n.children...), IsTerm: n.isTerm, ID: n.id, Prob: n.prob}
	}
	byID := make(map[tt.KeywordId]int32, len(nodes))
	for i := range nodes {
		if nodes[i].IsTerm {
			byID[nodes[i].ID] = int32(i)
		}
	}
	computeRanges(nodes, 0)

	t.nextVersion++
	t.readView.Store(&ReadView{Nodes: nodes, byID: byID, version: t.nextVersion})
	return mapping
}

func computeRanges(nodes []ReadNode, idx int32) (tt.KeywordId, tt.KeywordId, bool) {
	n := &nodes[idx]
	var lo, hi tt.KeywordId
	has := false
	if n.IsTerm {
		lo, hi, has = n.ID, n.ID, true
	}
	for _, c := range n.Children {
		clo, chi, ok := computeRanges(nodes, c)
		if !ok {
			continue
		}
		if !has || clo < lo {
			lo = clo
		}
		if !has || chi > hi {
			hi = chi
		}
		has = true
	}
	n.MinID, n.MaxID = lo, hi
	return lo, hi, has
}

// reassignLocked walks the arena in DFS (lexicographic) order and spreads
// new ids evenly across the 32-bit space. Must be called with mu held.
func (t *Trie) reassignLocked() ReassignmentMapping {
	var order []int32
	var walk func(int32)
	walk = func(idx int32) {
		n := t.nodes[idx]
		if n.isTerm {
			order = append(order, idx)
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(0)

	mapping := ReassignmentMapping{}
	if len(order) == 0 {
		return mapping
	}
	step := (uint64(^uint32(0)) - 2) / uint64(len(order)+1)
	if step == 0 {
		step = 1
	}
	for i, idx := range order {
		newID := tt.KeywordId(uint64(i+1) * step)
		old := t.nodes[idx].id
		if old != newID {
			mapping[old] = newID
		}
		t.nodes[idx].id = newID
	}
	return mapping
}

// Bump increments a keyword's hit-probability counter, decaying the old
// value by a factor of 0.999 on each call; the new value reaches readers
// at the next Merge, feeding the suggestion ranker.
func (t *Trie) Bump(id tt.KeywordId, weight float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, n := range t.nodes {
		if n.isTerm && n.id == id {
			n.prob = n.prob*0.999 + weight
			return
		}
	}
}

// TextAt reconstructs a node's keyword text by walking parent pointers to
// the root, used by fuzzy suggestion ranking which discovers nodes via
// ActiveNodeSet.IteratePrefix rather than a prefix walk.
func (rv *ReadView) TextAt(nodeIdx int32) string {
	var runes []rune
	for idx := nodeIdx; idx > 0; idx = rv.Nodes[idx].Parent {
		runes = append(runes, rv.Nodes[idx].Ch)
	}
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

// Suggest ranks completions of prefix by descending node probability,
// ties broken by ascending id, mirroring the suggestion operator in
// original_source which reuses the same subtree-probability field the
// fuzzy UnionLowestLevelSuggestion operator reads.
func (rv *ReadView) Suggest(prefix string, n int) []string {
	start, ok := rv.LookupPrefixNode(prefix)
	if !ok {
		return nil
	}
	type cand struct {
		text string
		prob float64
		id   tt.KeywordId
	}
	var cands []cand
	var walk func(idx int32, text string)
	walk = func(idx int32, text string) {
		nd := rv.Nodes[idx]
		if nd.IsTerm {
			cands = append(cands, cand{text: text, prob: nd.Prob, id: nd.ID})
		}
		for _, c := range nd.Children {
			walk(c, text+string(rv.Nodes[c].Ch))
		}
	}
	walk(start, prefix)

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].prob != cands[j].prob {
			return cands[i].prob > cands[j].prob
		}
		return cands[i].id < cands[j].id
	})
	if n > 0 && len(cands) > n {
		cands = cands[:n]
	}
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.text
	}
	return out
}
