// Package feedback implements the user-feedback index: a bounded,
// least-recently-used set of queries, each remembering the records
// clicked for it so the query planner can boost them on future repeats
// (§4.5).
package feedback

import (
	"container/heap"
	"sort"
	"sync"
	"sync/atomic"

	tt "github.com/rekki/go-search-core/types"
)

// Triple is one (record, frequency, timestamp) feedback observation.
type Triple struct {
	RecordID  tt.InternalRecordId
	Frequency uint32
	Timestamp int64
}

type slot struct {
	query     string
	valid     bool
	writeTail []Triple
	read      []Triple
	prev, next int
}

const sentinel = -1

// Index is the writer-owned feedback structure: a query-keyed slot array
// with a doubly-linked age list threading it, bounded by maxQueries with
// each slot's feedback list bounded by maxPerQuery.
//
// The origin keys slots through a secondary trie over the query string so
// queries sort the same way keywords do; that ordering isn't load-bearing
// here (nothing range-scans feedback queries), so this port keys slots
// with a plain map, which satisfies the same add/lookup/evict contract
// more simply — see DESIGN.md.
type Index struct {
	mu          sync.Mutex
	maxQueries  int
	maxPerQuery int
	slots       []*slot
	byQuery     map[string]int
	free        []int
	head, tail  int
	dirty       map[int]bool

	readView atomic.Pointer[ReadView]
}

// ReadView is the merged, queryable snapshot.
type ReadView struct {
	byQuery     map[string][]Triple
	maxQueries  int
	maxPerQuery int
}

// Lookup returns the merged feedback triples for an exact query string.
func (rv *ReadView) Lookup(query string) []Triple {
	return rv.byQuery[query]
}

// New creates a feedback index bounded by maxQueries distinct queries and
// maxPerQuery feedback triples per query.
func New(maxQueries, maxPerQuery int) *Index {
	idx := &Index{
		maxQueries: maxQueries, maxPerQuery: maxPerQuery,
		byQuery: map[string]int{}, head: sentinel, tail: sentinel, dirty: map[int]bool{},
	}
	idx.readView.Store(&ReadView{byQuery: map[string][]Triple{}, maxQueries: maxQueries, maxPerQuery: maxPerQuery})
	return idx
}

func (idx *Index) ReadView() *ReadView { return idx.readView.Load() }

// ToSnapshot captures the current read view's per-query feedback lists
// for persistence (§6: "the vector of per-query feedback lists").
func (rv *ReadView) ToSnapshot() map[string][]Triple {
	out := make(map[string][]Triple, len(rv.byQuery))
	for q, triples := range rv.byQuery {
		out[q] = append([]Triple(nil), triples...)
	}
	return out
}

// FromSnapshot rebuilds a writable Index from persisted per-query
// feedback, ready to accept further Record calls. The age list is
// rebuilt in the snapshot's iteration order; exact recency ordering
// across a save/load cycle isn't preserved (only membership and
// per-query content are), since §6 doesn't require it beyond round-trip
// search equivalence.
func FromSnapshot(byQuery map[string][]Triple, maxQueries, maxPerQuery int) *Index {
	idx := New(maxQueries, maxPerQuery)
	for q, triples := range byQuery {
		s, _ := idx.slotFor(q)
		idx.slots[s].read = append([]Triple(nil), triples...)
		idx.appendTail(s)
	}
	idx.Merge()
	return idx
}

// Record applies one click/feedback event for a query, per the insertion
// algorithm of §4.5.
func (idx *Index) Record(query string, recID tt.InternalRecordId, timestamp int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	s, isNew := idx.slotFor(query)
	if isNew {
		idx.appendTail(s)
	} else if s != idx.tail {
		idx.unlink(s)
		idx.appendTail(s)
	}

	sl := idx.slots[s]
	for i := range sl.writeTail {
		if sl.writeTail[i].RecordID == recID {
			sl.writeTail[i].Frequency++
			sl.writeTail[i].Timestamp = timestamp
			idx.dirty[s] = true
			return
		}
	}
	sl.writeTail = append(sl.writeTail, Triple{RecordID: recID, Frequency: 1, Timestamp: timestamp})
	idx.dirty[s] = true
}

// slotFor resolves (or creates, evicting the oldest query if at capacity)
// the slot index for query, returning whether it was newly created.
func (idx *Index) slotFor(query string) (int, bool) {
	if i, ok := idx.byQuery[query]; ok {
		return i, false
	}

	var s int
	if len(idx.free) > 0 {
		s = idx.free[len(idx.free)-1]
		idx.free = idx.free[:len(idx.free)-1]
	} else if idx.liveCount() >= idx.maxQueries && idx.maxQueries > 0 {
		s = idx.evictHead()
	} else {
		s = len(idx.slots)
		idx.slots = append(idx.slots, nil)
	}

	idx.slots[s] = &slot{query: query, valid: true, prev: sentinel, next: sentinel}
	idx.byQuery[query] = s
	return s, true
}

func (idx *Index) liveCount() int { return len(idx.byQuery) }

// evictHead frees the oldest query's slot, returning it for reuse.
func (idx *Index) evictHead() int {
	h := idx.head
	old := idx.slots[h]
	delete(idx.byQuery, old.query)
	delete(idx.dirty, h)
	idx.unlink(h)
	return h
}

func (idx *Index) unlink(i int) {
	sl := idx.slots[i]
	if sl.prev != sentinel {
		idx.slots[sl.prev].next = sl.next
	} else if idx.head == i {
		idx.head = sl.next
	}
	if sl.next != sentinel {
		idx.slots[sl.next].prev = sl.prev
	} else if idx.tail == i {
		idx.tail = sl.prev
	}
	sl.prev, sl.next = sentinel, sentinel
}

func (idx *Index) appendTail(i int) {
	sl := idx.slots[i]
	sl.prev = idx.tail
	sl.next = sentinel
	if idx.tail != sentinel {
		idx.slots[idx.tail].next = i
	}
	idx.tail = i
	if idx.head == sentinel {
		idx.head = i
	}
}

type byTimestamp []Triple

func (b byTimestamp) Len() int            { return len(b) }
func (b byTimestamp) Less(i, j int) bool  { return b[i].Timestamp < b[j].Timestamp }
func (b byTimestamp) Swap(i, j int)       { b[i], b[j] = b[j], b[i] }
func (b *byTimestamp) Push(x interface{}) { *b = append(*b, x.(Triple)) }
func (b *byTimestamp) Pop() interface{} {
	old := *b
	n := len(old)
	v := old[n-1]
	*b = old[:n-1]
	return v
}

// Merge sorts each dirty slot's write-tail by record id, merges it into
// the slot's read list, deduplicates equal record ids (combining
// frequency, keeping the max timestamp), and — if the result exceeds
// maxPerQuery — drops the oldest entries via a min-heap on timestamp, per
// §4.5's merge algorithm.
func (idx *Index) Merge() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for s := range idx.dirty {
		sl := idx.slots[s]
		sort.Slice(sl.writeTail, func(i, j int) bool { return sl.writeTail[i].RecordID < sl.writeTail[j].RecordID })
		merged := mergeByRecordID(sl.read, sl.writeTail)
		merged = dedupe(merged)

		if idx.maxPerQuery > 0 && len(merged) > idx.maxPerQuery {
			h := &byTimestamp{}
			*h = append(*h, merged...)
			heap.Init(h)
			for len(*h) > idx.maxPerQuery {
				heap.Pop(h)
			}
			merged = []Triple(*h)
			sort.Slice(merged, func(i, j int) bool { return merged[i].RecordID < merged[j].RecordID })
		}

		sl.read = merged
		sl.writeTail = nil
	}
	idx.dirty = map[int]bool{}

	byQuery := make(map[string][]Triple, len(idx.byQuery))
	for q, s := range idx.byQuery {
		byQuery[q] = append([]Triple(nil), idx.slots[s].read...)
	}
	idx.readView.Store(&ReadView{byQuery: byQuery, maxQueries: idx.maxQueries, maxPerQuery: idx.maxPerQuery})
}

func mergeByRecordID(a, b []Triple) []Triple {
	out := make([]Triple, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].RecordID <= b[j].RecordID {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

func dedupe(in []Triple) []Triple {
	if len(in) == 0 {
		return in
	}
	out := in[:1]
	for _, t := range in[1:] {
		last := &out[len(out)-1]
		if last.RecordID == t.RecordID {
			last.Frequency += t.Frequency
			if t.Timestamp > last.Timestamp {
				last.Timestamp = t.Timestamp
			}
			continue
		}
		out = append(out, t)
	}
	return out
}

// Remap accepts a trie keyword-id reassignment mapping and does nothing
// with it: feedback slots are keyed by the raw query text, not by keyword
// id, so there is nothing to rewrite. Indexer.Commit does not call it.
func (idx *Index) Remap(map[tt.KeywordId]tt.KeywordId) {}
