// Package inverted implements the per-keyword posting lists: the read
// view for each keyword id is sorted by score descending so operators can
// consume it monotonically for top-K threshold algorithms; the write view
// accumulates a delta tail until the next merge.
package inverted

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	tt "github.com/rekki/go-search-core/types"
)

// Posting is one (record, score) pair in a keyword's list.
type Posting struct {
	RecordID tt.InternalRecordId
	Score    float32
}

// RankerFunc computes a posting's final score from its raw term frequency
// and boost inputs; the default multiplies the supplied score by the
// record boost, but
// callers (the Indexer, informed by the schema's record-boost expression)
// may substitute a custom one.
type RankerFunc func(raw float32, recordBoost float32) float32

func defaultRanker(raw float32, recordBoost float32) float32 { return raw * recordBoost }

// Stats is the cached per-keyword aggregate the histogram manager reads.
type Stats struct {
	DocCount int
	MaxScore float32
}

type bucket struct {
	mu       sync.Mutex
	read     []Posting // sorted by score descending
	pending  []Posting // delta tail awaiting merge
	readOnly Stats
}

// Index is the inverted index: one bucket per keyword id.
type Index struct {
	mu      sync.RWMutex
	buckets map[tt.KeywordId]*bucket
	workers int
	Ranker  RankerFunc

	readView atomic.Pointer[ReadView]
}

// ReadView snapshots every bucket's sorted posting list and stats at once,
// consistent with the snapshot's single-instant guarantee.
type ReadView struct {
	lists   map[tt.KeywordId][]Posting
	stats   map[tt.KeywordId]Stats
	workers int
}

// New creates an inverted index with a fixed merge-worker pool (default 5,
// per §4.3; configurable via workers).
func New(workers int) *Index {
	if workers <= 0 {
		workers = 5
	}
	idx := &Index{buckets: map[tt.KeywordId]*bucket{}, workers: workers, Ranker: defaultRanker}
	idx.readView.Store(&ReadView{lists: map[tt.KeywordId][]Posting{}, stats: map[tt.KeywordId]Stats{}, workers: workers})
	return idx
}

func (idx *Index) ReadView() *ReadView { return idx.readView.Load() }

// AppendPosting is writer-only: it appends to the keyword's pending delta
// tail. Safe to call from a single writer goroutine while readers consume
// the previously published ReadView.
func (idx *Index) AppendPosting(keywordID tt.KeywordId, recordID tt.InternalRecordId, rawScore float32) {
	idx.mu.Lock()
	b, ok := idx.buckets[keywordID]
	if !ok {
		b = &bucket{}
		idx.buckets[keywordID] = b
	}
	idx.mu.Unlock()

	b.mu.Lock()
	b.pending = append(b.pending, Posting{RecordID: recordID, Score: rawScore})
	b.mu.Unlock()
}

// Iter returns the read view's postings for a keyword, sorted by score
// descending.
func (rv *ReadView) Iter(keywordID tt.KeywordId) []Posting {
	return rv.lists[keywordID]
}

// ListLength returns the number of postings in the read view for a
// keyword.
func (rv *ReadView) ListLength(keywordID tt.KeywordId) int {
	return len(rv.lists[keywordID])
}

// StatsFor returns the cached aggregate for a keyword.
func (rv *ReadView) StatsFor(keywordID tt.KeywordId) Stats {
	return rv.stats[keywordID]
}

// ToSnapshot captures the current read view's posting lists for
// persistence (§6: "inverted lists as arrays").
func (rv *ReadView) ToSnapshot() map[tt.KeywordId][]Posting {
	out := make(map[tt.KeywordId][]Posting, len(rv.lists))
	for kid, postings := range rv.lists {
		out[kid] = append([]Posting(nil), postings...)
	}
	return out
}

// FromSnapshot rebuilds a writable Index from persisted posting lists,
// ready to accept further AppendPosting/Merge calls.
func FromSnapshot(lists map[tt.KeywordId][]Posting, workers int) *Index {
	idx := New(workers)
	for kid, postings := range lists {
		maxScore := float32(0)
		if len(postings) > 0 {
			maxScore = postings[0].Score
		}
		idx.buckets[kid] = &bucket{read: append([]Posting(nil), postings...), readOnly: Stats{DocCount: len(postings), MaxScore: maxScore}}
	}
	snap := make(map[tt.KeywordId][]Posting, len(lists))
	stats := make(map[tt.KeywordId]Stats, len(lists))
	for kid, b := range idx.buckets {
		snap[kid] = b.read
		stats[kid] = b.readOnly
	}
	idx.readView.Store(&ReadView{lists: snap, stats: stats, workers: workers})
	return idx
}

// Remap rewrites every bucket key under a trie id-reassignment mapping;
// called by the writer before Merge when the trie just reassigned ids.
func (idx *Index) Remap(mapping map[tt.KeywordId]tt.KeywordId) {
	if len(mapping) == 0 {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	next := make(map[tt.KeywordId]*bucket, len(idx.buckets))
	for kid, b := range idx.buckets {
		nid := kid
		if m, ok := mapping[kid]; ok {
			nid = m
		}
		if existing, ok := next[nid]; ok {
			existing.mu.Lock()
			b.mu.Lock()
			existing.pending = append(existing.pending, b.pending...)
			existing.read = append(existing.read, b.read...)
			b.mu.Unlock()
			existing.mu.Unlock()
		} else {
			next[nid] = b
		}
	}
	idx.buckets = next
}

// Merge runs the fixed worker pool over every keyword with pending
// postings: each worker sorts its keyword's delta by score, computes
// final scores via Ranker, and merges it (descending) with the existing
// read-view array. No new read view is swapped in until every worker
// finishes — an in-flight reader sees either the old state for all
// keywords or the new state for all, per §4.3's merge-concurrency
// invariant. recordBoost supplies the per-record boost multiplier the
// ranker needs.
func (idx *Index) Merge(ctx context.Context, recordBoost func(tt.InternalRecordId) float32) error {
	idx.mu.RLock()
	dirty := make([]tt.KeywordId, 0, len(idx.buckets))
	for kid, b := range idx.buckets {
		b.mu.Lock()
		hasPending := len(b.pending) > 0
		b.mu.Unlock()
		if hasPending {
			dirty = append(dirty, kid)
		}
	}
	buckets := idx.buckets
	idx.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)
	for _, kid := range dirty {
		kid := kid
		b := buckets[kid]
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			b.mu.Lock()
			pending := b.pending
			b.pending = nil
			b.mu.Unlock()

			scored := make([]Posting, len(pending))
			for i, p := range pending {
				scored[i] = Posting{RecordID: p.RecordID, Score: idx.Ranker(p.Score, recordBoost(p.RecordID))}
			}
			sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

			b.mu.Lock()
			merged := mergeDescending(b.read, scored)
			b.read = merged
			maxScore := float32(0)
			if len(merged) > 0 {
				maxScore = merged[0].Score
			}
			b.readOnly = Stats{DocCount: len(merged), MaxScore: maxScore}
			b.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	idx.mu.RLock()
	lists := make(map[tt.KeywordId][]Posting, len(idx.buckets))
	stats := make(map[tt.KeywordId]Stats, len(idx.buckets))
	for kid, b := range idx.buckets {
		b.mu.Lock()
		lists[kid] = append([]Posting(nil), b.read...)
		stats[kid] = b.readOnly
		b.mu.Unlock()
	}
	idx.mu.RUnlock()

	idx.readView.Store(&ReadView{lists: lists, stats: stats, workers: idx.workers})
	return nil
}

func mergeDescending(a, b []Posting) []Posting {
	out := make([]Posting, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].Score >= b[j].Score {
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
