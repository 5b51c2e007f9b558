package queryplan

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rekki/go-search-core/feedback"
	"github.com/rekki/go-search-core/snapshot"
	tt "github.com/rekki/go-search-core/types"
)

// Optimizer owns the query-result LRU cache keyed by a plan's UniqueString,
// per §4.7's "histogram-annotated plan selection with a result cache"
// description. There being only one viable physical shape per logical node
// in this implementation (see DESIGN.md), the optimizer's job reduces to
// annotation plus cache management rather than true plan-space search.
type Optimizer struct {
	cache *lru.Cache[string, []Hit]
}

// NewOptimizer builds an optimizer with a bounded result cache (default
// 1024 entries when capacity <= 0).
func NewOptimizer(capacity int) *Optimizer {
	if capacity <= 0 {
		capacity = 1024
	}
	c, _ := lru.New[string, []Hit](capacity)
	return &Optimizer{cache: c}
}

// Run executes n against snap, annotating it with histogram estimates
// first. A cached result is reused only when fb (the feedback index) has
// no recorded signal for this exact query — the presence of fresh feedback
// means ranking may have changed since the cached result was computed, so
// the optimizer bypasses its own cache in that case (per the "don't serve
// stale ranks once a query has been explicitly reinforced" requirement).
func (o *Optimizer) Run(n *Node, snap snapshot.Bundle) ([]Hit, error) {
	Annotate(n, snap)
	key := n.UniqueString()

	if snap.Feedback != nil && len(snap.Feedback.Lookup(key)) > 0 {
		return o.runAndMaybeCache(n, snap, key, false)
	}
	if hits, ok := o.cache.Get(key); ok {
		return hits, nil
	}
	return o.runAndMaybeCache(n, snap, key, true)
}

func (o *Optimizer) runAndMaybeCache(n *Node, snap snapshot.Bundle, key string, store bool) ([]Hit, error) {
	hits, err := Evaluate(n, snap)
	if err != nil {
		return nil, err
	}
	hits = applyFeedback(hits, key, snap.Feedback)
	if store {
		o.cache.Add(key, hits)
	}
	return hits, nil
}

// applyFeedback is the FeedbackRanker operator: it nudges scores for
// records the feedback index has recorded clicks/conversions for on this
// exact query, weighted by click frequency relative to the query's busiest
// record, then re-sorts.
func applyFeedback(hits []Hit, key string, fb *feedback.ReadView) []Hit {
	if fb == nil {
		return hits
	}
	triples := fb.Lookup(key)
	if len(triples) == 0 {
		return hits
	}
	var maxFreq uint32
	boosts := make(map[tt.InternalRecordId]uint32, len(triples))
	for _, t := range triples {
		boosts[t.RecordID] = t.Frequency
		if t.Frequency > maxFreq {
			maxFreq = t.Frequency
		}
	}
	if maxFreq == 0 {
		return hits
	}
	out := make([]Hit, len(hits))
	copy(out, hits)
	for i, h := range out {
		if f, ok := boosts[h.RecordID]; ok {
			out[i].Score *= 1 + float32(f)/float32(maxFreq)
		}
	}
	sortHitsByScore(out)
	return out
}

// Invalidate drops every cached entry. Called by the writer after a Merge
// that changes ranking (new records, a trie reassignment, a score change)
// since UniqueString keys don't capture index generation.
func (o *Optimizer) Invalidate() {
	o.cache.Purge()
}
