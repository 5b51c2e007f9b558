// Package search is the embeddable instant-search engine: an ordered
// keyword trie, forward and inverted indexes published through a
// copy-on-write snapshot, a fuzzy active-node prefix set, a feedback
// index, and the logical/physical query plan that ties them together.
package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rekki/go-search-core/activenode"
	"github.com/rekki/go-search-core/feedback"
	"github.com/rekki/go-search-core/forward"
	"github.com/rekki/go-search-core/inverted"
	"github.com/rekki/go-search-core/queryplan"
	"github.com/rekki/go-search-core/snapshot"
	"github.com/rekki/go-search-core/trie"
	tt "github.com/rekki/go-search-core/types"
)

// LookupResult classifies the outcome of LookupRecord, re-exporting
// forward's three-way result so callers never need to import the forward
// package directly.
type LookupResult = forward.LookupResult

const (
	AbsentOrToBeDeleted      = forward.AbsentOrToBeDeleted
	PresentInReadAndWriteView = forward.PresentInReadAndWriteView
	ToBeInserted             = forward.ToBeInserted
)

// AclOp re-exports forward's ACL mutation kind.
type AclOp = forward.Op

const (
	AclAdd    = forward.OpAdd
	AclAppend = forward.OpAppend
	AclDelete = forward.OpDelete
)

// Hit is one scored, externally-addressed search result.
type Hit struct {
	ExternalID string
	RecordID   tt.InternalRecordId
	Score      float32
}

// QueryResults is what Search returns: the page of hits plus the total
// match count and whether the search timed out with partial results
// (§7 TimeoutExpired).
type QueryResults struct {
	Hits      []Hit
	Total     int
	TimedOut bool
}

// Indexer is the top-level handle bundling every component, mirroring the
// teacher's MemOnlyIndex/DirIndex shape: a schema-configured constructor,
// an embedded lock guarding write-side mutation, and thin wrapper methods
// over the lower layers.
type Indexer struct {
	mu sync.Mutex // single-writer discipline (§5); readers never take this

	schema  Schema
	options Options

	trie     *trie.Trie
	forward  *forward.Index
	inverted *inverted.Index
	feedback *feedback.Index

	snapshots   *snapshot.Manager
	optimizer   *queryplan.Optimizer
	activeNodes *activenode.Cache

	pendingWrites int
	tick          uint64

	stopMerge   chan struct{}
	mergeDone   chan struct{}
	mergeNudge  chan struct{} // signaled when pendingWrites crosses Options.MergeThreshold
}

// Create builds a fresh, empty Indexer for the given schema.
func Create(schema Schema, options Options) *Indexer {
	options = options.withDefaults()

	t := trie.New()
	f := forward.New()
	inv := inverted.New(options.InvertedWorkers)
	fb := feedback.New(options.FeedbackMaxQueries, options.FeedbackMaxPerQuery)

	activeNodes := activenode.NewCache(options.ActiveNodeCacheSize)
	ix := &Indexer{
		schema:      schema,
		options:     options,
		trie:        t,
		forward:     f,
		inverted:    inv,
		feedback:    fb,
		snapshots:   snapshot.NewManager(t, f, inv, fb, activeNodes),
		optimizer:   queryplan.NewOptimizer(options.OptimizerCacheSize),
		activeNodes: activeNodes,
	}
	return ix
}

// StartMergeScheduler launches the background goroutine that periodically
// commits pending writes, per §5's merge-scheduler description. Callers
// embedding the Indexer in a longer-lived service call this once after
// Create/Load; short-lived or test usage can call Commit directly instead.
func (ix *Indexer) StartMergeScheduler() {
	ix.mu.Lock()
	if ix.stopMerge != nil {
		ix.mu.Unlock()
		return
	}
	ix.stopMerge = make(chan struct{})
	ix.mergeDone = make(chan struct{})
	ix.mergeNudge = make(chan struct{}, 1)
	ix.mu.Unlock()

	go ix.mergeLoop()
}

// StopMergeScheduler halts the background goroutine and waits for it to
// exit.
func (ix *Indexer) StopMergeScheduler() {
	ix.mu.Lock()
	stop := ix.stopMerge
	done := ix.mergeDone
	ix.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (ix *Indexer) mergeLoop() {
	defer close(ix.mergeDone)
	ticker := time.NewTicker(ix.options.MergeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ix.stopMerge:
			return
		case <-ticker.C:
			ix.runMergeTick()
		case <-ix.mergeNudge:
			ix.runMergeTick()
		}
	}
}

// runMergeTick is one iteration of the merge-scheduler's decision: at
// most one of {merge, histogram refresh} fires per tick, merge taking
// priority when pending writes exist (§9 Open Question decision,
// DESIGN.md).
func (ix *Indexer) runMergeTick() {
	ix.mu.Lock()
	ix.tick++
	tick := ix.tick
	pending := ix.pendingWrites
	ix.mu.Unlock()

	if pending > 0 {
		_ = ix.Commit(context.Background())
		return
	}
	// Merge took priority above when pending > 0, so a quiet tick is free
	// to refresh the optimizer cache instead.
	if tick%uint64(ix.options.HistogramRefreshEvery) == 0 {
		ix.optimizer.Invalidate()
	}
}

// nudgeMerge wakes the background scheduler out of cycle once pending
// writes cross Options.MergeThreshold (§5's write-count-based merge
// trigger, the sibling of the timer-based one in mergeLoop). A full
// channel means a nudge is already queued, which is fine: the scheduler
// only needs to know "there is work", not how many nudges fired.
func (ix *Indexer) nudgeMerge() {
	if ix.mergeNudge == nil {
		return
	}
	select {
	case ix.mergeNudge <- struct{}{}:
	default:
	}
}

// markWrite records one pending write and, once pendingWrites crosses
// Options.MergeThreshold, wakes the background scheduler instead of
// waiting for the next timer tick (§5). Callers hold ix.mu already.
func (ix *Indexer) markWrite() {
	ix.pendingWrites++
	if ix.pendingWrites >= ix.options.MergeThreshold {
		ix.nudgeMerge()
	}
}

// saturateBoost clamps a computed record boost to the finite float32
// range instead of letting it overflow to +/-Inf. The origin stores boost
// in half-precision and is silent on overflow (§9 Open Question); this
// port picks saturation over rejection since boost only affects ranking,
// never correctness.
func saturateBoost(b float32) float32 {
	switch {
	case math.IsNaN(float64(b)):
		return 0
	case b > math.MaxFloat32:
		return math.MaxFloat32
	case b < -math.MaxFloat32:
		return -math.MaxFloat32
	default:
		return b
	}
}

// AddRecord tokenizes r's searchable fields through the schema's
// analyzers, assigns each distinct token a trie keyword id, and appends
// the resulting forward-list entry to the write view. Visible to readers
// only after the next Commit.
func (ix *Indexer) AddRecord(r *Record) (tt.InternalRecordId, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if res, _ := ix.forward.LookupExternal(r.ExternalID); res != forward.AbsentOrToBeDeleted {
		return 0, newErr(DuplicatePrimaryKey, nil)
	}

	entries := ix.buildKeywordEntries(r)
	refining := ix.buildRefiningValues(r)
	acl := forward.NewRecordAcl(r.Roles)
	boost := r.Boost
	if boost == 0 {
		boost = 1
	}
	if ix.schema.RecordBoost != nil {
		boost *= ix.schema.RecordBoost(r)
	}
	boost = saturateBoost(boost)

	rid, err := ix.forward.AddRecord(r.ExternalID, entries, boost, acl, refining, r.Payload)
	if err != nil {
		switch err {
		case forward.ErrDuplicatePrimaryKey:
			return 0, newErr(DuplicatePrimaryKey, err)
		case forward.ErrKeywordLimitExceeded:
			return 0, newErr(KeywordLimitExceeded, err)
		default:
			return 0, newErr(AttributeLimitExceeded, err)
		}
	}
	for _, e := range entries {
		ix.inverted.AppendPosting(e.KeywordID, rid, e.TFBoost)
	}
	ix.markWrite()
	return rid, nil
}

// buildKeywordEntries tokenizes every declared searchable attribute of r
// through its analyzer, assigning word positions in token order and
// bumping the position space per multi-valued instance (§4.2) so a phrase
// match never bridges two separate values of the same attribute.
func (ix *Indexer) buildKeywordEntries(r *Record) []forward.KeywordEntry {
	byKeyword := map[tt.KeywordId]*forward.KeywordEntry{}
	var order []tt.KeywordId

	for _, attr := range ix.schema.Searchable {
		values := r.Fields[attr.Name]
		an := ix.schema.analyzerFor(&attr)
		boost := attr.Boost
		if boost == 0 {
			boost = 1
		}
		for valueIdx, v := range values {
			tokens := an.AnalyzeIndex(v)
			base := uint32(0)
			if attr.MultiValued {
				base = uint32(valueIdx) * tt.MultiValuedAttributePositionBump
			}
			for pos, tok := range tokens {
				id := ix.trie.AddKeyword(tok)
				e, ok := byKeyword[id]
				if !ok {
					e = &forward.KeywordEntry{KeywordID: id}
					byKeyword[id] = e
					order = append(order, id)
				}
				occIdx := -1
				for i := range e.Occurrences {
					if e.Occurrences[i].AttributeID == attr.ID {
						occIdx = i
						break
					}
				}
				if occIdx < 0 {
					e.Occurrences = append(e.Occurrences, forward.Occurrence{AttributeID: attr.ID})
					occIdx = len(e.Occurrences) - 1
				}
				e.Occurrences[occIdx].Positions = append(e.Occurrences[occIdx].Positions, base+uint32(pos))
				e.TFBoost += boost
			}
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	out := make([]forward.KeywordEntry, len(order))
	for i, id := range order {
		out[i] = *byKeyword[id]
	}
	return out
}

func (ix *Indexer) buildRefiningValues(r *Record) []tt.RefiningValue {
	out := make([]tt.RefiningValue, len(ix.schema.Refining))
	for i, decl := range ix.schema.Refining {
		if v, ok := r.Refining[decl.Name]; ok {
			out[i] = v
		} else {
			out[i] = decl.Default
		}
	}
	return out
}

// DeleteRecord marks a record invalid by its primary key; visible to
// readers only after the next Commit.
func (ix *Indexer) DeleteRecord(pk string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	res, id := ix.forward.LookupExternal(pk)
	if res == forward.AbsentOrToBeDeleted {
		return newErr(RecordNotFound, fmt.Errorf("primary key %q not found", pk))
	}
	if err := ix.forward.MarkDeleted(id); err != nil {
		return newErr(RecordNotFound, err)
	}
	ix.markWrite()
	return nil
}

// RecoverRecord un-deletes a record previously removed by DeleteRecord,
// re-associating it with pk (per §8 scenario B's recover-by-internal-id
// flow).
func (ix *Indexer) RecoverRecord(pk string, internalID tt.InternalRecordId) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.forward.Recover(internalID, pk); err != nil {
		if err == forward.ErrDuplicatePrimaryKey {
			return newErr(DuplicatePrimaryKey, err)
		}
		return newErr(RecordNotFound, err)
	}
	ix.markWrite()
	return nil
}

// LookupRecord classifies pk's presence across the read and write views.
func (ix *Indexer) LookupRecord(pk string) (LookupResult, tt.InternalRecordId) {
	return ix.forward.LookupExternal(pk)
}

// AclModifyRoles mutates a record's ACL role set.
func (ix *Indexer) AclModifyRoles(pk string, roles []string, op AclOp) error {
	res, id := ix.forward.LookupExternal(pk)
	if res == forward.AbsentOrToBeDeleted {
		return newErr(RecordNotFound, fmt.Errorf("primary key %q not found", pk))
	}
	if err := ix.forward.ModifyAcl(id, roles, op); err != nil {
		return newErr(RecordNotFound, err)
	}
	return nil
}

// Commit runs a merge cycle across every index and publishes a new
// snapshot, per §4.3/§4.4: trie first (it may trigger an id
// reassignment), then forward and inverted rewritten under that mapping,
// then feedback, then one atomic Manager.Publish.
func (ix *Indexer) Commit(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	mapping := ix.trie.Merge()
	var m map[tt.KeywordId]tt.KeywordId
	if mapping != nil {
		m = map[tt.KeywordId]tt.KeywordId(mapping)
		ix.inverted.Remap(m)
	}
	ix.forward.Merge(m)
	if err := ix.inverted.Merge(ctx, ix.forward.ReadView().RecordBoost); err != nil {
		return err
	}
	ix.feedback.Merge()

	ix.snapshots.Publish(snapshot.Bundle{
		Trie:        ix.trie.ReadView(),
		Forward:     ix.forward.ReadView(),
		Inverted:    ix.inverted.ReadView(),
		Feedback:    ix.feedback.ReadView(),
		ActiveNodes: ix.activeNodes,
	})
	ix.optimizer.Invalidate()
	ix.pendingWrites = 0
	return nil
}

// Search runs a logical plan against the current snapshot and returns up
// to k hits, highest score first. Ties are broken by ascending record id
// (§8 property 7), making search(query, k) a prefix of search(query, k')
// for any k' > k.
func (ix *Indexer) Search(plan *queryplan.Node, k int) (*QueryResults, error) {
	snap := ix.snapshots.Acquire()
	all, err := ix.optimizer.Run(plan, snap)
	if err != nil {
		return nil, err
	}
	return ix.toResults(snap, all, k), nil
}

// Facet runs plan against the current snapshot and buckets every match by
// the refining attribute named attr, the Facet operator of §6.
func (ix *Indexer) Facet(plan *queryplan.Node, attr string) ([]queryplan.FacetBucket, error) {
	ordinal, _, ok := ix.schema.refiningOrdinal(attr)
	if !ok {
		return nil, newErr(FilterQueryMalformed, fmt.Errorf("unknown refining attribute %q", attr))
	}
	snap := ix.snapshots.Acquire()
	hits, err := ix.optimizer.Run(plan, snap)
	if err != nil {
		return nil, err
	}
	return queryplan.Facet(hits, snap, ordinal), nil
}

// FilterQuery runs plan against the current snapshot, then keeps only the
// matches whose refining attribute named attr satisfies match.
func (ix *Indexer) FilterQuery(plan *queryplan.Node, attr string, match func(tt.RefiningValue) bool, k int) (*QueryResults, error) {
	ordinal, _, ok := ix.schema.refiningOrdinal(attr)
	if !ok {
		return nil, newErr(FilterQueryMalformed, fmt.Errorf("unknown refining attribute %q", attr))
	}
	snap := ix.snapshots.Acquire()
	hits, err := ix.optimizer.Run(plan, snap)
	if err != nil {
		return nil, err
	}
	hits = queryplan.FilterQuery(hits, snap, queryplan.RefiningFilter{Ordinal: ordinal, Match: match})
	return ix.toResults(snap, hits, k), nil
}

// SortByRefiningAttribute runs plan against the current snapshot and
// reorders the matches by the refining attribute named attr instead of
// score.
func (ix *Indexer) SortByRefiningAttribute(plan *queryplan.Node, attr string, ascending bool, k int) (*QueryResults, error) {
	ordinal, _, ok := ix.schema.refiningOrdinal(attr)
	if !ok {
		return nil, newErr(FilterQueryMalformed, fmt.Errorf("unknown refining attribute %q", attr))
	}
	snap := ix.snapshots.Acquire()
	hits, err := ix.optimizer.Run(plan, snap)
	if err != nil {
		return nil, err
	}
	hits = queryplan.SortByRefiningAttribute(hits, snap, ordinal, ascending)
	return ix.toResults(snap, hits, k), nil
}

func (ix *Indexer) toResults(snap snapshot.Bundle, all []queryplan.Hit, k int) *QueryResults {
	out := &QueryResults{Total: len(all)}
	limit := len(all)
	if k > 0 && k < limit {
		limit = k
	}
	out.Hits = make([]Hit, limit)
	for i := 0; i < limit; i++ {
		extID, _ := snap.Forward.ExternalID(all[i].RecordID)
		out.Hits[i] = Hit{ExternalID: extID, RecordID: all[i].RecordID, Score: all[i].Score}
	}
	return out
}

// RecordFeedback registers a click/conversion event for a query string
// against a record, feeding the FeedbackRanker boost applied on future
// repeats of the same query (§4.5).
func (ix *Indexer) RecordFeedback(queryKey string, recID tt.InternalRecordId, timestamp int64) {
	ix.feedback.Record(queryKey, recID, timestamp)
}

// Suggest ranks completions of prefix by trie probability within penalty
// edit distance, unifying suggestion with fuzzy prefix search (§6
// clarification): penalty 0 is the exact-prefix walk (trie.Suggest);
// penalty > 0 seeds an ActiveNodeSet over prefix and ranks every keyword
// reachable from an active node's subtree the same way, by descending
// probability then ascending id.
func (ix *Indexer) Suggest(prefix string, penalty int, n int) []string {
	snap := ix.snapshots.Acquire()
	if penalty <= 0 {
		return snap.Trie.Suggest(prefix, n)
	}

	var s *activenode.Set
	if ix.activeNodes != nil {
		s = ix.activeNodes.Resolve(snap.Trie, penalty, prefix)
	} else {
		s = activenode.New(snap.Trie, penalty)
		for _, r := range prefix {
			s.Extend(r)
		}
	}
	hits := s.IteratePrefix()

	type cand struct {
		text string
		prob float64
		id   tt.KeywordId
	}
	cands := make([]cand, 0, len(hits))
	for _, h := range hits {
		idx, ok := snap.Trie.ByID(h.KeywordID)
		if !ok {
			continue
		}
		cands = append(cands, cand{text: snap.Trie.TextAt(idx), prob: snap.Trie.Nodes[idx].Prob, id: h.KeywordID})
	}
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
