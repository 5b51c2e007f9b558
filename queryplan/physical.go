package queryplan

import (
	"errors"
	"sort"

	"github.com/rekki/go-search-core/snapshot"
	tt "github.com/rekki/go-search-core/types"
)

// Hit is one scored match a physical operator yields.
type Hit struct {
	RecordID tt.InternalRecordId
	Score    float32
}

func sortHitsByScore(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].RecordID < hits[j].RecordID // stable tie-break by id, §8 property 7
	})
}

// ErrNotImplemented is returned by the Geo stub leaf, per §1's explicit
// scope exclusion of real geo indexing.
var ErrNotImplemented = errors.New("queryplan: geo indexing is not implemented, interface only")

// Evaluate runs the logical tree to completion against snap and returns
// its hits sorted by score descending. It materializes results eagerly
// rather than truly streaming through the open/next/close protocol —
// Operator (below) wraps the materialized slice to still expose that
// protocol to callers, since correctness of the result set matters more
// here than lazy evaluation; see DESIGN.md.
func Evaluate(n *Node, snap snapshot.Bundle) ([]Hit, error) {
	switch n.Kind {
	case KindTerm:
		keywords := expandCandidateKeywords(n.Keywords[0], n.TermType, n.EditDistance, snap)
		return unionTermVirtualList(keywords, n.Attr, n.Boost, snap), nil
	case KindPhrase:
		return evaluatePhrase(n, snap)
	case KindGeo:
		return nil, ErrNotImplemented
	case KindAnd:
		return evaluateAnd(n, snap)
	case KindOr:
		return evaluateOr(n, snap)
	case KindNot:
		// A bare top-level NOT has no positive universe to subtract from;
		// it is only meaningful as a child of AND (handled there).
		return nil, errors.New("queryplan: NOT may only appear as a child of AND")
	default:
		return nil, errors.New("queryplan: unknown node kind")
	}
}

// evaluateAnd separates positive children from NOT children, fully
// evaluates every positive child, and drives the merge from the child with
// the fewest actual hits, verifying each of its records against the other
// children's hit sets (MergeByShortestList). This is the only AND strategy:
// there is no threshold-algorithm (MergeTopK) path with early termination,
// and the histogram estimates do not influence the choice.
func evaluateAnd(n *Node, snap snapshot.Bundle) ([]Hit, error) {
	var positive []*Node
	var negative []*Node
	for _, c := range n.Children {
		if c.Kind == KindNot {
			negative = append(negative, c.Children[0])
		} else {
			positive = append(positive, c)
		}
	}
	if len(positive) == 0 {
		return nil, errors.New("queryplan: AND requires at least one positive child")
	}

	childHits := make([][]Hit, len(positive))
	for i, c := range positive {
		h, err := Evaluate(c, snap)
		if err != nil {
			return nil, err
		}
		childHits[i] = h
	}

	driver := 0
	for i := 1; i < len(childHits); i++ {
		if len(childHits[i]) < len(childHits[driver]) {
			driver = i
		}
	}

	others := make([][]Hit, 0, len(childHits)-1)
	for i, h := range childHits {
		if i != driver {
			others = append(others, h)
		}
	}
	othersIdx := make([]map[tt.InternalRecordId]float32, len(others))
	for i, h := range others {
		m := make(map[tt.InternalRecordId]float32, len(h))
		for _, x := range h {
			m[x.RecordID] = x.Score
		}
		othersIdx[i] = m
	}

	var out []Hit
	for _, cand := range childHits[driver] {
		score := cand.Score
		matched := true
		for _, m := range othersIdx {
			s, ok := m[cand.RecordID]
			if !ok {
				matched = false
				break
			}
			score += s
		}
		if !matched {
			continue
		}
		excluded := false
		for _, neg := range negative {
			if satisfies(neg, cand.RecordID, snap) {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}
		out = append(out, Hit{RecordID: cand.RecordID, Score: score})
	}
	sortHitsByScore(out)
	return out, nil
}

// evaluateOr is UnionSortedById generalized to score lists: a union keyed
// by record id that deduplicates, summing scores across children that
// both match, then sorts by score (per §4.7).
func evaluateOr(n *Node, snap snapshot.Bundle) ([]Hit, error) {
	combined := map[tt.InternalRecordId]float32{}
	var order []tt.InternalRecordId
	for _, c := range n.Children {
		h, err := Evaluate(c, snap)
		if err != nil {
			return nil, err
		}
		for _, x := range h {
			if _, ok := combined[x.RecordID]; !ok {
				order = append(order, x.RecordID)
			}
			combined[x.RecordID] += x.Score
		}
	}
	out := make([]Hit, len(order))
	for i, rid := range order {
		out[i] = Hit{RecordID: rid, Score: combined[rid]}
	}
	sortHitsByScore(out)
	return out, nil
}

// satisfies is the RandomAccess{Term,And,Or,Not} family collapsed into one
// recursive predicate: does record recID satisfy this subtree, without
// enumerating it?
func satisfies(n *Node, recID tt.InternalRecordId, snap snapshot.Bundle) bool {
	switch n.Kind {
	case KindTerm:
		for _, kw := range expandCandidateKeywords(n.Keywords[0], n.TermType, n.EditDistance, snap) {
			if snap.Forward.ContainsKeyword(recID, kw.id) {
				if len(n.Attr.Attributes) == 0 {
					return true
				}
				if _, _, ok := snap.Forward.HasWordInRange(recID, 0, ^tt.KeywordId(0), &n.Attr); ok {
					return true
				}
			}
		}
		return false
	case KindPhrase:
		hits, err := evaluatePhraseForRecord(n, recID, snap)
		return err == nil && hits
	case KindAnd:
		for _, c := range n.Children {
			if c.Kind == KindNot {
				if satisfies(c.Children[0], recID, snap) {
					return false
				}
				continue
			}
			if !satisfies(c, recID, snap) {
				return false
			}
		}
		return true
	case KindOr:
		for _, c := range n.Children {
			if satisfies(c, recID, snap) {
				return true
			}
		}
		return false
	case KindNot:
		return !satisfies(n.Children[0], recID, snap)
	default:
		return false
	}
}

// Operator exposes the open/next/close pull protocol described in §4.7
// over a materialized Hit slice.
type Operator struct {
	hits []Hit
	pos  int
}

// NewOperator runs the plan and wraps its output for pull-based
// consumption.
func NewOperator(n *Node, snap snapshot.Bundle) (*Operator, error) {
	hits, err := Evaluate(n, snap)
	if err != nil {
		return nil, err
	}
	return &Operator{hits: hits}, nil
}

// Open is a no-op here since NewOperator already ran the plan; it exists
// to satisfy the protocol callers expect (a scoped execution guard always
// calls Open/Close around Next in a loop).
func (o *Operator) Open() error { return nil }

// Next returns the next hit in descending-score order, or ok=false when
// exhausted.
func (o *Operator) Next() (Hit, bool) {
	if o.pos >= len(o.hits) {
		return Hit{}, false
	}
	h := o.hits[o.pos]
	o.pos++
	return h, true
}

// Close releases the operator; materialized operators hold no external
// resources, so this always succeeds.
func (o *Operator) Close() error { return nil }

// Len reports the total number of hits this operator will yield — the
// query's "total" count regardless of how many are actually paged out.
func (o *Operator) Len() int { return len(o.hits) }
