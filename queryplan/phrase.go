package queryplan

import (
	"errors"

	"github.com/rekki/go-search-core/snapshot"
	tt "github.com/rekki/go-search-core/types"
)

// evaluatePhrase resolves a PHRASE leaf by first running its keywords as an
// ordinary AND (cheap candidate generation via the inverted lists) and then
// verifying position adjacency — within Slop — for every candidate, per
// §4.8. Candidates that fail verification are dropped entirely rather than
// scored down, since a phrase either matches or it doesn't.
func evaluatePhrase(n *Node, snap snapshot.Bundle) ([]Hit, error) {
	if len(n.Keywords) == 0 {
		return nil, errors.New("queryplan: phrase requires at least one keyword")
	}
	terms := make([]*Node, len(n.Keywords))
	for i, kw := range n.Keywords {
		terms[i] = Term(kw, TermComplete, 0, n.Attr, 1)
	}
	candidates, err := evaluateAnd(And(terms...), snap)
	if err != nil {
		return nil, err
	}

	out := make([]Hit, 0, len(candidates))
	for _, c := range candidates {
		ok, err := evaluatePhraseForRecord(n, c.RecordID, snap)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, Hit{RecordID: c.RecordID, Score: c.Score * n.Boost})
		}
	}
	sortHitsByScore(out)
	return out, nil
}

// evaluatePhraseForRecord checks whether recID's forward list carries the
// phrase's keywords at adjacent positions (within Slop) in some shared
// attribute.
func evaluatePhraseForRecord(n *Node, recID tt.InternalRecordId, snap snapshot.Bundle) (bool, error) {
	fw := snap.Forward
	if !fw.IsValid(recID) {
		return false, nil
	}

	offsets := make([]int, len(n.Keywords))
	keywordIDs := make([]tt.KeywordId, len(n.Keywords))
	for i, kw := range n.Keywords {
		node, ok := snap.Trie.Lookup(kw)
		if !ok {
			return false, nil
		}
		keywordIDs[i] = node.ID
		off, ok := fw.KeywordOffset(recID, node.ID)
		if !ok {
			return false, nil
		}
		offsets[i] = off
	}

	attrs := sharedAttributes(fw, recID, offsets)
	if len(attrs) == 0 {
		return false, nil
	}

	for _, attr := range attrs {
		posLists := make([][]uint32, len(offsets))
		complete := true
		for i, off := range offsets {
			pl := fw.FetchPositions(recID, off, attr)
			if len(pl) == 0 {
				complete = false
				break
			}
			posLists[i] = pl
		}
		if !complete {
			continue
		}
		if phraseMatchesAtAnyStart(posLists, n.Slop) {
			return true, nil
		}
	}
	return false, nil
}

// sharedAttributes returns the attribute ids every keyword slot in offsets
// occurs in, the candidate set a phrase match must be found within.
func sharedAttributes(fw interface {
	OccurrenceAttributes(tt.InternalRecordId, int) []tt.AttributeId
}, recID tt.InternalRecordId, offsets []int) []tt.AttributeId {
	if len(offsets) == 0 {
		return nil
	}
	counts := map[tt.AttributeId]int{}
	for _, off := range offsets {
		for _, a := range fw.OccurrenceAttributes(recID, off) {
			counts[a]++
		}
	}
	var out []tt.AttributeId
	for a, n := range counts {
		if n == len(offsets) {
			out = append(out, a)
		}
	}
	return out
}

// phraseMatchesAtAnyStart reports whether there is some start position p in
// posLists[0] such that for every subsequent keyword i, some position in
// posLists[i] lies within slop of p+i.
func phraseMatchesAtAnyStart(posLists [][]uint32, slop int) bool {
	for _, p0 := range posLists[0] {
		matched := true
		for i := 1; i < len(posLists); i++ {
			target := int(p0) + i
			found := false
			for _, p := range posLists[i] {
				d := int(p) - target
				if d < 0 {
					d = -d
				}
				if d <= slop {
					found = true
					break
				}
			}
			if !found {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}
