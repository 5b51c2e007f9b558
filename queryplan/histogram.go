package queryplan

import (
	"github.com/rekki/go-search-core/snapshot"
)

// Annotate walks the tree bottom-up, filling EstimatedResultCount /
// EstimatedProbability / EstimatedLeafNodes from the cached per-keyword
// document counts (InvertedIndex stats) and trie subtree probabilities,
// per §4.7's HistogramManager.
func Annotate(n *Node, snap snapshot.Bundle) {
	switch n.Kind {
	case KindTerm:
		keyword := n.Keywords[0]
		count := 0
		var maxProb float64
		for _, kw := range expandCandidateKeywords(keyword, n.TermType, n.EditDistance, snap) {
			stats := snap.Inverted.StatsFor(kw.id)
			count += stats.DocCount
			if idx, ok := snap.Trie.ByID(kw.id); ok {
				if p := snap.Trie.Nodes[idx].Prob; p > maxProb {
					maxProb = p
				}
			}
		}
		n.EstimatedResultCount = count
		n.EstimatedProbability = maxProb
		n.EstimatedLeafNodes = 1
	case KindPhrase:
		// A phrase can never match more records than its rarest keyword.
		min := -1
		for _, w := range n.Keywords {
			leaf := Term(w, TermComplete, 0, n.Attr, 1)
			Annotate(leaf, snap)
			if min < 0 || leaf.EstimatedResultCount < min {
				min = leaf.EstimatedResultCount
			}
		}
		if min < 0 {
			min = 0
		}
		n.EstimatedResultCount = min
		n.EstimatedLeafNodes = len(n.Keywords)
	default:
		total := 0
		leaves := 0
		for _, c := range n.Children {
			Annotate(c, snap)
			leaves += c.EstimatedLeafNodes
			switch n.Kind {
			case KindAnd:
				if total == 0 || c.EstimatedResultCount < total {
					total = c.EstimatedResultCount
				}
			default: // OR, NOT
				total += c.EstimatedResultCount
			}
		}
		n.EstimatedResultCount = total
		n.EstimatedLeafNodes = leaves
	}
}
