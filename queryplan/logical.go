// Package queryplan implements the logical/physical query plan: the
// AND/OR/NOT/TERM/PHRASE/GEO tree, its histogram-driven cost annotation,
// the optimizer that maps it to physical operators, and the operators
// themselves (§4.7).
package queryplan

import (
	"fmt"
	"sort"
	"strings"

	tt "github.com/rekki/go-search-core/types"
)

// Kind tags a LogicalNode's variant.
type Kind int

const (
	KindTerm Kind = iota
	KindPhrase
	KindGeo
	KindAnd
	KindOr
	KindNot
)

func (k Kind) String() string {
	switch k {
	case KindTerm:
		return "TERM"
	case KindPhrase:
		return "PHRASE"
	case KindGeo:
		return "GEO"
	case KindAnd:
		return "AND"
	case KindOr:
		return "OR"
	case KindNot:
		return "NOT"
	default:
		return "?"
	}
}

// TermType is how a TERM leaf's keyword should be matched against the
// trie.
type TermType int

const (
	TermComplete TermType = iota
	TermPrefix
)

// Node is one node of the AND/OR/NOT/TERM/PHRASE/GEO logical tree.
// Only the fields relevant to Kind are populated.
type Node struct {
	Kind Kind

	// TERM / PHRASE
	Keywords       []string // single entry for TERM, ordered phrase for PHRASE
	TermType       TermType
	EditDistance   int
	Attr           tt.AttributeFilter
	Boost          float32
	Slop           int // PHRASE only
	RefiningAttrID int // set to -1 by Term and Phrase; no evaluator reads it

	// AND / OR / NOT
	Children []*Node

	// Histogram annotation, filled by Annotate.
	EstimatedResultCount int
	EstimatedProbability float64
	EstimatedLeafNodes    int
}

// Term builds a TERM leaf.
func Term(keyword string, termType TermType, editDistance int, attr tt.AttributeFilter, boost float32) *Node {
	if boost == 0 {
		boost = 1
	}
	return &Node{Kind: KindTerm, Keywords: []string{keyword}, TermType: termType, EditDistance: editDistance, Attr: attr, Boost: boost, RefiningAttrID: -1}
}

// Phrase builds a PHRASE leaf over an ordered keyword sequence.
func Phrase(keywords []string, slop int, attr tt.AttributeFilter, boost float32) *Node {
	if boost == 0 {
		boost = 1
	}
	return &Node{Kind: KindPhrase, Keywords: append([]string(nil), keywords...), Slop: slop, Attr: attr, Boost: boost, RefiningAttrID: -1}
}

// And / Or / Not build the boolean combinators.
func And(children ...*Node) *Node { return &Node{Kind: KindAnd, Children: children} }
func Or(children ...*Node) *Node  { return &Node{Kind: KindOr, Children: children} }
func Not(child *Node) *Node       { return &Node{Kind: KindNot, Children: []*Node{child}} }

// UniqueString deterministically serializes the tree for use as a
// query-result cache key, per §4.7.
func (n *Node) UniqueString() string {
	var b strings.Builder
	n.writeUnique(&b)
	return b.String()
}

func (n *Node) writeUnique(b *strings.Builder) {
	if n == nil {
		b.WriteString("_")
		return
	}
	fmt.Fprintf(b, "%s(", n.Kind)
	switch n.Kind {
	case KindTerm:
		fmt.Fprintf(b, "%s,t=%d,ed=%d,boost=%g,attrs=%v/%d", n.Keywords[0], n.TermType, n.EditDistance, n.Boost, n.Attr.Attributes, n.Attr.Combinator)
	case KindPhrase:
		fmt.Fprintf(b, "%s,slop=%d,boost=%g,attrs=%v/%d", strings.Join(n.Keywords, " "), n.Slop, n.Boost, n.Attr.Attributes, n.Attr.Combinator)
	default:
		sorted := append([]*Node(nil), n.Children...)
		if n.Kind == KindOr || n.Kind == KindAnd {
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].UniqueString() < sorted[j].UniqueString() })
		}
		for i, c := range sorted {
			if i > 0 {
				b.WriteString(",")
			}
			c.writeUnique(b)
		}
	}
	b.WriteString(")")
}
