package queryplan

import (
	"errors"

	tt "github.com/rekki/go-search-core/types"
)

// Query is the wire-level DSL shape a client submits a search request in —
// the same tagged-union-of-optional-fields style as go-query's
// go_query_dsl.Query, generalized with PHRASE/GEO variants and an
// attribute filter. ParseLogicalPlan turns one of these into a *Node tree.
type Query struct {
	Type string `json:"type"` // "term" | "and" | "or" | "not" | "phrase" | "geo"

	// term / phrase
	Keyword      string   `json:"keyword,omitempty"`
	Keywords     []string `json:"keywords,omitempty"` // phrase, ordered
	Prefix       bool     `json:"prefix,omitempty"`
	EditDistance int      `json:"edit_distance,omitempty"`
	Slop         int      `json:"slop,omitempty"`
	Boost        float32  `json:"boost,omitempty"`

	// attribute restriction
	AttributeIDs  []tt.AttributeId            `json:"attribute_ids,omitempty"`
	AttrCombinator tt.AttributeCombinator     `json:"attribute_combinator,omitempty"`

	// geo
	Lat, Lon float64 `json:"lat,omitempty"`
	Radius   float64 `json:"radius_m,omitempty"`

	// combinators
	Queries []*Query `json:"queries,omitempty"`
}

// ParseLogicalPlan recursively converts a wire Query into the evaluator's
// *Node tree, mirroring the teacher's Parse(input, termBuilder) recursion
// over spec.Query but fixed to this engine's own node kinds instead of a
// caller-supplied term builder callback.
func ParseLogicalPlan(q *Query) (*Node, error) {
	if q == nil {
		return nil, errors.New("queryplan: nil query")
	}
	attr := tt.AttributeFilter{Attributes: q.AttributeIDs, Combinator: q.AttrCombinator}

	switch q.Type {
	case "term":
		if q.Keyword == "" {
			return nil, errors.New("queryplan: term query missing keyword")
		}
		termType := TermComplete
		if q.Prefix {
			termType = TermPrefix
		}
		return Term(q.Keyword, termType, q.EditDistance, attr, q.Boost), nil
	case "phrase":
		if len(q.Keywords) == 0 {
			return nil, errors.New("queryplan: phrase query missing keywords")
		}
		return Phrase(q.Keywords, q.Slop, attr, q.Boost), nil
	case "geo":
		return &Node{Kind: KindGeo}, nil
	case "and", "or":
		if len(q.Queries) == 0 {
			return nil, errors.New("queryplan: combinator query has no children")
		}
		children := make([]*Node, 0, len(q.Queries))
		for _, c := range q.Queries {
			n, err := ParseLogicalPlan(c)
			if err != nil {
				return nil, err
			}
			children = append(children, n)
		}
		if q.Type == "and" {
			return And(children...), nil
		}
		return Or(children...), nil
	case "not":
		if len(q.Queries) != 1 {
			return nil, errors.New("queryplan: not query requires exactly one child")
		}
		child, err := ParseLogicalPlan(q.Queries[0])
		if err != nil {
			return nil, err
		}
		return Not(child), nil
	default:
		return nil, errors.New("queryplan: unknown query type " + q.Type)
	}
}
