// Package types holds the small value types shared by every index so that
// trie, forward, inverted, feedback and queryplan can all refer to the same
// identifiers without importing each other.
package types

// KeywordId is the trie-assigned integer id for a normalized token. Its
// numerical ordering equals the lexicographic ordering of the keyword text
// (see the Trie id-assignment algorithm).
type KeywordId uint32

// InternalRecordId is the dense id the engine assigns to a record on
// add_record; it indexes directly into the ForwardIndex's record arena.
type InternalRecordId uint32

// InvalidKeywordId is never assigned to a real keyword; callers use it as a
// "no such keyword" sentinel the same way a zero-value map lookup would.
const InvalidKeywordId KeywordId = 0

// RefiningKind enumerates the typed scalars a refining attribute can hold.
type RefiningKind uint8

const (
	RefiningInt RefiningKind = iota
	RefiningLong
	RefiningFloat
	RefiningDouble
	RefiningText
	RefiningTime
	RefiningDuration
)

// RefiningValue is a single typed, possibly multi-valued, refining
// attribute value as stored in a record's offset table.
type RefiningValue struct {
	Kind     RefiningKind
	Ints     []int64
	Floats   []float64
	Texts    []string
	IsSingle bool
}

// AttributeId identifies a declared searchable attribute (schema-ordinal).
type AttributeId uint16

// AttributeCombinator is how an attribute-id filter combines across the
// requested subset of attributes: AND requires the keyword to occur in all
// of them, OR in any, NAND in none.
type AttributeCombinator uint8

const (
	CombinatorOr AttributeCombinator = iota
	CombinatorAnd
	CombinatorNand
)

// AttributeFilter restricts a term match to a subset of searchable
// attributes, combined with Combinator.
type AttributeFilter struct {
	Attributes []AttributeId
	Combinator AttributeCombinator
}

// Matches reports whether the set of attribute ids a keyword occurrence
// touched satisfies the filter.
func (f AttributeFilter) Matches(occurring map[AttributeId]bool) bool {
	if len(f.Attributes) == 0 {
		return true
	}
	switch f.Combinator {
	case CombinatorAnd:
		for _, a := range f.Attributes {
			if !occurring[a] {
				return false
			}
		}
		return true
	case CombinatorNand:
		for _, a := range f.Attributes {
			if occurring[a] {
				return false
			}
		}
		return true
	default: // OR
		for _, a := range f.Attributes {
			if occurring[a] {
				return true
			}
		}
		return false
	}
}

// MultiValuedAttributePositionBump keeps phrase matches from crossing value
// boundaries within the same multi-valued searchable attribute (§4.2).
const MultiValuedAttributePositionBump = 100_000
