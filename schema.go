package search

import (
	analyzer "github.com/rekki/go-query-analyze"

	tt "github.com/rekki/go-search-core/types"
)

// SearchableAttribute declares one text field the engine tokenizes into
// the trie/forward/inverted triple, with its own per-field boost and
// analyzer (falling back to DefaultAnalyzer, per the teacher's
// per-field-analyzer-with-fallback convention in index.go/mem.go).
type SearchableAttribute struct {
	Name        string
	ID          tt.AttributeId
	Boost       float32
	Analyzer    *analyzer.Analyzer // nil means DefaultAnalyzer
	MultiValued bool
}

// RefiningAttribute declares one typed scalar field stored in a record's
// per-record []RefiningValue slice, indexed by declaration order (not a
// packed byte buffer), consulted by FilterQuery/Facet/
// SortByRefiningAttribute but never tokenized.
type RefiningAttribute struct {
	Name        string
	Kind        tt.RefiningKind
	MultiValued bool
	Default     tt.RefiningValue
}

// RecordBoostFunc computes a per-record boost multiplier server-side from
// the record being indexed, the optional "record-boost expression"
// mentioned in spec.md §6. A nil RecordBoostFunc means every record gets
// boost 1.
type RecordBoostFunc func(r *Record) float32

// Schema is declared once, before the first AddRecord, exactly as the
// teacher's NewDirIndex/NewMemOnlyIndex take their perField analyzer map
// as a constructor argument rather than loading it from a config file.
type Schema struct {
	PrimaryKeyField    string
	Searchable         []SearchableAttribute
	Refining           []RefiningAttribute
	RecordBoost        RecordBoostFunc
	DefaultAnalyzer    *analyzer.Analyzer
}

func (s *Schema) searchableByName(name string) (*SearchableAttribute, bool) {
	for i := range s.Searchable {
		if s.Searchable[i].Name == name {
			return &s.Searchable[i], true
		}
	}
	return nil, false
}

func (s *Schema) refiningOrdinal(name string) (int, *RefiningAttribute, bool) {
	for i := range s.Refining {
		if s.Refining[i].Name == name {
			return i, &s.Refining[i], true
		}
	}
	return 0, nil, false
}

func (s *Schema) analyzerFor(attr *SearchableAttribute) *analyzer.Analyzer {
	if attr.Analyzer != nil {
		return attr.Analyzer
	}
	if s.DefaultAnalyzer != nil {
		return s.DefaultAnalyzer
	}
	return DefaultAnalyzer
}
