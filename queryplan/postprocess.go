package queryplan

import (
	"sort"
	"strconv"

	"github.com/rekki/go-search-core/snapshot"
	tt "github.com/rekki/go-search-core/types"
)

// RefiningFilter restricts a hit set to records whose refining attribute at
// Ordinal satisfies Match, the FilterQuery operator named in spec.md §6.
type RefiningFilter struct {
	Ordinal int
	Match   func(tt.RefiningValue) bool
}

// FilterQuery keeps only the hits whose refining attribute value at
// f.Ordinal satisfies f.Match; a record missing the attribute never
// matches. Grounded on original_source's post-processing filter pass
// (test/wrapper/integration/PostProcessingFilters_Test.cpp), which runs
// as a pass over an already-scored result set rather than a trie walk.
func FilterQuery(hits []Hit, snap snapshot.Bundle, f RefiningFilter) []Hit {
	out := make([]Hit, 0, len(hits))
	for _, h := range hits {
		v, ok := snap.Forward.RefiningAttribute(h.RecordID, f.Ordinal)
		if !ok || !f.Match(v) {
			continue
		}
		out = append(out, h)
	}
	return out
}

// SortByRefiningAttribute reorders hits by the refining attribute at
// ordinal instead of score, breaking ties by ascending record id. A record
// missing the attribute sorts last, after every record that has it.
func SortByRefiningAttribute(hits []Hit, snap snapshot.Bundle, ordinal int, ascending bool) []Hit {
	out := append([]Hit(nil), hits...)
	type keyed struct {
		hit     Hit
		missing bool
		cmp     float64
		text    string
	}
	ks := make([]keyed, len(out))
	for i, h := range out {
		v, ok := snap.Forward.RefiningAttribute(h.RecordID, ordinal)
		k := keyed{hit: h, missing: !ok}
		if ok {
			k.cmp, k.text = refiningSortKey(v)
		}
		ks[i] = k
	}
	sort.SliceStable(ks, func(i, j int) bool {
		if ks[i].missing != ks[j].missing {
			return !ks[i].missing
		}
		if ks[i].missing {
			return ks[i].hit.RecordID < ks[j].hit.RecordID
		}
		if ks[i].text != "" || ks[j].text != "" {
			if ks[i].text != ks[j].text {
				if ascending {
					return ks[i].text < ks[j].text
				}
				return ks[i].text > ks[j].text
			}
			return ks[i].hit.RecordID < ks[j].hit.RecordID
		}
		if ks[i].cmp != ks[j].cmp {
			if ascending {
				return ks[i].cmp < ks[j].cmp
			}
			return ks[i].cmp > ks[j].cmp
		}
		return ks[i].hit.RecordID < ks[j].hit.RecordID
	})
	for i, k := range ks {
		out[i] = k.hit
	}
	return out
}

func refiningSortKey(v tt.RefiningValue) (float64, string) {
	switch v.Kind {
	case tt.RefiningFloat, tt.RefiningDouble:
		if len(v.Floats) > 0 {
			return v.Floats[0], ""
		}
	case tt.RefiningText:
		if len(v.Texts) > 0 {
			return 0, v.Texts[0]
		}
	default: // Int, Long, Time, Duration
		if len(v.Ints) > 0 {
			return float64(v.Ints[0]), ""
		}
	}
	return 0, ""
}

// FacetBucket is one distinct value of a faceted refining attribute and the
// number of input hits that carried it (a multi-valued attribute
// contributes to every bucket its values name, per original_source's
// CategoricalFacetHelper::generateIDAndNameForMultiValued).
type FacetBucket struct {
	Value string
	Count int
}

// Facet computes the categorical facet histogram of hits over the refining
// attribute at ordinal, sorted by descending count then ascending value
// for a deterministic result order.
func Facet(hits []Hit, snap snapshot.Bundle, ordinal int) []FacetBucket {
	counts := map[string]int{}
	for _, h := range hits {
		v, ok := snap.Forward.RefiningAttribute(h.RecordID, ordinal)
		if !ok {
			continue
		}
		for _, s := range refiningBucketNames(v) {
			counts[s]++
		}
	}
	out := make([]FacetBucket, 0, len(counts))
	for s, c := range counts {
		out = append(out, FacetBucket{Value: s, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}

func refiningBucketNames(v tt.RefiningValue) []string {
	switch v.Kind {
	case tt.RefiningText:
		return v.Texts
	case tt.RefiningFloat, tt.RefiningDouble:
		out := make([]string, len(v.Floats))
		for i, f := range v.Floats {
			out[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return out
	default: // Int, Long, Time, Duration
		out := make([]string, len(v.Ints))
		for i, n := range v.Ints {
			out[i] = strconv.FormatInt(n, 10)
		}
		return out
	}
}
