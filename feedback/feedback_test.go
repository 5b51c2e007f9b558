package feedback

import (
	"testing"

	tt "github.com/rekki/go-search-core/types"
)

func TestRecordAndMergeBasic(t *testing.T) {
	idx := New(10, 10)
	idx.Record("pink floyd", 1, 100)
	idx.Record("pink floyd", 2, 101)
	idx.Record("pink floyd", 1, 102) // repeat -> frequency bump

	idx.Merge()
	rv := idx.ReadView()
	triples := rv.Lookup("pink floyd")
	if len(triples) != 2 {
		t.Fatalf("expected 2 distinct records, got %d: %+v", len(triples), triples)
	}
	for _, tr := range triples {
		if tr.RecordID == 1 && tr.Frequency != 2 {
			t.Fatalf("expected record 1 frequency 2, got %+v", tr)
		}
	}
}

func TestMaxFeedbackPerQueryEviction(t *testing.T) {
	idx := New(10, 3)
	for i := 0; i < 5; i++ {
		idx.Record("q", tt.InternalRecordId(i), int64(i))
	}
	idx.Merge()
	triples := idx.ReadView().Lookup("q")
	if len(triples) != 3 {
		t.Fatalf("expected bounded to 3 triples, got %d", len(triples))
	}
	// the two oldest (timestamp 0 and 1, records 0 and 1) should have been evicted
	for _, tr := range triples {
		if tr.RecordID == 0 || tr.RecordID == 1 {
			t.Fatalf("expected oldest records evicted, found %+v", tr)
		}
	}
}

func TestMaxQueriesEviction(t *testing.T) {
	idx := New(2, 10)
	idx.Record("a", 1, 1)
	idx.Merge()
	idx.Record("b", 1, 2)
	idx.Merge()
	idx.Record("c", 1, 3) // should evict "a", the oldest
	idx.Merge()

	rv := idx.ReadView()
	if len(rv.Lookup("a")) != 0 {
		t.Fatal("expected query 'a' evicted")
	}
	if len(rv.Lookup("b")) == 0 || len(rv.Lookup("c")) == 0 {
		t.Fatal("expected queries 'b' and 'c' still present")
	}
}

func TestRepeatedQueryMovesToTailNotEvicted(t *testing.T) {
	idx := New(2, 10)
	idx.Record("a", 1, 1)
	idx.Merge()
	idx.Record("b", 1, 2)
	idx.Merge()
	idx.Record("a", 2, 3) // touch "a" again, making "b" the oldest
	idx.Merge()
	idx.Record("c", 1, 4) // should evict "b", not "a"
	idx.Merge()

	rv := idx.ReadView()
	if len(rv.Lookup("b")) != 0 {
		t.Fatal("expected query 'b' evicted, 'a' was refreshed more recently")
	}
	if len(rv.Lookup("a")) == 0 {
		t.Fatal("expected query 'a' still present after refresh")
	}
}
