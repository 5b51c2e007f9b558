package inverted

import (
	"context"
	"testing"

	tt "github.com/rekki/go-search-core/types"
)

func unitBoost(tt.InternalRecordId) float32 { return 1 }

func TestAppendAndMergeSortedDescending(t *testing.T) {
	idx := New(3)
	idx.AppendPosting(1, 10, 0.5)
	idx.AppendPosting(1, 11, 2.0)
	idx.AppendPosting(1, 12, 1.0)

	if err := idx.Merge(context.Background(), unitBoost); err != nil {
		t.Fatal(err)
	}

	rv := idx.ReadView()
	list := rv.Iter(1)
	if len(list) != 3 {
		t.Fatalf("expected 3 postings, got %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].Score > list[i-1].Score {
			t.Fatalf("expected descending scores, got %v", list)
		}
	}
	if list[0].RecordID != 11 {
		t.Fatalf("expected highest score first (record 11), got %v", list[0])
	}
}

func TestMergeAccumulatesAcrossRounds(t *testing.T) {
	idx := New(2)
	idx.AppendPosting(5, 1, 1.0)
	if err := idx.Merge(context.Background(), unitBoost); err != nil {
		t.Fatal(err)
	}
	idx.AppendPosting(5, 2, 3.0)
	if err := idx.Merge(context.Background(), unitBoost); err != nil {
		t.Fatal(err)
	}

	rv := idx.ReadView()
	list := rv.Iter(5)
	if len(list) != 2 {
		t.Fatalf("expected 2 postings accumulated, got %d", len(list))
	}
	if list[0].RecordID != 2 {
		t.Fatalf("expected record 2 first (higher score), got %v", list)
	}
	stats := rv.StatsFor(5)
	if stats.DocCount != 2 || stats.MaxScore != 3.0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRemap(t *testing.T) {
	idx := New(1)
	idx.AppendPosting(7, 1, 1.0)
	idx.Merge(context.Background(), unitBoost)
	idx.Remap(map[tt.KeywordId]tt.KeywordId{7: 70})
	idx.Merge(context.Background(), unitBoost)

	rv := idx.ReadView()
	if rv.ListLength(70) != 1 {
		t.Fatalf("expected remapped bucket 70 to have 1 posting, got %d", rv.ListLength(70))
	}
	if rv.ListLength(7) != 0 {
		t.Fatalf("expected old bucket 7 empty, got %d", rv.ListLength(7))
	}
}
