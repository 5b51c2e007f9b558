package snapshot

import (
	"testing"

	"github.com/rekki/go-search-core/activenode"
	"github.com/rekki/go-search-core/feedback"
	"github.com/rekki/go-search-core/forward"
	"github.com/rekki/go-search-core/inverted"
	"github.com/rekki/go-search-core/trie"
)

func TestAcquireIsStableAcrossPublish(t *testing.T) {
	tr := trie.New()
	fw := forward.New()
	inv := inverted.New(1)
	fb := feedback.New(10, 10)

	mgr := NewManager(tr, fw, inv, fb, activenode.NewCache(10))
	b1 := mgr.Acquire()

	tr.AddKeyword("x")
	tr.Merge()
	mgr.Publish(Bundle{Trie: tr.ReadView(), Forward: fw.ReadView(), Inverted: inv.ReadView(), Feedback: fb.ReadView(), ActiveNodes: mgr.current.ActiveNodes})

	b2 := mgr.Acquire()

	if b1.Trie == b2.Trie {
		t.Fatal("expected a fresh trie read view after publish")
	}
	// b1 must remain usable and untouched — it's the "pre-merge" snapshot
	// an in-flight reader started with.
	if _, ok := b1.Trie.Lookup("x"); ok {
		t.Fatal("old snapshot should not observe a keyword added after it was acquired")
	}
	if _, ok := b2.Trie.Lookup("x"); !ok {
		t.Fatal("new snapshot should observe the keyword added before publish")
	}
}
