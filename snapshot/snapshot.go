// Package snapshot bundles the four index read views into a single,
// atomically-captured handle so a query sees either all pre-merge state
// or all post-merge state, never a mix (§4.4).
package snapshot

import (
	"sync"

	"github.com/rekki/go-search-core/activenode"
	"github.com/rekki/go-search-core/feedback"
	"github.com/rekki/go-search-core/forward"
	"github.com/rekki/go-search-core/inverted"
	"github.com/rekki/go-search-core/trie"
)

// Bundle is the immutable, point-in-time set of read views a single query
// executes against. Its four index fields are plain GC-managed pointers:
// the Go runtime keeps the old underlying arrays alive for as long as any
// Bundle referencing them is reachable, which is the "reference-counted,
// lifetime = longest holder" semantic the design notes call for, without
// needing hand-rolled atomic refcounts or hazard pointers. ActiveNodes is
// the one exception: it outlives any single Bundle, shared across
// snapshots so a caller typing a query one character at a time keeps
// reusing its longest cached prefix (§4.6) instead of losing the cache on
// every merge.
type Bundle struct {
	Trie     *trie.ReadView
	Forward  *forward.ReadView
	Inverted *inverted.ReadView
	Feedback *feedback.ReadView

	ActiveNodes *activenode.Cache
}

// Manager owns the single shared/exclusive lock readers and the writer
// coordinate through, per §4.4/§5: readers take the shared side only long
// enough to copy the four current pointers; the writer takes the
// exclusive side only for that same tiny window when publishing a new
// Bundle, so the expensive per-index sort/dedup work in each index's own
// Merge happens entirely outside this lock.
type Manager struct {
	mu      sync.RWMutex
	current Bundle
}

// NewManager seeds a manager from the four indexes' currently published
// read views, sharing one ActiveNodeSet cache across every Bundle it
// publishes from here on.
func NewManager(t *trie.Trie, f *forward.Index, inv *inverted.Index, fb *feedback.Index, activeNodes *activenode.Cache) *Manager {
	m := &Manager{}
	m.current = Bundle{Trie: t.ReadView(), Forward: f.ReadView(), Inverted: inv.ReadView(), Feedback: fb.ReadView(), ActiveNodes: activeNodes}
	return m
}

// Acquire atomically snapshots all four read views for the duration of
// one query.
func (m *Manager) Acquire() Bundle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Publish installs a new bundle; called by the writer immediately after
// each index's own Merge has produced its new read view. The exclusive
// section is just a pointer copy.
func (m *Manager) Publish(b Bundle) {
	m.mu.Lock()
	m.current = b
	m.mu.Unlock()
}
