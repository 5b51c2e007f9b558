package search

import "time"

// Options configures the runtime knobs a Schema doesn't: merge cadence,
// worker-pool sizes, cache capacities. Like Schema, it is a plain struct
// literal rather than a config-file format, per the teacher's convention.
type Options struct {
	// InvertedWorkers bounds the inverted index's merge-worker pool
	// (§4.3). Defaults to 5 when <= 0.
	InvertedWorkers int

	// MergeInterval is how often the background MergeScheduler wakes up
	// to check for pending writes. Defaults to 100ms when <= 0.
	MergeInterval time.Duration

	// MergeThreshold is the number of pending (unmerged) writes that
	// forces an out-of-cycle merge instead of waiting for the next tick.
	// Defaults to 1000 when <= 0.
	MergeThreshold int

	// HistogramRefreshEvery is the number of merge-scheduler ticks between
	// purges of the optimizer's query-result cache, so cached plans are
	// re-annotated against fresh histogram statistics. Resolved Open
	// Question (DESIGN.md): a
	// tick does at most one of {merge, histogram refresh} — merge always
	// takes priority when both are due on the same tick, and the
	// histogram refresh is skipped (not deferred) for that tick, since a
	// skipped refresh costs only staleness, never correctness. Defaults
	// to 10 when <= 0.
	HistogramRefreshEvery int

	// FeedbackMaxQueries / FeedbackMaxPerQuery bound the FeedbackIndex
	// (§4.5). Defaults to 10000 / 50 when <= 0.
	FeedbackMaxQueries  int
	FeedbackMaxPerQuery int

	// OptimizerCacheSize bounds the query-result LRU cache (§4.7).
	// Defaults to 1024 when <= 0.
	OptimizerCacheSize int

	// ActiveNodeCacheSize bounds the ActiveNodeSet longest-prefix cache
	// shared by fuzzy term expansion and Suggest (§4.6). Defaults to 256
	// when <= 0.
	ActiveNodeCacheSize int
}

func (o Options) withDefaults() Options {
	if o.InvertedWorkers <= 0 {
		o.InvertedWorkers = 5
	}
	if o.MergeInterval <= 0 {
		o.MergeInterval = 100 * time.Millisecond
	}
	if o.MergeThreshold <= 0 {
		o.MergeThreshold = 1000
	}
	if o.HistogramRefreshEvery <= 0 {
		o.HistogramRefreshEvery = 10
	}
	if o.FeedbackMaxQueries <= 0 {
		o.FeedbackMaxQueries = 10000
	}
	if o.FeedbackMaxPerQuery <= 0 {
		o.FeedbackMaxPerQuery = 50
	}
	if o.OptimizerCacheSize <= 0 {
		o.OptimizerCacheSize = 1024
	}
	if o.ActiveNodeCacheSize <= 0 {
		o.ActiveNodeCacheSize = 256
	}
	return o
}
