package trie

import (
	"encoding/gob"
	"io"
)

// EncodeTo writes this read view's node arena in index order (parents
// before children, but not a pre-order walk). ReadNode's
// Children/MinID/MaxID round-trip as-is: DecodeFrom publishes the
// persisted nodes directly without running Merge, so the stored ranges
// are what the loaded read view serves until the next Merge.
func (rv *ReadView) EncodeTo(w io.Writer) error {
	return gob.NewEncoder(w).Encode(rv.ToSnapshot())
}

// DecodeFrom rebuilds a writable Trie from a stream written by EncodeTo.
func DecodeFrom(r io.Reader) (*Trie, error) {
	var s Snapshot
	if err := gob.NewDecoder(r).Decode(&s); err != nil {
		return nil, err
	}
	return FromSnapshot(s), nil
}
