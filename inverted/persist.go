package inverted

import (
	"encoding/gob"
	"io"

	tt "github.com/rekki/go-search-core/types"
)

// diskFormat is the gob-serializable envelope for one inverted-index read
// view: the posting lists themselves (§6: "inverted lists as arrays") plus
// the merge-worker count, so a reload recreates the same worker pool size
// without the caller having to remember it.
type diskFormat struct {
	Workers int
	Lists   map[tt.KeywordId][]Posting
}

// EncodeTo writes this read view's posting lists plus the owning index's
// worker count.
func (rv *ReadView) EncodeTo(w io.Writer) error {
	return gob.NewEncoder(w).Encode(diskFormat{Workers: rv.workers, Lists: rv.ToSnapshot()})
}

// DecodeFrom rebuilds a writable Index from a stream written by EncodeTo.
func DecodeFrom(r io.Reader) (*Index, error) {
	var d diskFormat
	if err := gob.NewDecoder(r).Decode(&d); err != nil {
		return nil, err
	}
	return FromSnapshot(d.Lists, d.Workers), nil
}
