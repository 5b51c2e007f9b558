package feedback

import (
	"encoding/gob"
	"io"
)

// diskFormat is the gob-serializable envelope for one feedback read view:
// the per-query feedback lists plus the bounds the owning Index enforces,
// per §6's "max-feedback-per-query, max-queries, ... vector of per-query
// feedback lists".
type diskFormat struct {
	MaxQueries  int
	MaxPerQuery int
	ByQuery     map[string][]Triple
}

// EncodeTo writes this read view's per-query feedback lists plus the
// bounding Index's max-queries/max-feedback-per-query limits.
func (rv *ReadView) EncodeTo(w io.Writer) error {
	return gob.NewEncoder(w).Encode(diskFormat{MaxQueries: rv.maxQueries, MaxPerQuery: rv.maxPerQuery, ByQuery: rv.ToSnapshot()})
}

// DecodeFrom rebuilds a writable Index from a stream written by EncodeTo.
func DecodeFrom(r io.Reader) (*Index, error) {
	var d diskFormat
	if err := gob.NewDecoder(r).Decode(&d); err != nil {
		return nil, err
	}
	return FromSnapshot(d.ByQuery, d.MaxQueries, d.MaxPerQuery), nil
}
