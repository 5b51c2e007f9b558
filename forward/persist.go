package forward

import (
	"encoding/gob"
	"io"

	tt "github.com/rekki/go-search-core/types"
)

// occurrenceDTO is the on-disk form of one Occurrence: word positions and
// character offsets packed through the LEB128-style varint codec in
// varint.go, per §4.2's positional-metadata layout, instead of carried as
// plain gob-encoded uint32 slices.
type occurrenceDTO struct {
	AttributeID    tt.AttributeId
	Positions      []byte
	CharOffsets    []byte
	Synonym        bool
	SynonymCharLen uint32
}

type keywordEntryDTO struct {
	KeywordID   tt.KeywordId
	TFBoost     float32
	StaticScore float32
	Occurrences []occurrenceDTO
}

type recordWireDTO struct {
	Valid    bool
	ExtID    string
	Keywords []keywordEntryDTO
	Boost    float32
	Roles    []string
	Refining []tt.RefiningValue
	Payload  []byte
}

func packKeywords(in []KeywordEntry) []keywordEntryDTO {
	out := make([]keywordEntryDTO, len(in))
	for i, k := range in {
		occs := make([]occurrenceDTO, len(k.Occurrences))
		for j, o := range k.Occurrences {
			occs[j] = occurrenceDTO{
				AttributeID:    o.AttributeID,
				Positions:      encodeVarintList(o.Positions),
				CharOffsets:    encodeVarintList(o.CharOffsets),
				Synonym:        o.Synonym,
				SynonymCharLen: o.SynonymCharLen,
			}
		}
		out[i] = keywordEntryDTO{KeywordID: k.KeywordID, TFBoost: k.TFBoost, StaticScore: k.StaticScore, Occurrences: occs}
	}
	return out
}

func unpackKeywords(in []keywordEntryDTO) []KeywordEntry {
	out := make([]KeywordEntry, len(in))
	for i, k := range in {
		occs := make([]Occurrence, len(k.Occurrences))
		for j, o := range k.Occurrences {
			positions, _ := decodeVarintList(o.Positions)
			charOffsets, _ := decodeVarintList(o.CharOffsets)
			occs[j] = Occurrence{
				AttributeID:    o.AttributeID,
				Positions:      positions,
				CharOffsets:    charOffsets,
				Synonym:        o.Synonym,
				SynonymCharLen: o.SynonymCharLen,
			}
		}
		out[i] = KeywordEntry{KeywordID: k.KeywordID, TFBoost: k.TFBoost, StaticScore: k.StaticScore, Occurrences: occs}
	}
	return out
}

// EncodeTo writes this read view's record slots, with every occurrence's
// positions/char-offsets varint-packed first, then the whole record set
// gob-encoded as the envelope around those packed buffers.
func (rv *ReadView) EncodeTo(w io.Writer) error {
	records := rv.ToSnapshot()
	wire := make([]recordWireDTO, len(records))
	for i, r := range records {
		wire[i] = recordWireDTO{
			Valid: r.Valid, ExtID: r.ExtID, Keywords: packKeywords(r.Keywords),
			Boost: r.Boost, Roles: r.Roles, Refining: r.Refining, Payload: r.Payload,
		}
	}
	return gob.NewEncoder(w).Encode(wire)
}

// DecodeFrom rebuilds a writable Index from a stream written by EncodeTo,
// unpacking each occurrence's varint-encoded position/char-offset buffers
// back into plain uint32 slices.
func DecodeFrom(r io.Reader) (*Index, error) {
	var wire []recordWireDTO
	if err := gob.NewDecoder(r).Decode(&wire); err != nil {
		return nil, err
	}
	records := make([]RecordDTO, len(wire))
	for i, w := range wire {
		records[i] = RecordDTO{
			Valid: w.Valid, ExtID: w.ExtID, Keywords: unpackKeywords(w.Keywords),
			Boost: w.Boost, Roles: w.Roles, Refining: w.Refining, Payload: w.Payload,
		}
	}
	return FromSnapshot(records), nil
}
