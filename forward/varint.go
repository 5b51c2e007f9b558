package forward

import "github.com/gogo/protobuf/proto"

// encodeVarintList packs a slice of positions (or char offsets) using the
// same LEB128-style varint codec gogo/protobuf uses for its wire format,
// terminated by a single zero byte so a reader can stop without a separate
// length table, per §4.2's "Layout rationale".
func encodeVarintList(values []uint32) []byte {
	var out []byte
	for _, v := range values {
		// +1 so a real zero value in the list never collides with the
		// terminator byte below.
		out = append(out, proto.EncodeVarint(uint64(v)+1)...)
	}
	out = append(out, 0)
	return out
}

func decodeVarintList(buf []byte) ([]uint32, int) {
	var out []uint32
	pos := 0
	for pos < len(buf) {
		if buf[pos] == 0 {
			pos++
			break
		}
		v, n := proto.DecodeVarint(buf[pos:])
		if n == 0 {
			break
		}
		out = append(out, uint32(v-1))
		pos += n
	}
	return out, pos
}
