package search

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rekki/go-search-core/activenode"
	"github.com/rekki/go-search-core/feedback"
	"github.com/rekki/go-search-core/forward"
	"github.com/rekki/go-search-core/inverted"
	"github.com/rekki/go-search-core/snapshot"
	"github.com/rekki/go-search-core/trie"
)

// formatCounter bumps whenever the on-disk body layout changes
// incompatibly; bump it alongside any change to the encode/decode
// functions below. 2: forward.bin's per-occurrence positions/char-offsets
// switched from plain gob-encoded []uint32 to varint-packed []byte
// (forward/persist.go).
const formatCounter uint16 = 2

// boostVersion records which varint scheme packs the forward index's
// per-occurrence position/char-offset buffers inside the gob envelope
// (gogo/protobuf's proto.EncodeVarint, per forward/varint.go and
// forward/persist.go) so a future alternate encoder can coexist.
const boostVersion uint32 = 1

// IndexVersion is the fixed 8-byte header written at the start of every
// persisted file (§6).
type IndexVersion struct {
	Counter      uint16
	BoostVersion uint32
	Endianness   uint8 // 0 big, 1 little
	PointerWidth uint8 // 4 or 8
}

func currentVersion() IndexVersion {
	return IndexVersion{
		Counter:      formatCounter,
		BoostVersion: boostVersion,
		Endianness:   1,
		PointerWidth: uint8(strconv.IntSize / 8),
	}
}

func writeHeader(w io.Writer, v IndexVersion) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint16(buf[0:2], v.Counter)
	binary.LittleEndian.PutUint32(buf[2:6], v.BoostVersion)
	buf[6] = v.Endianness
	buf[7] = v.PointerWidth
	_, err := w.Write(buf)
	return err
}

func readHeader(r io.Reader) (IndexVersion, error) {
	buf := make([]byte, 8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return IndexVersion{}, err
	}
	v := IndexVersion{
		Counter:      binary.LittleEndian.Uint16(buf[0:2]),
		BoostVersion: binary.LittleEndian.Uint32(buf[2:6]),
		Endianness:   buf[6],
		PointerWidth: buf[7],
	}
	want := currentVersion()
	if v.Counter != want.Counter || v.BoostVersion != want.BoostVersion ||
		v.Endianness != want.Endianness || v.PointerWidth != want.PointerWidth {
		return v, newErr(IncompatibleIndexVersion, fmt.Errorf("got %+v want %+v", v, want))
	}
	return v, nil
}

// Save writes one header-prefixed file per index under dir, per §6's
// persistence format: each body is gob-encoded, with the forward index's
// per-occurrence positions/char-offsets varint-packed inside that envelope
// (forward/persist.go), the trie as its node arena in index order (not a
// pre-order walk), inverted lists as flat arrays, feedback as its two
// bounds plus per-query vectors (the age list and head/tail are not
// saved, so recency order is not restored by Load).
func (ix *Indexer) Save(dir string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := saveFile(filepath.Join(dir, "trie.bin"), ix.trie.ReadView().EncodeTo); err != nil {
		return err
	}
	if err := saveFile(filepath.Join(dir, "forward.bin"), ix.forward.ReadView().EncodeTo); err != nil {
		return err
	}
	if err := saveFile(filepath.Join(dir, "inverted.bin"), ix.inverted.ReadView().EncodeTo); err != nil {
		return err
	}
	if err := saveFile(filepath.Join(dir, "feedback.bin"), ix.feedback.ReadView().EncodeTo); err != nil {
		return err
	}
	return nil
}

func saveFile(path string, encode func(io.Writer) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := writeHeader(w, currentVersion()); err != nil {
		return err
	}
	if err := encode(w); err != nil {
		return err
	}
	return w.Flush()
}

// Load rebuilds an Indexer from a directory written by Save. schema and
// options are supplied by the caller (§6's `Indexer::load(meta)`) since
// analyzers and the record-boost closure can't round-trip through a byte
// stream.
func Load(dir string, schema Schema, options Options) (*Indexer, error) {
	options = options.withDefaults()

	tr, err := loadFile(filepath.Join(dir, "trie.bin"), trie.DecodeFrom)
	if err != nil {
		return nil, err
	}
	fw, err := loadFile(filepath.Join(dir, "forward.bin"), forward.DecodeFrom)
	if err != nil {
		return nil, err
	}
	inv, err := loadFile(filepath.Join(dir, "inverted.bin"), inverted.DecodeFrom)
	if err != nil {
		return nil, err
	}
	fb, err := loadFile(filepath.Join(dir, "feedback.bin"), feedback.DecodeFrom)
	if err != nil {
		return nil, err
	}

	ix := Create(schema, options)
	ix.trie = tr
	ix.forward = fw
	ix.inverted = inv
	ix.feedback = fb
	ix.snapshots.Publish(snapshotBundleOf(tr, fw, inv, fb, ix.activeNodes))
	return ix, nil
}

func loadFile[T any](path string, decode func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer f.Close()
	r := bufio.NewReader(f)
	if _, err := readHeader(r); err != nil {
		return zero, err
	}
	v, err := decode(r)
	if err != nil {
		return zero, newErr(IndexFileCorrupt, err)
	}
	return v, nil
}

func snapshotBundleOf(tr *trie.Trie, fw *forward.Index, inv *inverted.Index, fb *feedback.Index, activeNodes *activenode.Cache) snapshot.Bundle {
	return snapshot.Bundle{Trie: tr.ReadView(), Forward: fw.ReadView(), Inverted: inv.ReadView(), Feedback: fb.ReadView(), ActiveNodes: activeNodes}
}
