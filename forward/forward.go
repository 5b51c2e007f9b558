// Package forward implements the per-record forward list: for each live
// record, the sorted array of keyword ids it contains plus the
// per-keyword positional, attribute and scoring metadata needed by phrase
// search and ranking.
package forward

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	tt "github.com/rekki/go-search-core/types"
)

// ErrDuplicatePrimaryKey is returned by AddRecord when the external id is
// already present in either the write or read view.
var ErrDuplicatePrimaryKey = errors.New("forward: duplicate primary key")

// ErrKeywordLimitExceeded is returned when a record would carry more than
// 2^24-1 distinct keyword ids, per §7.
var ErrKeywordLimitExceeded = errors.New("forward: keyword limit exceeded")

const maxKeywordsPerRecord = 1<<24 - 1

// Occurrence is one keyword's appearance within a single searchable
// attribute: its word positions (bumped for multi-valued fields, §4.2),
// character offsets, and synonym metadata.
type Occurrence struct {
	AttributeID    tt.AttributeId
	Positions      []uint32
	CharOffsets    []uint32
	Synonym        bool
	SynonymCharLen uint32
}

// KeywordEntry is one slot of a record's forward list.
type KeywordEntry struct {
	KeywordID   tt.KeywordId
	TFBoost     float32 // tf * field-boost product
	StaticScore float32 // half-precision in the origin; float32 here, see SPEC_FULL.md
	Occurrences []Occurrence
}

// attributeSet returns the set of attribute ids this keyword occurred
// in, used by AttributeFilter evaluation.
func (k *KeywordEntry) attributeSet() map[tt.AttributeId]bool {
	m := make(map[tt.AttributeId]bool, len(k.Occurrences))
	for _, o := range k.Occurrences {
		m[o.AttributeID] = true
	}
	return m
}

// LookupResult classifies the outcome of LookupExternal.
type LookupResult int

const (
	AbsentOrToBeDeleted LookupResult = iota
	PresentInReadAndWriteView
	ToBeInserted
)

type record struct {
	valid    bool
	extID    string
	keywords []KeywordEntry // sorted by KeywordID ascending
	boost    float32
	acl      *RecordAcl
	refining []tt.RefiningValue
	payload  []byte
}

// RecordAcl is a sorted set of role ids guarded by its own lock so ACL
// mutation never blocks unrelated forward-index readers, per §4.2.
type RecordAcl struct {
	mu    sync.RWMutex
	roles []string
}

func NewRecordAcl(roles []string) *RecordAcl {
	a := &RecordAcl{roles: append([]string(nil), roles...)}
	sort.Strings(a.roles)
	return a
}

func (a *RecordAcl) HasRole(role string) bool {
	if a == nil {
		return true // no ACL means unrestricted
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	i := sort.SearchStrings(a.roles, role)
	return i < len(a.roles) && a.roles[i] == role
}

// Op is the ACL mutation kind passed to Modify.
type Op int

const (
	OpAdd Op = iota
	OpAppend
	OpDelete
)

func (a *RecordAcl) Modify(roles []string, op Op) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch op {
	case OpDelete:
		kept := a.roles[:0]
		del := make(map[string]bool, len(roles))
		for _, r := range roles {
			del[r] = true
		}
		for _, r := range a.roles {
			if !del[r] {
				kept = append(kept, r)
			}
		}
		a.roles = kept
	default: // Add / Append both insert-if-missing, kept distinct to mirror the origin's naming
		set := make(map[string]bool, len(a.roles))
		for _, r := range a.roles {
			set[r] = true
		}
		for _, r := range roles {
			set[r] = true
		}
		out := make([]string, 0, len(set))
		for r := range set {
			out = append(out, r)
		}
		sort.Strings(out)
		a.roles = out
	}
}

func (a *RecordAcl) Roles() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.roles...)
}

// Index is the forward index: write-side scratch guarded by mu, published
// read view behind an atomic pointer, same COW discipline as the trie.
type Index struct {
	mu          sync.Mutex
	records     []*record
	byExternal  map[string]tt.InternalRecordId
	toBeDeleted map[tt.InternalRecordId]bool
	readView    atomic.Pointer[ReadView]
}

// ReadView is the immutable snapshot search operators run against.
type ReadView struct {
	Records []recordSnapshot
}

type recordSnapshot struct {
	Valid    bool
	ExtID    string
	Keywords []KeywordEntry
	Boost    float32
	Acl      *RecordAcl
	Refining []tt.RefiningValue
	Payload  []byte
	Bitmap   *roaring.Bitmap // keyword ids present, for O(1) random-access membership
}

func New() *Index {
	idx := &Index{byExternal: map[string]tt.InternalRecordId{}, toBeDeleted: map[tt.InternalRecordId]bool{}}
	idx.readView.Store(&ReadView{})
	return idx
}

func (idx *Index) ReadView() *ReadView { return idx.readView.Load() }

// RecordDTO is the gob-serializable form of one record slot: RecordAcl's
// mutex doesn't round-trip, so its role list is flattened to a plain
// slice here and rewrapped by FromSnapshot.
type RecordDTO struct {
	Valid    bool
	ExtID    string
	Keywords []KeywordEntry
	Boost    float32
	Roles    []string
	Refining []tt.RefiningValue
	Payload  []byte
}

// ToSnapshot captures the current read view for persistence.
func (rv *ReadView) ToSnapshot() []RecordDTO {
	out := make([]RecordDTO, len(rv.Records))
	for i, r := range rv.Records {
		var roles []string
		if r.Acl != nil {
			roles = r.Acl.Roles()
		}
		out[i] = RecordDTO{Valid: r.Valid, ExtID: r.ExtID, Keywords: r.Keywords, Boost: r.Boost, Roles: roles, Refining: r.Refining, Payload: r.Payload}
	}
	return out
}

// FromSnapshot rebuilds a writable Index from persisted record DTOs,
// ready to accept further AddRecord calls.
func FromSnapshot(records []RecordDTO) *Index {
	idx := New()
	idx.records = make([]*record, len(records))
	for i, r := range records {
		var acl *RecordAcl
		if r.Roles != nil {
			acl = NewRecordAcl(r.Roles)
		}
		idx.records[i] = &record{valid: r.Valid, extID: r.ExtID, keywords: r.Keywords, boost: r.Boost, acl: acl, refining: r.Refining, payload: r.Payload}
		if r.Valid {
			idx.byExternal[r.ExtID] = tt.InternalRecordId(i)
		} else {
			idx.toBeDeleted[tt.InternalRecordId(i)] = true
		}
	}
	idx.Merge(nil)
	return idx
}

// AddRecord appends a new record to the write view (visible to readers
// only after the next Merge). keywords must already be sorted by
// KeywordID ascending (the caller — Indexer — builds this from the
// analyzer's token stream via the Trie).
func (idx *Index) AddRecord(extID string, keywords []KeywordEntry, boost float32, acl *RecordAcl, refining []tt.RefiningValue, payload []byte) (tt.InternalRecordId, error) {
	if len(keywords) > maxKeywordsPerRecord {
		return 0, ErrKeywordLimitExceeded
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.byExternal[extID]; ok {
		return 0, ErrDuplicatePrimaryKey
	}

	id := tt.InternalRecordId(len(idx.records))
	idx.records = append(idx.records, &record{
		valid: true, extID: extID, keywords: keywords, boost: boost, acl: acl, refining: refining, payload: payload,
	})
	idx.byExternal[extID] = id
	return id, nil
}

// MarkDeleted flips the validity bit; readers with an in-flight snapshot
// still see the entry but search operators filter it out.
func (idx *Index) MarkDeleted(id tt.InternalRecordId) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if int(id) >= len(idx.records) || idx.records[id] == nil {
		return errors.New("forward: record not found")
	}
	idx.records[id].valid = false
	delete(idx.byExternal, idx.records[id].extID)
	idx.toBeDeleted[id] = true
	return nil
}

// Recover clears the validity bit set by MarkDeleted.
func (idx *Index) Recover(id tt.InternalRecordId, extID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if int(id) >= len(idx.records) || idx.records[id] == nil {
		return errors.New("forward: record not found")
	}
	if _, exists := idx.byExternal[extID]; exists {
		return ErrDuplicatePrimaryKey
	}
	idx.records[id].valid = true
	idx.records[id].extID = extID
	idx.byExternal[extID] = id
	delete(idx.toBeDeleted, id)
	return nil
}

// LookupExternal classifies the current state of an external id across
// both views.
func (idx *Index) LookupExternal(extID string) (LookupResult, tt.InternalRecordId) {
	idx.mu.Lock()
	id, okWrite := idx.byExternal[extID]
	idx.mu.Unlock()
	if !okWrite {
		return AbsentOrToBeDeleted, 0
	}

	rv := idx.ReadView()
	if int(id) < len(rv.Records) && rv.Records[id].Valid && rv.Records[id].ExtID == extID {
		return PresentInReadAndWriteView, id
	}
	return ToBeInserted, id
}

// ModifyAcl mutates a record's role set; safe to call concurrently with
// reads because RecordAcl guards itself.
func (idx *Index) ModifyAcl(id tt.InternalRecordId, roles []string, op Op) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if int(id) >= len(idx.records) || idx.records[id] == nil {
		return errors.New("forward: record not found")
	}
	r := idx.records[id]
	if r.acl == nil {
		r.acl = NewRecordAcl(nil)
	}
	r.acl.Modify(roles, op)
	return nil
}

// Merge publishes a new read view reflecting every write-side mutation
// since the last merge. If mapping is non-nil (a trie reassignment just
// happened), every record's keyword-id array is rewritten under the
// mapping and re-sorted.
func (idx *Index) Merge(mapping map[tt.KeywordId]tt.KeywordId) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	snaps := make([]recordSnapshot, len(idx.records))
	for i, r := range idx.records {
		if r == nil {
			continue
		}
		kws := r.keywords
		if mapping != nil {
			kws = remap(kws, mapping)
		}
		bm := roaring.New()
		for _, k := range kws {
			bm.Add(uint32(k.KeywordID))
		}
		snaps[i] = recordSnapshot{
			Valid: r.valid, ExtID: r.extID, Keywords: kws, Boost: r.boost,
			Acl: r.acl, Refining: r.refining, Payload: r.payload, Bitmap: bm,
		}
		if mapping != nil {
			r.keywords = kws
		}
	}
	idx.readView.Store(&ReadView{Records: snaps})
}

func remap(kws []KeywordEntry, mapping map[tt.KeywordId]tt.KeywordId) []KeywordEntry {
	out := make([]KeywordEntry, len(kws))
	for i, k := range kws {
		if nid, ok := mapping[k.KeywordID]; ok {
			k.KeywordID = nid
		}
		out[i] = k
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KeywordID < out[j].KeywordID })
	return out
}

// HasWordInRange binary-searches rec's sorted keyword-id array for a hit
// in [lo,hi], optionally restricted to an attribute filter, per §4.2.
func (rv *ReadView) HasWordInRange(recID tt.InternalRecordId, lo, hi tt.KeywordId, filter *tt.AttributeFilter) (tt.KeywordId, *KeywordEntry, bool) {
	if int(recID) >= len(rv.Records) {
		return 0, nil, false
	}
	r := &rv.Records[recID]
	if !r.Valid {
		return 0, nil, false
	}
	kws := r.Keywords
	i := sort.Search(len(kws), func(i int) bool { return kws[i].KeywordID >= lo })
	for ; i < len(kws) && kws[i].KeywordID <= hi; i++ {
		if filter != nil {
			occ := kws[i].attributeSet()
			if !filter.Matches(occ) {
				continue
			}
		}
		return kws[i].KeywordID, &kws[i], true
	}
	return 0, nil, false
}

// KeywordOffset returns the slot index of keywordID within rec's forward
// list, or false if absent.
func (rv *ReadView) KeywordOffset(recID tt.InternalRecordId, keywordID tt.KeywordId) (int, bool) {
	if int(recID) >= len(rv.Records) {
		return 0, false
	}
	kws := rv.Records[recID].Keywords
	i := sort.Search(len(kws), func(i int) bool { return kws[i].KeywordID >= keywordID })
	if i < len(kws) && kws[i].KeywordID == keywordID {
		return i, true
	}
	return 0, false
}

// FetchPositions returns the decoded word positions for the given
// record/offset/attribute, or nil if that attribute wasn't touched.
func (rv *ReadView) FetchPositions(recID tt.InternalRecordId, offset int, attr tt.AttributeId) []uint32 {
	k := &rv.Records[recID].Keywords[offset]
	for _, o := range k.Occurrences {
		if o.AttributeID == attr {
			return o.Positions
		}
	}
	return nil
}

// OccurrenceAttributes returns the attribute ids this record/offset has any
// occurrence under, in occurrence order. Used by phrase evaluation to find
// the attributes a phrase's keywords share without probing an id range.
func (rv *ReadView) OccurrenceAttributes(recID tt.InternalRecordId, offset int) []tt.AttributeId {
	k := &rv.Records[recID].Keywords[offset]
	out := make([]tt.AttributeId, len(k.Occurrences))
	for i, o := range k.Occurrences {
		out[i] = o.AttributeID
	}
	return out
}

// FetchCharOffsets mirrors FetchPositions for character offsets.
func (rv *ReadView) FetchCharOffsets(recID tt.InternalRecordId, offset int, attr tt.AttributeId) []uint32 {
	k := &rv.Records[recID].Keywords[offset]
	for _, o := range k.Occurrences {
		if o.AttributeID == attr {
			return o.CharOffsets
		}
	}
	return nil
}

// RefiningAttribute returns the typed refining value at the given
// schema-ordinal, used by FilterQuery/SortByRefiningAttribute/Facet.
func (rv *ReadView) RefiningAttribute(recID tt.InternalRecordId, ordinal int) (tt.RefiningValue, bool) {
	if int(recID) >= len(rv.Records) {
		return tt.RefiningValue{}, false
	}
	rs := rv.Records[recID].Refining
	if ordinal < 0 || ordinal >= len(rs) {
		return tt.RefiningValue{}, false
	}
	return rs[ordinal], true
}

// RecordBoost returns the caller-declared record-level boost.
func (rv *ReadView) RecordBoost(recID tt.InternalRecordId) float32 {
	if int(recID) >= len(rv.Records) {
		return 1
	}
	return rv.Records[recID].Boost
}

// Payload returns the optional opaque stored buffer.
func (rv *ReadView) Payload(recID tt.InternalRecordId) ([]byte, bool) {
	if int(recID) >= len(rv.Records) {
		return nil, false
	}
	p := rv.Records[recID].Payload
	return p, p != nil
}

// Acl returns the record's ACL handle, or nil if unrestricted.
func (rv *ReadView) Acl(recID tt.InternalRecordId) *RecordAcl {
	if int(recID) >= len(rv.Records) {
		return nil
	}
	return rv.Records[recID].Acl
}

// ExternalID returns the caller-supplied primary key for a record.
func (rv *ReadView) ExternalID(recID tt.InternalRecordId) (string, bool) {
	if int(recID) >= len(rv.Records) {
		return "", false
	}
	r := &rv.Records[recID]
	return r.ExtID, r.Valid
}

// IsValid reports whether recID is a live (non-deleted) record in this
// view.
func (rv *ReadView) IsValid(recID tt.InternalRecordId) bool {
	return int(recID) < len(rv.Records) && rv.Records[recID].Valid
}

// ContainsKeyword is the random-access membership test physical operators
// use (RandomAccessTerm, MergeByShortestList verification): O(1) via the
// per-record roaring bitmap built at merge time.
func (rv *ReadView) ContainsKeyword(recID tt.InternalRecordId, keywordID tt.KeywordId) bool {
	if int(recID) >= len(rv.Records) {
		return false
	}
	r := &rv.Records[recID]
	if !r.Valid || r.Bitmap == nil {
		return false
	}
	return r.Bitmap.Contains(uint32(keywordID))
}

// Len returns the number of record slots (including deleted ones) in this
// view.
func (rv *ReadView) Len() int { return len(rv.Records) }
