package search

import tt "github.com/rekki/go-search-core/types"

// Record is the add_record input: one external-id-keyed document with its
// searchable text fields, typed refining values, ACL roles and optional
// opaque payload.
type Record struct {
	ExternalID string

	// Fields holds the raw text for each declared searchable attribute,
	// one or more values per attribute (multi-valued when len > 1).
	Fields map[string][]string

	// Refining holds the typed scalar for each declared refining
	// attribute, keyed by attribute name.
	Refining map[string]tt.RefiningValue

	Roles   []string
	Boost   float32 // caller-supplied static component; combined with Schema.RecordBoost
	Payload []byte
}
