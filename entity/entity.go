// Package entity defines the record shape exchanged with the API and
// the two per-record transforms the engine needs: narrow normalization
// of key-field references for local indexing, and in-memory matching of
// list parameters against cached records.
package entity

// Entity is a domain record as decoded from the wire. Records are
// schemaless JSON objects; nested reference objects ({id, ...}) may
// appear in any field.
type Entity = map[string]any
