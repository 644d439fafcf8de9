package record

import (
	"encoding/json"
	"fmt"
)

// Kind is the closed set of record types the router knows how to process.
// Anything outside the set decodes to KindUnknown.
type Kind int

const (
	KindUnknown Kind = iota
	KindAccessLog
	KindTransaction
	KindSystemError
)

// Kinds lists every known kind in a stable order.
var Kinds = []Kind{KindAccessLog, KindTransaction, KindSystemError}

var kindNames = map[Kind]string{
	KindAccessLog:   "access_log",
	KindTransaction: "transaction",
	KindSystemError: "system_error",
}

// ParseKind maps a declared type discriminator to its Kind. The match is
// exact; unrecognised values yield KindUnknown.
func ParseKind(s string) Kind {
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return KindUnknown
}

// String returns the wire name of the kind ("unknown" for KindUnknown).
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Fields is the free-form, type-specific payload of a record.
type Fields map[string]interface{}

// Record is one unit of work read from the input batch.
//
// The declared type is captured at decode time and cannot be changed
// afterwards: it is kept in unexported fields and every helper that derives
// a new record carries it over untouched. Fields never contains the "type"
// key.
type Record struct {
	typ  string
	kind Kind

	// Index is the zero-based position of the record in its batch.
	Index  int
	Fields Fields
}

// New builds a record with the given declared type. A "type" entry in
// fields is ignored.
func New(typ string, index int, fields Fields) Record {
	cp := make(Fields, len(fields))
	for k, v := range fields {
		if k == TypeField {
			continue
		}
		cp[k] = v
	}
	return Record{typ: typ, kind: ParseKind(typ), Index: index, Fields: cp}
}

// TypeField is the discriminator key in the input documents.
const TypeField = "type"

// Type returns the declared type discriminator exactly as it was read.
func (r Record) Type() string { return r.typ }

// Kind returns the classified kind of the record.
func (r Record) Kind() Kind { return r.kind }

// Get returns the value stored under key.
func (r Record) Get(key string) (interface{}, bool) {
	v, ok := r.Fields[key]
	return v, ok
}

// With returns a copy of the record with key set to v. The receiver is not
// modified, so a chain can derive fields without touching the batch copy.
func (r Record) With(key string, v interface{}) Record {
	out := r.Clone()
	if key == TypeField {
		return out
	}
	out.Fields[key] = v
	return out
}

// Clone returns a record with its own top-level field map.
func (r Record) Clone() Record {
	cp := make(Fields, len(r.Fields))
	for k, v := range r.Fields {
		cp[k] = v
	}
	r.Fields = cp
	return r
}

// Map flattens the record into a document including the "type" key.
func (r Record) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(r.Fields)+1)
	for k, v := range r.Fields {
		m[k] = v
	}
	m[TypeField] = r.typ
	return m
}

// MarshalJSON encodes the record as the flat document it was read from.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

// Rejection pairs a record with the reason it could not be processed.
type Rejection struct {
	record Record
	reason string
}

// NewRejection builds a rejection notice. An empty reason is an error: every
// rejection must say why it happened.
func NewRejection(rec Record, reason string) (Rejection, error) {
	if reason == "" {
		return Rejection{}, fmt.Errorf("rejection of record %d (%s) has empty reason", rec.Index, rec.typ)
	}
	return Rejection{record: rec, reason: reason}, nil
}

// Record returns the rejected record.
func (r Rejection) Record() Record { return r.record }

// Reason returns the human-readable cause.
func (r Rejection) Reason() string { return r.reason }
