/*
record.go - Named-field settings record with immediate save

PURPOSE:
  Every upgrade keeps its settings in a Record: a flat map of named fields
  that survives save/load. Reading an absent key yields the caller's
  default. Every Set* call writes the field and then invokes the save
  handler before returning; there is no batching.

VALUE TYPES:
  Records round-trip through JSON (sqlite settings column, snapshots), so
  integer getters accept int, int64, float64 and json.Number.

SEE ALSO:
  - policy.go: AutomationPolicy reads and writes its fields here
  - factory/upgrade.go: Wires the save handler to the UpgradeStore
*/
package generic

import (
	"encoding/json"
	"math"
)

// SaveHandler persists the full field set after a change.
type SaveHandler func(fields map[string]any) error

type Record struct {
	fields map[string]any
	onSave SaveHandler
}

// NewRecord copies fields. A nil handler makes writes memory-only.
func NewRecord(fields map[string]any, onSave SaveHandler) *Record {
	r := &Record{fields: make(map[string]any, len(fields)), onSave: onSave}
	for k, v := range fields {
		r.fields[k] = v
	}
	return r
}

// SetSaveHandler replaces the handler, e.g. after the record is loaded
// from a snapshot and rebound to a store.
func (r *Record) SetSaveHandler(h SaveHandler) { r.onSave = h }

// Fields returns a copy of the current fields.
func (r *Record) Fields() map[string]any {
	out := make(map[string]any, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

func (r *Record) Has(key string) bool {
	_, ok := r.fields[key]
	return ok
}

func (r *Record) Int(key string) (int, bool) {
	switch v := r.fields[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func (r *Record) IntOr(key string, def int) int {
	if v, ok := r.Int(key); ok {
		return v
	}
	return def
}

func (r *Record) String(key string) (string, bool) {
	s, ok := r.fields[key].(string)
	return s, ok
}

func (r *Record) SetInt(key string, v int) error {
	r.fields[key] = v
	return r.Save()
}

func (r *Record) SetString(key, v string) error {
	r.fields[key] = v
	return r.Save()
}

// Save invokes the save handler with a copy of the fields.
func (r *Record) Save() error {
	if r.onSave == nil {
		return nil
	}
	return r.onSave(r.Fields())
}
