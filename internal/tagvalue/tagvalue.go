// Package tagvalue defines the value types that flow along edges: the tag
// value triple, tag metadata, and the decode precedence used to turn a
// stored row into a value.
package tagvalue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/PaesslerAG/jsonpath"

	"github.com/tagflow/engine/internal/quality"
)

// DataType is the symbolic type carried by a TagDescriptor.
type DataType string

const (
	DataTypeBool   DataType = "BOOL"
	DataTypeInt    DataType = "INT"
	DataTypeReal   DataType = "REAL"
	DataTypeString DataType = "STRING"
	DataTypeJSON   DataType = "JSON"
)

// DriverType is the closed set of tag sources named in the data model. Only
// INTERNAL tags accept engine writes.
type DriverType string

const (
	DriverInternal DriverType = "INTERNAL"
	DriverSystem   DriverType = "SYSTEM"
	DriverOPCUA    DriverType = "OPCUA"
	DriverModbus   DriverType = "MODBUS"
	DriverMQTT     DriverType = "MQTT"
)

// Writable reports whether the engine is permitted to write a value for this
// driver type. Only INTERNAL tags are writable; writes to anything else must
// fail with a typed error at the call site.
func (d DriverType) Writable() bool { return d == DriverInternal }

// TagDescriptor is the immutable metadata describing a tag.
type TagDescriptor struct {
	TagID        string     `db:"tag_id" json:"tag_id"`
	TagPath      string     `db:"tag_path" json:"tag_path"`
	TagName      string     `db:"tag_name" json:"tag_name"`
	DataType     DataType   `db:"data_type" json:"data_type"`
	ConnectionID string     `db:"connection_id" json:"connection_id"`
	DriverType   DriverType `db:"driver_type" json:"driver_type"`
}

// Value is a tagged union over the payload kinds a TagValue may carry.
type Value struct {
	Number     *float64
	Text       *string
	Structured any
}

// IsNull reports whether the value carries no payload at all.
func (v Value) IsNull() bool {
	return v.Number == nil && v.Text == nil && v.Structured == nil
}

// Raw returns the payload as a plain any, preferring number, then text, then
// structured. Decode sets only one payload, so its own structured-first
// precedence is not affected by this order.
func (v Value) Raw() any {
	switch {
	case v.Number != nil:
		return *v.Number
	case v.Text != nil:
		return *v.Text
	case v.Structured != nil:
		return v.Structured
	default:
		return nil
	}
}

// Num wraps a float64 payload.
func Num(f float64) Value { return Value{Number: &f} }

// Str wraps a string payload.
func Str(s string) Value { return Value{Text: &s} }

// Structured wraps a structured (map/slice) payload.
func Structured(v any) Value { return Value{Structured: v} }

// Null is the empty Value.
var Null = Value{}

// TagValue is the triple that flows along every edge: a value, its quality,
// and the instant it was produced. A TagValue with a zero Timestamp is
// treated as "now" by callers.
type TagValue struct {
	Value     Value
	Quality   quality.Code
	Timestamp time.Time
}

// QualityValue implements quality.Valued so quality.Extract can unpack a
// TagValue without a type switch.
func (t TagValue) QualityValue() (any, quality.Code) { return t.Value.Raw(), t.Quality }

// EffectiveTimestamp returns Timestamp, substituting the current instant
// when it is the zero value.
func (t TagValue) EffectiveTimestamp() time.Time {
	if t.Timestamp.IsZero() {
		return time.Now().UTC()
	}
	return t.Timestamp
}

// StoredRow is the shape of a decoded tag_values / system_metrics row before
// precedence resolution picks the active payload.
type StoredRow struct {
	Timestamp time.Time
	Quality   quality.Code
	Num       *float64
	Text      *string
	JSON      []byte
}

// Decode applies the structured -> numeric -> text precedence to a stored
// row: a non-empty v_json column wins, then v_num, then v_text.
func Decode(row StoredRow) (TagValue, error) {
	tv := TagValue{Quality: row.Quality, Timestamp: row.Timestamp}

	switch {
	case len(row.JSON) > 0:
		var structured any
		if err := json.Unmarshal(row.JSON, &structured); err != nil {
			return TagValue{}, fmt.Errorf("tagvalue: decode structured payload: %w", err)
		}
		tv.Value = Structured(structured)
	case row.Num != nil:
		tv.Value = Num(*row.Num)
	case row.Text != nil:
		tv.Value = Str(*row.Text)
	default:
		tv.Value = Null
	}
	return tv, nil
}

// ExtractPath applies a JSONPath expression to a structured TagValue's
// payload, used by TagInput's structured decode and by the script sandbox's
// $tags.get helper to pull a scalar out of a structured reading.
func ExtractPath(v Value, path string) (any, error) {
	if v.Structured == nil {
		return nil, fmt.Errorf("tagvalue: value has no structured payload for path %q", path)
	}
	result, err := jsonpath.Get(path, v.Structured)
	if err != nil {
		return nil, fmt.Errorf("tagvalue: jsonpath %q: %w", path, err)
	}
	return result, nil
}
