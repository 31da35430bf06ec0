// Package pk classifies primary key values as UUID or integer ID. Every join
// insertion and lookup in the data-mesh join engine routes through here to
// decide which (_id, _uuid) column pair a value belongs on.
package pk

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Kind identifies which family a primary key value belongs to.
type Kind int

const (
	// KindID marks a value interpreted as an integer-compatible primary key.
	KindID Kind = iota
	// KindUUID marks a value that parses as an RFC-4122 UUID.
	KindUUID
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k == KindUUID {
		return "uuid"
	}
	return "id"
}

// Classify reports whether v is an RFC-4122 UUID or an integer-compatible ID.
// Any string that fails uuid.Parse is treated as an ID; callers that need a
// stricter integer check should validate separately.
func Classify(v string) Kind {
	if _, err := uuid.Parse(v); err == nil {
		return KindUUID
	}
	return KindID
}

// Stringify normalizes arbitrary decoded-JSON primary-key values (string,
// float64, json.Number, int, int64) into their canonical string form before
// classification, so "42", 42, and 42.0 all classify and compare identically.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Values splits a decoded-JSON field value that may be a scalar or an array
// into a flat slice of stringified values. A list-valued PK field yields one
// entry per element; a scalar becomes a single-element slice so callers
// never special-case cardinality.
func Values(v any) []string {
	if v == nil {
		return nil
	}
	if arr, ok := v.([]any); ok {
		out := make([]string, 0, len(arr))
		for _, elem := range arr {
			out = append(out, Stringify(elem))
		}
		return out
	}
	return []string{Stringify(v)}
}
