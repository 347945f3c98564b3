package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ValueKind tags the variant held by a Value.
type ValueKind string

const (
	KindScalar      ValueKind = "scalar"
	KindChoice      ValueKind = "choice"
	KindList        ValueKind = "list"
	KindPartitioned ValueKind = "partitioned"
	KindGroup       ValueKind = "group"
)

// ErrInvalidValue is returned when a Value does not match its declared kind.
var ErrInvalidValue = errors.New("invalid answer value")

// Value is one answer in the flat answer store. Exactly the members
// belonging to Kind are populated.
type Value struct {
	Kind      ValueKind         `json:"kind"`
	Text      string            `json:"text,omitempty"`
	Items     []string          `json:"items,omitempty"`
	Pool      []string          `json:"pool,omitempty"`
	Sequenced []string          `json:"sequenced,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Scalar is a free-text answer.
func Scalar(s string) Value { return Value{Kind: KindScalar, Text: s} }

// Choice is a single option picked from a fixed list.
func Choice(s string) Value { return Value{Kind: KindChoice, Text: s} }

// List is an ordered sequence of labels.
func List(items ...string) Value {
	return Value{Kind: KindList, Items: append([]string(nil), items...)}
}

// Partitioned is the state of a drag-and-drop ordering exercise: the labels
// still in the pool and the labels the student has sequenced.
func Partitioned(pool, sequenced []string) Value {
	return Value{
		Kind:      KindPartitioned,
		Pool:      append([]string(nil), pool...),
		Sequenced: append([]string(nil), sequenced...),
	}
}

// Group is a small fixed-arity record, e.g. one hormone row.
func Group(fields map[string]string) Value {
	cp := make(map[string]string, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Value{Kind: KindGroup, Fields: cp}
}

// Validate checks that only the members of the declared variant are set.
func (v Value) Validate() error {
	switch v.Kind {
	case KindScalar, KindChoice:
		if v.Items != nil || v.Pool != nil || v.Sequenced != nil || v.Fields != nil {
			return fmt.Errorf("%w: %s carries list or record members", ErrInvalidValue, v.Kind)
		}
	case KindList:
		if v.Text != "" || v.Pool != nil || v.Sequenced != nil || v.Fields != nil {
			return fmt.Errorf("%w: list carries foreign members", ErrInvalidValue)
		}
	case KindPartitioned:
		if v.Text != "" || v.Items != nil || v.Fields != nil {
			return fmt.Errorf("%w: partitioned carries foreign members", ErrInvalidValue)
		}
	case KindGroup:
		if v.Text != "" || v.Items != nil || v.Pool != nil || v.Sequenced != nil {
			return fmt.Errorf("%w: group carries foreign members", ErrInvalidValue)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidValue, v.Kind)
	}
	return nil
}

// Clone returns a deep copy so snapshots never alias the live store.
func (v Value) Clone() Value {
	out := Value{Kind: v.Kind, Text: v.Text}
	if v.Items != nil {
		out.Items = append([]string(nil), v.Items...)
	}
	if v.Pool != nil {
		out.Pool = append([]string(nil), v.Pool...)
	}
	if v.Sequenced != nil {
		out.Sequenced = append([]string(nil), v.Sequenced...)
	}
	if v.Fields != nil {
		out.Fields = make(map[string]string, len(v.Fields))
		for k, f := range v.Fields {
			out.Fields[k] = f
		}
	}
	return out
}

// String coerces the value to the flat text used by CSV export and form
// submission. Composite values are rendered as JSON.
func (v Value) String() string {
	switch v.Kind {
	case KindScalar, KindChoice:
		return v.Text
	case KindList:
		return mustJSON(nonNil(v.Items))
	case KindPartitioned:
		return mustJSON(struct {
			Pool      []string `json:"pool"`
			Sequenced []string `json:"sequenced"`
		}{nonNil(v.Pool), nonNil(v.Sequenced)})
	case KindGroup:
		keys := make([]string, 0, len(v.Fields))
		for k := range v.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+v.Fields[k])
		}
		return strings.Join(parts, "; ")
	default:
		return ""
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
