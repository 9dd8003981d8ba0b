package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueKind discriminates the metric Value union.
type ValueKind int

const (
	// KindNone is the zero Value; it carries no data.
	KindNone ValueKind = iota
	KindNumber
	KindText
	KindList
)

// String implements fmt.Stringer.
func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindList:
		return "list"
	default:
		return "none"
	}
}

// Value is a metric value: exactly one of a number, a text or a list of text.
type Value struct {
	kind ValueKind
	num  float64
	text string
	list []string
}

// Number returns a numeric Value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Text returns a textual Value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// List returns a list Value. The items are copied.
func List(items ...string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

// Kind reports which variant v holds.
func (v Value) Kind() ValueKind { return v.kind }

// IsZero reports whether v holds no data.
func (v Value) IsZero() bool { return v.kind == KindNone }

// Float returns the numeric payload.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Items returns the list payload, or a one-element slice for scalars.
func (v Value) Items() []string {
	switch v.kind {
	case KindList:
		cp := make([]string, len(v.list))
		copy(cp, v.list)
		return cp
	case KindNone:
		return nil
	default:
		return []string{v.String()}
	}
}

// String renders v as display text. List items are joined with ", ".
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return v.text
	case KindList:
		return strings.Join(v.list, ", ")
	default:
		return ""
	}
}

// Equal compares numerically when both sides are numbers, element-wise for
// lists, and by rendered text otherwise. A list never equals a scalar.
func (v Value) Equal(o Value) bool {
	if v.kind == KindList || o.kind == KindList {
		if v.kind != o.kind || len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != o.list[i] {
				return false
			}
		}
		return true
	}
	if v.kind == KindNumber && o.kind == KindNumber {
		return v.num == o.num
	}
	if v.kind == KindNone || o.kind == KindNone {
		return v.kind == o.kind
	}
	return v.String() == o.String()
}

// YAML returns the plain Go value used when writing v into front matter.
// Integral numbers become int64 so they are emitted without a decimal point.
func (v Value) YAML() any {
	switch v.kind {
	case KindNumber:
		if v.num == math.Trunc(v.num) && math.Abs(v.num) < 1<<53 {
			return int64(v.num)
		}
		return v.num
	case KindText:
		return v.text
	case KindList:
		return v.Items()
	default:
		return nil
	}
}

// MarshalJSON encodes numbers as JSON numbers, text as strings and lists as arrays.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindText:
		return json.Marshal(v.text)
	case KindList:
		return json.Marshal(v.Items())
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Value{}
	case float64:
		*v = Number(t)
	case string:
		*v = Text(t)
	case []any:
		items := make([]string, 0, len(t))
		for _, it := range t {
			items = append(items, fmt.Sprint(it))
		}
		*v = List(items...)
	default:
		return fmt.Errorf("models: unsupported metric value %T", raw)
	}
	return nil
}
