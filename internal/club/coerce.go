package club

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Text is a string that also accepts JSON numbers and booleans. null and
// composite values decode to "".
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*t = Text(textOf(v))
	return nil
}

func (t Text) String() string { return string(t) }

func textOf(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

// Number accepts JSON numbers, numeric strings and booleans. Anything else
// decodes to 0.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = Number(numberOf(v))
	return nil
}

func (n Number) Float() float64 { return float64(n) }

func numberOf(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Flag follows JSON truthiness: false, 0, "" and null are false.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*f = false
	case bool:
		*f = Flag(x)
	case float64:
		*f = x != 0
	case string:
		*f = x != ""
	default:
		*f = true
	}
	return nil
}

// List is a JSON array field that remembers whether the value was an array
// at all. Elements that fail to decode become the zero element.
type List[T any] struct {
	Items []T
	Valid bool
}

func (l *List[T]) UnmarshalJSON(b []byte) error {
	l.Items, l.Valid = nil, false
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil
	}
	items := make([]T, 0, len(raw))
	for _, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			var zero T
			v = zero
		}
		items = append(items, v)
	}
	l.Items, l.Valid = items, true
	return nil
}

func (l List[T]) MarshalJSON() ([]byte, error) {
	if l.Items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.Items)
}

// Slice returns the decoded elements, or nil when the value was not an array.
func (l List[T]) Slice() []T {
	if !l.Valid {
		return nil
	}
	if l.Items == nil {
		return []T{}
	}
	return l.Items
}

// NewList wraps items as a valid list.
func NewList[T any](items ...T) List[T] {
	if items == nil {
		items = []T{}
	}
	return List[T]{Items: items, Valid: true}
}

// AssignmentMap decodes any non-object value as an empty map.
type AssignmentMap map[string]Assignment

func (m *AssignmentMap) UnmarshalJSON(b []byte) error {
	out := AssignmentMap{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err == nil {
		for k, r := range raw {
			var a Assignment
			if err := json.Unmarshal(r, &a); err != nil {
				a = Assignment{}
			}
			out[k] = a
		}
	}
	*m = out
	return nil
}

func (a *Assignment) UnmarshalJSON(b []byte) error {
	var v struct {
		MembreID Text `json:"membreId"`
		Nom      Text `json:"nom"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	a.MembreID, a.Nom = string(v.MembreID), string(v.Nom)
	return nil
}
