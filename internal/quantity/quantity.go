// Package quantity extracts numeric magnitudes from free-form workout fields.
//
// Weight and reps are authored by people and by the coaching model alike, so a
// field may hold 80, "80kg", "8-12 reps" or "bodyweight". Parse is the single
// sanctioned way to turn any of those into an integer.
package quantity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

var digits = regexp.MustCompile(`\d+`)

// ParseText returns the first run of ASCII digits in s, or 0 when there is none
// or the run does not fit in an int.
func ParseText(s string) int {
	match := digits.FindString(s)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}

// Parse accepts a number, a string, a Value or nil and returns the first
// embedded non-negative integer. Unsupported inputs yield 0.
func Parse(v any) int {
	switch t := v.(type) {
	case nil:
		return 0
	case Value:
		return t.Int()
	case *Value:
		if t == nil {
			return 0
		}
		return t.Int()
	case string:
		return ParseText(t)
	case int:
		return ParseText(strconv.Itoa(t))
	case int32:
		return ParseText(strconv.FormatInt(int64(t), 10))
	case int64:
		return ParseText(strconv.FormatInt(t, 10))
	case float32:
		return ParseText(strconv.FormatFloat(float64(t), 'f', -1, 32))
	case float64:
		return ParseText(strconv.FormatFloat(t, 'f', -1, 64))
	case json.Number:
		return ParseText(t.String())
	case fmt.Stringer:
		return ParseText(t.String())
	default:
		return 0
	}
}

// Value is either an exact number or free text. The zero Value is absent.
type Value struct {
	text    string
	number  float64
	numeric bool
}

// Number builds a numeric Value.
func Number(n float64) Value {
	return Value{number: n, numeric: true}
}

// Text builds a free-text Value. Text("") is absent.
func Text(s string) Value {
	return Value{text: s}
}

// IsNumeric reports whether the value was supplied as a number.
func (v Value) IsNumeric() bool { return v.numeric }

// IsZero reports whether the value is absent.
func (v Value) IsZero() bool { return !v.numeric && v.text == "" }

// Int extracts the magnitude using the same rules as Parse.
func (v Value) Int() int {
	if v.numeric {
		return ParseText(strconv.FormatFloat(v.number, 'f', -1, 64))
	}
	return ParseText(v.text)
}

// String renders the value the way it was authored.
func (v Value) String() string {
	if v.numeric {
		return strconv.FormatFloat(v.number, 'f', -1, 64)
	}
	return v.text
}

// Blank reports whether the value is absent or the number zero. A blank actual
// value defers to the prescribed one.
func (v Value) Blank() bool {
	return v.IsZero() || (v.numeric && v.number == 0)
}

// Or returns v unless it is blank, in which case fallback is returned.
func (v Value) Or(fallback Value) Value {
	if v.Blank() {
		return fallback
	}
	return v
}

// MarshalJSON keeps numbers as numbers and text as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.numeric {
		return json.Marshal(v.number)
	}
	return json.Marshal(v.text)
}

// UnmarshalJSON accepts a JSON number, string or null.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("quantity: expected number or string, got %s", data)
	}
	*v = Number(n)
	return nil
}
