// Package playerstats turns raw scraped labels and scalars into the values
// persisted for a player season.
package playerstats

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// PercentUnit is the only unit recognised in scraped values.
const PercentUnit = "%"

// Value is the normalized form of a raw scalar. A nil field means none.
type Value struct {
	Num  *float64
	Text *string
	Unit *string
}

// IsZero reports whether the raw scalar was nil.
func (v Value) IsZero() bool {
	return v.Num == nil && v.Text == nil && v.Unit == nil
}

// ParseValue coerces a raw scalar into a numeric/text/unit triple. It never
// fails: a string that does not parse keeps its text and gets no number.
func ParseValue(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return Value{}
	case json.Number:
		return parseString(v.String())
	case string:
		return parseString(v)
	case float64:
		return numeric(v, strconv.FormatFloat(v, 'f', -1, 64))
	case float32:
		return numeric(float64(v), strconv.FormatFloat(float64(v), 'f', -1, 32))
	case int:
		return numeric(float64(v), strconv.Itoa(v))
	case int32:
		return numeric(float64(v), strconv.FormatInt(int64(v), 10))
	case int64:
		return numeric(float64(v), strconv.FormatInt(v, 10))
	case uint64:
		return numeric(float64(v), strconv.FormatUint(v, 10))
	case bool:
		return Value{Text: ptr(strconv.FormatBool(v))}
	default:
		b, err := sonic.Marshal(v)
		if err != nil {
			return Value{}
		}
		return Value{Text: ptr(string(b))}
	}
}

func parseString(raw string) Value {
	out := Value{Text: ptr(raw)}
	s := strings.TrimSpace(raw)
	if strings.HasSuffix(s, PercentUnit) {
		out.Unit = ptr(PercentUnit)
		s = strings.TrimSpace(strings.TrimSuffix(s, PercentUnit))
	}
	s = strings.ReplaceAll(s, ",", "")
	if n, ok := parseDecimal(s); ok {
		out.Num = &n
	}
	return out
}

func numeric(n float64, text string) Value {
	out := Value{Text: ptr(text)}
	if !math.IsNaN(n) && !math.IsInf(n, 0) {
		out.Num = &n
	}
	return out
}

// parseDecimal accepts plain decimal literals with an optional exponent.
// Hex, underscores and non-finite spellings are rejected.
func parseDecimal(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= '0' && c <= '9') || c == '.' || c == '+' || c == '-' || c == 'e' || c == 'E' {
			continue
		}
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func ptr[T any](v T) *T {
	return &v
}
