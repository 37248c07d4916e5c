package value

import (
	"encoding/json"
	"fmt"
)

// FromJSON converts a decoded JSON scalar. Numbers decoded with UseNumber
// become Int when integral and Double otherwise. Objects and arrays are
// kept as Handle payloads so size tuples and nested configs reach the
// adaptor unchanged. null yields the invalid Value.
func FromJSON(v any) Value {
	switch x := v.(type) {
	case float64:
		if x >= -1<<53 && x <= 1<<53 && x == float64(int64(x)) {
			return Int(int64(x))
		}
		return Double(x)
	case map[string]any, []any:
		return Handle(x)
	}
	return Of(v)
}

// MarshalJSON encodes the payload as a plain JSON value. Colours encode as
// their #rrggbbaa string form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case Invalid:
		return []byte("null"), nil
	case ColorKind:
		return json.Marshal(v.c.String())
	case HandleKind:
		b, err := json.Marshal(v.h)
		if err != nil {
			return nil, fmt.Errorf("value: handle payload %T is not serializable: %w", v.h, err)
		}
		return b, nil
	}
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes a plain JSON value using the FromJSON rules.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromJSON(raw)
	return nil
}
