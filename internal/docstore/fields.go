package docstore

import "encoding/json"

// Transform is a field value computed from the field's current value at write time.
type Transform interface {
	apply(current any) any
}

type increment struct {
	by float64
}

func (i increment) apply(current any) any {
	return number(current) + i.by
}

// Increment adds n to a numeric field, treating a missing field as zero.
func Increment(n int) Transform {
	return increment{by: float64(n)}
}

// Apply lays fields over existing (or over an empty body without merge) and
// resolves transforms. The result is normalized to its JSON form so every
// backend sees the same value types.
func Apply(existing Doc, fields Doc, merge bool) (Doc, error) {
	out := Doc{}
	if merge {
		for k, v := range existing {
			out[k] = v
		}
	}
	for k, v := range fields {
		if t, ok := v.(Transform); ok {
			out[k] = t.apply(out[k])
			continue
		}
		out[k] = v
	}
	return Normalize(out)
}

// Normalize round-trips a document through JSON, producing a deep copy made of
// JSON value types (float64, string, bool, []any, map[string]any).
func Normalize(doc Doc) (Doc, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	out := Doc{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
