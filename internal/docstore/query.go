package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Filter is an equality condition on a top-level field.
type Filter struct {
	Field string
	Value any
}

// Query selects documents of a single collection.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string // numeric field; empty keeps id order
	Descending bool
	Limit      int // 0 = no limit
}

// From starts a query over a collection.
func From(collection string) Query {
	return Query{Collection: collection}
}

// Where adds an equality filter.
func (q Query) Where(field string, value any) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Field: field, Value: value})
	return q
}

// OrderByDesc orders results by a numeric field, highest first.
func (q Query) OrderByDesc(field string) Query {
	q.OrderBy = field
	q.Descending = true
	return q
}

// WithLimit caps the number of results.
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// Key identifies the query for request coalescing.
func (q Query) Key() string {
	var b strings.Builder
	b.WriteString(q.Collection)
	for _, f := range q.Filters {
		raw, _ := json.Marshal(f.Value)
		fmt.Fprintf(&b, "|%s=%s", f.Field, raw)
	}
	if q.OrderBy != "" {
		fmt.Fprintf(&b, "|order=%s,%t", q.OrderBy, q.Descending)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, "|limit=%d", q.Limit)
	}
	return b.String()
}

// Matches reports whether the document satisfies every filter.
func (q Query) Matches(doc Doc) bool {
	for _, f := range q.Filters {
		if !sameValue(doc[f.Field], f.Value) {
			return false
		}
	}
	return true
}

// Evaluate filters, orders and limits snapshots in memory. Backends that cannot
// push a query down run it through here.
func Evaluate(q Query, snaps []Snapshot) []Snapshot {
	out := make([]Snapshot, 0, len(snaps))
	for _, s := range snaps {
		if q.Matches(s.Data) {
			out = append(out, s)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if q.OrderBy != "" {
			a, b := number(out[i].Data[q.OrderBy]), number(out[j].Data[q.OrderBy])
			if a != b {
				if q.Descending {
					return a > b
				}
				return a < b
			}
		}
		return out[i].ID < out[j].ID
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func sameValue(a, b any) bool {
	ra, err := json.Marshal(a)
	if err != nil {
		return false
	}
	rb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ra, rb)
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}
