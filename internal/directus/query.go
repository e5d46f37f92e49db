package directus

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

// LimitAll asks the backend for every matching item.
const LimitAll = -1

// Filter is a Directus filter document, e.g. {"read": {"_eq": false}}.
type Filter map[string]any

// Where builds a filter applying op to a field. Dotted paths address
// relational fields: Where("tags.tags_id", "_in", ids) becomes
// {"tags": {"tags_id": {"_in": ids}}}.
func Where(field, op string, value any) Filter {
	parts := strings.Split(field, ".")
	var node any = map[string]any{op: value}
	for i := len(parts) - 1; i >= 0; i-- {
		node = map[string]any{parts[i]: node}
	}
	return Filter(node.(map[string]any))
}

// And combines filters with the _and operator. Nil filters are skipped.
func And(filters ...Filter) Filter {
	parts := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if len(f) > 0 {
			parts = append(parts, f)
		}
	}
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	}
	return Filter{"_and": parts}
}

// Query holds the global query parameters accepted by item endpoints.
type Query struct {
	Fields []string
	Filter Filter
	// Sort lists fields to sort by; a leading "-" sorts descending.
	Sort []string
	// Limit of zero leaves the backend default in place; LimitAll removes it.
	Limit  int
	Offset int
	Search string
	// Meta requests metadata such as "filter_count".
	Meta string
}

// Values encodes q as URL query parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	if len(q.Fields) > 0 {
		v.Set("fields", strings.Join(q.Fields, ","))
	}
	if len(q.Filter) > 0 {
		// A filter document is always marshalable: it holds plain values.
		data, _ := json.Marshal(q.Filter)
		v.Set("filter", string(data))
	}
	if len(q.Sort) > 0 {
		v.Set("sort", strings.Join(q.Sort, ","))
	}
	if q.Limit != 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Meta != "" {
		v.Set("meta", q.Meta)
	}
	return v
}

// Meta is the metadata block of a list response.
type Meta struct {
	FilterCount int `json:"filter_count"`
	TotalCount  int `json:"total_count"`
}

// Envelope is the {"data": ...} wrapper used by every Directus response.
type Envelope[T any] struct {
	Data T     `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}
