package directustest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// currentUserVar is the dynamic filter variable for the requesting user.
const currentUserVar = "$CURRENT_USER"

// matches reports whether item satisfies a Directus filter document.
func matches(item map[string]any, filter map[string]any, userID string) bool {
	for key, cond := range filter {
		switch key {
		case "_and":
			for _, sub := range asSlice(cond) {
				if m, ok := sub.(map[string]any); ok && !matches(item, m, userID) {
					return false
				}
			}
		case "_or":
			found := false
			for _, sub := range asSlice(cond) {
				if m, ok := sub.(map[string]any); ok && matches(item, m, userID) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			c, ok := cond.(map[string]any)
			if !ok || !matchValue(item[key], c, userID) {
				return false
			}
		}
	}
	return true
}

// matchValue applies a condition to a field value. Conditions whose keys are
// not operators descend into relations; an array relation matches when any
// of its rows does.
func matchValue(value any, cond map[string]any, userID string) bool {
	for op, arg := range cond {
		if !strings.HasPrefix(op, "_") {
			if !matchRelation(value, map[string]any{op: arg}, userID) {
				return false
			}
			continue
		}
		if s, ok := arg.(string); ok && s == currentUserVar {
			arg = userID
		}
		if !applyOp(op, value, arg) {
			return false
		}
	}
	return true
}

func matchRelation(value any, filter map[string]any, userID string) bool {
	switch v := value.(type) {
	case map[string]any:
		return matches(v, filter, userID)
	case []any:
		for _, row := range v {
			if m, ok := row.(map[string]any); ok && matches(m, filter, userID) {
				return true
			}
		}
	}
	return false
}

func applyOp(op string, value, arg any) bool {
	switch op {
	case "_eq":
		return scalar(value) == scalar(arg)
	case "_neq":
		return scalar(value) != scalar(arg)
	case "_contains":
		return strings.Contains(scalar(value), scalar(arg))
	case "_icontains":
		return strings.Contains(strings.ToLower(scalar(value)), strings.ToLower(scalar(arg)))
	case "_in":
		return inList(value, arg)
	case "_nin":
		return !inList(value, arg)
	case "_null":
		return (value == nil) == truthy(arg)
	case "_nnull":
		return (value != nil) == truthy(arg)
	case "_gt":
		return compare(value, arg) > 0
	case "_gte":
		return compare(value, arg) >= 0
	case "_lt":
		return compare(value, arg) < 0
	case "_lte":
		return compare(value, arg) <= 0
	}
	return false
}

func inList(value, arg any) bool {
	for _, candidate := range asSlice(arg) {
		if scalar(value) == scalar(candidate) {
			return true
		}
	}
	return false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "1"
	}
	return v != nil
}

func asSlice(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case string:
		parts := strings.Split(t, ",")
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out
	}
	return nil
}

// scalar renders a JSON value for equality checks, so that the number 1 and
// the string "1" compare equal.
func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		return scalar(t["id"])
	}
	return fmt.Sprint(v)
}

// compare orders numbers numerically, timestamps chronologically and
// everything else lexically.
func compare(a, b any) int {
	if x, ok := a.(float64); ok {
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	sa, sb := scalar(a), scalar(b)
	if ta, err := time.Parse(time.RFC3339Nano, sa); err == nil {
		if tb, err := time.Parse(time.RFC3339Nano, sb); err == nil {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(sa, sb)
}

// sortItems orders items by Directus sort fields; "-field" sorts
// descending. Ties keep insertion order.
func sortItems(items []map[string]any, fields []string) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		for _, f := range fields {
			desc := strings.HasPrefix(f, "-")
			f = strings.TrimPrefix(f, "-")
			c := compare(items[i][f], items[j][f])
			if c == 0 {
				continue
			}
			if desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// searchMatches reports whether any top-level string field contains term.
func searchMatches(item map[string]any, term string) bool {
	term = strings.ToLower(term)
	for _, v := range item {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	return false
}
