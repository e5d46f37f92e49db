package directustest

import (
	"fmt"
	"strconv"
)

// collection stores items in insertion order. Ids are auto-incremented
// integers unless the caller provides one.
type collection struct {
	items  []map[string]any
	nextID int
}

func newCollection() *collection {
	return &collection{nextID: 1}
}

func (col *collection) insert(item map[string]any, name, now string) map[string]any {
	if _, ok := item["id"]; !ok {
		item["id"] = float64(col.nextID)
		col.nextID++
	} else if n, err := strconv.Atoi(fmt.Sprint(item["id"])); err == nil && n >= col.nextID {
		col.nextID = n + 1
	}
	if _, ok := item["date_created"]; !ok {
		item["date_created"] = now
	}
	linkChildren(item, name)
	col.items = append(col.items, item)
	return item
}

func (col *collection) index(id string) int {
	for i, item := range col.items {
		if fmt.Sprint(item["id"]) == id {
			return i
		}
	}
	return -1
}

func (col *collection) get(id string) map[string]any {
	if i := col.index(id); i >= 0 {
		return col.items[i]
	}
	return nil
}

func (col *collection) remove(id string) bool {
	i := col.index(id)
	if i < 0 {
		return false
	}
	col.items = append(col.items[:i], col.items[i+1:]...)
	return true
}

// linkChildren gives nested one-to-many rows (such as the memes_tags
// junction under "tags") an id and a back reference to their parent.
func linkChildren(item map[string]any, name string) {
	seq := 1
	for _, v := range item {
		rows, ok := v.([]any)
		if !ok {
			continue
		}
		for _, r := range rows {
			row, ok := r.(map[string]any)
			if !ok {
				continue
			}
			if _, ok := row["id"]; !ok {
				row["id"] = float64(seq)
			}
			row[name+"_id"] = item["id"]
			seq++
		}
	}
}
