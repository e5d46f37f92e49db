package directustest

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nhle/memebox/internal/model"
)

// publicCollections may be read without credentials.
var publicCollections = map[string]bool{"memes": true, "tags": true}

// lookup resolves the collection of the request or aborts with the error
// Directus returns for collections the caller cannot see.
func (b *Backend) lookup(c *gin.Context) (*collection, bool) {
	name := c.Param("collection")
	col, ok := b.collections[name]
	if !ok {
		abort(c, http.StatusForbidden, "FORBIDDEN", "You don't have permission to access this.")
		return nil, false
	}
	return col, true
}

func (b *Backend) handleListItems() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("collection")
		userID := currentUser(c)
		if userID == "" && !publicCollections[name] {
			abort(c, http.StatusForbidden, "FORBIDDEN", "You don't have permission to access this.")
			return
		}

		var filter map[string]any
		if raw := c.Query("filter"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &filter); err != nil {
				abort(c, http.StatusBadRequest, "INVALID_QUERY", "Invalid query. Invalid JSON for filter object.")
				return
			}
		}
		limit := 100
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				abort(c, http.StatusBadRequest, "INVALID_QUERY", `Invalid query. "limit" has to be a number.`)
				return
			}
			limit = n
		}
		offset, _ := strconv.Atoi(c.Query("offset"))

		b.mu.Lock()
		col, ok := b.lookup(c)
		if !ok {
			b.mu.Unlock()
			return
		}
		var result []map[string]any
		for _, item := range col.items {
			if filter != nil && !matches(item, filter, userID) {
				continue
			}
			if term := c.Query("search"); term != "" && !searchMatches(item, term) {
				continue
			}
			result = append(result, clone(item))
		}
		total := len(col.items)
		b.mu.Unlock()

		filtered := len(result)
		sortItems(result, splitList(c.Query("sort")))
		result = page(result, offset, limit)

		fields := splitList(c.Query("fields"))
		b.mu.Lock()
		for _, item := range result {
			b.expandLocked(item, fields)
		}
		b.mu.Unlock()

		resp := gin.H{"data": nonNil(result)}
		if meta := c.Query("meta"); meta != "" {
			m := gin.H{}
			if meta == "*" || strings.Contains(meta, "filter_count") {
				m["filter_count"] = filtered
			}
			if meta == "*" || strings.Contains(meta, "total_count") {
				m["total_count"] = total
			}
			resp["meta"] = m
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (b *Backend) handleGetItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUser(c) == "" && !publicCollections[c.Param("collection")] {
			abort(c, http.StatusForbidden, "FORBIDDEN", "You don't have permission to access this.")
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()

		col, ok := b.lookup(c)
		if !ok {
			return
		}
		item := col.get(c.Param("id"))
		if item == nil {
			abort(c, http.StatusNotFound, "ROUTE_NOT_FOUND", "Item not found.")
			return
		}
		out := clone(item)
		b.expandLocked(out, splitList(c.Query("fields")))
		c.JSON(http.StatusOK, gin.H{"data": out})
	}
}

func (b *Backend) handleCreateItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUser(c)
		if !ok {
			return
		}
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			abort(c, http.StatusBadRequest, "INVALID_PAYLOAD", "Invalid payload.")
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()

		col, ok := b.lookup(c)
		if !ok {
			return
		}
		body = normalize(body)
		delete(body, "id")
		if _, set := body["user_created"]; !set {
			body["user_created"] = userID
		}
		item := col.insert(body, c.Param("collection"), b.timestamp())
		c.JSON(http.StatusOK, gin.H{"data": clone(item)})
	}
}

func (b *Backend) handleUpdateItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireUser(c); !ok {
			return
		}
		var patch map[string]any
		if err := c.ShouldBindJSON(&patch); err != nil {
			abort(c, http.StatusBadRequest, "INVALID_PAYLOAD", "Invalid payload.")
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()

		col, ok := b.lookup(c)
		if !ok {
			return
		}
		item := col.get(c.Param("id"))
		if item == nil {
			abort(c, http.StatusForbidden, "FORBIDDEN", "You don't have permission to access this.")
			return
		}
		for k, v := range normalize(patch) {
			if k == "id" {
				continue
			}
			item[k] = v
		}
		item["date_updated"] = b.timestamp()
		linkChildren(item, c.Param("collection"))
		c.JSON(http.StatusOK, gin.H{"data": clone(item)})
	}
}

func (b *Backend) handleDeleteItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireUser(c); !ok {
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()

		col, ok := b.lookup(c)
		if !ok {
			return
		}
		if !col.remove(c.Param("id")) {
			abort(c, http.StatusForbidden, "FORBIDDEN", "You don't have permission to access this.")
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (b *Backend) handleUpload() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireUser(c); !ok {
			return
		}
		fh, err := c.FormFile("file")
		if err != nil {
			abort(c, http.StatusBadRequest, "INVALID_PAYLOAD", "No file was included in the body.")
			return
		}
		f, err := fh.Open()
		if err != nil {
			abort(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", err.Error())
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			abort(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", err.Error())
			return
		}

		file := model.File{
			ID:               model.ID(uuid.NewString()),
			FilenameDownload: fh.Filename,
			Type:             fh.Header.Get("Content-Type"),
			Filesize:         int64(len(data)),
		}
		b.mu.Lock()
		b.files[string(file.ID)] = &fileRecord{File: file, Data: data}
		b.mu.Unlock()

		c.JSON(http.StatusOK, gin.H{"data": file})
	}
}

func (b *Backend) handleAsset() gin.HandlerFunc {
	return func(c *gin.Context) {
		b.mu.Lock()
		f, ok := b.files[c.Param("id")]
		b.mu.Unlock()
		if !ok {
			abort(c, http.StatusNotFound, "ROUTE_NOT_FOUND", "File not found.")
			return
		}
		c.Data(http.StatusOK, f.File.Type, f.Data)
	}
}

// expandLocked replaces relation ids with the related records when the
// requested fields reach into them ("user_created.first_name",
// "tags.tags_id.name").
func (b *Backend) expandLocked(item map[string]any, fields []string) {
	for _, f := range fields {
		switch {
		case f == "*.*" || strings.HasPrefix(f, "user_created."):
			if rec, ok := b.users[scalar(item["user_created"])]; ok {
				item["user_created"] = normalize(map[string]any{
					"id":         rec.User.ID,
					"first_name": rec.User.FirstName,
					"last_name":  rec.User.LastName,
					"email":      rec.User.Email,
					"avatar":     rec.User.Avatar,
				})
			}
		case strings.HasPrefix(f, "tags.tags_id."):
			tags := b.collections["tags"]
			rows, _ := item["tags"].([]any)
			for _, r := range rows {
				row, ok := r.(map[string]any)
				if !ok || tags == nil {
					continue
				}
				if tag := tags.get(scalar(row["tags_id"])); tag != nil {
					row["tags_id"] = clone(tag)
				}
			}
		}
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func page(items []map[string]any, offset, limit int) []map[string]any {
	if offset > len(items) {
		return nil
	}
	items = items[offset:]
	if limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func nonNil(items []map[string]any) []map[string]any {
	if items == nil {
		return []map[string]any{}
	}
	return items
}
