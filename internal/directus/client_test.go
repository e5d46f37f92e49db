package directus_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nhle/memebox/internal/directus"
	"github.com/nhle/memebox/internal/directustest"
	"github.com/nhle/memebox/internal/model"
)

func setup(t *testing.T) (*directustest.Backend, *directus.Client, model.User) {
	t.Helper()

	backend := directustest.Start(t)
	user := backend.AddUser(model.User{Email: "ada@example.com", FirstName: "Ada"}, "secret")
	tokens, err := backend.IssueTokens(user.ID)
	if err != nil {
		t.Fatalf("IssueTokens: %v", err)
	}

	client := directus.NewClient(backend.URL + "/")
	client.SetTokenSource(func(context.Context) (string, error) {
		return tokens.AccessToken, nil
	})
	return backend, client, user
}

func TestClient_ListItemsWithQuery(t *testing.T) {
	backend, client, user := setup(t)
	ctx := context.Background()

	backend.AddItem("notifications", map[string]any{
		"type": "like", "user": user.ID, "read": false, "date_created": "2026-01-01T10:00:00Z",
	})
	backend.AddItem("notifications", map[string]any{
		"type": "comment", "user": user.ID, "read": false, "date_created": "2026-01-01T11:00:00Z",
	})
	backend.AddItem("notifications", map[string]any{
		"type": "like", "user": user.ID, "read": true, "date_created": "2026-01-01T12:00:00Z",
	})
	backend.AddItem("notifications", map[string]any{
		"type": "like", "user": "someone-else", "read": false, "date_created": "2026-01-01T13:00:00Z",
	})

	q := directus.Query{
		Filter: directus.And(
			directus.Where("user", "_eq", user.ID),
			directus.Where("read", "_eq", false),
		),
		Sort:  []string{"-date_created"},
		Limit: 10,
		Meta:  "filter_count",
	}
	records, meta, err := directus.ListItems[model.NotificationRecord](ctx, client, "notifications", q)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Type != model.NotificationComment {
		t.Errorf("first record type = %q, want newest (comment) first", records[0].Type)
	}
	if meta == nil || meta.FilterCount != 2 {
		t.Errorf("meta = %+v, want filter_count 2", meta)
	}

	sent := backend.LastQuery(http.MethodGet, "/items/notifications")
	if got := sent.Get("limit"); got != "10" {
		t.Errorf("limit = %q, want 10", got)
	}
	if got := sent.Get("sort"); got != "-date_created" {
		t.Errorf("sort = %q, want -date_created", got)
	}
}

func TestClient_ItemLifecycle(t *testing.T) {
	backend, client, user := setup(t)
	ctx := context.Background()

	created, err := directus.CreateItem[model.Meme](ctx, client, "memes", map[string]any{
		"title":  "Distracted boyfriend",
		"status": "published",
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if created.ID.IsZero() {
		t.Fatal("created meme has no id")
	}
	if created.UserCreated.ID != user.ID {
		t.Errorf("user_created = %q, want %q", created.UserCreated.ID, user.ID)
	}

	updated, err := directus.UpdateItem[model.Meme](ctx, client, "memes", created.ID.String(), map[string]any{"views": 3})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if updated.Views != 3 {
		t.Errorf("views = %d, want 3", updated.Views)
	}

	got, err := directus.GetItem[model.Meme](ctx, client, "memes", created.ID.String(),
		directus.Query{Fields: []string{"*", "user_created.first_name"}})
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.UserCreated.Name() != "Ada" {
		t.Errorf("expanded user name = %q, want Ada", got.UserCreated.Name())
	}

	if err := directus.DeleteItem(ctx, client, "memes", created.ID.String()); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if backend.Item("memes", created.ID.String()) != nil {
		t.Error("meme still stored after delete")
	}
}

func TestClient_ErrorClassification(t *testing.T) {
	backend, client, _ := setup(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"not found", http.StatusNotFound, directus.IsNotFound},
		{"forbidden", http.StatusForbidden, directus.IsForbidden},
		{"unauthorized", http.StatusUnauthorized, directus.IsUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend.Fail(http.MethodGet, "/items/tags", tt.status, 1)

			_, _, err := directus.ListItems[model.Tag](ctx, client, "tags", directus.Query{})
			if !tt.check(err) {
				t.Fatalf("error %v not classified as %s", err, tt.name)
			}
			var apiErr *directus.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error %T is not *APIError", err)
			}
			if apiErr.Path != "/items/tags" {
				t.Errorf("path = %q", apiErr.Path)
			}
		})
	}

	backend.RemoveCollection("notifications")
	_, _, err := directus.ListItems[model.NotificationRecord](ctx, client, "notifications", directus.Query{})
	if !directus.IsMisconfigured(err) {
		t.Errorf("missing collection error %v not classified as misconfigured", err)
	}
}

func TestClient_FieldErrors(t *testing.T) {
	_, client, _ := setup(t)

	err := client.Post(context.Background(), "/users/register", map[string]string{
		"email": "not-an-email", "password": "x",
	}, nil)

	var apiErr *directus.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if msg := apiErr.FieldErrors()["email"]; !strings.Contains(msg, "valid email") {
		t.Errorf("email field error = %q", msg)
	}
}

func TestClient_RetriesRateLimited(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":1,"name":"cats"}]}`))
	}))
	t.Cleanup(srv.Close)

	client := directus.NewClient(srv.URL)
	tags, _, err := directus.ListItems[model.Tag](context.Background(), client, "tags", directus.Query{})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if n := attempts.Load(); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
	if len(tags) != 1 || tags[0].ID != "1" {
		t.Errorf("tags = %+v", tags)
	}
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := directus.NewClient(url)
	err := client.Get(context.Background(), "/server/ping", nil, nil)
	if err == nil {
		t.Fatal("expected transport error")
	}
	if directus.StatusOf(err) != 0 {
		t.Errorf("transport error carries status %d", directus.StatusOf(err))
	}
	if directus.Describe(err) == "" {
		t.Error("Describe returned empty message")
	}
}

func TestClient_UploadAndAssetURL(t *testing.T) {
	backend, client, _ := setup(t)

	file, err := client.UploadFile(context.Background(), "/tmp/cat.png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if file.Type != "image/png" {
		t.Errorf("type = %q, want image/png", file.Type)
	}
	data, ok := backend.File(file.ID.String())
	if !ok || string(data) != "png-bytes" {
		t.Errorf("stored file = %q, %v", data, ok)
	}

	got := client.AssetURL(file.ID.String(), directus.ThumbnailTransforms)
	want := backend.URL + "/assets/" + file.ID.String() + "?width=100&height=100&fit=cover"
	if got != want {
		t.Errorf("AssetURL = %q, want %q", got, want)
	}
	if client.AssetURL("", "") != "" {
		t.Error("AssetURL of empty id should be empty")
	}
}

func TestQuery_Values(t *testing.T) {
	q := directus.Query{
		Fields: []string{"*", "tags.tags_id.*"},
		Filter: directus.And(
			directus.Where("title", "_contains", "cat"),
			directus.Where("tags.tags_id", "_in", []string{"1", "2"}),
		),
		Sort:   []string{"-likes", "-views"},
		Limit:  directus.LimitAll,
		Offset: 20,
	}
	v := q.Values()

	if got := v.Get("fields"); got != "*,tags.tags_id.*" {
		t.Errorf("fields = %q", got)
	}
	wantFilter := `{"_and":[{"title":{"_contains":"cat"}},{"tags":{"tags_id":{"_in":["1","2"]}}}]}`
	if got := v.Get("filter"); got != wantFilter {
		t.Errorf("filter = %s, want %s", got, wantFilter)
	}
	if got := v.Get("limit"); got != "-1" {
		t.Errorf("limit = %q", got)
	}
	if got := v.Get("offset"); got != "20" {
		t.Errorf("offset = %q", got)
	}
	if (directus.Query{}).Values().Encode() != "" {
		t.Error("empty query should encode to nothing")
	}
}
