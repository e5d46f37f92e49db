package gallery_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nhle/memebox/internal/directus"
	"github.com/nhle/memebox/internal/directustest"
	"github.com/nhle/memebox/internal/gallery"
	"github.com/nhle/memebox/internal/model"
	"github.com/nhle/memebox/tests/testutil"
)

type fakeAuth bool

func (a fakeAuth) IsAuthenticated() bool { return bool(a) }

func setup(t *testing.T) (*directustest.Backend, *directus.Client, model.User) {
	t.Helper()

	backend := directustest.Start(t)
	user := backend.AddUser(model.User{Email: "ada@example.com", FirstName: "Ada"}, "secret")
	tokens, err := backend.IssueTokens(user.ID)
	if err != nil {
		t.Fatal(err)
	}
	client := directus.NewClient(backend.URL)
	client.SetTokenSource(func(context.Context) (string, error) { return tokens.AccessToken, nil })
	return backend, client, user
}

func writeImage(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(strings.Repeat("x", size)), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMemes_ListFiltersAndPages(t *testing.T) {
	backend, client, user := setup(t)
	ctx := context.Background()

	cats := backend.AddItem("tags", map[string]any{"name": "cats"})
	dogs := backend.AddItem("tags", map[string]any{"name": "dogs"})

	backend.AddItem("memes", map[string]any{
		"title": "Grumpy cat", "status": "published", "user_created": user.ID,
		"date_created": "2026-03-01T10:00:00Z", "tags": []any{map[string]any{"tags_id": cats}},
	})
	backend.AddItem("memes", map[string]any{
		"title": "Doge", "status": "published", "user_created": user.ID,
		"date_created": "2026-03-02T10:00:00Z", "tags": []any{map[string]any{"tags_id": dogs}},
	})
	backend.AddItem("memes", map[string]any{
		"title": "Keyboard cat", "status": "published", "user_created": user.ID,
		"date_created": "2026-03-03T10:00:00Z", "tags": []any{map[string]any{"tags_id": cats}},
	})
	backend.AddItem("memes", map[string]any{
		"title": "Unfinished cat", "status": "draft", "user_created": user.ID,
		"date_created": "2026-03-04T10:00:00Z",
	})

	memes := gallery.NewMemes(client)

	page, err := memes.List(ctx, gallery.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 3 || len(page.Memes) != 3 {
		t.Fatalf("got %d of %d memes, want 3 published", len(page.Memes), page.Total)
	}
	if page.Memes[0].Title != "Keyboard cat" {
		t.Errorf("first meme = %q, want newest", page.Memes[0].Title)
	}
	if page.Memes[0].UserCreated.Name() != "Ada" {
		t.Errorf("author = %q, want Ada", page.Memes[0].UserCreated.Name())
	}
	if names := page.Memes[0].TagNames(); len(names) != 1 || names[0] != "cats" {
		t.Errorf("tag names = %v", names)
	}

	page, err = memes.List(ctx, gallery.ListOptions{Search: "cat", TagIDs: []model.ID{model.ID(cats)}})
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("filtered total = %d, want 2", page.Total)
	}

	page, err = memes.List(ctx, gallery.ListOptions{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("List page 2: %v", err)
	}
	if len(page.Memes) != 1 || page.HasMore() {
		t.Errorf("page 2 = %d memes, HasMore=%v", len(page.Memes), page.HasMore())
	}
	q := backend.LastQuery(http.MethodGet, "/items/memes")
	if q.Get("offset") != "2" || q.Get("limit") != "2" {
		t.Errorf("paging query = %v", q)
	}

	drafts, err := memes.Drafts(ctx, user.ID, 1, 0)
	if err != nil {
		t.Fatalf("Drafts: %v", err)
	}
	if len(drafts.Memes) != 1 || drafts.Memes[0].Status != model.MemeDraft {
		t.Errorf("drafts = %+v", drafts.Memes)
	}

	mine, err := memes.UserMemes(ctx, user.ID)
	if err != nil {
		t.Fatalf("UserMemes: %v", err)
	}
	if len(mine) != 4 {
		t.Errorf("user memes = %d, want 4", len(mine))
	}
}

func TestMemes_CreateUploadsImage(t *testing.T) {
	backend, client, user := setup(t)
	ctx := context.Background()
	memes := gallery.NewMemes(client)

	tag := backend.AddItem("tags", map[string]any{"name": "cats"})
	path := writeImage(t, "cat.png", 128)

	meme, err := memes.Create(ctx, gallery.CreateInput{
		Title:     "  Ceiling cat  ",
		ImagePath: path,
		TagIDs:    []model.ID{model.ID(tag)},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if meme.Title != "Ceiling cat" || meme.Status != model.MemePublished {
		t.Errorf("created meme = %+v", meme)
	}
	if meme.UserCreated.ID != user.ID {
		t.Errorf("author = %q", meme.UserCreated.ID)
	}
	if _, ok := backend.File(meme.Image.String()); !ok {
		t.Error("image was not uploaded")
	}

	got, err := memes.Get(ctx, meme.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if names := got.TagNames(); len(names) != 1 || names[0] != "cats" {
		t.Errorf("tags = %v", names)
	}

	title := "Floor cat"
	draft := model.MemeDraft
	updated, err := memes.Update(ctx, meme.ID, gallery.UpdateInput{Title: &title, Status: &draft})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != title || updated.Status != model.MemeDraft {
		t.Errorf("updated = %+v", updated)
	}

	if err := memes.Delete(ctx, meme.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := memes.Get(ctx, meme.ID); !directus.IsNotFound(err) {
		t.Errorf("Get after delete = %v, want not found", err)
	}
}

func TestMemes_CreateRejectsInvalidInput(t *testing.T) {
	backend, client, _ := setup(t)
	memes := gallery.NewMemes(client)

	_, err := memes.Create(context.Background(), gallery.CreateInput{
		Title:     "",
		ImagePath: writeImage(t, "notes.txt", 10),
	})
	if err == nil {
		t.Fatal("Create accepted an empty title and a text file")
	}
	if n := backend.Calls(http.MethodPost, "/files"); n != 0 {
		t.Errorf("uploaded %d files for invalid input", n)
	}
}

func TestMemes_IncrementViewsAndPopular(t *testing.T) {
	backend, client, _ := setup(t)
	ctx := context.Background()
	memes := gallery.NewMemes(client)

	a := backend.AddItem("memes", map[string]any{"title": "a", "status": "published", "likes": 5, "views": 1})
	backend.AddItem("memes", map[string]any{"title": "b", "status": "published", "likes": 9, "views": 0})
	backend.AddItem("memes", map[string]any{"title": "c", "status": "published", "likes": 5, "views": 7})
	backend.AddItem("memes", map[string]any{"title": "hidden", "status": "draft", "likes": 99})

	if err := memes.IncrementViews(ctx, model.ID(a)); err != nil {
		t.Fatalf("IncrementViews: %v", err)
	}
	if views := backend.Item("memes", a)["views"]; views != float64(2) {
		t.Errorf("views = %v, want 2", views)
	}

	popular, err := memes.Popular(ctx, 0)
	if err != nil {
		t.Fatalf("Popular: %v", err)
	}
	var titles []string
	for _, m := range popular {
		titles = append(titles, m.Title)
	}
	if strings.Join(titles, ",") != "b,c,a" {
		t.Errorf("popular order = %v, want b,c,a", titles)
	}
}

func TestMemes_UploadImage(t *testing.T) {
	backend, client, _ := setup(t)
	memes := gallery.NewMemes(client)

	file, err := memes.UploadImage(context.Background(), writeImage(t, "avatar.png", 64))
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if _, ok := backend.File(file.ID.String()); !ok {
		t.Errorf("file %s not stored", file.ID)
	}
	if _, err := memes.UploadImage(context.Background(), writeImage(t, "notes.txt", 10)); err == nil {
		t.Error("UploadImage accepted a text file")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~/memes/cat.png", filepath.Join(home, "memes/cat.png")},
		{"  '/tmp/dog.gif'  ", "/tmp/dog.gif"},
		{`"/tmp/a b.jpg"`, "/tmp/a b.jpg"},
		{"relative.png", "relative.png"},
	}
	for _, tt := range tests {
		if got := gallery.ExpandPath(tt.in); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTags(t *testing.T) {
	backend, client, _ := setup(t)
	ctx := context.Background()
	tags := gallery.NewTags(client)

	backend.AddItem("tags", map[string]any{"name": "dogs"})

	created, err := tags.Create(ctx, "  Cats ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Name != "cats" {
		t.Errorf("name = %q, want normalized", created.Name)
	}

	again, err := tags.Create(ctx, "CATS")
	if err != nil {
		t.Fatalf("Create duplicate: %v", err)
	}
	if again.ID != created.ID {
		t.Errorf("duplicate created a new tag %q", again.ID)
	}
	if n := len(backend.Items("tags")); n != 2 {
		t.Errorf("stored tags = %d, want 2", n)
	}

	if _, err := tags.Create(ctx, "   "); !errors.Is(err, gallery.ErrEmptyTagName) {
		t.Errorf("blank name error = %v", err)
	}

	all, err := tags.List(ctx)
	if err != nil || len(all) != 2 || all[0].Name != "cats" {
		t.Errorf("List = %+v, %v", all, err)
	}

	found, err := tags.Search(ctx, "DO")
	if err != nil || len(found) != 1 || found[0].Name != "dogs" {
		t.Errorf("Search = %+v, %v", found, err)
	}
	if q := backend.LastQuery(http.MethodGet, "/items/tags"); q.Get("limit") != "20" {
		t.Errorf("search limit = %q", q.Get("limit"))
	}

	if err := tags.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n := len(backend.Items("tags")); n != 1 {
		t.Errorf("stored tags after delete = %d", n)
	}
}

func TestLikes_Toggle(t *testing.T) {
	backend, client, _ := setup(t)
	ctx := context.Background()
	kv := testutil.NewTestStore(t)

	id := model.ID(backend.AddItem("memes", map[string]any{"title": "a", "status": "published", "likes": 0}))
	likes := gallery.NewLikes(client, kv, fakeAuth(true), nil)
	likes.Load(ctx)

	liked, count, err := likes.Toggle(ctx, id)
	if err != nil || !liked || count != 1 {
		t.Fatalf("first Toggle = %v, %d, %v", liked, count, err)
	}
	if !likes.IsLiked(id) {
		t.Error("meme not remembered as liked")
	}

	reloaded := gallery.NewLikes(client, kv, fakeAuth(true), nil)
	reloaded.Load(ctx)
	if got := reloaded.All(); len(got) != 1 || got[0] != id {
		t.Errorf("persisted likes = %v", got)
	}

	// Another client reset the counter; unliking must not go negative.
	if err := client.Patch(ctx, directus.ItemsPath("memes", id.String()), map[string]any{"likes": 0}, nil); err != nil {
		t.Fatal(err)
	}
	liked, count, err = likes.Toggle(ctx, id)
	if err != nil || liked || count != 0 {
		t.Errorf("second Toggle = %v, %d, %v; want unliked at 0", liked, count, err)
	}
}

func TestLikes_RequiresSignIn(t *testing.T) {
	_, client, _ := setup(t)
	likes := gallery.NewLikes(client, testutil.NewTestStore(t), fakeAuth(false), nil)

	if _, _, err := likes.Toggle(context.Background(), "1"); !errors.Is(err, gallery.ErrSignInRequired) {
		t.Errorf("Toggle signed out = %v, want ErrSignInRequired", err)
	}
}

func TestValidateCreate(t *testing.T) {
	png := writeImage(t, "ok.png", 10)
	big := writeImage(t, "big.jpg", gallery.MaxImageSize+1)

	tests := []struct {
		name    string
		in      gallery.CreateInput
		wantErr bool
	}{
		{"valid", gallery.CreateInput{Title: "Hi", ImagePath: png}, false},
		{"valid draft", gallery.CreateInput{Title: "Hi", ImagePath: png, Status: model.MemeDraft}, false},
		{"blank title", gallery.CreateInput{Title: "  ", ImagePath: png}, true},
		{"long title", gallery.CreateInput{Title: strings.Repeat("a", gallery.MaxTitleLen+1), ImagePath: png}, true},
		{"missing image", gallery.CreateInput{Title: "Hi", ImagePath: filepath.Join(t.TempDir(), "gone.png")}, true},
		{"too large", gallery.CreateInput{Title: "Hi", ImagePath: big}, true},
		{"archived", gallery.CreateInput{Title: "Hi", ImagePath: png, Status: model.MemeArchived}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gallery.ValidateCreate(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCreate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
