package gallery

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/memebox/internal/gallery"
	"github.com/nhle/memebox/internal/keys"
	"github.com/nhle/memebox/internal/model"
)

type fakeSource struct {
	lists, populars int
}

func (f *fakeSource) List(context.Context, gallery.ListOptions) (gallery.Page, error) {
	f.lists++
	return gallery.Page{Memes: []model.Meme{{ID: "new", Title: "newest"}}, Page: 1, Limit: 12, Total: 1}, nil
}

func (f *fakeSource) Drafts(context.Context, model.ID, int, int) (gallery.Page, error) {
	return gallery.Page{}, nil
}

func (f *fakeSource) Popular(_ context.Context, limit int) ([]model.Meme, error) {
	f.populars++
	return []model.Meme{{ID: "top", Title: "most liked", Likes: 99}}, nil
}

func press(m Model, s string) (Model, tea.Cmd) {
	return m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func TestPopularToggle(t *testing.T) {
	src := &fakeSource{}
	m := New(src, nil, keys.DefaultKeyMap(), 80, 24)
	m, _ = m.Update(m.Load()())

	m, cmd := press(m, "p")
	if !m.Popular() || cmd == nil {
		t.Fatalf("popular = %v, cmd = %v", m.Popular(), cmd)
	}
	msg := cmd().(PageLoadedMsg)
	if !msg.Popular || src.populars != 1 {
		t.Fatalf("msg = %+v, populars = %d", msg, src.populars)
	}
	m, _ = m.Update(msg)
	if sel, ok := m.Selected(); !ok || sel.ID != "top" {
		t.Errorf("selected = %+v, want the popular meme", sel)
	}

	m, cmd = press(m, "p")
	if m.Popular() {
		t.Fatal("second p did not return to newest")
	}
	if msg := cmd().(PageLoadedMsg); msg.Popular || src.lists != 2 {
		t.Errorf("msg = %+v, lists = %d", msg, src.lists)
	}
}

func TestStalePageIgnoredAfterToggle(t *testing.T) {
	src := &fakeSource{}
	m := New(src, nil, keys.DefaultKeyMap(), 80, 24)
	newest := m.Load()()

	m, _ = press(m, "p")
	m, _ = m.Update(newest)
	if len(m.page.Memes) != 0 {
		t.Errorf("newest page applied while showing popular: %+v", m.page.Memes)
	}
}

func TestDraftsHaveNoPopularMode(t *testing.T) {
	m := NewDrafts(&fakeSource{}, nil, keys.DefaultKeyMap(), 80, 24)
	m, cmd := press(m, "p")
	if m.Popular() || cmd != nil {
		t.Error("drafts switched to popular")
	}
}
