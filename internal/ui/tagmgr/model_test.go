package tagmgr

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/memebox/internal/keys"
	"github.com/nhle/memebox/internal/model"
)

type fakeTags struct {
	all     []model.Tag
	queries []string
}

func (f *fakeTags) List(context.Context) ([]model.Tag, error) { return f.all, nil }

func (f *fakeTags) Search(_ context.Context, q string) ([]model.Tag, error) {
	f.queries = append(f.queries, q)
	var out []model.Tag
	for _, t := range f.all {
		if strings.Contains(t.Name, q) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTags) Create(_ context.Context, name string) (model.Tag, error) {
	return model.Tag{ID: "9", Name: name}, nil
}

func (f *fakeTags) Delete(context.Context, model.ID) error { return nil }

func typeKeys(m Model, s string) Model {
	for _, r := range s {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestFilterUsesSearch(t *testing.T) {
	tags := &fakeTags{all: []model.Tag{{ID: "1", Name: "cats"}, {ID: "2", Name: "dogs"}, {ID: "3", Name: "catgirls"}}}
	m := New(tags, keys.DefaultKeyMap(), 80, 24)
	m, _ = m.Update(m.Init()())
	if len(m.list) != 3 {
		t.Fatalf("initial list = %v", m.list)
	}

	m = typeKeys(m, "/")
	if !m.Searching() {
		t.Fatal("/ did not open the filter")
	}
	m = typeKeys(m, "cat")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = m.Update(cmd())

	if len(tags.queries) != 1 || tags.queries[0] != "cat" {
		t.Errorf("queries = %v", tags.queries)
	}
	if len(m.list) != 2 {
		t.Errorf("filtered list = %v", m.list)
	}
	if !strings.Contains(m.View(), `Tags matching "cat" (2)`) {
		t.Error("view does not show the filter")
	}

	// esc clears the filter before leaving the view.
	m, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.query != "" {
		t.Fatalf("query = %q after esc", m.query)
	}
	m, _ = m.Update(cmd())
	if len(m.list) != 3 {
		t.Errorf("list = %v after clearing", m.list)
	}
	if _, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc}); cmd == nil {
		t.Fatal("second esc did not close")
	} else if _, ok := cmd().(TagListCloseMsg); !ok {
		t.Error("second esc did not close the view")
	}
}

func TestEscCancelsNewTagForm(t *testing.T) {
	m := New(&fakeTags{}, keys.DefaultKeyMap(), 80, 24)
	m = typeKeys(m, "n")
	if m.mode != modeForm {
		t.Fatalf("mode = %v, want form", m.mode)
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.mode != modeList || m.form != nil {
		t.Errorf("mode = %v, form = %v after esc", m.mode, m.form)
	}
}
