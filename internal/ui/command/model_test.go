package command

import (
	"slices"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		input      string
		want       string
		candidates []string
	}{
		{"refresh", "refresh", nil},
		{"  Poll   ON ", "poll on", nil},
		{"r", "refresh", nil},
		{"clear", "clear notifications", nil},
		{"not", "notifications", nil},
		{"set", "settings", nil},
		{"log", "", []string{"login", "logout"}},
		{"poll", "", []string{"poll on", "poll off"}},
		{"prof", "profile", nil},
		{"po", "", []string{"popular", "poll on", "poll off"}},
		{"dance", "", nil},
		{"", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, candidates := Resolve(tt.input)
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if !slices.Equal(candidates, tt.candidates) {
				t.Errorf("Resolve(%q) candidates = %v, want %v", tt.input, candidates, tt.candidates)
			}
		})
	}
}

func typeText(m Model, s string) Model {
	for _, r := range s {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestEnterEmitsResolvedCommand(t *testing.T) {
	m := typeText(New(80, 24), "check")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected a command")
	}
	if got := cmd(); got != CommandMsg("check now") {
		t.Errorf("cmd() = %#v, want check now", got)
	}
	if m.input.Value() != "" {
		t.Errorf("input not reset: %q", m.input.Value())
	}
}

func TestEnterReportsAmbiguity(t *testing.T) {
	m := typeText(New(80, 24), "lo")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("ambiguous input produced a command")
	}
	if !strings.Contains(m.View(), "ambiguous: login, logout") {
		t.Errorf("view does not explain the ambiguity:\n%s", m.View())
	}
}
