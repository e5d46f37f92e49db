package help

import (
	"strings"
	"testing"
	"time"

	"github.com/nhle/memebox/internal/keys"
)

func TestLegend(t *testing.T) {
	m := New(keys.DefaultKeyMap(), Legend{
		DefaultDuration: 5 * time.Second,
		SocialDuration:  7 * time.Second,
		Retention:       24 * time.Hour,
	}, 100, 40)

	got := m.renderLegend()
	for _, want := range []string{"like", "comment", "error", "stay 7s", "other toasts 5s", "24h0m0s of history"} {
		if !strings.Contains(got, want) {
			t.Errorf("legend missing %q:\n%s", want, got)
		}
	}
}

func TestLegendWithoutDurations(t *testing.T) {
	m := New(keys.DefaultKeyMap(), Legend{}, 100, 40)
	if got := m.renderLegend(); strings.Contains(got, "history") {
		t.Errorf("legend mentions history without a retention window:\n%s", got)
	}
}

func TestViewListsBindings(t *testing.T) {
	m := New(keys.DefaultKeyMap(), Legend{}, 200, 60)
	view := m.View()
	for _, want := range []string{"Keyboard Shortcuts", "dismiss toast", "settings"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
