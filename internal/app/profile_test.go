package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nhle/memebox/internal/gallery"
	"github.com/nhle/memebox/internal/model"
	"github.com/nhle/memebox/internal/ui/detail"
)

func signIn(t *testing.T, h *harness) Model {
	t.Helper()
	if err := h.deps.Session.Login(context.Background(), "ada@example.com", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	m := New(h.deps)
	m.user = h.deps.Session.CurrentUser()
	return m
}

func TestOpenProfile_RequiresSignIn(t *testing.T) {
	h := newHarness(t)
	m := New(h.deps)

	m.openProfile()
	if m.currentView != ViewGallery {
		t.Errorf("currentView = %v, want gallery", m.currentView)
	}
	if got := countType(h.deps.Notifications, model.NotificationWarning); got != 1 {
		t.Errorf("warnings = %d, want 1", got)
	}
}

func TestOpenProfile_LoadsOwnMemes(t *testing.T) {
	h := newHarness(t)
	m := signIn(t, h)
	h.backend.AddItem("memes", map[string]any{"title": "mine", "status": "draft", "likes": 2, "user_created": h.user.ID.String()})
	h.backend.AddItem("memes", map[string]any{"title": "theirs", "status": "published", "user_created": "someone"})

	cmd := m.openProfile()
	if m.currentView != ViewProfile {
		t.Fatalf("currentView = %v, want profile", m.currentView)
	}
	next, _ := m.Update(cmd())
	m = next.(Model)

	view := m.profileView.View()
	for _, want := range []string{"Ada", "mine", "1 memes (0 published, 1 drafts)"} {
		if !strings.Contains(view, want) {
			t.Errorf("profile view missing %q", want)
		}
	}
	if strings.Contains(view, "theirs") {
		t.Error("profile lists another user's meme")
	}
}

func TestUpdateMeme_PublishesDraft(t *testing.T) {
	h := newHarness(t)
	m := signIn(t, h)
	id := h.backend.AddItem("memes", map[string]any{"title": "wip", "status": "draft", "user_created": h.user.ID.String()})

	published := model.MemePublished
	next, cmd := m.Update(detail.UpdateRequestMsg{ID: model.ID(id), Input: gallery.UpdateInput{Status: &published}})
	m = next.(Model)
	if cmd == nil {
		t.Fatal("no update command")
	}
	msg, ok := cmd().(memeUpdatedMsg)
	if !ok || msg.err != nil {
		t.Fatalf("cmd() = %#v", msg)
	}
	m.Update(msg)

	if status := h.backend.Item("memes", id)["status"]; status != "published" {
		t.Errorf("backend status = %v", status)
	}
	if got := countType(h.deps.Notifications, model.NotificationSuccess); got != 1 {
		t.Errorf("success toasts = %d, want 1", got)
	}
}

func TestSetAvatar_UploadsAndRemoves(t *testing.T) {
	h := newHarness(t)
	m := signIn(t, h)

	path := filepath.Join(t.TempDir(), "me.png")
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, ok := m.setAvatar(path)().(avatarResultMsg)
	if !ok || res.err != nil {
		t.Fatalf("setAvatar = %#v", res)
	}
	next, _ := m.Update(res)
	m = next.(Model)
	if m.user == nil || m.user.Avatar.IsZero() {
		t.Fatalf("user = %+v, want an avatar", m.user)
	}
	if _, stored := h.backend.File(m.user.Avatar.String()); !stored {
		t.Errorf("avatar file %s not uploaded", m.user.Avatar)
	}

	res, _ = m.removeAvatar()().(avatarResultMsg)
	next, _ = m.Update(res)
	m = next.(Model)
	if res.err != nil || !m.user.Avatar.IsZero() {
		t.Errorf("after removal: err=%v avatar=%q", res.err, m.user.Avatar)
	}
}

func TestSetAvatar_RejectsNonImage(t *testing.T) {
	h := newHarness(t)
	m := signIn(t, h)

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	res, _ := m.setAvatar(path)().(avatarResultMsg)
	if res.err == nil {
		t.Fatal("setAvatar accepted a text file")
	}
	m.Update(res)
	if got := countType(h.deps.Notifications, model.NotificationError); got != 1 {
		t.Errorf("errors = %d, want 1", got)
	}
}
