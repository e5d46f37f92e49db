package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/memebox/internal/gallery"
	"github.com/nhle/memebox/internal/model"
)

type avatarResultMsg struct {
	removed bool
	err     error
}

type memeUpdatedMsg struct {
	meme  model.Meme
	input gallery.UpdateInput
	err   error
}

// openProfile shows the signed-in user's profile.
func (m *Model) openProfile() tea.Cmd {
	if m.user == nil {
		return m.requireSignIn("Sign in to see your profile")
	}
	m.profileView.SetUser(m.user)
	m.currentView = ViewProfile
	return m.profileView.Load()
}

// setAvatar uploads the image at path and makes it the avatar.
func (m Model) setAvatar(path string) tea.Cmd {
	memes := m.deps.Memes
	sess := m.deps.Session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*requestTimeout)
		defer cancel()
		file, err := memes.UploadImage(ctx, path)
		if err != nil {
			return avatarResultMsg{err: err}
		}
		return avatarResultMsg{err: sess.SetAvatar(ctx, file.ID)}
	}
}

func (m Model) removeAvatar() tea.Cmd {
	sess := m.deps.Session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return avatarResultMsg{removed: true, err: sess.SetAvatar(ctx, "")}
	}
}

// updateMeme saves changes and re-reads the meme with its relations
// expanded.
func (m Model) updateMeme(id model.ID, in gallery.UpdateInput) tea.Cmd {
	memes := m.deps.Memes
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if _, err := memes.Update(ctx, id, in); err != nil {
			return memeUpdatedMsg{input: in, err: err}
		}
		meme, err := memes.Get(ctx, id)
		return memeUpdatedMsg{meme: meme, input: in, err: err}
	}
}

func updateSummary(in gallery.UpdateInput) string {
	switch {
	case in.Status != nil && *in.Status == model.MemeDraft:
		return "Moved to drafts"
	case in.Status != nil:
		return "Meme published"
	default:
		return "Title updated"
	}
}
