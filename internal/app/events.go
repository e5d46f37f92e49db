package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/memebox/internal/model"
)

// NavigateMsg asks the UI to open an in-app deep link such as
// "/gallery?meme=42".
type NavigateMsg struct {
	Path string
}

// SessionChangedMsg reports a sign-in or sign-out; User is nil when
// signed out.
type SessionChangedMsg struct {
	User *model.User
}

// Events carries messages produced outside the Bubble Tea loop, such as
// notification clicks and session changes, into it. It is created before
// the services that produce them.
type Events struct {
	ch   chan tea.Msg
	done chan struct{}
}

// NewEvents creates an event hub.
func NewEvents() *Events {
	return &Events{
		ch:   make(chan tea.Msg, 16),
		done: make(chan struct{}),
	}
}

// Navigate queues a deep link. Suitable as notify.Config.Navigate.
func (e *Events) Navigate(path string) {
	e.post(NavigateMsg{Path: path})
}

// SessionChanged queues a session change. Suitable for session.OnChange.
func (e *Events) SessionChanged(user *model.User) {
	e.post(SessionChangedMsg{User: user})
}

// post never blocks; when the UI is not draining the queue the event is
// dropped.
func (e *Events) post(msg tea.Msg) {
	select {
	case e.ch <- msg:
	case <-e.done:
	default:
	}
}

// Wait returns a tea.Cmd that delivers the next event.
func (e *Events) Wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-e.ch:
			return msg
		case <-e.done:
			return nil
		}
	}
}

// Close releases pending Wait commands.
func (e *Events) Close() {
	select {
	case <-e.done:
	default:
		close(e.done)
	}
}
