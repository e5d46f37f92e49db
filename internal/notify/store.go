// Package notify holds the in-process notification store: an ordered,
// newest-first list of toasts fanned out to subscribers and mirrored to
// local storage on every mutation.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/memebox/internal/model"
	"github.com/nhle/memebox/internal/store"
)

const (
	// DefaultDuration is the display time of a toast when none is given.
	DefaultDuration = 5 * time.Second

	// SocialDuration is the display time of like/comment toasts.
	SocialDuration = 7 * time.Second

	// DefaultRetention is the rolling window of persisted history.
	DefaultRetention = 24 * time.Hour

	// VisibleToasts is how many entries a toast stack renders.
	VisibleToasts = 3

	// persistTimeout bounds a single write to local storage.
	persistTimeout = 2 * time.Second
)

// Options customizes a single notification.
type Options struct {
	// Duration overrides the display time. Zero selects the store default.
	Duration time.Duration

	// Sticky keeps the notification until it is dismissed.
	Sticky bool

	// Action runs when the notification is clicked.
	Action func()

	MemeID        string
	MemeThumbnail string
	UserID        string
	UserName      string
}

// Snapshot is the state emitted to subscribers after every mutation.
type Snapshot struct {
	// Notifications is the full list, newest first.
	Notifications []model.Notification
	// Unread is the number of entries whose read flag is false.
	Unread int
}

// Visible returns the first k notifications.
func (s Snapshot) Visible(k int) []model.Notification {
	if k < len(s.Notifications) {
		return s.Notifications[:k]
	}
	return s.Notifications
}

// Config configures a Store. Zero values select the package defaults.
type Config struct {
	DefaultDuration time.Duration
	SocialDuration  time.Duration
	Retention       time.Duration

	// Navigate opens an in-app deep link such as "/gallery?meme=42".
	// Like and comment notifications use it as their click action.
	Navigate func(path string)

	Logger *slog.Logger

	// Now overrides the clock; used by tests.
	Now func() time.Time
}

// Store is the single source of truth for user-facing notifications.
// It is safe for concurrent use; expiry timers fire on their own goroutines.
type Store struct {
	kv  store.Store
	cfg Config
	log *slog.Logger

	mu     sync.Mutex
	items  []model.Notification
	unread int
	issued map[string]struct{}
	timers map[string]*time.Timer
	subs   map[chan Snapshot]struct{}
}

// New creates an empty store persisting to kv. Call Load to restore the
// persisted history. A nil kv keeps notifications in memory only.
func New(kv store.Store, cfg Config) *Store {
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = DefaultDuration
	}
	if cfg.SocialDuration <= 0 {
		cfg.SocialDuration = SocialDuration
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		kv:     kv,
		cfg:    cfg,
		log:    logger.With("component", "notify"),
		issued: make(map[string]struct{}),
		timers: make(map[string]*time.Timer),
		subs:   make(map[chan Snapshot]struct{}),
	}
}

// Show prepends a new notification and returns its id. Unless the
// notification is sticky it is removed automatically once its duration
// has elapsed.
func (s *Store) Show(typ model.NotificationType, title, message string, opts Options) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	duration := opts.Duration
	if duration <= 0 {
		duration = s.cfg.DefaultDuration
	}

	n := model.Notification{
		ID:            s.newIDLocked(),
		Type:          typ,
		Title:         title,
		Message:       message,
		Timestamp:     s.cfg.Now(),
		DurationMS:    duration.Milliseconds(),
		Action:        opts.Action,
		MemeID:        opts.MemeID,
		MemeThumbnail: opts.MemeThumbnail,
		UserID:        opts.UserID,
		UserName:      opts.UserName,
	}
	if opts.Sticky {
		n.DurationMS = 0
	}

	s.items = append([]model.Notification{n}, s.items...)
	if !n.Sticky() {
		s.scheduleLocked(n.ID, n.Lifetime())
	}
	s.commitLocked()

	return n.ID
}

// Success shows a success toast. A zero duration selects the default.
func (s *Store) Success(title, message string, duration time.Duration) string {
	return s.Show(model.NotificationSuccess, title, message, Options{Duration: duration})
}

// Error shows an error toast. A zero duration selects the default.
func (s *Store) Error(title, message string, duration time.Duration) string {
	return s.Show(model.NotificationError, title, message, Options{Duration: duration})
}

// Info shows an informational toast. A zero duration selects the default.
func (s *Store) Info(title, message string, duration time.Duration) string {
	return s.Show(model.NotificationInfo, title, message, Options{Duration: duration})
}

// Warning shows a warning toast. A zero duration selects the default.
func (s *Store) Warning(title, message string, duration time.Duration) string {
	return s.Show(model.NotificationWarning, title, message, Options{Duration: duration})
}

// NotifyLike shows that userName liked the meme memeID.
func (s *Store) NotifyLike(userName, memeID, thumbnail, userID string) string {
	return s.Show(model.NotificationLike, "New like",
		fmt.Sprintf("%s liked your meme", userName),
		s.socialOptions(userName, memeID, thumbnail, userID),
	)
}

// NotifyComment shows that userName commented on the meme memeID.
func (s *Store) NotifyComment(userName, memeID, thumbnail, userID string) string {
	return s.Show(model.NotificationComment, "New comment",
		fmt.Sprintf("%s commented on your meme", userName),
		s.socialOptions(userName, memeID, thumbnail, userID),
	)
}

func (s *Store) socialOptions(userName, memeID, thumbnail, userID string) Options {
	opts := Options{
		Duration:      s.cfg.SocialDuration,
		MemeID:        memeID,
		MemeThumbnail: thumbnail,
		UserID:        userID,
		UserName:      userName,
	}
	if nav := s.cfg.Navigate; nav != nil {
		link := MemeLink(memeID)
		opts.Action = func() { nav(link) }
	}
	return opts
}

// MemeLink returns the deep link that opens a meme in the gallery.
func MemeLink(memeID string) string {
	return "/gallery?meme=" + memeID
}

// Remove deletes the notification with the given id. Removing an unknown
// id is a no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
}

func (s *Store) removeLocked(id string) {
	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}
	s.items = append(s.items[:idx:idx], s.items[idx+1:]...)
	s.cancelLocked(id)
	s.commitLocked()
}

// MarkAsRead flags a single notification as read.
func (s *Store) MarkAsRead(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}
	s.items[idx].Read = true
	s.commitLocked()
}

// MarkAllAsRead flags every notification as read.
func (s *Store) MarkAllAsRead() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		s.items[i].Read = true
	}
	s.commitLocked()
}

// ClearAll removes every notification.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.timers {
		s.cancelLocked(id)
	}
	s.items = nil
	s.commitLocked()
}

// Click marks the notification read, runs its action and dismisses it.
// It reports whether the notification existed.
func (s *Store) Click(id string) bool {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	action := s.items[idx].Action
	s.mu.Unlock()

	s.MarkAsRead(id)
	if action != nil {
		action()
	}
	s.Remove(id)
	return true
}

// All returns a copy of the current list, newest first.
func (s *Store) All() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyItemsLocked()
}

// UnreadCount returns the number of unread notifications.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel receiving a snapshot after every mutation,
// starting with the current state. A slow subscriber only ever sees the
// latest snapshot; the store never blocks on it. The returned function
// unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
			s.mu.Unlock()
		})
	}
	return ch, unsubscribe
}

// Close stops all pending expiry timers and closes subscriber channels.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.timers {
		s.cancelLocked(id)
	}
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
}

// commitLocked recomputes the unread count, persists the list and fans out
// the new snapshot.
func (s *Store) commitLocked() {
	unread := 0
	for _, n := range s.items {
		if !n.Read {
			unread++
		}
	}
	s.unread = unread

	s.persistLocked()

	snap := s.snapshotLocked()
	for ch := range s.subs {
		offer(ch, snap)
	}
}

// offer delivers snap to ch, replacing any snapshot the subscriber has not
// consumed yet.
func offer(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Notifications: s.copyItemsLocked(), Unread: s.unread}
}

func (s *Store) copyItemsLocked() []model.Notification {
	out := make([]model.Notification, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) indexLocked(id string) int {
	for i, n := range s.items {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// newIDLocked returns an id of the form notif_<unix-ms>_<9 chars> that has
// not been issued by this store before.
func (s *Store) newIDLocked() string {
	for {
		suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
		id := fmt.Sprintf("notif_%d_%s", s.cfg.Now().UnixMilli(), suffix)
		if _, taken := s.issued[id]; taken {
			continue
		}
		s.issued[id] = struct{}{}
		return id
	}
}

func (s *Store) scheduleLocked(id string, after time.Duration) {
	s.cancelLocked(id)
	var t *time.Timer
	t = time.AfterFunc(after, func() { s.expire(id, t) })
	s.timers[id] = t
}

// expire removes id unless t was cancelled or replaced while the callback
// waited for the lock.
func (s *Store) expire(id string, t *time.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timers[id] != t {
		return
	}
	s.removeLocked(id)
}

func (s *Store) cancelLocked(id string) {
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

// persistLocked writes the list to local storage. Failures are logged and
// never reach the caller.
func (s *Store) persistLocked() {
	if s.kv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	items := s.items
	if items == nil {
		items = []model.Notification{}
	}
	if err := store.SetJSON(ctx, s.kv, store.KeyNotifications, items); err != nil {
		s.log.Error("saving notifications", "error", err)
	}
}
