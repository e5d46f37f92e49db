package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nhle/memebox/internal/model"
	"github.com/nhle/memebox/internal/store"
	"github.com/nhle/memebox/tests/testutil"
)

func newTestStore(t *testing.T, kv store.Store, cfg Config) *Store {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = testutil.QuietLogger()
	}
	s := New(kv, cfg)
	t.Cleanup(s.Close)
	return s
}

func countUnread(list []model.Notification) int {
	n := 0
	for _, item := range list {
		if !item.Read {
			n++
		}
	}
	return n
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestSuccessThenMarkAsRead(t *testing.T) {
	s := newTestStore(t, testutil.NewTestStore(t), Config{})

	s.Success("T", "M", 0)

	all := s.All()
	if len(all) != 1 {
		t.Fatalf("len = %d, want 1", len(all))
	}
	if s.UnreadCount() != 1 {
		t.Fatalf("unread = %d, want 1", s.UnreadCount())
	}
	if all[0].Type != model.NotificationSuccess {
		t.Errorf("type = %q", all[0].Type)
	}
	if all[0].DurationMS != 5000 {
		t.Errorf("duration = %d, want default 5000", all[0].DurationMS)
	}

	s.MarkAsRead(all[0].ID)

	if s.UnreadCount() != 0 {
		t.Errorf("unread after MarkAsRead = %d", s.UnreadCount())
	}
	if len(s.All()) != 1 {
		t.Errorf("len after MarkAsRead = %d, want 1", len(s.All()))
	}
}

func TestUnreadCountTracksList(t *testing.T) {
	s := newTestStore(t, nil, Config{})

	types := []model.NotificationType{
		model.NotificationInfo, model.NotificationError, model.NotificationWarning,
		model.NotificationSuccess, model.NotificationInfo,
	}
	for i, typ := range types {
		id := s.Show(typ, "title", "message", Options{Sticky: true})
		if i%2 == 0 {
			s.MarkAsRead(id)
		}
		all := s.All()
		if got, want := s.UnreadCount(), countUnread(all); got != want {
			t.Fatalf("after show %d: unread = %d, list says %d", i, got, want)
		}
	}
}

func TestNewestFirst(t *testing.T) {
	s := newTestStore(t, nil, Config{})

	first := s.Info("first", "", 0)
	second := s.Info("second", "", 0)

	all := s.All()
	if all[0].ID != second || all[1].ID != first {
		t.Errorf("order = [%s %s], want newest first", all[0].ID, all[1].ID)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := newTestStore(t, nil, Config{})

	keep := s.Info("keep", "", 0)
	drop := s.Info("drop", "", 0)

	s.Remove(drop)
	s.Remove(drop)
	s.Remove("does-not-exist")

	all := s.All()
	if len(all) != 1 || all[0].ID != keep {
		t.Fatalf("list = %+v", all)
	}
	if s.UnreadCount() != 1 {
		t.Errorf("unread = %d", s.UnreadCount())
	}
}

func TestAutoRemovalAfterDuration(t *testing.T) {
	s := newTestStore(t, nil, Config{})

	id := s.Show(model.NotificationInfo, "short", "", Options{Duration: 30 * time.Millisecond})
	sticky := s.Show(model.NotificationInfo, "sticky", "", Options{Sticky: true})

	if len(s.All()) != 2 {
		t.Fatalf("len = %d before expiry", len(s.All()))
	}

	gone := waitFor(t, 2*time.Second, func() bool {
		for _, n := range s.All() {
			if n.ID == id {
				return false
			}
		}
		return true
	})
	if !gone {
		t.Fatal("notification still present after its duration")
	}

	all := s.All()
	if len(all) != 1 || all[0].ID != sticky {
		t.Errorf("sticky notification should remain: %+v", all)
	}
}

func TestMarkAllAsRead(t *testing.T) {
	s := newTestStore(t, nil, Config{})
	for i := 0; i < 4; i++ {
		s.Warning("w", "", 0)
	}

	s.MarkAllAsRead()

	if s.UnreadCount() != 0 {
		t.Errorf("unread = %d", s.UnreadCount())
	}
	for _, n := range s.All() {
		if !n.Read {
			t.Errorf("%s not read", n.ID)
		}
	}
}

func TestClearAll(t *testing.T) {
	kv := testutil.NewTestStore(t)
	s := newTestStore(t, kv, Config{})
	s.Error("e", "", 0)
	s.Info("i", "", 0)

	s.ClearAll()

	if len(s.All()) != 0 || s.UnreadCount() != 0 {
		t.Fatalf("after ClearAll: %d items, %d unread", len(s.All()), s.UnreadCount())
	}

	var persisted []model.Notification
	if err := store.GetJSON(context.Background(), kv, store.KeyNotifications, &persisted); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if len(persisted) != 0 {
		t.Errorf("persisted = %d entries", len(persisted))
	}
}

func TestIDsUniqueWithFrozenClock(t *testing.T) {
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newTestStore(t, nil, Config{Now: func() time.Time { return frozen }})

	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		id := s.Show(model.NotificationInfo, "x", "", Options{Sticky: true})
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestNotifyLikePayloadAndClick(t *testing.T) {
	var navigated string
	s := newTestStore(t, nil, Config{Navigate: func(path string) { navigated = path }})

	id := s.NotifyLike("Alice", "42", "http://cdn/thumb.png", "u-7")

	n := s.All()[0]
	if n.Type != model.NotificationLike || n.Title != "New like" {
		t.Errorf("like = %+v", n)
	}
	if n.Message != "Alice liked your meme" {
		t.Errorf("message = %q", n.Message)
	}
	if n.DurationMS != 7000 {
		t.Errorf("duration = %d, want 7000", n.DurationMS)
	}
	if n.MemeID != "42" || n.MemeThumbnail != "http://cdn/thumb.png" || n.UserID != "u-7" || n.UserName != "Alice" {
		t.Errorf("payload = %+v", n)
	}

	if !s.Click(id) {
		t.Fatal("Click reported missing notification")
	}
	if navigated != "/gallery?meme=42" {
		t.Errorf("navigated = %q", navigated)
	}
	if len(s.All()) != 0 {
		t.Error("clicked notification should be dismissed")
	}
	if s.Click(id) {
		t.Error("second click should report false")
	}
}

func TestNotifyComment(t *testing.T) {
	s := newTestStore(t, nil, Config{})
	s.NotifyComment("Bob", "9", "", "")

	n := s.All()[0]
	if n.Type != model.NotificationComment || n.Message != "Bob commented on your meme" {
		t.Errorf("comment = %+v", n)
	}
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	s := newTestStore(t, nil, Config{})

	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	initial := <-ch
	if len(initial.Notifications) != 0 || initial.Unread != 0 {
		t.Fatalf("initial snapshot = %+v", initial)
	}

	s.Info("a", "", 0)
	s.Info("b", "", 0)

	// The channel holds only the latest snapshot.
	select {
	case snap := <-ch:
		if len(snap.Notifications) != 2 || snap.Unread != 2 {
			t.Errorf("snapshot = %d items / %d unread", len(snap.Notifications), snap.Unread)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}

	unsubscribe()
	unsubscribe()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}
}

func TestSnapshotVisible(t *testing.T) {
	s := newTestStore(t, nil, Config{})
	for i := 0; i < 5; i++ {
		s.Info("n", "", 0)
	}
	snap := s.Snapshot()
	if got := len(snap.Visible(VisibleToasts)); got != 3 {
		t.Errorf("Visible = %d, want 3", got)
	}
	if got := len(Snapshot{}.Visible(3)); got != 0 {
		t.Errorf("empty Visible = %d", got)
	}
}

func TestLoadKeepsEntriesInsideRetention(t *testing.T) {
	kv := testutil.NewTestStore(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	stored := []model.Notification{
		{ID: "recent-sticky", Type: model.NotificationInfo, Timestamp: now.Add(-2 * time.Hour)},
		{ID: "old-sticky", Type: model.NotificationInfo, Timestamp: now.Add(-25 * time.Hour)},
		{ID: "still-showing", Type: model.NotificationLike, Timestamp: now.Add(-time.Second), DurationMS: 60_000},
		{ID: "shown-before-exit", Type: model.NotificationLike, Timestamp: now.Add(-10 * time.Minute), DurationMS: 7000},
		{ID: "read-recent", Type: model.NotificationError, Timestamp: now.Add(-time.Hour), Read: true},
	}
	if err := store.SetJSON(context.Background(), kv, store.KeyNotifications, stored); err != nil {
		t.Fatal(err)
	}

	s := newTestStore(t, kv, Config{Now: func() time.Time { return now }})
	s.Load(context.Background())

	got := map[string]bool{}
	for _, n := range s.All() {
		got[n.ID] = true
	}
	for _, want := range []string{"recent-sticky", "still-showing", "shown-before-exit", "read-recent"} {
		if !got[want] {
			t.Errorf("%s missing after load", want)
		}
	}
	if got["old-sticky"] {
		t.Error("old-sticky should have been dropped")
	}
	if s.UnreadCount() != 3 {
		t.Errorf("unread = %d, want 3", s.UnreadCount())
	}
}

func TestLoadRestoredEntryOutlivesStaleTimer(t *testing.T) {
	kv := testutil.NewTestStore(t)
	s := newTestStore(t, kv, Config{})

	id := s.Show(model.NotificationLike, "liked", "", Options{Duration: time.Hour})

	// A callback from a timer that was replaced must not remove the entry.
	s.mu.Lock()
	stale := s.timers[id]
	s.mu.Unlock()
	s.Load(context.Background())
	s.expire(id, stale)

	if len(s.All()) != 1 {
		t.Fatalf("restored entry removed by a stale timer: %+v", s.All())
	}

	s.mu.Lock()
	current := s.timers[id]
	s.mu.Unlock()
	s.expire(id, current)
	if len(s.All()) != 0 {
		t.Errorf("current timer should remove the entry: %+v", s.All())
	}
}

func TestLoadCorruptStorageIsEmpty(t *testing.T) {
	kv := testutil.NewTestStore(t)
	if err := kv.SetValue(context.Background(), store.KeyNotifications, []byte("[{broken")); err != nil {
		t.Fatal(err)
	}

	s := newTestStore(t, kv, Config{})
	s.Load(context.Background())

	if len(s.All()) != 0 {
		t.Errorf("corrupt storage should load as empty, got %d", len(s.All()))
	}
	s.Info("after", "", 0)
	if len(s.All()) != 1 {
		t.Error("store should keep working after a corrupt load")
	}
}

func TestPersistRoundTripStripsAction(t *testing.T) {
	kv := testutil.NewTestStore(t)
	s := newTestStore(t, kv, Config{Navigate: func(string) {}})
	s.NotifyLike("Alice", "1", "", "")
	s.Show(model.NotificationInfo, "pinned", "", Options{Sticky: true})

	reloaded := newTestStore(t, kv, Config{})
	reloaded.Load(context.Background())

	all := reloaded.All()
	if len(all) != 2 {
		t.Fatalf("reloaded %d entries", len(all))
	}
	for _, n := range all {
		if n.Action != nil {
			t.Errorf("%s restored with an action", n.ID)
		}
	}
	if all[0].Title != "pinned" {
		t.Errorf("order not preserved: %q first", all[0].Title)
	}
}

type failingKV struct{}

var errDisk = errors.New("disk full")

func (failingKV) GetValue(context.Context, string) ([]byte, error) { return nil, errDisk }
func (failingKV) SetValue(context.Context, string, []byte) error  { return errDisk }
func (failingKV) DeleteValue(context.Context, string) error       { return errDisk }
func (failingKV) Keys(context.Context) ([]string, error)          { return nil, errDisk }

func TestPersistenceFailuresDoNotBlock(t *testing.T) {
	s := newTestStore(t, failingKV{}, Config{})
	s.Load(context.Background())

	id := s.Error("boom", "", 0)
	if len(s.All()) != 1 {
		t.Fatal("show must succeed even when storage fails")
	}
	s.MarkAsRead(id)
	s.Remove(id)
	if len(s.All()) != 0 {
		t.Error("remove must succeed even when storage fails")
	}
}
