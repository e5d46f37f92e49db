package sync_test

import (
	"context"
	"errors"
	"net/http"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nhle/memebox/internal/directus"
	"github.com/nhle/memebox/internal/directustest"
	"github.com/nhle/memebox/internal/model"
	"github.com/nhle/memebox/internal/notify"
	"github.com/nhle/memebox/internal/sync"
	"github.com/nhle/memebox/tests/testutil"
)

type fixture struct {
	backend *directustest.Backend
	client  *directus.Client
	user    model.User
	other   model.User
	store   *notify.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := directustest.Start(t)
	user := backend.AddUser(model.User{Email: "ada@example.com", FirstName: "Ada"}, "secret")
	other := backend.AddUser(model.User{Email: "bob@example.com", FirstName: "Bob"}, "secret")

	client := testutil.SignedInClient(t, backend, user)

	st := notify.New(testutil.NewTestStore(t), notify.Config{Logger: testutil.QuietLogger()})
	t.Cleanup(st.Close)

	return &fixture{backend: backend, client: client, user: user, other: other, store: st}
}

func (f *fixture) reconciler(t *testing.T, interval time.Duration) *sync.Reconciler {
	t.Helper()
	r := sync.New(sync.NewDirectusSource(f.client, testutil.QuietLogger()), f.store, sync.Config{
		Interval: interval,
		Logger:   testutil.QuietLogger(),
	})
	t.Cleanup(r.Close)
	return r
}

func (f *fixture) addRecord(typ model.NotificationType, memeID, image string) string {
	return f.backend.AddItem("notifications", map[string]any{
		"type":           string(typ),
		"user":           f.user.ID.String(),
		"read":           false,
		"meme_id":        memeID,
		"meme_image":     image,
		"from_user_id":   f.other.ID.String(),
		"from_user_name": "Bob",
	})
}

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

func TestCheckNow_DeliversAndMarksRead(t *testing.T) {
	f := newFixture(t)
	r := f.reconciler(t, time.Hour)
	r.SetSession(&f.user)

	likeID := f.addRecord(model.NotificationLike, "42", "img-1")
	commentID := f.addRecord(model.NotificationComment, "42", "")
	// Addressed to somebody else.
	f.backend.AddItem("notifications", map[string]any{
		"type": "like", "user": f.other.ID.String(), "read": false, "meme_id": "7",
	})

	if err := r.CheckNow(context.Background()); err != nil {
		t.Fatalf("CheckNow: %v", err)
	}

	all := f.store.All()
	if len(all) != 2 {
		t.Fatalf("notifications = %d, want 2", len(all))
	}
	var like, comment *model.Notification
	for i := range all {
		switch all[i].Type {
		case model.NotificationLike:
			like = &all[i]
		case model.NotificationComment:
			comment = &all[i]
		}
	}
	if like == nil || comment == nil {
		t.Fatalf("types = %+v, want one like and one comment", all)
	}
	if like.MemeID != "42" || like.UserName != "Bob" || like.UserID != f.other.ID.String() {
		t.Errorf("like payload = %+v", like)
	}
	wantThumb := f.client.AssetURL("img-1", directus.ThumbnailTransforms)
	if like.MemeThumbnail != wantThumb {
		t.Errorf("thumbnail = %q, want %q", like.MemeThumbnail, wantThumb)
	}
	if comment.MemeThumbnail != "" {
		t.Errorf("comment thumbnail = %q, want empty", comment.MemeThumbnail)
	}

	for _, id := range []string{likeID, commentID} {
		if read, _ := f.backend.Item("notifications", id)["read"].(bool); !read {
			t.Errorf("record %s not marked read", id)
		}
	}

	q := f.backend.LastQuery(http.MethodGet, "/items/notifications")
	if q.Get("limit") != "10" || q.Get("sort") != "-date_created" {
		t.Errorf("query = %v", q)
	}
	if got := r.Status().Delivered; got != 2 {
		t.Errorf("Delivered = %d, want 2", got)
	}
}

func TestCheckNow_ExpandedRelationsDelivered(t *testing.T) {
	f := newFixture(t)
	r := f.reconciler(t, time.Hour)
	r.SetSession(&f.user)

	id := f.backend.AddItem("notifications", map[string]any{
		"type":           "comment",
		"user":           f.user.ID.String(),
		"read":           false,
		"meme_id":        map[string]any{"id": 42, "title": "Doge"},
		"from_user_id":   map[string]any{"id": f.other.ID.String(), "first_name": "Bob"},
		"from_user_name": "Bob",
	})

	if err := r.CheckNow(context.Background()); err != nil {
		t.Fatalf("CheckNow: %v", err)
	}
	all := f.store.All()
	if len(all) != 1 || all[0].Type != model.NotificationComment || all[0].MemeID != "42" {
		t.Fatalf("notifications = %+v, want one comment on meme 42", all)
	}
	if all[0].UserID != f.other.ID.String() {
		t.Errorf("UserID = %q", all[0].UserID)
	}
	if read, _ := f.backend.Item("notifications", id)["read"].(bool); !read {
		t.Error("record not marked read")
	}
}

func TestCheckNow_DefaultSenderName(t *testing.T) {
	f := newFixture(t)
	r := f.reconciler(t, time.Hour)
	r.SetSession(&f.user)

	f.backend.AddItem("notifications", map[string]any{
		"type": "like", "user": f.user.ID.String(), "read": false, "meme_id": "1",
	})

	if err := r.CheckNow(context.Background()); err != nil {
		t.Fatalf("CheckNow: %v", err)
	}
	all := f.store.All()
	if len(all) != 1 || all[0].UserName != model.DefaultSenderName {
		t.Fatalf("notifications = %+v, want one from %q", all, model.DefaultSenderName)
	}
}

func TestCheckNow_MarkReadFailureStillDeliversOnce(t *testing.T) {
	f := newFixture(t)
	r := f.reconciler(t, time.Hour)
	r.SetSession(&f.user)

	first := f.addRecord(model.NotificationLike, "9", "")
	second := f.addRecord(model.NotificationLike, "9", "")
	f.backend.Fail(http.MethodPatch, "/items/notifications/"+first, http.StatusInternalServerError, 1)

	if err := r.CheckNow(context.Background()); err != nil {
		t.Fatalf("CheckNow: %v", err)
	}
	if got := len(f.store.All()); got != 2 {
		t.Fatalf("notifications = %d, want 2", got)
	}
	if read, _ := f.backend.Item("notifications", second)["read"].(bool); !read {
		t.Error("second record not marked read after first failed")
	}
	if read, _ := f.backend.Item("notifications", first)["read"].(bool); read {
		t.Fatal("first record marked read despite injected failure")
	}

	// The unacknowledged record comes back but is not shown again.
	if err := r.CheckNow(context.Background()); err != nil {
		t.Fatalf("second CheckNow: %v", err)
	}
	if got := len(f.store.All()); got != 2 {
		t.Errorf("notifications after retry = %d, want 2", got)
	}
	if read, _ := f.backend.Item("notifications", first)["read"].(bool); !read {
		t.Error("first record not acknowledged on retry")
	}
}

func TestCheckNow_UnsupportedTypeAcknowledged(t *testing.T) {
	f := newFixture(t)
	r := f.reconciler(t, time.Hour)
	r.SetSession(&f.user)

	id := f.addRecord("follow", "3", "")

	if err := r.CheckNow(context.Background()); err != nil {
		t.Fatalf("CheckNow: %v", err)
	}
	if got := len(f.store.All()); got != 0 {
		t.Errorf("notifications = %d, want 0", got)
	}
	if read, _ := f.backend.Item("notifications", id)["read"].(bool); !read {
		t.Error("unsupported record not acknowledged")
	}
}

func TestCheckNow_FailureDisablesPolling(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			f := newFixture(t)
			r := f.reconciler(t, time.Hour)
			r.SetSession(&f.user)
			r.EnablePolling()
			// Let the immediate poll finish so CheckNow is not rejected as overlapping.
			waitFor(t, time.Second, func() bool { return !r.Status().LastTick.IsZero() })

			f.backend.Fail(http.MethodGet, "/items/notifications", status, 0)
			err := r.CheckNow(context.Background())
			if directus.StatusOf(err) != status {
				t.Fatalf("CheckNow error = %v, want status %d", err, status)
			}
			if r.IsPollingEnabled() {
				t.Error("polling still enabled after failure")
			}
			if r.State() != sync.Disabled {
				t.Errorf("State = %v, want disabled", r.State())
			}
			if r.Status().LastErr == nil {
				t.Error("LastErr not recorded")
			}

			f.backend.ClearFailures()
			r.EnablePolling()
			if !r.IsPollingEnabled() || r.State() != sync.Polling {
				t.Errorf("after re-enable: enabled=%v state=%v", r.IsPollingEnabled(), r.State())
			}
			if r.Status().LastErr != nil {
				t.Error("LastErr not cleared by EnablePolling")
			}
		})
	}
}

func TestMissingCollectionDisablesPolling(t *testing.T) {
	f := newFixture(t)
	f.backend.RemoveCollection("notifications")
	r := f.reconciler(t, 10*time.Millisecond)
	r.SetSession(&f.user)
	r.EnablePolling()

	if !waitFor(t, time.Second, func() bool { return !r.IsPollingEnabled() }) {
		t.Fatal("polling not disabled for a missing collection")
	}
	if !directus.IsMisconfigured(r.Status().LastErr) {
		t.Errorf("LastErr = %v, want misconfiguration", r.Status().LastErr)
	}

	calls := f.backend.Calls(http.MethodGet, "/items/notifications")
	time.Sleep(50 * time.Millisecond)
	if got := f.backend.Calls(http.MethodGet, "/items/notifications"); got != calls {
		t.Errorf("polled %d more times after being disabled", got-calls)
	}
}

func TestStates(t *testing.T) {
	f := newFixture(t)
	r := f.reconciler(t, time.Hour)

	if r.State() != sync.Disabled {
		t.Fatalf("initial State = %v, want disabled", r.State())
	}
	r.EnablePolling()
	if r.State() != sync.Idle {
		t.Fatalf("State without session = %v, want idle", r.State())
	}
	if err := r.CheckNow(context.Background()); !errors.Is(err, sync.ErrNotAuthenticated) {
		t.Errorf("CheckNow without session = %v, want ErrNotAuthenticated", err)
	}
	if got := f.backend.Calls(http.MethodGet, "/items/notifications"); got != 0 {
		t.Errorf("polled %d times without a session", got)
	}

	r.SetSession(&f.user)
	if r.State() != sync.Polling {
		t.Fatalf("State after sign-in = %v, want polling", r.State())
	}
	// The first poll runs immediately.
	if !waitFor(t, time.Second, func() bool { return f.backend.Calls(http.MethodGet, "/items/notifications") >= 1 }) {
		t.Fatal("no immediate poll after sign-in")
	}

	r.SetSession(nil)
	if r.State() != sync.Idle {
		t.Errorf("State after sign-out = %v, want idle", r.State())
	}
	r.DisablePolling()
	r.DisablePolling()
	if r.State() != sync.Disabled {
		t.Errorf("State after disable = %v, want disabled", r.State())
	}
}

func TestLogoutStopsPolling(t *testing.T) {
	f := newFixture(t)
	r := f.reconciler(t, 10*time.Millisecond)
	r.SetSession(&f.user)
	r.EnablePolling()

	if !waitFor(t, time.Second, func() bool { return f.backend.Calls(http.MethodGet, "/items/notifications") >= 2 }) {
		t.Fatal("ticker not polling")
	}
	r.SetSession(nil)
	// Let a poll already on the wire finish.
	time.Sleep(30 * time.Millisecond)

	calls := f.backend.Calls(http.MethodGet, "/items/notifications")
	time.Sleep(60 * time.Millisecond)
	if got := f.backend.Calls(http.MethodGet, "/items/notifications"); got != calls {
		t.Errorf("polled %d more times after sign-out", got-calls)
	}
	if !r.IsPollingEnabled() {
		t.Error("sign-out must not switch polling off")
	}
}

func TestWaitForStatus(t *testing.T) {
	f := newFixture(t)
	r := f.reconciler(t, time.Hour)

	r.EnablePolling()
	msg, ok := r.WaitForStatus()().(sync.StatusMsg)
	if !ok {
		t.Fatal("WaitForStatus did not return a StatusMsg")
	}
	if msg.Status.State != sync.Idle {
		t.Errorf("status state = %v, want idle", msg.Status.State)
	}

	r.Close()
	if got := r.WaitForStatus()(); got != nil {
		t.Errorf("WaitForStatus after Close = %v, want nil", got)
	}
}

// blockingSource holds Unread until released.
type blockingSource struct {
	started chan struct{}
	release chan struct{}
	once    gosync.Once
	calls   atomic.Int32
}

func (s *blockingSource) Unread(ctx context.Context, _ model.ID, _ int) ([]model.NotificationRecord, error) {
	s.calls.Add(1)
	s.once.Do(func() { close(s.started) })
	select {
	case <-s.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *blockingSource) MarkRead(context.Context, model.ID) error { return nil }
func (s *blockingSource) Thumbnail(model.ID) string                { return "" }

type countingNotifier struct {
	mu    gosync.Mutex
	likes int
}

func (n *countingNotifier) NotifyLike(string, string, string, string) string {
	n.mu.Lock()
	n.likes++
	n.mu.Unlock()
	return ""
}

func (n *countingNotifier) NotifyComment(string, string, string, string) string { return "" }

func TestCheckNow_InFlightGuard(t *testing.T) {
	src := &blockingSource{started: make(chan struct{}), release: make(chan struct{})}
	r := sync.New(src, &countingNotifier{}, sync.Config{Interval: time.Hour, Logger: testutil.QuietLogger()})
	t.Cleanup(r.Close)
	r.SetSession(&model.User{ID: "u1"})

	errCh := make(chan error, 1)
	go func() { errCh <- r.CheckNow(context.Background()) }()
	<-src.started

	if err := r.CheckNow(context.Background()); !errors.Is(err, sync.ErrTickInFlight) {
		t.Fatalf("overlapping CheckNow = %v, want ErrTickInFlight", err)
	}
	if got := r.Status().Skipped; got != 1 {
		t.Errorf("Skipped = %d, want 1", got)
	}

	close(src.release)
	if err := <-errCh; err != nil {
		t.Fatalf("first CheckNow: %v", err)
	}
	if err := r.CheckNow(context.Background()); err != nil {
		t.Errorf("CheckNow after release: %v", err)
	}
}

func TestReenableDuringPollRunsDeferredPoll(t *testing.T) {
	src := &blockingSource{started: make(chan struct{}), release: make(chan struct{})}
	r := sync.New(src, &countingNotifier{}, sync.Config{Interval: time.Hour, Logger: testutil.QuietLogger()})
	t.Cleanup(r.Close)
	r.SetSession(&model.User{ID: "u1"})

	r.EnablePolling()
	<-src.started
	r.DisablePolling()
	r.EnablePolling()

	if !waitFor(t, 2*time.Second, func() bool { return r.Status().Skipped == 1 }) {
		t.Fatalf("Skipped = %d, want the new loop's first poll to find one running", r.Status().Skipped)
	}

	close(src.release)
	if !waitFor(t, 2*time.Second, func() bool { return src.calls.Load() == 2 }) {
		t.Fatalf("Unread calls = %d, want the deferred poll to run", src.calls.Load())
	}
	if r.State() != sync.Polling {
		t.Errorf("State = %v, want polling", r.State())
	}
}

// staticSource returns the same records on every poll.
type staticSource struct {
	records []model.NotificationRecord
	marked  []model.ID
}

func (s *staticSource) Unread(context.Context, model.ID, int) ([]model.NotificationRecord, error) {
	return s.records, nil
}

func (s *staticSource) MarkRead(_ context.Context, id model.ID) error {
	s.marked = append(s.marked, id)
	return nil
}

func (s *staticSource) Thumbnail(model.ID) string { return "" }

func TestSeenResetOnUserChange(t *testing.T) {
	src := &staticSource{records: []model.NotificationRecord{
		{ID: "1", Type: model.NotificationLike, MemeID: "5"},
		{Type: model.NotificationLike, MemeID: "6"},
	}}
	n := &countingNotifier{}
	r := sync.New(src, n, sync.Config{Interval: time.Hour, Logger: testutil.QuietLogger()})
	t.Cleanup(r.Close)

	ctx := context.Background()
	r.SetSession(&model.User{ID: "u1"})
	for range 2 {
		if err := r.CheckNow(ctx); err != nil {
			t.Fatalf("CheckNow: %v", err)
		}
	}
	if n.likes != 1 {
		t.Fatalf("likes = %d, want 1 across repeated polls", n.likes)
	}
	// The id-less record is never acknowledged.
	if len(src.marked) != 2 {
		t.Errorf("marked = %v, want the record acknowledged twice", src.marked)
	}

	r.SetSession(&model.User{ID: "u2"})
	if err := r.CheckNow(ctx); err != nil {
		t.Fatalf("CheckNow: %v", err)
	}
	if n.likes != 2 {
		t.Errorf("likes = %d, want 2 after user change", n.likes)
	}
}
