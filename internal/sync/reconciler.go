// Package sync approximates push notifications by periodically pulling
// unread notification records from the backend and turning them into
// toasts.
package sync

import (
	"context"
	"errors"
	"log/slog"
	gosync "sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nhle/memebox/internal/directus"
	"github.com/nhle/memebox/internal/model"
)

// State is the lifecycle state of the reconciler.
type State int

const (
	// Disabled: polling is switched off, initially or after a failure.
	Disabled State = iota
	// Idle: polling is enabled but nobody is signed in.
	Idle
	// Polling: a ticker is running.
	Polling
)

func (s State) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case Idle:
		return "idle"
	case Polling:
		return "polling"
	}
	return "unknown"
}

const (
	// DefaultInterval is the time between two polls.
	DefaultInterval = 30 * time.Second

	// DefaultPageSize bounds the records fetched per poll.
	DefaultPageSize = 10

	// DefaultSeenCapacity is how many delivered record ids are remembered.
	DefaultSeenCapacity = 512

	// fetchTimeout is the maximum time allowed for a single poll.
	fetchTimeout = 30 * time.Second
)

var (
	// ErrTickInFlight is returned by CheckNow while another poll runs.
	ErrTickInFlight = errors.New("a notification check is already running")

	// ErrNotAuthenticated is returned by CheckNow when nobody is signed in.
	ErrNotAuthenticated = errors.New("not signed in")
)

// Source is the backend notification feed.
type Source interface {
	// Unread returns up to limit unread records addressed to userID,
	// newest first.
	Unread(ctx context.Context, userID model.ID, limit int) ([]model.NotificationRecord, error)
	// MarkRead acknowledges a record.
	MarkRead(ctx context.Context, id model.ID) error
	// Thumbnail returns the URL of a meme image thumbnail.
	Thumbnail(image model.ID) string
}

// Notifier receives the notifications produced by a poll.
type Notifier interface {
	NotifyLike(userName, memeID, thumbnail, userID string) string
	NotifyComment(userName, memeID, thumbnail, userID string) string
}

// Config configures a Reconciler. Zero values select the defaults.
type Config struct {
	Interval     time.Duration
	PageSize     int
	SeenCapacity int
	Logger       *slog.Logger
}

// Status is a snapshot of the reconciler.
type Status struct {
	State    State
	LastTick time.Time
	LastErr  error
	// Delivered counts notifications handed to the notifier.
	Delivered int
	// Skipped counts polls that found the previous one still running.
	// A skipped scheduled poll runs once the running one finishes.
	Skipped int
}

// StatusMsg is a tea.Msg carrying the latest status.
type StatusMsg struct {
	Status Status
}

// Reconciler polls the backend for unread notification records while
// polling is enabled and a user is signed in.
type Reconciler struct {
	src      Source
	notifier Notifier
	cfg      Config
	log      *slog.Logger

	// seen holds ids of records already turned into notifications, so a
	// record whose acknowledgement failed is not shown twice.
	seen     *lru.Cache[model.ID, struct{}]
	inFlight atomic.Bool
	// pending is set when a scheduled poll found another one running; it
	// runs once that one finishes.
	pending atomic.Bool

	mu       gosync.Mutex
	enabled  bool
	user     *model.User
	stopCh   chan struct{}
	status   Status
	statusCh chan StatusMsg
	done     chan struct{}
	closed   bool
}

// New creates a disabled reconciler.
func New(src Source, notifier Notifier, cfg Config) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.SeenCapacity <= 0 {
		cfg.SeenCapacity = DefaultSeenCapacity
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// New only fails for a non-positive size.
	seen, _ := lru.New[model.ID, struct{}](cfg.SeenCapacity)

	return &Reconciler{
		src:      src,
		notifier: notifier,
		cfg:      cfg,
		log:      logger.With("component", "reconciler"),
		seen:     seen,
		statusCh: make(chan StatusMsg, 1),
		done:     make(chan struct{}),
	}
}

// EnablePolling switches polling on. Polls start as soon as a user is
// signed in.
func (r *Reconciler) EnablePolling() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.enabled = true
	r.status.LastErr = nil
	r.reconcileLocked()
}

// DisablePolling switches polling off. A poll already running completes.
func (r *Reconciler) DisablePolling() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.enabled = false
	r.reconcileLocked()
}

// IsPollingEnabled reports whether polling is switched on.
func (r *Reconciler) IsPollingEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// SetSession reports an authentication change; nil means signed out.
func (r *Reconciler) SetSession(user *model.User) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user == nil || r.user == nil || user.ID != r.user.ID {
		r.seen.Purge()
	}
	if user != nil {
		u := *user
		user = &u
	}
	r.user = user
	r.reconcileLocked()
}

// State returns the current lifecycle state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status.State
}

// Status returns a snapshot of the reconciler.
func (r *Reconciler) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// CheckNow polls once, immediately, whether or not polling is enabled.
// A failure disables polling like any other failed poll.
func (r *Reconciler) CheckNow(ctx context.Context) error {
	return r.tick(ctx)
}

// Close stops polling for good and releases WaitForStatus callers.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.enabled = false
	r.reconcileLocked()
	if !r.closed {
		r.closed = true
		close(r.done)
	}
}

// WaitForStatus returns a tea.Cmd that waits for the next status change.
// Call it again after handling each StatusMsg to keep listening.
func (r *Reconciler) WaitForStatus() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-r.statusCh:
			return msg
		case <-r.done:
			return nil
		}
	}
}

// reconcileLocked starts or stops the ticker to match the enabled flag and
// the session, then publishes the resulting state.
func (r *Reconciler) reconcileLocked() {
	want := r.enabled && r.user != nil
	switch {
	case want && r.stopCh == nil:
		r.stopCh = make(chan struct{})
		go r.loop(r.stopCh)
	case !want && r.stopCh != nil:
		close(r.stopCh)
		r.stopCh = nil
	}

	switch {
	case !r.enabled:
		r.status.State = Disabled
	case r.user == nil:
		r.status.State = Idle
	default:
		r.status.State = Polling
	}
	r.publishLocked()
}

// loop polls immediately and then on every tick until stop is closed.
func (r *Reconciler) loop(stop chan struct{}) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.pollOnce()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.pollOnce()
		}
	}
}

func (r *Reconciler) pollOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	if err := r.tick(ctx); errors.Is(err, ErrTickInFlight) {
		r.log.Debug("deferring poll, previous one still running")
		r.pending.Store(true)
		if !r.inFlight.Load() {
			r.runPending()
		}
	}
}

// runPending starts a deferred poll if polling is still running.
func (r *Reconciler) runPending() {
	if !r.pending.Swap(false) {
		return
	}
	r.mu.Lock()
	active := r.stopCh != nil
	r.mu.Unlock()
	if active {
		go r.pollOnce()
	}
}

// tick fetches one page of unread records and delivers them. The in-flight
// flag is released before the outcome is published.
func (r *Reconciler) tick(ctx context.Context) error {
	if !r.inFlight.CompareAndSwap(false, true) {
		r.mu.Lock()
		r.status.Skipped++
		r.mu.Unlock()
		return ErrTickInFlight
	}
	defer r.runPending()
	delivered, err := r.poll(ctx)
	r.inFlight.Store(false)

	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return err
	case err != nil:
		r.fail(err)
		return err
	}

	r.mu.Lock()
	r.status.LastTick = time.Now()
	r.status.LastErr = nil
	r.status.Delivered += delivered
	r.publishLocked()
	r.mu.Unlock()
	return nil
}

func (r *Reconciler) poll(ctx context.Context) (int, error) {
	r.mu.Lock()
	user := r.user
	r.mu.Unlock()
	if user == nil {
		return 0, ErrNotAuthenticated
	}

	records, err := r.src.Unread(ctx, user.ID, r.cfg.PageSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, rec := range records {
		if r.deliver(ctx, rec) {
			delivered++
		}
	}
	return delivered, nil
}

// deliver turns a record into a notification unless it was delivered
// before, then acknowledges it. Acknowledgement failures are logged only.
func (r *Reconciler) deliver(ctx context.Context, rec model.NotificationRecord) bool {
	delivered := false

	switch err := rec.Validate(); {
	case rec.ID.IsZero():
		r.log.Warn("dropping notification record", "error", err)
		return false
	case err != nil:
		r.log.Info("acknowledging unsupported notification record", "id", rec.ID, "error", err)
	case r.seen.Contains(rec.ID):
		r.log.Debug("notification already shown, retrying acknowledgement", "id", rec.ID)
	default:
		thumbnail := ""
		if !rec.MemeImage.IsZero() {
			thumbnail = r.src.Thumbnail(rec.MemeImage)
		}
		if rec.Type == model.NotificationLike {
			r.notifier.NotifyLike(rec.Sender(), rec.MemeID.String(), thumbnail, rec.FromUserID.String())
		} else {
			r.notifier.NotifyComment(rec.Sender(), rec.MemeID.String(), thumbnail, rec.FromUserID.String())
		}
		r.seen.Add(rec.ID, struct{}{})
		delivered = true
	}

	if err := r.src.MarkRead(ctx, rec.ID); err != nil {
		r.log.Warn("marking notification read", "id", rec.ID, "error", err)
	}
	return delivered
}

// fail disables polling after an unsuccessful poll.
func (r *Reconciler) fail(err error) {
	if directus.IsMisconfigured(err) {
		r.log.Warn("notifications collection unavailable, polling disabled; create it in the backend and re-enable polling", "error", err)
	} else {
		r.log.Error("checking notifications failed, polling disabled", "error", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = false
	r.status.LastErr = err
	r.reconcileLocked()
}

// publishLocked offers the current status to WaitForStatus, replacing a
// status nobody has read yet.
func (r *Reconciler) publishLocked() {
	msg := StatusMsg{Status: r.status}
	select {
	case r.statusCh <- msg:
		return
	default:
	}
	select {
	case <-r.statusCh:
	default:
	}
	select {
	case r.statusCh <- msg:
	default:
	}
}
