package notify

import (
	"context"
	"errors"

	"github.com/nhle/memebox/internal/model"
	"github.com/nhle/memebox/internal/store"
)

// Load restores the persisted history, replacing the in-memory list.
// Entries older than the retention window are dropped. A toast with display
// time left gets its timer re-armed; one whose time ran out while the app
// was closed stays until dismissed. Missing or unreadable data is treated
// as an empty history.
func (s *Store) Load(ctx context.Context) {
	if s.kv == nil {
		return
	}

	var stored []model.Notification
	err := store.GetJSON(ctx, s.kv, store.KeyNotifications, &stored)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return
	case err != nil:
		s.log.Error("loading notifications", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.cfg.Now()
	cutoff := now.Add(-s.cfg.Retention)

	for id := range s.timers {
		s.cancelLocked(id)
	}

	restored := make([]model.Notification, 0, len(stored))
	seen := make(map[string]struct{}, len(stored))
	for _, n := range stored {
		if n.ID == "" || !n.Timestamp.After(cutoff) {
			continue
		}
		if _, dup := seen[n.ID]; dup {
			continue
		}
		if !n.Sticky() {
			if remaining := n.ExpiresAt().Sub(now); remaining > 0 {
				s.scheduleLocked(n.ID, remaining)
			}
		}
		seen[n.ID] = struct{}{}
		s.issued[n.ID] = struct{}{}
		restored = append(restored, n)
	}

	s.items = restored
	s.commitLocked()
}
