package gallery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/nhle/memebox/internal/directus"
	"github.com/nhle/memebox/internal/model"
	"github.com/nhle/memebox/internal/store"
)

// ErrSignInRequired is returned when liking without being signed in.
var ErrSignInRequired = errors.New("you must be signed in to like a meme")

// Authenticator reports whether a user is signed in.
type Authenticator interface {
	IsAuthenticated() bool
}

// Likes toggles like counters on memes and remembers locally which memes
// the user liked. The backend only stores counters.
type Likes struct {
	client *directus.Client
	kv     store.Store
	auth   Authenticator
	log    *slog.Logger

	mu    sync.Mutex
	liked map[model.ID]struct{}
}

// NewLikes creates a likes service. Call Load to restore the liked set.
func NewLikes(client *directus.Client, kv store.Store, auth Authenticator, logger *slog.Logger) *Likes {
	if logger == nil {
		logger = slog.Default()
	}
	return &Likes{
		client: client,
		kv:     kv,
		auth:   auth,
		log:    logger.With("component", "likes"),
		liked:  make(map[model.ID]struct{}),
	}
}

// Load restores the liked set. Unreadable data leaves it empty.
func (l *Likes) Load(ctx context.Context) {
	var ids []model.ID
	err := store.GetJSON(ctx, l.kv, store.KeyLikedMemes, &ids)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		l.log.Error("loading liked memes", "error", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.liked = make(map[model.ID]struct{}, len(ids))
	for _, id := range ids {
		l.liked[id] = struct{}{}
	}
}

// IsLiked reports whether the user liked the meme.
func (l *Likes) IsLiked(id model.ID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.liked[id]
	return ok
}

// All returns the liked meme ids in a stable order.
func (l *Likes) All() []model.ID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sortedLocked()
}

// Toggle likes or unlikes a meme and returns the new state along with the
// updated counter. The counter never goes below zero.
func (l *Likes) Toggle(ctx context.Context, id model.ID) (liked bool, count int, err error) {
	if l.auth != nil && !l.auth.IsAuthenticated() {
		return false, 0, ErrSignInRequired
	}
	wasLiked := l.IsLiked(id)

	current, err := directus.GetItem[model.Meme](ctx, l.client, memesCollection, id.String(),
		directus.Query{Fields: []string{"id", "likes"}})
	if err != nil {
		return wasLiked, 0, fmt.Errorf("reading likes of %s: %w", id, err)
	}

	next := current.Likes + 1
	if wasLiked {
		next = max(0, current.Likes-1)
	}
	updated, err := directus.UpdateItem[model.Meme](ctx, l.client, memesCollection, id.String(),
		map[string]any{"likes": next})
	if err != nil {
		return wasLiked, current.Likes, fmt.Errorf("updating likes of %s: %w", id, err)
	}

	l.mu.Lock()
	if wasLiked {
		delete(l.liked, id)
	} else {
		l.liked[id] = struct{}{}
	}
	ids := l.sortedLocked()
	l.mu.Unlock()

	if err := store.SetJSON(ctx, l.kv, store.KeyLikedMemes, ids); err != nil {
		l.log.Error("saving liked memes", "error", err)
	}
	return !wasLiked, updated.Likes, nil
}

func (l *Likes) sortedLocked() []model.ID {
	ids := make([]model.ID, 0, len(l.liked))
	for id := range l.liked {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
