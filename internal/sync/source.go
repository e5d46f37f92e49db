package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nhle/memebox/internal/directus"
	"github.com/nhle/memebox/internal/model"
)

const notificationsCollection = "notifications"

// DirectusSource reads notification records from the backend's
// "notifications" collection.
type DirectusSource struct {
	client *directus.Client
	log    *slog.Logger
}

// NewDirectusSource creates a Source backed by client.
func NewDirectusSource(client *directus.Client, logger *slog.Logger) *DirectusSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectusSource{client: client, log: logger.With("component", "notification-source")}
}

// Unread returns the newest unread records of userID. Records that do not
// decode are returned with only their id set, so that they are still
// acknowledged.
func (s *DirectusSource) Unread(ctx context.Context, userID model.ID, limit int) ([]model.NotificationRecord, error) {
	raws, _, err := directus.ListItems[json.RawMessage](ctx, s.client, notificationsCollection, directus.Query{
		Filter: directus.And(
			directus.Where("user", "_eq", userID),
			directus.Where("read", "_eq", false),
		),
		Sort:  []string{"-date_created"},
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching unread notifications: %w", err)
	}

	records := make([]model.NotificationRecord, 0, len(raws))
	for _, raw := range raws {
		var rec model.NotificationRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			var bare struct {
				ID model.ID `json:"id"`
			}
			_ = json.Unmarshal(raw, &bare)
			s.log.Warn("malformed notification record", "id", bare.ID, "error", err)
			rec = model.NotificationRecord{ID: bare.ID}
		}
		records = append(records, rec)
	}
	return records, nil
}

// MarkRead flags a record as read.
func (s *DirectusSource) MarkRead(ctx context.Context, id model.ID) error {
	path := directus.ItemsPath(notificationsCollection, id.String())
	if err := s.client.Patch(ctx, path, map[string]bool{"read": true}, nil); err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}

// Thumbnail returns the 100x100 thumbnail URL of a meme image.
func (s *DirectusSource) Thumbnail(image model.ID) string {
	return s.client.AssetURL(image.String(), directus.ThumbnailTransforms)
}
