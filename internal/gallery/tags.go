package gallery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nhle/memebox/internal/directus"
	"github.com/nhle/memebox/internal/model"
)

const (
	tagsCollection = "tags"
	searchLimit    = 20
)

// ErrEmptyTagName is returned when a tag name is blank after trimming.
var ErrEmptyTagName = errors.New("tag name cannot be empty")

// Tags reads and writes the tags collection.
type Tags struct {
	client *directus.Client
}

// NewTags creates a tags service.
func NewTags(client *directus.Client) *Tags {
	return &Tags{client: client}
}

// List returns every tag sorted by name.
func (s *Tags) List(ctx context.Context) ([]model.Tag, error) {
	tags, _, err := directus.ListItems[model.Tag](ctx, s.client, tagsCollection, directus.Query{
		Sort:  []string{"name"},
		Limit: directus.LimitAll,
	})
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return tags, nil
}

// NormalizeTagName trims and lowercases a tag name.
func NormalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Create stores a tag. Names are normalized first; when a tag with the
// same name exists it is returned instead of creating a duplicate.
func (s *Tags) Create(ctx context.Context, name string) (model.Tag, error) {
	clean := NormalizeTagName(name)
	if clean == "" {
		return model.Tag{}, ErrEmptyTagName
	}

	existing, err := s.List(ctx)
	if err != nil {
		return model.Tag{}, err
	}
	for _, t := range existing {
		if strings.ToLower(t.Name) == clean {
			return t, nil
		}
	}

	tag, err := directus.CreateItem[model.Tag](ctx, s.client, tagsCollection, map[string]string{"name": clean})
	if err != nil {
		return model.Tag{}, fmt.Errorf("creating tag %q: %w", clean, err)
	}
	return tag, nil
}

// Search returns up to 20 tags whose name contains query. An empty query
// lists every tag.
func (s *Tags) Search(ctx context.Context, query string) ([]model.Tag, error) {
	q := NormalizeTagName(query)
	if q == "" {
		return s.List(ctx)
	}
	tags, _, err := directus.ListItems[model.Tag](ctx, s.client, tagsCollection, directus.Query{
		Filter: directus.Where("name", "_contains", q),
		Sort:   []string{"name"},
		Limit:  searchLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("searching tags: %w", err)
	}
	return tags, nil
}

// Delete removes a tag.
func (s *Tags) Delete(ctx context.Context, id model.ID) error {
	if err := directus.DeleteItem(ctx, s.client, tagsCollection, id.String()); err != nil {
		return fmt.Errorf("deleting tag %s: %w", id, err)
	}
	return nil
}
