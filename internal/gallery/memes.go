// Package gallery implements the meme catalogue on top of the backend:
// memes, tags and the locally remembered likes of the current user.
package gallery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nhle/memebox/internal/directus"
	"github.com/nhle/memebox/internal/model"
)

const (
	memesCollection = "memes"

	// DefaultPageSize is the number of memes per gallery page.
	DefaultPageSize = 12

	// PopularLimit is the default size of the popular list.
	PopularLimit = 10
)

var (
	listFields = []string{
		"*", "user_created.id", "user_created.first_name", "user_created.last_name",
		"user_created.email", "user_created.avatar", "tags.tags_id.name",
	}
	popularFields = []string{
		"*", "user_created.id", "user_created.first_name", "user_created.last_name",
		"user_created.email", "user_created.avatar",
	}
	detailFields = []string{
		"*", "user_created.id", "user_created.first_name", "user_created.last_name",
		"user_created.avatar", "tags.tags_id.*",
	}
)

// ListOptions selects a page of the gallery.
type ListOptions struct {
	// Page is 1-based. Zero selects the first page.
	Page  int
	Limit int

	// Search matches meme titles.
	Search string

	// TagIDs keeps memes carrying any of the tags.
	TagIDs []model.ID
}

// Page is one page of memes.
type Page struct {
	Memes []model.Meme
	Page  int
	Limit int
	// Total is the number of memes matching the query across all pages.
	Total int
}

// HasMore reports whether later pages exist.
func (p Page) HasMore() bool {
	return p.Page*p.Limit < p.Total
}

// CreateInput describes a new meme.
type CreateInput struct {
	Title     string
	ImagePath string
	// Status defaults to published.
	Status model.MemeStatus
	TagIDs []model.ID
}

// UpdateInput holds the fields to change on a meme. Nil fields are left
// untouched.
type UpdateInput struct {
	Title  *string
	Status *model.MemeStatus
	TagIDs *[]model.ID
}

// Memes reads and writes the memes collection.
type Memes struct {
	client *directus.Client
}

// NewMemes creates a memes service.
func NewMemes(client *directus.Client) *Memes {
	return &Memes{client: client}
}

// List returns a page of published memes, newest first.
func (s *Memes) List(ctx context.Context, opts ListOptions) (Page, error) {
	filter := directus.Where("status", "_eq", model.MemePublished)
	if search := strings.TrimSpace(opts.Search); search != "" {
		filter = directus.And(filter, directus.Where("title", "_contains", search))
	}
	if len(opts.TagIDs) > 0 {
		filter = directus.And(filter, directus.Where("tags.tags_id", "_in", opts.TagIDs))
	}
	return s.page(ctx, filter, opts.Page, opts.Limit)
}

// Drafts returns a page of the user's unpublished memes.
func (s *Memes) Drafts(ctx context.Context, userID model.ID, page, limit int) (Page, error) {
	filter := directus.And(
		directus.Where("user_created", "_eq", userID),
		directus.Where("status", "_eq", model.MemeDraft),
	)
	return s.page(ctx, filter, page, limit)
}

func (s *Memes) page(ctx context.Context, filter directus.Filter, page, limit int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	memes, meta, err := directus.ListItems[model.Meme](ctx, s.client, memesCollection, directus.Query{
		Fields: listFields,
		Filter: filter,
		Sort:   []string{"-date_created"},
		Limit:  limit,
		Offset: (page - 1) * limit,
		Meta:   "filter_count",
	})
	if err != nil {
		return Page{}, fmt.Errorf("listing memes: %w", err)
	}

	total := len(memes) + (page-1)*limit
	if meta != nil {
		total = meta.FilterCount
	}
	return Page{Memes: memes, Page: page, Limit: limit, Total: total}, nil
}

// UserMemes returns every meme created by the user, newest first.
func (s *Memes) UserMemes(ctx context.Context, userID model.ID) ([]model.Meme, error) {
	memes, _, err := directus.ListItems[model.Meme](ctx, s.client, memesCollection, directus.Query{
		Fields: []string{"*", "tags.tags_id.name"},
		Filter: directus.Where("user_created", "_eq", userID),
		Sort:   []string{"-date_created"},
		Limit:  directus.LimitAll,
	})
	if err != nil {
		return nil, fmt.Errorf("listing memes of %s: %w", userID, err)
	}
	return memes, nil
}

// Popular returns the most liked published memes, ties broken by views.
func (s *Memes) Popular(ctx context.Context, limit int) ([]model.Meme, error) {
	if limit <= 0 {
		limit = PopularLimit
	}
	memes, _, err := directus.ListItems[model.Meme](ctx, s.client, memesCollection, directus.Query{
		Fields: popularFields,
		Filter: directus.Where("status", "_eq", model.MemePublished),
		Sort:   []string{"-likes", "-views"},
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing popular memes: %w", err)
	}
	return memes, nil
}

// Get returns a single meme with its author and tags expanded.
func (s *Memes) Get(ctx context.Context, id model.ID) (model.Meme, error) {
	meme, err := directus.GetItem[model.Meme](ctx, s.client, memesCollection, id.String(),
		directus.Query{Fields: detailFields})
	if err != nil {
		return model.Meme{}, fmt.Errorf("getting meme %s: %w", id, err)
	}
	return meme, nil
}

// Create uploads the image and stores a new meme referencing it.
func (s *Memes) Create(ctx context.Context, in CreateInput) (model.Meme, error) {
	if err := ValidateCreate(in); err != nil {
		return model.Meme{}, err
	}
	if in.Status == "" {
		in.Status = model.MemePublished
	}

	file, err := s.upload(ctx, in.ImagePath)
	if err != nil {
		return model.Meme{}, err
	}

	meme, err := directus.CreateItem[model.Meme](ctx, s.client, memesCollection, map[string]any{
		"title":  strings.TrimSpace(in.Title),
		"image":  file.ID,
		"status": in.Status,
		"tags":   tagLinks(in.TagIDs),
	})
	if err != nil {
		return model.Meme{}, fmt.Errorf("creating meme: %w", err)
	}
	return meme, nil
}

// UploadImage validates and uploads an image file, such as a new avatar.
func (s *Memes) UploadImage(ctx context.Context, path string) (*model.File, error) {
	if err := ValidateImage(path); err != nil {
		return nil, err
	}
	return s.upload(ctx, path)
}

func (s *Memes) upload(ctx context.Context, path string) (*model.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	file, err := s.client.UploadFile(ctx, filepath.Base(path), f)
	if err != nil {
		return nil, fmt.Errorf("uploading image: %w", err)
	}
	return file, nil
}

// Update changes the given fields of a meme.
func (s *Memes) Update(ctx context.Context, id model.ID, in UpdateInput) (model.Meme, error) {
	patch := map[string]any{}
	if in.Title != nil {
		if err := ValidateTitle(*in.Title); err != nil {
			return model.Meme{}, err
		}
		patch["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Status != nil {
		patch["status"] = *in.Status
	}
	if in.TagIDs != nil {
		patch["tags"] = tagLinks(*in.TagIDs)
	}

	meme, err := directus.UpdateItem[model.Meme](ctx, s.client, memesCollection, id.String(), patch)
	if err != nil {
		return model.Meme{}, fmt.Errorf("updating meme %s: %w", id, err)
	}
	return meme, nil
}

// Delete removes a meme.
func (s *Memes) Delete(ctx context.Context, id model.ID) error {
	if err := directus.DeleteItem(ctx, s.client, memesCollection, id.String()); err != nil {
		return fmt.Errorf("deleting meme %s: %w", id, err)
	}
	return nil
}

// IncrementViews adds one view to a meme. The counter is read and written
// back, so concurrent viewers may lose increments.
func (s *Memes) IncrementViews(ctx context.Context, id model.ID) error {
	current, err := directus.GetItem[model.Meme](ctx, s.client, memesCollection, id.String(),
		directus.Query{Fields: []string{"id", "views"}})
	if err != nil {
		return fmt.Errorf("reading views of %s: %w", id, err)
	}
	_, err = directus.UpdateItem[model.Meme](ctx, s.client, memesCollection, id.String(),
		map[string]any{"views": current.Views + 1})
	if err != nil {
		return fmt.Errorf("incrementing views of %s: %w", id, err)
	}
	return nil
}

func tagLinks(ids []model.ID) []map[string]any {
	links := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		links = append(links, map[string]any{"tags_id": id})
	}
	return links
}
