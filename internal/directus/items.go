package directus

import (
	"context"
	"net/url"
)

// ItemsPath returns the endpoint of a collection, or of a single item when
// id is non-empty.
func ItemsPath(collection, id string) string {
	p := "/items/" + url.PathEscape(collection)
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	return p
}

// ListItems reads items of a collection.
func ListItems[T any](ctx context.Context, c *Client, collection string, q Query) ([]T, *Meta, error) {
	var env Envelope[[]T]
	if err := c.Get(ctx, ItemsPath(collection, ""), q.Values(), &env); err != nil {
		return nil, nil, err
	}
	if env.Data == nil {
		env.Data = []T{}
	}
	return env.Data, env.Meta, nil
}

// GetItem reads a single item. Only q.Fields is honored by the backend.
func GetItem[T any](ctx context.Context, c *Client, collection, id string, q Query) (T, error) {
	var env Envelope[T]
	err := c.Get(ctx, ItemsPath(collection, id), q.Values(), &env)
	return env.Data, err
}

// CreateItem creates an item and returns the stored representation.
func CreateItem[T any](ctx context.Context, c *Client, collection string, body any) (T, error) {
	var env Envelope[T]
	err := c.Post(ctx, ItemsPath(collection, ""), body, &env)
	return env.Data, err
}

// UpdateItem patches an item and returns the stored representation.
func UpdateItem[T any](ctx context.Context, c *Client, collection, id string, body any) (T, error) {
	var env Envelope[T]
	err := c.Patch(ctx, ItemsPath(collection, id), body, &env)
	return env.Data, err
}

// DeleteItem deletes an item.
func DeleteItem(ctx context.Context, c *Client, collection, id string) error {
	return c.Delete(ctx, ItemsPath(collection, id))
}
