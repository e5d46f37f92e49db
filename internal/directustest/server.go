// Package directustest provides an in-memory Directus backend for tests and
// local development. It implements the subset of the REST API memebox uses:
// password and OAuth authentication, users, generic item collections with
// filter/sort/limit support, file uploads and assets.
package directustest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nhle/memebox/internal/model"
)

// Collections created by New.
var defaultCollections = []string{"memes", "tags", "notifications"}

type userRecord struct {
	User     model.User
	Password string
}

type fileRecord struct {
	File model.File
	Data []byte
}

type failure struct {
	status    int
	remaining int // <= 0 means until cleared
}

// Backend is a fake Directus instance. All methods are safe for concurrent
// use.
type Backend struct {
	// URL is set by Start to the address of the running test server.
	URL string

	router *gin.Engine
	secret []byte
	now    func() time.Time

	mu          sync.Mutex
	accessTTL   time.Duration
	users       map[string]*userRecord
	refresh     map[string]string
	collections map[string]*collection
	files       map[string]*fileRecord
	failures    map[string]*failure
	calls       map[string]int
	queries     map[string]url.Values
	oauthUser   string
}

// Option customizes a Backend.
type Option func(*Backend)

// WithClock overrides the clock used for timestamps and token expiry.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// WithSecret sets the HMAC secret used to sign access tokens.
func WithSecret(secret string) Option {
	return func(b *Backend) { b.secret = []byte(secret) }
}

// New creates a backend with empty "memes", "tags" and "notifications"
// collections.
func New(opts ...Option) *Backend {
	b := &Backend{
		secret:      []byte("directustest-secret"),
		now:         time.Now,
		accessTTL:   15 * time.Minute,
		users:       make(map[string]*userRecord),
		refresh:     make(map[string]string),
		collections: make(map[string]*collection),
		files:       make(map[string]*fileRecord),
		failures:    make(map[string]*failure),
		calls:       make(map[string]int),
		queries:     make(map[string]url.Values),
	}
	for _, opt := range opts {
		opt(b)
	}
	for _, name := range defaultCollections {
		b.collections[name] = newCollection()
	}

	b.router = gin.New()
	b.router.Use(gin.Recovery(), b.record(), b.authenticate())
	b.setupRoutes()
	return b
}

// Start serves the backend on a local test server that is closed when the
// test finishes.
func Start(t testing.TB, opts ...Option) *Backend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := New(opts...)
	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)
	b.URL = srv.URL
	return b
}

// Handler returns the HTTP handler serving the API.
func (b *Backend) Handler() http.Handler { return b.router }

func (b *Backend) setupRoutes() {
	b.router.GET("/server/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	auth := b.router.Group("/auth")
	{
		auth.POST("/login", b.handleLogin())
		auth.POST("/refresh", b.handleRefresh())
		auth.POST("/logout", b.handleLogout())
		auth.GET("/login/:provider", b.handleOAuthLogin())
	}

	users := b.router.Group("/users")
	{
		users.GET("/me", b.handleMe())
		users.PATCH("/me", b.handleUpdateMe())
		users.POST("/register", b.handleRegister())
	}

	items := b.router.Group("/items/:collection")
	{
		items.GET("", b.handleListItems())
		items.POST("", b.handleCreateItem())
		items.GET("/:id", b.handleGetItem())
		items.PATCH("/:id", b.handleUpdateItem())
		items.DELETE("/:id", b.handleDeleteItem())
	}

	b.router.POST("/files", b.handleUpload())
	b.router.GET("/assets/:id", b.handleAsset())
}

// SetAccessTTL changes the lifetime of newly issued access tokens.
func (b *Backend) SetAccessTTL(d time.Duration) {
	b.mu.Lock()
	b.accessTTL = d
	b.mu.Unlock()
}

// AddUser registers a user that can log in with password. An empty id is
// replaced with a fresh UUID. The stored user is returned.
func (b *Backend) AddUser(u model.User, password string) model.User {
	b.mu.Lock()
	defer b.mu.Unlock()

	if u.ID.IsZero() {
		u.ID = model.ID(uuid.NewString())
	}
	if u.DateCreated == "" {
		u.DateCreated = b.timestamp()
	}
	b.users[string(u.ID)] = &userRecord{User: u, Password: password}
	return u
}

// EnableOAuth makes the OAuth login endpoint sign in the given user.
func (b *Backend) EnableOAuth(userID model.ID) {
	b.mu.Lock()
	b.oauthUser = string(userID)
	b.mu.Unlock()
}

// AddCollection creates an empty collection if it does not exist.
func (b *Backend) AddCollection(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.collections[name]; !ok {
		b.collections[name] = newCollection()
	}
}

// RemoveCollection deletes a collection, so that requests to it are
// rejected the way Directus rejects unknown collections.
func (b *Backend) RemoveCollection(name string) {
	b.mu.Lock()
	delete(b.collections, name)
	b.mu.Unlock()
}

// AddItem stores an item and returns its id. Missing "id" and
// "date_created" fields are filled in.
func (b *Backend) AddItem(name string, item map[string]any) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	col, ok := b.collections[name]
	if !ok {
		col = newCollection()
		b.collections[name] = col
	}
	stored := col.insert(normalize(item), name, b.timestamp())
	return fmt.Sprint(stored["id"])
}

// Item returns a copy of a stored item, or nil when absent.
func (b *Backend) Item(name, id string) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()

	col, ok := b.collections[name]
	if !ok {
		return nil
	}
	item := col.get(id)
	if item == nil {
		return nil
	}
	return clone(item)
}

// Items returns copies of every item of a collection in insertion order.
func (b *Backend) Items(name string) []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()

	col, ok := b.collections[name]
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(col.items))
	for _, item := range col.items {
		out = append(out, clone(item))
	}
	return out
}

// File returns the contents of an uploaded file.
func (b *Backend) File(id string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.files[id]
	if !ok {
		return nil, false
	}
	return f.Data, true
}

// Fail makes the next times requests matching method and path answer with
// status. A times value of zero or less fails until ClearFailures.
func (b *Backend) Fail(method, path string, status, times int) {
	b.mu.Lock()
	b.failures[method+" "+path] = &failure{status: status, remaining: times}
	b.mu.Unlock()
}

// ClearFailures removes all injected failures.
func (b *Backend) ClearFailures() {
	b.mu.Lock()
	b.failures = make(map[string]*failure)
	b.mu.Unlock()
}

// Calls returns how many requests reached method and path.
func (b *Backend) Calls(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method+" "+path]
}

// LastQuery returns the query parameters of the latest request to method
// and path.
func (b *Backend) LastQuery(method, path string) url.Values {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queries[method+" "+path]
}

// record counts requests and applies injected failures.
func (b *Backend) record() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Request.Method + " " + c.Request.URL.Path

		b.mu.Lock()
		b.calls[key]++
		b.queries[key] = c.Request.URL.Query()
		f := b.failures[key]
		status := 0
		if f != nil {
			status = f.status
			if f.remaining > 0 {
				f.remaining--
				if f.remaining == 0 {
					delete(b.failures, key)
				}
			}
		}
		b.mu.Unlock()

		if status != 0 {
			abort(c, status, "INJECTED_FAILURE", http.StatusText(status))
			return
		}
		c.Next()
	}
}

func (b *Backend) timestamp() string {
	return b.now().UTC().Format(time.RFC3339Nano)
}

// abort writes a Directus error document.
func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"errors": []gin.H{{
			"message":    message,
			"extensions": gin.H{"code": code},
		}},
	})
}

func abortField(c *gin.Context, status int, code, field, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"errors": []gin.H{{
			"message":    message,
			"extensions": gin.H{"code": code, "field": field},
		}},
	})
}

// normalize converts v to plain JSON values (float64 numbers, []any, and
// map[string]any) so that stored items compare consistently.
func normalize(v map[string]any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("directustest: item is not JSON: %v", err))
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("directustest: item is not a JSON object: %v", err))
	}
	if out == nil {
		out = map[string]any{}
	}
	return out
}

func clone(v map[string]any) map[string]any {
	return normalize(v)
}
