// Package session manages authentication against the backend: password and
// OAuth sign-in, token storage and refresh, and the current user.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nhle/memebox/internal/credential"
	"github.com/nhle/memebox/internal/directus"
	"github.com/nhle/memebox/internal/model"
	"github.com/nhle/memebox/internal/store"
)

// Keys of the token store.
const (
	KeyAccessToken  = "directus_token"
	KeyRefreshToken = "directus_refresh_token"
)

// refreshLeeway is how close to expiry an access token is refreshed.
const refreshLeeway = 30 * time.Second

// ErrSessionExpired is returned when the refresh token was rejected and the
// user has been signed out.
var ErrSessionExpired = errors.New("session expired")

// TokenStore keeps secrets between runs.
type TokenStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// RegisterInput is the payload of a self-service registration.
type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Config configures a Manager.
type Config struct {
	// AdminRole is a role id treated as administrator.
	AdminRole string
	Logger    *slog.Logger
	Now       func() time.Time
}

// Manager is the authentication state of the application. It installs
// itself as the token source of the client it is given.
type Manager struct {
	client *directus.Client
	tokens TokenStore
	kv     store.Store
	cfg    Config
	log    *slog.Logger

	// refreshMu serializes token refreshes.
	refreshMu sync.Mutex

	mu        sync.RWMutex
	access    string
	refresh   string
	cookie    bool
	user      *model.User
	listeners map[int]func(*model.User)
	nextID    int
}

// New creates a signed-out manager. Call Restore to resume a previous
// session.
func New(client *directus.Client, tokens TokenStore, kv store.Store, cfg Config) *Manager {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		client:    client,
		tokens:    tokens,
		kv:        kv,
		cfg:       cfg,
		log:       logger.With("component", "session"),
		listeners: make(map[int]func(*model.User)),
	}
	client.SetTokenSource(m.Token)
	return m
}

// Restore resumes the session persisted by a previous run. A stored user
// without an access token, or an unreadable user record, leaves the
// manager signed out.
func (m *Manager) Restore(ctx context.Context) error {
	access, err := m.readToken(KeyAccessToken)
	if err != nil {
		return err
	}
	refresh, err := m.readToken(KeyRefreshToken)
	if err != nil {
		return err
	}

	var user *model.User
	if err := store.GetJSON(ctx, m.kv, store.KeyUser, &user); err != nil && !errors.Is(err, store.ErrNotFound) {
		m.log.Warn("ignoring stored user", "error", err)
		user = nil
	}
	if access == "" || user == nil || user.ID.IsZero() {
		return nil
	}

	m.mu.Lock()
	m.access, m.refresh, m.user = access, refresh, user
	m.mu.Unlock()
	m.emit(user)
	return nil
}

// Login signs in with email and password.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	var env directus.Envelope[model.AuthTokens]
	err := m.client.Do(ctx, directus.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   map[string]string{"email": email, "password": password},
		NoAuth: true,
	}, &env)
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}
	return m.establish(ctx, env.Data)
}

// Register creates an account and signs in with it.
func (m *Manager) Register(ctx context.Context, in RegisterInput) error {
	err := m.client.Do(ctx, directus.Request{
		Method: http.MethodPost,
		Path:   "/users/register",
		Body:   in,
		NoAuth: true,
	}, nil)
	if err != nil {
		return fmt.Errorf("registering: %w", err)
	}
	return m.Login(ctx, in.Email, in.Password)
}

// Logout ends the session. The backend is told to revoke the refresh
// token on a best-effort basis; local state is always cleared.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.RLock()
	refresh := m.refresh
	signedIn := m.user != nil || m.access != ""
	m.mu.RUnlock()

	if refresh != "" {
		err := m.client.Do(ctx, directus.Request{
			Method: http.MethodPost,
			Path:   "/auth/logout",
			Body:   map[string]string{"refresh_token": refresh},
			NoAuth: true,
		}, nil)
		if err != nil {
			m.log.Warn("revoking refresh token", "error", err)
		}
	}

	m.clear(ctx)
	if signedIn {
		m.emit(nil)
	}
}

// Refresh exchanges the refresh token for a new token pair. When the
// backend rejects it the user is signed out and ErrSessionExpired is
// returned.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.RLock()
	stale := m.access
	m.mu.RUnlock()
	return m.refreshFrom(ctx, stale)
}

// refreshFrom refreshes unless another caller already replaced stale.
func (m *Manager) refreshFrom(ctx context.Context, stale string) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	m.mu.RLock()
	current, refresh := m.access, m.refresh
	m.mu.RUnlock()
	if current != stale {
		return nil
	}
	if refresh == "" {
		m.Logout(ctx)
		return ErrSessionExpired
	}

	var env directus.Envelope[model.AuthTokens]
	err := m.client.Do(ctx, directus.Request{
		Method: http.MethodPost,
		Path:   "/auth/refresh",
		Body:   map[string]string{"refresh_token": refresh, "mode": "json"},
		NoAuth: true,
	}, &env)
	if err != nil {
		m.log.Warn("refreshing session", "error", err)
		if directus.StatusOf(err) != 0 {
			m.Logout(ctx)
			return fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}
		return fmt.Errorf("refreshing session: %w", err)
	}
	m.setTokens(env.Data)
	return nil
}

// Token returns the current access token, refreshing it first when it
// expires within the next 30 seconds. It returns an empty token when
// signed out. Token is the client's token source.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.RLock()
	access, refresh := m.access, m.refresh
	m.mu.RUnlock()

	if access == "" || refresh == "" || !m.expiresSoon(access) {
		return access, nil
	}
	if err := m.refreshFrom(ctx, access); err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.access, nil
}

// expiresSoon reads the exp claim without verifying the signature; the
// backend remains the authority on validity.
func (m *Manager) expiresSoon(token string) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.Sub(m.cfg.Now()) < refreshLeeway
}

// OAuthLoginURL returns the backend URL that starts the provider sign-in
// and returns to redirect afterwards.
func (m *Manager) OAuthLoginURL(provider, redirect string) string {
	u := m.client.BaseURL() + "/auth/login/" + url.PathEscape(provider)
	if redirect != "" {
		u += "?redirect=" + url.QueryEscape(redirect)
	}
	return u
}

// OAuthLogin runs the provider sign-in through the client itself and then
// checks the resulting cookie session. It only completes for providers
// that sign in without user interaction; otherwise open OAuthLoginURL in
// a browser and pass the issued tokens to HandleOAuthCallback.
func (m *Manager) OAuthLogin(ctx context.Context, provider string) error {
	if err := m.client.Visit(ctx, m.OAuthLoginURL(provider, m.client.BaseURL()+"/server/ping")); err != nil {
		return fmt.Errorf("starting %s sign-in: %w", provider, err)
	}
	return m.CheckOAuthSession(ctx)
}

// HandleOAuthCallback completes a sign-in from tokens handed back by the
// OAuth redirect.
func (m *Manager) HandleOAuthCallback(ctx context.Context, access, refresh string) error {
	return m.establish(ctx, model.AuthTokens{AccessToken: access, RefreshToken: refresh})
}

// CheckOAuthSession verifies that the backend session cookie set by the
// OAuth flow is valid and adopts its user.
func (m *Manager) CheckOAuthSession(ctx context.Context) error {
	user, err := m.fetchMe(ctx)
	if err != nil {
		return fmt.Errorf("checking OAuth session: %w", err)
	}
	m.mu.Lock()
	m.cookie = true
	m.mu.Unlock()
	m.setUser(ctx, user)
	return nil
}

// SetAvatar points the current user's avatar at an uploaded file. An
// empty id removes the avatar.
func (m *Manager) SetAvatar(ctx context.Context, fileID model.ID) error {
	var avatar any
	if !fileID.IsZero() {
		avatar = fileID.String()
	}
	var env directus.Envelope[model.User]
	if err := m.client.Patch(ctx, "/users/me", map[string]any{"avatar": avatar}, &env); err != nil {
		return fmt.Errorf("updating avatar: %w", err)
	}
	m.setUser(ctx, &env.Data)
	return nil
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (m *Manager) CurrentUser() *model.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// IsAuthenticated reports whether a user is signed in.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil && (m.access != "" || m.cookie)
}

// IsAdmin reports whether the signed-in user holds an administrator role.
func (m *Manager) IsAdmin() bool {
	u := m.CurrentUser()
	if u == nil || u.Role == "" {
		return false
	}
	if m.cfg.AdminRole != "" && u.Role == m.cfg.AdminRole {
		return true
	}
	role := strings.ToLower(u.Role)
	return role == "admin" || role == "administrator"
}

// OnChange registers fn to be called with the new user whenever the
// authentication state changes (nil when signed out). The returned
// function removes the listener.
func (m *Manager) OnChange(fn func(*model.User)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Manager) establish(ctx context.Context, tokens model.AuthTokens) error {
	m.setTokens(tokens)
	user, err := m.fetchMe(ctx)
	if err != nil {
		m.clear(ctx)
		return fmt.Errorf("loading current user: %w", err)
	}
	m.setUser(ctx, user)
	return nil
}

func (m *Manager) fetchMe(ctx context.Context) (*model.User, error) {
	var env directus.Envelope[model.User]
	if err := m.client.Get(ctx, "/users/me", nil, &env); err != nil {
		return nil, err
	}
	if env.Data.ID.IsZero() {
		return nil, errors.New("backend returned a user without id")
	}
	return &env.Data, nil
}

func (m *Manager) setTokens(t model.AuthTokens) {
	m.mu.Lock()
	m.access, m.refresh = t.AccessToken, t.RefreshToken
	m.mu.Unlock()

	m.writeToken(KeyAccessToken, t.AccessToken)
	m.writeToken(KeyRefreshToken, t.RefreshToken)
}

func (m *Manager) setUser(ctx context.Context, user *model.User) {
	m.mu.Lock()
	m.user = user
	m.mu.Unlock()

	if err := store.SetJSON(ctx, m.kv, store.KeyUser, user); err != nil {
		m.log.Error("saving user", "error", err)
	}
	m.emit(user)
}

func (m *Manager) clear(ctx context.Context) {
	m.mu.Lock()
	m.access, m.refresh, m.cookie, m.user = "", "", false, nil
	m.mu.Unlock()

	for _, key := range []string{KeyAccessToken, KeyRefreshToken} {
		if err := m.tokens.Delete(key); err != nil {
			m.log.Error("deleting token", "key", key, "error", err)
		}
	}
	if err := m.kv.DeleteValue(ctx, store.KeyUser); err != nil {
		m.log.Error("deleting user", "error", err)
	}
}

func (m *Manager) emit(user *model.User) {
	m.mu.RLock()
	fns := make([]func(*model.User), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.RUnlock()

	for _, fn := range fns {
		var u *model.User
		if user != nil {
			cp := *user
			u = &cp
		}
		fn(u)
	}
}

func (m *Manager) readToken(key string) (string, error) {
	v, err := m.tokens.Get(key)
	if errors.Is(err, credential.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return v, nil
}

func (m *Manager) writeToken(key, value string) {
	var err error
	if value == "" {
		err = m.tokens.Delete(key)
	} else {
		err = m.tokens.Set(key, value)
	}
	if err != nil {
		m.log.Error("saving token", "key", key, "error", err)
	}
}
