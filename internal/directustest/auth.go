package directustest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nhle/memebox/internal/model"
)

// SessionCookie is the cookie set by the OAuth flow in session mode.
const SessionCookie = "directus_session_token"

const ctxUserID = "user_id"

// AccessClaims mirrors the claims Directus puts in access tokens.
type AccessClaims struct {
	jwt.RegisteredClaims
	ID          string `json:"id"`
	Role        string `json:"role,omitempty"`
	AppAccess   bool   `json:"app_access"`
	AdminAccess bool   `json:"admin_access"`
}

// IssueTokens signs in userID and returns a fresh token pair.
func (b *Backend) IssueTokens(userID model.ID) (model.AuthTokens, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueLocked(string(userID))
}

func (b *Backend) issueLocked(userID string) (model.AuthTokens, error) {
	rec, ok := b.users[userID]
	if !ok {
		return model.AuthTokens{}, errors.New("unknown user")
	}
	now := b.now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "directus",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(b.accessTTL)),
		},
		ID:        userID,
		Role:      rec.User.Role,
		AppAccess: true,
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		return model.AuthTokens{}, err
	}

	refresh := strings.ReplaceAll(uuid.NewString(), "-", "")
	b.refresh[refresh] = userID

	return model.AuthTokens{
		AccessToken:  access,
		RefreshToken: refresh,
		Expires:      b.accessTTL.Milliseconds(),
	}, nil
}

// authenticate resolves the bearer token or session cookie into a user id.
// Requests without credentials continue anonymously; invalid credentials
// are rejected.
func (b *Backend) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !found {
			if cookie, err := c.Cookie(SessionCookie); err == nil {
				token = cookie
			}
		}
		if token == "" {
			c.Next()
			return
		}

		claims := &AccessClaims{}
		_, err := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
			return b.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(b.now))
		if errors.Is(err, jwt.ErrTokenExpired) {
			abort(c, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token expired.")
			return
		}
		if err != nil {
			abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid token.")
			return
		}

		b.mu.Lock()
		_, known := b.users[claims.ID]
		b.mu.Unlock()
		if !known {
			abort(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid user credentials.")
			return
		}

		c.Set(ctxUserID, claims.ID)
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

func requireUser(c *gin.Context) (string, bool) {
	id := currentUser(c)
	if id == "" {
		abort(c, http.StatusForbidden, "FORBIDDEN", "You don't have permission to access this.")
		return "", false
	}
	return id, true
}

func (b *Backend) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, http.StatusBadRequest, "INVALID_PAYLOAD", "Invalid payload.")
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()

		for id, rec := range b.users {
			if strings.EqualFold(rec.User.Email, req.Email) && rec.Password == req.Password {
				tokens, err := b.issueLocked(id)
				if err != nil {
					abort(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", err.Error())
					return
				}
				c.JSON(http.StatusOK, gin.H{"data": tokens})
				return
			}
		}
		abort(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid user credentials.")
	}
}

func (b *Backend) handleRefresh() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = c.ShouldBindJSON(&req)

		b.mu.Lock()
		defer b.mu.Unlock()

		userID, ok := b.refresh[req.RefreshToken]
		if !ok || req.RefreshToken == "" {
			abort(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid user credentials.")
			return
		}
		delete(b.refresh, req.RefreshToken)

		tokens, err := b.issueLocked(userID)
		if err != nil {
			abort(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid user credentials.")
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": tokens})
	}
}

func (b *Backend) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = c.ShouldBindJSON(&req)

		b.mu.Lock()
		delete(b.refresh, req.RefreshToken)
		b.mu.Unlock()

		c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
		c.Status(http.StatusNoContent)
	}
}

// handleOAuthLogin completes the provider round trip immediately: it signs
// in the user configured with EnableOAuth, sets the session cookie and
// redirects to the requested URL.
func (b *Backend) handleOAuthLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		redirect := c.Query("redirect")

		b.mu.Lock()
		userID := b.oauthUser
		var tokens model.AuthTokens
		var err error
		if userID != "" {
			tokens, err = b.issueLocked(userID)
		}
		ttl := b.accessTTL
		b.mu.Unlock()

		if userID == "" || err != nil {
			abort(c, http.StatusForbidden, "INVALID_PROVIDER", "Provider is not configured.")
			return
		}

		c.SetCookie(SessionCookie, tokens.AccessToken, int(ttl/time.Second), "/", "", false, true)
		if redirect == "" {
			c.Status(http.StatusNoContent)
			return
		}
		c.Redirect(http.StatusFound, redirect)
	}
}

func (b *Backend) handleMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := currentUser(c)
		if userID == "" {
			abort(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid user credentials.")
			return
		}
		b.mu.Lock()
		u := b.users[userID].User
		b.mu.Unlock()
		c.JSON(http.StatusOK, gin.H{"data": u})
	}
}

func (b *Backend) handleUpdateMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := currentUser(c)
		if userID == "" {
			abort(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid user credentials.")
			return
		}
		// Keys are inspected one by one so that an explicit null clears
		// the field.
		var patch map[string]json.RawMessage
		if err := c.ShouldBindJSON(&patch); err != nil {
			abort(c, http.StatusBadRequest, "INVALID_PAYLOAD", "Invalid payload.")
			return
		}
		var first, last string
		var avatar model.ID
		for field, dst := range map[string]any{"first_name": &first, "last_name": &last, "avatar": &avatar} {
			if raw, ok := patch[field]; ok {
				if err := json.Unmarshal(raw, dst); err != nil {
					abort(c, http.StatusBadRequest, "INVALID_PAYLOAD", "Invalid payload.")
					return
				}
			}
		}

		b.mu.Lock()
		rec := b.users[userID]
		if _, ok := patch["first_name"]; ok {
			rec.User.FirstName = first
		}
		if _, ok := patch["last_name"]; ok {
			rec.User.LastName = last
		}
		if _, ok := patch["avatar"]; ok {
			rec.User.Avatar = avatar
		}
		rec.User.DateUpdated = b.timestamp()
		u := rec.User
		b.mu.Unlock()

		c.JSON(http.StatusOK, gin.H{"data": u})
	}
}

func (b *Backend) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email     string `json:"email"`
			Password  string `json:"password"`
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, http.StatusBadRequest, "INVALID_PAYLOAD", "Invalid payload.")
			return
		}
		if !strings.Contains(req.Email, "@") {
			abortField(c, http.StatusBadRequest, "FAILED_VALIDATION", "email", `Value for field "email" has to be a valid email address.`)
			return
		}
		if req.Password == "" {
			abortField(c, http.StatusBadRequest, "FAILED_VALIDATION", "password", `Value for field "password" is required.`)
			return
		}

		b.mu.Lock()
		for _, rec := range b.users {
			if strings.EqualFold(rec.User.Email, req.Email) {
				b.mu.Unlock()
				abortField(c, http.StatusBadRequest, "RECORD_NOT_UNIQUE", "email", `Value for field "email" has to be unique.`)
				return
			}
		}
		b.mu.Unlock()

		b.AddUser(model.User{
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		}, req.Password)
		c.Status(http.StatusNoContent)
	}
}
