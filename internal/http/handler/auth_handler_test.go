package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitelift/siteauth/internal/domain"
	"github.com/sitelift/siteauth/internal/http/handler"
	"github.com/sitelift/siteauth/internal/password"
	"github.com/sitelift/siteauth/internal/service"
	"github.com/sitelift/siteauth/internal/site"
	"github.com/sitelift/siteauth/internal/token"
)

type memUserRepo struct {
	mu      sync.Mutex
	byEmail map[string]domain.SiteUser
	byID    map[int64]domain.SiteUser
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		byEmail: make(map[string]domain.SiteUser),
		byID:    make(map[int64]domain.SiteUser),
	}
}

func (r *memUserRepo) key(siteID, email string) string { return siteID + "\x00" + email }

func (r *memUserRepo) FindByEmail(_ context.Context, siteID, email string) (domain.SiteUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byEmail[r.key(siteID, email)]
	if !ok {
		return domain.SiteUser{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (r *memUserRepo) FindByID(_ context.Context, siteID string, userID int64) (domain.SiteUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[userID]
	if !ok || user.SiteID != siteID {
		return domain.SiteUser{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (r *memUserRepo) Insert(_ context.Context, user domain.SiteUser) (domain.SiteUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := r.key(user.SiteID, user.Email)
	if _, exists := r.byEmail[key]; exists {
		return domain.SiteUser{}, domain.ErrDuplicateUser
	}
	r.byEmail[key] = user
	r.byID[user.ID] = user
	return user, nil
}

func (r *memUserRepo) TouchLogin(_ context.Context, userID int64) error {
	return nil
}

func newTestRouter(t *testing.T, siteCtx *site.Context) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	codec, err := token.NewCodec("handler-test-secret-0123456789abcdef")
	require.NoError(t, err)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	auth := service.NewAuthService(newMemUserRepo(), password.NewHasher(2), codec, node, zap.NewNop())
	h := handler.NewAuthHandler(auth)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if siteCtx != nil {
			c.Set("siteContext", siteCtx)
		}
		c.Next()
	})
	r.POST("/v1/auth", h.Dispatch)
	auth1 := r.Group("/v1/auth")
	auth1.POST("/register", h.Register)
	auth1.POST("/login", h.Login)
	auth1.POST("/session/verify", h.VerifySession)
	auth1.GET("/me", h.Me)
	auth1.POST("/logout", h.Logout)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) (*httptest.ResponseRecorder, service.Response) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var resp service.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func testSiteCtx() *site.Context {
	return &site.Context{Site: domain.Site{ID: "site-1", BusinessID: "biz-1", Host: "one.example.com"}}
}

func TestRegisterLoginMeFlow(t *testing.T) {
	r := newTestRouter(t, testSiteCtx())

	rec, resp := postJSON(t, r, "/v1/auth/register", gin.H{
		"email":    "alice@example.com",
		"password": "secret1",
		"name":     "Alice",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)
	require.NotNil(t, resp.User)
	require.NotNil(t, resp.Session)
	require.Equal(t, "site-1", resp.Session.SiteID)

	rec, resp = postJSON(t, r, "/v1/auth/login", gin.H{
		"email":    "alice@example.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)
	require.NotNil(t, resp.Session)

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Session.Token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var me service.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	require.True(t, me.Success)
	require.NotNil(t, me.User)
	require.Equal(t, "alice@example.com", me.User.Email)
}

func TestEnvelopeDispatch(t *testing.T) {
	r := newTestRouter(t, testSiteCtx())

	rec, resp := postJSON(t, r, "/v1/auth", gin.H{
		"action":   "register",
		"email":    "bob@example.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)

	rec, verify := postJSON(t, r, "/v1/auth", gin.H{
		"action":       "verify-session",
		"sessionToken": resp.Session.Token,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, verify.Success)
	require.Equal(t, resp.Session.Token, verify.Session.Token)
}

func TestUnknownSiteRejected(t *testing.T) {
	r := newTestRouter(t, nil)

	rec, resp := postJSON(t, r, "/v1/auth/register", gin.H{
		"email":    "alice@example.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, resp.Success)
	require.Equal(t, "unknown site", resp.Error)
}

func TestMeWithoutBearerToken(t *testing.T) {
	r := newTestRouter(t, testSiteCtx())

	for _, header := range []string{"", "Bearer ", "Basic abc", "garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, fmt.Sprintf("header %q", header))

		var resp service.Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "invalid or expired session", resp.Error)
	}
}

func TestMalformedBodyRejected(t *testing.T) {
	r := newTestRouter(t, testSiteCtx())

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp service.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "invalid payload", resp.Error)
}

func TestErrorStatusMapping(t *testing.T) {
	r := newTestRouter(t, testSiteCtx())

	_, _ = postJSON(t, r, "/v1/auth/register", gin.H{"email": "dup@example.com", "password": "secret1"})
	rec, resp := postJSON(t, r, "/v1/auth/register", gin.H{"email": "dup@example.com", "password": "secret1"})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.False(t, resp.Success)

	rec, resp = postJSON(t, r, "/v1/auth/login", gin.H{"email": "dup@example.com", "password": "wrong-pass"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid email or password", resp.Error)

	rec, resp = postJSON(t, r, "/v1/auth/session/verify", gin.H{"sessionToken": "not-a-token"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid or expired session", resp.Error)
}

func TestLogoutEndpoint(t *testing.T) {
	r := newTestRouter(t, testSiteCtx())

	rec, resp := postJSON(t, r, "/v1/auth/logout", gin.H{})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)
	require.Equal(t, "logged out", resp.Message)
}
