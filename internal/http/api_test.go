package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"blog-manager/internal/repository/sqlite"
	"blog-manager/internal/service"
	"blog-manager/internal/token"
)

const testPassword = "tr0ub4dor-and-3-staples"

type testServer struct {
	router *gin.Engine
	jwt    *token.Manager
}

func newTestServer(t *testing.T, limits RateLimits) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	users := sqlite.NewUserRepository(db)
	posts := sqlite.NewPostRepository(db)
	tokens := sqlite.NewTokenRepository(db)
	require.NoError(t, users.Init(ctx))
	require.NoError(t, posts.Init(ctx))
	require.NoError(t, tokens.Init(ctx))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	jwt := token.NewManager("api-test-secret", 15*time.Minute, 168*time.Hour)
	auth, err := service.NewAuthService(users, tokens, jwt, logger)
	require.NoError(t, err)
	postSvc := service.NewPostService(posts, nil, service.PostConfig{}, logger)

	if limits.LoginPerMinute == 0 {
		limits.LoginPerMinute = 1000
	}
	if limits.RegisterPerHour == 0 {
		limits.RegisterPerHour = 1000
	}

	handler := NewHandler(auth, postSvc, jwt, CookieConfig{
		Name:   "refresh_token",
		Path:   "/api/v1/auth/",
		MaxAge: 168 * time.Hour,
	}, limits, logger)

	router := gin.New()
	handler.RegisterRoutes(router)
	return &testServer{router: router, jwt: jwt}
}

func (s *testServer) do(t *testing.T, method, path, accessToken string, cookies []*http.Cookie, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "refresh_token" {
			return c
		}
	}
	t.Fatal("no refresh_token cookie in response")
	return nil
}

// registerUser registers an account and returns its access token plus the
// refresh cookie.
func (s *testServer) registerUser(t *testing.T, email string) (string, *http.Cookie) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/auth/register", "", nil, gin.H{
		"email":      email,
		"password":   testPassword,
		"first_name": "Test",
		"last_name":  "User",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeJSON(t, rec)
	access, ok := body["access"].(string)
	require.True(t, ok)
	return access, refreshCookie(t, rec)
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeJSON(t, rec)
	envelope, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %s", rec.Body.String())
	code, _ := envelope["code"].(string)
	return code
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, RateLimits{})
	rec := srv.do(t, http.MethodGet, "/api/health", "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	srv := newTestServer(t, RateLimits{})

	rec := srv.do(t, http.MethodPost, "/api/v1/auth/register", "", nil, gin.H{
		"email":    "new@example.com",
		"password": testPassword,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeJSON(t, rec)
	user := body["user"].(map[string]any)
	require.Equal(t, "new@example.com", user["email"])
	require.Equal(t, "reader", user["role"])
	require.NotEmpty(t, body["access"])

	cookie := refreshCookie(t, rec)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, "/api/v1/auth/", cookie.Path)
	require.NotEmpty(t, cookie.Value)

	// duplicate registration, different case
	rec = srv.do(t, http.MethodPost, "/api/v1/auth/register", "", nil, gin.H{
		"email":    "NEW@example.com",
		"password": testPassword,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))

	rec = srv.do(t, http.MethodPost, "/api/v1/auth/login", "", nil, gin.H{
		"email":    "new@example.com",
		"password": "wrong-password-here",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "AUTHENTICATION_FAILED", errorCode(t, rec))

	rec = srv.do(t, http.MethodPost, "/api/v1/auth/login", "", nil, gin.H{
		"email":    "new@example.com",
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, decodeJSON(t, rec)["access"])
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	srv := newTestServer(t, RateLimits{})

	rec := srv.do(t, http.MethodPost, "/api/v1/auth/register", "", nil, gin.H{
		"email":    "weak@example.com",
		"password": "password",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
}

func TestMe(t *testing.T) {
	srv := newTestServer(t, RateLimits{})

	rec := srv.do(t, http.MethodGet, "/api/v1/auth/me", "", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	access, _ := srv.registerUser(t, "me@example.com")
	rec = srv.do(t, http.MethodGet, "/api/v1/auth/me", access, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "me@example.com", decodeJSON(t, rec)["email"])

	rec = srv.do(t, http.MethodGet, "/api/v1/auth/me", "garbage-token", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshRotationAndReplay(t *testing.T) {
	srv := newTestServer(t, RateLimits{})
	_, cookie := srv.registerUser(t, "rotate@example.com")

	rec := srv.do(t, http.MethodPost, "/api/v1/auth/refresh", "", []*http.Cookie{cookie}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotEmpty(t, decodeJSON(t, rec)["access"])
	rotated := refreshCookie(t, rec)
	require.NotEqual(t, cookie.Value, rotated.Value)

	// the consumed token must not rotate a second time
	rec = srv.do(t, http.MethodPost, "/api/v1/auth/refresh", "", []*http.Cookie{cookie}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "AUTHENTICATION_FAILED", errorCode(t, rec))

	// but its successor still works
	rec = srv.do(t, http.MethodPost, "/api/v1/auth/refresh", "", []*http.Cookie{rotated}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshWithoutCookie(t *testing.T) {
	srv := newTestServer(t, RateLimits{})
	rec := srv.do(t, http.MethodPost, "/api/v1/auth/refresh", "", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "AUTHENTICATION_FAILED", errorCode(t, rec))
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	srv := newTestServer(t, RateLimits{})
	access, cookie := srv.registerUser(t, "leave@example.com")

	rec := srv.do(t, http.MethodPost, "/api/v1/auth/logout", access, []*http.Cookie{cookie}, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	cleared := refreshCookie(t, rec)
	require.Empty(t, cleared.Value)

	rec = srv.do(t, http.MethodPost, "/api/v1/auth/refresh", "", []*http.Cookie{cookie}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPostLifecycle(t *testing.T) {
	srv := newTestServer(t, RateLimits{})
	access, _ := srv.registerUser(t, "writer@example.com")

	rec := srv.do(t, http.MethodPost, "/api/v1/posts", access, nil, gin.H{
		"title":    "Hello World",
		"content":  "This is the first post with enough content.",
		"category": "tech",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeJSON(t, rec)
	require.Equal(t, "hello-world", created["slug"])
	require.Equal(t, "draft", created["status"])
	require.Nil(t, created["published_at"])
	postID := created["id"].(string)

	rec = srv.do(t, http.MethodGet, "/api/v1/posts/"+postID, access, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "writer@example.com", decodeJSON(t, rec)["author_email"])

	rec = srv.do(t, http.MethodPatch, "/api/v1/posts/"+postID, access, nil, gin.H{
		"status": "published",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeJSON(t, rec)
	require.Equal(t, "published", updated["status"])
	require.NotNil(t, updated["published_at"])

	rec = srv.do(t, http.MethodGet, "/api/v1/posts?status=published", access, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listing := decodeJSON(t, rec)
	results := listing["results"].([]any)
	require.Len(t, results, 1)
	item := results[0].(map[string]any)
	require.Equal(t, "Hello World", item["title"])
	// list items carry the excerpt, never the full content
	_, hasContent := item["content"]
	require.False(t, hasContent)
	require.EqualValues(t, 1, listing["total"])

	rec = srv.do(t, http.MethodDelete, "/api/v1/posts/"+postID, access, nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/posts/"+postID, access, nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", errorCode(t, rec))
}

func TestPostMutationRequiresOwnership(t *testing.T) {
	srv := newTestServer(t, RateLimits{})
	owner, _ := srv.registerUser(t, "owner@example.com")
	other, _ := srv.registerUser(t, "other@example.com")

	rec := srv.do(t, http.MethodPost, "/api/v1/posts", owner, nil, gin.H{
		"title":   "Private Thoughts",
		"content": "Only the owner may change this post.",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	postID := decodeJSON(t, rec)["id"].(string)

	rec = srv.do(t, http.MethodPatch, "/api/v1/posts/"+postID, other, nil, gin.H{
		"title": "Hijacked",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "PERMISSION_DENIED", errorCode(t, rec))

	rec = srv.do(t, http.MethodDelete, "/api/v1/posts/"+postID, other, nil, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// reading someone else's post is fine
	rec = srv.do(t, http.MethodGet, "/api/v1/posts/"+postID, other, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPostValidationErrors(t *testing.T) {
	srv := newTestServer(t, RateLimits{})
	access, _ := srv.registerUser(t, "strict@example.com")

	rec := srv.do(t, http.MethodPost, "/api/v1/posts", access, nil, gin.H{
		"title":   "   ",
		"content": "Content that is definitely long enough.",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))

	rec = srv.do(t, http.MethodPost, "/api/v1/posts", access, nil, gin.H{
		"title":   "Ok",
		"content": "short",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/posts?status=bogus", access, nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/posts/not-a-uuid", access, nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostListPagination(t *testing.T) {
	srv := newTestServer(t, RateLimits{})
	access, _ := srv.registerUser(t, "pager@example.com")

	for i := 0; i < 12; i++ {
		rec := srv.do(t, http.MethodPost, "/api/v1/posts", access, nil, gin.H{
			"title":   fmt.Sprintf("Entry %02d", i),
			"content": "Padding content long enough to pass validation.",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := srv.do(t, http.MethodGet, "/api/v1/posts", access, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listing := decodeJSON(t, rec)
	require.Len(t, listing["results"].([]any), 10)
	require.EqualValues(t, 12, listing["total"])
	require.EqualValues(t, 2, listing["total_pages"])

	rec = srv.do(t, http.MethodGet, "/api/v1/posts?page=2", access, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listing = decodeJSON(t, rec)
	require.Len(t, listing["results"].([]any), 2)
	require.EqualValues(t, 2, listing["page"])
}

func TestLoginRateLimit(t *testing.T) {
	srv := newTestServer(t, RateLimits{LoginPerMinute: 2, RegisterPerHour: 1000})
	srv.registerUser(t, "limited@example.com")

	attempt := func() *httptest.ResponseRecorder {
		return srv.do(t, http.MethodPost, "/api/v1/auth/login", "", nil, gin.H{
			"email":    "limited@example.com",
			"password": "definitely-wrong-pass",
		})
	}

	require.Equal(t, http.StatusUnauthorized, attempt().Code)
	require.Equal(t, http.StatusUnauthorized, attempt().Code)

	rec := attempt()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "RATE_LIMITED", errorCode(t, rec))
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}
