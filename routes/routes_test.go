package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/snap-point/social-api/models"
	"github.com/snap-point/social-api/monitoring"
	"github.com/snap-point/social-api/realtime"
	"github.com/snap-point/social-api/repository"
	"github.com/snap-point/social-api/services"
	"github.com/snap-point/social-api/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	store  *repository.MemoryStore
	hub    *realtime.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	hub := realtime.NewHub()
	tokens := utils.NewTokenIssuer("test-secret", time.Hour, 24*time.Hour)
	svc := services.New(services.Dependencies{Store: store, Notifier: hub, Tokens: tokens})

	reg := prometheus.NewRegistry()
	require.NoError(t, monitoring.Register(reg))

	router := gin.New()
	SetupRoutes(router, Dependencies{
		Services: svc,
		Tokens:   tokens,
		Hub:      hub,
		Upgrader: realtime.NewUpgrader([]string{"*"}),
		Gatherer: reg,
	})
	return &testServer{t: t, router: router, store: store, hub: hub}
}

func (s *testServer) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

// register signs up username and returns its access and refresh tokens.
func (s *testServer) register(username string) services.AuthResult {
	s.t.Helper()
	w, env := s.do(http.MethodPost, "/api/register", "", services.RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret123",
		Name:     username,
	})
	require.Equal(s.t, http.StatusCreated, w.Code, env.Error)

	var result services.AuthResult
	require.NoError(s.t, json.Unmarshal(env.Data, &result))
	return result
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)
}

func TestRegisterLoginAndRefresh(t *testing.T) {
	s := newTestServer(t)
	registered := s.register("alice")

	w, env := s.do(http.MethodGet, "/api/me", registered.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[services.MeView](t, env)
	assert.Equal(t, "alice", me.User.Username)

	w, env = s.do(http.MethodPost, "/api/login", "", gin.H{"email": "alice@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials", env.Error)

	w, env = s.do(http.MethodPost, "/api/login", "", gin.H{"email": "ALICE@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	login := decode[services.AuthResult](t, env)

	w, env = s.do(http.MethodPost, "/api/refresh", "", gin.H{"refresh_token": login.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	rotated := decode[services.AuthResult](t, env)
	assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)

	w, _ = s.do(http.MethodPost, "/api/refresh", "", gin.H{"refresh_token": login.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodPost, "/api/logout", "", gin.H{"refresh_token": rotated.RefreshToken})
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(http.MethodPost, "/api/refresh", "", gin.H{"refresh_token": rotated.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGoogleLoginDisabled(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(http.MethodPost, "/api/auth/google", "", gin.H{"code": "abc"})
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestFollowUnfollowRoundTrip(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice")
	bob := s.register("bob")

	w, env := s.do(http.MethodPut, "/api/users/bob/follow", alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	assert.Equal(t, "User followed", env.Message)

	w, env = s.do(http.MethodPut, "/api/users/bob/follow", alice.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User already followed", env.Error)

	w, env = s.do(http.MethodGet, "/api/notifications", bob.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	feed := decode[[]models.Notification](t, env)
	require.Len(t, feed, 1)
	assert.Equal(t, "alice started following you", feed[0].Text)
	require.NotNil(t, feed[0].Sender)
	assert.Equal(t, "alice", feed[0].Sender.Username)

	w, env = s.do(http.MethodGet, "/api/users/bob/followers", alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	followers := decode[[]models.User](t, env)
	assert.Equal(t, []uint{alice.User.ID}, models.IDs(followers))

	w, env = s.do(http.MethodGet, "/api/users/bob", alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode[services.ProfileView](t, env)
	assert.EqualValues(t, 1, profile.FollowersCount)
	assert.True(t, profile.CanView)

	w, _ = s.do(http.MethodPut, "/api/users/bob/unfollow", alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(http.MethodPut, "/api/users/bob/unfollow", alice.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User already unfollowed", env.Error)

	_, env = s.do(http.MethodGet, "/api/notifications", bob.AccessToken, nil)
	assert.Empty(t, decode[[]models.Notification](t, env))
}

func TestRelationshipErrors(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice")
	s.register("bob")

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{name: "follow self", path: "/api/users/alice/follow", status: http.StatusBadRequest},
		{name: "block self", path: "/api/users/alice/block", status: http.StatusBadRequest},
		{name: "unknown target", path: "/api/users/nobody/follow", status: http.StatusNotFound},
		{name: "unblock without block", path: "/api/users/bob/unblock", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := s.do(http.MethodPut, tt.path, alice.AccessToken, nil)
			assert.Equal(t, tt.status, w.Code)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestBlockHidesContentAndForbidsFollow(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice")
	bob := s.register("bob")

	w, _ := s.do(http.MethodPost, "/api/posts", bob.AccessToken, services.CreatePostInput{Content: "hello"})
	require.Equal(t, http.StatusCreated, w.Code)
	w, _ = s.do(http.MethodPut, "/api/users/bob/follow", alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env := s.do(http.MethodPut, "/api/users/alice/block", bob.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code, env.Error)

	w, env = s.do(http.MethodGet, "/api/users/bob", alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode[services.ProfileView](t, env)
	assert.False(t, profile.CanView)
	assert.Empty(t, profile.Posts)
	assert.Empty(t, profile.User.BlockedUsers)
	assert.EqualValues(t, 0, profile.FollowersCount)

	w, env = s.do(http.MethodPut, "/api/users/bob/follow", alice.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "You can not follow this user", env.Error)

	_, env = s.do(http.MethodGet, "/api/notifications", bob.AccessToken, nil)
	assert.Empty(t, decode[[]models.Notification](t, env))

	w, env = s.do(http.MethodGet, "/api/users?q=bob", alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]models.User](t, env))

	w, _ = s.do(http.MethodPut, "/api/users/alice/unblock", bob.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(http.MethodGet, "/api/users?q=bo", alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []uint{bob.User.ID}, models.IDs(decode[[]models.User](t, env)))
}

func TestPostsAndComments(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice")
	bob := s.register("bob")

	w, env := s.do(http.MethodPost, "/api/posts", alice.AccessToken, services.CreatePostInput{Content: "first"})
	require.Equal(t, http.StatusCreated, w.Code, env.Error)
	post := decode[models.Post](t, env)

	w, env = s.do(http.MethodPost, "/api/posts/"+jsonID(post.ID)+"/comments", bob.AccessToken, gin.H{"content": "nice"})
	require.Equal(t, http.StatusCreated, w.Code, env.Error)

	w, _ = s.do(http.MethodGet, "/api/posts/abc", bob.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodPut, "/api/users/bob/block", alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(http.MethodGet, "/api/posts/"+jsonID(post.ID), bob.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Post not found", env.Error)
}

func TestDeleteAccount(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice")
	bob := s.register("bob")

	w, _ := s.do(http.MethodPut, "/api/users/bob/follow", alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env := s.do(http.MethodDelete, "/api/users/bob", alice.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "User can only delete their own account", env.Error)

	w, env = s.do(http.MethodDelete, "/api/users/bob", bob.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code, env.Error)

	w, _ = s.do(http.MethodGet, "/api/users/bob", alice.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = s.do(http.MethodGet, "/api/me", alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[services.MeView](t, env).User.Followings)

	w, _ = s.do(http.MethodGet, "/api/users/id/"+jsonID(bob.User.ID), alice.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateProfileAndPassword(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice")
	s.register("bob")

	w, env := s.do(http.MethodPut, "/api/users/alice", alice.AccessToken, services.UpdateProfileInput{Username: "bob"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Username is already in use", env.Error)

	w, env = s.do(http.MethodPut, "/api/users/alice", alice.AccessToken, services.UpdateProfileInput{Bio: "hi there"})
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	assert.Equal(t, "hi there", decode[models.User](t, env).Bio)

	w, _ = s.do(http.MethodPut, "/api/users/bob", alice.AccessToken, services.UpdateProfileInput{Bio: "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env = s.do(http.MethodPut, "/api/users/alice/password", alice.AccessToken, gin.H{
		"oldPassword":     "secret123",
		"newPassword":     "newsecret",
		"confirmPassword": "newsecret",
	})
	require.Equal(t, http.StatusOK, w.Code, env.Error)

	w, _ = s.do(http.MethodPost, "/api/login", "", gin.H{"email": "alice@example.com", "password": "newsecret"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAvatarUploadWithoutStorage(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice")

	w, env := s.do(http.MethodPost, "/api/uploads/avatar", alice.AccessToken, gin.H{
		"fileName": "me.png", "contentType": "image/png", "fileSize": 1024,
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Uploads are not configured", env.Error)

	w, _ = s.do(http.MethodPost, "/api/uploads/avatar", alice.AccessToken, gin.H{
		"fileName": "me.gif", "contentType": "image/gif", "fileSize": 1024,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func jsonID(id uint) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}
