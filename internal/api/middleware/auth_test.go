package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/backend"
	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/session"
)

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing-purposes", 15*time.Minute, 7*24*time.Hour)
}

type fakeSessions struct {
	sessions map[string]session.Session
	err      error
}

func (f *fakeSessions) Get(_ context.Context, id string) (session.Session, error) {
	if f.err != nil {
		return session.Session{}, f.err
	}
	sess, ok := f.sessions[id]
	if !ok {
		return session.Session{}, session.ErrSessionNotFound
	}
	return sess, nil
}

func newSignedIn(t *testing.T, jwtService *auth.JWTService) (*fakeSessions, string) {
	t.Helper()
	sess := session.Session{
		ID:        "sess-1",
		User:      backend.User{ID: 42, Email: "ann@example.com", Token: "backend-token"},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	token, _, err := jwtService.GenerateAccessToken(sess.ID, sess.User.ID, sess.User.Email)
	require.NoError(t, err)
	return &fakeSessions{sessions: map[string]session.Session{sess.ID: sess}}, token
}

type captured struct {
	owner   cart.Owner
	guestID string
	sess    session.Session
	signed  bool
	called  bool
}

func capture(c *captured) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.called = true
		c.owner, _ = OwnerFrom(r.Context())
		c.guestID = GuestIDFrom(r.Context())
		c.sess, c.signed = SessionFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ============================================
// Guest identity
// ============================================

func TestSession_IssuesGuestCookie(t *testing.T) {
	var c captured
	handler := Session(newTestJWTService(), &fakeSessions{})(capture(&c))

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.True(t, c.called)
	cookie := findCookie(rec, GuestCookie)
	require.NotNil(t, cookie)
	_, err := uuid.Parse(cookie.Value)
	assert.NoError(t, err)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)

	assert.Equal(t, cart.GuestOwner(cookie.Value), c.owner)
	assert.Equal(t, cookie.Value, c.guestID)
	assert.False(t, c.signed)
}

func TestSession_ReusesGuestCookie(t *testing.T) {
	var c captured
	handler := Session(newTestJWTService(), &fakeSessions{})(capture(&c))

	guestID := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.AddCookie(&http.Cookie{Name: GuestCookie, Value: guestID})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Nil(t, findCookie(rec, GuestCookie))
	assert.Equal(t, cart.GuestOwner(guestID), c.owner)
}

func TestSession_ReplacesMalformedGuestCookie(t *testing.T) {
	var c captured
	handler := Session(newTestJWTService(), &fakeSessions{})(capture(&c))

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.AddCookie(&http.Cookie{Name: GuestCookie, Value: "../../etc"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	cookie := findCookie(rec, GuestCookie)
	require.NotNil(t, cookie)
	assert.NotEqual(t, "../../etc", cookie.Value)
	assert.Equal(t, cookie.Value, c.guestID)
}

// ============================================
// Signed-in sessions
// ============================================

func TestSession_ValidToken_Cookie(t *testing.T) {
	jwtService := newTestJWTService()
	sessions, token := newSignedIn(t, jwtService)

	var tokenSeen string
	handler := Session(jwtService, sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, _ := OwnerFrom(r.Context())
		assert.Equal(t, cart.UserOwner(42), owner)
		sess, ok := SessionFrom(r.Context())
		require.True(t, ok)
		tokenSeen = sess.BackendToken()
		assert.NotEmpty(t, GuestIDFrom(r.Context()))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "backend-token", tokenSeen)
}

func TestSession_ValidToken_Header(t *testing.T) {
	jwtService := newTestJWTService()
	sessions, token := newSignedIn(t, jwtService)

	var c captured
	handler := Session(jwtService, sessions)(capture(&c))

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, c.signed)
	assert.Equal(t, int64(42), c.sess.User.ID)
}

func TestSession_FallsBackToGuest(t *testing.T) {
	jwtService := newTestJWTService()
	sessions, _ := newSignedIn(t, jwtService)
	otherUserToken, _, err := jwtService.GenerateAccessToken("sess-1", 99, "eve@example.com")
	require.NoError(t, err)
	missingSessionToken, _, err := jwtService.GenerateAccessToken("sess-gone", 42, "ann@example.com")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage token", "not-a-jwt"},
		{"session deleted", missingSessionToken},
		{"session belongs to another user", otherUserToken},
		{"wrong secret", func() string {
			other := auth.NewJWTService("another-secret-key-for-testing-only", time.Minute, time.Hour)
			tok, _, _ := other.GenerateAccessToken("sess-1", 42, "ann@example.com")
			return tok
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c captured
			handler := Session(jwtService, sessions)(capture(&c))

			req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
			req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: tt.token})
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.False(t, c.signed)
			assert.False(t, c.owner.Authenticated())
		})
	}
}

func TestSession_StoreFailure(t *testing.T) {
	jwtService := newTestJWTService()
	_, token := newSignedIn(t, jwtService)
	sessions := &fakeSessions{err: errors.New("redis: connection refused")}

	var c captured
	handler := Session(jwtService, sessions)(capture(&c))

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, c.called)
}

// ============================================
// RequireUser
// ============================================

func TestRequireUser(t *testing.T) {
	jwtService := newTestJWTService()
	sessions, token := newSignedIn(t, jwtService)

	var c captured
	handler := Session(jwtService, sessions)(RequireUser(capture(&c)))

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, c.called)
}

func TestRequireUser_Guest(t *testing.T) {
	var c captured
	handler := Session(newTestJWTService(), &fakeSessions{})(RequireUser(capture(&c)))

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, c.called)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "login required", body["error"])
	assert.Equal(t, "/login", body["redirect"])
}

func TestWithSession(t *testing.T) {
	sess := session.Session{ID: "s", User: backend.User{ID: 5, Token: "tok"}}
	ctx := WithSession(context.Background(), sess)

	owner, ok := OwnerFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, cart.UserOwner(5), owner)

	got, ok := SessionFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "s", got.ID)
}

// ============================================
// ExtractToken
// ============================================

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		expected string
	}{
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "c"}) }, "c"},
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer h") }, "h"},
		{"cookie wins", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "c"})
			r.Header.Set("Authorization", "Bearer h")
		}, "c"},
		{"basic auth ignored", func(r *http.Request) { r.Header.Set("Authorization", "Basic xyz") }, ""},
		{"nothing", func(r *http.Request) {}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			assert.Equal(t, tt.expected, ExtractToken(req))
		})
	}
}

// ============================================
// Logging / Recover
// ============================================

func TestLogging_RecordsStatus(t *testing.T) {
	var inner *statusRecorder
	handler := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner, _ = w.(*statusRecorder)
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	require.NotNil(t, inner)
	assert.Equal(t, http.StatusTeapot, inner.status)
}

func TestRecover(t *testing.T) {
	handler := Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
