package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/backend"
	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/session"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
	GuestCookie        = "guest_id"

	guestCookieMaxAge = 30 * 24 * time.Hour

	// LoginPath is where clients are sent when a request needs a signed-in user.
	LoginPath = "/login"
)

// respondError writes a JSON error response
func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// RespondLoginRequired writes 401 with the login redirect target.
func RespondLoginRequired(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "redirect": LoginPath})
}

// ExtractToken extracts JWT token from cookie or Authorization header
func ExtractToken(r *http.Request) string {
	// Try cookie first (for browser)
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		return cookie.Value
	}
	// Fall back to Authorization header (for API clients)
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// SessionLoader resolves session ids carried by access tokens.
type SessionLoader interface {
	Get(ctx context.Context, id string) (session.Session, error)
}

type contextKey string

const (
	sessionContextKey contextKey = "session"
	ownerContextKey   contextKey = "owner"
	guestContextKey   contextKey = "guest"
)

// Session resolves who is making the request. Every request gets a guest id,
// issued as a cookie on first sight; a valid access token whose session is
// still live additionally makes the request a signed-in user's and attaches
// the backend token to the context.
func Session(jwtService *auth.JWTService, sessions SessionLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			guestID := ensureGuestID(w, r)
			ctx := context.WithValue(r.Context(), guestContextKey, guestID)
			owner := cart.GuestOwner(guestID)

			if tokenString := ExtractToken(r); tokenString != "" {
				sess, err := loadSession(ctx, jwtService, sessions, tokenString)
				switch {
				case err == nil:
					owner = cart.UserOwner(sess.User.ID)
					ctx = context.WithValue(ctx, sessionContextKey, sess)
					ctx = backend.WithToken(ctx, sess.BackendToken())
				case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken),
					errors.Is(err, session.ErrSessionNotFound):
					// stale credentials: continue as the guest
				default:
					log.Printf("[API] Session lookup failed: %v", err)
					respondError(w, "session store unavailable", http.StatusServiceUnavailable)
					return
				}
			}

			ctx = context.WithValue(ctx, ownerContextKey, owner)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func loadSession(ctx context.Context, jwtService *auth.JWTService, sessions SessionLoader, token string) (session.Session, error) {
	claims, err := jwtService.ValidateAccessToken(token)
	if err != nil {
		return session.Session{}, err
	}
	sess, err := sessions.Get(ctx, claims.SessionID)
	if err != nil {
		return session.Session{}, err
	}
	if sess.User.ID != claims.UserID {
		return session.Session{}, auth.ErrInvalidToken
	}
	return sess, nil
}

func ensureGuestID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(GuestCookie); err == nil {
		if id, err := uuid.Parse(cookie.Value); err == nil {
			return id.String()
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     GuestCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(guestCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// RequireUser rejects requests without a signed-in session.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SessionFrom(r.Context()); !ok {
			RespondLoginRequired(w, "login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionFrom returns the signed-in session, if any.
func SessionFrom(ctx context.Context) (session.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey).(session.Session)
	return sess, ok
}

// OwnerFrom returns whose cart the request operates on.
func OwnerFrom(ctx context.Context) (cart.Owner, bool) {
	owner, ok := ctx.Value(ownerContextKey).(cart.Owner)
	return owner, ok
}

// GuestIDFrom returns the browser's guest id, set even for signed-in users.
func GuestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(guestContextKey).(string)
	return id
}

// WithSession is used by handlers that establish a session mid-request.
func WithSession(ctx context.Context, sess session.Session) context.Context {
	ctx = context.WithValue(ctx, sessionContextKey, sess)
	ctx = context.WithValue(ctx, ownerContextKey, cart.UserOwner(sess.User.ID))
	return backend.WithToken(ctx, sess.BackendToken())
}
