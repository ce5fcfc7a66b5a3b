package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/example/ec-storefront/internal/api/middleware"
	"github.com/example/ec-storefront/internal/backend"
	"github.com/example/ec-storefront/internal/cartsync"
	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/session"
)

const refreshCookiePath = "/api/auth/refresh"

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileRequest is the body of a profile update.
type ProfileRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

// UserResponse is the user as shown to the browser; the backend token stays
// in the session.
type UserResponse struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Phone       string `json:"phone,omitempty"`
	DisplayName string `json:"displayName"`
}

func toUserResponse(u backend.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Phone:       u.Phone,
		DisplayName: u.DisplayName(),
	}
}

// LoginResponse reports the signed-in user and how the guest cart was merged.
type LoginResponse struct {
	User       UserResponse         `json:"user"`
	Cart       cartsync.View        `json:"cart"`
	Merge      cartsync.MergeReport `json:"merge"`
	MergeError string               `json:"mergeError,omitempty"`
	Message    string               `json:"message"`
}

// Register handles user registration
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" || strings.TrimSpace(req.FirstName) == "" {
		respondJSONError(w, "first name, email and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.Accounts.Register(r.Context(), backend.RegisterRequest{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	log.Printf("[API] Registered user %d", user.ID)
	respondJSON(w, http.StatusCreated, map[string]any{
		"user":    toUserResponse(user),
		"message": "Registration successful",
	})
}

// Login signs the user in against the backend, starts a session and folds the
// browser's guest cart into the user's cart.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		respondJSONError(w, "email and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.Accounts.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, backend.ErrInvalidCredentials) || backend.IsUnauthorized(err) {
		respondJSONError(w, backend.UserMessage(err, "Invalid email or password"), http.StatusUnauthorized)
		return
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	sess, err := h.Sessions.Create(r.Context(), user)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if err := h.setAuthCookies(w, r, sess); err != nil {
		respondServiceError(w, r, err)
		return
	}

	ctx := middleware.WithSession(r.Context(), sess)
	resp := LoginResponse{User: toUserResponse(user), Message: "Login successful"}

	report, view, err := h.mergeGuestCart(ctx, middleware.GuestIDFrom(r.Context()), user.ID)
	if err != nil {
		log.Printf("[API] Guest cart merge for user %d failed: %v", user.ID, err)
		resp.MergeError = backend.UserMessage(err, "Your guest cart could not be merged")
		view = h.Carts.Snapshot(cart.UserOwner(user.ID))
	}
	resp.Merge = report
	resp.Cart = view

	respondJSON(w, http.StatusOK, resp)
}

func (h *Handlers) mergeGuestCart(ctx context.Context, guestID string, userID int64) (cartsync.MergeReport, cartsync.View, error) {
	if guestID == "" {
		view, err := h.Carts.Get(ctx, cart.UserOwner(userID))
		return cartsync.MergeReport{}, view, err
	}
	return h.Carts.MergeGuestIntoUser(ctx, guestID, userID)
}

// Logout ends the session and discards the browser's guest cart.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if sess, ok := middleware.SessionFrom(ctx); ok {
		if err := h.Sessions.Delete(ctx, sess.ID); err != nil {
			log.Printf("[API] Failed to delete session %s: %v", sess.ID, err)
		}
		h.Carts.Forget(cart.UserOwner(sess.User.ID))
	}

	if guestID := middleware.GuestIDFrom(ctx); guestID != "" {
		guest := cart.GuestOwner(guestID)
		if _, err := h.Carts.Clear(ctx, guest); err != nil {
			log.Printf("[API] Failed to clear guest cart %s: %v", guestID, err)
		}
		h.Carts.Forget(guest)
	}

	clearAuthCookies(w)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

// Refresh issues a new access token for a live session.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshCookie, err := r.Cookie(middleware.RefreshTokenCookie)
	if err != nil {
		middleware.RespondLoginRequired(w, "No refresh token")
		return
	}

	sessionID, err := h.JWT.ValidateRefreshToken(refreshCookie.Value)
	if err != nil {
		clearAuthCookies(w)
		middleware.RespondLoginRequired(w, "Invalid refresh token")
		return
	}

	sess, err := h.Sessions.Get(r.Context(), sessionID)
	if errors.Is(err, session.ErrSessionNotFound) {
		clearAuthCookies(w)
		middleware.RespondLoginRequired(w, "Session expired")
		return
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if err := h.setAccessCookie(w, r, sess); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Token refreshed"})
}

// Me returns the current authenticated user's information
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, toUserResponse(currentUser(r)))
}

// UpdateProfile saves the user's name and phone and refreshes the session copy.
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	if req.FirstName == "" {
		respondJSONError(w, "first name is required", http.StatusBadRequest)
		return
	}

	sess, _ := middleware.SessionFrom(r.Context())
	updated, err := h.Accounts.UpdateUser(r.Context(), sess.User.ID, backend.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  strings.TrimSpace(req.LastName),
		Phone:     strings.TrimSpace(req.Phone),
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	updated.ID = sess.User.ID
	if updated.Email == "" {
		updated.Email = sess.User.Email
	}

	sess, err = h.Sessions.UpdateUser(r.Context(), sess.ID, updated)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	log.Printf("[API] Updated profile of user %d", sess.User.ID)
	respondJSON(w, http.StatusOK, toUserResponse(sess.User))
}

func (h *Handlers) setAccessCookie(w http.ResponseWriter, r *http.Request, sess session.Session) error {
	accessToken, accessExpiry, err := h.JWT.GenerateAccessToken(sess.ID, sess.User.ID, sess.User.Email)
	if err != nil {
		return fmt.Errorf("failed to sign access token: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    accessToken,
		Path:     "/",
		Expires:  accessExpiry,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

func (h *Handlers) setAuthCookies(w http.ResponseWriter, r *http.Request, sess session.Session) error {
	if err := h.setAccessCookie(w, r, sess); err != nil {
		return err
	}

	refreshToken, refreshExpiry, err := h.JWT.GenerateRefreshToken(sess.ID)
	if err != nil {
		return fmt.Errorf("failed to sign refresh token: %w", err)
	}
	if refreshExpiry.After(sess.ExpiresAt) {
		refreshExpiry = sess.ExpiresAt
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.RefreshTokenCookie,
		Value:    refreshToken,
		Path:     refreshCookiePath,
		Expires:  refreshExpiry,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

func clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.RefreshTokenCookie,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
	})
}
