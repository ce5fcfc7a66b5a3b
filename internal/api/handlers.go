package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/example/ec-storefront/internal/addressbook"
	"github.com/example/ec-storefront/internal/api/middleware"
	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/backend"
	"github.com/example/ec-storefront/internal/cartsync"
	"github.com/example/ec-storefront/internal/catalog"
	"github.com/example/ec-storefront/internal/checkout"
	"github.com/example/ec-storefront/internal/domain/address"
	"github.com/example/ec-storefront/internal/domain/cart"
	domaincatalog "github.com/example/ec-storefront/internal/domain/catalog"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/events"
	"github.com/example/ec-storefront/internal/session"
)

const maxRequestBody = 1 << 20

var errBadRequest = errors.New("bad request")

// Accounts is the backend's user surface.
type Accounts interface {
	Login(ctx context.Context, email, password string) (backend.User, error)
	Register(ctx context.Context, req backend.RegisterRequest) (backend.User, error)
	UpdateUser(ctx context.Context, id int64, p backend.ProfileUpdate) (backend.User, error)
}

type Orders interface {
	ListOrders(ctx context.Context, userID int64) ([]order.Order, error)
	GetOrder(ctx context.Context, id int64) (order.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status order.Status) (order.Order, error)
}

type Sessions interface {
	Create(ctx context.Context, user backend.User) (session.Session, error)
	Get(ctx context.Context, id string) (session.Session, error)
	UpdateUser(ctx context.Context, id string, user backend.User) (session.Session, error)
	Delete(ctx context.Context, id string) error
}

type Subscriber interface {
	Subscribe(fn events.Handler) (unsubscribe func())
}

// Deps are the services the handlers call.
type Deps struct {
	JWT       *auth.JWTService
	Accounts  Accounts
	Sessions  Sessions
	Carts     *cartsync.Synchronizer
	Catalog   *catalog.Service
	Checkout  *checkout.Orchestrator
	Orders    Orders
	Addresses *addressbook.Service
	Events    Subscriber
	// Health, when set, is consulted by /healthz.
	Health func(ctx context.Context) error
	// Closing ends open event streams when closed.
	Closing <-chan struct{}
}

type Handlers struct {
	Deps
}

func NewHandlers(d Deps) *Handlers {
	return &Handlers{Deps: d}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps a service error onto a status code.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		backendErr  *backend.Error
		invalidLine *checkout.InvalidLineError
		orderFailed *checkout.OrderFailedError
	)

	switch {
	case errors.Is(err, checkout.ErrLoginRequired):
		middleware.RespondLoginRequired(w, err.Error())

	case errors.Is(err, errBadRequest),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidProduct),
		errors.Is(err, cart.ErrInsufficientStock),
		errors.Is(err, cart.ErrNoOwner),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrNoAddress),
		errors.Is(err, order.ErrUnknownPaymentMethod),
		errors.Is(err, address.ErrStreetRequired),
		errors.Is(err, address.ErrCityRequired),
		errors.Is(err, address.ErrZipCodeRequired),
		errors.As(err, &invalidLine):
		respondJSONError(w, err.Error(), http.StatusBadRequest)

	case errors.Is(err, domaincatalog.ErrProductNotFound),
		errors.Is(err, cart.ErrItemNotInCart),
		errors.Is(err, address.ErrAddressNotFound),
		errors.Is(err, order.ErrOrderNotFound):
		respondJSONError(w, err.Error(), http.StatusNotFound)

	case errors.Is(err, checkout.ErrCheckoutInProgress),
		errors.Is(err, order.ErrNotCancellable),
		errors.Is(err, address.ErrMultipleDefaults):
		respondJSONError(w, err.Error(), http.StatusConflict)

	case errors.As(err, &orderFailed):
		respondJSONError(w, orderFailed.Message, http.StatusBadGateway)

	case backend.IsNotFound(err):
		respondJSONError(w, backend.UserMessage(err, "not found"), http.StatusNotFound)

	case errors.As(err, &backendErr):
		log.Printf("[API] Backend failure on %s %s: %v", r.Method, r.URL.Path, err)
		respondJSONError(w, backend.UserMessage(err, "backend unavailable"), http.StatusBadGateway)

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		respondJSONError(w, "request timed out", http.StatusServiceUnavailable)

	default:
		log.Printf("[API] Error on %s %s: %v", r.Method, r.URL.Path, err)
		respondJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}

// decodeJSON reads a JSON request body into dest.
func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is required", errBadRequest)
		}
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}

// pathID parses a positive integer path value.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, raw)
	}
	return id, nil
}

func ownerOf(r *http.Request) (cart.Owner, error) {
	owner, ok := middleware.OwnerFrom(r.Context())
	if !ok || !owner.Valid() {
		return cart.Owner{}, cart.ErrNoOwner
	}
	return owner, nil
}

// currentUser is only called behind RequireUser.
func currentUser(r *http.Request) backend.User {
	sess, _ := middleware.SessionFrom(r.Context())
	return sess.User
}

func customerOf(r *http.Request) *checkout.Customer {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		return nil
	}
	return &checkout.Customer{
		ID:    sess.User.ID,
		Email: sess.User.Email,
		Name:  sess.User.DisplayName(),
	}
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health(r.Context()); err != nil {
			log.Printf("[API] Health check failed: %v", err)
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
