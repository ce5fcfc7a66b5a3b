package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/example/ec-storefront/internal/checkout"
	"github.com/example/ec-storefront/internal/domain/order"
)

func (h *Handlers) CheckoutPreview(w http.ResponseWriter, r *http.Request) {
	preview, err := h.Checkout.Preview(r.Context(), customerOf(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, preview)
}

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	result, err := h.Checkout.PlaceOrder(r.Context(), customerOf(r), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.ListOrders(r.Context(), currentUser(r).ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// GetOrder hides other users' orders behind a 404.
func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	o, err := h.Orders.GetOrder(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	owned, err := h.ownsOrder(r, o)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if !owned {
		respondServiceError(w, r, order.ErrOrderNotFound)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// CancelOrder cancels one of the user's orders while it has not shipped.
func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	o, err := h.Orders.GetOrder(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	owned, err := h.ownsOrder(r, o)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if !owned {
		respondServiceError(w, r, order.ErrOrderNotFound)
		return
	}
	if !o.Status.Cancellable() {
		respondServiceError(w, r, fmt.Errorf("%w: order is %s", order.ErrNotCancellable, o.Status))
		return
	}

	cancelled, err := h.Orders.UpdateOrderStatus(r.Context(), id, order.StatusCancelled)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if cancelled.UserID == 0 {
		cancelled.UserID = currentUser(r).ID
	}
	log.Printf("[API] Cancelled order %d", id)
	respondJSON(w, http.StatusOK, cancelled)
}

// ownsOrder reports whether o belongs to the signed-in user. When the backend
// leaves the owner out, the user's own order list decides.
func (h *Handlers) ownsOrder(r *http.Request, o order.Order) (bool, error) {
	userID := currentUser(r).ID
	if o.UserID != 0 {
		return o.UserID == userID, nil
	}
	orders, err := h.Orders.ListOrders(r.Context(), userID)
	if err != nil {
		return false, err
	}
	for _, mine := range orders {
		if mine.ID == o.ID {
			return true, nil
		}
	}
	return false, nil
}
