package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/example/ec-storefront/internal/events"
)

const (
	streamHeartbeat = 25 * time.Second
	streamBuffer    = 8
)

// AddItemRequest adds quantity units of a product. An omitted quantity
// means one.
type AddItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  *int  `json:"quantity"`
}

type UpdateItemRequest struct {
	Quantity int `json:"quantity"`
}

type CountResponse struct {
	Count int `json:"count"`
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerOf(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	view, err := h.Carts.Load(r.Context(), owner)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// CartCount serves the header badge from the cached cart when it is loaded.
func (h *Handlers) CartCount(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerOf(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	view, err := h.Carts.Get(r.Context(), owner)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CountResponse{Count: view.Totals.ItemCount})
}

func (h *Handlers) AddCartItem(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerOf(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	var req AddItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	view, err := h.Carts.Add(r.Context(), owner, req.ProductID, qty)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerOf(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	productID, err := pathID(r, "productId")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	var req UpdateItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}

	view, err := h.Carts.UpdateQuantity(r.Context(), owner, productID, req.Quantity)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handlers) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerOf(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	productID, err := pathID(r, "productId")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	view, err := h.Carts.Remove(r.Context(), owner, productID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerOf(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	view, err := h.Carts.Clear(r.Context(), owner)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// CartStream pushes the owner's item count as server-sent events: once on
// connect and again after every change to that owner's cart.
func (h *Handlers) CartStream(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerOf(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	rc := http.NewResponseController(w)

	updates := make(chan events.CartChanged, streamBuffer)
	key := owner.Key()
	unsubscribe := h.Events.Subscribe(func(e events.Event) {
		changed, ok := e.(events.CartChanged)
		if !ok || changed.OwnerKey != key {
			return
		}
		select {
		case updates <- changed:
		default:
			// slow reader: the next event carries the latest count anyway
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	initial := h.Carts.Snapshot(owner).Totals.ItemCount
	if view, err := h.Carts.Get(r.Context(), owner); err == nil {
		initial = view.Totals.ItemCount
	}
	if err := writeCountEvent(w, rc, initial); err != nil {
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.Closing:
			return
		case changed := <-updates:
			if err := writeCountEvent(w, rc, changed.ItemCount); err != nil {
				log.Printf("[API] Cart stream for %s closed: %v", key, err)
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeCountEvent(w http.ResponseWriter, rc *http.ResponseController, count int) error {
	data, err := json.Marshal(CountResponse{Count: count})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: count\ndata: %s\n\n", data); err != nil {
		return err
	}
	return rc.Flush()
}
