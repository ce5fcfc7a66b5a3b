package api

import (
	"net/http"

	"github.com/example/ec-storefront/internal/domain/address"
)

type AddressRequest struct {
	Street    string `json:"street"`
	City      string `json:"city"`
	ZipCode   string `json:"zipCode"`
	IsDefault bool   `json:"isDefault"`
}

func (req AddressRequest) toAddress(id, userID int64) address.Address {
	return address.Address{
		ID:        id,
		UserID:    userID,
		Street:    req.Street,
		City:      req.City,
		ZipCode:   req.ZipCode,
		IsDefault: req.IsDefault,
	}
}

func (h *Handlers) ListAddresses(w http.ResponseWriter, r *http.Request) {
	list, err := h.Addresses.List(r.Context(), currentUser(r).ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handlers) CreateAddress(w http.ResponseWriter, r *http.Request) {
	var req AddressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}
	userID := currentUser(r).ID
	created, err := h.Addresses.Create(r.Context(), userID, req.toAddress(0, userID))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *Handlers) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	var req AddressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}
	userID := currentUser(r).ID
	updated, err := h.Addresses.Update(r.Context(), userID, req.toAddress(id, userID))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *Handlers) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if err := h.Addresses.Delete(r.Context(), currentUser(r).ID, id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetDefaultAddress answers with the refreshed list.
func (h *Handlers) SetDefaultAddress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	list, err := h.Addresses.SetDefault(r.Context(), currentUser(r).ID, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}
