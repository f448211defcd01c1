package account

import (
	"context"
	"net/http"
	"strings"

	"github.com/mytheresa/storefront/app/auth"
	"github.com/mytheresa/storefront/app/httpx"
	"github.com/mytheresa/storefront/models"
)

type AddressStore interface {
	ListAddresses(ctx context.Context, userID uint) ([]models.UserAddress, error)
	GetAddress(ctx context.Context, userID, id uint) (*models.UserAddress, error)
	SaveAddress(ctx context.Context, address *models.UserAddress) error
	DeleteAddress(ctx context.Context, userID, id uint) error
}

// AddressHandler manages the signed-in user's address book.
type AddressHandler struct {
	repo AddressStore
}

func NewAddressHandler(r AddressStore) *AddressHandler {
	return &AddressHandler{repo: r}
}

type addressRequest struct {
	Label      string `json:"label" validate:"max=50"`
	Name       string `json:"name" validate:"required,max=100"`
	Phone      string `json:"phone" validate:"max=30"`
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2" validate:"max=200"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=100"`
	IsDefault  bool   `json:"is_default"`
}

func (in *addressRequest) apply(a *models.UserAddress) {
	a.Label = strings.TrimSpace(in.Label)
	a.Name = strings.TrimSpace(in.Name)
	a.Phone = strings.TrimSpace(in.Phone)
	a.Line1 = strings.TrimSpace(in.Line1)
	a.Line2 = strings.TrimSpace(in.Line2)
	a.City = strings.TrimSpace(in.City)
	a.State = strings.TrimSpace(in.State)
	a.PostalCode = strings.TrimSpace(in.PostalCode)
	a.Country = strings.TrimSpace(in.Country)
	a.IsDefault = in.IsDefault || a.IsDefault
}

func (h *AddressHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())
	addresses, err := h.repo.ListAddresses(r.Context(), user.ID)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "failed to fetch addresses")
		return
	}
	if addresses == nil {
		addresses = []models.UserAddress{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"addresses": addresses})
}

func (h *AddressHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())
	var input addressRequest
	if !httpx.Bind(w, r, &input) {
		return
	}
	address := &models.UserAddress{UserID: user.ID}
	input.apply(address)
	if err := h.repo.SaveAddress(r.Context(), address); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to save address")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Address saved successfully",
		"address": address,
	})
}

// HandleUpdate edits an address. A default address stays default; clearing
// the flag is done by marking another address default.
func (h *AddressHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	var input addressRequest
	if !httpx.Bind(w, r, &input) {
		return
	}
	address, err := h.repo.GetAddress(r.Context(), user.ID, id)
	if err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to update address")
		return
	}
	input.apply(address)
	if err := h.repo.SaveAddress(r.Context(), address); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to update address")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Address updated successfully",
		"address": address,
	})
}

func (h *AddressHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())
	id, ok := httpx.PathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.repo.DeleteAddress(r.Context(), user.ID, id); err != nil {
		httpx.WriteDomainError(w, r, err, "Failed to delete address")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Address deleted successfully",
	})
}
