package http

import (
	"context"
	"net/http"

	"github.com/fjod/go_cart/pos-service/internal/domain"
	"github.com/fjod/go_cart/pos-service/internal/sale"
	"github.com/go-chi/chi/v5"
)

type AddItemRequestDTO struct {
	UnitID   string `json:"unit_id"`
	Barcode  string `json:"barcode"`
	Quantity *int64 `json:"quantity"`
}

type ChangeQuantityRequestDTO struct {
	Delta int64 `json:"delta"`
}

type DiscountRequestDTO struct {
	Amount int64 `json:"amount"`
}

type CustomerRequestDTO struct {
	CustomerID string `json:"customer_id"`
}

type StoreRequestDTO struct {
	StoreID string `json:"store_id"`
}

type ParkRequestDTO struct {
	Order domain.OrderRef `json:"order"`
}

type PayRequestDTO struct {
	Order   domain.OrderRef `json:"order"`
	Payment domain.Payment  `json:"payment"`
}

type RegisterResponseDTO struct {
	RegisterID  string           `json:"register_id"`
	State       domain.SaleState `json:"state"`
	ResumedFrom string           `json:"resumed_from,omitempty"`
	Cart        domain.Cart      `json:"cart"`
}

type SaleResponseDTO struct {
	Sale       *domain.Sale        `json:"sale"`
	Shortfalls []sale.Shortfall    `json:"shortfalls,omitempty"`
	Register   RegisterResponseDTO `json:"register"`
}

func registerView(registerID string, ctrl *sale.Controller) RegisterResponseDTO {
	return RegisterResponseDTO{
		RegisterID:  registerID,
		State:       ctrl.State(),
		ResumedFrom: ctrl.ResumedFrom(),
		Cart:        ctrl.Cart(),
	}
}

// withRegister runs fn under the register's session lock and answers with
// the resulting register view.
func (a *API) withRegister(w http.ResponseWriter, r *http.Request, status int, fn func(ctrl *sale.Controller) error) {
	registerID := chi.URLParam(r, "register_id")
	var view RegisterResponseDTO
	err := a.registry.With(registerID, func(ctrl *sale.Controller) error {
		if err := fn(ctrl); err != nil {
			return err
		}
		view = registerView(registerID, ctrl)
		return nil
	})
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	respondJSON(w, status, view)
}

func (a *API) GetCart(w http.ResponseWriter, r *http.Request) {
	a.withRegister(w, r, http.StatusOK, func(*sale.Controller) error { return nil })
}

func (a *API) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if err := decodeBody(r, &req, false); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if (req.UnitID == "") == (req.Barcode == "") {
		respondError(w, http.StatusBadRequest, "invalid_request", "exactly one of unit_id or barcode is required")
		return
	}
	qty := int64(1)
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	a.withRegister(w, r, http.StatusCreated, func(ctrl *sale.Controller) error {
		if req.Barcode != "" {
			return ctrl.AddByBarcode(req.Barcode, qty)
		}
		return ctrl.AddByID(req.UnitID, qty)
	})
}

func (a *API) ChangeQuantity(w http.ResponseWriter, r *http.Request) {
	var req ChangeQuantityRequestDTO
	if err := decodeBody(r, &req, false); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	unitID := chi.URLParam(r, "unit_id")

	a.withRegister(w, r, http.StatusOK, func(ctrl *sale.Controller) error {
		return ctrl.ChangeQuantity(unitID, req.Delta)
	})
}

func (a *API) RemoveItem(w http.ResponseWriter, r *http.Request) {
	unitID := chi.URLParam(r, "unit_id")
	a.withRegister(w, r, http.StatusOK, func(ctrl *sale.Controller) error {
		ctrl.RemoveLine(unitID)
		return nil
	})
}

func (a *API) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req DiscountRequestDTO
	if err := decodeBody(r, &req, false); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	a.withRegister(w, r, http.StatusOK, func(ctrl *sale.Controller) error {
		return ctrl.ApplyDiscount(req.Amount)
	})
}

func (a *API) SetCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequestDTO
	if err := decodeBody(r, &req, false); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	a.withRegister(w, r, http.StatusOK, func(ctrl *sale.Controller) error {
		ctrl.SetCustomer(req.CustomerID)
		return nil
	})
}

func (a *API) SetStore(w http.ResponseWriter, r *http.Request) {
	var req StoreRequestDTO
	if err := decodeBody(r, &req, false); err != nil || req.StoreID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "store_id is required")
		return
	}
	a.withRegister(w, r, http.StatusOK, func(ctrl *sale.Controller) error {
		return ctrl.SetStore(req.StoreID)
	})
}

func (a *API) ClearCart(w http.ResponseWriter, r *http.Request) {
	a.withRegister(w, r, http.StatusOK, func(ctrl *sale.Controller) error {
		ctrl.Clear()
		return nil
	})
}

func (a *API) BeginPayment(w http.ResponseWriter, r *http.Request) {
	a.withRegister(w, r, http.StatusOK, func(ctrl *sale.Controller) error {
		return ctrl.BeginPayment()
	})
}

func (a *API) CancelPayment(w http.ResponseWriter, r *http.Request) {
	a.withRegister(w, r, http.StatusOK, func(ctrl *sale.Controller) error {
		return ctrl.CancelPayment()
	})
}

func (a *API) ParkSale(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()

	var req ParkRequestDTO
	if err := decodeBody(r, &req, true); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	registerID := chi.URLParam(r, "register_id")
	var resp SaleResponseDTO
	err := a.registry.With(registerID, func(ctrl *sale.Controller) error {
		parked, err := ctrl.ParkSale(ctx, req.Order)
		if err != nil {
			return err
		}
		resp = SaleResponseDTO{Sale: parked, Register: registerView(registerID, ctrl)}
		return nil
	})
	if err != nil {
		a.handleError(w, r, err)
		return
	}

	a.metrics.SaleOutcome("parked")
	respondJSON(w, http.StatusCreated, resp)
}

func (a *API) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()

	var req PayRequestDTO
	if err := decodeBody(r, &req, false); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	registerID := chi.URLParam(r, "register_id")
	var resp SaleResponseDTO
	err := a.registry.With(registerID, func(ctrl *sale.Controller) error {
		completed, err := ctrl.ProcessPayment(ctx, req.Order, req.Payment)
		if err != nil {
			return err
		}
		resp = SaleResponseDTO{Sale: completed, Register: registerView(registerID, ctrl)}
		return nil
	})
	if err != nil {
		a.handleError(w, r, err)
		return
	}

	a.metrics.SaleOutcome("completed")
	respondJSON(w, http.StatusCreated, resp)
}

func (a *API) ResumeSale(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()

	registerID := chi.URLParam(r, "register_id")
	saleID := chi.URLParam(r, "sale_id")
	var resp SaleResponseDTO
	err := a.registry.With(registerID, func(ctrl *sale.Controller) error {
		result, err := ctrl.ResumeSale(ctx, saleID)
		if err != nil {
			return err
		}
		resp = SaleResponseDTO{
			Sale:       result.Sale,
			Shortfalls: result.Shortfalls,
			Register:   registerView(registerID, ctrl),
		}
		return nil
	})
	if err != nil {
		a.handleError(w, r, err)
		return
	}

	a.metrics.SaleOutcome("resumed")
	respondJSON(w, http.StatusOK, resp)
}

func (a *API) RemoveParkedSale(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()

	registerID := chi.URLParam(r, "register_id")
	saleID := chi.URLParam(r, "sale_id")
	err := a.registry.With(registerID, func(ctrl *sale.Controller) error {
		return ctrl.RemoveParkedSale(ctx, saleID)
	})
	if err != nil {
		a.handleError(w, r, err)
		return
	}

	a.metrics.SaleOutcome("removed")
	w.WriteHeader(http.StatusNoContent)
}
