package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/pos-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

type RefreshCatalogRequestDTO struct {
	StoreID string `json:"store_id"`
}

type CatalogResponseDTO struct {
	StoreID     string                `json:"store_id"`
	RefreshedAt time.Time             `json:"refreshed_at"`
	UnitCount   int                   `json:"unit_count"`
	Units       []domain.SellableUnit `json:"units,omitempty"`
}

func (a *API) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()

	var req RefreshCatalogRequestDTO
	if err := decodeBody(r, &req, true); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.StoreID == "" {
		req.StoreID = a.defaultStore
	}

	if err := a.catalog.Refresh(ctx, req.StoreID); err != nil {
		a.handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, CatalogResponseDTO{
		StoreID:     a.catalog.StoreID(),
		RefreshedAt: a.catalog.RefreshedAt(),
		UnitCount:   len(a.catalog.Units()),
	})
}

func (a *API) ListUnits(w http.ResponseWriter, r *http.Request) {
	units := a.catalog.Units()
	respondJSON(w, http.StatusOK, CatalogResponseDTO{
		StoreID:     a.catalog.StoreID(),
		RefreshedAt: a.catalog.RefreshedAt(),
		UnitCount:   len(units),
		Units:       units,
	})
}

func (a *API) LookupBarcode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	unit, ok := a.catalog.LookupByBarcode(code)
	if !ok {
		respondError(w, http.StatusNotFound, "unit_not_found", "no active unit with barcode "+code)
		return
	}
	respondJSON(w, http.StatusOK, unit)
}
