package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/pos-service/internal/backend"
	"github.com/fjod/go_cart/pos-service/internal/cart"
	"github.com/fjod/go_cart/pos-service/internal/catalog"
	"github.com/fjod/go_cart/pos-service/internal/domain"
	"github.com/fjod/go_cart/pos-service/internal/sale"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

type errorMapping struct {
	target error
	status int
	code   string
}

// Order matters: a BackendError wrapping ErrSaleNotFound is a 404, and an
// open breaker is reported before the generic backend failure.
var errorMappings = []errorMapping{
	{cart.ErrOutOfStock, http.StatusConflict, "out_of_stock"},
	{cart.ErrInsufficientStock, http.StatusConflict, "insufficient_stock"},
	{cart.ErrStoreLocked, http.StatusConflict, "store_locked"},
	{sale.ErrStoreMismatch, http.StatusConflict, "store_mismatch"},
	{sale.ErrEmptySale, http.StatusUnprocessableEntity, "empty_sale"},
	{sale.ErrNoResumableItems, http.StatusUnprocessableEntity, "no_resumable_items"},
	{sale.ErrSaleNotParked, http.StatusConflict, "sale_not_parked"},
	{sale.ErrIllegalTransition, http.StatusConflict, "illegal_transition"},
	{cart.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{cart.ErrInvalidDiscount, http.StatusBadRequest, "invalid_discount"},
	{cart.ErrDuplicateLine, http.StatusBadRequest, "duplicate_line"},
	{sale.ErrInvalidPayment, http.StatusBadRequest, "invalid_payment"},
	{cart.ErrLineNotFound, http.StatusNotFound, "line_not_found"},
	{sale.ErrUnitNotFound, http.StatusNotFound, "unit_not_found"},
	{domain.ErrSaleNotFound, http.StatusNotFound, "sale_not_found"},
	{catalog.ErrCatalogUnavailable, http.StatusServiceUnavailable, "catalog_unavailable"},
	{backend.ErrBreakerOpen, http.StatusServiceUnavailable, "backend_unavailable"},
	{sale.ErrBackend, http.StatusBadGateway, "backend_error"},
}

// classify maps a domain error to its HTTP status and error code.
func classify(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

func (a *API) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed",
			zap.String("request_id", getRequestID(r.Context())),
			zap.String("code", code),
			zap.Error(err))
	}
	a.metrics.Rejected(code)
	respondError(w, status, code, err.Error())
}
