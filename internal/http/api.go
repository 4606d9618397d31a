package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/fjod/go_cart/pos-service/internal/domain"
	"github.com/fjod/go_cart/pos-service/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// CatalogIndex is the shared catalog the register API reads and refreshes.
type CatalogIndex interface {
	Refresh(ctx context.Context, storeID string) error
	LookupByBarcode(code string) (domain.SellableUnit, bool)
	Units() []domain.SellableUnit
	StoreID() string
	RefreshedAt() time.Time
}

type API struct {
	registry     *Registry
	catalog      CatalogIndex
	defaultStore string
	timeout      time.Duration
	logger       *zap.Logger
	metrics      *metrics.RegisterMetrics
}

func NewAPI(registry *Registry, catalog CatalogIndex, defaultStore string, timeout time.Duration,
	logger *zap.Logger, m *metrics.RegisterMetrics) *API {
	return &API{
		registry:     registry,
		catalog:      catalog,
		defaultStore: defaultStore,
		timeout:      timeout,
		logger:       logger,
		metrics:      m,
	}
}

// NewRouter mounts the register API with its middleware, health check and
// metrics endpoint.
func NewRouter(api *API) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(api.logger, api.metrics))
	r.Use(middleware.Timeout(api.timeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", api.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/catalog", func(r chi.Router) {
			r.Post("/refresh", api.RefreshCatalog)
			r.Get("/units", api.ListUnits)
			r.Get("/barcodes/{code}", api.LookupBarcode)
		})
		r.Route("/registers/{register_id}", func(r chi.Router) {
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", api.GetCart)
				r.Delete("/", api.ClearCart)
				r.Post("/items", api.AddItem)
				r.Patch("/items/{unit_id}", api.ChangeQuantity)
				r.Delete("/items/{unit_id}", api.RemoveItem)
				r.Put("/discount", api.ApplyDiscount)
				r.Put("/customer", api.SetCustomer)
				r.Put("/store", api.SetStore)
			})
			r.Post("/payment/begin", api.BeginPayment)
			r.Post("/payment/cancel", api.CancelPayment)
			r.Post("/sales/park", api.ParkSale)
			r.Post("/sales/pay", api.ProcessPayment)
			r.Post("/sales/{sale_id}/resume", api.ResumeSale)
			r.Delete("/sales/{sale_id}", api.RemoveParkedSale)
		})
	})
	return r
}

// decodeBody reads a JSON body into v. An empty body is accepted when
// optional is set.
func decodeBody(r *http.Request, v interface{}, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
