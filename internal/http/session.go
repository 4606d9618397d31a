package http

import (
	"sync"

	"github.com/fjod/go_cart/pos-service/internal/cart"
	"github.com/fjod/go_cart/pos-service/internal/sale"
	"go.uber.org/zap"
)

type session struct {
	mu   sync.Mutex
	ctrl *sale.Controller
}

// Registry holds one sale controller per register. Controllers are not safe
// for concurrent use, so each one is only touched under its session lock.
type Registry struct {
	mu           sync.Mutex
	sessions     map[string]*session
	catalog      sale.Catalog
	backend      sale.Backend
	defaultStore func() string
	logger       *zap.Logger
}

// NewRegistry creates an empty registry. defaultStore picks the store of a
// register's first cart.
func NewRegistry(catalog sale.Catalog, backend sale.Backend, defaultStore func() string, logger *zap.Logger) *Registry {
	return &Registry{
		sessions:     make(map[string]*session),
		catalog:      catalog,
		backend:      backend,
		defaultStore: defaultStore,
		logger:       logger,
	}
}

// With runs fn with the controller of registerID, creating it on first use.
func (g *Registry) With(registerID string, fn func(ctrl *sale.Controller) error) error {
	s := g.get(registerID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.ctrl)
}

func (g *Registry) get(registerID string) *session {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.sessions[registerID]
	if !ok {
		logger := g.logger.With(zap.String("register_id", registerID))
		engine := cart.NewEngine(g.defaultStore())
		s = &session{ctrl: sale.NewController(engine, g.catalog, g.backend, logger)}
		g.sessions[registerID] = s
		logger.Info("register session opened", zap.String("store_id", engine.StoreID()))
	}
	return s
}

func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}
