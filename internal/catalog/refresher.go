package catalog

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type refresher interface {
	Refresh(ctx context.Context, storeID string) error
	StoreID() string
}

// Refresher re-fetches the active store's catalog on a fixed tick so stock
// levels do not drift too far between explicit refreshes.
type Refresher struct {
	index        refresher
	interval     time.Duration
	timeout      time.Duration
	defaultStore string
	logger       *zap.Logger
}

func NewRefresher(index *Index, interval, timeout time.Duration, defaultStore string, logger *zap.Logger) *Refresher {
	return &Refresher{
		index:        index,
		interval:     interval,
		timeout:      timeout,
		defaultStore: defaultStore,
		logger:       logger,
	}
}

// Run blocks until ctx is done. A non-positive interval disables it.
func (p *Refresher) Run(ctx context.Context) {
	if p.interval <= 0 {
		return
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.refreshActiveStore(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Refresher) refreshActiveStore(ctx context.Context) {
	storeID := p.index.StoreID()
	if storeID == "" {
		storeID = p.defaultStore
	}

	refreshCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.index.Refresh(refreshCtx, storeID); err != nil {
		// the previous snapshot keeps serving
		p.logger.Warn("scheduled catalog refresh failed", zap.String("store_id", storeID), zap.Error(err))
	}
}
