package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/pos-service/internal/domain"
)

// Snapshot is the full catalog of one store as fetched at RefreshedAt.
type Snapshot struct {
	StoreID     string                `json:"store_id"`
	Units       []domain.SellableUnit `json:"units"`
	RefreshedAt time.Time             `json:"refreshed_at"`
}

// SnapshotCache keeps the last good snapshot per store.
type SnapshotCache interface {
	Get(ctx context.Context, storeID string) (*Snapshot, error)
	Set(ctx context.Context, snapshot *Snapshot) error
}

var ErrCacheMiss = errors.New("cache miss")
