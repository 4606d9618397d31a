package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fjod/go_cart/pos-service/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrCatalogUnavailable = errors.New("catalog unavailable")

// Source fetches every sellable unit with its stock at the given store.
type Source interface {
	FetchCatalog(ctx context.Context, storeID string) ([]domain.SellableUnit, error)
}

type indexed struct {
	gen       uint64
	snapshot  *Snapshot
	byID      map[string]int
	byBarcode map[string]int
}

// Index is the shared, read-mostly catalog of the active store. It is only
// ever replaced wholesale, so readers see one consistent snapshot.
type Index struct {
	source  Source
	cache   SnapshotCache
	logger  *zap.Logger
	current atomic.Pointer[indexed]
	sfg     singleflight.Group // collapses concurrent refreshes of one store
	gen     atomic.Uint64
}

// NewIndex builds an empty index. cache may be nil.
func NewIndex(source Source, cache SnapshotCache, logger *zap.Logger) *Index {
	return &Index{
		source: source,
		cache:  cache,
		logger: logger,
	}
}

// Refresh replaces the index with the catalog of storeID. On failure the
// previous snapshot stays in place and ErrCatalogUnavailable is returned.
//
// The shared fetch is detached from ctx so one caller giving up does not fail
// the others waiting on it; a cancelled caller returns early instead. When
// refreshes of different stores overlap, the one started last wins.
func (x *Index) Refresh(ctx context.Context, storeID string) error {
	ch := x.sfg.DoChan(storeID, func() (interface{}, error) {
		return x.refresh(context.WithoutCancel(ctx), storeID)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("%w: store %s: %w", ErrCatalogUnavailable, storeID, ctx.Err())
	}
}

func (x *Index) refresh(ctx context.Context, storeID string) (*Snapshot, error) {
	gen := x.gen.Add(1)
	units, err := x.source.FetchCatalog(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("%w: store %s: %w", ErrCatalogUnavailable, storeID, err)
	}

	snapshot := &Snapshot{
		StoreID:     storeID,
		Units:       units,
		RefreshedAt: time.Now(),
	}
	next := build(snapshot)
	next.gen = gen
	if x.swap(next) {
		x.logger.Info("catalog refreshed", zap.String("store_id", storeID), zap.Int("units", len(units)))
	} else {
		x.logger.Warn("catalog refresh superseded by a newer one",
			zap.String("store_id", storeID), zap.String("active_store_id", x.StoreID()))
	}

	x.storeCache(ctx, snapshot)
	return snapshot, nil
}

// swap installs next unless a refresh started after it is already in place.
func (x *Index) swap(next *indexed) bool {
	for {
		cur := x.current.Load()
		if cur != nil && cur.gen > next.gen {
			return false
		}
		if x.current.CompareAndSwap(cur, next) {
			return true
		}
	}
}

// Warm loads the cached snapshot for storeID into an empty index. It reports
// whether anything was loaded; a cache miss is not an error.
func (x *Index) Warm(ctx context.Context, storeID string) (bool, error) {
	if x.cache == nil || x.current.Load() != nil {
		return false, nil
	}

	snapshot, err := x.cache.Get(ctx, storeID)
	if errors.Is(err, ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	// a refresh that finished meanwhile wins over the cached copy
	if !x.current.CompareAndSwap(nil, build(snapshot)) {
		return false, nil
	}
	x.logger.Info("catalog warmed from cache",
		zap.String("store_id", storeID),
		zap.Time("refreshed_at", snapshot.RefreshedAt))
	return true, nil
}

// LookupByBarcode returns the first active unit whose barcode is exactly code.
func (x *Index) LookupByBarcode(code string) (domain.SellableUnit, bool) {
	cur := x.current.Load()
	if cur == nil {
		return domain.SellableUnit{}, false
	}
	i, ok := cur.byBarcode[code]
	if !ok {
		return domain.SellableUnit{}, false
	}
	return cloneUnit(cur.snapshot.Units[i]), true
}

func (x *Index) LookupByID(id string) (domain.SellableUnit, bool) {
	cur := x.current.Load()
	if cur == nil {
		return domain.SellableUnit{}, false
	}
	i, ok := cur.byID[id]
	if !ok {
		return domain.SellableUnit{}, false
	}
	return cloneUnit(cur.snapshot.Units[i]), true
}

// Units returns every unit of the current snapshot in fetch order.
func (x *Index) Units() []domain.SellableUnit {
	cur := x.current.Load()
	if cur == nil {
		return nil
	}
	out := make([]domain.SellableUnit, len(cur.snapshot.Units))
	for i, u := range cur.snapshot.Units {
		out[i] = cloneUnit(u)
	}
	return out
}

func (x *Index) StoreID() string {
	if cur := x.current.Load(); cur != nil {
		return cur.snapshot.StoreID
	}
	return ""
}

func (x *Index) RefreshedAt() time.Time {
	if cur := x.current.Load(); cur != nil {
		return cur.snapshot.RefreshedAt
	}
	return time.Time{}
}

func (x *Index) storeCache(ctx context.Context, snapshot *Snapshot) {
	if x.cache == nil {
		return
	}
	cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := x.cache.Set(cacheCtx, snapshot); err != nil {
		x.logger.Warn("catalog cache set failed", zap.String("store_id", snapshot.StoreID), zap.Error(err))
	}
}

func build(snapshot *Snapshot) *indexed {
	idx := &indexed{
		snapshot:  snapshot,
		byID:      make(map[string]int, len(snapshot.Units)),
		byBarcode: make(map[string]int, len(snapshot.Units)),
	}
	for i, u := range snapshot.Units {
		if _, exists := idx.byID[u.ID]; !exists {
			idx.byID[u.ID] = i
		}
		if !u.Active || u.Barcode == "" {
			continue
		}
		if _, exists := idx.byBarcode[u.Barcode]; !exists {
			idx.byBarcode[u.Barcode] = i
		}
	}
	return idx
}

func cloneUnit(u domain.SellableUnit) domain.SellableUnit {
	u.Attributes = domain.CloneAttributes(u.Attributes)
	return u
}
