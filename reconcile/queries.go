package reconcile

import (
	"context"
	"time"

	"github.com/fr33d0m21/pull/models"
)

// ListOrders returns the store's order lines matching f, in insertion order.
func (s *Service) ListOrders(ctx context.Context, storeId string, f OrderFilter) ([]models.RemovalOrder, error) {
	snap, err := s.Snapshot(ctx, storeId)
	if err != nil {
		return nil, err
	}
	return filterOrders(snap.Orders, f), nil
}

// GetOrder reads one line straight from the repository.
func (s *Service) GetOrder(ctx context.Context, storeId string, id int) (*models.RemovalOrder, error) {
	if storeId == "" {
		return nil, ErrStoreRequired
	}
	return s.repo.GetOrder(ctx, storeId, id)
}

// WorkingQueue returns the new and processing lines, oldest request first.
func (s *Service) WorkingQueue(ctx context.Context, storeId string) ([]models.RemovalOrder, error) {
	snap, err := s.Snapshot(ctx, storeId)
	if err != nil {
		return nil, err
	}
	return workingQueue(snap.Orders), nil
}

// TrackingGroups groups the store's lines by tracking number, incomplete first.
func (s *Service) TrackingGroups(ctx context.Context, storeId string) ([]TrackingGroup, error) {
	snap, err := s.Snapshot(ctx, storeId)
	if err != nil {
		return nil, err
	}
	return groupByTracking(snap.Orders), nil
}

// Lookup finds lines by a scanned order id, tracking number, SKU or FNSKU.
func (s *Service) Lookup(ctx context.Context, storeId, code string) ([]models.RemovalOrder, error) {
	snap, err := s.Snapshot(ctx, storeId)
	if err != nil {
		return nil, err
	}
	return lookup(snap.Orders, code), nil
}

// Stats returns the store summary, from the shared cache when present.
func (s *Service) Stats(ctx context.Context, storeId string) (*Stats, error) {
	if storeId == "" {
		return nil, ErrStoreRequired
	}
	if s.opts.Cache == nil {
		snap, err := s.Snapshot(ctx, storeId)
		if err != nil {
			return nil, err
		}
		stats := ComputeStats(snap.Orders, s.opts.Now())
		return &stats, nil
	}
	if cached, ok := s.opts.Cache.Get(ctx, storeId); ok && sameDay(cached.ComputedAt, s.opts.Now()) {
		return cached, nil
	}

	// Shared entries are only written from a fresh load taken under the
	// store lock, so a write from another instance cannot interleave.
	st, unlock, err := s.lockStore(ctx, storeId)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if err := s.load(ctx, storeId, st); err != nil {
		return nil, err
	}
	stats := st.stats
	s.opts.Cache.Set(ctx, storeId, stats)
	return &stats, nil
}

// sameDay reports whether a and b fall on the same UTC date. Aging buckets
// only move at day boundaries.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func (s *Service) DailySummary(ctx context.Context, storeId string, w Window) (*Summary, error) {
	snap, err := s.Snapshot(ctx, storeId)
	if err != nil {
		return nil, err
	}
	summary := summarize(snap.Orders, w)
	return &summary, nil
}

func (s *Service) Tracking(ctx context.Context, storeId string) ([]models.TrackingEntry, error) {
	snap, err := s.Snapshot(ctx, storeId)
	if err != nil {
		return nil, err
	}
	return snap.Tracking, nil
}

func (s *Service) Spreadsheets(ctx context.Context, storeId string) ([]models.Spreadsheet, error) {
	if storeId == "" {
		return nil, ErrStoreRequired
	}
	return s.repo.ListSpreadsheets(ctx, storeId)
}

func (s *Service) CompletedOrders(ctx context.Context, storeId string) ([]models.CompletedOrder, error) {
	if storeId == "" {
		return nil, ErrStoreRequired
	}
	return s.repo.ListCompleted(ctx, storeId)
}
