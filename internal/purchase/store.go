package purchase

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Store is the single source of truth for the currently-known order list and
// the currently-open order detail. Both caches are replaced wholesale by the
// refresh methods and never patched in place by other components, so two
// readers can never disagree on the shape of a partially-updated order. On
// any failure the previous cache is kept untouched.
type Store struct {
	api OrderAPI

	mu     sync.RWMutex
	orders []Order
	detail *Order
}

func NewStore(api OrderAPI) *Store {
	return &Store{api: api}
}

// RefreshList replaces the cached list with the server's, optionally
// filtered by status. An empty status means no filter.
func (s *Store) RefreshList(ctx context.Context, status OrderStatus) ([]Order, error) {
	orders, err := s.api.ListOrders(ctx, status)
	if err != nil {
		log.Error().Err(err).Str("status_filter", status.String()).Msg("store: failed to refresh order list")
		return nil, fmt.Errorf("store: failed to refresh order list: %w", err)
	}

	s.mu.Lock()
	s.orders = orders
	s.mu.Unlock()

	log.Debug().Int("count", len(orders)).Str("status_filter", status.String()).Msg("store: order list refreshed")
	return s.Orders(), nil
}

// RefreshOne fetches a single order's full detail and caches it as the open
// detail. The cached list entry is deliberately not touched; callers that
// need list consistency follow up with RefreshList.
func (s *Store) RefreshOne(ctx context.Context, orderID int64) (*Order, error) {
	ord, err := s.api.GetOrder(ctx, orderID)
	if err != nil {
		log.Error().Err(err).Int64("order_id", orderID).Msg("store: failed to refresh order detail")
		return nil, fmt.Errorf("store: failed to refresh order %d: %w", orderID, err)
	}

	s.mu.Lock()
	cp := *ord
	s.detail = &cp
	s.mu.Unlock()

	return ord, nil
}

func (s *Store) Orders() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Order, len(s.orders))
	copy(out, s.orders)
	return out
}

// Detail returns a copy of the currently-open order detail, or nil if no
// detail view is open.
func (s *Store) Detail() *Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.detail == nil {
		return nil
	}
	cp := *s.detail
	return &cp
}

// CloseDetail drops the open detail, typically when its dialog closes.
func (s *Store) CloseDetail() {
	s.mu.Lock()
	s.detail = nil
	s.mu.Unlock()
}
