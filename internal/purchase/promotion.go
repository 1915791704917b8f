package purchase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mzakharov/bookstore-admin/internal/dialog"
)

var (
	ErrNoActiveFlow = errors.New("no promotion flow is active")
	ErrOrderNotPaid = errors.New("only a paid order can have new books promoted")
	ErrInvalidPrice = errors.New("retail price must be greater than zero")
)

// Promotion drives the operator through pricing a paid order's new-book
// lines until none remain. The server is the sole authority on which lines
// are still pending: after every promote call the order is re-fetched and
// re-filtered instead of marking anything locally, because promotion may
// merge into an existing catalog entry by ISBN in ways only the server can
// resolve.
type Promotion struct {
	api     OrderAPI
	store   *Store
	dialogs *dialog.Sequencer

	mu         sync.Mutex
	submitting bool
	orderID    int64 // 0 when no flow is active
	pending    []OrderLine
	observers  []Observer
	refreshers []refresher
}

type refresher struct {
	name string
	fn   func(ctx context.Context) error
}

func NewPromotion(api OrderAPI, store *Store, dialogs *dialog.Sequencer) *Promotion {
	return &Promotion{api: api, store: store, dialogs: dialogs}
}

// OnPromoted registers an observer invoked after each successful promotion.
func (p *Promotion) OnPromoted(obs Observer) {
	p.mu.Lock()
	p.observers = append(p.observers, obs)
	p.mu.Unlock()
}

// OnComplete registers a collaborator refresh (order list, catalog,
// dashboard) run best-effort when the flow finishes. A failing refresh is
// logged and does not block completion.
func (p *Promotion) OnComplete(name string, fn func(ctx context.Context) error) {
	p.mu.Lock()
	p.refreshers = append(p.refreshers, refresher{name: name, fn: fn})
	p.mu.Unlock()
}

// Start fetches the order's current detail and opens the pending-new-books
// dialog. An order with nothing left to promote is the normal completion
// condition, not an error: the dialog is not opened.
func (p *Promotion) Start(ctx context.Context, orderID int64) ([]OrderLine, error) {
	ord, err := p.store.RefreshOne(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ord.Status != StatusPaid {
		return nil, fmt.Errorf("%w: order %d is %s", ErrOrderNotPaid, orderID, ord.Status)
	}

	pending := ord.PendingNewBooks()
	if len(pending) == 0 {
		p.mu.Lock()
		wasActive := p.orderID == orderID
		p.mu.Unlock()
		if wasActive {
			p.finish(ctx)
		}
		log.Debug().Int64("order_id", orderID).Msg("promotion: no pending new books")
		return nil, nil
	}

	p.mu.Lock()
	p.orderID = orderID
	p.pending = pending
	p.mu.Unlock()

	if err := p.dialogs.OpenExclusive(ctx, dialog.NewBooks, pending); err != nil {
		return nil, err
	}
	log.Info().Int64("order_id", orderID).Int("pending", len(pending)).Msg("promotion: flow started")
	return pending, nil
}

// SubmitPrice promotes one pending line with the given retail price and
// returns the lines still pending afterwards. Calls are strictly sequential:
// a second call while one is in flight is refused rather than queued.
func (p *Promotion) SubmitPrice(ctx context.Context, detailID int64, retailPrice decimal.Decimal) ([]OrderLine, error) {
	p.mu.Lock()
	if p.orderID == 0 {
		p.mu.Unlock()
		return nil, ErrNoActiveFlow
	}
	if p.submitting {
		p.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	p.submitting = true
	orderID := p.orderID
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.submitting = false
		p.mu.Unlock()
	}()

	if !retailPrice.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidPrice, retailPrice)
	}

	promoteErr := p.api.PromoteDetail(ctx, detailID, retailPrice)

	// Re-fetch regardless of the call's outcome: a failed promote may mean
	// another operator already priced this line, which the fresh pending set
	// can tell us.
	ord, refreshErr := p.store.RefreshOne(ctx, orderID)

	if promoteErr != nil {
		if refreshErr == nil && !containsDetail(ord.PendingNewBooks(), detailID) {
			log.Info().Int64("detail_id", detailID).Int64("order_id", orderID).Msg("promotion: line already promoted elsewhere, continuing")
		} else {
			log.Error().Err(promoteErr).Int64("detail_id", detailID).Msg("promotion: promote call failed")
			return nil, fmt.Errorf("promotion: failed to promote detail %d: %w", detailID, promoteErr)
		}
	} else {
		p.notify(ctx, Change{Kind: ChangePromoted, OrderID: orderID})
		log.Info().Int64("detail_id", detailID).Int64("order_id", orderID).Msg("promotion: new book promoted")
	}

	if refreshErr != nil {
		return nil, fmt.Errorf("promotion: detail %d promoted but %w", detailID, refreshErr)
	}

	pending := ord.PendingNewBooks()
	p.mu.Lock()
	p.pending = pending
	p.mu.Unlock()

	if len(pending) == 0 {
		p.finish(ctx)
		return nil, nil
	}
	if err := p.dialogs.OpenExclusive(ctx, dialog.NewBooks, pending); err != nil {
		return nil, err
	}
	return pending, nil
}

// Pending returns the lines still awaiting a retail price, as of the last
// server refresh.
func (p *Promotion) Pending() []OrderLine {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]OrderLine, len(p.pending))
	copy(out, p.pending)
	return out
}

func (p *Promotion) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.orderID != 0
}

func (p *Promotion) notify(ctx context.Context, change Change) {
	p.mu.Lock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.Unlock()
	for _, obs := range observers {
		obs(ctx, change)
	}
}

// finish closes the flow and refreshes the collaborators that went stale
// during it. All refreshes are best-effort.
func (p *Promotion) finish(ctx context.Context) {
	p.mu.Lock()
	orderID := p.orderID
	p.orderID = 0
	p.pending = nil
	refreshers := make([]refresher, len(p.refreshers))
	copy(refreshers, p.refreshers)
	p.mu.Unlock()

	p.dialogs.CloseAll()
	p.store.CloseDetail()

	if _, err := p.store.RefreshList(ctx, ""); err != nil {
		log.Warn().Err(err).Msg("promotion: best-effort list refresh after completion failed")
	}
	for _, r := range refreshers {
		if err := r.fn(ctx); err != nil {
			log.Warn().Err(err).Str("collaborator", r.name).Msg("promotion: best-effort refresh after completion failed")
		}
	}
	log.Info().Int64("order_id", orderID).Msg("promotion: flow complete")
}

func containsDetail(lines []OrderLine, detailID int64) bool {
	for _, l := range lines {
		if l.DetailID == detailID {
			return true
		}
	}
	return false
}
