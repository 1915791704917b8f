package purchase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mzakharov/bookstore-admin/internal/dialog"
)

// Legal operator-driven status transitions. The server is the final
// authority and may still reject a call, but anything outside this table is
// refused before any network activity.
var allowedTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusUnpaid: {
		StatusPaid:      true,
		StatusCancelled: true,
	},
	StatusPaid:      {},
	StatusCancelled: {},
}

var (
	ErrInvalidTransition  = errors.New("invalid order status transition")
	ErrSubmissionInFlight = errors.New("another submission is already in flight")
)

type ChangeKind string

const (
	ChangeCreated   ChangeKind = "created"
	ChangePaid      ChangeKind = "paid"
	ChangeCancelled ChangeKind = "cancelled"
	ChangePromoted  ChangeKind = "promoted"
)

type Change struct {
	Kind    ChangeKind
	OrderID int64
}

// Observer is invoked after every successful mutation. Registration is the
// extension point for collaborators (dashboard, catalog view) that need to
// refresh when order data changes.
type Observer func(ctx context.Context, change Change)

// Quantity pre-filled when the dashboard triggers a quick purchase for a
// low-stock book.
const quickPurchaseQuantity = 10

// Lifecycle drives a submitted order through its states. Every transition
// performs exactly one external API call and then re-fetches; no state is
// ever changed optimistically before the server confirms.
type Lifecycle struct {
	api     OrderAPI
	catalog Catalog
	store   *Store
	draft   *Draft
	dialogs *dialog.Sequencer

	mu         sync.Mutex
	submitting bool
	observers  []Observer
}

func NewLifecycle(api OrderAPI, catalog Catalog, store *Store, draft *Draft, dialogs *dialog.Sequencer) *Lifecycle {
	return &Lifecycle{
		api:     api,
		catalog: catalog,
		store:   store,
		draft:   draft,
		dialogs: dialogs,
	}
}

// OnChange registers an observer for successful mutations.
func (lm *Lifecycle) OnChange(obs Observer) {
	lm.mu.Lock()
	lm.observers = append(lm.observers, obs)
	lm.mu.Unlock()
}

func (lm *Lifecycle) notify(ctx context.Context, change Change) {
	lm.mu.Lock()
	observers := make([]Observer, len(lm.observers))
	copy(observers, lm.observers)
	lm.mu.Unlock()
	for _, obs := range observers {
		obs(ctx, change)
	}
}

// begin claims the single in-flight submission slot; end releases it. The
// slot is what keeps a double-clicked submit from firing twice.
func (lm *Lifecycle) begin() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if lm.submitting {
		return ErrSubmissionInFlight
	}
	lm.submitting = true
	return nil
}

func (lm *Lifecycle) end() {
	lm.mu.Lock()
	lm.submitting = false
	lm.mu.Unlock()
}

// OpenCompose resets the draft and opens the compose dialog.
func (lm *Lifecycle) OpenCompose(ctx context.Context) error {
	lm.draft.Reset()
	return lm.dialogs.OpenExclusive(ctx, dialog.Compose, lm.draft.Lines())
}

// OpenDetail fetches an order's authoritative detail and opens the detail
// dialog on it.
func (lm *Lifecycle) OpenDetail(ctx context.Context, orderID int64) (*Order, error) {
	ord, err := lm.store.RefreshOne(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := lm.dialogs.OpenExclusive(ctx, dialog.OrderDetail, ord); err != nil {
		return nil, err
	}
	return ord, nil
}

// SubmitDraft sends the composed draft as a new order. On success the draft
// is discarded, the compose dialog closed and the order list refreshed.
func (lm *Lifecycle) SubmitDraft(ctx context.Context, remark string) (*Order, error) {
	if err := lm.begin(); err != nil {
		return nil, err
	}
	defer lm.end()

	payload, err := lm.draft.Payload(remark)
	if err != nil {
		return nil, err
	}

	ord, err := lm.api.CreateOrder(ctx, payload)
	if err != nil {
		log.Error().Err(err).Int("lines", len(payload.Details)).Msg("lifecycle: failed to create order")
		return nil, fmt.Errorf("lifecycle: failed to create order: %w", err)
	}

	lm.draft.Reset()
	lm.dialogs.CloseAll()
	lm.notify(ctx, Change{Kind: ChangeCreated, OrderID: ord.OrderID})
	log.Info().Int64("order_id", ord.OrderID).Stringer("status", ord.Status).Msg("lifecycle: order created")

	if _, err := lm.store.RefreshList(ctx, ""); err != nil {
		return nil, fmt.Errorf("lifecycle: order %d created but %w", ord.OrderID, err)
	}
	return ord, nil
}

// Pay transitions an unpaid order to paid. Stock for existing-catalog lines
// is adjusted server-side as part of the call.
func (lm *Lifecycle) Pay(ctx context.Context, orderID int64) (*Order, error) {
	return lm.transition(ctx, orderID, StatusPaid, ChangePaid, lm.api.PayOrder)
}

// Cancel transitions an unpaid order to cancelled. Orders are never deleted;
// cancellation is a status transition.
func (lm *Lifecycle) Cancel(ctx context.Context, orderID int64) (*Order, error) {
	return lm.transition(ctx, orderID, StatusCancelled, ChangeCancelled, lm.api.CancelOrder)
}

func (lm *Lifecycle) transition(ctx context.Context, orderID int64, target OrderStatus, kind ChangeKind, call func(context.Context, int64) (*Order, error)) (*Order, error) {
	if err := lm.begin(); err != nil {
		return nil, err
	}
	defer lm.end()

	current, err := lm.api.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: failed to fetch order %d before %s: %w", orderID, target, err)
	}
	if !allowedTransitions[current.Status][target] {
		log.Warn().
			Int64("order_id", orderID).
			Stringer("current_status", current.Status).
			Stringer("new_status", target).
			Msg("lifecycle: transition refused")
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, target)
	}

	ord, err := call(ctx, orderID)
	if err != nil {
		// Nothing cached has been touched; the operator may retry.
		log.Error().Err(err).Int64("order_id", orderID).Stringer("new_status", target).Msg("lifecycle: transition call failed")
		return nil, fmt.Errorf("lifecycle: failed to mark order %d %s: %w", orderID, target, err)
	}

	lm.notify(ctx, Change{Kind: kind, OrderID: orderID})
	log.Info().Int64("order_id", orderID).Stringer("old_status", current.Status).Stringer("new_status", ord.Status).Msg("lifecycle: order status updated")

	if err := lm.refreshAfterMutation(ctx, orderID); err != nil {
		return nil, err
	}
	return ord, nil
}

func (lm *Lifecycle) refreshAfterMutation(ctx context.Context, orderID int64) error {
	if _, err := lm.store.RefreshList(ctx, ""); err != nil {
		return err
	}
	if d := lm.store.Detail(); d != nil && d.OrderID == orderID {
		if _, err := lm.store.RefreshOne(ctx, orderID); err != nil {
			return err
		}
	}
	return nil
}

// QuickPurchase is the dashboard re-entry point: it opens the creation flow
// pre-seeded with one existing-catalog line for the given book, unit cost
// defaulted to the book's current retail price.
func (lm *Lifecycle) QuickPurchase(ctx context.Context, bookID int64) ([]LineCandidate, error) {
	book, err := lm.catalog.GetBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: failed to look up book %d for quick purchase: %w", bookID, err)
	}

	lm.draft.Reset()
	seed := LineCandidate{
		BookID:        book.BookID,
		ISBN:          book.ISBN,
		Title:         book.Title,
		Author:        book.Author,
		Publisher:     book.Publisher,
		Quantity:      quickPurchaseQuantity,
		PurchasePrice: book.RetailPrice,
	}
	if err := lm.draft.AddLine(seed); err != nil {
		return nil, fmt.Errorf("lifecycle: failed to seed quick purchase for book %d: %w", bookID, err)
	}
	if err := lm.dialogs.OpenExclusive(ctx, dialog.Compose, lm.draft.Lines()); err != nil {
		return nil, err
	}
	return lm.draft.Lines(), nil
}
