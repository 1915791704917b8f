package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mzakharov/bookstore-admin/internal/bookstore"
	"github.com/mzakharov/bookstore-admin/internal/purchase"
)

// BookLister populates the existing-book selection in the compose dialog.
type BookLister interface {
	ListBooks(ctx context.Context) ([]purchase.CatalogBook, error)
}

// PurchaseHandler exposes the purchase workflow to the dashboard UI.
type PurchaseHandler struct {
	store     *purchase.Store
	draft     *purchase.Draft
	lifecycle *purchase.Lifecycle
	promotion *purchase.Promotion
	books     BookLister
}

func NewPurchaseHandler(store *purchase.Store, draft *purchase.Draft, lifecycle *purchase.Lifecycle, promotion *purchase.Promotion, books BookLister) *PurchaseHandler {
	return &PurchaseHandler{
		store:     store,
		draft:     draft,
		lifecycle: lifecycle,
		promotion: promotion,
		books:     books,
	}
}

// writeError maps the workflow error taxonomy onto HTTP statuses:
// validation errors become 422, refused transitions and in-flight guards
// 409, API-rejected calls keep the upstream status and reason, and anything
// else is a transport failure, 502.
func writeError(w http.ResponseWriter, action string, err error) {
	var apiErr *bookstore.APIError
	switch {
	case errors.Is(err, purchase.ErrInvalidLine),
		errors.Is(err, purchase.ErrEmptyDraft),
		errors.Is(err, purchase.ErrInvalidPrice),
		errors.Is(err, purchase.ErrOrderNotPaid):
		http.Error(w, action+": "+err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, purchase.ErrInvalidTransition),
		errors.Is(err, purchase.ErrSubmissionInFlight),
		errors.Is(err, purchase.ErrNoActiveFlow):
		http.Error(w, action+": "+err.Error(), http.StatusConflict)
	case errors.As(err, &apiErr):
		http.Error(w, action+": "+apiErr.Message, apiErr.StatusCode)
	default:
		log.Error().Err(err).Str("action", action).Msg("handler: upstream call failed")
		http.Error(w, action+" failed: "+err.Error(), http.StatusBadGateway)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("handler: failed to encode response")
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// ListOrders refreshes and returns the order list, optionally filtered by
// status.
func (h *PurchaseHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	status := purchase.OrderStatus(r.URL.Query().Get("status"))
	orders, err := h.store.RefreshList(r.Context(), status)
	if err != nil {
		writeError(w, "load orders", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// GetOrder opens the detail view on one order.
func (h *PurchaseHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}
	ord, err := h.lifecycle.OpenDetail(r.Context(), id)
	if err != nil {
		writeError(w, "load order detail", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": orderView(ord)})
}

type lineView struct {
	purchase.OrderLine
	Subtotal decimal.Decimal `json:"subtotal"`
}

// orderView decorates a detail response with per-line subtotals for the UI.
func orderView(ord *purchase.Order) map[string]any {
	lines := make([]lineView, len(ord.Details))
	for i, l := range ord.Details {
		lines[i] = lineView{OrderLine: l, Subtotal: l.Subtotal()}
	}
	return map[string]any{
		"order_id":     ord.OrderID,
		"creator_name": ord.Creator,
		"create_time":  ord.CreateTime,
		"status":       ord.Status,
		"total_amount": ord.TotalAmount,
		"remark":       ord.Remark,
		"details":      lines,
	}
}

// ListBooks returns the catalog for existing-book selection.
func (h *PurchaseHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.books.ListBooks(r.Context())
	if err != nil {
		writeError(w, "load books", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"books": books})
}

// OpenDraft resets the draft and opens the compose dialog.
func (h *PurchaseHandler) OpenDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.lifecycle.OpenCompose(r.Context()); err != nil {
		writeError(w, "open compose dialog", err)
		return
	}
	writeJSON(w, http.StatusOK, draftView(h.draft))
}

// GetDraft returns the draft's lines and recomputed total.
func (h *PurchaseHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, draftView(h.draft))
}

// AddDraftLine validates and appends one line candidate.
func (h *PurchaseHandler) AddDraftLine(w http.ResponseWriter, r *http.Request) {
	var c purchase.LineCandidate
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.draft.AddLine(c); err != nil {
		writeError(w, "add draft line", err)
		return
	}
	writeJSON(w, http.StatusCreated, draftView(h.draft))
}

// RemoveDraftLine removes by position; out-of-range is a no-op.
func (h *PurchaseHandler) RemoveDraftLine(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "invalid line index", http.StatusBadRequest)
		return
	}
	h.draft.RemoveLine(index)
	writeJSON(w, http.StatusOK, draftView(h.draft))
}

// SubmitDraft creates the order from the composed draft.
func (h *PurchaseHandler) SubmitDraft(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Remark string `json:"remark"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	ord, err := h.lifecycle.SubmitDraft(r.Context(), body.Remark)
	if err != nil {
		writeError(w, "submit purchase order", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"order": ord})
}

// PayOrder marks an unpaid order paid.
func (h *PurchaseHandler) PayOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "pay purchase order", h.lifecycle.Pay)
}

// CancelOrder marks an unpaid order cancelled.
func (h *PurchaseHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel purchase order", h.lifecycle.Cancel)
}

func (h *PurchaseHandler) transition(w http.ResponseWriter, r *http.Request, action string, call func(context.Context, int64) (*purchase.Order, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}
	ord, err := call(r.Context(), id)
	if err != nil {
		writeError(w, action, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": ord})
}

// StartPromotion begins the new-book pricing flow for a paid order.
func (h *PurchaseHandler) StartPromotion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}
	pending, err := h.promotion.Start(r.Context(), id)
	if err != nil {
		writeError(w, "start new-book pricing", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": pending, "done": len(pending) == 0})
}

// SubmitRetailPrice promotes one pending new-book line.
func (h *PurchaseHandler) SubmitRetailPrice(w http.ResponseWriter, r *http.Request) {
	detailID, err := pathID(r, "detailID")
	if err != nil {
		http.Error(w, "invalid detail id", http.StatusBadRequest)
		return
	}
	var body struct {
		RetailPrice decimal.Decimal `json:"retail_price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	pending, err := h.promotion.SubmitPrice(r.Context(), detailID, body.RetailPrice)
	if err != nil {
		writeError(w, "promote new book", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": pending, "done": len(pending) == 0})
}

// QuickPurchase is the dashboard re-entry point: it opens the creation flow
// pre-seeded with one existing-catalog line for the given book.
func (h *PurchaseHandler) QuickPurchase(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r, "bookID")
	if err != nil {
		http.Error(w, "invalid book id", http.StatusBadRequest)
		return
	}
	lines, err := h.lifecycle.QuickPurchase(r.Context(), bookID)
	if err != nil {
		writeError(w, "quick purchase", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lines": lines})
}

func draftView(d *purchase.Draft) map[string]any {
	return map[string]any{
		"lines": d.Lines(),
		"total": d.Total(),
	}
}
