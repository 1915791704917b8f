package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mzakharov/bookstore-admin/internal/handler"
)

func NewRouter(h *handler.PurchaseHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/workflow", func(r chi.Router) {
		r.Get("/books", h.ListBooks)

		r.Get("/orders", h.ListOrders)
		r.Post("/orders", h.SubmitDraft)
		r.Get("/orders/{id}", h.GetOrder)
		r.Post("/orders/{id}/pay", h.PayOrder)
		r.Post("/orders/{id}/cancel", h.CancelOrder)
		r.Post("/orders/{id}/new-books", h.StartPromotion)
		r.Post("/new-books/{detailID}", h.SubmitRetailPrice)

		r.Post("/draft", h.OpenDraft)
		r.Get("/draft", h.GetDraft)
		r.Post("/draft/lines", h.AddDraftLine)
		r.Delete("/draft/lines/{index}", h.RemoveDraftLine)

		r.Post("/quick-purchase/{bookID}", h.QuickPurchase)
	})

	return r
}
