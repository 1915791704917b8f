package bookstore_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzakharov/bookstore-admin/internal/bookstore"
	"github.com/mzakharov/bookstore-admin/internal/purchase"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *bookstore.Client {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	client, err := bookstore.New(srv.URL, "test-token", 5*time.Second)
	require.NoError(t, err)
	return client
}

func TestClient_ListOrders(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/purchases/", r.URL.Path)
		assert.Equal(t, "unpaid", r.URL.Query().Get("status"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"orders": [
			{"order_id": 1, "creator_name": "admin", "status": "unpaid", "total_amount": 250.00,
			 "create_time": "2025-04-16T12:00:00Z",
			 "details": [{"detail_id": 11, "order_id": 1, "book_id": 7, "quantity": 10, "purchase_price": 25.00, "is_new_book": false}]}
		]}`))
	})

	orders, err := client.ListOrders(context.Background(), purchase.StatusUnpaid)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(1), orders[0].OrderID)
	assert.Equal(t, purchase.StatusUnpaid, orders[0].Status)
	assert.True(t, orders[0].TotalAmount.Equal(decimal.NewFromFloat(250.00)))
	require.Len(t, orders[0].Details, 1)
	assert.True(t, orders[0].Details[0].PurchasePrice.Equal(decimal.NewFromFloat(25.00)))
	assert.True(t, orders[0].Details[0].Subtotal().Equal(decimal.NewFromFloat(250.00)))
}

func TestClient_ListOrders_NoFilterOmitsParam(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("status"))
		w.Write([]byte(`{"orders": []}`))
	})

	_, err := client.ListOrders(context.Background(), "")
	require.NoError(t, err)
}

func TestClient_GetOrder_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "purchase order not found"}`))
	})

	_, err := client.GetOrder(context.Background(), 42)
	var apiErr *bookstore.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "purchase order not found", apiErr.Message)
}

func TestClient_APIError_MessageShape(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message": "only unpaid orders can be paid"}`))
	})

	_, err := client.PayOrder(context.Background(), 1)
	var apiErr *bookstore.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "only unpaid orders can be paid", apiErr.Message)
}

func TestClient_CreateOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/purchases/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload struct {
			Remark  string `json:"remark"`
			Details []struct {
				BookID        int64           `json:"book_id"`
				Quantity      int             `json:"quantity"`
				PurchasePrice decimal.Decimal `json:"purchase_price"`
			} `json:"details"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "restock", payload.Remark)
		require.Len(t, payload.Details, 1)
		assert.Equal(t, int64(7), payload.Details[0].BookID)
		assert.True(t, payload.Details[0].PurchasePrice.Equal(decimal.NewFromFloat(25.00)))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"order": {"order_id": 9, "status": "unpaid", "total_amount": 250.00, "create_time": "2025-04-16T12:00:00Z", "details": []}}`))
	})

	ord, err := client.CreateOrder(context.Background(), purchase.OrderPayload{
		Remark: "restock",
		Details: []purchase.LineCandidate{
			{BookID: 7, Quantity: 10, PurchasePrice: decimal.NewFromFloat(25.00)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), ord.OrderID)
	assert.Equal(t, purchase.StatusUnpaid, ord.Status)
}

func TestClient_PayAndCancelPaths(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"order": {"order_id": 3, "status": "paid", "details": []}}`))
	})

	_, err := client.PayOrder(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "/purchases/3/pay", gotPath)

	_, err = client.CancelOrder(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "/purchases/3/cancel", gotPath)
}

func TestClient_PromoteDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/purchases/details/21/add-book", r.URL.Path)

		var body struct {
			RetailPrice decimal.Decimal `json:"retail_price"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.RetailPrice.Equal(decimal.NewFromFloat(39.90)))

		w.Write([]byte(`{"message": "new book added to stock", "book": {"book_id": 88, "title": "X"}}`))
	})

	err := client.PromoteDetail(context.Background(), 21, decimal.NewFromFloat(39.90))
	require.NoError(t, err)
}

func TestClient_GetBookAndListBooks(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/books/7":
			w.Write([]byte(`{"book": {"book_id": 7, "isbn": "978-0-1", "title": "X", "retail_price": 39.90, "stock": 12}}`))
		case "/books/":
			w.Write([]byte(`{"books": [{"book_id": 7, "title": "X"}, {"book_id": 8, "title": "Y"}]}`))
		default:
			http.NotFound(w, r)
		}
	})

	book, err := client.GetBook(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), book.BookID)
	assert.True(t, book.RetailPrice.Equal(decimal.NewFromFloat(39.90)))
	assert.Equal(t, 12, book.Stock)

	books, err := client.ListBooks(context.Background())
	require.NoError(t, err)
	assert.Len(t, books, 2)
}

func TestClient_New_RequiresBaseURL(t *testing.T) {
	_, err := bookstore.New("  ", "", 0)
	require.Error(t, err)
}
