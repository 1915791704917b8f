// Package bookstore is the HTTP client for the external bookstore REST API,
// the sole authority on catalog and purchase-order state.
package bookstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mzakharov/bookstore-admin/internal/purchase"
)

// APIError is a completed call the server refused: an invalid state
// transition, a duplicate promotion, a missing order. It carries the
// server-supplied reason for the operator notification.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bookstore api error %d: %s", e.StatusCode, e.Message)
}

const defaultTimeout = 30 * time.Second

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("bookstore: base URL is empty")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// errorBody matches the two failure shapes the API produces.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("bookstore: failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("bookstore: failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if id, err := uuid.NewV4(); err == nil {
		req.Header.Set("X-Request-ID", id.String())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bookstore: %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("bookstore: failed to read response for %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		msg := strings.TrimSpace(string(raw))
		if err := json.Unmarshal(raw, &eb); err == nil {
			if eb.Error != "" {
				msg = eb.Error
			} else if eb.Message != "" {
				msg = eb.Message
			}
		}
		log.Warn().Int("status", resp.StatusCode).Str("path", path).Str("reason", msg).Msg("bookstore: api rejected call")
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("bookstore: failed to decode response for %s %s: %w", method, path, err)
		}
	}
	return nil
}

func (c *Client) ListOrders(ctx context.Context, status purchase.OrderStatus) ([]purchase.Order, error) {
	params := url.Values{}
	if status != "" {
		params.Set("status", status.String())
	}
	var parsed struct {
		Orders []purchase.Order `json:"orders"`
	}
	if err := c.do(ctx, http.MethodGet, "/purchases/", params, nil, &parsed); err != nil {
		return nil, err
	}
	return parsed.Orders, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID int64) (*purchase.Order, error) {
	var parsed struct {
		Order purchase.Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/purchases/%d", orderID), nil, nil, &parsed); err != nil {
		return nil, err
	}
	return &parsed.Order, nil
}

func (c *Client) CreateOrder(ctx context.Context, payload purchase.OrderPayload) (*purchase.Order, error) {
	var parsed struct {
		Order purchase.Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodPost, "/purchases/", nil, payload, &parsed); err != nil {
		return nil, err
	}
	return &parsed.Order, nil
}

func (c *Client) PayOrder(ctx context.Context, orderID int64) (*purchase.Order, error) {
	var parsed struct {
		Order purchase.Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/purchases/%d/pay", orderID), nil, nil, &parsed); err != nil {
		return nil, err
	}
	return &parsed.Order, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID int64) (*purchase.Order, error) {
	var parsed struct {
		Order purchase.Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/purchases/%d/cancel", orderID), nil, nil, &parsed); err != nil {
		return nil, err
	}
	return &parsed.Order, nil
}

// PromoteDetail submits a retail price for a new-book line. The server
// creates or links the catalog entry; the response's book is only logged,
// the caller re-fetches the order for the authoritative pending set.
func (c *Client) PromoteDetail(ctx context.Context, detailID int64, retailPrice decimal.Decimal) error {
	body := struct {
		RetailPrice decimal.Decimal `json:"retail_price"`
	}{RetailPrice: retailPrice}
	var parsed struct {
		Book *purchase.CatalogBook `json:"book"`
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/purchases/details/%d/add-book", detailID), nil, body, &parsed); err != nil {
		return err
	}
	if parsed.Book != nil {
		log.Info().Int64("detail_id", detailID).Int64("book_id", parsed.Book.BookID).Msg("bookstore: new book added to catalog")
	}
	return nil
}

func (c *Client) GetBook(ctx context.Context, bookID int64) (*purchase.CatalogBook, error) {
	var parsed struct {
		Book purchase.CatalogBook `json:"book"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/books/%d", bookID), nil, nil, &parsed); err != nil {
		return nil, err
	}
	return &parsed.Book, nil
}

func (c *Client) ListBooks(ctx context.Context) ([]purchase.CatalogBook, error) {
	var parsed struct {
		Books []purchase.CatalogBook `json:"books"`
	}
	if err := c.do(ctx, http.MethodGet, "/books/", nil, nil, &parsed); err != nil {
		return nil, err
	}
	return parsed.Books, nil
}
