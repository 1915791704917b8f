package purchase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusUnpaid    OrderStatus = "unpaid"
	StatusPaid      OrderStatus = "paid"
	StatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) String() string {
	return string(s)
}

// OrderLine is one line item of a purchase order. For an existing-catalog
// line BookID references the catalog entry; for a new-book line BookID is
// zero until the server promotes it, and the bibliographic fields carry the
// manually supplied data.
type OrderLine struct {
	DetailID      int64           `json:"detail_id"`
	OrderID       int64           `json:"order_id"`
	BookID        int64           `json:"book_id,omitempty"`
	ISBN          string          `json:"isbn,omitempty"`
	Title         string          `json:"title,omitempty"`
	Author        string          `json:"author,omitempty"`
	Publisher     string          `json:"publisher,omitempty"`
	Quantity      int             `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	IsNewBook     bool            `json:"is_new_book"`
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.PurchasePrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Order struct {
	OrderID     int64           `json:"order_id"`
	Creator     string          `json:"creator_name"`
	CreateTime  time.Time       `json:"create_time"`
	Status      OrderStatus     `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Remark      string          `json:"remark,omitempty"`
	Details     []OrderLine     `json:"details"`
}

// PendingNewBooks returns the line items still waiting for promotion.
// Promotion is server-side: once a retail price has been accepted the server
// links the line to a catalog entry, so a new-book line with a BookID is done.
// The server response is the only authority here; nothing client-side marks a
// line promoted.
func (o Order) PendingNewBooks() []OrderLine {
	var pending []OrderLine
	for _, l := range o.Details {
		if l.IsNewBook && l.BookID == 0 {
			pending = append(pending, l)
		}
	}
	return pending
}

// CatalogBook is the slice of a catalog entry this workflow needs: enough to
// seed a quick-purchase draft line and to render existing-book selection.
type CatalogBook struct {
	BookID      int64           `json:"book_id"`
	ISBN        string          `json:"isbn"`
	Title       string          `json:"title"`
	Author      string          `json:"author"`
	Publisher   string          `json:"publisher"`
	RetailPrice decimal.Decimal `json:"retail_price"`
	Stock       int             `json:"stock"`
}

// OrderAPI is the external bookstore REST surface this workflow drives. The
// server owns all order state; every method returning an *Order returns the
// authoritative post-call representation.
type OrderAPI interface {
	ListOrders(ctx context.Context, status OrderStatus) ([]Order, error)
	GetOrder(ctx context.Context, orderID int64) (*Order, error)
	CreateOrder(ctx context.Context, payload OrderPayload) (*Order, error)
	PayOrder(ctx context.Context, orderID int64) (*Order, error)
	CancelOrder(ctx context.Context, orderID int64) (*Order, error)
	PromoteDetail(ctx context.Context, detailID int64, retailPrice decimal.Decimal) error
}

// Catalog is the book-lookup collaborator.
type Catalog interface {
	GetBook(ctx context.Context, bookID int64) (*CatalogBook, error)
}
