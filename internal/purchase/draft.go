package purchase

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyDraft  = errors.New("draft must contain at least one line")
	ErrInvalidLine = errors.New("invalid draft line")
)

// LineCandidate is a not-yet-submitted order line under composition. The
// is_new_book flag discriminates the two variants: an existing-catalog line
// carries book_id, a new-book line carries the bibliographic fields.
type LineCandidate struct {
	BookID        int64           `json:"book_id,omitempty" validate:"required_if=IsNewBook false"`
	ISBN          string          `json:"isbn,omitempty" validate:"required_if=IsNewBook true"`
	Title         string          `json:"title,omitempty" validate:"required_if=IsNewBook true"`
	Author        string          `json:"author,omitempty" validate:"required_if=IsNewBook true"`
	Publisher     string          `json:"publisher,omitempty" validate:"required_if=IsNewBook true"`
	Quantity      int             `json:"quantity" validate:"gt=0"`
	PurchasePrice decimal.Decimal `json:"purchase_price" validate:"gt=0"`
	IsNewBook     bool            `json:"is_new_book"`
}

func (c LineCandidate) Subtotal() decimal.Decimal {
	return c.PurchasePrice.Mul(decimal.NewFromInt(int64(c.Quantity)))
}

// OrderPayload is the submission structure for order creation.
type OrderPayload struct {
	Remark  string          `json:"remark"`
	Details []LineCandidate `json:"details"`
}

// Draft accumulates line items for an order not yet submitted. It is
// constructed once per session and passed to whichever view needs it; all
// state lives on the instance, nothing at package level.
type Draft struct {
	mu       sync.Mutex
	validate *validator.Validate
	lines    []LineCandidate
}

func NewDraft() *Draft {
	v := validator.New()
	// Let gt=0 apply to decimal amounts.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return &Draft{validate: v}
}

// AddLine validates the candidate and appends it. A rejected candidate
// leaves the draft unchanged and causes no network activity.
func (d *Draft) AddLine(c LineCandidate) error {
	c.ISBN = strings.TrimSpace(c.ISBN)
	c.Title = strings.TrimSpace(c.Title)
	c.Author = strings.TrimSpace(c.Author)
	c.Publisher = strings.TrimSpace(c.Publisher)

	if err := d.validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field := verrs[0].Field()
			log.Warn().Str("field", field).Bool("is_new_book", c.IsNewBook).Msg("draft: line candidate rejected")
			return fmt.Errorf("%w: field %s failed on %s", ErrInvalidLine, field, verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidLine, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = append(d.lines, c)
	return nil
}

// RemoveLine removes by position. An out-of-range index is a no-op: the UI
// only offers valid indices, so there is nothing to report.
func (d *Draft) RemoveLine(index int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index < 0 || index >= len(d.lines) {
		return
	}
	d.lines = append(d.lines[:index], d.lines[index+1:]...)
}

func (d *Draft) Lines() []LineCandidate {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]LineCandidate, len(d.lines))
	copy(out, d.lines)
	return out
}

func (d *Draft) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lines)
}

// Total recomputes sum(quantity * purchase_price) over the current lines on
// every call. There is no maintained running total to drift.
func (d *Draft) Total() decimal.Decimal {
	d.mu.Lock()
	defer d.mu.Unlock()
	total := decimal.Zero
	for _, l := range d.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Reset discards all lines. Called after a successful submission or when the
// operator abandons the compose dialog.
func (d *Draft) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = nil
}

// Payload produces the submission structure, refusing on an empty draft.
func (d *Draft) Payload(remark string) (OrderPayload, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.lines) == 0 {
		return OrderPayload{}, ErrEmptyDraft
	}
	details := make([]LineCandidate, len(d.lines))
	copy(details, d.lines)
	return OrderPayload{Remark: remark, Details: details}, nil
}
