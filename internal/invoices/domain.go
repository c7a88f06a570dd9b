// Package invoices implements the invoice workflow engine: it validates a
// draft invoice, reserves stock and persists the finalized record as one
// atomic unit. Stock is consumed exclusively through a conditional decrement,
// so two concurrent submissions can never overdraw a medicine.
package invoices

import (
	"errors"
	"fmt"
	"time"
)

// Status enumerates invoice lifecycle states. Submit always produces a
// pending invoice; payment and cancellation transitions live elsewhere.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// LineItem is one invoice line. Immutable once the invoice is finalized.
type LineItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Invoice is a finalized, persisted invoice.
type Invoice struct {
	ID            int64      `json:"id"`
	InvoiceNumber string     `json:"invoice_number"`
	CustomerName  string     `json:"customer_name"`
	CustomerPhone *string    `json:"customer_phone,omitempty"`
	Items         []LineItem `json:"items"`
	TotalAmount   float64    `json:"total_amount"`
	Status        Status     `json:"status"`
	IssuedAt      time.Time  `json:"issued_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// StockEntry is the view of a medicine the workflow needs: quantity on hand
// and the catalog unit price.
type StockEntry struct {
	Name     string
	Quantity int
	Price    float64
}

// InvalidInputError reports a caller-correctable request shape problem.
// Item is the 1-based index of the offending line item, or 0 when the
// problem is not item-specific.
type InvalidInputError struct {
	Field string
	Item  int
	Msg   string
}

func (e *InvalidInputError) Error() string {
	if e.Item > 0 {
		return fmt.Sprintf("invalid input: %s (item %d): %s", e.Field, e.Item, e.Msg)
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Msg)
}

// MedicineNotFoundError reports a line item referencing a medicine that is
// not in the inventory.
type MedicineNotFoundError struct {
	Name string
}

func (e *MedicineNotFoundError) Error() string {
	return fmt.Sprintf("medicine %q not in inventory", e.Name)
}

// InsufficientStockError reports that stock was unavailable, whether observed
// at pre-check or at the atomic decrement.
type InsufficientStockError struct {
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d", e.Name, e.Requested, e.Available)
}

// TotalMismatchError reports a declared total that disagrees with the
// server-computed total. Always a hard error; the caller must not assert a
// total that disagrees with the line items.
type TotalMismatchError struct {
	Declared float64
	Computed float64
}

func (e *TotalMismatchError) Error() string {
	return fmt.Sprintf("declared total %.2f does not match computed total %.2f", e.Declared, e.Computed)
}

// StoreUnavailableError reports an infrastructural persistence failure.
// Nothing was committed; the whole submit call is safe to retry.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

var (
	// ErrNotFound indicates the requested invoice does not exist.
	ErrNotFound = errors.New("invoices: not found")
	// ErrDuplicateNumber indicates a generated invoice number collided with
	// an existing record. Handled internally by bounded regeneration.
	ErrDuplicateNumber = errors.New("invoices: invoice number already exists")
)
