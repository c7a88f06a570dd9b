// Package medicines owns the pharmacy stock: one row per medicine tracking
// quantity on hand, unit price and expiry. Stock is only ever decremented
// through the invoice workflow's conditional decrement; this package covers
// inventory management CRUD.
package medicines

import (
	"errors"
	"time"
)

// Medicine is a stock entry keyed by its unique name.
type Medicine struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"`
	Expiry    time.Time `json:"expiry"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListFilter narrows medicine listings.
type ListFilter struct {
	Search   string
	MaxStock *int
	Limit    int
	Offset   int
}

var (
	// ErrNotFound indicates the medicine does not exist.
	ErrNotFound = errors.New("medicines: not found")
	// ErrNameTaken indicates another medicine already uses the name.
	ErrNameTaken = errors.New("medicines: name already exists")
)
