// Package customers manages the pharmacy's customer records.
package customers

import (
	"errors"
	"time"
)

// Address is the structured postal address carried on a customer record.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Pincode string `json:"pincode,omitempty"`
}

// Customer is a persisted customer record. Phone numbers are unique.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     *string   `json:"email,omitempty"`
	Address   Address   `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	// ErrNotFound indicates the customer does not exist.
	ErrNotFound = errors.New("customers: not found")
	// ErrPhoneTaken indicates another customer already uses the phone number.
	ErrPhoneTaken = errors.New("customers: phone already exists")
)
