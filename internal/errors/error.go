// Package errors provides the error values returned by cart and checkout operations.
package errors

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Quantity validation.
var ErrNotNumeric = errors.New("quantity must be a whole number")
var ErrNonPositive = errors.New("quantity must be greater than zero")
var ErrExceedsStock = errors.New("quantity exceeds available stock")

var ErrProductNotFound = errors.New("product not found")
var ErrFailedToFindProduct = errors.New("failed to find product")
var ErrIndexOutOfRange = errors.New("cart line index out of range")
var ErrLineNotFound = errors.New("cart line not found")

// Checkout preconditions.
var ErrInvalidPayment = errors.New("amount received must be a positive number")
var ErrEmptyCart = errors.New("cart is empty")
var ErrInsufficientPayment = errors.New("amount received is less than the total")
var ErrStockConflict = errors.New("stock conflict: product was sold by a concurrent checkout")
var ErrMalformedCart = errors.New("cart holds a malformed line")
var ErrAlreadyCheckedOut = errors.New("cart was already checked out")

var ErrCreateSale = errors.New("failed to create sale")
var ErrSaleNotFound = errors.New("sale not found")
var ErrFailedToFindSale = errors.New("failed to find sale")
var ErrDecrementStock = errors.New("failed to decrement stock")

var ErrTransactionBegin = errors.New("failed to begin transaction")
var ErrTransactionCommit = errors.New("failed to commit transaction")
var ErrTransactionRollback = errors.New("failed to rollback transaction")

var ErrSessionNotFound = errors.New("session not found")

// StockError reports a requested quantity larger than the current stock.
type StockError struct {
	Requested int64
	Available int32
}

func (e *StockError) Error() string {
	return fmt.Sprintf("requested %d exceeds available stock (stock: %d)", e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrExceedsStock }

// ShortfallError reports how much money is missing to pay the total.
type ShortfallError struct {
	Total     decimal.Decimal
	Received  decimal.Decimal
	Shortfall decimal.Decimal
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("insufficient payment: total %s, received %s, short by %s",
		e.Total.StringFixed(2), e.Received.StringFixed(2), e.Shortfall.StringFixed(2))
}

func (e *ShortfallError) Unwrap() error { return ErrInsufficientPayment }

// ConflictError names the product whose conditional decrement affected no rows.
type ConflictError struct {
	ProductID   uuid.UUID
	ProductName string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q (%s)", e.ProductName, e.ProductID)
}

func (e *ConflictError) Unwrap() error { return ErrStockConflict }
