// Package store provides the inventory and sales storage used by the checkout flow.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a sellable item. Only StockQuantity is mutated by checkout, and
// only through UnitOfWork.DecrementStock.
type Product struct {
	ID            uuid.UUID
	Name          string
	Price         decimal.Decimal
	StockQuantity int32
	CreatedAt     time.Time
}

// Sale is the immutable record of a committed checkout.
type Sale struct {
	ID             uuid.UUID
	TotalAmount    decimal.Decimal
	AmountReceived decimal.Decimal
	ChangeAmount   decimal.Decimal
	CreatedAt      time.Time
}

// ProductFinder looks products up by ID.
type ProductFinder interface {
	// FindByID retrieves a single product by its unique identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
}

// UnitOfWork is the set of writes available inside one atomic unit.
type UnitOfWork interface {
	// InsertSale records a sale and returns it with its generated ID and timestamp.
	// A non-empty checkoutKey may be used by one sale only; reusing it returns
	// ErrAlreadyCheckedOut. An empty key is never checked.
	InsertSale(ctx context.Context, checkoutKey string, total, received, change decimal.Decimal) (*Sale, error)

	// DecrementStock subtracts quantity from the product's stock only if at least
	// quantity remains, as one atomic read-modify-write. It returns the number
	// of affected rows; zero means the stock was insufficient (or the product is gone).
	DecrementStock(ctx context.Context, productID uuid.UUID, quantity int32) (int64, error)
}

// InventoryStore is an interface for product and sale storage operations.
// It abstracts the underlying data store, allowing for different implementations (e.g., in-memory, database).
type InventoryStore interface {
	ProductFinder

	// Search returns in-stock products whose name contains name (case-insensitive), ordered by name.
	// An empty name matches every in-stock product.
	Search(ctx context.Context, name string, offset, limit int32) ([]Product, error)

	// Create adds a new product. Used for seeding; product management is not part of checkout.
	Create(ctx context.Context, name string, price decimal.Decimal, stock int32) (*Product, error)

	// FindSale retrieves a recorded sale.
	// Returns ErrSaleNotFound if no sale exists with the given ID.
	FindSale(ctx context.Context, id uuid.UUID) (*Sale, error)

	// WithinTx runs fn inside one atomic unit. The unit commits only if fn
	// returns nil; any error (or panic) rolls every effect back.
	WithinTx(ctx context.Context, fn func(uow UnitOfWork) error) error
}
