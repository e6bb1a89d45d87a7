// Package checkout commits a cart as a sale: it validates the payment, then
// records the sale and deducts stock for every line in one atomic unit.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/abgdnv/gopos/internal/cart"
	checkouterrors "github.com/abgdnv/gopos/internal/errors"
	"github.com/abgdnv/gopos/internal/store"
	"github.com/shopspring/decimal"
)

// State is the phase of a single commit attempt.
type State string

const (
	StateValidating State = "Validating"
	StateCommitting State = "Committing"
	StateCommitted  State = "Committed"
	StateRolledBack State = "RolledBack"
)

// moneyScale is the number of fractional digits stored for amounts.
const moneyScale = 2

// maxAmount is the first value that no longer fits NUMERIC(12,2).
var maxAmount = decimal.New(1, 10)

// TxRunner runs fn inside one atomic unit of work.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(uow store.UnitOfWork) error) error
}

// Manager commits carts against the inventory store.
type Manager struct {
	store  TxRunner
	logger *slog.Logger
}

func NewManager(store TxRunner, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger.With("component", "checkout"),
	}
}

// Commit validates amountReceived against the cart total and, if the payment covers it,
// inserts the sale and decrements stock for each line. Checks run in order and the first
// failure is returned: ErrInvalidPayment, ErrEmptyCart, ErrMalformedCart, then *ShortfallError.
//
// Every stock decrement is conditional. If one of them finds too little stock the whole
// unit is rolled back and a *ConflictError is returned. The cart is cleared only after the
// unit has committed; on any error it is left as it was.
//
// Once the unit has begun it runs to completion: cancellation of ctx is not propagated into it.
func (m *Manager) Commit(ctx context.Context, c *cart.Cart, amountReceived string) (*store.Sale, error) {
	return m.CommitOnce(ctx, "", c, amountReceived)
}

// CommitOnce is Commit with a checkout key recorded alongside the sale. A second commit
// with the same key is refused with ErrAlreadyCheckedOut and changes nothing.
func (m *Manager) CommitOnce(ctx context.Context, checkoutKey string, c *cart.Cart, amountReceived string) (*store.Sale, error) {
	m.logger.DebugContext(ctx, "checkout state", "state", StateValidating, "lines", c.Len(), "checkout_key", checkoutKey)

	received, err := ParseAmount(amountReceived)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, checkouterrors.ErrEmptyCart
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	lines := c.Lines()
	total := cart.Total(lines)
	change := received.Sub(total)
	if change.IsNegative() {
		return nil, &checkouterrors.ShortfallError{Total: total, Received: received, Shortfall: change.Neg()}
	}

	m.logger.DebugContext(ctx, "checkout state", "state", StateCommitting, "total", total.StringFixed(moneyScale))

	var sale *store.Sale
	txCtx := context.WithoutCancel(ctx)
	err = m.store.WithinTx(txCtx, func(uow store.UnitOfWork) error {
		var err error
		sale, err = uow.InsertSale(txCtx, checkoutKey, total, received, change)
		if err != nil {
			return err
		}
		for _, line := range lines {
			rows, err := uow.DecrementStock(txCtx, line.ProductID, line.Quantity)
			if err != nil {
				return err
			}
			if rows == 0 {
				return &checkouterrors.ConflictError{ProductID: line.ProductID, ProductName: line.ProductName}
			}
		}
		return nil
	})
	if err != nil {
		m.logRollback(ctx, err)
		return nil, err
	}

	c.Clear()
	m.logger.InfoContext(ctx, "checkout state", "state", StateCommitted,
		"sale_id", sale.ID, "total", sale.TotalAmount.StringFixed(moneyScale), "change", sale.ChangeAmount.StringFixed(moneyScale))
	return sale, nil
}

func (m *Manager) logRollback(ctx context.Context, err error) {
	var conflict *checkouterrors.ConflictError
	if errors.As(err, &conflict) {
		m.logger.WarnContext(ctx, "checkout state", "state", StateRolledBack,
			"product_id", conflict.ProductID, "product_name", conflict.ProductName, "error", err)
		return
	}
	if errors.Is(err, checkouterrors.ErrAlreadyCheckedOut) {
		m.logger.WarnContext(ctx, "checkout state", "state", StateRolledBack, "error", err)
		return
	}
	m.logger.ErrorContext(ctx, "checkout state", "state", StateRolledBack, "error", err)
}

// ParseAmount interprets s as a positive amount of money in plain decimal notation,
// with at most two fractional digits and at most ten integer digits.
func ParseAmount(s string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(s)
	if strings.ContainsAny(trimmed, "eE") {
		return decimal.Zero, fmt.Errorf("%q: %w", s, checkouterrors.ErrInvalidPayment)
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q: %w", s, checkouterrors.ErrInvalidPayment)
	}
	if !amount.IsPositive() || !amount.Equal(amount.Truncate(moneyScale)) || amount.GreaterThanOrEqual(maxAmount) {
		return decimal.Zero, fmt.Errorf("%q: %w", s, checkouterrors.ErrInvalidPayment)
	}
	return amount, nil
}
