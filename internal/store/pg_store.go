package store

import (
	"context"
	"errors"
	"fmt"

	checkouterrors "github.com/abgdnv/gopos/internal/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var _ InventoryStore = (*PgStore)(nil)

const (
	uniqueViolation       = "23505"
	checkoutKeyConstraint = "sales_checkout_key_unique"
)

// PgStore implements InventoryStore using PostgreSQL as the data store.
type PgStore struct {
	db *pgxpool.Pool
	q  *Queries
}

// NewPgStore creates a new instance of InventoryStore using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{
		db: dbp,
		q:  NewQueries(dbp),
	}
}

// FindByID retrieves a product by its unique identifier.
// Returns ErrProductNotFound if no product exists with the given ID.
func (p *PgStore) FindByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	product, err := p.q.FindProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checkouterrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("%w: %w", checkouterrors.ErrFailedToFindProduct, err)
	}
	return &product, nil
}

// Search retrieves in-stock products matching name with pagination support.
func (p *PgStore) Search(ctx context.Context, name string, offset, limit int32) ([]Product, error) {
	products, err := p.q.SearchProducts(ctx, name, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	return products, nil
}

// Create adds a new product to the system.
func (p *PgStore) Create(ctx context.Context, name string, price decimal.Decimal, stock int32) (*Product, error) {
	product, err := p.q.CreateProduct(ctx, name, price, stock)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return &product, nil
}

// FindSale retrieves a sale by its unique identifier.
// Returns ErrSaleNotFound if no sale exists with the given ID.
func (p *PgStore) FindSale(ctx context.Context, id uuid.UUID) (*Sale, error) {
	sale, err := p.q.FindSaleByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checkouterrors.ErrSaleNotFound
		}
		return nil, fmt.Errorf("%w: %w", checkouterrors.ErrFailedToFindSale, err)
	}
	return &sale, nil
}

// WithinTx runs fn in a READ COMMITTED transaction. The conditional decrement
// in DecrementStock relies on PostgreSQL re-evaluating its WHERE clause against
// the latest committed row version after waiting on a concurrent writer.
func (p *PgStore) WithinTx(ctx context.Context, fn func(uow UnitOfWork) error) error {
	return p.withTransaction(ctx, func(qtx *Queries) error {
		return fn(&pgUnitOfWork{q: qtx})
	})
}

func (p *PgStore) withTransaction(ctx context.Context, fn func(qtx *Queries) error) error {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: %w", checkouterrors.ErrTransactionBegin, err)
	}
	qtx := p.q.WithTx(tx)

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(r)
		}
	}()

	if err := fn(qtx); err != nil {
		// Rollback must run even if ctx was cancelled mid-commit.
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("%w: %w", checkouterrors.ErrTransactionRollback, rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", checkouterrors.ErrTransactionCommit, err)
	}
	return nil
}

type pgUnitOfWork struct {
	q *Queries
}

func (u *pgUnitOfWork) InsertSale(ctx context.Context, checkoutKey string, total, received, change decimal.Decimal) (*Sale, error) {
	sale, err := u.q.InsertSale(ctx, checkoutKey, total, received, change)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == checkoutKeyConstraint {
			return nil, fmt.Errorf("checkout %s: %w", checkoutKey, checkouterrors.ErrAlreadyCheckedOut)
		}
		return nil, fmt.Errorf("%w: %w", checkouterrors.ErrCreateSale, err)
	}
	return &sale, nil
}

func (u *pgUnitOfWork) DecrementStock(ctx context.Context, productID uuid.UUID, quantity int32) (int64, error) {
	rows, err := u.q.DecrementStock(ctx, productID, quantity)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", checkouterrors.ErrDecrementStock, err)
	}
	return rows, nil
}
