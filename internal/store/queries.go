package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries holds the SQL used by PgStore. Money is exchanged as text and cast
// to NUMERIC in SQL, which keeps decimal values exact in both directions.
type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const productColumns = `id, name, price::text, stock_quantity, created_at`

const findProductByID = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

func (q *Queries) FindProductByID(ctx context.Context, id uuid.UUID) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, findProductByID, id))
}

const searchProducts = `SELECT ` + productColumns + ` FROM products
WHERE stock_quantity > 0 AND name ILIKE '%' || $1 || '%'
ORDER BY name
OFFSET $2 LIMIT $3`

func (q *Queries) SearchProducts(ctx context.Context, name string, offset, limit int32) ([]Product, error) {
	rows, err := q.db.Query(ctx, searchProducts, escapeLike(name), offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

const createProduct = `INSERT INTO products (name, price, stock_quantity)
VALUES ($1, $2::numeric, $3)
RETURNING ` + productColumns

func (q *Queries) CreateProduct(ctx context.Context, name string, price decimal.Decimal, stock int32) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, createProduct, name, price.String(), stock))
}

const decrementStock = `UPDATE products
SET stock_quantity = stock_quantity - $2
WHERE id = $1 AND stock_quantity >= $2`

func (q *Queries) DecrementStock(ctx context.Context, id uuid.UUID, quantity int32) (int64, error) {
	tag, err := q.db.Exec(ctx, decrementStock, id, quantity)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const saleColumns = `id, total_amount::text, amount_received::text, change_amount::text, created_at`

const insertSale = `INSERT INTO sales (checkout_key, total_amount, amount_received, change_amount)
VALUES (NULLIF($1, ''), $2::numeric, $3::numeric, $4::numeric)
RETURNING ` + saleColumns

func (q *Queries) InsertSale(ctx context.Context, checkoutKey string, total, received, change decimal.Decimal) (Sale, error) {
	return scanSale(q.db.QueryRow(ctx, insertSale, checkoutKey, total.String(), received.String(), change.String()))
}

const findSaleByID = `SELECT ` + saleColumns + ` FROM sales WHERE id = $1`

func (q *Queries) FindSaleByID(ctx context.Context, id uuid.UUID) (Sale, error) {
	return scanSale(q.db.QueryRow(ctx, findSaleByID, id))
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p     Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.StockQuantity, &p.CreatedAt); err != nil {
		return Product{}, err
	}
	var err error
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return Product{}, fmt.Errorf("invalid price %q: %w", price, err)
	}
	return p, nil
}

func scanSale(row pgx.Row) (Sale, error) {
	var (
		s                       Sale
		total, received, change string
	)
	if err := row.Scan(&s.ID, &total, &received, &change, &s.CreatedAt); err != nil {
		return Sale{}, err
	}
	amounts := []struct {
		raw string
		dst *decimal.Decimal
	}{{total, &s.TotalAmount}, {received, &s.AmountReceived}, {change, &s.ChangeAmount}}
	for _, a := range amounts {
		d, err := decimal.NewFromString(a.raw)
		if err != nil {
			return Sale{}, fmt.Errorf("invalid amount %q: %w", a.raw, err)
		}
		*a.dst = d
	}
	return s, nil
}

// escapeLike escapes LIKE wildcards so user input is matched literally.
func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '\\', '%', '_':
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
