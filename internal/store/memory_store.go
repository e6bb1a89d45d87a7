package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	checkouterrors "github.com/abgdnv/gopos/internal/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var _ InventoryStore = (*MemoryStore)(nil)

// MemoryStore implements InventoryStore using in-memory maps.
// Units of work are serialized and stage their writes, so readers only ever
// observe committed state and an aborted unit leaves no trace.
type MemoryStore struct {
	txMu         sync.Mutex
	mu           sync.RWMutex
	products     map[uuid.UUID]Product
	sales        map[uuid.UUID]Sale
	checkoutKeys map[string]uuid.UUID
	now          func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:     make(map[uuid.UUID]Product),
		sales:        make(map[uuid.UUID]Sale),
		checkoutKeys: make(map[string]uuid.UUID),
		now:          time.Now,
	}
}

// FindByID retrieves a product by its ID.
func (s *MemoryStore) FindByID(_ context.Context, id uuid.UUID) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, checkouterrors.ErrProductNotFound
	}
	return &p, nil
}

// Search retrieves in-stock products whose name contains name, ordered by name.
func (s *MemoryStore) Search(_ context.Context, name string, offset, limit int32) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(name)
	list := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		if p.StockQuantity > 0 && strings.Contains(strings.ToLower(p.Name), needle) {
			list = append(list, p)
		}
	}
	slices.SortFunc(list, func(a, b Product) int { return strings.Compare(a.Name, b.Name) })

	if int(offset) >= len(list) {
		return []Product{}, nil
	}
	end := min(int(offset)+int(limit), len(list))
	return list[offset:end], nil
}

// Create creates a new product and returns it.
func (s *MemoryStore) Create(_ context.Context, name string, price decimal.Decimal, stock int32) (*Product, error) {
	if name == "" || price.IsNegative() || stock < 0 {
		return nil, fmt.Errorf("failed to create product: invalid name, price or stock")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.products {
		if p.Name == name {
			return nil, fmt.Errorf("failed to create product: name %q already exists", name)
		}
	}
	p := Product{
		ID:            uuid.New(),
		Name:          name,
		Price:         price,
		StockQuantity: stock,
		CreatedAt:     s.now(),
	}
	s.products[p.ID] = p
	return &p, nil
}

// FindSale retrieves a committed sale.
func (s *MemoryStore) FindSale(_ context.Context, id uuid.UUID) (*Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, checkouterrors.ErrSaleNotFound
	}
	return &sale, nil
}

// WithinTx runs fn against a staging unit and applies the staged writes only if fn succeeds.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(uow UnitOfWork) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	uow := &memUnitOfWork{store: s, decrements: make(map[uuid.UUID]int32), keys: make(map[string]uuid.UUID)}
	if err := fn(uow); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", checkouterrors.ErrTransactionCommit, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, qty := range uow.decrements {
		p := s.products[id]
		p.StockQuantity -= qty
		s.products[id] = p
	}
	for _, sale := range uow.sales {
		s.sales[sale.ID] = sale
	}
	for key, id := range uow.keys {
		s.checkoutKeys[key] = id
	}
	return nil
}

// StockOf returns the committed stock of a product, or -1 if it does not exist.
func (s *MemoryStore) StockOf(id uuid.UUID) int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return -1
	}
	return p.StockQuantity
}

// SalesCount returns the number of committed sales.
func (s *MemoryStore) SalesCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sales)
}

type memUnitOfWork struct {
	store      *MemoryStore
	decrements map[uuid.UUID]int32
	keys       map[string]uuid.UUID
	sales      []Sale
}

func (u *memUnitOfWork) InsertSale(_ context.Context, checkoutKey string, total, received, change decimal.Decimal) (*Sale, error) {
	if change.IsNegative() {
		return nil, fmt.Errorf("%w: negative change amount", checkouterrors.ErrCreateSale)
	}
	if checkoutKey != "" {
		u.store.mu.RLock()
		_, committed := u.store.checkoutKeys[checkoutKey]
		u.store.mu.RUnlock()
		if _, staged := u.keys[checkoutKey]; committed || staged {
			return nil, fmt.Errorf("checkout %s: %w", checkoutKey, checkouterrors.ErrAlreadyCheckedOut)
		}
	}
	sale := Sale{
		ID:             uuid.New(),
		TotalAmount:    total,
		AmountReceived: received,
		ChangeAmount:   change,
		CreatedAt:      u.store.now(),
	}
	u.sales = append(u.sales, sale)
	if checkoutKey != "" {
		u.keys[checkoutKey] = sale.ID
	}
	return &sale, nil
}

func (u *memUnitOfWork) DecrementStock(_ context.Context, productID uuid.UUID, quantity int32) (int64, error) {
	u.store.mu.RLock()
	p, ok := u.store.products[productID]
	u.store.mu.RUnlock()
	if !ok {
		return 0, nil
	}
	if p.StockQuantity-u.decrements[productID] < quantity {
		return 0, nil
	}
	u.decrements[productID] += quantity
	return 1, nil
}
