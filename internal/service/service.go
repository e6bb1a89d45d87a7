// Package service exposes cart and checkout operations per session.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abgdnv/gopos/internal/cart"
	"github.com/abgdnv/gopos/internal/checkout"
	checkouterrors "github.com/abgdnv/gopos/internal/errors"
	"github.com/abgdnv/gopos/internal/session"
	"github.com/abgdnv/gopos/internal/store"
	"github.com/abgdnv/gopos/pkg/messaging"
	"github.com/abgdnv/gopos/pkg/messaging/events"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
)

// CheckoutService is the cart and checkout API used by the transport layer.
// Every cart operation addresses the cart of one session.
type CheckoutService interface {
	// NewSession starts a session with an empty cart.
	NewSession(ctx context.Context) (string, error)

	// GetCart returns the session's cart with its total.
	// Returns ErrSessionNotFound if the session does not exist.
	GetCart(ctx context.Context, sessionID string) (*CartDto, error)

	// AddToCart adds quantity units of a product, merging with an existing line.
	AddToCart(ctx context.Context, sessionID string, productID uuid.UUID, quantity string) (*CartDto, error)

	// RemoveFromCart removes the line at index. Remaining lines are re-indexed from zero.
	RemoveFromCart(ctx context.Context, sessionID string, index int) (*CartDto, error)

	// RemoveLine removes the line with the given ID.
	RemoveLine(ctx context.Context, sessionID string, lineID uuid.UUID) (*CartDto, error)

	// CartTotal returns the sum of the cart's line subtotals.
	CartTotal(ctx context.Context, sessionID string) (decimal.Decimal, error)

	// Checkout commits the session's cart as a sale paid with amountReceived.
	Checkout(ctx context.Context, sessionID string, amountReceived string) (*SaleDto, error)

	// SearchProducts lists in-stock products whose name contains name.
	SearchProducts(ctx context.Context, name string, offset, limit int32) ([]ProductDto, error)

	// FindSale returns a recorded sale.
	// Returns ErrSaleNotFound if no sale exists with the given ID.
	FindSale(ctx context.Context, id uuid.UUID) (*SaleDto, error)
}

// Service implements CheckoutService on top of a session repository and the inventory store.
type Service struct {
	sessions        session.Repository
	inventory       store.InventoryStore
	manager         *checkout.Manager
	publisher       messaging.Publisher
	logger          *slog.Logger
	salesCounter    metric.Int64Counter
	failuresCounter metric.Int64Counter
}

// NewService creates a new instance of CheckoutService.
func NewService(sessions session.Repository, inventory store.InventoryStore, publisher messaging.Publisher, logger *slog.Logger) *Service {
	meter := otel.Meter("checkout-service")
	salesCounter, err := meter.Int64Counter("sales_completed", metric.WithDescription("Total number of committed sales"))
	if err != nil {
		panic(fmt.Sprintf("failed to create sales_completed counter: %v", err))
	}
	failuresCounter, err := meter.Int64Counter("checkout_failures", metric.WithDescription("Total number of failed checkout attempts"))
	if err != nil {
		panic(fmt.Sprintf("failed to create checkout_failures counter: %v", err))
	}
	return &Service{
		sessions:        sessions,
		inventory:       inventory,
		manager:         checkout.NewManager(inventory, logger),
		publisher:       publisher,
		logger:          logger.With("component", "service"),
		salesCounter:    salesCounter,
		failuresCounter: failuresCounter,
	}
}

// LineDto is a cart line as shown to the shopper. Index is the line's current position.
type LineDto struct {
	Index       int       `json:"index"`
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	UnitPrice   string    `json:"unit_price"`
	Quantity    int32     `json:"quantity"`
	Subtotal    string    `json:"subtotal"`
}

type CartDto struct {
	Lines []LineDto `json:"lines"`
	Total string    `json:"total"`
}

type SaleDto struct {
	ID             uuid.UUID `json:"id"`
	TotalAmount    string    `json:"total_amount"`
	AmountReceived string    `json:"amount_received"`
	ChangeAmount   string    `json:"change_amount"`
	CreatedAt      string    `json:"created_at"`
}

type ProductDto struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Price         string    `json:"price"`
	StockQuantity int32     `json:"stock_quantity"`
}

func (s *Service) NewSession(ctx context.Context) (string, error) {
	id, err := s.sessions.Create(ctx)
	if err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "Session created", "session_id", id)
	return id, nil
}

func (s *Service) GetCart(ctx context.Context, sessionID string) (*CartDto, error) {
	c, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return toCartDto(c), nil
}

func (s *Service) AddToCart(ctx context.Context, sessionID string, productID uuid.UUID, quantity string) (*CartDto, error) {
	return s.mutate(ctx, sessionID, func(c *cart.Cart) error {
		line, err := c.Add(ctx, s.inventory, productID, quantity)
		if err != nil {
			return err
		}
		s.logger.DebugContext(ctx, "Cart line updated", "product_id", productID, "quantity", line.Quantity)
		return nil
	})
}

func (s *Service) RemoveFromCart(ctx context.Context, sessionID string, index int) (*CartDto, error) {
	return s.mutate(ctx, sessionID, func(c *cart.Cart) error {
		_, err := c.Remove(index)
		return err
	})
}

func (s *Service) RemoveLine(ctx context.Context, sessionID string, lineID uuid.UUID) (*CartDto, error) {
	return s.mutate(ctx, sessionID, func(c *cart.Cart) error {
		_, err := c.RemoveLine(lineID)
		return err
	})
}

func (s *Service) CartTotal(ctx context.Context, sessionID string) (decimal.Decimal, error) {
	c, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return decimal.Zero, err
	}
	return c.Total(), nil
}

// Checkout commits the cart and then stores the cleared cart. A failed commit leaves
// the stored cart as it was. Publishing the SaleCompletedEvent is best effort.
//
// Each cart revision of a session can be sold once. If the cleared cart could not be
// stored after a sale, retrying the checkout is refused with ErrAlreadyCheckedOut and
// the stale cart is cleared then.
func (s *Service) Checkout(ctx context.Context, sessionID string, amountReceived string) (*SaleDto, error) {
	c, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		s.failuresCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", failureReason(err))))
		return nil, err
	}
	lines := c.Lines()

	sale, err := s.manager.CommitOnce(ctx, checkoutKey(sessionID, c), c, amountReceived)
	if err != nil {
		s.failuresCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", failureReason(err))))
		if errors.Is(err, checkouterrors.ErrAlreadyCheckedOut) {
			c.Clear()
			if saveErr := s.sessions.Save(ctx, sessionID, c); saveErr != nil {
				s.logger.ErrorContext(ctx, "Failed to clear already sold cart", "error", saveErr)
			}
		}
		return nil, err
	}
	s.salesCounter.Add(ctx, 1)

	// The sale is durable at this point; a failed save only leaves stale lines in the session.
	if err := s.sessions.Save(ctx, sessionID, c); err != nil {
		s.logger.ErrorContext(ctx, "Failed to clear cart after checkout", "sale_id", sale.ID, "error", err)
	}

	s.publishSaleCompleted(ctx, sale, lines)
	return toSaleDto(sale), nil
}

func (s *Service) SearchProducts(ctx context.Context, name string, offset, limit int32) ([]ProductDto, error) {
	products, err := s.inventory.Search(ctx, name, offset, limit)
	if err != nil {
		return nil, err
	}
	dtos := make([]ProductDto, len(products))
	for i, p := range products {
		dtos[i] = ProductDto{ID: p.ID, Name: p.Name, Price: p.Price.StringFixed(2), StockQuantity: p.StockQuantity}
	}
	return dtos, nil
}

func (s *Service) FindSale(ctx context.Context, id uuid.UUID) (*SaleDto, error) {
	sale, err := s.inventory.FindSale(ctx, id)
	if err != nil {
		return nil, err
	}
	return toSaleDto(sale), nil
}

// mutate loads the cart, applies fn and saves the cart only if fn succeeded.
func (s *Service) mutate(ctx context.Context, sessionID string, fn func(c *cart.Cart) error) (*CartDto, error) {
	c, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, sessionID, c); err != nil {
		return nil, err
	}
	return toCartDto(c), nil
}

func (s *Service) publishSaleCompleted(ctx context.Context, sale *store.Sale, lines []cart.Line) {
	carrier := make(propagation.MapCarrier)
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	saleLines := make([]events.SaleLine, len(lines))
	for i, l := range lines {
		saleLines[i] = events.SaleLine{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice, Subtotal: l.Subtotal}
	}
	event := events.SaleCompletedEvent{
		Carrier:        carrier,
		SaleID:         sale.ID,
		TotalAmount:    sale.TotalAmount,
		AmountReceived: sale.AmountReceived,
		ChangeAmount:   sale.ChangeAmount,
		Lines:          saleLines,
		CreatedAt:      sale.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish SaleCompletedEvent", "sale_id", sale.ID, "error", err)
		return
	}
	s.logger.DebugContext(ctx, "SaleCompletedEvent published", "sale_id", sale.ID)
}

// checkoutKey names one revision of a session's cart.
func checkoutKey(sessionID string, c *cart.Cart) string {
	return fmt.Sprintf("%s:%d", sessionID, c.Revision())
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, checkouterrors.ErrInvalidPayment):
		return "invalid_payment"
	case errors.Is(err, checkouterrors.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, checkouterrors.ErrInsufficientPayment):
		return "insufficient_payment"
	case errors.Is(err, checkouterrors.ErrStockConflict):
		return "stock_conflict"
	case errors.Is(err, checkouterrors.ErrMalformedCart):
		return "malformed_cart"
	case errors.Is(err, checkouterrors.ErrAlreadyCheckedOut):
		return "already_checked_out"
	case errors.Is(err, checkouterrors.ErrSessionNotFound):
		return "session_not_found"
	default:
		return "internal"
	}
}

func toCartDto(c *cart.Cart) *CartDto {
	lines := c.Lines()
	dto := &CartDto{Lines: make([]LineDto, len(lines)), Total: cart.Total(lines).StringFixed(2)}
	for i, l := range lines {
		dto.Lines[i] = LineDto{
			Index:       i,
			ID:          l.ID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			UnitPrice:   l.UnitPrice.StringFixed(2),
			Quantity:    l.Quantity,
			Subtotal:    l.Subtotal.StringFixed(2),
		}
	}
	return dto
}

func toSaleDto(sale *store.Sale) *SaleDto {
	return &SaleDto{
		ID:             sale.ID,
		TotalAmount:    sale.TotalAmount.StringFixed(2),
		AmountReceived: sale.AmountReceived.StringFixed(2),
		ChangeAmount:   sale.ChangeAmount.StringFixed(2),
		CreatedAt:      sale.CreatedAt.Format(time.RFC3339),
	}
}
