package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/abgdnv/gopos/internal/service"
	"github.com/abgdnv/gopos/internal/session"
	"github.com/abgdnv/gopos/internal/store"
	"github.com/abgdnv/gopos/pkg/messaging"
	"github.com/abgdnv/gopos/pkg/web"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []messaging.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event messaging.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// CheckoutE2ESuite drives the full HTTP stack against the in-memory inventory and a miniredis session store.
type CheckoutE2ESuite struct {
	suite.Suite
	miniRedis *miniredis.Miniredis
	redis     *redis.Client
	inventory *store.MemoryStore
	publisher *recordingPublisher
	server    *httptest.Server
	client    *http.Client
	ctx       context.Context
}

func TestCheckoutE2E(t *testing.T) {
	suite.Run(t, new(CheckoutE2ESuite))
}

func (s *CheckoutE2ESuite) SetupSuite() {
	s.ctx = context.Background()
	s.miniRedis = miniredis.RunT(s.T())
	s.redis = redis.NewClient(&redis.Options{Addr: s.miniRedis.Addr()})
	s.client = &http.Client{Timeout: 10 * time.Second}
}

func (s *CheckoutE2ESuite) TearDownSuite() {
	_ = s.redis.Close()
}

func (s *CheckoutE2ESuite) SetupTest() {
	s.miniRedis.FlushAll()
	s.inventory = store.NewMemoryStore()
	s.publisher = &recordingPublisher{}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	deps := SetupDependencies(s.inventory, session.NewRedisRepository(s.redis, time.Hour), s.publisher, logger)
	s.server = httptest.NewServer(SetupHttpHandler(deps))
}

func (s *CheckoutE2ESuite) TearDownTest() {
	s.server.Close()
}

func (s *CheckoutE2ESuite) seed(name, price string, stock int32) *store.Product {
	p, err := s.inventory.Create(s.ctx, name, decimal.RequireFromString(price), stock)
	s.Require().NoError(err)
	return p
}

func (s *CheckoutE2ESuite) do(method, path, sessionID string, body any, out any) int {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(s.ctx, method, s.server.URL+path, reader)
	s.Require().NoError(err)
	if sessionID != "" {
		req.Header.Set(web.XSessionId, sessionID)
	}
	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil && resp.StatusCode < 300 {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *CheckoutE2ESuite) newSession() string {
	var created map[string]string
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/api/v1/sessions", "", nil, &created))
	return created["session_id"]
}

func (s *CheckoutE2ESuite) TestFullCheckoutFlow() {
	coffee := s.seed("Coffee", "2.50", 10)
	bagel := s.seed("Bagel", "1.25", 4)
	tea := s.seed("Tea", "1.00", 3)
	sid := s.newSession()

	var products []service.ProductDto
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/api/v1/products", "", nil, &products))
	s.Len(products, 3)

	var cart service.CartDto
	s.Equal(http.StatusOK, s.do(http.MethodPost, "/api/v1/cart/items", sid, map[string]any{"product_id": coffee.ID, "quantity": 2}, &cart))
	s.Equal(http.StatusOK, s.do(http.MethodPost, "/api/v1/cart/items", sid, map[string]any{"product_id": tea.ID, "quantity": "1"}, &cart))
	s.Equal(http.StatusOK, s.do(http.MethodPost, "/api/v1/cart/items", sid, map[string]any{"product_id": bagel.ID, "quantity": 3}, &cart))
	s.Require().Len(cart.Lines, 3)

	// remove tea by position; bagel moves to index 1
	s.Equal(http.StatusOK, s.do(http.MethodDelete, "/api/v1/cart/items/1", sid, nil, &cart))
	s.Require().Len(cart.Lines, 2)
	s.Equal(bagel.ID, cart.Lines[1].ProductID)
	s.Equal(1, cart.Lines[1].Index)

	var total map[string]string
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/api/v1/cart/total", sid, nil, &total))
	s.Equal("8.75", total["total"])

	s.Equal(http.StatusUnprocessableEntity, s.do(http.MethodPost, "/api/v1/checkout", sid, map[string]string{"amount_received": "8.74"}, nil))
	s.Equal(int32(10), s.inventory.StockOf(coffee.ID))

	var sale service.SaleDto
	s.Equal(http.StatusCreated, s.do(http.MethodPost, "/api/v1/checkout", sid, map[string]string{"amount_received": "10"}, &sale))
	s.Equal("8.75", sale.TotalAmount)
	s.Equal("1.25", sale.ChangeAmount)
	s.Equal(int32(8), s.inventory.StockOf(coffee.ID))
	s.Equal(int32(1), s.inventory.StockOf(bagel.ID))
	s.Equal(int32(3), s.inventory.StockOf(tea.ID))
	s.Equal(1, s.publisher.count())

	s.Equal(http.StatusOK, s.do(http.MethodGet, "/api/v1/cart", sid, nil, &cart))
	s.Empty(cart.Lines)

	var found service.SaleDto
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/api/v1/sales/"+sale.ID.String(), "", nil, &found))
	s.Equal(sale, found)

	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/api/v1/checkout", sid, map[string]string{"amount_received": "10"}, nil))
}

func (s *CheckoutE2ESuite) TestMergeBeyondStockKeepsLine() {
	coffee := s.seed("Coffee", "2.50", 10)
	sid := s.newSession()

	var cart service.CartDto
	s.Equal(http.StatusOK, s.do(http.MethodPost, "/api/v1/cart/items", sid, map[string]any{"product_id": coffee.ID, "quantity": 6}, &cart))
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/api/v1/cart/items", sid, map[string]any{"product_id": coffee.ID, "quantity": 5}, nil))

	s.Equal(http.StatusOK, s.do(http.MethodGet, "/api/v1/cart", sid, nil, &cart))
	s.Require().Len(cart.Lines, 1)
	s.Equal(int32(6), cart.Lines[0].Quantity)
}

func (s *CheckoutE2ESuite) TestConcurrentCheckoutsForLastUnit() {
	croissant := s.seed("Croissant", "3.00", 1)
	sessions := []string{s.newSession(), s.newSession()}
	for _, sid := range sessions {
		s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/api/v1/cart/items", sid, map[string]any{"product_id": croissant.ID, "quantity": 1}, nil))
	}

	statuses := make([]int, len(sessions))
	var wg sync.WaitGroup
	for i, sid := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			statuses[i] = s.postCheckout(sid)
		}()
	}
	wg.Wait()

	s.ElementsMatch([]int{http.StatusCreated, http.StatusConflict}, statuses)
	s.Equal(int32(0), s.inventory.StockOf(croissant.ID))
	s.Equal(1, s.inventory.SalesCount())
}

// postCheckout is safe to call from several goroutines.
func (s *CheckoutE2ESuite) postCheckout(sid string) int {
	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, s.server.URL+"/api/v1/checkout", bytes.NewReader([]byte(`{"amount_received":"5"}`)))
	if err != nil {
		return 0
	}
	req.Header.Set(web.XSessionId, sid)
	resp, err := s.client.Do(req)
	if err != nil {
		return 0
	}
	_ = resp.Body.Close()
	return resp.StatusCode
}

func (s *CheckoutE2ESuite) TestSessionRequired() {
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/cart", "", nil, nil))
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/cart", "not-a-uuid", nil, nil))
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/v1/cart", "3f2504e0-4f89-11d3-9a0c-0305e82c3301", nil, nil))
}
