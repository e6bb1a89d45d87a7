package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	checkouterrors "github.com/abgdnv/gopos/internal/errors"
	"github.com/abgdnv/gopos/internal/service"
	"github.com/abgdnv/gopos/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCheckoutService is a mock implementation of the CheckoutService interface.
// It records the arguments of the last call.
type mockCheckoutService struct {
	cart     *service.CartDto
	sale     *service.SaleDto
	products []service.ProductDto
	total    decimal.Decimal
	error    error

	gotSessionID string
	gotQuantity  string
	gotAmount    string
	gotIndex     int
	gotProductID uuid.UUID
	gotLineID    uuid.UUID
	gotName      string
	gotOffset    int32
	gotLimit     int32
}

func (m *mockCheckoutService) NewSession(_ context.Context) (string, error) {
	if m.error != nil {
		return "", m.error
	}
	return "11111111-1111-1111-1111-111111111111", nil
}

func (m *mockCheckoutService) GetCart(_ context.Context, sessionID string) (*service.CartDto, error) {
	m.gotSessionID = sessionID
	if m.error != nil {
		return nil, m.error
	}
	return m.cart, nil
}

func (m *mockCheckoutService) AddToCart(_ context.Context, sessionID string, productID uuid.UUID, quantity string) (*service.CartDto, error) {
	m.gotSessionID, m.gotProductID, m.gotQuantity = sessionID, productID, quantity
	if m.error != nil {
		return nil, m.error
	}
	return m.cart, nil
}

func (m *mockCheckoutService) RemoveFromCart(_ context.Context, sessionID string, index int) (*service.CartDto, error) {
	m.gotSessionID, m.gotIndex = sessionID, index
	if m.error != nil {
		return nil, m.error
	}
	return m.cart, nil
}

func (m *mockCheckoutService) RemoveLine(_ context.Context, sessionID string, lineID uuid.UUID) (*service.CartDto, error) {
	m.gotSessionID, m.gotLineID = sessionID, lineID
	if m.error != nil {
		return nil, m.error
	}
	return m.cart, nil
}

func (m *mockCheckoutService) CartTotal(_ context.Context, sessionID string) (decimal.Decimal, error) {
	m.gotSessionID = sessionID
	if m.error != nil {
		return decimal.Zero, m.error
	}
	return m.total, nil
}

func (m *mockCheckoutService) Checkout(_ context.Context, sessionID string, amountReceived string) (*service.SaleDto, error) {
	m.gotSessionID, m.gotAmount = sessionID, amountReceived
	if m.error != nil {
		return nil, m.error
	}
	return m.sale, nil
}

func (m *mockCheckoutService) SearchProducts(_ context.Context, name string, offset, limit int32) ([]service.ProductDto, error) {
	m.gotName, m.gotOffset, m.gotLimit = name, offset, limit
	if m.error != nil {
		return nil, m.error
	}
	return m.products, nil
}

func (m *mockCheckoutService) FindSale(_ context.Context, _ uuid.UUID) (*service.SaleDto, error) {
	if m.error != nil {
		return nil, m.error
	}
	return m.sale, nil
}

type ErrorResponse struct {
	Error string `json:"error"`
}

const sessionID = "3f2504e0-4f89-11d3-9a0c-0305e82c3301"

var mockCart = &service.CartDto{
	Lines: []service.LineDto{{
		Index:       0,
		ID:          uuid.MustParse("123e4567-e89b-12d3-a456-426614174003"),
		ProductID:   uuid.MustParse("123e4567-e89b-12d3-a456-426614174002"),
		ProductName: "Coffee",
		UnitPrice:   "2.50",
		Quantity:    2,
		Subtotal:    "5.00",
	}},
	Total: "5.00",
}

var mockSale = &service.SaleDto{
	ID:             uuid.MustParse("123e4567-e89b-12d3-a456-426614174000"),
	TotalAmount:    "5.00",
	AmountReceived: "10.00",
	ChangeAmount:   "5.00",
	CreatedAt:      "2025-01-01T10:00:00Z",
}

func newTestRouter(svc service.CheckoutService) *chi.Mux {
	r := chi.NewRouter()
	NewHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).RegisterRoutes(r)
	return r
}

func doRequest(t *testing.T, r http.Handler, method, target, body string, withSession bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if withSession {
		req.Header.Set(web.XSessionId, sessionID)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func toJSON(t *testing.T, v any) string {
	t.Helper()
	bytes, err := json.Marshal(v)
	require.NoError(t, err)
	return string(bytes)
}

func Test_Handler_AddToCart(t *testing.T) {
	productID := "123e4567-e89b-12d3-a456-426614174002"

	testCases := []struct {
		name             string
		body             string
		withSession      bool
		serviceErr       error
		expectedStatus   int
		expectedQuantity string
		expectedBody     string
	}{
		{
			name:             "success with numeric quantity",
			body:             `{"product_id":"` + productID + `","quantity":2}`,
			withSession:      true,
			expectedStatus:   http.StatusOK,
			expectedQuantity: "2",
			expectedBody:     toJSON(t, mockCart),
		},
		{
			name:             "string quantity reaches the service unchanged",
			body:             `{"product_id":"` + productID + `","quantity":"abc"}`,
			withSession:      true,
			serviceErr:       checkouterrors.ErrNotNumeric,
			expectedStatus:   http.StatusBadRequest,
			expectedQuantity: "abc",
			expectedBody:     toJSON(t, ErrorResponse{Error: checkouterrors.ErrNotNumeric.Error()}),
		},
		{
			name:           "exceeds stock",
			body:           `{"product_id":"` + productID + `","quantity":5}`,
			withSession:    true,
			serviceErr:     &checkouterrors.StockError{Requested: 11, Available: 10},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   toJSON(t, ErrorResponse{Error: "requested 11 exceeds available stock (stock: 10)"}),
		},
		{
			name:           "unknown product",
			body:           `{"product_id":"` + productID + `","quantity":1}`,
			withSession:    true,
			serviceErr:     checkouterrors.ErrProductNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "missing quantity",
			body:           `{"product_id":"` + productID + `"}`,
			withSession:    true,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"validation_errors":{"Quantity":"failed on rule: required"}}`,
		},
		{
			name:           "malformed body",
			body:           `{"product_id":`,
			withSession:    true,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   toJSON(t, ErrorResponse{Error: "Invalid request body"}),
		},
		{
			name:           "missing session header",
			body:           `{"product_id":"` + productID + `","quantity":1}`,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "unknown session",
			body:           `{"product_id":"` + productID + `","quantity":1}`,
			withSession:    true,
			serviceErr:     checkouterrors.ErrSessionNotFound,
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mock := &mockCheckoutService{cart: mockCart, error: tc.serviceErr}
			rr := doRequest(t, newTestRouter(mock), http.MethodPost, "/api/v1/cart/items", tc.body, tc.withSession)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			if tc.expectedBody != "" {
				assert.JSONEq(t, tc.expectedBody, rr.Body.String())
			}
			if tc.expectedQuantity != "" {
				assert.Equal(t, tc.expectedQuantity, mock.gotQuantity)
				assert.Equal(t, sessionID, mock.gotSessionID)
			}
		})
	}
}

func Test_Handler_RemoveFromCart(t *testing.T) {
	testCases := []struct {
		name           string
		target         string
		serviceErr     error
		expectedStatus int
		expectedIndex  int
	}{
		{name: "success", target: "/api/v1/cart/items/1", expectedStatus: http.StatusOK, expectedIndex: 1},
		{name: "out of range", target: "/api/v1/cart/items/7", serviceErr: checkouterrors.ErrIndexOutOfRange, expectedStatus: http.StatusNotFound, expectedIndex: 7},
		{name: "negative index", target: "/api/v1/cart/items/-1", expectedStatus: http.StatusBadRequest},
		{name: "non numeric index", target: "/api/v1/cart/items/first", expectedStatus: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mock := &mockCheckoutService{cart: mockCart, error: tc.serviceErr, gotIndex: -1}
			rr := doRequest(t, newTestRouter(mock), http.MethodDelete, tc.target, "", true)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			if tc.expectedStatus != http.StatusBadRequest {
				assert.Equal(t, tc.expectedIndex, mock.gotIndex)
			} else {
				assert.Equal(t, -1, mock.gotIndex)
			}
		})
	}
}

func Test_Handler_RemoveLine(t *testing.T) {
	lineID := uuid.New()
	mock := &mockCheckoutService{cart: mockCart}
	r := newTestRouter(mock)

	rr := doRequest(t, r, http.MethodDelete, "/api/v1/cart/lines/"+lineID.String(), "", true)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, lineID, mock.gotLineID)

	rr = doRequest(t, r, http.MethodDelete, "/api/v1/cart/lines/not-a-uuid", "", true)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	mock.error = checkouterrors.ErrLineNotFound
	rr = doRequest(t, r, http.MethodDelete, "/api/v1/cart/lines/"+lineID.String(), "", true)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func Test_Handler_Checkout(t *testing.T) {
	testCases := []struct {
		name           string
		body           string
		serviceErr     error
		expectedStatus int
		expectedAmount string
		expectedBody   string
	}{
		{
			name:           "success",
			body:           `{"amount_received":"10.00"}`,
			expectedStatus: http.StatusCreated,
			expectedAmount: "10.00",
			expectedBody:   toJSON(t, mockSale),
		},
		{
			name:           "numeric amount",
			body:           `{"amount_received":10.5}`,
			expectedStatus: http.StatusCreated,
			expectedAmount: "10.5",
		},
		{
			name:           "invalid payment",
			body:           `{"amount_received":"-1"}`,
			serviceErr:     checkouterrors.ErrInvalidPayment,
			expectedStatus: http.StatusBadRequest,
			expectedAmount: "-1",
		},
		{
			name:           "empty cart",
			body:           `{"amount_received":"10"}`,
			serviceErr:     checkouterrors.ErrEmptyCart,
			expectedStatus: http.StatusBadRequest,
			expectedAmount: "10",
		},
		{
			name: "insufficient payment",
			body: `{"amount_received":"1"}`,
			serviceErr: &checkouterrors.ShortfallError{
				Total:     decimal.RequireFromString("5"),
				Received:  decimal.RequireFromString("1"),
				Shortfall: decimal.RequireFromString("4"),
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedAmount: "1",
			expectedBody:   toJSON(t, ErrorResponse{Error: "insufficient payment: total 5.00, received 1.00, short by 4.00"}),
		},
		{
			name:           "stock conflict",
			body:           `{"amount_received":"10"}`,
			serviceErr:     &checkouterrors.ConflictError{ProductID: uuid.New(), ProductName: "Coffee"},
			expectedStatus: http.StatusConflict,
			expectedAmount: "10",
		},
		{
			name:           "malformed cart",
			body:           `{"amount_received":"10"}`,
			serviceErr:     fmt.Errorf("line 0 (Tea, quantity -3): %w", checkouterrors.ErrMalformedCart),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedAmount: "10",
		},
		{
			name:           "already checked out",
			body:           `{"amount_received":"10"}`,
			serviceErr:     fmt.Errorf("checkout s:1: %w", checkouterrors.ErrAlreadyCheckedOut),
			expectedStatus: http.StatusConflict,
			expectedAmount: "10",
		},
		{
			name:           "storage failure is not exposed",
			body:           `{"amount_received":"10"}`,
			serviceErr:     errors.New("connection refused"),
			expectedStatus: http.StatusInternalServerError,
			expectedAmount: "10",
			expectedBody:   toJSON(t, ErrorResponse{Error: "Checkout failed"}),
		},
		{
			name:           "missing amount",
			body:           `{}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"validation_errors":{"AmountReceived":"failed on rule: required"}}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mock := &mockCheckoutService{sale: mockSale, error: tc.serviceErr}
			rr := doRequest(t, newTestRouter(mock), http.MethodPost, "/api/v1/checkout", tc.body, true)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			assert.Equal(t, tc.expectedAmount, mock.gotAmount)
			if tc.expectedBody != "" {
				assert.JSONEq(t, tc.expectedBody, rr.Body.String())
			}
		})
	}
}

func Test_Handler_GetCartAndTotal(t *testing.T) {
	mock := &mockCheckoutService{cart: mockCart, total: decimal.RequireFromString("5")}
	r := newTestRouter(mock)

	rr := doRequest(t, r, http.MethodGet, "/api/v1/cart", "", true)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, toJSON(t, mockCart), rr.Body.String())

	rr = doRequest(t, r, http.MethodGet, "/api/v1/cart/total", "", true)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"total":"5.00"}`, rr.Body.String())

	rr = doRequest(t, r, http.MethodGet, "/api/v1/cart", "", false)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func Test_Handler_NewSession(t *testing.T) {
	rr := doRequest(t, newTestRouter(&mockCheckoutService{}), http.MethodPost, "/api/v1/sessions", "", false)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", rr.Header().Get(web.XSessionId))
	assert.JSONEq(t, `{"session_id":"11111111-1111-1111-1111-111111111111"}`, rr.Body.String())
}

func Test_Handler_SearchProducts(t *testing.T) {
	products := []service.ProductDto{{ID: uuid.New(), Name: "Coffee", Price: "2.50", StockQuantity: 10}}

	testCases := []struct {
		name           string
		target         string
		expectedStatus int
		expectedName   string
		expectedOffset int32
		expectedLimit  int32
	}{
		{name: "defaults", target: "/api/v1/products", expectedStatus: http.StatusOK, expectedLimit: defaultLimit},
		{name: "explicit paging", target: "/api/v1/products?name=cof&offset=5&limit=10", expectedStatus: http.StatusOK, expectedName: "cof", expectedOffset: 5, expectedLimit: 10},
		{name: "limit too large", target: "/api/v1/products?limit=1000", expectedStatus: http.StatusBadRequest},
		{name: "negative offset", target: "/api/v1/products?offset=-1", expectedStatus: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mock := &mockCheckoutService{products: products}
			rr := doRequest(t, newTestRouter(mock), http.MethodGet, tc.target, "", false)

			assert.Equal(t, tc.expectedStatus, rr.Code)
			if tc.expectedStatus == http.StatusOK {
				assert.JSONEq(t, toJSON(t, products), rr.Body.String())
				assert.Equal(t, tc.expectedName, mock.gotName)
				assert.Equal(t, tc.expectedOffset, mock.gotOffset)
				assert.Equal(t, tc.expectedLimit, mock.gotLimit)
			}
		})
	}
}

func Test_Handler_FindSale(t *testing.T) {
	mock := &mockCheckoutService{sale: mockSale}
	r := newTestRouter(mock)

	rr := doRequest(t, r, http.MethodGet, "/api/v1/sales/"+mockSale.ID.String(), "", false)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, toJSON(t, mockSale), rr.Body.String())

	mock.error = checkouterrors.ErrSaleNotFound
	rr = doRequest(t, r, http.MethodGet, "/api/v1/sales/"+mockSale.ID.String(), "", false)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func Test_Handler_HealthCheck(t *testing.T) {
	rr := doRequest(t, newTestRouter(&mockCheckoutService{}), http.MethodGet, "/healthz", "", false)
	assert.Equal(t, http.StatusOK, rr.Code)
}
