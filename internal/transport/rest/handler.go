// Package rest provides HTTP handlers for cart and checkout operations.
package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	checkouterrors "github.com/abgdnv/gopos/internal/errors"
	"github.com/abgdnv/gopos/internal/service"
	"github.com/abgdnv/gopos/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

type Handler struct {
	service  service.CheckoutService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a new Handler backed by the given service.
func NewHandler(service service.CheckoutService, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes for the checkout service.
func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", h.NewSession)
		r.Get("/products", h.SearchProducts)
		r.Get("/sales/{id}", h.FindSale)

		r.Group(func(r chi.Router) {
			r.Use(web.SessionMiddleware)
			r.Get("/cart", h.GetCart)
			r.Get("/cart/total", h.CartTotal)
			r.Post("/cart/items", h.AddToCart)
			r.Delete("/cart/items/{index}", h.RemoveFromCart)
			r.Delete("/cart/lines/{id}", h.RemoveLine)
			r.Post("/checkout", h.Checkout)
		})
	})
	r.Get("/healthz", h.HealthCheck)
}

// rawValue accepts a JSON string or number and keeps its text, so that
// non-numeric input reaches the domain validation instead of failing decoding.
type rawValue string

func (v *rawValue) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = rawValue(s)
		return nil
	}
	if string(data) == "null" {
		*v = ""
		return nil
	}
	*v = rawValue(data)
	return nil
}

// AddItemRequest is the body of POST /api/v1/cart/items.
type AddItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  rawValue  `json:"quantity" validate:"required"`
}

// CheckoutRequest is the body of POST /api/v1/checkout.
type CheckoutRequest struct {
	AmountReceived rawValue `json:"amount_received" validate:"required"`
}

func (h *Handler) NewSession(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, err := h.service.NewSession(r.Context())
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to create session")
		return
	}
	w.Header().Set(web.XSessionId, id)
	web.RespondJSON(w, mLogger, http.StatusCreated, map[string]string{"session_id": id})
}

// SearchProducts lists in-stock products matching the optional name query.
func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	limit, ok := web.ParseValidateBetween(r, w, mLogger, "limit", 1, maxLimit, defaultLimit)
	if !ok {
		return
	}
	offset, ok := web.ParseValidateGte(r, w, mLogger, "offset", 0, 0)
	if !ok {
		return
	}
	name := r.URL.Query().Get("name")

	mLogger.DebugContext(r.Context(), "Received request to search products", "name", name, "limit", limit, "offset", offset)
	list, err := h.service.SearchProducts(r.Context(), name, offset, limit)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to search products")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, list)
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	sessionID, ok := web.SessionIDFromRequest(w, r, mLogger)
	if !ok {
		return
	}
	dto, err := h.service.GetCart(r.Context(), sessionID)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to load cart")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, dto)
}

func (h *Handler) CartTotal(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	sessionID, ok := web.SessionIDFromRequest(w, r, mLogger)
	if !ok {
		return
	}
	total, err := h.service.CartTotal(r.Context(), sessionID)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to compute cart total")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, map[string]string{"total": total.StringFixed(2)})
}

// AddToCart adds a product to the session's cart.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	sessionID, ok := web.SessionIDFromRequest(w, r, mLogger)
	if !ok {
		return
	}
	var req AddItemRequest
	if !h.decodeAndValidate(w, r, mLogger, &req) {
		return
	}

	mLogger.DebugContext(r.Context(), "Received request to add item", "product_id", req.ProductID, "quantity", string(req.Quantity))
	dto, err := h.service.AddToCart(r.Context(), sessionID, req.ProductID, string(req.Quantity))
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to add item to cart")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, dto)
}

// RemoveFromCart removes the line at the given position.
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	sessionID, ok := web.SessionIDFromRequest(w, r, mLogger)
	if !ok {
		return
	}
	index, ok := web.ParseIndex(w, r, mLogger, "index")
	if !ok {
		return
	}
	dto, err := h.service.RemoveFromCart(r.Context(), sessionID, index)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to remove item from cart")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, dto)
}

// RemoveLine removes the line with the given ID.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	sessionID, ok := web.SessionIDFromRequest(w, r, mLogger)
	if !ok {
		return
	}
	lineID, ok := web.ParseID(w, r, mLogger, "id")
	if !ok {
		return
	}
	dto, err := h.service.RemoveLine(r.Context(), sessionID, lineID)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to remove item from cart")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, dto)
}

// Checkout commits the session's cart as a sale.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	sessionID, ok := web.SessionIDFromRequest(w, r, mLogger)
	if !ok {
		return
	}
	var req CheckoutRequest
	if !h.decodeAndValidate(w, r, mLogger, &req) {
		return
	}

	sale, err := h.service.Checkout(r.Context(), sessionID, string(req.AmountReceived))
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Checkout failed")
		return
	}
	mLogger.InfoContext(r.Context(), "Checkout completed", "sale_id", sale.ID)
	web.RespondJSON(w, mLogger, http.StatusCreated, sale)
}

func (h *Handler) FindSale(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger, "id")
	if !ok {
		return
	}
	sale, err := h.service.FindSale(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Failed to retrieve sale")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, sale)
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, mLogger *slog.Logger, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		mLogger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			errorResponse := make(map[string]string)
			for _, fieldErr := range validationErrors {
				errorResponse[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
			}
			mLogger.WarnContext(r.Context(), "Validation errors occurred", "errors", errorResponse)
			web.RespondJSON(w, mLogger, http.StatusBadRequest, map[string]any{"validation_errors": errorResponse})
			return false
		}
		mLogger.ErrorContext(r.Context(), "Error validating request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// respondServiceError maps domain errors to HTTP statuses. Unknown errors become a 500 with fallback as message.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, mLogger *slog.Logger, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		mLogger.ErrorContext(r.Context(), fallback, "error", err)
		web.RespondError(w, mLogger, status, fallback)
		return
	}
	mLogger.WarnContext(r.Context(), "Request rejected", "status", status, "error", err)
	web.RespondError(w, mLogger, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, checkouterrors.ErrNotNumeric),
		errors.Is(err, checkouterrors.ErrNonPositive),
		errors.Is(err, checkouterrors.ErrExceedsStock),
		errors.Is(err, checkouterrors.ErrInvalidPayment),
		errors.Is(err, checkouterrors.ErrEmptyCart):
		return http.StatusBadRequest
	case errors.Is(err, checkouterrors.ErrProductNotFound),
		errors.Is(err, checkouterrors.ErrIndexOutOfRange),
		errors.Is(err, checkouterrors.ErrLineNotFound),
		errors.Is(err, checkouterrors.ErrSaleNotFound),
		errors.Is(err, checkouterrors.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkouterrors.ErrInsufficientPayment),
		errors.Is(err, checkouterrors.ErrMalformedCart):
		return http.StatusUnprocessableEntity
	case errors.Is(err, checkouterrors.ErrStockConflict),
		errors.Is(err, checkouterrors.ErrAlreadyCheckedOut):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// loggerWithReqID creates a logger with the request ID from the context.
func (h *Handler) loggerWithReqID(r *http.Request) *slog.Logger {
	reqID := middleware.GetReqID(r.Context())
	return h.logger.With("request_id", reqID)
}
