package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AlejandroAndrade98/embipos/internal/domain"
	"github.com/AlejandroAndrade98/embipos/internal/service"
	"github.com/AlejandroAndrade98/embipos/pkg/httputil"
	"github.com/AlejandroAndrade98/embipos/pkg/pagination"
	"github.com/AlejandroAndrade98/embipos/pkg/validator"
)

// CartHandler handles HTTP requests for the operator's cart and checkout.
type CartHandler struct {
	cart     *service.CartService
	checkout *service.CheckoutService
	logger   *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(cart *service.CartService, checkout *service.CheckoutService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		cart:     cart,
		checkout: checkout,
		logger:   logger,
	}
}

// --- Request DTOs ---

// AddItemRequest adds one unit of a product. With only a SKU the product is
// looked up in the catalog; with a price the given reference is used as is.
type AddItemRequest struct {
	SKU   string   `json:"sku" validate:"required,max=64"`
	Name  string   `json:"name" validate:"max=120"`
	Price *float64 `json:"price" validate:"omitempty,gte=0"`
}

// --- Handlers ---

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}

	httputil.WriteData(w, http.StatusOK, h.cart.GetCart(r.Context(), op))
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}

	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var (
		view domain.CartView
		err  error
	)
	if req.Price != nil {
		view, err = h.cart.AddProduct(r.Context(), op, domain.ProductRef{SKU: req.SKU, Name: req.Name, Price: *req.Price})
	} else {
		view, err = h.cart.AddItem(r.Context(), op, req.SKU)
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, view)
}

// RemoveItem handles DELETE /api/v1/cart/items/{sku}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}

	view, err := h.cart.RemoveItem(r.Context(), op, chi.URLParam(r, "sku"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, view)
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}

	if err := h.cart.ClearCart(r.Context(), op); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Checkout handles POST /api/v1/checkout
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}

	var req service.CheckoutInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	receipt, err := h.checkout.Checkout(r.Context(), op, req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, receipt)
}

// ListCheckouts handles GET /api/v1/checkouts
func (h *CartHandler) ListCheckouts(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}

	res, err := h.checkout.ListAttempts(r.Context(), op, pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, res)
}
