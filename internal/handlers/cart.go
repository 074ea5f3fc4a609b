package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/threadbare/storefront/internal/services"
	"github.com/threadbare/storefront/types"
)

// CartHandler provides HTTP handlers for the shopping cart.
type CartHandler struct {
	cartService *services.CartService
}

func NewCartHandler(cartService *services.CartService) *CartHandler {
	return &CartHandler{cartService: cartService}
}

// CartRouter registers cart routes. Every route requires a session.
func CartRouter(
	r chi.Router,
	cartService *services.CartService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewCartHandler(cartService)

	r.Use(authMiddleware)
	r.Get("/", handler.GetCart)
	r.Post("/", handler.AddToCart)
	r.Delete("/{cartItemID}", handler.RemoveFromCart)
}

// GetCart returns the caller's cart lines with their item records.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "you must be logged in")
		return
	}

	lines, err := h.cartService.List(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load cart")
		return
	}

	writeJSON(w, http.StatusOK, CartResponse{Items: lines})
}

// AddToCart adds one unit of an item to the caller's cart, incrementing
// the existing line when the item is already present.
func (h *CartHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "you must be logged in")
		return
	}

	var req AddToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.ItemID < 1 {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	line, err := h.cartService.AddOne(r.Context(), userID, req.ItemID)
	if err != nil {
		writeServiceError(w, err, "failed to add to cart")
		return
	}

	writeJSON(w, http.StatusOK, line)
}

// RemoveFromCart deletes one of the caller's cart lines.
func (h *CartHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "you must be logged in")
		return
	}

	cartItemID, err := parseCartItemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.cartService.RemoveOne(r.Context(), userID, cartItemID); err != nil {
		writeServiceError(w, err, "failed to remove from cart")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type AddToCartRequest struct {
	ItemID int `json:"item_id"`
}

// CartResponse is the cart read payload.
type CartResponse struct {
	Items []types.CartItem `json:"items"`
}

func parseCartItemID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "cartItemID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid cart item id")
	}
	return id, nil
}
