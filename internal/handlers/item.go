package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/threadbare/storefront/internal/cache"
	"github.com/threadbare/storefront/internal/services"
	"github.com/threadbare/storefront/types"
)

const maxImageBytes = 10 << 20

// ItemHandler provides HTTP handlers for catalog items.
type ItemHandler struct {
	itemService *services.ItemService
	userService *services.UserService
	cache       *cache.Cache
}

// NewItemHandler constructs a handler with the provided services. The
// cache may be nil, in which case reads go straight to the store.
func NewItemHandler(itemService *services.ItemService, userService *services.UserService, itemCache *cache.Cache) *ItemHandler {
	return &ItemHandler{
		itemService: itemService,
		userService: userService,
		cache:       itemCache,
	}
}

// ItemRouter registers item routes on the given router.
func ItemRouter(
	r chi.Router,
	itemService *services.ItemService,
	userService *services.UserService,
	itemCache *cache.Cache,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewItemHandler(itemService, userService, itemCache)

	r.Get("/", handler.ListItems)
	r.With(authMiddleware).Post("/", handler.CreateItem)
	r.Route("/{itemID}", func(r chi.Router) {
		r.Get("/", handler.GetItem)
		r.With(authMiddleware).Put("/", handler.UpdateItem)
		r.With(authMiddleware).Delete("/", handler.DeleteItem)
		r.With(authMiddleware).Post("/image", handler.UploadImage)
	})
}

func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cacheKey := fmt.Sprintf("items:list:%d:%d", page, limit)
	var resp ItemListResponse
	if h.cache != nil {
		if hit, err := h.cache.Get(r.Context(), cacheKey, &resp); err == nil && hit {
			writeJSON(w, http.StatusOK, resp)
			return
		}
	}

	items, total, err := h.itemService.List(r.Context(), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list items")
		return
	}

	resp = ItemListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	}
	if h.cache != nil {
		if err := h.cache.Set(r.Context(), cacheKey, resp); err != nil {
			logrus.WithError(err).Warn("failed to cache item list")
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseItemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cacheKey := fmt.Sprintf("items:%d", id)
	var item types.Item
	if h.cache != nil {
		if hit, err := h.cache.Get(r.Context(), cacheKey, &item); err == nil && hit {
			writeJSON(w, http.StatusOK, item)
			return
		}
	}

	item, err = h.itemService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "failed to fetch item")
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(r.Context(), cacheKey, item); err != nil {
			logrus.WithError(err).Warn("failed to cache item")
		}
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	created, err := h.itemService.Create(r.Context(), caller, types.Item{
		Title:       req.Title,
		Description: req.Description,
		Image:       req.Image,
		LargeImage:  req.LargeImage,
		Price:       req.Price,
	})
	if err != nil {
		writeServiceError(w, err, "failed to create item")
		return
	}

	h.invalidate(r)
	writeJSON(w, http.StatusCreated, created)
}

func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseItemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var upd types.ItemUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.itemService.Update(r.Context(), caller, id, upd)
	if err != nil {
		writeServiceError(w, err, "failed to update item")
		return
	}

	h.invalidate(r)
	writeJSON(w, http.StatusOK, updated)
}

func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseItemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	if err := h.itemService.Delete(r.Context(), caller, id); err != nil {
		writeServiceError(w, err, "failed to delete item")
		return
	}

	h.invalidate(r)
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage stores an uploaded image in object storage and records it
// on the item.
func (h *ItemHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseItemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	if header.Size > maxImageBytes {
		writeError(w, http.StatusBadRequest, "image too large")
		return
	}

	updated, err := h.itemService.UploadImage(
		r.Context(),
		caller,
		id,
		header.Filename,
		header.Header.Get("Content-Type"),
		file,
		header.Size,
	)
	if err != nil {
		writeServiceError(w, err, "failed to upload image")
		return
	}

	h.invalidate(r)
	writeJSON(w, http.StatusOK, updated)
}

type CreateItemRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	LargeImage  string `json:"large_image"`
	Price       int64  `json:"price"`
}

// ItemListResponse is the paginated list response payload.
type ItemListResponse struct {
	Items []types.Item `json:"items"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	Total int          `json:"total"`
}

func parseItemID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "itemID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid item id")
	}
	return id, nil
}

// caller resolves the authenticated user, writing a 401 on failure.
func (h *ItemHandler) caller(w http.ResponseWriter, r *http.Request) (types.User, bool) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "you must be logged in")
		return types.User{}, false
	}
	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "you must be logged in")
		return types.User{}, false
	}
	return user, true
}

func (h *ItemHandler) invalidate(r *http.Request) {
	if h.cache == nil {
		return
	}
	if err := h.cache.DeletePattern(r.Context(), "items:*"); err != nil {
		logrus.WithError(err).Warn("failed to invalidate item cache")
	}
}
