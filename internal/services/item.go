package services

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/threadbare/storefront/internal/storage"
	"github.com/threadbare/storefront/types"
)

// ItemRepository defines persistence operations for catalog items.
type ItemRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Item, int, error)
	Get(ctx context.Context, id int) (types.Item, error)
	Create(ctx context.Context, item types.Item) (types.Item, error)
	Update(ctx context.Context, item types.Item) (types.Item, error)
	Delete(ctx context.Context, id int) error
}

// ItemService encapsulates catalog use-cases, including image storage.
type ItemService struct {
	repo    ItemRepository
	objects *storage.Storage
}

func NewItemService(repo ItemRepository, objects *storage.Storage) *ItemService {
	return &ItemService{repo: repo, objects: objects}
}

func (s *ItemService) List(ctx context.Context, offset, limit int) ([]types.Item, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, offset, limit)
}

func (s *ItemService) Get(ctx context.Context, id int) (types.Item, error) {
	return s.repo.Get(ctx, id)
}

// Create stores a new item owned by the caller.
func (s *ItemService) Create(ctx context.Context, caller types.User, item types.Item) (types.Item, error) {
	if item.Title == "" || item.Description == "" {
		return types.Item{}, fmt.Errorf("%w: title and description are required", ErrValidation)
	}
	if item.Price < 0 {
		return types.Item{}, fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	item.UserID = caller.ID
	return s.repo.Create(ctx, item)
}

// Update applies a partial update. The caller must own the item or hold
// ADMIN or ITEMUPDATE.
func (s *ItemService) Update(ctx context.Context, caller types.User, id int, upd types.ItemUpdate) (types.Item, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Item{}, err
	}
	if err := requireOwnerOrPermission(caller, item.UserID, types.PermissionAdmin, types.PermissionItemUpdate); err != nil {
		return types.Item{}, err
	}

	if upd.Title != nil {
		item.Title = *upd.Title
	}
	if upd.Description != nil {
		item.Description = *upd.Description
	}
	if upd.Image != nil {
		item.Image = *upd.Image
	}
	if upd.LargeImage != nil {
		item.LargeImage = *upd.LargeImage
	}
	if upd.Price != nil {
		if *upd.Price < 0 {
			return types.Item{}, fmt.Errorf("%w: price must not be negative", ErrValidation)
		}
		item.Price = *upd.Price
	}

	return s.repo.Update(ctx, item)
}

// Delete removes an item. The caller must own it or hold ADMIN or
// ITEMDELETE.
func (s *ItemService) Delete(ctx context.Context, caller types.User, id int) error {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := requireOwnerOrPermission(caller, item.UserID, types.PermissionAdmin, types.PermissionItemDelete); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// UploadImage stores an item image in object storage and records its key
// on the item. Same authorization as Update.
func (s *ItemService) UploadImage(ctx context.Context, caller types.User, id int, filename, contentType string, r io.Reader, size int64) (types.Item, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Item{}, err
	}
	if err := requireOwnerOrPermission(caller, item.UserID, types.PermissionAdmin, types.PermissionItemUpdate); err != nil {
		return types.Item{}, err
	}

	key := fmt.Sprintf("items/%d/%s", id, path.Base(filename))
	if err := s.objects.Put(ctx, key, r, size, contentType); err != nil {
		return types.Item{}, err
	}

	item.Image = key
	item.LargeImage = key
	return s.repo.Update(ctx, item)
}

func requireOwnerOrPermission(caller types.User, ownerID int, allowed ...types.Permission) error {
	if caller.ID == ownerID {
		return nil
	}
	if caller.HasAny(allowed...) {
		return nil
	}
	return fmt.Errorf("%w: you don't own this item and lack the permission to touch it", ErrForbidden)
}
