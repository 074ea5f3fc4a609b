package services

import (
	"context"
	"fmt"

	"github.com/threadbare/storefront/types"
)

// CartRepository defines persistence operations for cart lines.
type CartRepository interface {
	Upsert(ctx context.Context, userID, itemID int) (types.CartItem, error)
	Get(ctx context.Context, id int) (types.CartItem, error)
	ListByUser(ctx context.Context, userID int) ([]types.CartItem, error)
	Delete(ctx context.Context, id int) error
}

// CartService reconciles cart mutations: adding an item a user already
// has in the cart increments the existing line instead of duplicating it.
type CartService struct {
	repo CartRepository
}

func NewCartService(repo CartRepository) *CartService {
	return &CartService{repo: repo}
}

func (s *CartService) List(ctx context.Context, userID int) ([]types.CartItem, error) {
	return s.repo.ListByUser(ctx, userID)
}

// AddOne adds a single unit of an item to the user's cart. The repository
// upsert keeps the (user, item) line unique under concurrency.
func (s *CartService) AddOne(ctx context.Context, userID, itemID int) (types.CartItem, error) {
	return s.repo.Upsert(ctx, userID, itemID)
}

// RemoveOne deletes a cart line. Only the owner of the line may remove
// it; there is no permission override.
func (s *CartService) RemoveOne(ctx context.Context, userID, cartItemID int) error {
	line, err := s.repo.Get(ctx, cartItemID)
	if err != nil {
		return err
	}
	if line.UserID != userID {
		return fmt.Errorf("%w: this cart item is not yours", ErrForbidden)
	}
	return s.repo.Delete(ctx, cartItemID)
}
