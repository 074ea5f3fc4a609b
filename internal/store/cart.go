package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/threadbare/storefront/types"
)

// CartRepository handles persistence for cart lines.
type CartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

// Upsert adds one unit of an item to a user's cart. The unique
// (user_id, item_id) index makes this a single atomic insert-or-increment,
// so concurrent adds for the same pair never produce duplicate lines.
// Unknown items surface as ErrNotFound via the foreign key.
func (r *CartRepository) Upsert(ctx context.Context, userID, itemID int) (types.CartItem, error) {
	const query = `
		INSERT INTO cart_items (user_id, item_id, quantity, created_at, updated_at)
		VALUES ($1, $2, 1, NOW(), NOW())
		ON CONFLICT (user_id, item_id)
		DO UPDATE SET quantity = cart_items.quantity + 1, updated_at = NOW()
		RETURNING id, user_id, item_id, quantity, created_at, updated_at`
	var line types.CartItem
	err := r.db.QueryRowContext(ctx, query, userID, itemID).Scan(
		&line.ID,
		&line.UserID,
		&line.ItemID,
		&line.Quantity,
		&line.CreatedAt,
		&line.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return types.CartItem{}, ErrNotFound
		}
		return types.CartItem{}, err
	}
	return line, nil
}

func (r *CartRepository) Get(ctx context.Context, id int) (types.CartItem, error) {
	const query = `
		SELECT id, user_id, item_id, quantity, created_at, updated_at
		FROM cart_items
		WHERE id = $1`
	var line types.CartItem
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&line.ID,
		&line.UserID,
		&line.ItemID,
		&line.Quantity,
		&line.CreatedAt,
		&line.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.CartItem{}, ErrNotFound
		}
		return types.CartItem{}, err
	}
	return line, nil
}

// ListByUser returns a user's cart lines joined with their item records.
func (r *CartRepository) ListByUser(ctx context.Context, userID int) ([]types.CartItem, error) {
	const query = `
		SELECT c.id, c.user_id, c.item_id, c.quantity, c.created_at, c.updated_at,
		       i.id, i.title, i.description, i.image, i.large_image, i.price, i.user_id, i.created_at, i.updated_at
		FROM cart_items c
		JOIN items i ON i.id = c.item_id
		WHERE c.user_id = $1
		ORDER BY c.id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]types.CartItem, 0)
	for rows.Next() {
		var line types.CartItem
		var item types.Item
		if err := rows.Scan(
			&line.ID,
			&line.UserID,
			&line.ItemID,
			&line.Quantity,
			&line.CreatedAt,
			&line.UpdatedAt,
			&item.ID,
			&item.Title,
			&item.Description,
			&item.Image,
			&item.LargeImage,
			&item.Price,
			&item.UserID,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		line.Item = &item
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

func (r *CartRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM cart_items WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
