package types

import "time"

// CartItem is a cart line: one (user, item) pair with a quantity.
// The storage layer enforces at most one line per pair.
type CartItem struct {
	// ID is the unique identifier of the cart line.
	ID int `json:"id" db:"id"`

	// UserID identifies the user whose cart the line belongs to.
	UserID int `json:"user_id" db:"user_id"`

	// ItemID identifies the item in the line.
	ItemID int `json:"item_id" db:"item_id"`

	// Quantity is the number of units of the item, always positive.
	Quantity int `json:"quantity" db:"quantity"`

	// Item is the joined item record, populated on cart reads.
	Item *Item `json:"item,omitempty" db:"-"`

	// CreatedAt is the timestamp when the line was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent quantity change.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
