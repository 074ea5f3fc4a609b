package types

import "time"

// Item represents a product in the storefront catalog.
type Item struct {
	// ID is the unique identifier of the item.
	ID int `json:"id" db:"id"`

	// Title is the display name of the item.
	Title string `json:"title" db:"title"`

	// Description contains the full item description shown on the
	// product page.
	Description string `json:"description" db:"description"`

	// Image references the thumbnail image, either an external URL or an
	// object-storage key written by the image upload endpoint.
	Image string `json:"image" db:"image"`

	// LargeImage references the full-size image.
	LargeImage string `json:"large_image" db:"large_image"`

	// Price is the item price in minor currency units (cents).
	Price int64 `json:"price" db:"price"`

	// UserID identifies the user who owns (created) the item.
	UserID int `json:"user_id" db:"user_id"`

	// CreatedAt is the timestamp when the item was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the item.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ItemUpdate carries a partial field update for an item. Nil fields are
// left untouched.
type ItemUpdate struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Image       *string `json:"image"`
	LargeImage  *string `json:"large_image"`
	Price       *int64  `json:"price"`
}
