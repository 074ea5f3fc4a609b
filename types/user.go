package types

import "time"

// Permission is an authorization label attached to a user account.
// The set of valid labels is closed; permissions are checked by
// set-intersection, never by free-form string comparison.
type Permission string

// Supported permission labels.
const (
	// PermissionAdmin grants every privileged operation.
	PermissionAdmin Permission = "ADMIN"

	// PermissionUser is the baseline label assigned on signup.
	PermissionUser Permission = "USER"

	// PermissionItemCreate allows creating catalog items.
	PermissionItemCreate Permission = "ITEMCREATE"

	// PermissionItemUpdate allows updating items owned by other users.
	PermissionItemUpdate Permission = "ITEMUPDATE"

	// PermissionItemDelete allows deleting items owned by other users.
	PermissionItemDelete Permission = "ITEMDELETE"

	// PermissionPermissionUpdate allows rewriting another user's
	// permission set.
	PermissionPermissionUpdate Permission = "PERMISSIONUPDATE"
)

// AllPermissions enumerates every valid label, in display order.
var AllPermissions = []Permission{
	PermissionAdmin,
	PermissionUser,
	PermissionItemCreate,
	PermissionItemUpdate,
	PermissionItemDelete,
	PermissionPermissionUpdate,
}

// ParsePermission validates a raw label against the closed enumeration.
func ParsePermission(raw string) (Permission, bool) {
	for _, p := range AllPermissions {
		if string(p) == raw {
			return p, true
		}
	}
	return "", false
}

// ParsePermissions validates a whole set. It returns the first invalid
// label when one is present.
func ParsePermissions(raw []string) ([]Permission, string, bool) {
	perms := make([]Permission, 0, len(raw))
	for _, r := range raw {
		p, ok := ParsePermission(r)
		if !ok {
			return nil, r, false
		}
		perms = append(perms, p)
	}
	return perms, "", true
}

// PermissionStrings converts a permission set to its storage representation.
func PermissionStrings(perms []Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

// User represents an account in the storefront.
// It contains identity, authorization, and password-reset metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Email is the user's email address, stored lower-cased and unique.
	Email string `json:"email" db:"email"`

	// Name is the user's display name.
	Name string `json:"name" db:"name"`

	// Permissions is the unordered set of authorization labels held by
	// the user. Every account holds at least USER.
	Permissions []Permission `json:"permissions" db:"permissions"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// ResetToken is the pending password-reset credential, when one has
	// been issued. Cleared after a successful reset.
	ResetToken string `json:"-" db:"reset_token"`

	// ResetTokenExpiry is the absolute expiry of ResetToken.
	ResetTokenExpiry *time.Time `json:"-" db:"reset_token_expiry"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasAny reports whether the user's permission set intersects wanted.
func (u User) HasAny(wanted ...Permission) bool {
	for _, have := range u.Permissions {
		for _, want := range wanted {
			if have == want {
				return true
			}
		}
	}
	return false
}
