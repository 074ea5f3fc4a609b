package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/threadbare/storefront/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost       = 10
	resetTokenBytes  = 20
	resetTokenWindow = time.Hour
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context, offset, limit int) ([]types.User, int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdatePermissions(ctx context.Context, id int, permissions []types.Permission) (types.User, error)
	SetResetToken(ctx context.Context, id int, token string, expiry time.Time) error
	RedeemResetToken(ctx context.Context, token string, passwordHash string) (types.User, error)
}

// MailPublisher hands outbound email jobs to the broker.
type MailPublisher interface {
	PublishPasswordReset(ctx context.Context, to, token string) error
}

// UserService encapsulates account use-cases: signup, signin, password
// reset, and permission management.
type UserService struct {
	repo UserRepository
	mail MailPublisher
}

func NewUserService(repo UserRepository, mail MailPublisher) *UserService {
	return &UserService{repo: repo, mail: mail}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Signup creates an account with the baseline USER permission and a
// bcrypt-hashed password. Emails are stored lower-cased.
func (s *UserService) Signup(ctx context.Context, email, name, password string) (types.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if email == "" || name == "" || password == "" {
		return types.User{}, fmt.Errorf("%w: email, name and password are required", ErrValidation)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return types.User{}, err
	}

	return s.repo.Create(ctx, types.User{
		Email:        email,
		Name:         name,
		Permissions:  []types.Permission{types.PermissionUser},
		PasswordHash: string(hashed),
	})
}

// Signin verifies credentials. Unknown emails and wrong passwords both
// fail authentication but carry distinct messages.
func (s *UserService) Signin(ctx context.Context, email, password string) (types.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return types.User{}, fmt.Errorf("%w: no such user found for email %s", ErrNotAuthenticated, email)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, fmt.Errorf("%w: invalid password", ErrNotAuthenticated)
	}

	return user, nil
}

// RequestReset issues a one-hour reset token, persists it, and queues the
// reset email. A broker failure is surfaced but does not revoke the
// freshly issued token: a later retry re-sends it.
func (s *UserService) RequestReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	token, err := newResetToken()
	if err != nil {
		return err
	}
	expiry := time.Now().Add(resetTokenWindow)

	if err := s.repo.SetResetToken(ctx, user.ID, token, expiry); err != nil {
		return err
	}

	if err := s.mail.PublishPasswordReset(ctx, user.Email, token); err != nil {
		logrus.WithError(err).WithField("email", user.Email).Error("failed to queue reset email")
		return fmt.Errorf("%w: reset token issued but email could not be queued", ErrMailUnavailable)
	}
	return nil
}

// ResetPassword redeems a reset token. The password/confirmation check
// runs before any storage read; the expiry window is re-checked at redeem
// time by the conditional update in the store.
func (s *UserService) ResetPassword(ctx context.Context, token, password, confirm string) (types.User, error) {
	if password == "" {
		return types.User{}, fmt.Errorf("%w: password is required", ErrValidation)
	}
	if password != confirm {
		return types.User{}, fmt.Errorf("%w: passwords do not match", ErrValidation)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.RedeemResetToken(ctx, token, string(hashed))
	if err != nil {
		return types.User{}, fmt.Errorf("%w: this token is either invalid or expired", ErrNotAuthenticated)
	}
	return user, nil
}

// List returns all accounts for the permission-management UI. The caller
// needs ADMIN or PERMISSIONUPDATE.
func (s *UserService) List(ctx context.Context, caller types.User, offset, limit int) ([]types.User, int, error) {
	if !caller.HasAny(types.PermissionAdmin, types.PermissionPermissionUpdate) {
		return nil, 0, fmt.Errorf("%w: you need ADMIN or PERMISSIONUPDATE", ErrForbidden)
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, offset, limit)
}

// UpdatePermissions overwrites the target user's permission set.
func (s *UserService) UpdatePermissions(ctx context.Context, caller types.User, targetID int, raw []string) (types.User, error) {
	if !caller.HasAny(types.PermissionAdmin, types.PermissionPermissionUpdate) {
		return types.User{}, fmt.Errorf("%w: you need ADMIN or PERMISSIONUPDATE", ErrForbidden)
	}

	perms, bad, ok := types.ParsePermissions(raw)
	if !ok {
		return types.User{}, fmt.Errorf("%w: unknown permission %q", ErrValidation, bad)
	}

	return s.repo.UpdatePermissions(ctx, targetID, perms)
}

func newResetToken() (string, error) {
	var buf [resetTokenBytes]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}
