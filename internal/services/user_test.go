package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadbare/storefront/internal/store"
	"github.com/threadbare/storefront/types"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserRepo struct {
	users  map[int]types.User
	nextID int
	writes int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int]types.User{}, nextID: 1}
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	users := make([]types.User, 0, len(r.users))
	for id := 1; id < r.nextID; id++ {
		if user, ok := r.users[id]; ok {
			users = append(users, user)
		}
	}
	return users, len(users), nil
}

func (r *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.ID = r.nextID
	r.nextID++
	r.users[user.ID] = user
	r.writes++
	return user, nil
}

func (r *fakeUserRepo) UpdatePermissions(ctx context.Context, id int, permissions []types.Permission) (types.User, error) {
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	user.Permissions = permissions
	r.users[id] = user
	r.writes++
	return user, nil
}

func (r *fakeUserRepo) SetResetToken(ctx context.Context, id int, token string, expiry time.Time) error {
	user, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.ResetToken = token
	user.ResetTokenExpiry = &expiry
	r.users[id] = user
	r.writes++
	return nil
}

func (r *fakeUserRepo) RedeemResetToken(ctx context.Context, token string, passwordHash string) (types.User, error) {
	for id, user := range r.users {
		if user.ResetToken == token && user.ResetTokenExpiry != nil && user.ResetTokenExpiry.After(time.Now()) {
			user.PasswordHash = passwordHash
			user.ResetToken = ""
			user.ResetTokenExpiry = nil
			r.users[id] = user
			r.writes++
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

type fakeMail struct {
	sent []string // reset tokens, in publish order
	to   []string
	fail bool
}

func (m *fakeMail) PublishPasswordReset(ctx context.Context, to, token string) error {
	if m.fail {
		return errors.New("broker down")
	}
	m.to = append(m.to, to)
	m.sent = append(m.sent, token)
	return nil
}

func TestSignupLowercasesEmailAndAssignsUserPermission(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewUserService(repo, &fakeMail{})

	user, err := svc.Signup(context.Background(), "Wes@Example.COM", "Wes", "dogs123")
	require.NoError(t, err)

	assert.Equal(t, "wes@example.com", user.Email)
	assert.Equal(t, []types.Permission{types.PermissionUser}, user.Permissions)
	assert.NotEqual(t, "dogs123", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("dogs123")))
}

func TestSignupDuplicateEmail(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewUserService(repo, &fakeMail{})

	_, err := svc.Signup(context.Background(), "a@b.com", "First", "pw1234")
	require.NoError(t, err)

	_, err = svc.Signup(context.Background(), "A@B.com", "Second", "pw1234")
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestSignupMissingFields(t *testing.T) {
	svc := NewUserService(newFakeUserRepo(), &fakeMail{})

	_, err := svc.Signup(context.Background(), "", "Name", "pw")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSigninDistinguishesUnknownUserFromBadPassword(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewUserService(repo, &fakeMail{})

	_, err := svc.Signup(context.Background(), "a@b.com", "A", "correct-horse")
	require.NoError(t, err)

	_, err = svc.Signin(context.Background(), "nobody@b.com", "whatever")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Contains(t, err.Error(), "no such user")

	_, err = svc.Signin(context.Background(), "a@b.com", "battery-staple")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Contains(t, err.Error(), "invalid password")
}

func TestSigninAcceptsMixedCaseEmail(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewUserService(repo, &fakeMail{})

	_, err := svc.Signup(context.Background(), "a@b.com", "A", "pw123456")
	require.NoError(t, err)

	user, err := svc.Signin(context.Background(), "A@B.COM", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", user.Email)
}

func TestRequestResetUnknownEmail(t *testing.T) {
	repo := newFakeUserRepo()
	mail := &fakeMail{}
	svc := NewUserService(repo, mail)

	err := svc.RequestReset(context.Background(), "ghost@b.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, mail.sent)
	assert.Zero(t, repo.writes)
}

func TestRequestResetIssuesTokenAndQueuesEmail(t *testing.T) {
	repo := newFakeUserRepo()
	mail := &fakeMail{}
	svc := NewUserService(repo, mail)

	user, err := svc.Signup(context.Background(), "a@b.com", "A", "pw123456")
	require.NoError(t, err)

	require.NoError(t, svc.RequestReset(context.Background(), "a@b.com"))

	stored := repo.users[user.ID]
	assert.Len(t, stored.ResetToken, 2*resetTokenBytes)
	require.NotNil(t, stored.ResetTokenExpiry)
	assert.WithinDuration(t, time.Now().Add(resetTokenWindow), *stored.ResetTokenExpiry, time.Minute)

	require.Len(t, mail.sent, 1)
	assert.Equal(t, stored.ResetToken, mail.sent[0])
	assert.Equal(t, "a@b.com", mail.to[0])
}

func TestRequestResetKeepsTokenWhenQueueFails(t *testing.T) {
	repo := newFakeUserRepo()
	mail := &fakeMail{fail: true}
	svc := NewUserService(repo, mail)

	user, err := svc.Signup(context.Background(), "a@b.com", "A", "pw123456")
	require.NoError(t, err)

	err = svc.RequestReset(context.Background(), "a@b.com")
	assert.ErrorIs(t, err, ErrMailUnavailable)
	assert.NotEmpty(t, repo.users[user.ID].ResetToken)
}

func TestResetPasswordMismatchFailsBeforeStorage(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewUserService(repo, &fakeMail{})

	_, err := svc.ResetPassword(context.Background(), "sometoken", "new-pw", "other-pw")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, repo.writes)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewUserService(repo, &fakeMail{})

	user, err := svc.Signup(context.Background(), "a@b.com", "A", "pw123456")
	require.NoError(t, err)

	expired := time.Now().Add(-time.Minute)
	stored := repo.users[user.ID]
	stored.ResetToken = "deadbeef"
	stored.ResetTokenExpiry = &expired
	repo.users[user.ID] = stored

	_, err = svc.ResetPassword(context.Background(), "deadbeef", "new-pw", "new-pw")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestResetPasswordRedeemsTokenOnce(t *testing.T) {
	repo := newFakeUserRepo()
	mail := &fakeMail{}
	svc := NewUserService(repo, mail)

	_, err := svc.Signup(context.Background(), "a@b.com", "A", "old-password")
	require.NoError(t, err)
	require.NoError(t, svc.RequestReset(context.Background(), "a@b.com"))
	token := mail.sent[0]

	user, err := svc.ResetPassword(context.Background(), token, "new-password", "new-password")
	require.NoError(t, err)
	assert.Empty(t, user.ResetToken)
	assert.Nil(t, user.ResetTokenExpiry)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("new-password")))

	_, err = svc.ResetPassword(context.Background(), token, "again", "again")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestUpdatePermissions(t *testing.T) {
	tests := []struct {
		name    string
		caller  []types.Permission
		raw     []string
		wantErr error
	}{
		{"admin may update", []types.Permission{types.PermissionAdmin}, []string{"USER", "ITEMDELETE"}, nil},
		{"permissionupdate may update", []types.Permission{types.PermissionPermissionUpdate}, []string{"USER"}, nil},
		{"plain user may not", []types.Permission{types.PermissionUser}, []string{"ADMIN"}, ErrForbidden},
		{"unknown label rejected", []types.Permission{types.PermissionAdmin}, []string{"SUPERUSER"}, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeUserRepo()
			svc := NewUserService(repo, &fakeMail{})

			target, err := svc.Signup(context.Background(), fmt.Sprintf("t-%s@b.com", tt.name), "T", "pw123456")
			require.NoError(t, err)

			caller := types.User{ID: 999, Permissions: tt.caller}
			updated, err := svc.UpdatePermissions(context.Background(), caller, target.ID, tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, types.PermissionStrings(updated.Permissions), tt.raw)
		})
	}
}

func TestListUsersRequiresPermission(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewUserService(repo, &fakeMail{})

	_, _, err := svc.List(context.Background(), types.User{ID: 1, Permissions: []types.Permission{types.PermissionUser}}, 0, 10)
	assert.ErrorIs(t, err, ErrForbidden)

	_, _, err = svc.List(context.Background(), types.User{ID: 1, Permissions: []types.Permission{types.PermissionAdmin}}, 0, 10)
	assert.NoError(t, err)
}
