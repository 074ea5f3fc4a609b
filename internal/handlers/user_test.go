package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadbare/storefront/types"
)

func putPermissions(t *testing.T, env *testEnv, token string, targetID int, perms []string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(UpdatePermissionsRequest{Permissions: perms})
	require.NoError(t, err)
	req := withSession(httptest.NewRequest(http.MethodPut, fmt.Sprintf("/users/%d/permissions", targetID), bytes.NewReader(body)), token)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func TestListUsersRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListUsersForbiddenWithoutPermission(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "plain@b.com")

	req := withSession(httptest.NewRequest(http.MethodGet, "/users", nil), token)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListUsersAsAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "plain@b.com")
	_, adminToken := env.seedUser(t, "admin@b.com", types.PermissionUser, types.PermissionAdmin)

	req := withSession(httptest.NewRequest(http.MethodGet, "/users", nil), adminToken)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp UserListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Items, 2)
	assert.Equal(t, 2, resp.Total)
}

func TestUpdatePermissionsAsAdmin(t *testing.T) {
	env := newTestEnv(t)
	target, _ := env.seedUser(t, "plain@b.com")
	_, adminToken := env.seedUser(t, "admin@b.com", types.PermissionUser, types.PermissionAdmin)

	rec := putPermissions(t, env, adminToken, target.ID, []string{"USER", "ITEMCREATE"})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated types.User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	assert.ElementsMatch(t, []types.Permission{types.PermissionUser, types.PermissionItemCreate}, updated.Permissions)
}

func TestUpdatePermissionsForbiddenForPlainUser(t *testing.T) {
	env := newTestEnv(t)
	target, _ := env.seedUser(t, "target@b.com")
	_, plainToken := env.seedUser(t, "plain@b.com")

	rec := putPermissions(t, env, plainToken, target.ID, []string{"ADMIN"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, []types.Permission{types.PermissionUser}, env.userRepo.users[target.ID].Permissions)
}

func TestUpdatePermissionsRejectsUnknownLabel(t *testing.T) {
	env := newTestEnv(t)
	target, _ := env.seedUser(t, "target@b.com")
	_, adminToken := env.seedUser(t, "admin@b.com", types.PermissionAdmin)

	rec := putPermissions(t, env, adminToken, target.ID, []string{"SUPERUSER"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "SUPERUSER")
}

func TestUpdatePermissionsUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.seedUser(t, "admin@b.com", types.PermissionAdmin)

	rec := putPermissions(t, env, adminToken, 999, []string{"USER"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
