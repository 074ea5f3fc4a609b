package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/threadbare/storefront/internal/services"
	"github.com/threadbare/storefront/internal/store"
	"github.com/threadbare/storefront/types"
)

const testSecret = "test-secret"

// In-memory repositories backing the handler tests. They implement the
// service interfaces so the full handler + service stack runs without
// Postgres.

type fakeUserRepo struct {
	users  map[int]types.User
	nextID int
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
	return user, nil
}

func (r *fakeUserRepo) UpdatePermissions(ctx context.Context, id int, permissions []types.Permission) (types.User, error) {
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	user.Permissions = permissions
	r.users[id] = user
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
	return nil
}

func (r *fakeUserRepo) RedeemResetToken(ctx context.Context, token string, passwordHash string) (types.User, error) {
	for id, user := range r.users {
		if user.ResetToken == token && user.ResetTokenExpiry != nil && user.ResetTokenExpiry.After(time.Now()) {
			user.PasswordHash = passwordHash
			user.ResetToken = ""
			user.ResetTokenExpiry = nil
			r.users[id] = user
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

type fakeMail struct {
	tokens []string
}

func (m *fakeMail) PublishPasswordReset(ctx context.Context, to, token string) error {
	m.tokens = append(m.tokens, token)
	return nil
}

type fakeItemRepo struct {
	items   map[int]types.Item
	nextID  int
	creates int
	deletes int
}

func newFakeItemRepo() *fakeItemRepo {
	return &fakeItemRepo{items: map[int]types.Item{}, nextID: 1}
}

func (r *fakeItemRepo) List(ctx context.Context, offset, limit int) ([]types.Item, int, error) {
	items := make([]types.Item, 0, len(r.items))
	for id := 1; id < r.nextID; id++ {
		if item, ok := r.items[id]; ok {
			items = append(items, item)
		}
	}
	return items, len(items), nil
}

func (r *fakeItemRepo) Get(ctx context.Context, id int) (types.Item, error) {
	item, ok := r.items[id]
	if !ok {
		return types.Item{}, store.ErrNotFound
	}
	return item, nil
}

func (r *fakeItemRepo) Create(ctx context.Context, item types.Item) (types.Item, error) {
	item.ID = r.nextID
	r.nextID++
	r.items[item.ID] = item
	r.creates++
	return item, nil
}

func (r *fakeItemRepo) Update(ctx context.Context, item types.Item) (types.Item, error) {
	if _, ok := r.items[item.ID]; !ok {
		return types.Item{}, store.ErrNotFound
	}
	r.items[item.ID] = item
	return item, nil
}

func (r *fakeItemRepo) Delete(ctx context.Context, id int) error {
	if _, ok := r.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.items, id)
	r.deletes++
	return nil
}

type cartKey struct{ userID, itemID int }

type fakeCartRepo struct {
	lines   map[int]types.CartItem
	byPair  map[cartKey]int
	nextID  int
	upserts int
}

func newFakeCartRepo() *fakeCartRepo {
	return &fakeCartRepo{
		lines:  map[int]types.CartItem{},
		byPair: map[cartKey]int{},
		nextID: 1,
	}
}

func (r *fakeCartRepo) Upsert(ctx context.Context, userID, itemID int) (types.CartItem, error) {
	r.upserts++
	key := cartKey{userID, itemID}
	if id, ok := r.byPair[key]; ok {
		line := r.lines[id]
		line.Quantity++
		r.lines[id] = line
		return line, nil
	}
	line := types.CartItem{ID: r.nextID, UserID: userID, ItemID: itemID, Quantity: 1}
	r.nextID++
	r.lines[line.ID] = line
	r.byPair[key] = line.ID
	return line, nil
}

func (r *fakeCartRepo) Get(ctx context.Context, id int) (types.CartItem, error) {
	line, ok := r.lines[id]
	if !ok {
		return types.CartItem{}, store.ErrNotFound
	}
	return line, nil
}

func (r *fakeCartRepo) ListByUser(ctx context.Context, userID int) ([]types.CartItem, error) {
	var lines []types.CartItem
	for id := 1; id < r.nextID; id++ {
		if line, ok := r.lines[id]; ok && line.UserID == userID {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func (r *fakeCartRepo) Delete(ctx context.Context, id int) error {
	line, ok := r.lines[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(r.lines, id)
	delete(r.byPair, cartKey{line.UserID, line.ItemID})
	return nil
}

// testEnv bundles the fakes behind a fully wired router.
type testEnv struct {
	router   *chi.Mux
	userRepo *fakeUserRepo
	itemRepo *fakeItemRepo
	cartRepo *fakeCartRepo
	mail     *fakeMail
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		userRepo: newFakeUserRepo(),
		itemRepo: newFakeItemRepo(),
		cartRepo: newFakeCartRepo(),
		mail:     &fakeMail{},
	}

	userService := services.NewUserService(env.userRepo, env.mail)
	itemService := services.NewItemService(env.itemRepo, nil)
	cartService := services.NewCartService(env.cartRepo)

	authMiddleware := RequireAuth(testSecret)

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, userService, testSecret, DefaultSessionTTL)
	})
	router.Route("/items", func(r chi.Router) {
		ItemRouter(r, itemService, userService, nil, authMiddleware)
	})
	router.Route("/users", func(r chi.Router) {
		UserRouter(r, userService, authMiddleware)
	})
	router.Route("/cart", func(r chi.Router) {
		CartRouter(r, cartService, authMiddleware)
	})

	env.router = router
	return env
}

// seedUser creates an account directly in the fake store and returns it
// together with a valid session token.
func (env *testEnv) seedUser(t *testing.T, email string, permissions ...types.Permission) (types.User, string) {
	t.Helper()

	if len(permissions) == 0 {
		permissions = []types.Permission{types.PermissionUser}
	}
	user, err := env.userRepo.Create(context.Background(), types.User{
		Email:        email,
		Name:         "Test User",
		PasswordHash: "not-a-real-hash",
		Permissions:  permissions,
	})
	require.NoError(t, err)

	token, err := issueToken(user.ID, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return user, token
}

func withSession(req *http.Request, token string) *http.Request {
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	return req
}

func findCookie(t *testing.T, resp *http.Response, name string) *http.Cookie {
	t.Helper()
	for _, cookie := range resp.Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}
