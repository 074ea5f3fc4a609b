package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/threadbare/storefront/config"
	"github.com/threadbare/storefront/internal/cache"
	"github.com/threadbare/storefront/internal/db"
	"github.com/threadbare/storefront/internal/handlers"
	"github.com/threadbare/storefront/internal/mailer"
	"github.com/threadbare/storefront/internal/mq"
	"github.com/threadbare/storefront/internal/services"
	"github.com/threadbare/storefront/internal/storage"
	"github.com/threadbare/storefront/internal/store"
)

const itemCacheTTL = time.Minute

// Server wraps the HTTP server and its long-lived dependencies.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	itemCache  *cache.Cache
}

// New constructs a Server with its full dependency graph: database,
// broker, object storage, optional Redis cache, services and routes.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	jwtSecret := strings.TrimSpace(cfg.JWTSecret)
	if jwtSecret == "" {
		return nil, errors.New("APP_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queue, err := mq.NewFromConfig(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	objects, err := storage.NewFromConfig(ctx, cfg)
	if err != nil {
		_ = queue.Close()
		_ = dbConn.Close()
		return nil, err
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		_ = queue.Close()
		_ = dbConn.Close()
		return nil, err
	}

	var itemCache *cache.Cache
	if cfg.Redis.Enabled {
		itemCache, err = cache.New(ctx, cfg.Redis, itemCacheTTL)
		if err != nil {
			_ = queue.Close()
			_ = dbConn.Close()
			return nil, err
		}
	}

	userRepo := store.NewUserRepository(dbConn)
	itemRepo := store.NewItemRepository(dbConn)
	cartRepo := store.NewCartRepository(dbConn)

	mailQueue := mailer.NewQueue(queue, cfg.FrontendURL)

	userService := services.NewUserService(userRepo, mailQueue)
	itemService := services.NewItemService(itemRepo, objects)
	cartService := services.NewCartService(cartRepo)

	sessionTTL := time.Duration(cfg.CookieDays) * 24 * time.Hour
	if sessionTTL <= 0 {
		sessionTTL = handlers.DefaultSessionTTL
	}
	authMiddleware := handlers.RequireAuth(jwtSecret)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, jwtSecret, sessionTTL)
	})
	router.Route("/items", func(r chi.Router) {
		handlers.ItemRouter(r, itemService, userService, itemCache, authMiddleware)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userService, authMiddleware)
	})
	router.Route("/cart", func(r chi.Router) {
		handlers.CartRouter(r, cartService, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
		itemCache:  itemCache,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	logrus.WithField("addr", s.httpServer.Addr).Info("storefront API listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.itemCache != nil {
		_ = s.itemCache.Close()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
