package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"catalog_service/config"
	"catalog_service/internal/auth"
	"catalog_service/internal/catalogsync"
	"catalog_service/internal/delivery"
	"catalog_service/internal/domain"
	"catalog_service/internal/live"
	"catalog_service/internal/render"
	"catalog_service/internal/repository"
	"catalog_service/internal/usecase"
	"catalog_service/pkg/db"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var secureCookies bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the catalog HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&secureCookies, "secure-cookies", false, "Mark cookies Secure (serve behind HTTPS)")
}

// catalogStore joins the two repositories of a backend into one store.
type catalogStore struct {
	domain.CategoryRepository
	domain.ProductRepository
}

type backend struct {
	store catalogStore
	// run is the backend's change source, if it has one.
	run   func(ctx context.Context) error
	close func()
}

func openBackend(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*backend, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		logger.Info("Connecting to database...")
		conn, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		logger.Info("Database connection established successfully.")
		if err := repository.EnsureSchema(ctx, conn, logger); err != nil {
			_ = conn.Close()
			return nil, err
		}
		feed := repository.NewChangeFeed()
		listener := repository.NewPostgresChangeListener(cfg.DatabaseURL, cfg.AppID, feed, logger)
		return &backend{
			store: catalogStore{
				CategoryRepository: repository.NewPostgresCategoryRepository(conn, cfg.AppID, feed, logger),
				ProductRepository:  repository.NewPostgresProductRepository(conn, cfg.AppID, feed, logger),
			},
			run: listener.Run,
			close: func() {
				if err := conn.Close(); err != nil {
					logger.Errorf("Error closing database connection: %v", err)
				} else {
					logger.Info("Database connection closed.")
				}
			},
		}, nil

	case config.BackendFirestore:
		fs, err := repository.NewFirestoreStore(repository.FirestoreConfig{
			ProjectID:         cfg.FirestoreProjectID,
			APIKey:            cfg.FirestoreAPIKey,
			BaseURL:           cfg.FirestoreBaseURL,
			AppID:             cfg.AppID,
			PollInterval:      cfg.FirestorePollInterval,
			RequestsPerSecond: cfg.FirestoreRequestsPerSecond,
		}, logger)
		if err != nil {
			return nil, err
		}
		return &backend{
			store: catalogStore{CategoryRepository: fs, ProductRepository: fs},
			run:   fs.Run,
			close: func() { _ = fs.Close() },
		}, nil
	}

	logger.Warn("Using the in-memory store; data is lost on restart")
	mem := repository.NewMemoryStore(logger)
	return &backend{
		store: catalogStore{CategoryRepository: mem, ProductRepository: mem},
		close: func() {},
	}, nil
}

func openSessions(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (auth.SessionStore, func(), error) {
	if cfg.RedisURL == "" {
		return auth.NewMemorySessionStore(), func() {}, nil
	}
	client, err := db.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("Redis connection established successfully.")
	store := auth.NewRedisSessionStore(client, "catalog:"+cfg.AppID+":session:")
	return store, func() {
		if err := client.Close(); err != nil {
			logger.Errorf("Error closing redis connection: %v", err)
		}
	}, nil
}

// signInService opens the session the shared catalog mirror reads under.
func signInService(ctx context.Context, provider *auth.Provider, token string) (*auth.Session, error) {
	if strings.TrimSpace(token) != "" {
		return provider.SignInWithCustomToken(ctx, token)
	}
	return provider.SignInAnonymously(ctx)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := setupLogger("info", "json")
	cfg := config.LoadConfig(logger)
	logger = setupLogger(cfg.LogLevel, strings.ToLower(cfg.LogFormat))
	gin.SetMode(gin.ReleaseMode)
	logger.Info("Starting Catalog Service...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.close()

	sessions, closeSessions, err := openSessions(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSessions()

	tokens, err := auth.NewTokenManager(auth.TokenConfig{Secret: cfg.JWTSecret, SessionTTL: cfg.SessionTTL})
	if err != nil {
		return err
	}
	provider := auth.NewProvider(tokens, sessions, auth.AdminCredentials{
		Email:        cfg.AdminEmail,
		PasswordHash: cfg.AdminPasswordHash,
	}, logger)

	renderer, err := render.New(render.Options{
		PlaceholderURL: cfg.PlaceholderImageURL,
		PriceFormat:    cfg.PriceFormat,
		CurrencySymbol: cfg.CurrencySymbol,
		SampleSize:     cfg.SlideshowSampleSize,
	}, logger)
	if err != nil {
		return err
	}

	mirror := catalogsync.New(be.store, renderer, nil, logger)
	defer mirror.Close()

	hub := live.NewHub(be.store, renderer, logger)
	defer provider.OnAuthStateChanged(hub.HandleAuthEvent)()

	service, err := signInService(ctx, provider, cfg.InitialAuthToken)
	if err != nil {
		return fmt.Errorf("service sign-in failed: %w", err)
	}
	if err := mirror.HandleAuthState(ctx, domain.AuthEvent{Identity: &service.Identity, SignedIn: true}); err != nil {
		return fmt.Errorf("could not start catalog sync: %w", err)
	}

	router := delivery.NewRouter(delivery.RouterDeps{
		Auth:          provider,
		Mirror:        mirror,
		Renderer:      renderer,
		Categories:    usecase.NewCategoryUseCase(be.store, be.store, mirror, logger),
		Products:      usecase.NewProductUseCase(be.store, be.store, mirror, logger),
		Live:          hub,
		SecureCookies: secureCookies,
		Logger:        logger,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	if be.run != nil {
		g.Go(func() error { return be.run(gctx) })
	}
	g.Go(func() error {
		logger.Infof("HTTP server listening on %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Warn("Shutdown signal received...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		logger.Info("HTTP server gracefully stopped.")
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Errorf("Catalog Service stopped with error: %v", err)
		return err
	}
	if err := provider.SignOut(context.Background(), service.Token); err != nil {
		logger.Warnf("Service sign-out failed: %v", err)
	}
	logger.Info("Catalog Service shut down gracefully.")
	return nil
}
