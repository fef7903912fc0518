package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"product_catalog/internal/config"
	"product_catalog/internal/handler"
	"product_catalog/internal/metrics"
	"product_catalog/internal/middleware"
	"product_catalog/internal/repository"
	"product_catalog/internal/service"
	"product_catalog/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", utils.ErrAttr(err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", utils.ErrAttr(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// --- Store ---
	var (
		userRepo    repository.UserRepository
		productRepo repository.ProductRepository
		store       handler.Pinger
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		mem := repository.NewMemoryStore()
		userRepo, productRepo, store = mem.Users(), mem.Products(), mem
		logger.Warn("using in-memory store; data is lost on restart")
	default:
		dbPool, err := config.ConnectDB(ctx, cfg.DB, logger)
		if err != nil {
			return err
		}
		defer dbPool.Close()

		if err := config.AutoMigrate(ctx, dbPool, logger); err != nil {
			return err
		}
		if err := m.RegisterPool(dbPool); err != nil {
			return err
		}
		userRepo = repository.NewUserRepository(dbPool)
		productRepo = repository.NewProductRepository(dbPool)
		store = dbPool
	}

	// --- Services ---
	jwtUtil := utils.NewJWTUtil(cfg.JWT.SecretKey, cfg.JWT.TokenTTL())
	authService := service.NewAuthService(userRepo, jwtUtil, logger)
	productService := service.NewProductService(productRepo)

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(authService, handler.CookieConfig{
		Secure: cfg.HTTPServer.CookieSecure,
		MaxAge: cfg.JWT.TokenTTL(),
	}, logger)
	productHandler := handler.NewProductHandler(productService, logger)

	// --- Router ---
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		service.UseJSONFieldNames(v)
	}

	router := gin.New()
	router.Use(gin.Recovery(), m.Middleware())

	jwtAuthMW := middleware.JWTAuthMiddleware(authService, logger)

	apiGroup := router.Group("/api/v1")
	authHandler.RegisterAuthRoutes(apiGroup, jwtAuthMW)
	productHandler.RegisterProductRoutes(apiGroup, jwtAuthMW)

	router.GET("/health", handler.HealthHandler(store, logger))
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// --- Start Server ---
	srv := &http.Server{
		Addr:    ":" + cfg.HTTPServer.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("port", cfg.HTTPServer.Port), slog.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// --- Graceful Shutdown ---
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server exiting")
	return nil
}
