package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	accountshandler "github.com/medikube/platform/domains/accounts/be/handler"
	accountsrepo "github.com/medikube/platform/domains/accounts/be/repo"
	accountsservice "github.com/medikube/platform/domains/accounts/be/service"
	authhandler "github.com/medikube/platform/domains/auth/be/handler"
	authrepo "github.com/medikube/platform/domains/auth/be/repo"
	authservice "github.com/medikube/platform/domains/auth/be/service"
	tenantshandler "github.com/medikube/platform/domains/tenants/be/handler"
	tenantsrepo "github.com/medikube/platform/domains/tenants/be/repo"
	tenantsservice "github.com/medikube/platform/domains/tenants/be/service"
	platformlogging "github.com/medikube/platform/platform/go/logging"
	"github.com/medikube/platform/platform/go/metrics"
	platformmiddleware "github.com/medikube/platform/platform/go/middleware"
	"github.com/medikube/platform/platform/go/persistence"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	BootstrapSchema bool          `env:"BOOTSTRAP_SCHEMA" envDefault:"false"`
}

func main() {
	ctx := context.Background()

	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	metrics.MustRegister("api-server")

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	if cfg.BootstrapSchema {
		if err := persistence.BootstrapCoreSchema(ctx, pool); err != nil {
			logger.Fatal("bootstrap core schema", zap.Error(err))
		}
		logger.Info("core schema applied")
	}

	tenantStore, err := persistence.NewTenantStore(pool)
	if err != nil {
		logger.Fatal("init tenant store", zap.Error(err))
	}
	userStore, err := persistence.NewUserStore(pool)
	if err != nil {
		logger.Fatal("init user store", zap.Error(err))
	}
	tokenStore, err := persistence.NewTokenStore(pool)
	if err != nil {
		logger.Fatal("init token store", zap.Error(err))
	}
	accountStore, err := persistence.NewAccountStore(pool)
	if err != nil {
		logger.Fatal("init account store", zap.Error(err))
	}

	tenantService := tenantsservice.New(tenantsrepo.NewPostgresRepository(tenantStore))
	tenantHTTPHandler := tenantshandler.New(tenantService, logger)

	authSvc := authservice.New(
		authrepo.NewPostgresUsers(userStore),
		authservice.NewTokenService(authrepo.NewPostgresTokens(tokenStore)),
		authrepo.NewPostgresAccounts(accountStore),
		authservice.NewBcryptHasher(),
	)
	authHTTPHandler := authhandler.New(authSvc, logger)

	accountsSvc := accountsservice.New(accountsrepo.NewPostgresRepository(accountStore))
	accountsHTTPHandler := accountshandler.New(accountsSvc, logger)

	rootRouter := chi.NewRouter()

	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.DefaultCORS(),
	)

	rootRouter.Use(platformlogging.RequestLogger(logger))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Handle("/metrics", promhttp.Handler())

	apiRouter := chi.NewRouter()
	apiRouter.Use(withTenant(tenantService, logger))

	// Public: registration and login.
	authHTTPHandler.RegisterPublic(apiRouter)

	// Token-guarded: sessions, profile and the caller's ledger.
	apiRouter.Group(func(r chi.Router) {
		r.Use(requireToken(authSvc))
		authHTTPHandler.RegisterProtected(r)
		accountsHTTPHandler.Register(r)
		r.Get("/tenants/current", tenantHTTPHandler.Current)
	})

	// Admin: tenant registry, role changes, tenant-wide ledger.
	apiRouter.Group(func(r chi.Router) {
		r.Use(requireToken(authSvc))
		r.Use(requireCapability(authservice.CapabilityAdmin))
		tenantHTTPHandler.Register(r)
		authHTTPHandler.RegisterAdmin(r)
		accountsHTTPHandler.RegisterAdmin(r)
	})

	rootRouter.Mount("/api/v1", apiRouter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
