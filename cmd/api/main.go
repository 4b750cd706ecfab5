package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/gocomet/ride-lifecycle/internal/api/handlers"
	"github.com/gocomet/ride-lifecycle/internal/api/routes"
	"github.com/gocomet/ride-lifecycle/internal/config"
	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	"github.com/gocomet/ride-lifecycle/internal/repository/memory"
	"github.com/gocomet/ride-lifecycle/internal/repository/postgres"
	redisrepo "github.com/gocomet/ride-lifecycle/internal/repository/redis"
	"github.com/gocomet/ride-lifecycle/internal/service/lifecycle"
	"github.com/gocomet/ride-lifecycle/internal/service/notify"
	"github.com/gocomet/ride-lifecycle/internal/service/pricing"
	"github.com/gocomet/ride-lifecycle/internal/service/rating"
	"github.com/gocomet/ride-lifecycle/internal/service/session"
	"github.com/gocomet/ride-lifecycle/pkg/auth"
	"github.com/gocomet/ride-lifecycle/pkg/cache"
	"github.com/gocomet/ride-lifecycle/pkg/database"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
	"github.com/gocomet/ride-lifecycle/pkg/monitoring"
	"github.com/gocomet/ride-lifecycle/pkg/websocket"
)

const statsInterval = 30 * time.Second

// storage bundles the backends selected by STORAGE_DRIVER
type storage struct {
	rides   ride.Repository
	markers session.MarkerStore
	db      *sql.DB
	redis   *goredis.Client
	checks  map[string]handlers.HealthCheck
}

func (s *storage) close() {
	if s.redis != nil {
		cache.Close(s.redis)
	}
	if s.db != nil {
		s.db.Close()
	}
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting ride lifecycle service",
		logger.String("env", cfg.Server.Env),
		logger.String("port", cfg.Server.Port),
		logger.String("storage", cfg.Storage.Driver),
	)

	// Initialize New Relic
	nrApp, err := monitoring.New(monitoring.Config{
		LicenseKey: cfg.NewRelic.LicenseKey,
		AppName:    cfg.NewRelic.AppName,
		Enabled:    cfg.NewRelic.Enabled,
		LogLevel:   cfg.NewRelic.LogLevel,
	})
	if err != nil {
		appLogger.Warn("Failed to initialize New Relic", logger.Err(err))
		nrApp = &monitoring.NewRelicApp{}
	} else if nrApp.IsEnabled() {
		appLogger.Info("New Relic APM initialized", logger.String("app_name", cfg.NewRelic.AppName))
	} else {
		appLogger.Info("New Relic APM disabled")
	}
	defer nrApp.Shutdown(10 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to open storage", logger.Err(err))
	}
	defer store.close()

	// WebSocket hub
	wsHub := websocket.NewHub(appLogger)
	go wsHub.Run()
	defer wsHub.Stop()

	// Services
	guard := session.NewGuard(store.rides, store.markers, appLogger)

	bus := lifecycle.NewBus(appLogger)
	// Session markers first so a client reacting to a push already sees the new state
	bus.Subscribe("session", guard)
	bus.Subscribe("notify", notify.NewNotifier(wsHub, nrApp, appLogger))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rideService := lifecycle.NewService(store.rides, pricing.NewService(pricingConfig(cfg.Pricing)), bus, appLogger,
		lifecycle.WithMetrics(lifecycle.NewMetrics(registry)),
	)

	h := &handlers.Handlers{
		Rides:    rideService,
		Ratings:  rating.NewService(store.rides, appLogger),
		Guard:    guard,
		Hub:      wsHub,
		Upgrader: handlers.NewUpgrader(cfg.WebSocket.ReadBufferSize, cfg.WebSocket.WriteBufferSize, cfg.WebSocket.AllowedOrigins),
		Recorder: nrApp,
		Checks:   store.checks,
		Logger:   appLogger,
	}

	// Initialize Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	routes.SetupRoutes(router, h, routes.Options{
		Tokens: auth.NewIssuer(auth.Config{
			Secret:     cfg.JWT.Secret,
			Issuer:     cfg.JWT.Issuer,
			Expiration: cfg.JWT.Expiry,
		}),
		Registry: registry,
		NewRelic: nrApp.Application,
		Logger:   appLogger,
	})

	if nrApp.IsEnabled() {
		go reportPoolStats(ctx, store, nrApp)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in a goroutine
	go func() {
		appLogger.Info("Server starting", logger.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Failed to start server", logger.Err(err))
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", logger.Err(err))
	}

	appLogger.Info("Server stopped gracefully")
}

func openStorage(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) (*storage, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		appLogger.Warn("Using in-memory storage; rides are lost on restart")
		return &storage{
			rides:   memory.NewRideRepository(),
			markers: memory.NewMarkerStore(),
			checks:  map[string]handlers.HealthCheck{},
		}, nil
	}

	db, err := database.NewPostgresDB(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConnections,
		MaxIdle:  cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	appLogger.Info("Connected to PostgreSQL")

	rides := postgres.NewRideRepository(db)
	if cfg.Storage.MigrateOnStart {
		if err := rides.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}

	redisClient, err := cache.NewRedisClient(ctx, cache.Config{
		Host:        cfg.Redis.Host,
		Port:        cfg.Redis.Port,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		MaxRetries:  cfg.Redis.MaxRetries,
		PoolSize:    cfg.Redis.PoolSize,
		MinIdleConn: cfg.Redis.MinIdleConn,
		DialTimeout: cfg.Redis.DialTimeout,
		ReadTimeout: cfg.Redis.ReadTimeout,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	appLogger.Info("Connected to Redis")

	return &storage{
		rides:   rides,
		markers: redisrepo.NewMarkerStore(redisClient, cfg.Session.MarkerTTL),
		db:      db,
		redis:   redisClient,
		checks: map[string]handlers.HealthCheck{
			"postgres": db.PingContext,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
	}, nil
}

func pricingConfig(p config.PricingConfig) pricing.Config {
	return pricing.Config{
		BaseFare: map[ride.VehicleType]float64{
			ride.VehicleEconomy: p.BaseFare.Economy,
			ride.VehiclePremium: p.BaseFare.Premium,
			ride.VehicleLuxury:  p.BaseFare.Luxury,
		},
		PerKMRate: map[ride.VehicleType]float64{
			ride.VehicleEconomy: p.PerKMRate.Economy,
			ride.VehiclePremium: p.PerKMRate.Premium,
			ride.VehicleLuxury:  p.PerKMRate.Luxury,
		},
		MinimumFare: p.MinimumFare,
	}
}

func reportPoolStats(ctx context.Context, store *storage, nrApp *monitoring.NewRelicApp) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if store.redis != nil {
				nrApp.RecordPoolStats("redis", cache.GetClientStats(store.redis))
			}
			if store.db != nil {
				nrApp.RecordPoolStats("db", database.PoolStats(store.db))
			}
		}
	}
}
