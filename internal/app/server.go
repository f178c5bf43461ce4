// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"leadflow-service/internal/config"
	"leadflow-service/internal/db"
	"leadflow-service/internal/events"
	dataHandler "leadflow-service/internal/handlers/distribution"
	statsHandler "leadflow-service/internal/handlers/stats"
	wsHandler "leadflow-service/internal/handlers/websocket"
	"leadflow-service/internal/metrics"
	"leadflow-service/internal/middleware"
	"leadflow-service/internal/pkg/fileparse"
	"leadflow-service/internal/pkg/jwt"
	"leadflow-service/internal/pkg/session"
	"leadflow-service/internal/repository/postgres"
	"leadflow-service/internal/service/distribution"
	identitysvc "leadflow-service/internal/service/identity"
	"leadflow-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
}

func NewServer(cfg config.AppConfig, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	return &Server{cfg: cfg, engine: gin.New(), logger: logger}
}

// Run wires every dependency and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, db.PostgresConfig{
		URL:      s.cfg.DatabaseURL,
		MaxConns: s.cfg.DBMaxConns,
	})
	if err != nil {
		return err
	}
	defer pool.Close()
	s.logger.Info("connected to postgres")

	if s.cfg.RunMigrations {
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
		s.logger.Info("migrations applied")
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addresses: []string{s.cfg.RedisAddr},
		Password:  s.cfg.RedisPass,
		PoolSize:  10,
	})
	if err != nil {
		return err
	}
	defer redisClient.Close()
	s.logger.Info("connected to redis")

	// ----- JWT & sessions -----
	verifier, err := jwt.LoadVerifier(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT verifier: %w", err)
	}
	blacklist := session.NewBlacklist(redisClient)
	rateLimiter := session.NewRateLimiter(redisClient)

	// ----- Repositories -----
	contactRepo := postgres.NewContactRepository(pool)
	userRepo := postgres.NewUserRepository(pool)

	// ----- Events & metrics -----
	bus := events.NewInMemoryBus(s.logger)
	m := metrics.New(prometheus.DefaultRegisterer)

	// ----- Services -----
	users := identitysvc.NewCachedProvider(userRepo, redisClient, s.cfg.IdentityCacheTTL, s.logger)
	counters := identitysvc.NewCounterConsumer(userRepo, s.logger)
	counters.Register(bus)

	service := distribution.NewService(contactRepo, users, fileparse.NewParser(), bus, m, s.logger, distribution.Config{
		OpTimeout:     s.cfg.DBOpTimeout,
		MaxImportRows: s.cfg.ImportMaxRows,
		UploadDir:     s.cfg.UploadDir,
	})

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(verifier, blacklist, s.logger)
	hub.RegisterHandler(websocket.NewCountersHandler(counters))
	websocket.NewNotifier(hub).Register(bus)

	// ----- Handlers -----
	if err := dataHandler.RegisterValidators(); err != nil {
		return err
	}
	handlers := &Handlers{
		DataHandler:    dataHandler.NewDataHandler(service, s.cfg.UploadMaxBytes, s.logger),
		StatsHandler:   statsHandler.NewStatsHandler(service),
		WSHandler:      wsHandler.NewWebSocketHandler(hub, s.cfg.CORSAllowedOrigins, s.logger),
		AuthMiddleware: middleware.NewAuthMiddleware(verifier, blacklist, s.logger),
		RateLimiter:    rateLimiter,
	}

	// ----- Middlewares -----
	s.engine.Use(
		middleware.RecoveryMiddleware(s.logger),
		middleware.RequestLogger(s.logger),
		middleware.SecurityHeaders(),
		middleware.CORS(s.cfg.CORSAllowedOrigins),
		m.Middleware(),
	)

	// ----- Router -----
	SetupRouter(s.engine, s.logger, s.cfg, handlers)

	httpSrv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpSrv.Shutdown(shutdownCtx)

		// let in-flight notifications and counter updates finish
		bus.Wait()
		return err
	})

	return g.Wait()
}
