package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pmikheev/staffauth/internal/db"
	"github.com/pmikheev/staffauth/internal/errorlog"
	"github.com/pmikheev/staffauth/internal/handlers"
	"github.com/pmikheev/staffauth/internal/logger"
	"github.com/pmikheev/staffauth/internal/metrics"
	"github.com/pmikheev/staffauth/internal/repository/postgres"
	"github.com/pmikheev/staffauth/internal/repository/redisstore"
	"github.com/pmikheev/staffauth/internal/service/auth"
	"github.com/pmikheev/staffauth/internal/service/auth/tokenmanager"
)

type ServerApp struct {
	ListenAddr  string
	MetricsAddr string
	Handler     http.Handler
	Logger      logger.Logger

	recorder *errorlog.Recorder
	health   func(ctx context.Context) error
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Connect to redis that keeps refresh token sessions
	rdb, err := db.ConnectRedis(ctx, c.RedisAddr, c.RedisPassword, c.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
	}

	// Initialize repositories
	userRepo := &postgres.UserRepo{DB: pool}
	refreshStore := redisstore.New(rdb)

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:  c.SecretKey,
		AccessTTL:  c.AccessTTL,
		RefreshTTL: c.RefreshTTL,
	}, refreshStore)
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	authService, err := auth.NewService(auth.Config{}, tokenManager, userRepo, refreshStore)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	recorder := errorlog.NewRecorder(pool, logger, 0)

	mux := handlers.NewRouter(authService, logger, recorder)

	return &ServerApp{
		ListenAddr:  c.ListenAddr,
		MetricsAddr: c.MetricsAddr,
		Handler:     mux,
		Logger:      logger,
		recorder:    recorder,
		health: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return err
			}
			return rdb.Ping(ctx).Err()
		},
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	metricsServer := metrics.BootstrapServer(s.MetricsAddr, s.health, s.Logger)

	recorderDone := make(chan struct{})
	go func() {
		defer close(recorderDone)
		s.recorder.Run(ctx)
	}()

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			s.Logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		_ = metricsServer.Shutdown(timeoutCtx)
		s.Logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.Logger.Info("Starting server", "addr", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-recorderDone

	return err
}
