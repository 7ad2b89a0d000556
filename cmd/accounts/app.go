package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nkiryanov/accounts/internal/db"
	"github.com/nkiryanov/accounts/internal/events"
	"github.com/nkiryanov/accounts/internal/handlers"
	"github.com/nkiryanov/accounts/internal/logger"
	"github.com/nkiryanov/accounts/internal/metrics"
	"github.com/nkiryanov/accounts/internal/repository/postgres"
	"github.com/nkiryanov/accounts/internal/service/account"
	"github.com/nkiryanov/accounts/internal/service/auth"
	"github.com/nkiryanov/accounts/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/accounts/internal/service/sweeper"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger  logger.Logger
	pool    *pgxpool.Pool
	emitter *events.Emitter
	sweeper *sweeper.Sweeper
}

func NewServerApp(ctx context.Context, c *Config) (app *ServerApp, err error) {
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
	defer func() {
		if err != nil {
			pool.Close()
		}
	}()

	storage := postgres.NewStorage(pool)
	m := metrics.New()

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		AccessSecret:  c.AccessTokenSecret,
		RefreshSecret: c.RefreshTokenSecret,
		AccessTTL:     c.AccessTokenTTL,
		RefreshTTL:    c.RefreshTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	authService, err := auth.NewService(auth.Config{}, auth.Deps{
		Storage:  storage,
		Tokens:   tokenManager,
		Hasher:   auth.NewBcryptHasher(c.BcryptCost, c.HashWorkers),
		Logger:   logger,
		Observer: m.Auth(),
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	publisher, err := newPublisher(ctx, c, logger)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to events broker. Err: %w", err)
	}
	emitter := events.NewEmitter(publisher, events.EmitterConfig{
		Topic:   c.EventsTopic,
		Timeout: c.EventsTimeout,
	}, logger, m.Events())

	accountService := account.NewService(storage, emitter, logger)

	mux := handlers.NewRouter(handlers.Deps{
		Auth:              authService,
		Accounts:          accountService.Operations(),
		Metrics:           m.Handler(),
		Logger:            logger,
		TrustedProxyDepth: c.TrustedProxyDepth,
	})

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		logger:     logger,
		pool:       pool,
		emitter:    emitter,
		sweeper:    sweeper.New(storage.Session(), c.SessionSweepInterval, logger, m),
	}, nil
}

func newPublisher(ctx context.Context, c *Config, l logger.Logger) (events.Publisher, error) {
	switch c.EventsBroker {
	case BrokerKafka:
		return events.NewKafkaPublisher(c.KafkaBrokers, "accounts")
	case BrokerNATS:
		return events.NewNATSPublisher(ctx, c.NATSURL, c.EventsTopic)
	case BrokerNone:
		return events.LogPublisher{Logger: l}, nil
	default:
		return nil, fmt.Errorf("unknown events broker %q", c.EventsBroker)
	}
}

// Run starts http server and sweeper, closes them gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	sweeperStopped := s.sweeper.Run(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-sweeperStopped

	if closeErr := s.emitter.Close(); closeErr != nil {
		s.logger.Error("Failed to close events publisher", "error", closeErr)
	}
	s.pool.Close()

	return err
}
