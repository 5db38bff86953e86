package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MosinFAM/graphql-channels/internal/config"
	"github.com/MosinFAM/graphql-channels/internal/db"
	"github.com/MosinFAM/graphql-channels/internal/graph"
	"github.com/MosinFAM/graphql-channels/internal/observability"
	"github.com/MosinFAM/graphql-channels/internal/pubsub"
	"github.com/MosinFAM/graphql-channels/internal/server"
	"github.com/MosinFAM/graphql-channels/internal/storage"

	"github.com/charmbracelet/log"
	"github.com/go-redis/redis/v8"
)

// App связывает хранилище, шину, резолверы и HTTP-сервер
type App struct {
	cfg     *config.Config
	logger  *log.Logger
	db      *sql.DB
	store   storage.Storage
	bus     pubsub.Bus
	handler http.Handler
	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	if err := a.init(ctx); err != nil {
		if cerr := a.Close(); cerr != nil {
			logger.Error("failed to release resources", "err", cerr)
		}
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	registry := observability.NewRegistry()
	metrics := observability.NewMetrics(registry)

	store, err := a.newStorage(ctx)
	if err != nil {
		return err
	}
	a.store = store

	seed, err := config.LoadSeed(a.cfg.SeedFile, time.Now())
	if err != nil {
		return err
	}
	if err := store.Seed(ctx, seed); err != nil {
		return fmt.Errorf("seed storage: %w", err)
	}

	bus, err := a.newBus(ctx, pubsub.WithMaxPending(a.cfg.SubscriberMaxPending), pubsub.WithObserver(metrics))
	if err != nil {
		return err
	}
	a.bus = bus
	a.closers = append(a.closers, bus.Close)

	resolver := &graph.Resolver{
		Storage:    store,
		Bus:        bus,
		Logger:     a.logger,
		DateLayout: a.cfg.DateLayout,
	}
	gql := server.NewGraphQLHandler(graph.NewExecutableSchema(graph.Config{Resolvers: resolver}), a.logger, server.HandlerOptions{
		KeepAlive: a.cfg.KeepAlive,
		Metrics:   metrics,
	})
	a.handler = server.NewRouter(gql, registry, a.logger)
	return nil
}

// Handler - HTTP-обработчик со всеми маршрутами
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run обслуживает запросы до отмены ctx
func (a *App) Run(ctx context.Context) error {
	return server.New(a.cfg.Addr, a.handler, a.logger, a.cfg.ShutdownTimeout).Run(ctx)
}

// Close освобождает ресурсы в обратном порядке
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// postgres открывает пул соединений один раз: он общий для хранилища и шины
func (a *App) postgres(ctx context.Context) (*sql.DB, error) {
	if a.db != nil {
		return a.db, nil
	}

	conn, err := db.Connect(ctx, a.cfg.DatabaseURL, a.logger)
	if err != nil {
		return nil, err
	}
	a.db = conn
	a.closers = append(a.closers, conn.Close)
	return conn, nil
}

func (a *App) newStorage(ctx context.Context) (storage.Storage, error) {
	switch a.cfg.StorageType {
	case config.StoragePostgres:
		conn, err := a.postgres(ctx)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(conn, a.cfg.MigrationsDir, a.logger); err != nil {
			return nil, err
		}
		a.logger.Info("using PostgreSQL storage")
		return storage.NewPostgresStorage(conn, a.logger), nil

	case config.StorageMemory:
		a.logger.Info("using in-memory storage")
		return storage.NewMemoryStorage(a.logger), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", a.cfg.StorageType)
	}
}

func (a *App) newBus(ctx context.Context, opts ...pubsub.MemoryOption) (pubsub.Bus, error) {
	switch a.cfg.BusType {
	case config.BusPostgres:
		conn, err := a.postgres(ctx)
		if err != nil {
			return nil, err
		}
		a.logger.Info("using PostgreSQL LISTEN/NOTIFY bus")
		return pubsub.NewPostgres(conn, a.cfg.DatabaseURL, a.logger, opts...), nil

	case config.BusRedis:
		client := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis %s: %w", a.cfg.RedisAddr, err)
		}
		a.logger.Info("using Redis bus", "addr", a.cfg.RedisAddr)
		return pubsub.NewRedis(client, a.logger, opts...), nil

	case config.BusNATS:
		bus, err := pubsub.NewNATS(a.cfg.NATSURL, a.logger, opts...)
		if err != nil {
			return nil, err
		}
		a.logger.Info("using NATS bus", "url", a.cfg.NATSURL)
		return bus, nil

	case config.BusMemory:
		return pubsub.NewMemory(a.logger, opts...), nil

	default:
		return nil, fmt.Errorf("unknown bus type %q", a.cfg.BusType)
	}
}
