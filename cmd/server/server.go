package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/septivank/asset-tracker/internal/access"
	"github.com/septivank/asset-tracker/internal/auth"
	"github.com/septivank/asset-tracker/internal/config"
	"github.com/septivank/asset-tracker/internal/db"
	"github.com/septivank/asset-tracker/internal/httpapi"
	"github.com/septivank/asset-tracker/internal/mq"
	"github.com/septivank/asset-tracker/internal/repository"
	"github.com/septivank/asset-tracker/internal/scope"
	"github.com/septivank/asset-tracker/internal/service"
	"github.com/septivank/asset-tracker/internal/state"
	"github.com/septivank/asset-tracker/internal/store"
	"github.com/septivank/asset-tracker/internal/store/postgres"
	"github.com/septivank/asset-tracker/internal/store/rest"
	"github.com/septivank/asset-tracker/internal/telemetry"
	"github.com/septivank/asset-tracker/internal/validator"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func startAccessConsumer(
	lc fx.Lifecycle,
	conn *mq.Connection,
	cfg *config.Config,
	logger *zap.Logger,
	events *service.AccessEvents,
) (*mq.Consumer, error) {
	consumer, err := mq.NewConsumer(mq.ConsumerConfig{
		Connection:    conn,
		Queue:         cfg.RabbitMQ.AccessQueue,
		DLQQueue:      cfg.RabbitMQ.DLQQueue,
		Exchange:      cfg.RabbitMQ.AccessExchange,
		RoutingKeys:   []string{cfg.RabbitMQ.AccessRoutingKey},
		PrefetchCount: cfg.RabbitMQ.PrefetchCount,
		Logger:        logger,
		Handler:       events.HandleMessage,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("access event consumer configured",
		zap.String("queue", cfg.RabbitMQ.AccessQueue),
		zap.Int("prefetch", cfg.RabbitMQ.PrefetchCount))
	consumer.RegisterLifecycle(lc)
	return consumer, nil
}

func startWorkspaceJanitor(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger, registry *state.Registry) {
	idle := cfg.Redis.WorkspaceIdle
	if idle <= 0 {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(idle / 2)
				defer ticker.Stop()
				for {
					select {
					case <-stop:
						return
					case <-ticker.C:
						if n := registry.Evict(idle); n > 0 {
							logger.Debug("idle workspaces evicted",
								zap.Int("evicted", n),
								zap.Int("remaining", registry.Len()))
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(stop)
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func startHTTPServer(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger, api *httpapi.API, verifier *auth.Verifier) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServicePort),
		Handler:           httpapi.NewRouter(api, verifier),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("[HTTP] cannot listen on %s: %w", srv.Addr, err)
			}
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server stopped unexpectedly", zap.Error(err))
				}
			}()
			logger.Info("http server listening", zap.String("addr", srv.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down http server")
			return srv.Shutdown(ctx)
		},
	})
}

// ProvideStore creates the backend store selected by BACKEND_KIND
func ProvideStore(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (store.Store, error) {
	if cfg.Backend.Kind == config.BackendREST {
		logger.Info("using rest backend", zap.String("url", cfg.Backend.URL))
		return rest.NewStore(cfg.Backend.URL, cfg.Backend.AnonKey, cfg.Backend.Timeout, logger), nil
	}

	pool, err := db.NewPool(lc, logger, cfg.Backend.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return postgres.NewStore(pool, logger), nil
}

// ProvideRepository creates a new repository instance
func ProvideRepository(s store.Store, cfg *config.Config) *repository.Repository {
	return repository.NewRepository(s, cfg.Readings.BulkLimit)
}

// ProvideClassifier creates a new reading health classifier
func ProvideClassifier(cfg *config.Config) *telemetry.Classifier {
	return telemetry.NewClassifier(cfg.Telemetry.LowBatteryThreshold, cfg.Telemetry.StaleAfter)
}

// ProvideValidator creates a new validator instance
func ProvideValidator(cfg *config.Config) *validator.Validator {
	return validator.NewValidator(cfg.Validation.HistoryMaxDays)
}

// ProvideResolver creates the access resolver with the configured widening
func ProvideResolver(repo *repository.Repository, cfg *config.Config, logger *zap.Logger) (*access.Resolver, error) {
	widening, err := scope.ParseWidening(cfg.Access.Widening)
	if err != nil {
		return nil, err
	}
	return access.NewResolver(repo, repo, widening, logger), nil
}

// ProvideAssetService creates a new asset service instance
func ProvideAssetService(repo *repository.Repository, classifier *telemetry.Classifier, cfg *config.Config, logger *zap.Logger) *service.AssetService {
	return service.NewAssetService(repo, classifier, cfg.Readings.FanoutLimit, logger)
}

// ProvideHierarchyService creates a new hierarchy service instance
func ProvideHierarchyService(repo *repository.Repository, resolver *access.Resolver) *service.HierarchyService {
	return service.NewHierarchyService(repo, resolver)
}

// ProvideMonitoringService creates a new monitoring service instance
func ProvideMonitoringService(repo *repository.Repository, classifier *telemetry.Classifier) *service.MonitoringService {
	return service.NewMonitoringService(repo, classifier)
}

// ProvideAvatarStorage creates the avatar object storage client
func ProvideAvatarStorage(cfg *config.Config) service.AvatarStorage {
	return rest.NewStorage(cfg.Backend.URL, cfg.Backend.AnonKey, cfg.Storage.AvatarBucket, cfg.Backend.Timeout)
}

// ProvideProfileService creates a new profile service instance
func ProvideProfileService(repo *repository.Repository, storage service.AvatarStorage, logger *zap.Logger) *service.ProfileService {
	return service.NewProfileService(repo, storage, logger)
}

// ProvideMQConnection creates a new RabbitMQ connection instance
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}

// ProvidePublisher creates the alert publisher
func ProvidePublisher(lc fx.Lifecycle, conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (*mq.Publisher, error) {
	publisher, err := mq.NewPublisher(conn, cfg.RabbitMQ.AlertExchange, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return publisher.Close()
		},
	})
	return publisher, nil
}

// ProvideCallerService creates a new caller service instance
func ProvideCallerService(repo *repository.Repository, publisher *mq.Publisher, gate *state.AlertGate, cfg *config.Config, logger *zap.Logger) *service.CallerService {
	return service.NewCallerService(repo, publisher, gate, cfg.RabbitMQ.UnboundScopeRoutingKey, logger)
}

// ProvideAlertGate creates the redis-backed limiter for unbound role alerts
func ProvideAlertGate(client *redis.Client, cfg *config.Config) *state.AlertGate {
	return state.NewAlertGate(client, cfg.Redis.KeyPrefix, cfg.Access.UnboundAlertInterval)
}

// ProvideRedisClient creates the redis client backing the snapshot mirror
func ProvideRedisClient(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("[REDIS CONNECTION FAILED] cannot reach %s: %w", cfg.Redis.Addr, err)
			}
			logger.Info("redis connection established", zap.String("addr", cfg.Redis.Addr))
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

// ProvideSnapshotStore creates the redis snapshot mirror
func ProvideSnapshotStore(client *redis.Client, cfg *config.Config, logger *zap.Logger) *state.SnapshotStore {
	return state.NewSnapshotStore(client, cfg.Redis.KeyPrefix, cfg.Redis.SnapshotTTL, logger)
}

// ProvideRegistry creates the per-user workspace registry
func ProvideRegistry(hierarchy *service.HierarchyService, assets *service.AssetService, mirror *state.SnapshotStore, logger *zap.Logger) *state.Registry {
	return state.NewRegistry(hierarchy, assets, mirror, logger)
}

// ProvideAccessEvents creates the access change handler
func ProvideAccessEvents(registry *state.Registry, logger *zap.Logger) *service.AccessEvents {
	return service.NewAccessEvents(registry, logger)
}

// ProvideVerifier creates the session token verifier
func ProvideVerifier(cfg *config.Config) *auth.Verifier {
	return auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTAudience)
}

// ProvideAPI creates the HTTP handlers and registers readiness checks
func ProvideAPI(
	callers *service.CallerService,
	resolver *access.Resolver,
	hierarchy *service.HierarchyService,
	assets *service.AssetService,
	monitoring *service.MonitoringService,
	profiles *service.ProfileService,
	registry *state.Registry,
	mirror *state.SnapshotStore,
	conn *mq.Connection,
	v *validator.Validator,
	logger *zap.Logger,
) *httpapi.API {
	api := httpapi.NewAPI(callers, resolver, hierarchy, assets, monitoring, profiles, registry, v, logger)
	api.AddCheck("redis", mirror.Ping)
	api.AddCheck("rabbitmq", func(context.Context) error {
		if !conn.Healthy() {
			return errors.New("connection closed")
		}
		return nil
	})
	return api
}
