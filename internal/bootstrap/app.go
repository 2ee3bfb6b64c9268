package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"docqa-client/internal/api"
	"docqa-client/internal/app"
	"docqa-client/internal/cache"
	"docqa-client/internal/config"
	"docqa-client/internal/platform/database"
	rabbitmqClient "docqa-client/internal/platform/rabbitmq"
	redisClient "docqa-client/internal/platform/redis"
	"docqa-client/internal/poller"
	"docqa-client/internal/repository"
	"docqa-client/internal/session"
	"docqa-client/internal/worker"
)

// App holds every long-lived component of one client process.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	DB          *gorm.DB
	Redis       *redis.Client
	MQConn      *amqp.Connection
	EventWorker *worker.DocumentEventWorker

	Session *session.Broadcaster
	API     *api.Client
	Poller  *poller.Poller

	Auth      *app.AuthService
	Documents *app.DocumentService
	Queries   *app.QueryService
	Journal   *app.JournalService

	StartedAt time.Time
}

// New wires the application. On error, everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	a := &App{Config: cfg, Logger: logger, StartedAt: time.Now()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.DB, err = database.New(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(a.DB); err != nil {
		return nil, err
	}

	if cfg.RedisEnabled() {
		a.Redis, err = redisClient.New(ctx, redisClient.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			Timeout:      time.Duration(cfg.Redis.TimeoutMS) * time.Millisecond,
		})
		if err != nil {
			return nil, err
		}
	}

	store, err := a.credentialStore()
	if err != nil {
		return nil, err
	}
	a.Session = session.NewBroadcaster(store, logger.Named("session"))
	state := a.Session.CheckStatus(ctx)
	a.Session.Start(context.Background())
	logger.Debug("session resolved", zap.Stringer("state", state), zap.String("store", cfg.Session.Store))

	a.API = api.NewClient(cfg.API.BaseURL, cfg.APITimeout(), a.Session, a.Session, api.WithLogger(logger.Named("api")))
	a.Poller = poller.New(a.API, cfg.PollInterval(),
		poller.WithConcurrency(cfg.API.PollWorkers),
		poller.WithLogger(logger.Named("poller")),
	)

	events := repository.NewDocumentEventRepository(a.DB)
	publisher, err := a.eventPublisher(ctx, events)
	if err != nil {
		return nil, err
	}

	var history app.HistoryCache
	if a.Redis != nil {
		history = cache.NewHistoryCache(a.Redis,
			time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
			time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
		)
	}

	a.Auth = app.NewAuthService(a.API, a.Session)
	a.Documents = app.NewDocumentService(a.API, a.Poller, publisher, logger.Named("documents"))
	a.Queries = app.NewQueryService(a.API, history, a.Session, logger.Named("queries"))
	a.Journal = app.NewJournalService(events)

	return a, nil
}

func (a *App) credentialStore() (session.CredentialStore, error) {
	switch a.Config.Session.Store {
	case config.TokenStoreMemory:
		return session.NewMemoryBackend().Store(), nil
	case config.TokenStoreFile:
		return session.NewFileStore(a.Config.Session.File, a.Logger.Named("token-file")), nil
	case config.TokenStoreRedis:
		if a.Redis == nil {
			return nil, fmt.Errorf("token store redis requires a redis connection")
		}
		return session.NewRedisStore(a.Redis, a.Config.Session.RedisKey, a.Config.Session.RedisChannel), nil
	default:
		return nil, fmt.Errorf("unknown token store %q", a.Config.Session.Store)
	}
}

// eventPublisher routes journal events through RabbitMQ when configured and
// writes them directly otherwise.
func (a *App) eventPublisher(ctx context.Context, events *repository.DocumentEventRepository) (app.EventPublisher, error) {
	if !a.Config.RabbitMQEnabled() {
		return app.NewDirectPublisher(events), nil
	}

	conn, err := rabbitmqClient.New(ctx, a.Config.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}
	a.MQConn = conn

	queue := a.Config.RabbitMQ.DocumentEventQueue
	a.EventWorker = worker.NewDocumentEventWorker(conn, events, queue, a.Logger.Named("event-worker"))
	if err := a.EventWorker.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("start document event worker failed: %w", err)
	}
	return rabbitmqClient.NewDocumentEventPublisher(conn, queue), nil
}

// Close releases components in reverse order of creation.
func (a *App) Close() error {
	var closeErr error
	if a.Documents != nil {
		a.Documents.Close()
	}
	if a.Poller != nil {
		a.Poller.Close()
	}
	if a.EventWorker != nil {
		a.EventWorker.Close()
	}
	if a.Session != nil {
		a.Session.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		if err := database.Close(a.DB); err != nil {
			closeErr = err
		}
	}
	return closeErr
}
