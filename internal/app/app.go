package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"talkbridge/internal/api/http/handler"
	"talkbridge/internal/api/http/route"
	"talkbridge/internal/apperrors"
	"talkbridge/internal/config"
	"talkbridge/internal/model"
	"talkbridge/internal/msg/feedback"
	"talkbridge/internal/repository"
	"talkbridge/internal/service"
	"talkbridge/pkg/line"
	"talkbridge/pkg/notion"
	"talkbridge/pkg/postgres"
	"talkbridge/pkg/redis"
	"talkbridge/pkg/server"
)

// RecordStore is the full store contract: the producer half appends, the
// consumer half selects and acknowledges. Both backends satisfy it.
type RecordStore interface {
	InsertRecord(ctx context.Context, text string) (string, error)
	SelectOldestUnacknowledged(ctx context.Context) (*model.TalkRecord, error)
	UpdateAsAcknowledged(ctx context.Context, recordID string) error
}

type IngestService interface {
	ProcessBatch(ctx context.Context, events []model.WebhookEvent) []service.IngestResult
}

type DispatchService interface {
	Push(ctx context.Context, text string) error
}

type HealthService interface {
	IsOK(ctx context.Context) error
}

type WebhookHandler interface {
	Receive(c *gin.Context)
}

type HealthHandler interface {
	Ping(c *gin.Context)
	Health(c *gin.Context)
}

type Service struct {
	IngestService   IngestService
	DispatchService DispatchService
	HealthService   HealthService
}

type Handler struct {
	WebhookHandler WebhookHandler
	HealthHandler  HealthHandler
}

type App struct {
	Cfg        *config.Config
	Log        *zap.Logger
	Store      RecordStore
	Service    *Service
	Handler    *Handler
	DB         postgres.Postgres
	RDB        redis.Redis
	HTTPServer server.HTTPServer
	Scanner    *feedback.Scanner
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	app := &App{
		Cfg: cfg,
		Log: log,
	}

	store, err := initStore(log, cfg, app)
	if err != nil {
		log.Error("Failed to initialize record store", zap.Error(err))
		return nil, fmt.Errorf("failed to initialize record store: %w", err)
	}

	app.Store = store

	dedup, err := initDedup(log, &cfg.Redis, app)
	if err != nil {
		log.Error("Failed to initialize dedup", zap.Error(err))
		return nil, fmt.Errorf("failed to initialize dedup: %w", err)
	}

	svc := initService(log, cfg, store, dedup, app)
	app.Service = svc

	hdl := initHandler(log, svc)
	app.Handler = hdl

	app.HTTPServer = initHTTPServer(log, cfg, hdl)

	app.Scanner = feedback.NewScanner(log, feedback.Config{
		Name:         cfg.Scanner.Name,
		PollInterval: cfg.Scanner.PollInterval,
	}, store, svc.DispatchService)
	log.Debug("Feedback scanner initialized")

	return app, nil
}

func MustNew(cfg *config.Config, log *zap.Logger) *App {
	app, err := New(cfg, log)
	if err != nil {
		panic(err)
	}
	return app
}

func (a *App) Run(ctx context.Context) error {
	errs := make(chan error, 1)
	defer close(errs)

	go func() {
		if err := a.HTTPServer.Run(); err != nil {
			errs <- err
		}
	}()

	go func() {
		a.Scanner.Run(ctx)
	}()

	if err := <-errs; err != nil {
		return err
	}

	return nil
}

func (a *App) Shutdown() error {
	err := apperrors.ErrShutdown

	if srvErr := a.HTTPServer.Shutdown(); srvErr != nil {
		err = fmt.Errorf("%w, failed to shutdown http server: %w", err, srvErr)
	}

	a.Log.Debug("Http server shutdown")

	if a.RDB != nil {
		if rdbErr := a.RDB.Close(); rdbErr != nil {
			err = fmt.Errorf("%w, failed to close RDB: %w", err, rdbErr)
		}

		a.Log.Debug("Redis closed")
	}

	if a.DB != nil {
		a.DB.Close()
		a.Log.Debug("Database closed")
	}

	if !errors.Is(err, apperrors.ErrShutdown) {
		return err
	}

	return nil
}

// initStore picks the record store backend. The hosted backend talks to the
// record collection over its REST API; the postgres backend owns a pool that
// the app closes on shutdown.
func initStore(log *zap.Logger, cfg *config.Config, app *App) (RecordStore, error) {
	switch cfg.Store.Backend {
	case "postgres":
		db, err := initDB(&cfg.Database)
		if err != nil {
			return nil, err
		}

		app.DB = db
		log.Debug("Postgres record store initialized")

		return repository.NewRecordRepository(db.Pool()), nil
	case "notion":
		client := notion.New(notion.Config{
			BaseURL:    cfg.Notion.BaseURL,
			APIKey:     cfg.Notion.APIKey,
			APIVersion: cfg.Notion.APIVersion,
			Timeout:    cfg.Notion.Timeout,
		})
		log.Debug("Hosted record store initialized")

		return repository.NewNotionRecordRepository(client, cfg.Notion.DatabaseID), nil
	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownStoreBackend, cfg.Store.Backend)
	}
}

func initDB(cfg *config.Database) (postgres.Postgres, error) {
	postgresCfg := &postgres.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		Name:     cfg.Name,
		SSLMode:  cfg.SSLMode,
		MaxConns: cfg.MaxConns,
		MinConns: cfg.MinConns,
	}

	db, err := postgres.New(postgresCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return db, nil
}

func initDedup(log *zap.Logger, cfg *config.Redis, app *App) (service.EventDeduper, error) {
	if !cfg.Enable {
		return nil, nil
	}

	rdb, err := redis.New(&redis.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	app.RDB = rdb
	log.Debug("Redis dedup initialized")

	return repository.NewDedupRepository(rdb.Client(), cfg.DedupTTL), nil
}

func initService(log *zap.Logger, cfg *config.Config, store RecordStore, dedup service.EventDeduper, app *App) *Service {
	ingestSvc := service.NewIngestService(log, store, dedup)
	log.Debug("Ingest service initialized")

	pushClient := line.New(line.Config{
		BaseURL:      cfg.Chat.BaseURL,
		ChannelToken: cfg.Chat.ChannelToken,
		Timeout:      cfg.Chat.Timeout,
	})

	dispatchSvc := service.NewDispatchService(log, pushClient, cfg.Chat.RecipientID)
	log.Debug("Dispatch service initialized")

	var pool *pgxpool.Pool
	if app.DB != nil {
		pool = app.DB.Pool()
	}

	var rdbClient *goredis.Client
	if app.RDB != nil {
		rdbClient = app.RDB.Client()
	}

	healthSvc := service.NewHealthService(log, pool, rdbClient)
	log.Debug("Health service initialized")

	return &Service{
		IngestService:   ingestSvc,
		DispatchService: dispatchSvc,
		HealthService:   healthSvc,
	}
}

func initHandler(log *zap.Logger, svc *Service) *Handler {
	webhookHandler := handler.NewWebhookHandler(log, svc.IngestService)
	log.Debug("Webhook handler initialized")

	healthHandler := handler.NewHealthHandler(log, svc.HealthService)
	log.Debug("Health handler initialized")

	return &Handler{
		WebhookHandler: webhookHandler,
		HealthHandler:  healthHandler,
	}
}

func initHTTPServer(log *zap.Logger, cfg *config.Config, hdl *Handler) server.HTTPServer {
	router := route.SetupRouter(
		log,
		cfg,
		hdl.WebhookHandler,
		hdl.HealthHandler,
	)

	httpServer := server.NewHTTPServer(
		server.WithAddr(cfg.HTTPServer.Host, cfg.HTTPServer.Port),
		server.WithTimeout(cfg.HTTPServer.Timeout.Read, cfg.HTTPServer.Timeout.Write, cfg.HTTPServer.Timeout.Idle),
		server.WithHandler(router),
	)

	return httpServer
}
